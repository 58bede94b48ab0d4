package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ejacobg/ka-infection/census"
	"github.com/ejacobg/ka-infection/graph"
	"github.com/ejacobg/ka-infection/infection"
	"github.com/gorilla/mux"
	"net/http"
	"strconv"
)

const maxBodySize = 1 << 20

type userResponse struct {
	ID        int64   `json:"uid"`
	Coaches   []int64 `json:"coaches"`
	CoachedBy []int64 `json:"coached_by"`
	Version   int64   `json:"version"`
}

type usersResponse struct {
	Users []int64 `json:"users"`
	Count int     `json:"count"`
}

type infectRequest struct {
	Version *int64 `json:"version"`
}

type infectRangeRequest struct {
	Min     *int   `json:"min"`
	Max     *int   `json:"max"`
	Version *int64 `json:"version"`
}

type errorResponse struct {
	Error       string `json:"error"`
	Accumulated int    `json:"accumulated,omitempty"`
}

func (svc *Service) getUser(w http.ResponseWriter, r *http.Request) {
	uid, err := uidParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := svc.cfg.Store.FindUser(r.Context(), uid)
	if err != nil {
		svc.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:        user.ID,
		Coaches:   nonNil(user.Coaches),
		CoachedBy: nonNil(user.CoachedBy),
		Version:   user.Version,
	})
}

func (svc *Service) getComponent(w http.ResponseWriter, r *http.Request) {
	uid, err := uidParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	component, err := svc.cfg.Infector.ConnectedComponent(r.Context(), uid)
	if err != nil {
		svc.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, usersResponse{Users: component.IDs(), Count: len(component)})
}

func (svc *Service) infectAll(w http.ResponseWriter, r *http.Request) {
	uid, err := uidParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var req infectRequest
	if err = decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	} else if req.Version == nil {
		writeError(w, http.StatusBadRequest, errors.New("version must be specified"))
		return
	}

	if err = svc.cfg.Infector.InfectAll(r.Context(), uid, *req.Version); err != nil {
		svc.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (svc *Service) infectRange(w http.ResponseWriter, r *http.Request) {
	var req infectRangeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	} else if req.Min == nil || req.Max == nil || req.Version == nil {
		writeError(w, http.StatusBadRequest, errors.New("min, max and version must be specified"))
		return
	}

	infected, err := svc.cfg.Infector.InfectRange(r.Context(), *req.Min, *req.Max, *req.Version)
	if err != nil {
		svc.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, usersResponse{Users: infected.IDs(), Count: len(infected)})
}

func (svc *Service) getCensus(w http.ResponseWriter, r *http.Request) {
	report, err := census.Take(r.Context(), svc.cfg.Store, svc.cfg.CensusPartitions)
	if err != nil {
		svc.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// writeFailure maps err to a response status. Errors that are not caused by
// the request itself are logged.
func (svc *Service) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var rangeErr *infection.RangeExceededError
	switch {
	case errors.As(err, &rangeErr):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Accumulated: rangeErr.Accumulated})
	case errors.Is(err, infection.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, graph.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, context.DeadlineExceeded):
		svc.cfg.Logger.WithField("err", err).WithField("path", r.URL.Path).Warn("request timed out")
		writeError(w, http.StatusGatewayTimeout, err)
	default:
		svc.cfg.Logger.WithField("err", err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, err)
	}
}

func uidParam(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["uid"]
	uid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return uid, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
