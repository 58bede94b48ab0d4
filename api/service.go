// Package api exposes the infection policies over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"github.com/ejacobg/ka-infection/census"
	"github.com/ejacobg/ka-infection/graph"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	userEndpoint      = "/users/{uid}"
	componentEndpoint = "/users/{uid}/component"
	infectEndpoint    = "/users/{uid}/infect"
	rangeEndpoint     = "/infect/range"
	censusEndpoint    = "/census"
	metricsEndpoint   = "/metrics"

	defaultShutdownTimeout = 10 * time.Second
)

// Infector is implemented by objects that can run the infection policies.
type Infector interface {
	ConnectedComponent(ctx context.Context, start int64) (graph.IDSet, error)
	InfectAll(ctx context.Context, start, version int64) error
	InfectRange(ctx context.Context, minCount, maxCount int, version int64) (graph.IDSet, error)
}

// Store is implemented by graph stores that can look up and list users.
type Store interface {
	census.UserLister
	FindUser(ctx context.Context, id int64) (*graph.User, error)
}

// Config encapsulates the settings for configuring the API service.
type Config struct {
	// The infector that serves component and infection requests.
	Infector Infector

	// The store used for user lookups and version census reports.
	Store Store

	// The number of ID ranges scanned in parallel by census reports.
	// Defaults to census.DefaultPartitions.
	CensusPartitions int

	// The address to listen for incoming requests.
	ListenAddr string

	// An optional gatherer whose metrics are exposed on /metrics.
	Gatherer prometheus.Gatherer

	// The time allowed for in-flight requests to complete once the
	// service is asked to stop. Defaults to 10s.
	ShutdownTimeout time.Duration

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.Infector == nil {
		err = multierror.Append(err, fmt.Errorf("infector has not been provided"))
	}
	if cfg.Store == nil {
		err = multierror.Append(err, fmt.Errorf("graph store has not been provided"))
	}
	if cfg.ListenAddr == "" {
		err = multierror.Append(err, fmt.Errorf("listen address has not been specified"))
	}
	if cfg.CensusPartitions < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for census partitions: %d", cfg.CensusPartitions))
	} else if cfg.CensusPartitions == 0 {
		cfg.CensusPartitions = census.DefaultPartitions
	}
	if cfg.ShutdownTimeout < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for shutdown timeout: %s", cfg.ShutdownTimeout))
	} else if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}
	return err
}

// Service implements the HTTP front-end for the infection tool.
type Service struct {
	cfg    Config
	router *mux.Router
}

// NewService creates a new API service instance with the specified config.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("api service: config validation failed: %w", err)
	}

	svc := &Service{
		cfg:    cfg,
		router: mux.NewRouter(),
	}

	svc.router.HandleFunc(userEndpoint, svc.getUser).Methods(http.MethodGet)
	svc.router.HandleFunc(componentEndpoint, svc.getComponent).Methods(http.MethodGet)
	svc.router.HandleFunc(infectEndpoint, svc.infectAll).Methods(http.MethodPost)
	svc.router.HandleFunc(rangeEndpoint, svc.infectRange).Methods(http.MethodPost)
	svc.router.HandleFunc(censusEndpoint, svc.getCensus).Methods(http.MethodGet)
	if cfg.Gatherer != nil {
		svc.router.Handle(metricsEndpoint, promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	svc.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})
	svc.router.Use(svc.logRequests)

	return svc, nil
}

// ServeHTTP dispatches r to the matching route.
func (svc *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	svc.router.ServeHTTP(w, r)
}

// Run serves incoming requests until ctx expires. In-flight requests are
// given ShutdownTimeout to complete before Run returns.
func (svc *Service) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", svc.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("api service: %w", err)
	}
	defer func() { _ = l.Close() }()

	srv := &http.Server{
		Addr:              svc.cfg.ListenAddr,
		Handler:           svc.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan error, 1)
	serveDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-serveDone:
			shutdownDone <- nil
			return
		}

		shutdownCtx, cancelFn := context.WithTimeout(context.Background(), svc.cfg.ShutdownTimeout)
		defer cancelFn()
		shutdownDone <- srv.Shutdown(shutdownCtx)
	}()

	svc.cfg.Logger.WithField("addr", l.Addr().String()).Info("listening for incoming requests")
	err = srv.Serve(l)
	close(serveDone)
	if !errors.Is(err, http.ErrServerClosed) {
		<-shutdownDone
		return fmt.Errorf("api service: %w", err)
	}

	if err = <-shutdownDone; err != nil {
		return fmt.Errorf("api service: shutdown: %w", err)
	}
	return nil
}

func (svc *Service) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		svc.cfg.Logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": rec.status,
			"took":   time.Since(began).String(),
		}).Debug("served request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}
