// Package mongodb provides a mentorship graph backed by a MongoDB collection
// with one document per user.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"github.com/ejacobg/ka-infection/graph"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const (
	defaultDatabase   = "infection"
	collectionName    = "users"
	uidField          = "uid"
	versionField      = "version"
	coachesField      = "coaches"
	coachedByField    = "coached_by"
	documentIDField   = "_id"
	ascending         = 1
	projectionInclude = 1
	projectionExclude = 0
)

// Compile-time check for ensuring MongoGraph implements Graph.
var _ graph.Graph = (*MongoGraph)(nil)

// document is the stored representation of a graph.User.
type document struct {
	UID       int64   `bson:"uid"`
	Coaches   []int64 `bson:"coaches,omitempty"`
	CoachedBy []int64 `bson:"coached_by,omitempty"`
	Version   int64   `bson:"version"`
}

// MongoGraph implements a mentorship graph on top of a MongoDB collection.
type MongoGraph struct {
	client *mongo.Client
	users  *mongo.Collection
}

// NewMongoGraph connects to the MongoDB deployment specified by uri and makes
// sure the users collection is indexed. The database named in the URI path is
// used, falling back to "infection".
func NewMongoGraph(ctx context.Context, uri string) (*MongoGraph, error) {
	opts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping: %w", err)
	}

	dbName := defaultDatabase
	if cs, parseErr := connstring.ParseAndValidate(uri); parseErr == nil && cs.Database != "" {
		dbName = cs.Database
	}

	g := &MongoGraph{
		client: client,
		users:  client.Database(dbName).Collection(collectionName),
	}
	if err = g.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return g, nil
}

func (g *MongoGraph) ensureIndexes(ctx context.Context) error {
	_, err := g.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: uidField, Value: ascending}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: versionField, Value: ascending}},
		},
	})
	if err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	return nil
}

// Close disconnects from the MongoDB deployment.
func (g *MongoGraph) Close() error {
	return g.client.Disconnect(context.Background())
}

// UpsertUser creates a new user or replaces an existing user.
func (g *MongoGraph) UpsertUser(ctx context.Context, user *graph.User) error {
	doc := document{
		UID:       user.ID,
		Coaches:   user.Coaches,
		CoachedBy: user.CoachedBy,
		Version:   user.Version,
	}
	_, err := g.users.ReplaceOne(ctx, bson.M{uidField: user.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// FindUser looks up a user by its ID.
func (g *MongoGraph) FindUser(ctx context.Context, id int64) (*graph.User, error) {
	var doc document
	err := g.users.FindOne(ctx, bson.M{uidField: id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("find user: %w", graph.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.user(), nil
}

// Users returns an iterator for the set of users whose IDs belong to the
// [fromID, toID) range.
func (g *MongoGraph) Users(ctx context.Context, fromID, toID int64) (graph.UserIterator, error) {
	filter := bson.M{uidField: bson.M{"$gte": fromID, "$lt": toID}}
	cur, err := g.users.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: uidField, Value: ascending}}))
	if err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	return &userIterator{ctx: ctx, cur: cur}, nil
}

// NeighborsOf returns the IDs of every user connected to any of ids.
func (g *MongoGraph) NeighborsOf(ctx context.Context, ids []int64) (graph.IDSet, error) {
	projection := bson.M{coachesField: projectionInclude, coachedByField: projectionInclude, documentIDField: projectionExclude}
	cur, err := g.users.Find(ctx, bson.M{uidField: bson.M{"$in": nonNil(ids)}}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, fmt.Errorf("neighbors of: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	neighbors := make(graph.IDSet)
	for cur.Next(ctx) {
		var doc document
		if err = cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("neighbors of: %w", err)
		}
		neighbors.Add(doc.Coaches...)
		neighbors.Add(doc.CoachedBy...)
	}
	if err = cur.Err(); err != nil {
		return nil, fmt.Errorf("neighbors of: %w", err)
	}
	return neighbors, nil
}

// PickUnmarked returns the lowest user ID not present in excluded.
func (g *MongoGraph) PickUnmarked(ctx context.Context, excluded graph.IDSet) (int64, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: uidField, Value: ascending}}).
		SetProjection(bson.M{uidField: projectionInclude, documentIDField: projectionExclude})

	var doc document
	err := g.users.FindOne(ctx, bson.M{uidField: bson.M{"$nin": excluded.IDs()}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("pick unmarked: %w", graph.ErrNotFound)
	} else if err != nil {
		return 0, fmt.Errorf("pick unmarked: %w", err)
	}
	return doc.UID, nil
}

// ApplyVersion sets the version of every listed user.
func (g *MongoGraph) ApplyVersion(ctx context.Context, ids []int64, version int64) error {
	_, err := g.users.UpdateMany(ctx,
		bson.M{uidField: bson.M{"$in": nonNil(ids)}},
		bson.M{"$set": bson.M{versionField: version}},
	)
	if err != nil {
		return fmt.Errorf("apply version: %w", err)
	}
	return nil
}

func (d *document) user() *graph.User {
	return &graph.User{
		ID:        d.UID,
		Coaches:   d.Coaches,
		CoachedBy: d.CoachedBy,
		Version:   d.Version,
	}
}

// nonNil makes sure the driver encodes empty lists as [] instead of null,
// which $in rejects.
func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
