// internal/stats/mongo.go
//
// MongoDB sink: one document per record in the "plays" collection.

package stats

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Mongo struct {
	collection *mongo.Collection
}

// NewMongo uses database db of client.
func NewMongo(client *mongo.Client, db string) *Mongo {
	return &Mongo{collection: client.Database(db).Collection("plays")}
}

// EnsureIndexes creates the (mode, at) index used for per-day queries.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "mode", Value: 1}, {Key: "at", Value: -1}},
		Options: options.Index().SetName("mode_at"),
	})
	return err
}

func (m *Mongo) Save(ctx context.Context, r Record) error {
	if r.Guesses == nil {
		r.Guesses = []int64{}
	}
	if _, err := m.collection.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("insert play: %w", err)
	}
	return nil
}
