package sessions

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ledgerEntry is one consumed temp token or revoked access token. Mongo's
// TTL monitor removes entries once ExpiresAt passes; reads also filter on it
// because the monitor only runs about once a minute.
type ledgerEntry struct {
	ID        string    `bson:"_id"`
	Kind      string    `bson:"kind"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

// MongoLedger implements Ledger on a single collection.
type MongoLedger struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoLedger(col *mongo.Collection) *MongoLedger {
	return &MongoLedger{col: col, now: time.Now}
}

// EnsureIndexes creates the TTL index on expiresAt.
func (l *MongoLedger) EnsureIndexes(ctx context.Context) error {
	_, err := l.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func (l *MongoLedger) ConsumeOnce(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	_, err := l.col.InsertOne(ctx, ledgerEntry{
		ID:        "consumed:temp:" + id,
		Kind:      "temp",
		ExpiresAt: l.now().UTC().Add(ttl),
	})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *MongoLedger) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	_, err := l.col.UpdateOne(ctx,
		bson.M{"_id": "blacklist:access:" + tokenKey(token)},
		bson.M{"$set": bson.M{"kind": "access", "expiresAt": l.now().UTC().Add(ttl)}},
		options.Update().SetUpsert(true))
	return err
}

func (l *MongoLedger) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := l.col.CountDocuments(ctx, bson.M{
		"_id":       "blacklist:access:" + tokenKey(token),
		"expiresAt": bson.M{"$gt": l.now().UTC()},
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
