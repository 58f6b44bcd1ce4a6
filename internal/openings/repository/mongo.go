package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zelosify/zelosify/server/internal/openings"
)

// MongoRepo implements Repository on MongoDB. Profile batches run inside a
// multi-document transaction, so the deployment must be a replica set.
type MongoRepo struct {
	openings *mongo.Collection
	profiles *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{openings: db.Collection("openings"), profiles: db.Collection("hiring_profiles")}
}

// EnsureIndexes creates the tenant lookup and the unique object key.
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	if _, err := m.openings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "postedDate", Value: -1}},
	}); err != nil {
		return err
	}
	_, err := m.profiles.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "objectKey", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "openingId", Value: 1}}},
	})
	return err
}

func (m *MongoRepo) CreateOpening(ctx context.Context, o *openings.Opening) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.PostedDate.IsZero() {
		o.PostedDate = time.Now().UTC()
	}
	_, err := m.openings.InsertOne(ctx, o)
	return err
}

func (m *MongoRepo) ListOpenings(ctx context.Context, tenantID string) ([]*openings.Opening, error) {
	cur, err := m.openings.Find(ctx, bson.M{"tenantId": tenantID},
		options.Find().SetSort(bson.D{{Key: "postedDate", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*openings.Opening{}
	for cur.Next(ctx) {
		var o openings.Opening
		if err := cur.Decode(&o); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, cur.Err()
}

func (m *MongoRepo) GetOpening(ctx context.Context, tenantID, id string) (*openings.Opening, error) {
	var o openings.Opening
	err := m.openings.FindOne(ctx, bson.M{"_id": id, "tenantId": tenantID}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, openings.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (m *MongoRepo) ListProfiles(ctx context.Context, openingID string) ([]*openings.HiringProfile, error) {
	cur, err := m.profiles.Find(ctx, bson.M{"openingId": openingID, "isDeleted": false},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "objectKey", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*openings.HiringProfile{}
	for cur.Next(ctx) {
		var p openings.HiringProfile
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, cur.Err()
}

func (m *MongoRepo) inTx(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := m.profiles.Database().Client().StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (m *MongoRepo) SubmitProfiles(ctx context.Context, openingID, uploadedBy string, keys []string) error {
	now := time.Now().UTC()
	return m.inTx(ctx, func(sc mongo.SessionContext) error {
		for _, k := range keys {
			_, err := m.profiles.UpdateOne(sc,
				bson.M{"objectKey": k},
				bson.M{
					"$set": bson.M{"isDraft": false, "updatedAt": now},
					"$setOnInsert": bson.M{
						"_id":        uuid.NewString(),
						"openingId":  openingID,
						"uploadedBy": uploadedBy,
						"isDeleted":  false,
						"createdAt":  now,
					},
				},
				options.Update().SetUpsert(true))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *MongoRepo) DraftProfiles(ctx context.Context, openingID, uploadedBy string, keys []string) error {
	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		docs = append(docs, &openings.HiringProfile{
			ID:         uuid.NewString(),
			OpeningID:  openingID,
			ObjectKey:  k,
			UploadedBy: uploadedBy,
			IsDraft:    true,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	err := m.inTx(ctx, func(sc mongo.SessionContext) error {
		_, err := m.profiles.InsertMany(sc, docs)
		return err
	})
	if mongo.IsDuplicateKeyError(err) {
		return openings.ErrDuplicateKey
	}
	return err
}

func (m *MongoRepo) GetProfile(ctx context.Context, id string) (*openings.HiringProfile, string, error) {
	var p openings.HiringProfile
	err := m.profiles.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, "", openings.ErrProfileNotFound
	}
	if err != nil {
		return nil, "", err
	}
	var o openings.Opening
	if err := m.openings.FindOne(ctx, bson.M{"_id": p.OpeningID}).Decode(&o); err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, "", err
	}
	return &p, o.TenantID, nil
}

func (m *MongoRepo) SoftDeleteProfile(ctx context.Context, id string) error {
	res, err := m.profiles.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"isDeleted": true, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return openings.ErrProfileNotFound
	}
	return nil
}
