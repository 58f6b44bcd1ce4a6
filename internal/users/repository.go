package users

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zelosify/zelosify/server/internal/models"
)

// UserRepository reads and writes the store-of-record user entity.
// Lookups return (nil, nil) when no user matches.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	GetByEmailProvider(ctx context.Context, email, provider string) (*models.User, error)
	FindByRole(ctx context.Context, tenantID, role string) (*models.User, error)
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string) error
	SetTOTPSecret(ctx context.Context, id, secret string) error
}

// ErrUserNotFound is returned by writes that target a missing user.
var ErrUserNotFound = errors.New("user not found")

// MongoUserRepository implements UserRepository using MongoDB. The tenant is
// embedded in the user document.
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a new repository for the given collection
func NewMongoUserRepository(col *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{col: col}
}

// EnsureIndexes creates the unique lookups the auth pipeline relies on.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "externalId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "email", Value: 1}, {Key: "provider", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"externalId": externalID})
}

func (r *MongoUserRepository) GetByEmailProvider(ctx context.Context, email, provider string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email, "provider": provider})
}

func (r *MongoUserRepository) FindByRole(ctx context.Context, tenantID, role string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"tenant.tenantId": tenantID, "role": role})
}

func (r *MongoUserRepository) update(ctx context.Context, id string, set bson.M) error {
	set["updatedAt"] = time.Now().UTC()
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *MongoUserRepository) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string) error {
	return r.update(ctx, id, bson.M{"accessToken": accessToken, "refreshToken": refreshToken})
}

func (r *MongoUserRepository) SetTOTPSecret(ctx context.Context, id, secret string) error {
	return r.update(ctx, id, bson.M{"totpSecret": secret})
}
