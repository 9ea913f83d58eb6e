package mongodb

import (
	"context"
	"time"

	"social-connect/internal/auth/domain/model"
	"social-connect/internal/auth/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAccountRepository implements AccountRepository using MongoDB
type MongoAccountRepository struct {
	accounts *mongo.Collection
	revoked  *mongo.Collection
}

var _ repository.AccountRepository = (*MongoAccountRepository)(nil)

// NewMongoAccountRepository creates the repository and its indexes
func NewMongoAccountRepository(ctx context.Context, db *mongo.Database) (*MongoAccountRepository, error) {
	repo := &MongoAccountRepository{
		accounts: db.Collection("accounts"),
		revoked:  db.Collection("revoked_tokens"),
	}

	// Email index for accounts (unique)
	_, err := repo.accounts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}

	// Revocations expire together with the token they block
	_, err = repo.revoked.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

// CreateAccount inserts an account; the unique email index rejects duplicates
func (r *MongoAccountRepository) CreateAccount(ctx context.Context, account *model.Account) error {
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	if _, err := r.accounts.InsertOne(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrEmailExists
		}
		return err
	}
	return nil
}

// GetAccountByEmail retrieves an account by normalized email
func (r *MongoAccountRepository) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.findOne(ctx, bson.M{"email": model.NormalizeEmail(email)})
}

// GetAccountByID retrieves an account by id
func (r *MongoAccountRepository) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoAccountRepository) findOne(ctx context.Context, filter bson.M) (*model.Account, error) {
	var account model.Account
	err := r.accounts.FindOne(ctx, filter).Decode(&account)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, repository.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// UpdatePasswordHash replaces the stored hash
func (r *MongoAccountRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := r.accounts.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"password_hash": hash, "updated_at": time.Now().UTC()},
		"$inc": bson.M{"credential_version": 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrAccountNotFound
	}
	return nil
}

// RevokeToken records a revoked token id. Revoking twice is not an error.
func (r *MongoAccountRepository) RevokeToken(ctx context.Context, token *model.RevokedToken) error {
	_, err := r.revoked.ReplaceOne(ctx, bson.M{"_id": token.ID}, token, options.Replace().SetUpsert(true))
	return err
}

// IsTokenRevoked reports whether a token id was revoked
func (r *MongoAccountRepository) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.revoked.CountDocuments(ctx, bson.M{"_id": tokenID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
