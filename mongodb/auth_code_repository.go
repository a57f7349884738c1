package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/codegrant/domain"
)

// AuthCodeRepository implements domain.AuthorizationCodeRepository on MongoDB.
//
// Single use of a code is enforced by InvalidateAuthCode's conditional update:
// only a document that still has used=false matches the filter, so concurrent
// exchanges of the same code race on the document atomically and at most one
// validation can ever have observed it as unconsumed.
type AuthCodeRepository struct {
	codes *mongo.Collection
}

var _ domain.AuthorizationCodeRepository = (*AuthCodeRepository)(nil)

// NewAuthCodeRepository creates the repository and ensures its indexes.
func NewAuthCodeRepository(ctx context.Context, db *mongo.Database) (*AuthCodeRepository, error) {
	repo := &AuthCodeRepository{
		codes: db.Collection(CodesCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *AuthCodeRepository) createIndexes(ctx context.Context) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err := r.codes.Indexes().CreateMany(timeoutCtx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Server-side GC of expired code records.
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create auth code indexes: %w", err)
	}
	return nil
}

// SaveAuthCode persists a freshly issued authorization code record.
func (r *AuthCodeRepository) SaveAuthCode(ctx context.Context, code *domain.AuthCode) error {
	if code == nil || code.Code == "" {
		return errors.New("auth code record must carry a code value")
	}
	if code.ExpiresAt == nil {
		return errors.New("auth code record must carry an expiry")
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}

	if _, err := r.codes.InsertOne(ctx, code); err != nil {
		var writeErr mongo.WriteException
		if errors.As(err, &writeErr) {
			for _, we := range writeErr.WriteErrors {
				if we.Code == 11000 || we.Code == 11001 {
					return fmt.Errorf("authorization code already exists")
				}
			}
		}
		return fmt.Errorf("failed to save authorization code: %w", err)
	}
	return nil
}

// GetAuthCode fetches a code record by its code value, consumed or not.
func (r *AuthCodeRepository) GetAuthCode(ctx context.Context, code string) (*domain.AuthCode, error) {
	var record domain.AuthCode
	err := r.codes.FindOne(ctx, bson.M{"code": code}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAuthCodeNotFound
		}
		return nil, fmt.Errorf("failed to get authorization code: %w", err)
	}
	return &record, nil
}

// InvalidateAuthCode flips the used flag of a still-live record. Invalidating
// a code that is absent or already consumed is a no-op success.
func (r *AuthCodeRepository) InvalidateAuthCode(ctx context.Context, code string) error {
	res, err := r.codes.UpdateOne(ctx,
		bson.M{"code": code, "used": false},
		bson.M{"$set": bson.M{"used": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to invalidate authorization code: %w", err)
	}
	if res.MatchedCount == 0 {
		log.Debug().Msg("Authorization code already consumed or unknown, nothing to invalidate")
	}
	return nil
}

// DeleteExpiredAuthCodes removes records whose expiry has passed. The TTL
// index does this continuously; this exists for on-demand purges.
func (r *AuthCodeRepository) DeleteExpiredAuthCodes(ctx context.Context) error {
	res, err := r.codes.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("failed to delete expired authorization codes: %w", err)
	}
	if res.DeletedCount > 0 {
		log.Info().Int64("count", res.DeletedCount).Msg("Deleted expired authorization codes")
	}
	return nil
}
