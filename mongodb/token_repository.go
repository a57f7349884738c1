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

	"go.pilab.hu/codegrant/api"
	"go.pilab.hu/codegrant/domain"
)

// TokenRepository implements domain.TokenRepository on MongoDB. Revocation
// and expiry policy live in the token service; this layer only stores and
// retrieves records.
type TokenRepository struct {
	tokens *mongo.Collection
}

var _ domain.TokenRepository = (*TokenRepository)(nil)

// NewTokenRepository creates the repository and ensures its indexes.
func NewTokenRepository(ctx context.Context, db *mongo.Database) (*TokenRepository, error) {
	repo := &TokenRepository{
		tokens: db.Collection(TokensCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *TokenRepository) createIndexes(ctx context.Context) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err := r.tokens.Indexes().CreateMany(timeoutCtx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_value", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create token indexes: %w", err)
	}
	return nil
}

// StoreToken persists an issued token record.
func (r *TokenRepository) StoreToken(ctx context.Context, token *domain.Token) error {
	if _, err := r.tokens.InsertOne(ctx, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// GetAccessToken fetches an access token record by its value.
func (r *TokenRepository) GetAccessToken(ctx context.Context, tokenValue string) (*domain.Token, error) {
	var token domain.Token
	err := r.tokens.FindOne(ctx, bson.M{
		"token_value": tokenValue,
		"token_type":  api.TokenTypeAccessToken,
	}).Decode(&token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}
	return &token, nil
}

// RevokeToken marks a token revoked by its value.
func (r *TokenRepository) RevokeToken(ctx context.Context, tokenValue string) error {
	res, err := r.tokens.UpdateOne(ctx,
		bson.M{"token_value": tokenValue},
		bson.M{"$set": bson.M{"is_revoked": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

// DeleteExpiredTokens removes records whose expiry has passed. The TTL index
// does this continuously; this exists for on-demand purges.
func (r *TokenRepository) DeleteExpiredTokens(ctx context.Context) error {
	res, err := r.tokens.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	if res.DeletedCount > 0 {
		log.Info().Int64("count", res.DeletedCount).Msg("Deleted expired tokens")
	}
	return nil
}
