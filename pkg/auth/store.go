package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// TokenKey is the Redis key of the stored token.
const TokenKey = "plashr:oauth:token"

// TokenStore keeps one OAuth2 token in Redis.
type TokenStore struct {
	redis *redis.Client
}

// NewTokenStore creates a token store.
func NewTokenStore(redisClient *redis.Client) *TokenStore {
	return &TokenStore{redis: redisClient}
}

// Load returns the stored token or ErrNotLoggedIn.
func (s *TokenStore) Load(ctx context.Context) (*oauth2.Token, error) {
	data, err := s.redis.Get(ctx, TokenKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &tok, nil
}

// Save stores tok, replacing any previous token.
func (s *TokenStore) Save(ctx context.Context, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := s.redis.Set(ctx, TokenKey, data, 0).Err(); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// Delete removes the stored token.
func (s *TokenStore) Delete(ctx context.Context) error {
	if err := s.redis.Del(ctx, TokenKey).Err(); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
