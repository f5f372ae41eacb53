// Package auth implements the OAuth2 authorization code flow against the
// photo service and keeps the resulting token in Redis.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	// AuthorizeURL is the provider's authorization endpoint.
	AuthorizeURL = "https://unsplash.com/oauth/authorize"

	// TokenURL is the provider's token endpoint.
	TokenURL = "https://unsplash.com/oauth/token"

	// StateTTL bounds how long a login may take.
	StateTTL = 10 * time.Minute

	stateKeyPrefix = "plashr:oauth:state:"
)

var (
	// ErrInvalidState is returned when the callback state is unknown or expired.
	ErrInvalidState = errors.New("oauth state is invalid or expired")

	// ErrNotLoggedIn is returned when no token is stored.
	ErrNotLoggedIn = errors.New("not logged in")
)

// DefaultScopes covers browsing, likes and collection management.
var DefaultScopes = []string{
	"public",
	"read_user",
	"write_likes",
	"read_collections",
	"write_collections",
}

// Config holds the OAuth application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// AuthURL and TokenURL override the provider endpoints (tests).
	AuthURL  string
	TokenURL string
}

// Manager drives logins and hands out token sources.
type Manager struct {
	oauth  *oauth2.Config
	redis  *redis.Client
	store  *TokenStore
	logger zerolog.Logger
}

// NewManager creates a manager.
func NewManager(cfg Config, redisClient *redis.Client, logger zerolog.Logger) (*Manager, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client id and secret are required")
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("redirect url is required")
	}
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	authURL, tokenURL := AuthorizeURL, TokenURL
	if cfg.AuthURL != "" {
		authURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		tokenURL = cfg.TokenURL
	}

	return &Manager{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		redis:  redisClient,
		store:  NewTokenStore(redisClient),
		logger: logger.With().Str("component", "auth").Logger(),
	}, nil
}

// AuthCodeURL starts a login. The returned state must come back with the
// callback within StateTTL.
func (m *Manager) AuthCodeURL(ctx context.Context) (authURL, state string, err error) {
	state = uuid.NewString()
	if err := m.redis.Set(ctx, stateKeyPrefix+state, time.Now().Unix(), StateTTL).Err(); err != nil {
		return "", "", fmt.Errorf("store oauth state: %w", err)
	}
	return m.oauth.AuthCodeURL(state), state, nil
}

// Exchange completes a login: it consumes state, trades code for a token
// and stores the token.
func (m *Manager) Exchange(ctx context.Context, state, code string) (*oauth2.Token, error) {
	if _, err := uuid.Parse(state); err != nil {
		return nil, ErrInvalidState
	}

	err := m.redis.GetDel(ctx, stateKeyPrefix+state).Err()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, fmt.Errorf("check oauth state: %w", err)
	}

	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		m.logger.Error().Err(err).Msg("Token exchange failed")
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	if err := m.store.Save(ctx, tok); err != nil {
		return nil, err
	}

	m.logger.Info().Msg("Logged in")
	return tok, nil
}

// LoggedIn reports whether a token is stored.
func (m *Manager) LoggedIn(ctx context.Context) (bool, error) {
	_, err := m.store.Load(ctx)
	if errors.Is(err, ErrNotLoggedIn) {
		return false, nil
	}
	return err == nil, err
}

// TokenSource returns a source for the stored token. Refreshed tokens are
// written back to the store.
func (m *Manager) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &persistingSource{
		base:   m.oauth.TokenSource(ctx, tok),
		store:  m.store,
		last:   tok.AccessToken,
		logger: m.logger,
	}, nil
}

// Scope returns the cache scope of the stored login. Different accounts
// get different scopes; refreshing the access token keeps it.
func (m *Manager) Scope(ctx context.Context) (string, error) {
	tok, err := m.store.Load(ctx)
	if err != nil {
		return "", err
	}
	return ScopeOf(tok), nil
}

// ScopeOf derives a cache scope from the refresh token, or from the access
// token for grants without one.
func ScopeOf(tok *oauth2.Token) string {
	secret := tok.RefreshToken
	if secret == "" {
		secret = tok.AccessToken
	}
	sum := sha256.Sum256([]byte(secret))
	return "user-" + hex.EncodeToString(sum[:8])
}

// Logout forgets the stored token.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Delete(ctx); err != nil {
		return err
	}
	m.logger.Info().Msg("Logged out")
	return nil
}

type persistingSource struct {
	base   oauth2.TokenSource
	store  *TokenStore
	logger zerolog.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := s.store.Save(context.Background(), tok); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to persist refreshed token")
		} else {
			s.last = tok.AccessToken
			s.logger.Debug().Time("expiry", tok.Expiry).Msg("Token refreshed")
		}
	}
	return tok, nil
}
