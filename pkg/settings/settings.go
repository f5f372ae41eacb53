// Package settings stores user preferences in a Redis hash.
package settings

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// HashKey is the Redis hash holding all settings.
const HashKey = "plashr:settings"

// Setting names, used as hash fields.
const (
	KeyTheme           = "theme"
	KeyLayout          = "layout"
	KeyDownloadQuality = "download_quality"
	KeyLocale          = "locale"
)

// Allowed values.
const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"

	LayoutCard = "card"
	LayoutList = "list"
	LayoutGrid = "grid"

	QualityRaw     = "raw"
	QualityFull    = "full"
	QualityRegular = "regular"
	QualitySmall   = "small"
)

// ErrUnknownKey is returned for setting names that do not exist.
var ErrUnknownKey = errors.New("unknown setting")

// Settings are the user's preferences.
type Settings struct {
	Theme           string `redis:"theme" json:"theme" validate:"oneof=system light dark"`
	Layout          string `redis:"layout" json:"layout" validate:"oneof=card list grid"`
	DownloadQuality string `redis:"download_quality" json:"download_quality" validate:"oneof=raw full regular small"`
	Locale          string `redis:"locale" json:"locale" validate:"bcp47_language_tag"`
}

// Defaults returns the settings of a fresh install.
func Defaults() Settings {
	return Settings{
		Theme:           ThemeSystem,
		Layout:          LayoutCard,
		DownloadQuality: QualityFull,
		Locale:          "en",
	}
}

// Keys lists the setting names in display order.
func Keys() []string {
	return []string{KeyTheme, KeyLayout, KeyDownloadQuality, KeyLocale}
}

// Value returns the value of a setting by name.
func (s Settings) Value(key string) (string, error) {
	switch key {
	case KeyTheme:
		return s.Theme, nil
	case KeyLayout:
		return s.Layout, nil
	case KeyDownloadQuality:
		return s.DownloadQuality, nil
	case KeyLocale:
		return s.Locale, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
}

// Store reads and writes settings.
type Store struct {
	redis    *redis.Client
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewStore creates a settings store.
func NewStore(redisClient *redis.Client, logger zerolog.Logger) *Store {
	return &Store{
		redis:    redisClient,
		validate: validator.New(),
		logger:   logger.With().Str("component", "settings").Logger(),
	}
}

// Get returns the stored settings with defaults for missing fields.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	settings := Defaults()

	var stored Settings
	if err := s.redis.HGetAll(ctx, HashKey).Scan(&stored); err != nil {
		return settings, fmt.Errorf("read settings: %w", err)
	}

	if stored.Theme != "" {
		settings.Theme = stored.Theme
	}
	if stored.Layout != "" {
		settings.Layout = stored.Layout
	}
	if stored.DownloadQuality != "" {
		settings.DownloadQuality = stored.DownloadQuality
	}
	if stored.Locale != "" {
		settings.Locale = stored.Locale
	}
	return settings, nil
}

// Set validates and stores one setting.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if !slices.Contains(Keys(), key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	candidate := Defaults()
	switch key {
	case KeyTheme:
		candidate.Theme = value
	case KeyLayout:
		candidate.Layout = value
	case KeyDownloadQuality:
		candidate.DownloadQuality = value
	case KeyLocale:
		candidate.Locale = value
	}
	if err := s.validate.Struct(candidate); err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}

	if err := s.redis.HSet(ctx, HashKey, key, value).Err(); err != nil {
		return fmt.Errorf("store setting %s: %w", key, err)
	}

	s.logger.Info().Str("key", key).Str("value", value).Msg("Setting changed")
	return nil
}

// SetTheme stores the theme.
func (s *Store) SetTheme(ctx context.Context, theme string) error {
	return s.Set(ctx, KeyTheme, theme)
}

// SetLayout stores the photo list layout.
func (s *Store) SetLayout(ctx context.Context, layout string) error {
	return s.Set(ctx, KeyLayout, layout)
}

// SetDownloadQuality stores the download quality.
func (s *Store) SetDownloadQuality(ctx context.Context, quality string) error {
	return s.Set(ctx, KeyDownloadQuality, quality)
}

// SetLocale stores the message locale.
func (s *Store) SetLocale(ctx context.Context, locale string) error {
	return s.Set(ctx, KeyLocale, locale)
}

// Reset removes all stored settings.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.redis.Del(ctx, HashKey).Err(); err != nil {
		return fmt.Errorf("reset settings: %w", err)
	}
	s.logger.Info().Msg("Settings reset")
	return nil
}
