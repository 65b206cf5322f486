package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/florianilch/allegro-rest/internal/tokenstore"
)

// envPrefix marks environment variables read into the config.
// Nested keys use a double underscore: ALLEGRO_CLIENT__REDIRECT_URI -> client.redirect_uri.
const envPrefix = "ALLEGRO_"

// TokenStorageType selects where tokens are persisted.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
	TokenStorageTypeEnv     TokenStorageType = "env"
)

// Config is the CLI configuration.
type Config struct {
	Client      ClientConfig `koanf:"client"`
	Environment string       `koanf:"environment" validate:"oneof=production sandbox"`
	Auth        AuthConfig   `koanf:"auth"`
	Log         LogConfig    `koanf:"log"`
}

// ClientConfig holds the registered application credentials.
type ClientConfig struct {
	ID          string `koanf:"id" validate:"required"`
	Secret      string `koanf:"secret" validate:"required"`
	RedirectURI string `koanf:"redirect_uri" validate:"required,url"`
}

// AuthConfig controls token persistence and the login flow.
type AuthConfig struct {
	Storage        TokenStorageType `koanf:"storage" validate:"oneof=file keyring env"`
	File           string           `koanf:"file" validate:"required_if=Storage file"`
	KeyringService string           `koanf:"keyring_service" validate:"required_if=Storage keyring"`
	KeyringUser    string           `koanf:"keyring_user" validate:"required_if=Storage keyring"`

	// Tokens for env storage, e.g. ALLEGRO_AUTH__ACCESS_TOKEN.
	AccessToken  string `koanf:"access_token"`
	RefreshToken string `koanf:"refresh_token"`

	// Callback starts a local server on a loopback redirect URI during login.
	Callback bool `koanf:"callback"`
}

// LogConfig configures process logging.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json otel otlp"`
}

// NewTokenStore returns the store selected by Storage.
func (c AuthConfig) NewTokenStore() (tokenstore.Store, error) {
	switch c.Storage {
	case TokenStorageTypeFile:
		return tokenstore.NewFile(c.File), nil
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyring(c.KeyringService, c.KeyringUser), nil
	case TokenStorageTypeEnv:
		return tokenstore.NewEnv(c.AccessToken, c.RefreshToken), nil
	default:
		return nil, fmt.Errorf("unknown token storage %q", c.Storage)
	}
}

// DefaultConfigPath returns the config file used when none is given.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "allegro", "config.toml")
}

func defaults() map[string]any {
	tokenFile := "allegro-token.json"
	if dir, err := os.UserConfigDir(); err == nil {
		tokenFile = filepath.Join(dir, "allegro", "token.json")
	}

	return map[string]any{
		"environment":          "production",
		"auth.storage":         string(TokenStorageTypeFile),
		"auth.file":            tokenFile,
		"auth.keyring_service": "allegro-rest",
		"auth.keyring_user":    "default",
		"auth.callback":        true,
		"log.level":            "info",
		"log.format":           "text",
	}
}

// LoadConfig layers defaults, the TOML file at path, ALLEGRO_* environment
// variables and overrides (usually CLI flags), in that order, then validates
// the result. An empty path skips the file; a missing default file is not an
// error, a missing explicit file is.
func LoadConfig(path string, overrides map[string]any, environ func() []string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			if !(errors.Is(err, os.ErrNotExist) && path == DefaultConfigPath()) {
				return nil, fmt.Errorf("loading config file %s: %w", path, err)
			}
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: transformEnv,
		EnvironFunc:   environ,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("loading overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	// Level and format names are case-insensitive, like slog.Level.UnmarshalText.
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func transformEnv(key, value string) (string, any) {
	key = strings.TrimPrefix(key, envPrefix)
	if key == "" {
		return "", nil
	}
	return strings.ReplaceAll(strings.ToLower(key), "__", "."), value
}
