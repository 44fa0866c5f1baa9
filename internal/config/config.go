package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix              = "TRUSTRACE"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "trustrace.db"
	defaultLogLevel        = "info"
	defaultIssuer          = "trustrace"
	defaultAudience        = "trustrace-api"
	defaultTokenTTLMinutes = 24 * 60
	defaultFeedLimit       = 10
	defaultLeaderboard     = 10
	defaultDashboardWindow = 500
	maxCollectionLimit     = 1000
)

// Keys shared with flag bindings.
const (
	KeyHTTPAddress     = "http.address"
	KeyDatabasePath    = "database.path"
	KeyLogLevel        = "log.level"
	KeySigningSecret   = "auth.signing_secret"
	KeyIssuer          = "auth.issuer"
	KeyAudience        = "auth.audience"
	KeyTokenTTLMinutes = "token.ttl_minutes"
	KeyAllowedOrigins  = "cors.allowed_origins"
	KeyFeedLimit       = "feed.limit"
	KeyLeaderboard     = "leaderboard.limit"
	KeyDashboardWindow = "dashboard.window"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress      string
	DatabasePath     string
	LogLevel         string
	SigningSecret    string
	Issuer           string
	Audience         string
	TokenTTL         time.Duration
	AllowedOrigins   []string
	FeedLimit        int
	LeaderboardLimit int
	DashboardWindow  int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault(KeyHTTPAddress, defaultHTTPAddress)
	configViper.SetDefault(KeyDatabasePath, defaultDatabasePath)
	configViper.SetDefault(KeyLogLevel, defaultLogLevel)
	configViper.SetDefault(KeyIssuer, defaultIssuer)
	configViper.SetDefault(KeyAudience, defaultAudience)
	configViper.SetDefault(KeyTokenTTLMinutes, defaultTokenTTLMinutes)
	configViper.SetDefault(KeyAllowedOrigins, []string{})
	configViper.SetDefault(KeyFeedLimit, defaultFeedLimit)
	configViper.SetDefault(KeyLeaderboard, defaultLeaderboard)
	configViper.SetDefault(KeyDashboardWindow, defaultDashboardWindow)
}

// LoadDotEnv copies variables from the given .env files into the process
// environment without overriding variables that are already set. Missing files are
// skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// ReadFile merges an optional config file into viper.
func ReadFile(configViper *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	configViper.SetConfigFile(path)
	if err := configViper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString(KeyHTTPAddress),
		DatabasePath:     configViper.GetString(KeyDatabasePath),
		LogLevel:         configViper.GetString(KeyLogLevel),
		SigningSecret:    configViper.GetString(KeySigningSecret),
		Issuer:           configViper.GetString(KeyIssuer),
		Audience:         configViper.GetString(KeyAudience),
		TokenTTL:         time.Duration(configViper.GetInt(KeyTokenTTLMinutes)) * time.Minute,
		AllowedOrigins:   splitOrigins(configViper.GetStringSlice(KeyAllowedOrigins)),
		FeedLimit:        configViper.GetInt(KeyFeedLimit),
		LeaderboardLimit: configViper.GetInt(KeyLeaderboard),
		DashboardWindow:  configViper.GetInt(KeyDashboardWindow),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// splitOrigins accepts both list values and a single comma-separated env string.
func splitOrigins(values []string) []string {
	origins := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if origin := strings.TrimSpace(part); origin != "" {
				origins = append(origins, origin)
			}
		}
	}
	return origins
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("%s is required", KeySigningSecret)
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("%s is required", KeyDatabasePath)
	}
	if strings.TrimSpace(c.Issuer) == "" {
		return fmt.Errorf("%s is required", KeyIssuer)
	}
	if strings.TrimSpace(c.Audience) == "" {
		return fmt.Errorf("%s is required", KeyAudience)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%s must be positive", KeyTokenTTLMinutes)
	}
	for key, value := range map[string]int{
		KeyFeedLimit:       c.FeedLimit,
		KeyLeaderboard:     c.LeaderboardLimit,
		KeyDashboardWindow: c.DashboardWindow,
	} {
		if value <= 0 || value > maxCollectionLimit {
			return fmt.Errorf("%s must be between 1 and %d", key, maxCollectionLimit)
		}
	}
	return nil
}
