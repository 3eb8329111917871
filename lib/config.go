package gantry

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config exposes the application configuration to the rest of the system.
type Config interface {
	Host() string
	Port() string
	Title() string
	Version() string
	DevMode() bool

	AuthMode() string
	AuthIssuer() string
	AuthClientID() string
	AuthClientSecret() string
	AuthCallback() string
	AuthJWTSecret() string
	AuthJWKSURL() string

	SessionSecret() string
	RedisURL() string
	TelemetryEndpoint() string

	DSN() string
}

// configFile mirrors the optional YAML overlay. Any field left empty in the
// file keeps the value taken from the environment.
type configFile struct {
	Host    string `yaml:"host"`
	Port    string `yaml:"port"`
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`

	Auth struct {
		Mode         string `yaml:"mode"`
		Issuer       string `yaml:"issuer"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		Callback     string `yaml:"callback"`
		JWTSecret    string `yaml:"jwt_secret"`
		JWKSURL      string `yaml:"jwks_url"`
	} `yaml:"auth"`

	Session struct {
		Secret string `yaml:"secret"`
	} `yaml:"session"`

	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`

	Telemetry struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"telemetry"`

	Postgres struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		DB       string `yaml:"db"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"postgres"`
}

// gConfig implements the Config interface.
type gConfig struct {
	host    string
	port    string
	title   string
	version string
	env     string

	authMode         string
	authIssuer       string
	authClientID     string
	authClientSecret string
	authCallback     string
	authJWTSecret    string
	authJWKSURL      string

	sessionSecret     string
	redisURL          string
	telemetryEndpoint string

	pgHost     string
	pgPort     string
	pgDB       string
	pgUser     string
	pgPassword string
}

func (c *gConfig) Host() string              { return c.host }
func (c *gConfig) Port() string              { return c.port }
func (c *gConfig) Title() string             { return c.title }
func (c *gConfig) Version() string           { return c.version }
func (c *gConfig) DevMode() bool             { return c.env == "development" }
func (c *gConfig) AuthMode() string          { return c.authMode }
func (c *gConfig) AuthIssuer() string        { return c.authIssuer }
func (c *gConfig) AuthClientID() string      { return c.authClientID }
func (c *gConfig) AuthClientSecret() string  { return c.authClientSecret }
func (c *gConfig) AuthCallback() string      { return c.authCallback }
func (c *gConfig) AuthJWTSecret() string     { return c.authJWTSecret }
func (c *gConfig) AuthJWKSURL() string       { return c.authJWKSURL }
func (c *gConfig) SessionSecret() string     { return c.sessionSecret }
func (c *gConfig) RedisURL() string          { return c.redisURL }
func (c *gConfig) TelemetryEndpoint() string { return c.telemetryEndpoint }

// DSN returns the Data Source Name for connecting to the PostgreSQL database.
func (c *gConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.pgHost,
		c.pgUser,
		c.pgPassword,
		c.pgDB,
		c.pgPort,
	)
}

// LoadConfig reads configuration from environment variables, applies the
// optional YAML overlay named by GANTRY_CONFIG, and validates the result.
func LoadConfig() (Config, error) {
	c := &gConfig{
		host:    envOr("API_HOST", "0.0.0.0"),
		port:    envOr("API_PORT", "8080"),
		title:   envOr("API_TITLE", "gantry"),
		version: envOr("API_VERSION", "dev"),
		env:     os.Getenv("GANTRY_ENV"),

		authMode:         envOr("AUTH_MODE", "oidc"),
		authIssuer:       os.Getenv("AUTH_ISSUER"),
		authClientID:     os.Getenv("AUTH_CLIENT_ID"),
		authClientSecret: os.Getenv("AUTH_CLIENT_SECRET"),
		authCallback:     os.Getenv("AUTH_CALLBACK"),
		authJWTSecret:    os.Getenv("AUTH_JWT_SECRET"),
		authJWKSURL:      os.Getenv("AUTH_JWKS_URL"),

		sessionSecret:     envOr("SESSION_SECRET", "gantry-dev-session-secret"),
		redisURL:          os.Getenv("REDIS_URL"),
		telemetryEndpoint: os.Getenv("OTEL_EXPORTER_ENDPOINT"),

		pgHost:     envOr("POSTGRES_HOST", "localhost"),
		pgPort:     envOr("POSTGRES_PORT", "5432"),
		pgDB:       envOr("POSTGRES_DB", "gantry"),
		pgUser:     envOr("POSTGRES_USER", "postgres"),
		pgPassword: os.Getenv("POSTGRES_PASSWORD"),
	}

	if path := os.Getenv("GANTRY_CONFIG"); path != "" {
		if err := c.applyFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Validator only sees exported fields, so check a snapshot of the
	// required values rather than the config struct itself.
	snapshot := struct {
		Host     string `validate:"required"`
		Port     string `validate:"required,numeric"`
		AuthMode string `validate:"omitempty,oneof=oidc jwt"`
		PGHost   string `validate:"required"`
		PGPort   string `validate:"required,numeric"`
		PGDB     string `validate:"required"`
		PGUser   string `validate:"required"`
	}{c.host, c.port, c.authMode, c.pgHost, c.pgPort, c.pgDB, c.pgUser}

	v := validator.New()
	if err := v.Struct(snapshot); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// applyFile overlays non-empty values from a YAML config file.
func (c *gConfig) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}

	overlay(&c.host, f.Host)
	overlay(&c.port, f.Port)
	overlay(&c.title, f.Title)
	overlay(&c.version, f.Version)
	overlay(&c.env, f.Env)
	overlay(&c.authMode, f.Auth.Mode)
	overlay(&c.authIssuer, f.Auth.Issuer)
	overlay(&c.authClientID, f.Auth.ClientID)
	overlay(&c.authClientSecret, f.Auth.ClientSecret)
	overlay(&c.authCallback, f.Auth.Callback)
	overlay(&c.authJWTSecret, f.Auth.JWTSecret)
	overlay(&c.authJWKSURL, f.Auth.JWKSURL)
	overlay(&c.sessionSecret, f.Session.Secret)
	overlay(&c.redisURL, f.Redis.URL)
	overlay(&c.telemetryEndpoint, f.Telemetry.Endpoint)
	overlay(&c.pgHost, f.Postgres.Host)
	overlay(&c.pgPort, f.Postgres.Port)
	overlay(&c.pgDB, f.Postgres.DB)
	overlay(&c.pgUser, f.Postgres.User)
	overlay(&c.pgPassword, f.Postgres.Password)
	return nil
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
