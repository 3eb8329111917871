package gantry

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gantry/lib/cache"
)

// Engine is the main application engine: it owns the core resources and
// provides methods to register procedures and attach raw HTTP routes.
type Engine interface {
	Register(procs ...*Procedure)
	Attach(method, path string, handler gin.HandlerFunc)

	Config() Config
	Web() HTTP
	Database() Database
	Directory() Directory

	Start()
}

// gEngine holds the wired-together application.
type gEngine struct {
	config    Config
	log       Logger
	database  Database
	directory Directory
	auth      Auth
	verifier  Verifier
	cache     cache.Cache
	resolver  *Resolver
	validate  Validate
	health    Health
	http      HTTP
	registry  *Registry

	shutdownTelemetry func(context.Context) error
}

// Option customizes engine construction.
type Option func(*gEngine)

// WithConfig supplies a pre-loaded configuration instead of reading the
// environment.
func WithConfig(c Config) Option {
	return func(e *gEngine) { e.config = c }
}

// WithVerifier overrides the default OIDC bearer verifier, e.g. with one of
// the JWT verifiers from lib/auth.
func WithVerifier(v Verifier) Option {
	return func(e *gEngine) { e.verifier = v }
}

// WithCache overrides the default in-memory subject cache, e.g. with the
// Redis backend from lib/cache.
func WithCache(c cache.Cache) Option {
	return func(e *gEngine) { e.cache = c }
}

// NewEngine initializes a new Engine instance with the necessary components.
// A missing or unreachable identity provider is not fatal: the engine warns
// and serves public procedures with every request resolved as anonymous.
func NewEngine(opts ...Option) (Engine, error) {
	e := &gEngine{log: Log()}
	for _, opt := range opts {
		opt(e)
	}

	if e.config == nil {
		cfg, err := LoadConfig()
		if err != nil {
			return nil, err
		}
		e.config = cfg
	}

	ctx := context.Background()

	e.database = NewDatabase(e.config)
	e.directory = NewDirectory(e.database)
	if err := e.directory.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	if e.verifier == nil && e.config.AuthMode() == "oidc" && e.config.AuthIssuer() != "" {
		auth, err := NewOIDCAuth(ctx, e.config, e.directory)
		if err != nil {
			e.log.Warn("Identity provider unavailable, serving anonymous-only",
				zap.String("issuer", e.config.AuthIssuer()), zap.Error(err))
		} else {
			e.auth = auth
			e.verifier = auth
		}
	}

	if e.cache == nil {
		e.cache = cache.NewMemoryCache()
	}

	e.resolver = NewResolver(e.verifier, e.directory, e.cache)
	e.validate = NewValidate()
	e.health = NewHealth(e.config, e.database)
	e.http = NewHTTP(e.config)
	e.registry = NewRegistry()

	shutdown, err := InitTelemetry(ctx, e.config)
	if err != nil {
		e.log.Warn("Telemetry initialization failed, continuing without export", zap.Error(err))
	} else {
		e.shutdownTelemetry = shutdown
	}

	e.prime()
	return e, nil
}

// prime sets up the default endpoints: health, the hosted login flow when an
// OIDC provider is configured, and the built-in procedures.
func (e *gEngine) prime() {
	e.http.GET("/health", e.health.HealthCheckHandler)

	if e.auth != nil {
		e.http.GET("/auth/login", e.auth.LoginHandler)
		e.http.GET("/auth/callback", e.auth.CallbackHandler)
		e.http.GET("/auth/logout", e.auth.LogoutHandler)
	}

	e.Register(builtinProcedures(e)...)
}

// Register adds procedures to the engine's registry. Registration conflicts
// are wiring bugs, so they abort startup.
func (e *gEngine) Register(procs ...*Procedure) {
	if err := e.registry.Register(procs...); err != nil {
		e.log.Fatal("Failed to register procedures", zap.Error(err))
	}
}

// Attach binds a raw HTTP route outside the procedure registry.
func (e *gEngine) Attach(method, path string, handler gin.HandlerFunc) {
	e.http.Router().Handle(method, path, handler)
}

// Config returns the engine's configuration.
func (e *gEngine) Config() Config { return e.config }

// Web returns the HTTP server.
func (e *gEngine) Web() HTTP { return e.http }

// Database returns the process-wide database handle.
func (e *gEngine) Database() Database { return e.database }

// Directory returns the user directory.
func (e *gEngine) Directory() Directory { return e.directory }

// Start mounts the registered procedures and runs the HTTP server.
func (e *gEngine) Start() {
	e.registry.Mount(e.http.Router(), e.resolver, e.validate)

	e.log.Info("Starting HTTP server",
		zap.String("host", e.config.Host()),
		zap.String("port", e.config.Port()),
		zap.String("version", e.config.Version()))

	if err := e.http.Serve(); err != nil {
		e.log.Fatal("HTTP server stopped", zap.Error(err))
	}
}
