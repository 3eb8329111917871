package gantry

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// HTTP is the interface for the HTTP server.
type HTTP interface {
	Use(middlewares ...gin.HandlerFunc) gin.IRoutes

	GET(path string, handlers ...gin.HandlerFunc) gin.IRoutes
	POST(path string, handlers ...gin.HandlerFunc) gin.IRoutes
	PUT(path string, handlers ...gin.HandlerFunc) gin.IRoutes
	DELETE(path string, handlers ...gin.HandlerFunc) gin.IRoutes
	Group(path string, handlers ...gin.HandlerFunc) *gin.RouterGroup

	Router() *gin.Engine
	Serve() error
}

// gHTTP sets up the gin router with the ambient middleware stack: recovery,
// request logging, cookie sessions (OAuth state only), Prometheus metrics
// and OpenTelemetry tracing.
type gHTTP struct {
	*gin.Engine
	config Config
}

// NewHTTP creates the HTTP server.
func NewHTTP(c Config) HTTP {
	if !c.DevMode() {
		gin.SetMode(gin.ReleaseMode)
	}
	e := gin.New()

	e.Use(gin.Recovery())
	e.Use(LogMiddleware)

	store := cookie.NewStore([]byte(c.SessionSecret()))
	e.Use(sessions.Sessions("gantry", store))

	prom := ginprometheus.NewPrometheus("gin")
	prom.Use(e)

	e.Use(otelgin.Middleware(c.Title()))

	return &gHTTP{Engine: e, config: c}
}

// Router exposes the underlying gin engine for controllers and tests.
func (h *gHTTP) Router() *gin.Engine {
	return h.Engine
}

// Serve runs the HTTP router on the configured address.
func (h *gHTTP) Serve() error {
	return h.Run(h.config.Host() + ":" + h.config.Port())
}
