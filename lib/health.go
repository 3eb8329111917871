package gantry

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports liveness and dependency status.
type Health interface {
	HealthCheckHandler(ctx *gin.Context)
}

// gHealth implements the Health interface.
type gHealth struct {
	db      Database
	version string
}

// NewHealth creates the health reporter.
func NewHealth(c Config, db Database) Health {
	return &gHealth{db: db, version: c.Version()}
}

// HealthCheckHandler returns 200 while the process is serving. The database
// is reported but does not fail the check: the system deliberately keeps
// serving public operations in degraded mode.
func (h *gHealth) HealthCheckHandler(ctx *gin.Context) {
	dbStatus := "ok"
	if err := h.db.Ping(ctx.Request.Context()); err != nil {
		dbStatus = "degraded"
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": dbStatus,
		"version":  h.version,
	})
}
