package gantry

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context is the immutable per-request value handed to guards and procedure
// handlers. It carries the resolved user (nil means anonymous) and the raw
// transport handles, passed through for procedures that need lower-level
// access. It is constructed once per inbound request and never mutated:
// derive with WithUser instead.
type Context struct {
	user      *User
	gin       *gin.Context
	requestID string
}

// NewContext builds a request context. The request ID is taken from the
// X-Request-ID header when the caller supplied one.
func NewContext(c *gin.Context, user *User) *Context {
	requestID := ""
	if c != nil {
		requestID = c.GetHeader("X-Request-ID")
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return &Context{user: user, gin: c, requestID: requestID}
}

// User returns the resolved user, or false for an anonymous request.
func (c *Context) User() (*User, bool) {
	return c.user, c.user != nil
}

// RequestID returns the identifier correlating log lines for this request.
func (c *Context) RequestID() string {
	return c.requestID
}

// Gin exposes the raw transport context.
func (c *Context) Gin() *gin.Context {
	return c.gin
}

// Request exposes the raw inbound request, or nil outside a transport.
func (c *Context) Request() *http.Request {
	if c.gin == nil {
		return nil
	}
	return c.gin.Request
}

// StdContext returns the cancellation context riding the request.
func (c *Context) StdContext() context.Context {
	if c.gin != nil && c.gin.Request != nil {
		return c.gin.Request.Context()
	}
	return context.Background()
}

// WithUser derives a new context carrying the given user. The receiver is
// left untouched.
func (c *Context) WithUser(user *User) *Context {
	return &Context{user: user, gin: c.gin, requestID: c.requestID}
}
