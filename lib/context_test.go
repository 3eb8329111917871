package gantry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNewContextGeneratesRequestID(t *testing.T) {
	rc := NewContext(nil, nil)
	if rc.RequestID() == "" {
		t.Error("Expected a generated request ID")
	}

	other := NewContext(nil, nil)
	if rc.RequestID() == other.RequestID() {
		t.Error("Expected distinct request IDs per context")
	}
}

func TestNewContextHonorsRequestIDHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("X-Request-ID", "caller-supplied")

	rc := NewContext(c, nil)
	if rc.RequestID() != "caller-supplied" {
		t.Errorf("Expected 'caller-supplied', got '%s'", rc.RequestID())
	}
}

func TestContextUser(t *testing.T) {
	anon := NewContext(nil, nil)
	if _, ok := anon.User(); ok {
		t.Error("Expected no user on an anonymous context")
	}

	authed := NewContext(nil, &User{ID: 1, ExternalID: "ext-1"})
	user, ok := authed.User()
	if !ok {
		t.Fatal("Expected a user on an authenticated context")
	}
	if user.ExternalID != "ext-1" {
		t.Errorf("Expected external ID 'ext-1', got '%s'", user.ExternalID)
	}
}

func TestWithUserDerivesNewContext(t *testing.T) {
	base := NewContext(nil, nil)
	derived := base.WithUser(&User{ID: 1})

	if _, ok := base.User(); ok {
		t.Error("Expected the original context to stay anonymous")
	}
	if _, ok := derived.User(); !ok {
		t.Error("Expected the derived context to carry the user")
	}
	if base.RequestID() != derived.RequestID() {
		t.Error("Expected the derived context to keep the request ID")
	}
}

func TestStdContextWithoutTransport(t *testing.T) {
	rc := NewContext(nil, nil)
	if rc.StdContext() == nil {
		t.Error("Expected a usable context outside a transport")
	}
	if rc.Request() != nil {
		t.Error("Expected no raw request outside a transport")
	}
}
