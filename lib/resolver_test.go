package gantry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"gantry/lib/cache"
)

// fakeVerifier returns a fixed subject or error and counts invocations.
type fakeVerifier struct {
	subject *Subject
	err     error
	calls   int
}

func (f *fakeVerifier) VerifyToken(_ context.Context, _ string) (*Subject, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.subject, nil
}

func (f *fakeVerifier) DriverName() string { return "fake" }

// fakeDirectory keeps users in a map and records write traffic.
type fakeDirectory struct {
	users    map[string]*User
	touched  []string
	upserted []UserUpsert
	failFind bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[string]*User)}
}

func (f *fakeDirectory) EnsureSchema(_ context.Context) error { return nil }

func (f *fakeDirectory) FindByExternalID(_ context.Context, externalID string) (*User, bool, error) {
	if f.failFind {
		return nil, false, NewError(KindDatabase)
	}
	u, ok := f.users[externalID]
	if !ok {
		return nil, false, nil
	}
	copied := *u
	return &copied, true, nil
}

func (f *fakeDirectory) Upsert(_ context.Context, up UserUpsert) error {
	f.upserted = append(f.upserted, up)

	u, ok := f.users[up.ExternalID]
	if !ok {
		u = &User{ID: int64(len(f.users) + 1), ExternalID: up.ExternalID, Role: RoleUser}
		f.users[up.ExternalID] = u
	}
	if up.Name != nil {
		u.Name = up.Name
	}
	if up.Email != nil {
		u.Email = up.Email
	}
	if up.Provider != nil {
		u.Provider = up.Provider
	}
	if up.Role != nil {
		u.Role = *up.Role
	}
	return nil
}

func (f *fakeDirectory) Touch(_ context.Context, externalID string) error {
	f.touched = append(f.touched, externalID)
	return nil
}

func (f *fakeDirectory) List(_ context.Context) ([]User, error) {
	out := make([]User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeDirectory) SetRole(_ context.Context, externalID, role string) error {
	u, ok := f.users[externalID]
	if !ok {
		return NewError(KindNotFound)
	}
	u.Role = role
	return nil
}

// requestContext builds a gin context carrying an optional bearer token.
func requestContext(token string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/rpc/whoami", nil)
	if token != "" {
		c.Request.Header.Set("Authorization", "Bearer "+token)
	}
	return c
}

func TestResolveWithoutHeaderIsAnonymous(t *testing.T) {
	verifier := &fakeVerifier{subject: &Subject{ID: "ext-1"}}
	r := NewResolver(verifier, newFakeDirectory(), nil)

	rc := r.Resolve(requestContext(""))
	if _, ok := rc.User(); ok {
		t.Error("Expected anonymous context without an Authorization header")
	}
	if verifier.calls != 0 {
		t.Errorf("Expected verifier to be skipped, got %d calls", verifier.calls)
	}
}

func TestResolveWithoutVerifierIsAnonymous(t *testing.T) {
	r := NewResolver(nil, newFakeDirectory(), nil)

	rc := r.Resolve(requestContext("some-token"))
	if _, ok := rc.User(); ok {
		t.Error("Expected anonymous context when no verifier is configured")
	}
}

func TestResolveRejectedTokenIsAnonymous(t *testing.T) {
	verifier := &fakeVerifier{err: NewError(KindAuthInvalidToken)}
	directory := newFakeDirectory()
	r := NewResolver(verifier, directory, nil)

	rc := r.Resolve(requestContext("garbage"))
	if _, ok := rc.User(); ok {
		t.Error("Expected anonymous context for a rejected token")
	}
	if len(directory.upserted) != 0 {
		t.Error("Expected no directory writes for a rejected token")
	}
}

func TestResolveFirstSightingCreatesUser(t *testing.T) {
	verifier := &fakeVerifier{subject: &Subject{
		ID: "ext-1", Email: "jane@example.com", Name: "Jane", Provider: "google",
	}}
	directory := newFakeDirectory()
	r := NewResolver(verifier, directory, nil)

	rc := r.Resolve(requestContext("valid"))
	user, ok := rc.User()
	if !ok {
		t.Fatal("Expected a resolved user")
	}
	if user.ExternalID != "ext-1" {
		t.Errorf("Expected external ID 'ext-1', got '%s'", user.ExternalID)
	}
	if user.ID == 0 {
		t.Error("Expected the stored record, got an ephemeral one")
	}

	if len(directory.upserted) != 1 {
		t.Fatalf("Expected one upsert, got %d", len(directory.upserted))
	}
	up := directory.upserted[0]
	if up.Name == nil || *up.Name != "Jane" {
		t.Errorf("Expected name claim in the upsert, got %v", up.Name)
	}
	if up.Role != nil {
		t.Error("Expected resolution to never write the role")
	}
}

func TestResolveReturningUserOnlyTouches(t *testing.T) {
	verifier := &fakeVerifier{subject: &Subject{ID: "ext-1", Name: "New Claim Name"}}
	directory := newFakeDirectory()
	stored := "Stored Name"
	directory.users["ext-1"] = &User{ID: 7, ExternalID: "ext-1", Name: &stored, Role: RoleAdmin}
	r := NewResolver(verifier, directory, nil)

	rc := r.Resolve(requestContext("valid"))
	user, ok := rc.User()
	if !ok {
		t.Fatal("Expected a resolved user")
	}
	if user.Name == nil || *user.Name != "Stored Name" {
		t.Error("Expected stored profile fields to be preserved over fresh claims")
	}
	if user.Role != RoleAdmin {
		t.Errorf("Expected stored role to survive, got '%s'", user.Role)
	}

	if len(directory.upserted) != 0 {
		t.Errorf("Expected no upserts for a returning user, got %d", len(directory.upserted))
	}
	if len(directory.touched) != 1 || directory.touched[0] != "ext-1" {
		t.Errorf("Expected exactly one touch for 'ext-1', got %v", directory.touched)
	}
}

func TestResolveDirectoryOutageYieldsEphemeralUser(t *testing.T) {
	verifier := &fakeVerifier{subject: &Subject{ID: "ext-1", Email: "jane@example.com"}}
	directory := newFakeDirectory()
	directory.failFind = true
	r := NewResolver(verifier, directory, nil)

	rc := r.Resolve(requestContext("valid"))
	user, ok := rc.User()
	if !ok {
		t.Fatal("Expected a user even while the directory is down")
	}
	if user.ID != 0 {
		t.Errorf("Expected ephemeral user with zero ID, got %d", user.ID)
	}
	if user.Role != RoleUser {
		t.Errorf("Expected ephemeral users to be plain users, got '%s'", user.Role)
	}
	if user.Email == nil || *user.Email != "jane@example.com" {
		t.Error("Expected claims to be carried on the ephemeral user")
	}
}

func TestResolveCachesVerifiedSubjects(t *testing.T) {
	verifier := &fakeVerifier{subject: &Subject{ID: "ext-1"}}
	r := NewResolver(verifier, newFakeDirectory(), cache.NewMemoryCache())

	r.Resolve(requestContext("same-token"))
	r.Resolve(requestContext("same-token"))

	if verifier.calls != 1 {
		t.Errorf("Expected one verification for a repeated token, got %d", verifier.calls)
	}
}

func TestExtractBearer(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Basic dXNlcjpwYXNz", ""},
		{"abc123", ""},
		{"Bearer  spaced ", "spaced"},
	}

	for _, tc := range cases {
		if got := extractBearer(tc.header); got != tc.want {
			t.Errorf("Expected '%s' for header '%s', got '%s'", tc.want, tc.header, got)
		}
	}
}
