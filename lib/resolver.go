package gantry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gantry/lib/cache"
)

// subjectCacheTTL bounds how long a verified subject is trusted without
// going back to the identity provider.
const subjectCacheTTL = time.Minute

// Resolver turns an inbound request into a Context. Resolution is
// best-effort by construction: its return type cannot represent failure.
// Authentication problems of any sort yield an anonymous context, and the
// "this must be authenticated" decision is left to explicit guards so the
// policy is visible at the call site.
type Resolver struct {
	verifier  Verifier
	directory Directory
	cache     cache.Cache
	log       Logger
}

// NewResolver creates a Resolver. The verifier may be nil when the identity
// provider is not configured or unreachable; the cache may be nil to verify
// every request.
func NewResolver(verifier Verifier, directory Directory, c cache.Cache) *Resolver {
	return &Resolver{verifier: verifier, directory: directory, cache: c, log: Log()}
}

// Resolve produces the per-request context. Steps run strictly in order:
// extract the bearer credential, verify it, then resolve or create the local
// user record. Every failure along the way degrades to anonymous.
func (r *Resolver) Resolve(c *gin.Context) *Context {
	raw := extractBearer(c.GetHeader("Authorization"))
	if raw == "" || r.verifier == nil {
		return NewContext(c, nil)
	}

	ctx := c.Request.Context()

	subject := r.cachedSubject(ctx, raw)
	if subject == nil {
		verified, err := r.verifier.VerifyToken(ctx, raw)
		if err != nil {
			r.log.Debug("Bearer token rejected, continuing as anonymous",
				zap.String("driver", r.verifier.DriverName()),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			return NewContext(c, nil)
		}
		subject = verified
		r.cacheSubject(ctx, raw, subject)
	}

	return NewContext(c, r.resolveUser(ctx, subject))
}

// resolveUser maps a verified subject onto the local user record. First
// sighting creates the record from provider claims; a returning subject only
// gets its last-seen timestamp advanced, so fields set since creation are
// preserved. Directory outages are swallowed: the caller still gets a user
// derived from the verified claims.
func (r *Resolver) resolveUser(ctx context.Context, subject *Subject) *User {
	user, found, err := r.directory.FindByExternalID(ctx, subject.ID)
	if err != nil {
		r.log.Warn("User lookup failed during resolution",
			zap.String("external_id", subject.ID), zap.Error(err))
		return ephemeralUser(subject)
	}

	if found {
		if err := r.directory.Touch(ctx, subject.ID); err != nil {
			r.log.Warn("Failed to advance last-seen timestamp",
				zap.String("external_id", subject.ID), zap.Error(err))
		}
		return user
	}

	if err := r.directory.Upsert(ctx, UserUpsert{
		ExternalID: subject.ID,
		Name:       &subject.Name,
		Email:      &subject.Email,
		Provider:   &subject.Provider,
	}); err != nil {
		r.log.Warn("Failed to create user record during resolution",
			zap.String("external_id", subject.ID), zap.Error(err))
	}

	// Re-read for the authoritative stored record (identity, role and
	// timestamps come from the store, not from claims).
	user, found, err = r.directory.FindByExternalID(ctx, subject.ID)
	if err != nil || !found {
		return ephemeralUser(subject)
	}
	return user
}

// cachedSubject returns a previously verified subject for this token, if any.
func (r *Resolver) cachedSubject(ctx context.Context, raw string) *Subject {
	if r.cache == nil {
		return nil
	}
	data, err := r.cache.Get(ctx, subjectCacheKey(raw))
	if err != nil {
		return nil
	}
	var subject Subject
	if err := json.Unmarshal(data, &subject); err != nil {
		return nil
	}
	return &subject
}

// cacheSubject remembers a verified subject for the TTL window.
func (r *Resolver) cacheSubject(ctx context.Context, raw string, subject *Subject) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(subject)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, subjectCacheKey(raw), data, subjectCacheTTL); err != nil {
		r.log.Debug("Failed to cache verified subject", zap.Error(err))
	}
}

// subjectCacheKey derives the cache key from the token itself. The raw token
// never appears in the cache.
func subjectCacheKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return "subject:" + hex.EncodeToString(sum[:])
}

// ephemeralUser builds an unstored user from verified claims, used while the
// directory is unreachable. ID stays zero to mark that the record never hit
// the store.
func ephemeralUser(subject *Subject) *User {
	now := time.Now().UTC()
	u := &User{
		ExternalID:     subject.ID,
		Role:           RoleUser,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastSignedInAt: now,
	}
	if subject.Name != "" {
		u.Name = &subject.Name
	}
	if subject.Email != "" {
		u.Email = &subject.Email
	}
	if subject.Provider != "" {
		u.Provider = &subject.Provider
	}
	return u
}

// extractBearer pulls the token out of an Authorization header.
func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
