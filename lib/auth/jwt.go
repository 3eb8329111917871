// Package auth provides bearer-token verifier implementations beyond the
// default OIDC one in the core library.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"

	gantry "gantry/lib"
)

// jwksRefreshWindow bounds how long a fetched key set is trusted before the
// provider is asked again.
const jwksRefreshWindow = 24 * time.Hour

// claims carries the profile fields this scaffold cares about on top of the
// registered JWT claims.
type claims struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// jwtVerifier implements gantry.Verifier for providers that hand out plain
// JWT access tokens: either HS256 with a shared secret (Supabase-style) or
// RS256 with keys published at a JWKS endpoint.
type jwtVerifier struct {
	secret  []byte
	jwksURL string

	jwksMu      sync.RWMutex
	jwksSet     jwk.Set
	lastRefresh time.Time
}

// NewSecretVerifier creates a verifier for HS256 tokens signed with a shared
// secret.
func NewSecretVerifier(secret []byte) gantry.Verifier {
	return &jwtVerifier{secret: secret}
}

// NewJWKSVerifier creates a verifier for RS256 tokens whose public keys are
// published at the given JWKS URL. Keys are fetched lazily and cached.
func NewJWKSVerifier(jwksURL string) gantry.Verifier {
	return &jwtVerifier{jwksURL: jwksURL}
}

// DriverName returns the verifier implementation name.
func (v *jwtVerifier) DriverName() string {
	if v.jwksURL != "" {
		return "jwt-jwks"
	}
	return "jwt-secret"
}

// VerifyToken parses and verifies a bearer JWT, mapping its claims onto a
// Subject. Expiry is reported as AUTH_EXPIRED_TOKEN, everything else invalid
// as AUTH_INVALID_TOKEN; the resolver treats both as "anonymous".
func (v *jwtVerifier) VerifyToken(ctx context.Context, raw string) (*gantry.Subject, error) {
	token, err := jwt.ParseWithClaims(raw, &claims{}, v.keyFunc(ctx))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, gantry.NewError(gantry.KindAuthExpiredToken, gantry.WithCause(err))
		}
		return nil, gantry.NewError(gantry.KindAuthInvalidToken, gantry.WithCause(err))
	}
	if !token.Valid {
		return nil, gantry.NewError(gantry.KindAuthInvalidToken)
	}

	c, ok := token.Claims.(*claims)
	if !ok || c.Subject == "" {
		return nil, gantry.NewError(gantry.KindAuthInvalidToken, gantry.WithMessage("token carries no subject"))
	}

	provider := c.Provider
	if provider == "" {
		provider = v.DriverName()
	}

	return &gantry.Subject{
		ID:       c.Subject,
		Email:    c.Email,
		Name:     c.Name,
		Provider: provider,
	}, nil
}

// keyFunc resolves the verification key for a parsed token header.
func (v *jwtVerifier) keyFunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		switch token.Method.Alg() {
		case jwt.SigningMethodHS256.Alg():
			if len(v.secret) == 0 {
				return nil, errors.New("no shared secret configured")
			}
			return v.secret, nil

		case jwt.SigningMethodRS256.Alg():
			kid, ok := token.Header["kid"].(string)
			if !ok {
				return nil, errors.New("no key ID in token header")
			}

			set, err := v.keySet(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to get JWKS: %w", err)
			}

			key, found := set.LookupKeyID(kid)
			if !found {
				return nil, fmt.Errorf("key not found: %s", kid)
			}

			var rawKey any
			if err := key.Raw(&rawKey); err != nil {
				return nil, fmt.Errorf("failed to get raw key: %w", err)
			}
			return rawKey, nil

		default:
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
	}
}

// keySet returns the cached JWKS, refreshing it when the window lapses.
func (v *jwtVerifier) keySet(ctx context.Context) (jwk.Set, error) {
	v.jwksMu.RLock()
	if v.jwksSet != nil && time.Since(v.lastRefresh) < jwksRefreshWindow {
		defer v.jwksMu.RUnlock()
		return v.jwksSet, nil
	}
	v.jwksMu.RUnlock()

	if v.jwksURL == "" {
		return nil, errors.New("no JWKS URL configured")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	set, err := jwk.Fetch(fetchCtx, v.jwksURL)
	if err != nil {
		return nil, err
	}

	v.jwksMu.Lock()
	v.jwksSet = set
	v.lastRefresh = time.Now()
	v.jwksMu.Unlock()

	return set, nil
}
