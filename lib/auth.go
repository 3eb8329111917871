package gantry

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Subject is the verified identity record handed back by the identity
// provider: a stable subject identifier plus profile claims.
type Subject struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Verifier verifies a bearer credential against the identity provider.
// Implementations live in lib/auth; the OIDC implementation below is the
// default.
type Verifier interface {
	VerifyToken(ctx context.Context, raw string) (*Subject, error)
	DriverName() string
}

// Auth couples bearer verification with the hosted OAuth2 login flow.
type Auth interface {
	Verifier
	LoginHandler(ctx *gin.Context)
	CallbackHandler(ctx *gin.Context)
	LogoutHandler(ctx *gin.Context)
}

// gAuth implements Auth against any OIDC-compliant identity provider.
type gAuth struct {
	oauth     oauth2.Config
	provider  *oidc.Provider
	verifier  *oidc.IDTokenVerifier
	directory Directory
}

// NewOIDCAuth discovers the OIDC provider at the configured issuer and wires
// the OAuth2 authorization-code flow. Discovery needs the network, so this
// can fail; callers are expected to degrade to anonymous-only operation
// rather than abort.
func NewOIDCAuth(ctx context.Context, c Config, directory Directory) (Auth, error) {
	provider, err := oidc.NewProvider(ctx, c.AuthIssuer())
	if err != nil {
		return nil, err
	}

	oauth := oauth2.Config{
		ClientID:     c.AuthClientID(),
		ClientSecret: c.AuthClientSecret(),
		RedirectURL:  c.AuthCallback(),
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	return &gAuth{
		oauth:     oauth,
		provider:  provider,
		verifier:  provider.Verifier(&oidc.Config{ClientID: c.AuthClientID()}),
		directory: directory,
	}, nil
}

// DriverName returns the verifier implementation name.
func (a *gAuth) DriverName() string {
	return "oidc"
}

// VerifyToken verifies a raw bearer token as an OIDC ID token and maps its
// claims onto a Subject.
func (a *gAuth) VerifyToken(ctx context.Context, raw string) (*Subject, error) {
	idToken, err := a.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, NewError(KindAuthInvalidToken, WithCause(err))
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, NewError(KindAuthInvalidToken, WithMessage("token claims are malformed"), WithCause(err))
	}

	return &Subject{
		ID:       idToken.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Provider: a.DriverName(),
	}, nil
}

// LoginHandler initiates the OAuth2 authorization code flow by redirecting
// the user to the identity provider.
func (a *gAuth) LoginHandler(ctx *gin.Context) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		e := Coerce(err, KindInternal)
		ctx.JSON(e.Status, e.Envelope())
		return
	}
	state := base64.StdEncoding.EncodeToString(b)

	session := sessions.Default(ctx)
	session.Set("state", state)
	if err := session.Save(); err != nil {
		e := Coerce(err, KindInternal)
		ctx.JSON(e.Status, e.Envelope())
		return
	}

	ctx.Redirect(http.StatusTemporaryRedirect, a.oauth.AuthCodeURL(state))
}

// CallbackHandler completes the OAuth2 flow: checks the state parameter,
// exchanges the authorization code, verifies the ID token, records the user
// in the directory, and hands the access token to the client.
func (a *gAuth) CallbackHandler(ctx *gin.Context) {
	session := sessions.Default(ctx)
	if ctx.Query("state") != session.Get("state") {
		e := NewError(KindInvalidInput, WithMessage("invalid state parameter"))
		ctx.JSON(e.Status, e.Envelope())
		return
	}

	token, err := a.oauth.Exchange(ctx.Request.Context(), ctx.Query("code"))
	if err != nil {
		e := NewError(KindAuthInvalidCredentials,
			WithMessage("failed to exchange the authorization code for a token"), WithCause(err))
		ctx.JSON(e.Status, e.Envelope())
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		e := NewError(KindExternalService, WithMessage("the provider returned no id_token"))
		ctx.JSON(e.Status, e.Envelope())
		return
	}

	subject, err := a.VerifyToken(ctx.Request.Context(), rawIDToken)
	if err != nil {
		e := Coerce(err, KindAuthInvalidToken)
		ctx.JSON(e.Status, e.Envelope())
		return
	}

	// Record the login; a store outage must not break the flow.
	if err := a.directory.Upsert(ctx.Request.Context(), UserUpsert{
		ExternalID: subject.ID,
		Name:       &subject.Name,
		Email:      &subject.Email,
		Provider:   &subject.Provider,
	}); err != nil {
		Log().Warn("Failed to record login in user directory",
			zap.String("external_id", subject.ID), zap.Error(err))
	}

	session.Set("access_token", rawIDToken)
	if err := session.Save(); err != nil {
		e := Coerce(err, KindInternal)
		ctx.JSON(e.Status, e.Envelope())
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": rawIDToken,
		"subject":     subject,
	})
}

// LogoutHandler clears the local session.
func (a *gAuth) LogoutHandler(ctx *gin.Context) {
	session := sessions.Default(ctx)
	session.Clear()
	if err := session.Save(); err != nil {
		e := Coerce(err, KindInternal)
		ctx.JSON(e.Status, e.Envelope())
		return
	}
	ctx.Redirect(http.StatusTemporaryRedirect, "/")
}
