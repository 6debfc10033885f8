package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/jw6ventures/volunteerportal/internal/config"
)

// Identity is the verified subject returned by the identity provider.
type Identity struct {
	Subject string
	Email   string
}

// Authenticator performs the OAuth authorization code exchange.
type Authenticator interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (Identity, error)
}

type oidcAuthenticator struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewOIDCAuthenticator discovers the issuer's endpoints and returns an
// Authenticator that verifies ID tokens against it.
func NewOIDCAuthenticator(ctx context.Context, cfg *config.Config) (Authenticator, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OAuth.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}
	return &oidcAuthenticator{
		oauth: oauth2.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  cfg.RedirectURL(),
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.OAuth.ClientID}),
	}, nil
}

func (a *oidcAuthenticator) AuthCodeURL(state string) string {
	return a.oauth.AuthCodeURL(state)
}

func (a *oidcAuthenticator) Exchange(ctx context.Context, code string) (Identity, error) {
	token, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("exchange code: %w", err)
	}
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return Identity{}, errors.New("token response has no id_token")
	}
	idToken, err := a.verifier.Verify(ctx, raw)
	if err != nil {
		return Identity{}, fmt.Errorf("verify id_token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("decode claims: %w", err)
	}
	if claims.Email == "" {
		return Identity{}, errors.New("id_token has no email claim")
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return Identity{}, errors.New("email address is not verified")
	}
	return Identity{Subject: idToken.Subject, Email: claims.Email}, nil
}
