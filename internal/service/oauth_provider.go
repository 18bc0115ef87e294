package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OAuthIdentity son los datos de la cuenta externa ya verificados por el proveedor.
type OAuthIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	FullName      string
}

// OAuthProvider valida credenciales de un proveedor externo (Google, Microsoft).
type OAuthProvider interface {
	VerifyIDToken(ctx context.Context, rawIDToken string) (OAuthIdentity, error)
	ExchangeCode(ctx context.Context, code string) (OAuthIdentity, error)
}

type OIDCProviderConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// OIDCProvider implementa OAuthProvider con discovery OIDC.
type OIDCProvider struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
}

// NewOIDCProvider hace discovery contra el issuer; falla si el issuer no responde.
func NewOIDCProvider(ctx context.Context, cfg OIDCProviderConfig) (*OIDCProvider, error) {
	if cfg.Issuer == "" || cfg.ClientID == "" {
		return nil, errors.New("oidc issuer and client id are required")
	}
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	return &OIDCProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

func (p *OIDCProvider) VerifyIDToken(ctx context.Context, rawIDToken string) (OAuthIdentity, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return OAuthIdentity{}, fmt.Errorf("verify id token: %w", err)
	}
	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return OAuthIdentity{}, fmt.Errorf("id token claims: %w", err)
	}
	return OAuthIdentity{
		Subject:       claims.Sub,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		FullName:      claims.Name,
	}, nil
}

func (p *OIDCProvider) ExchangeCode(ctx context.Context, code string) (OAuthIdentity, error) {
	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return OAuthIdentity{}, fmt.Errorf("token exchange: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return OAuthIdentity{}, errors.New("no id_token in token response")
	}
	return p.VerifyIDToken(ctx, rawIDToken)
}
