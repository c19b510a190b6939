// Package services implements the storefront's authentication flows: decoding
// Google identity credentials, the OAuth authorization code flow, and the
// user session flash kept in Redis.
package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/ieraasyl/Storefront/pkg/config"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrMissingIDToken is returned when the token response carries no id_token.
var ErrMissingIDToken = errors.New("token response has no id_token")

// OAuthService runs the Google OAuth 2.0 authorization code flow. It is an
// alternative entry to the Identity Services button: the exchanged id_token
// goes through the same DecodeCredential path.
type OAuthService struct {
	config *oauth2.Config
}

// NewOAuthService creates the service with the openid, profile and email
// scopes.
//
// Example:
//
//	oauthSvc := services.NewOAuthService(&cfg.OAuth)
//	if oauthSvc.Enabled() {
//	    r.Get("/auth/google/login", authHandler.GoogleLogin)
//	}
func NewOAuthService(cfg *config.OAuthConfig) *OAuthService {
	return &OAuthService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
	}
}

// Enabled reports whether a client secret is configured. Without one only
// the Identity Services callback can sign users in.
func (s *OAuthService) Enabled() bool {
	return s.config.ClientSecret != ""
}

// GetAuthURL returns the consent screen URL carrying state.
func (s *OAuthService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// ExchangeCode exchanges an authorization code and returns the raw id_token.
func (s *OAuthService) ExchangeCode(ctx context.Context, code string) (string, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		log.Error().Err(err).Msg("Failed to exchange authorization code")
		return "", fmt.Errorf("failed to exchange code: %w", err)
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return "", ErrMissingIDToken
	}
	return idToken, nil
}

// GenerateState returns a random URL-safe value for the OAuth state cookie.
func GenerateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
