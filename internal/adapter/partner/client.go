// Package partner implements the client side of partner OAuth2 token
// endpoints: exchanging reciprocal authorization codes and refreshing
// expired partner tokens.
package partner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
)

// TokenEndpointClient talks to a partner's token endpoint.
type TokenEndpointClient interface {
	// ExchangeCode redeems an authorization code for a partner token.
	ExchangeCode(ctx context.Context, partner domain.Partner, code string) (domain.AccessToken, error)
	// Refresh obtains a fresh partner token using a refresh token.
	Refresh(ctx context.Context, partner domain.Partner, refreshToken string) (domain.AccessToken, error)
}

type tokenEndpointClient struct{}

// NewTokenEndpointClient returns a TokenEndpointClient backed by
// golang.org/x/oauth2. HTTP timeouts are a property of the context or an
// http.Client injected via oauth2.HTTPClient, not of this component.
func NewTokenEndpointClient() TokenEndpointClient {
	return tokenEndpointClient{}
}

var _ TokenEndpointClient = tokenEndpointClient{}

func (tokenEndpointClient) ExchangeCode(ctx context.Context, p domain.Partner, code string) (domain.AccessToken, error) {
	token, err := endpointConfig(p).Exchange(ctx, code)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("exchange code with partner %s: %w", p.PartnerID, err)
	}
	return fromOAuth2Token(token), nil
}

func (tokenEndpointClient) Refresh(ctx context.Context, p domain.Partner, refreshToken string) (domain.AccessToken, error) {
	// An already-expired seed token forces an immediate refresh grant.
	seed := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Now().Add(-time.Minute)}
	token, err := endpointConfig(p).TokenSource(ctx, seed).Token()
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("refresh token with partner %s: %w", p.PartnerID, err)
	}
	refreshed := fromOAuth2Token(token)
	if refreshed.RefreshToken == "" {
		// Partners may omit the refresh token on refresh responses;
		// keep the one that worked.
		refreshed.RefreshToken = refreshToken
	}
	return refreshed, nil
}

func endpointConfig(p domain.Partner) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.PreEstablishedRedirectURI,
		Scopes:       p.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.UserAuthorizationURI,
			TokenURL:  p.AccessTokenURI,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func fromOAuth2Token(token *oauth2.Token) domain.AccessToken {
	converted := domain.AccessToken{
		Value:        token.AccessToken,
		TokenType:    token.Type(),
		ExpiresAt:    token.Expiry,
		RefreshToken: token.RefreshToken,
	}
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		converted.Scopes = strings.Fields(scope)
	}
	return converted
}
