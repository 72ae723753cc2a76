package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
	"github.com/skillbridge/skillbridge-oauth/internal/repository"
)

// Grant types accepted at the token endpoint.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
)

// GrantRequest carries the parsed parameters of a token endpoint call.
type GrantRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	RefreshToken string
	Username     string
	Password     string
	Scopes       []string
}

// TokenResponse is the token endpoint's success body.
type TokenResponse struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	Scopes       []string `json:"scope,omitempty"`
}

// TokenGrantService issues and validates first-party tokens. Tokens are
// opaque random values; all state lives in the token store.
type TokenGrantService struct {
	clients repository.ClientRegistry
	tokens  repository.TokenStore
	users   UserDirectory
	logger  *zap.Logger

	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewTokenGrantService(
	clients repository.ClientRegistry,
	tokens repository.TokenStore,
	users UserDirectory,
	accessTokenTTL, refreshTokenTTL time.Duration,
	logger *zap.Logger,
) *TokenGrantService {
	return &TokenGrantService{
		clients:         clients,
		tokens:          tokens,
		users:           users,
		logger:          logger,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// Grant runs the requested grant flow and returns the issued token pair.
// Failures surface as *OAuthError with the RFC 6749 error code; anything
// else is a backend failure the handler maps to 503.
func (s *TokenGrantService) Grant(ctx context.Context, req GrantRequest) (TokenResponse, error) {
	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return TokenResponse{}, err
	}
	if !client.SupportsGrantType(req.GrantType) {
		return TokenResponse{}, &OAuthError{
			Status:      http.StatusBadRequest,
			Code:        "unauthorized_client",
			Description: fmt.Sprintf("client is not authorized for grant type %q", req.GrantType),
		}
	}

	switch req.GrantType {
	case GrantAuthorizationCode:
		return s.grantAuthorizationCode(ctx, client, req)
	case GrantRefreshToken:
		return s.grantRefreshToken(ctx, client, req)
	case GrantClientCredentials:
		return s.grantClientCredentials(ctx, client, req)
	case GrantPassword:
		return s.grantPassword(ctx, client, req)
	default:
		return TokenResponse{}, &OAuthError{
			Status:      http.StatusBadRequest,
			Code:        "unsupported_grant_type",
			Description: fmt.Sprintf("grant type %q is not supported", req.GrantType),
		}
	}
}

// Authorize issues a single-use authorization code for an authenticated
// end user, validating the client and redirect URI first.
func (s *TokenGrantService) Authorize(ctx context.Context, clientID, redirectURI string, scopes []string, user domain.User) (string, error) {
	client, err := s.clients.LoadClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", &OAuthError{
				Status:      http.StatusBadRequest,
				Code:        "invalid_client",
				Description: "unknown client",
			}
		}
		return "", fmt.Errorf("load client: %w", err)
	}
	if redirectURI != "" && !client.AllowsRedirectURI(redirectURI) {
		return "", &OAuthError{
			Status:      http.StatusBadRequest,
			Code:        "invalid_grant",
			Description: "redirect_uri is not registered for the client",
		}
	}
	if len(scopes) == 0 {
		scopes = client.Scopes
	}

	code, err := randomCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	auth := domain.Authentication{
		ClientID:    client.ClientID,
		UserName:    user.UserName,
		Scopes:      scopes,
		GrantType:   GrantAuthorizationCode,
		RedirectURI: redirectURI,
		Authorities: user.Authorities,
	}
	if err := s.tokens.StoreAuthorizationCode(ctx, code, auth); err != nil {
		return "", fmt.Errorf("store authorization code: %w", err)
	}
	s.log().Info("authorization code issued",
		zap.String("client_id", client.ClientID),
		zap.String("user_name", user.UserName))
	return code, nil
}

// ValidateBearer resolves a bearer token value to its stored record,
// rejecting unknown and expired tokens with domain.ErrInvalidToken.
func (s *TokenGrantService) ValidateBearer(ctx context.Context, tokenValue string) (domain.AccessTokenRecord, error) {
	record, err := s.tokens.ReadAccessToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.AccessTokenRecord{}, domain.ErrInvalidToken
		}
		return domain.AccessTokenRecord{}, fmt.Errorf("read access token: %w", err)
	}
	if record.Token.Expired() {
		if err := s.tokens.RemoveAccessToken(ctx, tokenValue); err != nil {
			s.log().Warn("remove expired access token", zap.Error(err))
		}
		return domain.AccessTokenRecord{}, domain.ErrInvalidToken
	}
	return record, nil
}

func (s *TokenGrantService) grantAuthorizationCode(ctx context.Context, client domain.Client, req GrantRequest) (TokenResponse, error) {
	if req.Code == "" {
		return TokenResponse{}, &OAuthError{
			Status:      http.StatusBadRequest,
			Code:        "invalid_request",
			Description: "code is required",
		}
	}
	auth, err := s.tokens.ConsumeAuthorizationCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return TokenResponse{}, &OAuthError{
				Status:      http.StatusBadRequest,
				Code:        "invalid_grant",
				Description: "authorization code is invalid or already used",
			}
		}
		return TokenResponse{}, fmt.Errorf("consume authorization code: %w", err)
	}
	if auth.ClientID != client.ClientID {
		return TokenResponse{}, &OAuthError{
			Status:      http.StatusBadRequest,
			Code:        "invalid_grant",
			Description: "authorization code was issued to another client",
		}
	}
	if auth.RedirectURI != "" && auth.RedirectURI != req.RedirectURI {
		return TokenResponse{}, &OAuthError{
			Status:      http.StatusBadRequest,
			Code:        "invalid_grant",
			Description: "redirect_uri does not match the authorization request",
		}
	}
	return s.issueTokens(ctx, client, auth)
}

func (s *TokenGrantService) grantRefreshToken(ctx context.Context, client domain.Client, req GrantRequest) (TokenResponse, error) {
	if req.RefreshToken == "" {
		return TokenResponse{}, &OAuthError{
			Status:      http.StatusBadRequest,
			Code:        "invalid_request",
			Description: "refresh_token is required",
		}
	}
	record, err := s.tokens.ReadRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return TokenResponse{}, &OAuthError{
				Status:      http.StatusBadRequest,
				Code:        "invalid_grant",
				Description: "refresh token is invalid",
			}
		}
		return TokenResponse{}, fmt.Errorf("read refresh token: %w", err)
	}
	if record.Authentication.ClientID != client.ClientID {
		return TokenResponse{}, &OAuthError{
			Status:      http.StatusBadRequest,
			Code:        "invalid_grant",
			Description: "refresh token was issued to another client",
		}
	}
	if !record.Token.ExpiresAt.IsZero() && !record.Token.ExpiresAt.After(time.Now()) {
		if err := s.tokens.RemoveRefreshToken(ctx, req.RefreshToken); err != nil {
			s.log().Warn("remove expired refresh token", zap.Error(err))
		}
		return TokenResponse{}, &OAuthError{
			Status:      http.StatusBadRequest,
			Code:        "invalid_grant",
			Description: "refresh token has expired",
		}
	}

	// Rotation: the presented refresh token and every access token issued
	// against it are retired before the replacement pair is stored.
	if err := s.tokens.RemoveAccessTokenByRefreshToken(ctx, req.RefreshToken); err != nil {
		return TokenResponse{}, fmt.Errorf("remove access tokens for refresh token: %w", err)
	}
	if err := s.tokens.RemoveRefreshToken(ctx, req.RefreshToken); err != nil {
		return TokenResponse{}, fmt.Errorf("remove refresh token: %w", err)
	}
	return s.issueTokens(ctx, client, record.Authentication)
}

func (s *TokenGrantService) grantClientCredentials(ctx context.Context, client domain.Client, req GrantRequest) (TokenResponse, error) {
	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = client.Scopes
	}
	auth := domain.Authentication{
		ClientID:    client.ClientID,
		Scopes:      scopes,
		GrantType:   GrantClientCredentials,
		Authorities: client.Authorities,
	}
	response, err := s.issueTokens(ctx, client, auth)
	if err != nil {
		return TokenResponse{}, err
	}
	// Client-only grants carry no refresh token.
	response.RefreshToken = ""
	return response, nil
}

func (s *TokenGrantService) grantPassword(ctx context.Context, client domain.Client, req GrantRequest) (TokenResponse, error) {
	user, err := s.users.VerifyCredentials(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrBadCredentials) {
			return TokenResponse{}, &OAuthError{
				Status:      http.StatusBadRequest,
				Code:        "invalid_grant",
				Description: "invalid username or password",
			}
		}
		return TokenResponse{}, fmt.Errorf("verify credentials: %w", err)
	}
	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = client.Scopes
	}
	auth := domain.Authentication{
		ClientID:    client.ClientID,
		UserName:    user.UserName,
		Scopes:      scopes,
		GrantType:   GrantPassword,
		Authorities: user.Authorities,
	}
	return s.issueTokens(ctx, client, auth)
}

// issueTokens mints an opaque token pair for the authentication and
// persists both records. The refresh token is stored first so the access
// token's cascade key always points at an existing record.
func (s *TokenGrantService) issueTokens(ctx context.Context, client domain.Client, auth domain.Authentication) (TokenResponse, error) {
	now := time.Now()

	refresh := domain.RefreshToken{
		Value:     uuid.NewString(),
		ExpiresAt: now.Add(s.refreshTTL(client)),
	}
	if err := s.tokens.StoreRefreshToken(ctx, refresh, auth); err != nil {
		return TokenResponse{}, fmt.Errorf("store refresh token: %w", err)
	}

	access := domain.AccessToken{
		Value:        uuid.NewString(),
		TokenType:    "bearer",
		ExpiresAt:    now.Add(s.accessTTL(client)),
		RefreshToken: refresh.Value,
		Scopes:       auth.Scopes,
	}
	if err := s.tokens.StoreAccessToken(ctx, access, auth); err != nil {
		return TokenResponse{}, fmt.Errorf("store access token: %w", err)
	}

	s.log().Info("token issued",
		zap.String("client_id", auth.ClientID),
		zap.String("user_name", auth.Name()),
		zap.String("grant_type", auth.GrantType))

	return TokenResponse{
		AccessToken:  access.Value,
		TokenType:    access.TokenType,
		ExpiresIn:    access.ExpiresIn(),
		RefreshToken: refresh.Value,
		Scopes:       access.Scopes,
	}, nil
}

func (s *TokenGrantService) authenticateClient(ctx context.Context, clientID, clientSecret string) (domain.Client, error) {
	if clientID == "" {
		return domain.Client{}, &OAuthError{
			Status:      http.StatusUnauthorized,
			Code:        "invalid_client",
			Description: "client authentication required",
		}
	}
	client, err := s.clients.LoadClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Client{}, &OAuthError{
				Status:      http.StatusUnauthorized,
				Code:        "invalid_client",
				Description: "unknown client",
			}
		}
		return domain.Client{}, fmt.Errorf("load client: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(clientSecret)); err != nil {
		return domain.Client{}, &OAuthError{
			Status:      http.StatusUnauthorized,
			Code:        "invalid_client",
			Description: "client secret mismatch",
		}
	}
	return client, nil
}

func (s *TokenGrantService) accessTTL(client domain.Client) time.Duration {
	if client.AccessTokenValidity > 0 {
		return time.Duration(client.AccessTokenValidity) * time.Second
	}
	return s.accessTokenTTL
}

func (s *TokenGrantService) refreshTTL(client domain.Client) time.Duration {
	if client.RefreshTokenValidity > 0 {
		return time.Duration(client.RefreshTokenValidity) * time.Second
	}
	return s.refreshTokenTTL
}

func (s *TokenGrantService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func randomCode() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
