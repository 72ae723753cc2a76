// Package repository defines the persistence contracts for token,
// partner, and client records, plus the Postgres and in-memory
// implementations. Stores return domain.ErrNotFound for absent records
// and wrap transient backend failures with domain.ErrStorageUnavailable.
package repository

import (
	"context"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
)

// TokenStore persists access tokens, refresh tokens, and single-use
// authorization codes. All operations may be called concurrently by
// independent requests.
type TokenStore interface {
	// StoreAccessToken upserts the record for the token; re-saving the
	// same token value overwrites in place because the primary key is
	// derived from the value.
	StoreAccessToken(ctx context.Context, token domain.AccessToken, auth domain.Authentication) error
	ReadAccessToken(ctx context.Context, tokenValue string) (domain.AccessTokenRecord, error)
	// GetAccessToken looks up by the authentication fingerprint. The
	// index is non-unique and eventually consistent: any one matching
	// record may be returned.
	GetAccessToken(ctx context.Context, auth domain.Authentication) (domain.AccessTokenRecord, error)
	// RemoveAccessToken deletes by token value; absent records are not an error.
	RemoveAccessToken(ctx context.Context, tokenValue string) error
	// RemoveAccessTokenByRefreshToken cascade-deletes every access token
	// issued against the given refresh token.
	RemoveAccessTokenByRefreshToken(ctx context.Context, refreshTokenValue string) error
	FindTokensByClient(ctx context.Context, clientID string) ([]domain.AccessTokenRecord, error)
	FindTokensByClientAndUser(ctx context.Context, clientID, userName string) ([]domain.AccessTokenRecord, error)

	StoreRefreshToken(ctx context.Context, token domain.RefreshToken, auth domain.Authentication) error
	ReadRefreshToken(ctx context.Context, tokenValue string) (domain.RefreshTokenRecord, error)
	RemoveRefreshToken(ctx context.Context, tokenValue string) error

	// StoreAuthorizationCode fails with domain.ErrDuplicateCode when the
	// code already exists; codes are caller-random so a collision is an
	// invariant violation.
	StoreAuthorizationCode(ctx context.Context, code string, auth domain.Authentication) error
	// ConsumeAuthorizationCode atomically reads then deletes; a second
	// call for the same code returns domain.ErrNotFound.
	ConsumeAuthorizationCode(ctx context.Context, code string) (domain.Authentication, error)
}

// PartnerRegistry stores partner identity-provider metadata.
type PartnerRegistry interface {
	LoadPartner(ctx context.Context, partnerID string) (domain.Partner, error)
	// ListPartners scans the full partner set; acceptable for small,
	// administrator-managed cardinality.
	ListPartners(ctx context.Context) ([]domain.Partner, error)
	SavePartner(ctx context.Context, partner domain.Partner) error
	// DeletePartner is idempotent; deleting an absent partner logs and succeeds.
	DeletePartner(ctx context.Context, partnerID string) error
}

// PartnerTokenStore persists tokens obtained from partners on behalf of
// local users, keyed by the raw token value with an authentication
// fingerprint secondary index.
type PartnerTokenStore interface {
	// GetToken returns any one record matching the (partner, principal)
	// fingerprint.
	GetToken(ctx context.Context, partner domain.Partner, auth domain.Authentication) (domain.PartnerTokenRecord, error)
	SaveToken(ctx context.Context, partner domain.Partner, auth domain.Authentication, token domain.AccessToken) error
	// RemoveTokens deletes every record sharing the (partner, principal)
	// fingerprint, preventing stale generations from accumulating.
	RemoveTokens(ctx context.Context, partner domain.Partner, auth domain.Authentication) error
}

// ClientRegistry stores first-party client registrations.
type ClientRegistry interface {
	LoadClient(ctx context.Context, clientID string) (domain.Client, error)
	ListClients(ctx context.Context) ([]domain.Client, error)
	// CreateClient fails with domain.ErrClientExists for a duplicate id.
	CreateClient(ctx context.Context, client domain.Client) error
	UpdateClient(ctx context.Context, client domain.Client) error
	// DeleteClient is idempotent; deleting an absent client logs and succeeds.
	DeleteClient(ctx context.Context, clientID string) error
}
