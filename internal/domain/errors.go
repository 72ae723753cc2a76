package domain

import "errors"

// Store-level errors. Stores return ErrNotFound for absent records and
// wrap transient backend failures with ErrStorageUnavailable; callers map
// these to grant- or endpoint-specific failures.
var (
	ErrNotFound           = errors.New("record not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrDuplicateCode      = errors.New("authorization code already exists")
	ErrClientExists       = errors.New("client already exists")
)

// Exchange- and grant-level errors surfaced at component boundaries.
var (
	ErrUnknownPartner        = errors.New("unknown partner")
	ErrNoTokenForUser        = errors.New("no partner token for user")
	ErrPartnerRefreshFailed  = errors.New("partner token refresh failed")
	ErrPartnerExchangeFailed = errors.New("partner code exchange failed")
	ErrUnsupportedGrantType  = errors.New("unsupported grant type")
	ErrInvalidToken          = errors.New("invalid token")
	ErrBadCredentials        = errors.New("bad credentials")
)
