package domain

import "time"

// UserNameNone is stored in place of a user name for client-only grants,
// where no end-user principal participates in the authentication.
const UserNameNone = "#"

// AccessToken is the serialized token blob persisted alongside every
// access token record. It round-trips through JSON so the store stays
// portable across deployments.
type AccessToken struct {
	Value        string    `json:"value"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// Expired reports whether the token has no remaining time to live.
// Tokens without an expiry never expire.
func (t AccessToken) Expired() bool {
	return !t.ExpiresAt.IsZero() && !t.ExpiresAt.After(time.Now())
}

// ExpiresIn returns the remaining lifetime in whole seconds, zero when expired.
func (t AccessToken) ExpiresIn() int64 {
	if t.ExpiresAt.IsZero() {
		return 0
	}
	remaining := time.Until(t.ExpiresAt)
	if remaining < 0 {
		return 0
	}
	return int64(remaining.Seconds())
}

// RefreshToken is the serialized blob persisted for refresh tokens.
type RefreshToken struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Authentication captures the authentication context a token was issued
// under: the requesting client, the authenticated principal (empty for
// client-only grants), and the grant parameters. It is persisted as a
// JSON blob and also feeds key derivation.
type Authentication struct {
	ClientID    string   `json:"client_id"`
	UserName    string   `json:"user_name,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
	GrantType   string   `json:"grant_type,omitempty"`
	RedirectURI string   `json:"redirect_uri,omitempty"`
	Authorities []string `json:"authorities,omitempty"`
}

// Name returns the principal's user name, or UserNameNone when the
// authentication carries no end-user principal.
func (a Authentication) Name() string {
	if a.UserName == "" {
		return UserNameNone
	}
	return a.UserName
}

// HasAuthority reports whether the authentication carries the given authority.
func (a Authentication) HasAuthority(authority string) bool {
	for _, candidate := range a.Authorities {
		if candidate == authority {
			return true
		}
	}
	return false
}

// AccessTokenRecord is the persisted form of an issued access token.
// The primary key is the hash of the token value; the remaining keyed
// fields are secondary lookup paths.
type AccessTokenRecord struct {
	TokenID          string
	Token            AccessToken
	AuthenticationID string
	ClientID         string
	UserName         string
	Authentication   Authentication
	RefreshTokenID   string
}

// RefreshTokenRecord is the persisted form of a refresh token, keyed by
// the hash of its value.
type RefreshTokenRecord struct {
	TokenID        string
	Token          RefreshToken
	Authentication Authentication
}
