package domain

// Client is a first-party OAuth client registered with this server.
// The secret is stored bcrypt-hashed.
type Client struct {
	ClientID             string   `json:"client_id"`
	SecretHash           string   `json:"-"`
	Scopes               []string `json:"scopes,omitempty"`
	RedirectURIs         []string `json:"redirect_uris,omitempty"`
	AuthorizedGrantTypes []string `json:"authorized_grant_types,omitempty"`
	Authorities          []string `json:"authorities,omitempty"`
	AccessTokenValidity  int      `json:"access_token_validity,omitempty"`
	RefreshTokenValidity int      `json:"refresh_token_validity,omitempty"`
	AutoApprove          bool     `json:"auto_approve,omitempty"`
}

// SupportsGrantType reports whether the client may use the given grant type.
func (c Client) SupportsGrantType(grantType string) bool {
	for _, candidate := range c.AuthorizedGrantTypes {
		if candidate == grantType {
			return true
		}
	}
	return false
}

// AllowsRedirectURI reports whether the redirect URI is registered for the client.
func (c Client) AllowsRedirectURI(uri string) bool {
	for _, candidate := range c.RedirectURIs {
		if candidate == uri {
			return true
		}
	}
	return false
}
