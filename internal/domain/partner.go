package domain

// Partner describes an external OAuth2 identity provider with which
// accounts can be reciprocally linked. Read-mostly; mutated only through
// the administrative API.
type Partner struct {
	PartnerID                 string   `json:"partner_id"`
	ClientID                  string   `json:"client_id"`
	ClientSecret              string   `json:"client_secret"`
	AccessTokenURI            string   `json:"access_token_uri"`
	UserAuthorizationURI      string   `json:"user_authorization_uri"`
	PreEstablishedRedirectURI string   `json:"pre_established_redirect_uri,omitempty"`
	Scopes                    []string `json:"scopes,omitempty"`
}

// PartnerTokenRecord is the persisted form of a token obtained from a
// partner on behalf of a local user. Unlike access token records, the
// primary key is the raw token value; this asymmetry is inherited from
// the exchange protocol and deliberately preserved.
type PartnerTokenRecord struct {
	TokenID          string
	Token            AccessToken
	AuthenticationID string
	ClientID         string
	UserName         string
}
