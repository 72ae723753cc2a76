package oauth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
	"github.com/skillbridge/skillbridge-oauth/internal/oauth"
)

func TestHashTokenDeterministic(t *testing.T) {
	first := oauth.HashToken("abc-123")
	second := oauth.HashToken("abc-123")
	require.Equal(t, first, second)
	require.Len(t, first, 32)
	require.NotEqual(t, first, oauth.HashToken("abc-124"))
}

func TestHashTokenEmptyInput(t *testing.T) {
	require.Empty(t, oauth.HashToken(""))
}

func TestAuthenticationKeyScopeOrderIndependent(t *testing.T) {
	a := domain.Authentication{ClientID: "client", UserName: "alice", Scopes: []string{"profile", "email"}}
	b := domain.Authentication{ClientID: "client", UserName: "alice", Scopes: []string{"email", "profile"}}
	require.Equal(t, oauth.AuthenticationKey(a), oauth.AuthenticationKey(b))
}

func TestAuthenticationKeyDistinguishesPrincipals(t *testing.T) {
	base := domain.Authentication{ClientID: "client", Scopes: []string{"profile"}}
	alice := base
	alice.UserName = "alice"
	bob := base
	bob.UserName = "bob"

	require.NotEqual(t, oauth.AuthenticationKey(alice), oauth.AuthenticationKey(bob))
	// Client-only grants fingerprint without a principal.
	require.NotEqual(t, oauth.AuthenticationKey(alice), oauth.AuthenticationKey(base))
}

func TestPartnerKeyCoversResourceAndPrincipal(t *testing.T) {
	partner := domain.Partner{PartnerID: "alexa", ClientID: "amzn-client", Scopes: []string{"health:write"}}
	other := partner
	other.PartnerID = "google"
	auth := domain.Authentication{UserName: "alice"}

	require.Equal(t, oauth.PartnerKey(partner, auth), oauth.PartnerKey(partner, auth))
	require.NotEqual(t, oauth.PartnerKey(partner, auth), oauth.PartnerKey(other, auth))
	require.NotEqual(t,
		oauth.PartnerKey(partner, auth),
		oauth.PartnerKey(partner, domain.Authentication{UserName: "bob"}))
}
