package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
	"github.com/skillbridge/skillbridge-oauth/internal/repository"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryTokenStore()

	token := domain.AccessToken{
		Value:        "abc",
		TokenType:    "Bearer",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second),
		RefreshToken: "rtX",
		Scopes:       []string{"profile"},
	}
	auth := domain.Authentication{ClientID: "clientA", UserName: "alice", Scopes: []string{"profile"}}

	require.NoError(t, store.StoreAccessToken(ctx, token, auth))

	record, err := store.ReadAccessToken(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, token, record.Token)
	require.Equal(t, "clientA", record.ClientID)
	require.Equal(t, "alice", record.UserName)
	require.Equal(t, auth, record.Authentication)
	require.NotEmpty(t, record.RefreshTokenID)
}

func TestStoreAccessTokenOverwritesSameValue(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryTokenStore()
	auth := domain.Authentication{ClientID: "clientA", UserName: "alice"}

	first := domain.AccessToken{Value: "abc", TokenType: "Bearer", Scopes: []string{"a"}}
	second := domain.AccessToken{Value: "abc", TokenType: "Bearer", Scopes: []string{"b"}}
	require.NoError(t, store.StoreAccessToken(ctx, first, auth))
	require.NoError(t, store.StoreAccessToken(ctx, second, auth))

	record, err := store.ReadAccessToken(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, record.Token.Scopes)

	records, err := store.FindTokensByClient(ctx, "clientA")
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestGetAccessTokenByAuthentication(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryTokenStore()
	auth := domain.Authentication{ClientID: "clientA", UserName: "alice", Scopes: []string{"profile"}}

	_, err := store.GetAccessToken(ctx, auth)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.StoreAccessToken(ctx, domain.AccessToken{Value: "t1"}, auth))
	require.NoError(t, store.StoreAccessToken(ctx, domain.AccessToken{Value: "t2"}, auth))

	record, err := store.GetAccessToken(ctx, auth)
	require.NoError(t, err)
	// Non-unique index: any one of the matching set is acceptable.
	require.Contains(t, []string{"t1", "t2"}, record.Token.Value)
}

func TestClientOnlyGrantUsesSentinelUserName(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryTokenStore()
	auth := domain.Authentication{ClientID: "machine", GrantType: "client_credentials"}

	require.NoError(t, store.StoreAccessToken(ctx, domain.AccessToken{Value: "cc"}, auth))
	record, err := store.ReadAccessToken(ctx, "cc")
	require.NoError(t, err)
	require.Equal(t, domain.UserNameNone, record.UserName)
}

func TestRemoveAccessTokenIdempotent(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryTokenStore()
	require.NoError(t, store.StoreAccessToken(ctx, domain.AccessToken{Value: "abc"}, domain.Authentication{ClientID: "c"}))

	require.NoError(t, store.RemoveAccessToken(ctx, "abc"))
	require.NoError(t, store.RemoveAccessToken(ctx, "abc"))

	_, err := store.ReadAccessToken(ctx, "abc")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemoveAccessTokenByRefreshToken(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryTokenStore()
	auth := domain.Authentication{ClientID: "clientA", UserName: "u1"}

	require.NoError(t, store.StoreAccessToken(ctx, domain.AccessToken{Value: "abc", RefreshToken: "rtX"}, auth))
	require.NoError(t, store.StoreAccessToken(ctx, domain.AccessToken{Value: "unrelated"}, auth))

	require.NoError(t, store.RemoveAccessTokenByRefreshToken(ctx, "rtX"))

	_, err := store.ReadAccessToken(ctx, "abc")
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Tokens without a refresh token are untouched by the cascade.
	_, err = store.ReadAccessToken(ctx, "unrelated")
	require.NoError(t, err)
}

func TestFindTokensByClientAndUser(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryTokenStore()

	alice := domain.Authentication{ClientID: "clientA", UserName: "alice"}
	bob := domain.Authentication{ClientID: "clientA", UserName: "bob"}
	other := domain.Authentication{ClientID: "clientB", UserName: "alice"}

	require.NoError(t, store.StoreAccessToken(ctx, domain.AccessToken{Value: "a1"}, alice))
	require.NoError(t, store.StoreAccessToken(ctx, domain.AccessToken{Value: "a2"}, alice))
	require.NoError(t, store.StoreAccessToken(ctx, domain.AccessToken{Value: "b1"}, bob))
	require.NoError(t, store.StoreAccessToken(ctx, domain.AccessToken{Value: "o1"}, other))

	records, err := store.FindTokensByClientAndUser(ctx, "clientA", "alice")
	require.NoError(t, err)
	values := tokenValues(records)
	require.ElementsMatch(t, []string{"a1", "a2"}, values)

	records, err = store.FindTokensByClient(ctx, "clientA")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a1", "a2", "b1"}, tokenValues(records))
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryTokenStore()
	auth := domain.Authentication{ClientID: "clientA", UserName: "alice"}
	token := domain.RefreshToken{Value: "rt-1", ExpiresAt: time.Now().Add(24 * time.Hour).Truncate(time.Second)}

	require.NoError(t, store.StoreRefreshToken(ctx, token, auth))

	record, err := store.ReadRefreshToken(ctx, "rt-1")
	require.NoError(t, err)
	require.Equal(t, token, record.Token)
	require.Equal(t, auth, record.Authentication)

	require.NoError(t, store.RemoveRefreshToken(ctx, "rt-1"))
	require.NoError(t, store.RemoveRefreshToken(ctx, "rt-1"))
	_, err = store.ReadRefreshToken(ctx, "rt-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuthorizationCodeSingleUse(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryTokenStore()
	auth := domain.Authentication{ClientID: "clientA", UserName: "alice"}

	require.NoError(t, store.StoreAuthorizationCode(ctx, "code-1", auth))

	consumed, err := store.ConsumeAuthorizationCode(ctx, "code-1")
	require.NoError(t, err)
	require.Equal(t, auth, consumed)

	_, err = store.ConsumeAuthorizationCode(ctx, "code-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreAuthorizationCodeDuplicate(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryTokenStore()
	auth := domain.Authentication{ClientID: "clientA"}

	require.NoError(t, store.StoreAuthorizationCode(ctx, "code-1", auth))
	err := store.StoreAuthorizationCode(ctx, "code-1", auth)
	require.ErrorIs(t, err, domain.ErrDuplicateCode)
}

func TestPartnerRegistryCRUD(t *testing.T) {
	ctx := context.Background()
	registry := repository.NewMemoryPartnerRegistry(nil)

	_, err := registry.LoadPartner(ctx, "alexa")
	require.ErrorIs(t, err, domain.ErrNotFound)

	partner := domain.Partner{
		PartnerID:      "alexa",
		ClientID:       "amzn-client",
		ClientSecret:   "secret",
		AccessTokenURI: "https://partner.example/token",
		Scopes:         []string{"health:write"},
	}
	require.NoError(t, registry.SavePartner(ctx, partner))

	loaded, err := registry.LoadPartner(ctx, "alexa")
	require.NoError(t, err)
	require.Equal(t, partner, loaded)

	partners, err := registry.ListPartners(ctx)
	require.NoError(t, err)
	require.Len(t, partners, 1)

	require.NoError(t, registry.DeletePartner(ctx, "alexa"))
	// Idempotent: deleting again succeeds.
	require.NoError(t, registry.DeletePartner(ctx, "alexa"))
}

func TestPartnerTokenReplaceIsAtomicPerIdentity(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryPartnerTokenStore()
	partner := domain.Partner{PartnerID: "alexa", ClientID: "amzn-client"}
	auth := domain.Authentication{UserName: "alice"}

	t1 := domain.AccessToken{Value: "gen-1", TokenType: "Bearer"}
	t2 := domain.AccessToken{Value: "gen-2", TokenType: "Bearer"}

	require.NoError(t, store.SaveToken(ctx, partner, auth, t1))
	require.NoError(t, store.RemoveTokens(ctx, partner, auth))
	require.NoError(t, store.SaveToken(ctx, partner, auth, t2))

	record, err := store.GetToken(ctx, partner, auth)
	require.NoError(t, err)
	require.Equal(t, "gen-2", record.Token.Value)
	require.NotEqual(t, t1.Value, record.Token.Value)
}

func TestPartnerTokenRemoveTokensClearsAllGenerations(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryPartnerTokenStore()
	partner := domain.Partner{PartnerID: "alexa", ClientID: "amzn-client"}
	auth := domain.Authentication{UserName: "alice"}
	otherAuth := domain.Authentication{UserName: "bob"}

	require.NoError(t, store.SaveToken(ctx, partner, auth, domain.AccessToken{Value: "gen-1"}))
	require.NoError(t, store.SaveToken(ctx, partner, auth, domain.AccessToken{Value: "gen-2"}))
	require.NoError(t, store.SaveToken(ctx, partner, otherAuth, domain.AccessToken{Value: "bob-1"}))

	require.NoError(t, store.RemoveTokens(ctx, partner, auth))

	_, err := store.GetToken(ctx, partner, auth)
	require.ErrorIs(t, err, domain.ErrNotFound)

	record, err := store.GetToken(ctx, partner, otherAuth)
	require.NoError(t, err)
	require.Equal(t, "bob-1", record.Token.Value)
}

func TestClientRegistryCRUD(t *testing.T) {
	ctx := context.Background()
	registry := repository.NewMemoryClientRegistry(nil)

	client := domain.Client{ClientID: "clientA", SecretHash: "hash", AuthorizedGrantTypes: []string{"password"}}
	require.NoError(t, registry.CreateClient(ctx, client))
	require.ErrorIs(t, registry.CreateClient(ctx, client), domain.ErrClientExists)

	client.Scopes = []string{"profile"}
	require.NoError(t, registry.UpdateClient(ctx, client))

	loaded, err := registry.LoadClient(ctx, "clientA")
	require.NoError(t, err)
	require.Equal(t, []string{"profile"}, loaded.Scopes)

	require.NoError(t, registry.DeleteClient(ctx, "clientA"))
	require.NoError(t, registry.DeleteClient(ctx, "clientA"))
	_, err = registry.LoadClient(ctx, "clientA")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.ErrorIs(t, registry.UpdateClient(ctx, client), domain.ErrNotFound)
}

func tokenValues(records []domain.AccessTokenRecord) []string {
	values := make([]string, 0, len(records))
	for _, record := range records {
		values = append(values, record.Token.Value)
	}
	return values
}
