package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
	"github.com/skillbridge/skillbridge-oauth/internal/http/handler"
	"github.com/skillbridge/skillbridge-oauth/internal/repository"
	"github.com/skillbridge/skillbridge-oauth/internal/service"
)

type stubEndpoint struct {
	exchangeToken domain.AccessToken
	exchangeErr   error
	refreshToken  domain.AccessToken
	refreshErr    error
}

func (s *stubEndpoint) ExchangeCode(ctx context.Context, partner domain.Partner, code string) (domain.AccessToken, error) {
	if s.exchangeErr != nil {
		return domain.AccessToken{}, s.exchangeErr
	}
	return s.exchangeToken, nil
}

func (s *stubEndpoint) Refresh(ctx context.Context, partner domain.Partner, refreshToken string) (domain.AccessToken, error) {
	if s.refreshErr != nil {
		return domain.AccessToken{}, s.refreshErr
	}
	return s.refreshToken, nil
}

type partnerFixture struct {
	handler  *handler.PartnerHandler
	partners repository.PartnerRegistry
	tokens   repository.PartnerTokenStore
}

func newPartnerFixture(t *testing.T, endpoint *stubEndpoint) partnerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	partners := repository.NewMemoryPartnerRegistry(zap.NewNop())
	tokens := repository.NewMemoryPartnerTokenStore()
	manager := service.NewPartnerTokenManager(partners, tokens, endpoint, zap.NewNop())
	reciprocal := service.NewReciprocalService(partners, tokens, endpoint, zap.NewNop())
	publisher := service.NewProfilePublisher(manager, &service.StaticProfileSource{}, "http://localhost:0", 4, zap.NewNop())

	return partnerFixture{
		handler:  handler.NewPartnerHandler(manager, reciprocal, publisher),
		partners: partners,
		tokens:   tokens,
	}
}

func seedPartnerFixture(t *testing.T, f partnerFixture) domain.Partner {
	t.Helper()
	partner := domain.Partner{
		PartnerID:      "ALEXA",
		ClientID:       "partner-client",
		ClientSecret:   "partner-secret",
		AccessTokenURI: "https://partner.example.com/oauth/token",
	}
	require.NoError(t, f.partners.SavePartner(context.Background(), partner))
	return partner
}

func TestPartnerTokenRequiresParams(t *testing.T) {
	f := newPartnerFixture(t, &stubEndpoint{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/partner/token?user_id=alice", nil)

	f.handler.PartnerToken(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid_request")
}

func TestPartnerTokenUnknownPartner(t *testing.T) {
	f := newPartnerFixture(t, &stubEndpoint{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/partner/token?user_id=alice&partner_id=NOPE", nil)

	f.handler.PartnerToken(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid_client")
}

func TestPartnerTokenNotLinked(t *testing.T) {
	f := newPartnerFixture(t, &stubEndpoint{})
	seedPartnerFixture(t, f)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/partner/token?user_id=alice&partner_id=ALEXA", nil)

	f.handler.PartnerToken(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "token_not_found")
}

func TestPartnerTokenReturnsTokenBody(t *testing.T) {
	f := newPartnerFixture(t, &stubEndpoint{})
	partner := seedPartnerFixture(t, f)

	token := domain.AccessToken{
		Value:        "partner-token",
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
		RefreshToken: "partner-rt",
		Scopes:       []string{"alexa::health:profile:write"},
	}
	require.NoError(t, f.tokens.SaveToken(context.Background(), partner, domain.Authentication{UserName: "alice"}, token))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/partner/token?user_id=alice&partner_id=ALEXA", nil)

	f.handler.PartnerToken(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "partner-token", body["access_token"])
	require.Equal(t, "bearer", body["token_type"])
	require.Equal(t, "partner-rt", body["refresh_token"])
	require.Equal(t, "alexa::health:profile:write", body["scope"])
	require.Positive(t, body["expires_in"])
}

func TestPartnerTokenRefreshFailureMapsToBadGateway(t *testing.T) {
	f := newPartnerFixture(t, &stubEndpoint{refreshErr: errors.New("partner says no")})
	partner := seedPartnerFixture(t, f)

	expired := domain.AccessToken{
		Value:        "stale",
		ExpiresAt:    time.Now().Add(-time.Minute),
		RefreshToken: "rt",
	}
	require.NoError(t, f.tokens.SaveToken(context.Background(), partner, domain.Authentication{UserName: "alice"}, expired))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/partner/token?user_id=alice&partner_id=ALEXA", nil)

	f.handler.PartnerToken(c)

	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Contains(t, w.Body.String(), "partner_refresh_failed")
}

func reciprocalForm(grantType, clientID, code string) *http.Request {
	form := url.Values{}
	form.Set("grant_type", grantType)
	form.Set("client_id", clientID)
	form.Set("code", code)
	req := httptest.NewRequest(http.MethodPost, "/api/reciprocal/authorize", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestReciprocalAuthorizeStoresToken(t *testing.T) {
	f := newPartnerFixture(t, &stubEndpoint{
		exchangeToken: domain.AccessToken{Value: "linked-token", ExpiresAt: time.Now().Add(time.Hour)},
	})
	partner := seedPartnerFixture(t, f)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = reciprocalForm("reciprocal_authorization_code", "ALEXA", "code-1")
	c.Set("authentication", domain.Authentication{ClientID: "skill-client", UserName: "alice"})

	f.handler.ReciprocalAuthorize(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "linked")

	record, err := f.tokens.GetToken(context.Background(), partner, domain.Authentication{ClientID: "skill-client", UserName: "alice"})
	require.NoError(t, err)
	require.Equal(t, "linked-token", record.Token.Value)
}

func TestReciprocalAuthorizeRejectsWrongGrantType(t *testing.T) {
	f := newPartnerFixture(t, &stubEndpoint{})
	seedPartnerFixture(t, f)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = reciprocalForm("authorization_code", "ALEXA", "code-1")
	c.Set("authentication", domain.Authentication{UserName: "alice"})

	f.handler.ReciprocalAuthorize(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "unsupported_grant_type")
}

func TestReciprocalAuthorizeExchangeFailureMapsToBadGateway(t *testing.T) {
	f := newPartnerFixture(t, &stubEndpoint{exchangeErr: errors.New("partner says no")})
	seedPartnerFixture(t, f)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = reciprocalForm("reciprocal_authorization_code", "ALEXA", "code-1")
	c.Set("authentication", domain.Authentication{UserName: "alice"})

	f.handler.ReciprocalAuthorize(c)

	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Contains(t, w.Body.String(), "partner_exchange_failed")
}

func TestPublishProfilesQueuesReport(t *testing.T) {
	f := newPartnerFixture(t, &stubEndpoint{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/profiles/publish", strings.NewReader(`{"partner_id":"ALEXA"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("authentication", domain.Authentication{ClientID: "skill-client", UserName: "alice"})

	f.handler.PublishProfiles(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Contains(t, w.Body.String(), "queued")
}

func TestPublishProfilesRequiresUserForClientOnlyCallers(t *testing.T) {
	f := newPartnerFixture(t, &stubEndpoint{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/profiles/publish", strings.NewReader(`{"partner_id":"ALEXA"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("authentication", domain.Authentication{ClientID: "skill-client"})

	f.handler.PublishProfiles(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid_request")
}
