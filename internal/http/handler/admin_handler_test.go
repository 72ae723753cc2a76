package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skillbridge/skillbridge-oauth/internal/http/handler"
	"github.com/skillbridge/skillbridge-oauth/internal/repository"
)

func newAdminFixture(t *testing.T) *handler.AdminHandler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return handler.NewAdminHandler(
		repository.NewMemoryPartnerRegistry(zap.NewNop()),
		repository.NewMemoryClientRegistry(zap.NewNop()),
	)
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSavePartnerValidatesRequiredFields(t *testing.T) {
	h := newAdminFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/api/partners", `{"partner_id":"ALEXA"}`)

	h.SavePartner(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "access_token_uri")
}

func TestSaveAndListPartners(t *testing.T) {
	h := newAdminFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/api/partners",
		`{"partner_id":"ALEXA","client_id":"c","client_secret":"s","access_token_uri":"https://partner.example.com/token"}`)
	h.SavePartner(c)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/partners", nil)
	h.ListPartners(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ALEXA")
}

func TestDeletePartnerIsIdempotent(t *testing.T) {
	h := newAdminFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodDelete, "/api/partners/GHOST", nil)
	c.Params = gin.Params{{Key: "id", Value: "GHOST"}}

	h.DeletePartner(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "deleted")
}

func TestCreateClientRejectsDuplicates(t *testing.T) {
	h := newAdminFixture(t)
	payload := `{"client_id":"skill-client","client_secret":"s3cret","authorized_grant_types":["password"]}`

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/api/clients", payload)
	h.CreateClient(c)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/api/clients", payload)
	h.CreateClient(c)

	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "client_exists")
}

func TestCreateClientRequiresSecret(t *testing.T) {
	h := newAdminFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/api/clients", `{"client_id":"skill-client"}`)

	h.CreateClient(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "client_secret")
}

func TestClientListNeverEchoesSecrets(t *testing.T) {
	h := newAdminFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/api/clients", `{"client_id":"skill-client","client_secret":"s3cret"}`)
	h.CreateClient(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotContains(t, w.Body.String(), "s3cret")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/clients", nil)
	h.ListClients(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "skill-client")
	require.NotContains(t, w.Body.String(), "s3cret")
}
