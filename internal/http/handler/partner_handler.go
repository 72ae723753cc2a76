package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
	"github.com/skillbridge/skillbridge-oauth/internal/http/middleware"
	"github.com/skillbridge/skillbridge-oauth/internal/service"
)

// PartnerHandler serves partner token retrieval, reciprocal code
// exchange, and profile publishing.
type PartnerHandler struct {
	Manager    *service.PartnerTokenManager
	Reciprocal *service.ReciprocalService
	Publisher  *service.ProfilePublisher
}

func NewPartnerHandler(manager *service.PartnerTokenManager, reciprocal *service.ReciprocalService, publisher *service.ProfilePublisher) *PartnerHandler {
	return &PartnerHandler{Manager: manager, Reciprocal: reciprocal, Publisher: publisher}
}

// PartnerToken returns the partner token held for a user, refreshed if needed.
func (h *PartnerHandler) PartnerToken(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	partnerID := strings.TrimSpace(c.Query("partner_id"))
	if userID == "" || partnerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "user_id and partner_id are required."})
		return
	}

	token, err := h.Manager.GetAccessToken(c.Request.Context(), userID, partnerID)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{
		"access_token": token.Value,
		"token_type":   token.TokenType,
		"expires_in":   token.ExpiresIn(),
	}
	if token.RefreshToken != "" {
		body["refresh_token"] = token.RefreshToken
	}
	if len(token.Scopes) > 0 {
		body["scope"] = strings.Join(token.Scopes, " ")
	}
	c.JSON(http.StatusOK, body)
}

// ReciprocalAuthorize redeems a reciprocal authorization code posted by a
// partner on behalf of the authenticated principal.
func (h *PartnerHandler) ReciprocalAuthorize(c *gin.Context) {
	var req struct {
		GrantType string `form:"grant_type" binding:"required"`
		ClientID  string `form:"client_id" binding:"required"`
		Code      string `form:"code" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "grant_type, client_id, and code are required."})
		return
	}

	auth, ok := middleware.GetAuthentication(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}

	if err := h.Reciprocal.Exchange(c.Request.Context(), req.GrantType, req.ClientID, req.Code, auth); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "linked"})
}

// PublishProfiles queues a profile report delivery to a partner.
func (h *PartnerHandler) PublishProfiles(c *gin.Context) {
	var req struct {
		UserName  string `json:"user_name"`
		PartnerID string `json:"partner_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "partner_id is required."})
		return
	}

	userName := req.UserName
	if userName == "" {
		auth, ok := middleware.GetAuthentication(c)
		if !ok || auth.Name() == domain.UserNameNone {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "user_name is required for client-only callers."})
			return
		}
		userName = auth.Name()
	}

	if err := h.Publisher.Enqueue(service.PublishRequest{UserName: userName, PartnerID: req.PartnerID}); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily_unavailable", "error_description": "Publish queue is full."})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
