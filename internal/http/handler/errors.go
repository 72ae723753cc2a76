package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
	"github.com/skillbridge/skillbridge-oauth/internal/service"
)

// respondError maps service and store failures to the wire error shape.
func respondError(c *gin.Context, err error) {
	var oauthErr *service.OAuthError
	if errors.As(err, &oauthErr) {
		c.JSON(oauthErr.Status, gin.H{"error": oauthErr.Code, "error_description": oauthErr.Description})
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnknownPartner):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_client", "error_description": "Unknown partner."})
	case errors.Is(err, domain.ErrNoTokenForUser):
		c.JSON(http.StatusNotFound, gin.H{"error": "token_not_found", "error_description": "No partner token for user; account linking must be re-initiated."})
	case errors.Is(err, domain.ErrUnsupportedGrantType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_grant_type", "error_description": "Unsupported grant type."})
	case errors.Is(err, domain.ErrPartnerRefreshFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "partner_refresh_failed", "error_description": "Partner rejected the token refresh."})
	case errors.Is(err, domain.ErrPartnerExchangeFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "partner_exchange_failed", "error_description": "Partner rejected the code exchange."})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": "Record not found."})
	case errors.Is(err, domain.ErrClientExists):
		c.JSON(http.StatusConflict, gin.H{"error": "client_exists", "error_description": "Client id is already registered."})
	case errors.Is(err, domain.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily_unavailable", "error_description": "Storage is temporarily unavailable."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": err.Error()})
	}
}
