package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
	"github.com/skillbridge/skillbridge-oauth/internal/service"
)

const authenticationKey = "authentication"

// Auth validates Authorization headers against the token store and
// attaches the resolved authentication.
type Auth struct {
	Grants *service.TokenGrantService
}

// ValidateBearer ensures the request carries a valid bearer token.
func (m *Auth) ValidateBearer(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authorization header required."})
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Bearer token required."})
		return
	}
	record, err := m.Grants.ValidateBearer(c.Request.Context(), strings.TrimSpace(parts[1]))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid access token."})
		return
	}
	c.Set(authenticationKey, record.Authentication)
	c.Next()
}

// RequireAuthority rejects authenticated requests lacking the authority.
func (m *Auth) RequireAuthority(authority string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth, ok := GetAuthentication(c)
		if !ok || !auth.HasAuthority(authority) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient_scope", "error_description": "Caller lacks the required authority."})
			return
		}
		c.Next()
	}
}

// GetAuthentication exposes the bearer token's authentication to handlers.
func GetAuthentication(c *gin.Context) (domain.Authentication, bool) {
	value, ok := c.Get(authenticationKey)
	if !ok {
		return domain.Authentication{}, false
	}
	auth, ok := value.(domain.Authentication)
	return auth, ok
}
