package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
	"github.com/skillbridge/skillbridge-oauth/internal/service"
)

// TokenHandler serves the first-party token and authorization endpoints.
type TokenHandler struct {
	Grants *service.TokenGrantService
	Users  service.UserDirectory
}

func NewTokenHandler(grants *service.TokenGrantService, users service.UserDirectory) *TokenHandler {
	return &TokenHandler{Grants: grants, Users: users}
}

// Token handles OAuth token grant exchanges.
func (h *TokenHandler) Token(c *gin.Context) {
	var req struct {
		GrantType    string `form:"grant_type" binding:"required"`
		ClientID     string `form:"client_id"`
		ClientSecret string `form:"client_secret"`
		Code         string `form:"code"`
		RedirectURI  string `form:"redirect_uri"`
		RefreshToken string `form:"refresh_token"`
		Username     string `form:"username"`
		Password     string `form:"password"`
		Scope        string `form:"scope"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid token request."})
		return
	}

	clientID, clientSecret := req.ClientID, req.ClientSecret
	if basicID, basicSecret, ok := c.Request.BasicAuth(); ok {
		clientID, clientSecret = basicID, basicSecret
	}

	resp, err := h.Grants.Grant(c.Request.Context(), service.GrantRequest{
		GrantType:    strings.ToLower(req.GrantType),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
		RefreshToken: req.RefreshToken,
		Username:     req.Username,
		Password:     req.Password,
		Scopes:       strings.Fields(req.Scope),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Authorize authenticates the resource owner with form credentials and
// issues a single-use authorization code. The code lands on the
// redirect_uri when one is supplied, otherwise in the JSON body.
func (h *TokenHandler) Authorize(c *gin.Context) {
	var req struct {
		ClientID     string `form:"client_id" binding:"required"`
		ResponseType string `form:"response_type"`
		RedirectURI  string `form:"redirect_uri"`
		Scope        string `form:"scope"`
		State        string `form:"state"`
		Username     string `form:"username" binding:"required"`
		Password     string `form:"password" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "client_id, username, and password are required."})
		return
	}
	if req.ResponseType != "" && !strings.EqualFold(req.ResponseType, "code") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_response_type", "error_description": "Only response_type=code is supported."})
		return
	}

	user, err := h.Users.VerifyCredentials(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrBadCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "access_denied", "error_description": "Invalid username or password."})
			return
		}
		respondError(c, err)
		return
	}

	code, err := h.Grants.Authorize(c.Request.Context(), req.ClientID, req.RedirectURI, strings.Fields(req.Scope), user)
	if err != nil {
		respondError(c, err)
		return
	}

	if req.RedirectURI != "" {
		target, err := url.Parse(req.RedirectURI)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "redirect_uri is not a valid URL."})
			return
		}
		q := target.Query()
		q.Set("code", code)
		if req.State != "" {
			q.Set("state", req.State)
		}
		target.RawQuery = q.Encode()
		c.Redirect(http.StatusFound, target.String())
		return
	}

	body := gin.H{"code": code}
	if req.State != "" {
		body["state"] = req.State
	}
	c.JSON(http.StatusOK, body)
}
