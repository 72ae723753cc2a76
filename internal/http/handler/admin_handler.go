package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
	"github.com/skillbridge/skillbridge-oauth/internal/repository"
)

// AdminHandler serves the partner and client management API.
type AdminHandler struct {
	Partners repository.PartnerRegistry
	Clients  repository.ClientRegistry
}

func NewAdminHandler(partners repository.PartnerRegistry, clients repository.ClientRegistry) *AdminHandler {
	return &AdminHandler{Partners: partners, Clients: clients}
}

// ListPartners returns every registered partner.
func (h *AdminHandler) ListPartners(c *gin.Context) {
	partners, err := h.Partners.ListPartners(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partners": partners})
}

// SavePartner upserts a partner registration.
func (h *AdminHandler) SavePartner(c *gin.Context) {
	var partner domain.Partner
	if err := c.ShouldBindJSON(&partner); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid partner payload."})
		return
	}
	if strings.TrimSpace(partner.PartnerID) == "" || strings.TrimSpace(partner.AccessTokenURI) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "partner_id and access_token_uri are required."})
		return
	}
	if err := h.Partners.SavePartner(c.Request.Context(), partner); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, partner)
}

// DeletePartner removes a partner registration. Deleting an absent
// partner succeeds.
func (h *AdminHandler) DeletePartner(c *gin.Context) {
	if err := h.Partners.DeletePartner(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type clientPayload struct {
	ClientID             string   `json:"client_id" binding:"required"`
	ClientSecret         string   `json:"client_secret"`
	Scopes               []string `json:"scopes"`
	RedirectURIs         []string `json:"redirect_uris"`
	AuthorizedGrantTypes []string `json:"authorized_grant_types"`
	Authorities          []string `json:"authorities"`
	AccessTokenValidity  int      `json:"access_token_validity"`
	RefreshTokenValidity int      `json:"refresh_token_validity"`
	AutoApprove          bool     `json:"auto_approve"`
}

func (p clientPayload) toClient() (domain.Client, error) {
	client := domain.Client{
		ClientID:             p.ClientID,
		Scopes:               p.Scopes,
		RedirectURIs:         p.RedirectURIs,
		AuthorizedGrantTypes: p.AuthorizedGrantTypes,
		Authorities:          p.Authorities,
		AccessTokenValidity:  p.AccessTokenValidity,
		RefreshTokenValidity: p.RefreshTokenValidity,
		AutoApprove:          p.AutoApprove,
	}
	if p.ClientSecret != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(p.ClientSecret), bcrypt.DefaultCost)
		if err != nil {
			return domain.Client{}, err
		}
		client.SecretHash = string(hash)
	}
	return client, nil
}

// ListClients returns every registered client; secrets are never echoed.
func (h *AdminHandler) ListClients(c *gin.Context) {
	clients, err := h.Clients.ListClients(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

// CreateClient registers a new client with a bcrypt-hashed secret.
func (h *AdminHandler) CreateClient(c *gin.Context) {
	var payload clientPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "client_id is required."})
		return
	}
	if payload.ClientSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "client_secret is required."})
		return
	}
	client, err := payload.toClient()
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Clients.CreateClient(c.Request.Context(), client); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

// UpdateClient replaces a client registration. An empty client_secret
// keeps the stored hash.
func (h *AdminHandler) UpdateClient(c *gin.Context) {
	var payload clientPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "client_id is required."})
		return
	}
	payload.ClientID = c.Param("id")

	client, err := payload.toClient()
	if err != nil {
		respondError(c, err)
		return
	}
	if client.SecretHash == "" {
		existing, err := h.Clients.LoadClient(c.Request.Context(), client.ClientID)
		if err != nil {
			respondError(c, err)
			return
		}
		client.SecretHash = existing.SecretHash
	}
	if err := h.Clients.UpdateClient(c.Request.Context(), client); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// DeleteClient removes a client registration. Deleting an absent client
// succeeds.
func (h *AdminHandler) DeleteClient(c *gin.Context) {
	if err := h.Clients.DeleteClient(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
