package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/skillbridge/skillbridge-oauth/internal/config"
	"github.com/skillbridge/skillbridge-oauth/internal/domain"
	"github.com/skillbridge/skillbridge-oauth/internal/http/handler"
	"github.com/skillbridge/skillbridge-oauth/internal/http/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(
	cfg config.Config,
	logger *zap.Logger,
	tokenHandler *handler.TokenHandler,
	partnerHandler *handler.PartnerHandler,
	adminHandler *handler.AdminHandler,
	authMiddleware *middleware.Auth,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	oauth := r.Group("/oauth")
	{
		oauth.POST("/token", tokenHandler.Token)
		oauth.GET("/authorize", tokenHandler.Authorize)
		oauth.POST("/authorize", tokenHandler.Authorize)
	}

	requireAdmin := authMiddleware.RequireAuthority(domain.RoleClientAdmin)

	api := r.Group("/api", authMiddleware.ValidateBearer)
	{
		api.GET("/partner/token", requireAdmin, partnerHandler.PartnerToken)
		api.POST("/reciprocal/authorize", partnerHandler.ReciprocalAuthorize)
		api.POST("/profiles/publish", partnerHandler.PublishProfiles)

		api.GET("/partners", requireAdmin, adminHandler.ListPartners)
		api.POST("/partners", requireAdmin, adminHandler.SavePartner)
		api.DELETE("/partners/:id", requireAdmin, adminHandler.DeletePartner)

		api.GET("/clients", requireAdmin, adminHandler.ListClients)
		api.POST("/clients", requireAdmin, adminHandler.CreateClient)
		api.PUT("/clients/:id", requireAdmin, adminHandler.UpdateClient)
		api.DELETE("/clients/:id", requireAdmin, adminHandler.DeleteClient)
	}

	return r
}
