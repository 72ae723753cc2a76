// Package seed loads demonstration clients and partners on startup.
package seed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
	"github.com/skillbridge/skillbridge-oauth/internal/repository"
)

// Load inserts the sample client, admin client, and partner used for
// local development and skill certification runs. Existing records with
// the same ids are left untouched.
func Load(ctx context.Context, clients repository.ClientRegistry, partners repository.PartnerRegistry, logger *zap.Logger) error {
	secretHash, err := bcrypt.GenerateFromPassword([]byte("test_client_secret"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash sample secret: %w", err)
	}

	sampleClients := []domain.Client{
		{
			ClientID:             "test_alexa_client",
			SecretHash:           string(secretHash),
			Scopes:               []string{"profile"},
			RedirectURIs:         []string{"https://pitangui.amazon.com/api/skill/link/M3KVOEXUO4ALBL"},
			AuthorizedGrantTypes: []string{"authorization_code", "refresh_token"},
			AccessTokenValidity:  3600,
		},
		{
			ClientID:             "test_admin_client",
			SecretHash:           string(secretHash),
			Scopes:               []string{"test_scope"},
			RedirectURIs:         []string{"http://localhost:5000/redirect"},
			AuthorizedGrantTypes: []string{"client_credentials", "authorization_code", "password", "refresh_token"},
			Authorities:          []string{domain.RoleClientAdmin},
			AccessTokenValidity:  3600,
		},
	}
	for _, client := range sampleClients {
		if err := clients.CreateClient(ctx, client); err != nil {
			if errors.Is(err, domain.ErrClientExists) {
				continue
			}
			return fmt.Errorf("seed client %s: %w", client.ClientID, err)
		}
		logger.Info("seeded sample client", zap.String("client_id", client.ClientID))
	}

	partner := domain.Partner{
		PartnerID:            "test_alexa_client",
		ClientID:             "amzn1.application-oa2-client.0897266ee6fb480ead86d615e2653558",
		ClientSecret:         "8241c286e8eb9c9741ce5b9e009c892f0bd4d603b21e51dc37efb5981245191a",
		Scopes:               []string{"alexa::health:profile:write"},
		AccessTokenURI:       "https://api.amazon.com/auth/o2/token",
		UserAuthorizationURI: "https://www.amazon.com/ap/oa",
	}
	if err := partners.SavePartner(ctx, partner); err != nil {
		return fmt.Errorf("seed partner %s: %w", partner.PartnerID, err)
	}
	logger.Info("seeded sample partner", zap.String("partner_id", partner.PartnerID))
	return nil
}

// SampleUsers returns the demo users for the in-memory user directory.
func SampleUsers() ([]domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash sample password: %w", err)
	}
	return []domain.User{
		{UserName: "user", PasswordHash: string(hash), Authorities: []string{domain.RoleUserAdmin}},
		{UserName: "admin", PasswordHash: string(hash), Authorities: []string{domain.RoleUserAdmin, domain.RoleClientAdmin}},
	}, nil
}
