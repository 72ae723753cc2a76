package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	partneradapter "github.com/skillbridge/skillbridge-oauth/internal/adapter/partner"
	"github.com/skillbridge/skillbridge-oauth/internal/domain"
	"github.com/skillbridge/skillbridge-oauth/internal/repository"
)

// PartnerTokenManager hands out partner tokens for local users,
// refreshing expired ones on read. Refresh-on-read trades first-access
// latency for not running a background refresh scheduler; call volume is
// bounded by user-initiated skill invocations.
type PartnerTokenManager struct {
	partners repository.PartnerRegistry
	tokens   repository.PartnerTokenStore
	endpoint partneradapter.TokenEndpointClient
	logger   *zap.Logger
}

func NewPartnerTokenManager(
	partners repository.PartnerRegistry,
	tokens repository.PartnerTokenStore,
	endpoint partneradapter.TokenEndpointClient,
	logger *zap.Logger,
) *PartnerTokenManager {
	return &PartnerTokenManager{partners: partners, tokens: tokens, endpoint: endpoint, logger: logger}
}

// GetAccessToken returns the partner token held for (userID, partnerID),
// refreshing it first when expired. A failed refresh keeps the stale
// record in place for inspection and returns ErrPartnerRefreshFailed.
func (m *PartnerTokenManager) GetAccessToken(ctx context.Context, userID, partnerID string) (domain.AccessToken, error) {
	partner, err := m.partners.LoadPartner(ctx, partnerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.AccessToken{}, fmt.Errorf("partner %s: %w", partnerID, domain.ErrUnknownPartner)
		}
		return domain.AccessToken{}, fmt.Errorf("load partner: %w", err)
	}

	auth := domain.Authentication{UserName: userID}
	record, err := m.tokens.GetToken(ctx, partner, auth)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.AccessToken{}, fmt.Errorf("user %s partner %s: %w", userID, partnerID, domain.ErrNoTokenForUser)
		}
		return domain.AccessToken{}, fmt.Errorf("get partner token: %w", err)
	}

	token := record.Token
	if token.Expired() {
		refreshed, err := m.endpoint.Refresh(ctx, partner, token.RefreshToken)
		if err != nil {
			m.log().Warn("partner token refresh failed",
				zap.String("partner_id", partnerID),
				zap.String("user_id", userID),
				zap.Error(err))
			return domain.AccessToken{}, fmt.Errorf("refresh: %v: %w", err, domain.ErrPartnerRefreshFailed)
		}
		m.log().Info("partner token refreshed",
			zap.String("partner_id", partnerID),
			zap.String("user_id", userID))
		token = refreshed
	}

	if err := m.tokens.SaveToken(ctx, partner, auth, token); err != nil {
		return domain.AccessToken{}, fmt.Errorf("save partner token: %w", err)
	}
	return token, nil
}

func (m *PartnerTokenManager) log() *zap.Logger {
	if m != nil && m.logger != nil {
		return m.logger
	}
	return zap.L()
}
