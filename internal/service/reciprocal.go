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

// ReciprocalGrantType is the only grant type accepted by the reciprocal
// authorization endpoint.
const ReciprocalGrantType = "reciprocal_authorization_code"

// ReciprocalService exchanges reciprocal authorization codes posted by a
// partner for partner access tokens, replacing any prior token held for
// the same (partner, local identity) pair.
type ReciprocalService struct {
	partners repository.PartnerRegistry
	tokens   repository.PartnerTokenStore
	endpoint partneradapter.TokenEndpointClient
	logger   *zap.Logger
}

func NewReciprocalService(
	partners repository.PartnerRegistry,
	tokens repository.PartnerTokenStore,
	endpoint partneradapter.TokenEndpointClient,
	logger *zap.Logger,
) *ReciprocalService {
	return &ReciprocalService{partners: partners, tokens: tokens, endpoint: endpoint, logger: logger}
}

// Exchange redeems the reciprocal code at the partner's token endpoint
// and stores the resulting token for the authenticated local principal.
// Old tokens are removed before the new one is saved so a concurrent
// reader can never pick up a superseded generation after the save lands.
func (s *ReciprocalService) Exchange(ctx context.Context, grantType, partnerID, code string, auth domain.Authentication) error {
	if grantType != ReciprocalGrantType {
		return fmt.Errorf("grant type %q: %w", grantType, domain.ErrUnsupportedGrantType)
	}

	partner, err := s.partners.LoadPartner(ctx, partnerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("partner %s: %w", partnerID, domain.ErrUnknownPartner)
		}
		return fmt.Errorf("load partner: %w", err)
	}

	token, err := s.endpoint.ExchangeCode(ctx, partner, code)
	if err != nil {
		return fmt.Errorf("exchange: %v: %w", err, domain.ErrPartnerExchangeFailed)
	}

	if err := s.tokens.RemoveTokens(ctx, partner, auth); err != nil {
		return fmt.Errorf("remove prior partner tokens: %w", err)
	}
	if err := s.tokens.SaveToken(ctx, partner, auth, token); err != nil {
		return fmt.Errorf("save partner token: %w", err)
	}

	s.log().Info("reciprocal code exchanged",
		zap.String("partner_id", partnerID),
		zap.String("user_name", auth.Name()))
	return nil
}

func (s *ReciprocalService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
