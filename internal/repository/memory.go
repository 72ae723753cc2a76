package repository

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
	"github.com/skillbridge/skillbridge-oauth/internal/oauth"
)

// Compile-time interface assertions.
var (
	_ TokenStore        = (*MemoryTokenStore)(nil)
	_ PartnerRegistry   = (*MemoryPartnerRegistry)(nil)
	_ PartnerTokenStore = (*MemoryPartnerTokenStore)(nil)
	_ ClientRegistry    = (*MemoryClientRegistry)(nil)
)

// MemoryTokenStore is an in-memory TokenStore suitable for tests and
// single-instance local runs.
type MemoryTokenStore struct {
	mu            sync.RWMutex
	accessTokens  map[string]domain.AccessTokenRecord
	refreshTokens map[string]domain.RefreshTokenRecord
	codes         map[string]domain.Authentication
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		accessTokens:  make(map[string]domain.AccessTokenRecord),
		refreshTokens: make(map[string]domain.RefreshTokenRecord),
		codes:         make(map[string]domain.Authentication),
	}
}

func (s *MemoryTokenStore) StoreAccessToken(ctx context.Context, token domain.AccessToken, auth domain.Authentication) error {
	record := domain.AccessTokenRecord{
		TokenID:          oauth.HashToken(token.Value),
		Token:            token,
		AuthenticationID: oauth.AuthenticationKey(auth),
		ClientID:         auth.ClientID,
		UserName:         auth.Name(),
		Authentication:   auth,
		RefreshTokenID:   oauth.HashToken(token.RefreshToken),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTokens[record.TokenID] = record
	return nil
}

func (s *MemoryTokenStore) ReadAccessToken(ctx context.Context, tokenValue string) (domain.AccessTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.accessTokens[oauth.HashToken(tokenValue)]
	if !ok {
		return domain.AccessTokenRecord{}, domain.ErrNotFound
	}
	return record, nil
}

func (s *MemoryTokenStore) GetAccessToken(ctx context.Context, auth domain.Authentication) (domain.AccessTokenRecord, error) {
	key := oauth.AuthenticationKey(auth)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.accessTokens {
		if record.AuthenticationID == key {
			return record, nil
		}
	}
	return domain.AccessTokenRecord{}, domain.ErrNotFound
}

func (s *MemoryTokenStore) RemoveAccessToken(ctx context.Context, tokenValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accessTokens, oauth.HashToken(tokenValue))
	return nil
}

func (s *MemoryTokenStore) RemoveAccessTokenByRefreshToken(ctx context.Context, refreshTokenValue string) error {
	key := oauth.HashToken(refreshTokenValue)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, record := range s.accessTokens {
		if record.RefreshTokenID != "" && record.RefreshTokenID == key {
			delete(s.accessTokens, id)
		}
	}
	return nil
}

func (s *MemoryTokenStore) FindTokensByClient(ctx context.Context, clientID string) ([]domain.AccessTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []domain.AccessTokenRecord
	for _, record := range s.accessTokens {
		if record.ClientID == clientID {
			records = append(records, record)
		}
	}
	return records, nil
}

func (s *MemoryTokenStore) FindTokensByClientAndUser(ctx context.Context, clientID, userName string) ([]domain.AccessTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []domain.AccessTokenRecord
	for _, record := range s.accessTokens {
		if record.ClientID == clientID && record.UserName == userName {
			records = append(records, record)
		}
	}
	return records, nil
}

func (s *MemoryTokenStore) StoreRefreshToken(ctx context.Context, token domain.RefreshToken, auth domain.Authentication) error {
	record := domain.RefreshTokenRecord{
		TokenID:        oauth.HashToken(token.Value),
		Token:          token,
		Authentication: auth,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens[record.TokenID] = record
	return nil
}

func (s *MemoryTokenStore) ReadRefreshToken(ctx context.Context, tokenValue string) (domain.RefreshTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.refreshTokens[oauth.HashToken(tokenValue)]
	if !ok {
		return domain.RefreshTokenRecord{}, domain.ErrNotFound
	}
	return record, nil
}

func (s *MemoryTokenStore) RemoveRefreshToken(ctx context.Context, tokenValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refreshTokens, oauth.HashToken(tokenValue))
	return nil
}

func (s *MemoryTokenStore) StoreAuthorizationCode(ctx context.Context, code string, auth domain.Authentication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.codes[code]; exists {
		return domain.ErrDuplicateCode
	}
	s.codes[code] = auth
	return nil
}

func (s *MemoryTokenStore) ConsumeAuthorizationCode(ctx context.Context, code string) (domain.Authentication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	auth, ok := s.codes[code]
	if !ok {
		return domain.Authentication{}, domain.ErrNotFound
	}
	delete(s.codes, code)
	return auth, nil
}

// MemoryPartnerRegistry is an in-memory PartnerRegistry.
type MemoryPartnerRegistry struct {
	mu       sync.RWMutex
	partners map[string]domain.Partner
	logger   *zap.Logger
}

func NewMemoryPartnerRegistry(logger *zap.Logger) *MemoryPartnerRegistry {
	return &MemoryPartnerRegistry{partners: make(map[string]domain.Partner), logger: logger}
}

func (r *MemoryPartnerRegistry) LoadPartner(ctx context.Context, partnerID string) (domain.Partner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	partner, ok := r.partners[partnerID]
	if !ok {
		return domain.Partner{}, domain.ErrNotFound
	}
	return partner, nil
}

func (r *MemoryPartnerRegistry) ListPartners(ctx context.Context) ([]domain.Partner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	partners := make([]domain.Partner, 0, len(r.partners))
	for _, partner := range r.partners {
		partners = append(partners, partner)
	}
	return partners, nil
}

func (r *MemoryPartnerRegistry) SavePartner(ctx context.Context, partner domain.Partner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partners[partner.PartnerID] = partner
	return nil
}

func (r *MemoryPartnerRegistry) DeletePartner(ctx context.Context, partnerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.partners[partnerID]; !ok {
		r.log().Warn("partner already deleted", zap.String("partner_id", partnerID))
		return nil
	}
	delete(r.partners, partnerID)
	return nil
}

func (r *MemoryPartnerRegistry) log() *zap.Logger {
	if r.logger != nil {
		return r.logger
	}
	return zap.L()
}

// MemoryPartnerTokenStore is an in-memory PartnerTokenStore. Records are
// keyed by the raw token value, matching the persisted schema.
type MemoryPartnerTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]domain.PartnerTokenRecord
}

func NewMemoryPartnerTokenStore() *MemoryPartnerTokenStore {
	return &MemoryPartnerTokenStore{tokens: make(map[string]domain.PartnerTokenRecord)}
}

func (s *MemoryPartnerTokenStore) GetToken(ctx context.Context, partner domain.Partner, auth domain.Authentication) (domain.PartnerTokenRecord, error) {
	key := oauth.PartnerKey(partner, auth)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.tokens {
		if record.AuthenticationID == key {
			return record, nil
		}
	}
	return domain.PartnerTokenRecord{}, domain.ErrNotFound
}

func (s *MemoryPartnerTokenStore) SaveToken(ctx context.Context, partner domain.Partner, auth domain.Authentication, token domain.AccessToken) error {
	record := domain.PartnerTokenRecord{
		TokenID:          token.Value,
		Token:            token,
		AuthenticationID: oauth.PartnerKey(partner, auth),
		ClientID:         partner.ClientID,
		UserName:         auth.Name(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[record.TokenID] = record
	return nil
}

func (s *MemoryPartnerTokenStore) RemoveTokens(ctx context.Context, partner domain.Partner, auth domain.Authentication) error {
	key := oauth.PartnerKey(partner, auth)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, record := range s.tokens {
		if record.AuthenticationID == key {
			delete(s.tokens, id)
		}
	}
	return nil
}

// MemoryClientRegistry is an in-memory ClientRegistry.
type MemoryClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]domain.Client
	logger  *zap.Logger
}

func NewMemoryClientRegistry(logger *zap.Logger) *MemoryClientRegistry {
	return &MemoryClientRegistry{clients: make(map[string]domain.Client), logger: logger}
}

func (r *MemoryClientRegistry) LoadClient(ctx context.Context, clientID string) (domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[clientID]
	if !ok {
		return domain.Client{}, domain.ErrNotFound
	}
	return client, nil
}

func (r *MemoryClientRegistry) ListClients(ctx context.Context) ([]domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]domain.Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients, nil
}

func (r *MemoryClientRegistry) CreateClient(ctx context.Context, client domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[client.ClientID]; exists {
		return domain.ErrClientExists
	}
	r.clients[client.ClientID] = client
	return nil
}

func (r *MemoryClientRegistry) UpdateClient(ctx context.Context, client domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[client.ClientID]; !exists {
		return domain.ErrNotFound
	}
	r.clients[client.ClientID] = client
	return nil
}

func (r *MemoryClientRegistry) DeleteClient(ctx context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[clientID]; !exists {
		r.log().Warn("client already deleted", zap.String("client_id", clientID))
		return nil
	}
	delete(r.clients, clientID)
	return nil
}

func (r *MemoryClientRegistry) log() *zap.Logger {
	if r.logger != nil {
		return r.logger
	}
	return zap.L()
}
