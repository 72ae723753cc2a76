package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
	"github.com/skillbridge/skillbridge-oauth/internal/oauth"
)

// Compile-time interface assertions.
var (
	_ TokenStore        = (*PostgresTokenStore)(nil)
	_ PartnerRegistry   = (*PostgresPartnerRegistry)(nil)
	_ PartnerTokenStore = (*PostgresPartnerTokenStore)(nil)
	_ ClientRegistry    = (*PostgresClientRegistry)(nil)
)

const uniqueViolation = "23505"

// storeErr maps backend failures to the store-level error contract:
// pgx.ErrNoRows becomes domain.ErrNotFound, anything else is a transient
// storage failure surfaced fail-fast without retry.
func storeErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %s: %w", op, err, domain.ErrStorageUnavailable)
}

// PostgresTokenStore implements TokenStore on pgx.
type PostgresTokenStore struct {
	db *pgxpool.Pool
}

func NewPostgresTokenStore(db *pgxpool.Pool) *PostgresTokenStore {
	return &PostgresTokenStore{db: db}
}

const upsertAccessTokenSQL = `INSERT INTO "OAuthAccessToken"
("tokenId", token, "authenticationId", "clientId", "userName", authentication, "refreshToken")
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT ("tokenId") DO UPDATE SET
token = EXCLUDED.token,
"authenticationId" = EXCLUDED."authenticationId",
"clientId" = EXCLUDED."clientId",
"userName" = EXCLUDED."userName",
authentication = EXCLUDED.authentication,
"refreshToken" = EXCLUDED."refreshToken"`

func (s *PostgresTokenStore) StoreAccessToken(ctx context.Context, token domain.AccessToken, auth domain.Authentication) error {
	tokenBlob, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	authBlob, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("marshal authentication: %w", err)
	}

	_, err = s.db.Exec(ctx, upsertAccessTokenSQL,
		oauth.HashToken(token.Value),
		tokenBlob,
		oauth.AuthenticationKey(auth),
		auth.ClientID,
		auth.Name(),
		authBlob,
		nullableKey(oauth.HashToken(token.RefreshToken)),
	)
	if err != nil {
		return storeErr("store access token", err)
	}
	return nil
}

const selectAccessTokenSQL = `SELECT "tokenId", token, "authenticationId", "clientId", "userName", authentication, COALESCE("refreshToken", '')
FROM "OAuthAccessToken"`

func (s *PostgresTokenStore) ReadAccessToken(ctx context.Context, tokenValue string) (domain.AccessTokenRecord, error) {
	row := s.db.QueryRow(ctx, selectAccessTokenSQL+` WHERE "tokenId" = $1`, oauth.HashToken(tokenValue))
	record, err := scanAccessToken(row)
	if err != nil {
		return domain.AccessTokenRecord{}, storeErr("read access token", err)
	}
	return record, nil
}

func (s *PostgresTokenStore) GetAccessToken(ctx context.Context, auth domain.Authentication) (domain.AccessTokenRecord, error) {
	row := s.db.QueryRow(ctx, selectAccessTokenSQL+` WHERE "authenticationId" = $1 LIMIT 1`, oauth.AuthenticationKey(auth))
	record, err := scanAccessToken(row)
	if err != nil {
		return domain.AccessTokenRecord{}, storeErr("get access token", err)
	}
	return record, nil
}

func (s *PostgresTokenStore) RemoveAccessToken(ctx context.Context, tokenValue string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM "OAuthAccessToken" WHERE "tokenId" = $1`, oauth.HashToken(tokenValue)); err != nil {
		return storeErr("remove access token", err)
	}
	return nil
}

func (s *PostgresTokenStore) RemoveAccessTokenByRefreshToken(ctx context.Context, refreshTokenValue string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM "OAuthAccessToken" WHERE "refreshToken" = $1`, oauth.HashToken(refreshTokenValue)); err != nil {
		return storeErr("remove access tokens by refresh token", err)
	}
	return nil
}

func (s *PostgresTokenStore) FindTokensByClient(ctx context.Context, clientID string) ([]domain.AccessTokenRecord, error) {
	rows, err := s.db.Query(ctx, selectAccessTokenSQL+` WHERE "clientId" = $1`, clientID)
	if err != nil {
		return nil, storeErr("find tokens by client", err)
	}
	return collectAccessTokens(rows, "find tokens by client")
}

func (s *PostgresTokenStore) FindTokensByClientAndUser(ctx context.Context, clientID, userName string) ([]domain.AccessTokenRecord, error) {
	rows, err := s.db.Query(ctx, selectAccessTokenSQL+` WHERE "clientId" = $1 AND "userName" = $2`, clientID, userName)
	if err != nil {
		return nil, storeErr("find tokens by client and user", err)
	}
	return collectAccessTokens(rows, "find tokens by client and user")
}

const upsertRefreshTokenSQL = `INSERT INTO "OAuthRefreshToken" ("tokenId", token, authentication)
VALUES ($1, $2, $3)
ON CONFLICT ("tokenId") DO UPDATE SET token = EXCLUDED.token, authentication = EXCLUDED.authentication`

func (s *PostgresTokenStore) StoreRefreshToken(ctx context.Context, token domain.RefreshToken, auth domain.Authentication) error {
	tokenBlob, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal refresh token: %w", err)
	}
	authBlob, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("marshal authentication: %w", err)
	}
	if _, err := s.db.Exec(ctx, upsertRefreshTokenSQL, oauth.HashToken(token.Value), tokenBlob, authBlob); err != nil {
		return storeErr("store refresh token", err)
	}
	return nil
}

func (s *PostgresTokenStore) ReadRefreshToken(ctx context.Context, tokenValue string) (domain.RefreshTokenRecord, error) {
	var (
		record    domain.RefreshTokenRecord
		tokenBlob []byte
		authBlob  []byte
	)
	row := s.db.QueryRow(ctx, `SELECT "tokenId", token, authentication FROM "OAuthRefreshToken" WHERE "tokenId" = $1`,
		oauth.HashToken(tokenValue))
	if err := row.Scan(&record.TokenID, &tokenBlob, &authBlob); err != nil {
		return domain.RefreshTokenRecord{}, storeErr("read refresh token", err)
	}
	if err := json.Unmarshal(tokenBlob, &record.Token); err != nil {
		return domain.RefreshTokenRecord{}, fmt.Errorf("unmarshal refresh token: %w", err)
	}
	if err := json.Unmarshal(authBlob, &record.Authentication); err != nil {
		return domain.RefreshTokenRecord{}, fmt.Errorf("unmarshal authentication: %w", err)
	}
	return record, nil
}

func (s *PostgresTokenStore) RemoveRefreshToken(ctx context.Context, tokenValue string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM "OAuthRefreshToken" WHERE "tokenId" = $1`, oauth.HashToken(tokenValue)); err != nil {
		return storeErr("remove refresh token", err)
	}
	return nil
}

func (s *PostgresTokenStore) StoreAuthorizationCode(ctx context.Context, code string, auth domain.Authentication) error {
	authBlob, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("marshal authentication: %w", err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO "OAuthCode" (code, authentication) VALUES ($1, $2)`, code, authBlob)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateCode
		}
		return storeErr("store authorization code", err)
	}
	return nil
}

// ConsumeAuthorizationCode deletes the code and returns its
// authentication in one statement, so exactly one concurrent redemption
// can succeed.
func (s *PostgresTokenStore) ConsumeAuthorizationCode(ctx context.Context, code string) (domain.Authentication, error) {
	var authBlob []byte
	row := s.db.QueryRow(ctx, `DELETE FROM "OAuthCode" WHERE code = $1 RETURNING authentication`, code)
	if err := row.Scan(&authBlob); err != nil {
		return domain.Authentication{}, storeErr("consume authorization code", err)
	}
	var auth domain.Authentication
	if err := json.Unmarshal(authBlob, &auth); err != nil {
		return domain.Authentication{}, fmt.Errorf("unmarshal authentication: %w", err)
	}
	return auth, nil
}

func scanAccessToken(row pgx.Row) (domain.AccessTokenRecord, error) {
	var (
		record    domain.AccessTokenRecord
		tokenBlob []byte
		authBlob  []byte
	)
	if err := row.Scan(&record.TokenID, &tokenBlob, &record.AuthenticationID, &record.ClientID,
		&record.UserName, &authBlob, &record.RefreshTokenID); err != nil {
		return domain.AccessTokenRecord{}, err
	}
	if err := json.Unmarshal(tokenBlob, &record.Token); err != nil {
		return domain.AccessTokenRecord{}, fmt.Errorf("unmarshal token: %w", err)
	}
	if err := json.Unmarshal(authBlob, &record.Authentication); err != nil {
		return domain.AccessTokenRecord{}, fmt.Errorf("unmarshal authentication: %w", err)
	}
	return record, nil
}

func collectAccessTokens(rows pgx.Rows, op string) ([]domain.AccessTokenRecord, error) {
	defer rows.Close()
	var records []domain.AccessTokenRecord
	for rows.Next() {
		record, err := scanAccessToken(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return records, nil
}

// nullableKey turns the empty derived key into SQL NULL so absent
// refresh tokens never collide on the secondary index.
func nullableKey(key string) any {
	if key == "" {
		return nil
	}
	return key
}

// PostgresPartnerRegistry implements PartnerRegistry.
type PostgresPartnerRegistry struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresPartnerRegistry(db *pgxpool.Pool, logger *zap.Logger) *PostgresPartnerRegistry {
	return &PostgresPartnerRegistry{db: db, logger: logger}
}

const selectPartnerSQL = `SELECT "partnerId", "clientId", "clientSecret", "accessTokenUri", "userAuthorizationUri", COALESCE("preEstablishedRedirectUri", ''), COALESCE(scopes, '')
FROM "OAuthPartner"`

func (r *PostgresPartnerRegistry) LoadPartner(ctx context.Context, partnerID string) (domain.Partner, error) {
	row := r.db.QueryRow(ctx, selectPartnerSQL+` WHERE "partnerId" = $1`, partnerID)
	partner, err := scanPartner(row)
	if err != nil {
		return domain.Partner{}, storeErr("load partner", err)
	}
	return partner, nil
}

func (r *PostgresPartnerRegistry) ListPartners(ctx context.Context) ([]domain.Partner, error) {
	rows, err := r.db.Query(ctx, selectPartnerSQL)
	if err != nil {
		return nil, storeErr("list partners", err)
	}
	defer rows.Close()

	var partners []domain.Partner
	for rows.Next() {
		partner, err := scanPartner(rows)
		if err != nil {
			return nil, storeErr("list partners", err)
		}
		partners = append(partners, partner)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list partners", err)
	}
	return partners, nil
}

const upsertPartnerSQL = `INSERT INTO "OAuthPartner"
("partnerId", "clientId", "clientSecret", "accessTokenUri", "userAuthorizationUri", "preEstablishedRedirectUri", scopes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT ("partnerId") DO UPDATE SET
"clientId" = EXCLUDED."clientId",
"clientSecret" = EXCLUDED."clientSecret",
"accessTokenUri" = EXCLUDED."accessTokenUri",
"userAuthorizationUri" = EXCLUDED."userAuthorizationUri",
"preEstablishedRedirectUri" = EXCLUDED."preEstablishedRedirectUri",
scopes = EXCLUDED.scopes`

func (r *PostgresPartnerRegistry) SavePartner(ctx context.Context, partner domain.Partner) error {
	_, err := r.db.Exec(ctx, upsertPartnerSQL,
		partner.PartnerID,
		partner.ClientID,
		partner.ClientSecret,
		partner.AccessTokenURI,
		partner.UserAuthorizationURI,
		partner.PreEstablishedRedirectURI,
		strings.Join(partner.Scopes, ","),
	)
	if err != nil {
		return storeErr("save partner", err)
	}
	return nil
}

func (r *PostgresPartnerRegistry) DeletePartner(ctx context.Context, partnerID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM "OAuthPartner" WHERE "partnerId" = $1`, partnerID)
	if err != nil {
		return storeErr("delete partner", err)
	}
	if tag.RowsAffected() == 0 {
		r.log().Warn("partner already deleted", zap.String("partner_id", partnerID))
	}
	return nil
}

func (r *PostgresPartnerRegistry) log() *zap.Logger {
	if r.logger != nil {
		return r.logger
	}
	return zap.L()
}

func scanPartner(row pgx.Row) (domain.Partner, error) {
	var (
		partner domain.Partner
		scopes  string
	)
	if err := row.Scan(&partner.PartnerID, &partner.ClientID, &partner.ClientSecret,
		&partner.AccessTokenURI, &partner.UserAuthorizationURI, &partner.PreEstablishedRedirectURI, &scopes); err != nil {
		return domain.Partner{}, err
	}
	partner.Scopes = splitScopes(scopes)
	return partner, nil
}

func splitScopes(scopes string) []string {
	if scopes == "" {
		return nil
	}
	parts := strings.Split(scopes, ",")
	var cleaned []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

// PostgresPartnerTokenStore implements PartnerTokenStore. The primary key
// is the raw token value, not a hash; see the partner token record docs.
type PostgresPartnerTokenStore struct {
	db *pgxpool.Pool
}

func NewPostgresPartnerTokenStore(db *pgxpool.Pool) *PostgresPartnerTokenStore {
	return &PostgresPartnerTokenStore{db: db}
}

func (s *PostgresPartnerTokenStore) GetToken(ctx context.Context, partner domain.Partner, auth domain.Authentication) (domain.PartnerTokenRecord, error) {
	var (
		record    domain.PartnerTokenRecord
		tokenBlob []byte
	)
	row := s.db.QueryRow(ctx,
		`SELECT "tokenId", token, "authenticationId", "clientId", "userName" FROM "OAuthPartnerToken" WHERE "authenticationId" = $1 LIMIT 1`,
		oauth.PartnerKey(partner, auth))
	if err := row.Scan(&record.TokenID, &tokenBlob, &record.AuthenticationID, &record.ClientID, &record.UserName); err != nil {
		return domain.PartnerTokenRecord{}, storeErr("get partner token", err)
	}
	if err := json.Unmarshal(tokenBlob, &record.Token); err != nil {
		return domain.PartnerTokenRecord{}, fmt.Errorf("unmarshal partner token: %w", err)
	}
	return record, nil
}

const upsertPartnerTokenSQL = `INSERT INTO "OAuthPartnerToken"
("tokenId", token, "authenticationId", "clientId", "userName")
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT ("tokenId") DO UPDATE SET
token = EXCLUDED.token,
"authenticationId" = EXCLUDED."authenticationId",
"clientId" = EXCLUDED."clientId",
"userName" = EXCLUDED."userName"`

func (s *PostgresPartnerTokenStore) SaveToken(ctx context.Context, partner domain.Partner, auth domain.Authentication, token domain.AccessToken) error {
	tokenBlob, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal partner token: %w", err)
	}
	_, err = s.db.Exec(ctx, upsertPartnerTokenSQL,
		token.Value,
		tokenBlob,
		oauth.PartnerKey(partner, auth),
		partner.ClientID,
		auth.Name(),
	)
	if err != nil {
		return storeErr("save partner token", err)
	}
	return nil
}

func (s *PostgresPartnerTokenStore) RemoveTokens(ctx context.Context, partner domain.Partner, auth domain.Authentication) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM "OAuthPartnerToken" WHERE "authenticationId" = $1`,
		oauth.PartnerKey(partner, auth)); err != nil {
		return storeErr("remove partner tokens", err)
	}
	return nil
}

// PostgresClientRegistry implements ClientRegistry.
type PostgresClientRegistry struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresClientRegistry(db *pgxpool.Pool, logger *zap.Logger) *PostgresClientRegistry {
	return &PostgresClientRegistry{db: db, logger: logger}
}

const selectClientSQL = `SELECT "clientId", "clientSecret", COALESCE(scopes, ''), COALESCE("webServerRedirectUri", ''), COALESCE("authorizedGrantTypes", ''), COALESCE(authorities, ''), "accessTokenValidity", "refreshTokenValidity", autoapprove
FROM "OAuthClient"`

func (r *PostgresClientRegistry) LoadClient(ctx context.Context, clientID string) (domain.Client, error) {
	row := r.db.QueryRow(ctx, selectClientSQL+` WHERE "clientId" = $1`, clientID)
	client, err := scanClient(row)
	if err != nil {
		return domain.Client{}, storeErr("load client", err)
	}
	return client, nil
}

func (r *PostgresClientRegistry) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.Query(ctx, selectClientSQL)
	if err != nil {
		return nil, storeErr("list clients", err)
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, storeErr("list clients", err)
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list clients", err)
	}
	return clients, nil
}

const insertClientSQL = `INSERT INTO "OAuthClient"
("clientId", "clientSecret", scopes, "webServerRedirectUri", "authorizedGrantTypes", authorities, "accessTokenValidity", "refreshTokenValidity", autoapprove)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (r *PostgresClientRegistry) CreateClient(ctx context.Context, client domain.Client) error {
	_, err := r.db.Exec(ctx, insertClientSQL, clientArgs(client)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrClientExists
		}
		return storeErr("create client", err)
	}
	return nil
}

const updateClientSQL = `UPDATE "OAuthClient" SET
"clientSecret" = $2, scopes = $3, "webServerRedirectUri" = $4, "authorizedGrantTypes" = $5,
authorities = $6, "accessTokenValidity" = $7, "refreshTokenValidity" = $8, autoapprove = $9
WHERE "clientId" = $1`

func (r *PostgresClientRegistry) UpdateClient(ctx context.Context, client domain.Client) error {
	tag, err := r.db.Exec(ctx, updateClientSQL, clientArgs(client)...)
	if err != nil {
		return storeErr("update client", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresClientRegistry) DeleteClient(ctx context.Context, clientID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM "OAuthClient" WHERE "clientId" = $1`, clientID)
	if err != nil {
		return storeErr("delete client", err)
	}
	if tag.RowsAffected() == 0 {
		r.log().Warn("client already deleted", zap.String("client_id", clientID))
	}
	return nil
}

func (r *PostgresClientRegistry) log() *zap.Logger {
	if r.logger != nil {
		return r.logger
	}
	return zap.L()
}

func clientArgs(client domain.Client) []any {
	return []any{
		client.ClientID,
		client.SecretHash,
		strings.Join(client.Scopes, ","),
		strings.Join(client.RedirectURIs, ","),
		strings.Join(client.AuthorizedGrantTypes, ","),
		strings.Join(client.Authorities, ","),
		client.AccessTokenValidity,
		client.RefreshTokenValidity,
		client.AutoApprove,
	}
}

func scanClient(row pgx.Row) (domain.Client, error) {
	var (
		client     domain.Client
		scopes     string
		redirects  string
		grantTypes string
		authority  string
	)
	if err := row.Scan(&client.ClientID, &client.SecretHash, &scopes, &redirects, &grantTypes,
		&authority, &client.AccessTokenValidity, &client.RefreshTokenValidity, &client.AutoApprove); err != nil {
		return domain.Client{}, err
	}
	client.Scopes = splitScopes(scopes)
	client.RedirectURIs = splitScopes(redirects)
	client.AuthorizedGrantTypes = splitScopes(grantTypes)
	client.Authorities = splitScopes(authority)
	return client, nil
}
