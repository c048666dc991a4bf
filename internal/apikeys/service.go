package apikeys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrAPIKeyNotFound is returned when an API key is not found
	ErrAPIKeyNotFound = errors.New("api key not found")
)

const keyColumns = `id, org_id, name, scopes, created_by_user_id, last_used_at, expires_at, revoked_at, created_at`

// Service provides API key operations
type Service struct {
	pool *pgxpool.Pool
}

// NewService creates a new API key service
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

func scanKey(row pgx.Row) (*ApiKey, error) {
	var key ApiKey
	err := row.Scan(
		&key.ID,
		&key.OrgID,
		&key.Name,
		&key.Scopes,
		&key.CreatedByUserID,
		&key.LastUsedAt,
		&key.ExpiresAt,
		&key.RevokedAt,
		&key.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to scan api key: %w", err)
	}
	return &key, nil
}

// GetByID retrieves an API key by ID
func (s *Service) GetByID(ctx context.Context, apiKeyID uuid.UUID) (*ApiKey, error) {
	return scanKey(s.pool.QueryRow(ctx, `
		SELECT `+keyColumns+` FROM api_keys WHERE id = $1
	`, apiKeyID))
}

// GetByTokenHash retrieves an API key by its token hash
func (s *Service) GetByTokenHash(ctx context.Context, tokenHash []byte) (*ApiKey, error) {
	return scanKey(s.pool.QueryRow(ctx, `
		SELECT `+keyColumns+` FROM api_keys WHERE token_hash = $1
	`, tokenHash))
}

// ListByOrg retrieves all API keys for an organization
func (s *Service) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]ApiKey, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+keyColumns+` FROM api_keys
		WHERE org_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []ApiKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *key)
	}
	return keys, rows.Err()
}

// Create generates and stores a new API key. The plaintext token is returned
// exactly once.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, name string, scopes []ApiKeyScope, userID uuid.UUID, expiresAt *time.Time) (*ApiKey, string, error) {
	token, tokenHash, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}

	scopeStrings := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		scopeStrings = append(scopeStrings, string(scope))
	}

	key, err := scanKey(s.pool.QueryRow(ctx, `
		INSERT INTO api_keys (org_id, name, token_hash, scopes, created_by_user_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+keyColumns+`
	`, orgID, name, tokenHash, scopeStrings, userID, expiresAt))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create api key: %w", err)
	}

	return key, token, nil
}

// Revoke marks an API key as revoked. Revocation is permanent.
func (s *Service) Revoke(ctx context.Context, orgID, apiKeyID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE api_keys
		SET revoked_at = NOW()
		WHERE id = $1 AND org_id = $2 AND revoked_at IS NULL
	`, apiKeyID, orgID)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// UpdateLastUsed updates the last_used_at timestamp for an API key
func (s *Service) UpdateLastUsed(ctx context.Context, apiKeyID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE api_keys SET last_used_at = NOW() WHERE id = $1
	`, apiKeyID)
	if err != nil {
		return fmt.Errorf("failed to update last_used_at: %w", err)
	}
	return nil
}
