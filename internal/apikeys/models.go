package apikeys

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ApiKeyScope represents a permission scope for an API key
type ApiKeyScope string

const (
	ScopeIntakeWrite ApiKeyScope = "intake:write"
	ScopeReadOrg     ApiKeyScope = "read:org"
)

// ApiKey is an organization-scoped machine credential.
type ApiKey struct {
	ID              uuid.UUID    `db:"id"`
	OrgID           uuid.UUID    `db:"org_id"`
	Name            string       `db:"name"`
	Scopes          []string     `db:"scopes"`
	CreatedByUserID uuid.UUID    `db:"created_by_user_id"`
	LastUsedAt      sql.NullTime `db:"last_used_at"`
	ExpiresAt       sql.NullTime `db:"expires_at"`
	RevokedAt       sql.NullTime `db:"revoked_at"`
	CreatedAt       time.Time    `db:"created_at"`
}

func (k *ApiKey) IsRevoked() bool {
	return k.RevokedAt.Valid
}

func (k *ApiKey) IsExpired() bool {
	return k.ExpiresAt.Valid && !k.ExpiresAt.Time.After(time.Now())
}

func (k *ApiKey) IsActive() bool {
	return !k.IsRevoked() && !k.IsExpired()
}

// ApiKeyCreatedResponse is returned once at creation and includes the
// plaintext token.
type ApiKeyCreatedResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Token     string     `json:"token"`
	Scopes    []string   `json:"scopes"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ApiKeyListItemResponse never exposes token material.
type ApiKeyListItemResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Scopes     []string   `json:"scopes"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Revoked    bool       `json:"revoked"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (k *ApiKey) ToCreatedResponse(token string) ApiKeyCreatedResponse {
	resp := ApiKeyCreatedResponse{
		ID:        k.ID,
		Name:      k.Name,
		Token:     token,
		Scopes:    append([]string(nil), k.Scopes...),
		CreatedAt: k.CreatedAt,
	}
	if k.ExpiresAt.Valid {
		t := k.ExpiresAt.Time
		resp.ExpiresAt = &t
	}
	return resp
}

func (k *ApiKey) ToListItemResponse() ApiKeyListItemResponse {
	resp := ApiKeyListItemResponse{
		ID:        k.ID,
		Name:      k.Name,
		Scopes:    append([]string(nil), k.Scopes...),
		Revoked:   k.IsRevoked(),
		CreatedAt: k.CreatedAt,
	}
	if k.LastUsedAt.Valid {
		t := k.LastUsedAt.Time
		resp.LastUsedAt = &t
	}
	if k.ExpiresAt.Valid {
		t := k.ExpiresAt.Time
		resp.ExpiresAt = &t
	}
	return resp
}
