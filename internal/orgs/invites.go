package orgs

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrCannotInviteOwner   = errors.New("cannot invite owner role")
	ErrDuplicateInvitation = errors.New("a pending invitation for this email already exists")
	ErrInviteNotFound      = errors.New("invite not found")
	ErrInviteExpired       = errors.New("invite expired")
	ErrInviteNotActive     = errors.New("invite not active")
	ErrInviteEmailMismatch = errors.New("invite email does not match user")
)

// Invite represents a pending invitation into an organization. The role and
// optional reporting line are fixed at invite time so the directory is
// complete the moment the invite is accepted.
type Invite struct {
	ID        uuid.UUID     `db:"id"`
	OrgID     uuid.UUID     `db:"org_id"`
	Email     string        `db:"email"`
	Role      Role          `db:"role"`
	ReportsTo uuid.NullUUID `db:"reports_to"`
	CreatedAt time.Time     `db:"created_at"`
	ExpiresAt time.Time     `db:"expires_at"`
}

type InviteListItem struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Email          string     `db:"email" json:"email"`
	Role           Role       `db:"role" json:"role"`
	ReportsTo      *uuid.UUID `db:"reports_to" json:"reports_to,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt      time.Time  `db:"expires_at" json:"expires_at"`
	CreatedByEmail string     `db:"created_by_email" json:"created_by_email"`
}
