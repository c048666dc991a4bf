package directory

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck/internal/orgs"
)

// User is the directory's view of an account: identity, role and reporting
// line within one organization.
type User struct {
	ID            uuid.UUID     `db:"id"`
	OrgID         uuid.NullUUID `db:"org_id"`
	Email         string        `db:"email"`
	DisplayName   string        `db:"display_name"`
	Role          orgs.Role     `db:"role"`
	ReportsTo     uuid.NullUUID `db:"reports_to"`
	DeactivatedAt *time.Time    `db:"deactivated_at"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`
}

// Active returns true if the user has not been soft-deactivated.
func (u *User) Active() bool {
	return u.DeactivatedAt == nil
}

// MemberInfo is the listing shape for organization members.
type MemberInfo struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        orgs.Role  `json:"role"`
	ReportsTo   *uuid.UUID `json:"reports_to,omitempty"`
	Deactivated bool       `json:"deactivated"`
	CreatedAt   time.Time  `json:"created_at"`
}
