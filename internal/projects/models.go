package projects

import (
	"time"

	"github.com/google/uuid"
)

// Project groups tasks within an organization.
type Project struct {
	ID              uuid.UUID `db:"id"`
	OrgID           uuid.UUID `db:"org_id"`
	Name            string    `db:"name"`
	Slug            string    `db:"slug"`
	CreatedByUserID uuid.UUID `db:"created_by_user_id"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}
