package orgs

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's role within an organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleHead   Role = "head"
	RoleLead   Role = "lead"
	RoleMember Role = "member"
)

// roleRank orders roles for management checks (higher = more authority).
var roleRank = map[Role]int{
	RoleOwner:  4,
	RoleAdmin:  3,
	RoleHead:   2,
	RoleLead:   1,
	RoleMember: 0,
}

// IsValid returns true if the role is one of the known roles.
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank returns the role's position in the management ladder.
// Unknown roles rank lowest.
func (r Role) Rank() int {
	return roleRank[r]
}

// Absolute returns true for roles that bypass ownership and hierarchy
// checks entirely when evaluating task access.
func (r Role) Absolute() bool {
	return r == RoleOwner || r == RoleAdmin
}

// CanMutateOrg returns true if the role may modify organization resources
// (invites, API keys, projects).
func (r Role) CanMutateOrg() bool {
	return r == RoleOwner || r == RoleAdmin
}

// CanManage returns true if the actor role may change the target's role or
// reporting line. The owner manages everyone; everyone else must out-rank
// the target strictly.
func (r Role) CanManage(target Role) bool {
	if r == RoleOwner {
		return true
	}
	return r.Rank() > target.Rank()
}

// AssignableRoles returns the roles an actor may grant: strictly below
// the actor's own rank.
func AssignableRoles(actor Role) []Role {
	all := []Role{RoleMember, RoleLead, RoleHead, RoleAdmin, RoleOwner}
	var out []Role
	for _, r := range all {
		if r.Rank() < actor.Rank() {
			out = append(out, r)
		}
	}
	return out
}

// Org represents an organization in the system
type Org struct {
	ID              uuid.UUID `db:"id"`
	Name            string    `db:"name"`
	Slug            string    `db:"slug"`
	CreatedByUserID uuid.UUID `db:"created_by_user_id"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}
