package hierarchy

import (
	"github.com/google/uuid"
)

// Snapshot is an immutable view of one organization's reporting edges.
// All traversals are bounded by visited sets, so a snapshot built from
// corrupted (cyclic) edges still terminates; callers see Cyclic=true and
// must fail closed.
type Snapshot struct {
	// edges maps a user to the user they report to.
	edges map[uuid.UUID]uuid.UUID
}

// Chain is the resolved manager chain for one user, nearest manager first.
// The user themselves is not included.
type Chain struct {
	IDs    []uuid.UUID
	Cyclic bool
}

// NewSnapshot builds a snapshot from reporting edges. The map is not copied;
// callers hand over ownership.
func NewSnapshot(edges map[uuid.UUID]uuid.UUID) *Snapshot {
	if edges == nil {
		edges = map[uuid.UUID]uuid.UUID{}
	}
	return &Snapshot{edges: edges}
}

// ManagerOf returns the direct manager of a user, if any.
func (s *Snapshot) ManagerOf(userID uuid.UUID) (uuid.UUID, bool) {
	m, ok := s.edges[userID]
	return m, ok
}

// ManagerChain walks upward from a user. A missing manager ends the chain
// normally; revisiting a node marks the chain cyclic and stops.
func (s *Snapshot) ManagerChain(userID uuid.UUID) Chain {
	var chain Chain
	visited := map[uuid.UUID]struct{}{userID: {}}

	current := userID
	for {
		next, ok := s.edges[current]
		if !ok {
			return chain
		}
		if _, seen := visited[next]; seen {
			chain.Cyclic = true
			return chain
		}
		visited[next] = struct{}{}
		chain.IDs = append(chain.IDs, next)
		current = next
	}
}

// IsManagerOf reports whether managerID appears anywhere in userID's manager
// chain. The chain holds the prefix walked before any cycle closed, so a
// manager reached before a corrupted upstream edge still counts; a candidate
// the walk never cleanly reached yields false, and unresolvable authority
// grants nothing.
func (s *Snapshot) IsManagerOf(managerID, userID uuid.UUID) bool {
	if managerID == userID {
		return false
	}
	chain := s.ManagerChain(userID)
	for _, id := range chain.IDs {
		if id == managerID {
			return true
		}
	}
	return false
}

// SubordinateSet returns every user whose walked manager chain contains
// managerID, matching IsManagerOf.
func (s *Snapshot) SubordinateSet(managerID uuid.UUID) map[uuid.UUID]struct{} {
	subs := make(map[uuid.UUID]struct{})
	for userID := range s.edges {
		if s.IsManagerOf(managerID, userID) {
			subs[userID] = struct{}{}
		}
	}
	return subs
}
