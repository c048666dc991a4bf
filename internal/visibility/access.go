package visibility

// Access is the resolved access level of one user to one task. Levels are
// ordered; a higher level implies every capability of the levels below it.
type Access int

const (
	// AccessNone means the task does not exist for this user.
	AccessNone Access = iota

	// AccessReadOnly allows viewing the task and its activity.
	AccessReadOnly

	// AccessReadWrite allows editing content and working the status flow.
	AccessReadWrite

	// AccessOwner additionally allows review decisions, reassignment and
	// deletion.
	AccessOwner
)

func (a Access) String() string {
	switch a {
	case AccessNone:
		return "none"
	case AccessReadOnly:
		return "read_only"
	case AccessReadWrite:
		return "read_write"
	case AccessOwner:
		return "owner"
	default:
		return "none"
	}
}

// CanRead reports whether the task is visible at all.
func (a Access) CanRead() bool {
	return a >= AccessReadOnly
}

// CanWrite reports whether content and status changes are allowed.
func (a Access) CanWrite() bool {
	return a >= AccessReadWrite
}

// Visibility is the per-task sharing mode chosen by the task owner.
type Visibility string

const (
	// VisibilityPrivate keeps the task between the owner and assignees.
	VisibilityPrivate Visibility = "private"

	// VisibilityTeam additionally exposes the task read-only to everyone
	// above the owner in the reporting chain.
	VisibilityTeam Visibility = "team"
)

// IsValid reports whether v is a known visibility mode.
func (v Visibility) IsValid() bool {
	return v == VisibilityPrivate || v == VisibilityTeam
}
