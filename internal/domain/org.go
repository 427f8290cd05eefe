package domain

import "time"

// Organization scopes every other entity. No repository operation may
// read or write rows belonging to a different organization.
type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// roleRank orders roles so handlers can express "role >= Editor" checks.
var roleRank = map[Role]int{
	RoleViewer: 0,
	RoleEditor: 1,
	RoleAdmin:  2,
}

// AtLeast reports whether r grants at least the privileges of min.
// An unrecognized role is never sufficient for anything.
func (r Role) AtLeast(min Role) bool {
	rank, ok := roleRank[r]
	if !ok {
		return false
	}
	minRank, ok := roleRank[min]
	if !ok {
		return false
	}
	return rank >= minRank
}

type User struct {
	ID           string
	OrgID        string
	Email        string
	PasswordHash string
	DisplayName  string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor is the authenticated (user_id, org_id, role) tuple carried by every
// request after token verification. Repositories accept an Actor (or its
// OrgID/Role fields) instead of reading request state directly.
type Actor struct {
	UserID string
	OrgID  string
	Role   Role
}
