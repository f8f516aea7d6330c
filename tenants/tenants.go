package tenants

import "time"

// Organization is the unit of data isolation for business resources.
type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Role is a user's role within one organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Membership links a user to an organization with a role. The pair
// (UserID, OrganizationID) is unique; the role only takes effect while
// Active is true. The business layer guarantees every organization keeps
// at least one owner.
type Membership struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	OrganizationID int64     `json:"organization_id"`
	Role           Role      `json:"role"`
	Active         bool      `json:"active"`
	JoinedAt       time.Time `json:"joined_at"`
}
