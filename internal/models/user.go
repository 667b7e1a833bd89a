package models

import "time"

// UserRole represents the available roles for the RBAC layer.
type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleMember UserRole = "MEMBER"
)

// MembershipState is a user's standing in the community.
type MembershipState string

const (
	MembershipPendingApproval MembershipState = "pending_approval"
	MembershipApproved        MembershipState = "approved"
	MembershipRejected        MembershipState = "rejected"
	MembershipBanned          MembershipState = "banned"
)

// User represents an account stored in the users table.
type User struct {
	ID                string          `db:"id" json:"id"`
	Email             string          `db:"email" json:"email"`
	PasswordHash      string          `db:"password_hash" json:"-"`
	DisplayName       string          `db:"display_name" json:"display_name"`
	Role              UserRole        `db:"role" json:"role"`
	MembershipState   MembershipState `db:"membership_state" json:"membership_state"`
	VoteBudget        int             `db:"vote_budget" json:"vote_budget"`
	LastBudgetRegenAt time.Time       `db:"last_budget_regen_at" json:"last_budget_regen_at"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// IsMember reports whether the user may take part in votes.
func (u *User) IsMember() bool {
	return u != nil && u.MembershipState == MembershipApproved
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Search   string
	Role     *UserRole
	State    *MembershipState
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
