package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleMasterAdmin        UserRole = "master_admin"
	RoleProgramOfficer     UserRole = "program_officer"
	RoleInstitutionalAdmin UserRole = "institutional_admin"
	RoleParticipant        UserRole = "participant"
)

// User represents an application user stored in the users table.
type User struct {
	ID            string     `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	Name          string     `db:"name" json:"name"`
	Designation   string     `db:"designation" json:"designation,omitempty"`
	Role          UserRole   `db:"role" json:"role"`
	InstitutionID *string    `db:"institution_id" json:"institution_id,omitempty"`
	Active        bool       `db:"active" json:"active"`
	Approved      bool       `db:"approved" json:"approved"`
	LastLogin     *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role          *UserRole
	InstitutionID string
	Active        *bool
	Search        string
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
