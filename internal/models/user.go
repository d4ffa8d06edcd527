package models

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// User is the identity record. PasswordHash is nil for social-only accounts
// and MfaSecret is nil until MFA setup has been started.
type User struct {
	ID            int64
	FirstName     string
	LastName      string
	Email         string
	PasswordHash  *string
	Role          Role
	TenantID      *int64
	Tenant        *Tenant
	MfaEnabled    bool
	MfaSecret     *string
	IsSocial      bool
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

type Tenant struct {
	ID        int64
	Name      string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
