package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is the permission group an account belongs to.
//
// Roles are ordered: SuperAdmins > DomainAdmins > SimpleUsers.
type Role string

const (
	// RoleSuperAdmin has unrestricted access to every object.
	RoleSuperAdmin Role = "SuperAdmins"
	// RoleDomainAdmin manages the domains and objects it has been granted.
	RoleDomainAdmin Role = "DomainAdmins"
	// RoleSimpleUser can only manage its own account.
	RoleSimpleUser Role = "SimpleUsers"
)

// IsValid checks if the role is a known Role.
func (r Role) IsValid() bool {
	return r == RoleSuperAdmin || r == RoleDomainAdmin || r == RoleSimpleUser
}

// Rank orders roles by privilege. Unknown roles rank lowest.
func (r Role) Rank() int {
	switch r {
	case RoleSuperAdmin:
		return 3
	case RoleDomainAdmin:
		return 2
	case RoleSimpleUser:
		return 1
	default:
		return 0
	}
}

// Roles returns all known roles, most privileged first.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleDomainAdmin, RoleSimpleUser}
}

// Account is a principal able to log into the administration service.
//
// PasswordHash holds a scheme-tagged digest (see package auth/password).
// IsLocal is false for accounts provisioned from an external
// authentication backend; their passwords are not managed here.
type Account struct {
	ID                 string     `gorm:"primaryKey;size:36" json:"id"`
	Username           string     `gorm:"uniqueIndex;not null;size:254" json:"username"`
	PasswordHash       string     `gorm:"not null;size:256" json:"-"`
	FirstName          string     `gorm:"size:30" json:"first_name,omitempty"`
	LastName           string     `gorm:"size:30" json:"last_name,omitempty"`
	Email              string     `gorm:"size:254" json:"email,omitempty"`
	Enabled            bool       `gorm:"default:true" json:"enabled"`
	IsLocal            bool       `gorm:"default:true" json:"is_local"`
	IsSuperuser        bool       `gorm:"default:false" json:"is_superuser"`
	Role               Role       `gorm:"default:SimpleUsers;size:50" json:"role"`
	MustChangePassword bool       `gorm:"default:false" json:"must_change_password"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLogin          *time.Time `json:"last_login,omitempty"`
}

// TableName returns the table name for Account.
func (Account) TableName() string {
	return "accounts"
}

// ObjectRef returns the grant target reference of the account.
func (a *Account) ObjectRef() ObjectRef {
	return ObjectRef{Type: ObjectTypeAccount, ID: a.ID}
}

// ObjectName returns the username, used in audit messages.
func (a *Account) ObjectName() string {
	return a.Username
}

// FullName returns "first last", falling back to the username.
func (a *Account) FullName() string {
	full := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if full == "" {
		return a.Username
	}
	return full
}

// IsAdmin reports whether the account holds an administrative role.
func (a *Account) IsAdmin() bool {
	return a.IsSuperuser || a.Role == RoleSuperAdmin || a.Role == RoleDomainAdmin
}

// Validate checks if the account has a valid configuration.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if a.Role != "" && !a.Role.IsValid() {
		return fmt.Errorf("invalid role %q", a.Role)
	}
	if a.Role == RoleSimpleUser && a.Email != "" && !strings.EqualFold(a.Email, a.Username) {
		return fmt.Errorf("simple users must use their email address as username")
	}
	return nil
}
