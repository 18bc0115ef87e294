package domain

import "time"

// User es la cuenta del padre/madre que administra la familia.
type User struct {
	ID              string     `json:"id"`
	FullName        string     `json:"full_name"`
	Email           string     `json:"email"`
	AuthProvider    string     `json:"auth_provider,omitempty"`
	AuthSubject     string     `json:"-"`
	PasswordHash    string     `json:"-"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	MFAEnabled      bool       `json:"mfa_enabled"`
	FamilyBalance   float64    `json:"family_balance"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (u User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

// SessionUser devuelve el snapshot de sesion del padre.
func (u User) SessionUser() SessionUser {
	return SessionUser{
		ID:       u.ID,
		FullName: u.FullName,
		Email:    u.Email,
		Role:     RoleParent,
	}
}
