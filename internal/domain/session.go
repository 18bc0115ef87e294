package domain

// Roles que puede tener una sesion.
const (
	RoleParent  = "parent"
	RoleStudent = "student"
)

// SessionUser es el snapshot del usuario autenticado que acompaña a los tokens.
type SessionUser struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}
