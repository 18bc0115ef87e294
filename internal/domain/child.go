package domain

import "time"

// Child es la cuenta de estudiante creada por un padre.
type Child struct {
	ID           string    `json:"id"`
	ParentID     string    `json:"parent_id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	WeeklyLimit  float64   `json:"weekly_limit"`
	DailyLimit   float64   `json:"daily_limit"`
	Balance      float64   `json:"balance"`
	RewardPoints int       `json:"reward_points"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

func (c Child) FullName() string {
	return c.FirstName + " " + c.LastName
}

func (c Child) SessionUser() SessionUser {
	return SessionUser{
		ID:       c.ID,
		FullName: c.FullName(),
		Email:    c.Username,
		Role:     RoleStudent,
	}
}
