package domain

import "time"

type VerificationPurpose string

const (
	PurposeEmail VerificationPurpose = "email"
	PurposeMFA   VerificationPurpose = "mfa"
)

// PendingVerification guarda un codigo de un solo uso pendiente de confirmar.
// Se indexa por proposito y email, nunca en un slot global.
type PendingVerification struct {
	Purpose   VerificationPurpose `json:"purpose"`
	Email     string              `json:"email"`
	CodeHash  string              `json:"code_hash"`
	Attempts  int                 `json:"attempts"`
	ExpiresAt time.Time           `json:"expires_at"`
	CreatedAt time.Time           `json:"created_at"`
}

func (p PendingVerification) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
