package domain

import "time"

const (
	RequestMoney     = "money"
	RequestEmergency = "emergency"
	RequestReward    = "reward"

	RequestStatusPending = "pending"
)

// StudentRequest es un pedido de dinero, de emergencia o de canje de recompensa
// que un estudiante envia a su padre.
type StudentRequest struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	ParentID    string    `json:"parent_id"`
	StudentName string    `json:"student_name"`
	Type        string    `json:"type"`
	Amount      float64   `json:"amount"`
	Reason      string    `json:"reason"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
