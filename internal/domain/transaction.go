package domain

import "time"

const (
	OwnerParent = "parent"
	OwnerChild  = "child"
)

const (
	TransactionTransfer  = "transfer"
	TransactionEmergency = "emergency"
	TransactionWallet    = "wallet"
	TransactionPayment   = "payment"
)

// Transaction es una entrada del historial de actividad. Amount lleva signo:
// negativo para salidas, positivo para entradas.
type Transaction struct {
	ID        string    `json:"id"`
	OwnerType string    `json:"owner_type"`
	OwnerID   string    `json:"owner_id"`
	ChildID   string    `json:"child_id,omitempty"`
	Type      string    `json:"type"`
	Category  string    `json:"category,omitempty"`
	Title     string    `json:"title"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func (t Transaction) Positive() bool {
	return t.Amount > 0
}

// RecurringPayment es una transferencia programada de padre a hijo.
type RecurringPayment struct {
	ID          string    `json:"id"`
	ParentID    string    `json:"parent_id"`
	ChildID     string    `json:"child_id"`
	Amount      float64   `json:"amount"`
	Frequency   string    `json:"frequency"`
	Description string    `json:"description"`
	NextRunAt   time.Time `json:"next_run_at"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}
