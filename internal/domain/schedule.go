package domain

import "time"

type PayoutStatus string

const (
	PayoutStatusScheduled PayoutStatus = "scheduled"
	PayoutStatusPaid      PayoutStatus = "paid"
)

// SelfPayoutSchedule is one deferred self-income installment.
type SelfPayoutSchedule struct {
	ID          int64        `json:"id"`
	UserID      int64        `json:"user_id"`
	OrderID     int64        `json:"order_id"`
	Installment int          `json:"installment"`
	Amount      int64        `json:"amount"`
	DueAt       time.Time    `json:"due_at"`
	Status      PayoutStatus `json:"status"`
	PaidAt      *time.Time   `json:"paid_at,omitempty"`
}

type SelfIncomeRequest struct {
	UserID       int64
	OrderID      int64
	Amount       int64
	PaidAt       time.Time
	Installments int
	PeriodDays   int
}

// PayoutRun summarises one RunDuePayouts sweep.
type PayoutRun struct {
	Paid    int   `json:"paid"`
	Amount  int64 `json:"amount"`
	Batches int   `json:"batches"`
	Skipped bool  `json:"skipped"`
}
