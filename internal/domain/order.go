package domain

import "time"

type OrderKind string

const (
	OrderKindJoining    OrderKind = "joining"
	OrderKindRepurchase OrderKind = "repurchase"
)

// Order is owned by the checkout system. The engine only sets IsJoiningOrder and PaidAt.
type Order struct {
	ID               int64      `json:"id"`
	UserID           int64      `json:"user_id"`
	TotalAmount      int64      `json:"total_amount"`
	CommissionAmount int64      `json:"commission_amount"`
	IsJoiningOrder   bool       `json:"is_joining_order"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
}

// OrderPaidEvent is delivered by the payment webhook after signature verification.
type OrderPaidEvent struct {
	EventID          string    `json:"event_id"`
	OrderID          int64     `json:"order_id"`
	UserID           int64     `json:"user_id"`
	CommissionAmount int64     `json:"commission_amount"`
	IsJoiningOrder   bool      `json:"is_joining_order"`
	PaidAt           time.Time `json:"paid_at"`
}
