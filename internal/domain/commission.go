package domain

import "time"

// CommissionInput is the typed request handed to the distribution engine.
type CommissionInput struct {
	EventID          string
	OrderID          int64
	UserID           int64
	CommissionAmount int64
	IsJoiningOrder   bool
	PaidAt           time.Time
}

// CommissionResult lists everything one distribution wrote.
type CommissionResult struct {
	OrderID          int64                `json:"order_id"`
	Kind             OrderKind            `json:"kind"`
	AlreadyProcessed bool                 `json:"already_processed"`
	Commission       int64                `json:"commission"`
	CompanyCut       int64                `json:"company_cut"`
	SponsorsPot      int64                `json:"sponsors_pot"`
	SelfPot          int64                `json:"self_pot"`
	PoolPot          int64                `json:"pool_pot"`
	RoundingDust     int64                `json:"rounding_dust"`
	Placement        *Placement           `json:"placement,omitempty"`
	Team             *TeamProgress        `json:"team,omitempty"`
	Postings         []LedgerEntry        `json:"postings"`
	Schedule         []SelfPayoutSchedule `json:"schedule,omitempty"`
}

// PostedTotal is the sum of ledger postings plus pending installments.
func (r *CommissionResult) PostedTotal() int64 {
	var total int64
	for _, p := range r.Postings {
		total += p.Amount
	}
	for _, s := range r.Schedule {
		total += s.Amount
	}
	return total
}

// EligibilityRefresh summarises a cache refresh over all active users.
type EligibilityRefresh struct {
	Evaluated int `json:"evaluated"`
	Eligible  int `json:"eligible"`
}
