package domain

import "time"

type TurnoverPool struct {
	Undistributed int64     `json:"undistributed"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PoolLevelShare is the per-level snapshot stored with a distribution.
type PoolLevelShare struct {
	Level       int   `json:"level"`
	Bps         int64 `json:"bps"`
	UserCount   int   `json:"user_count"`
	Share       int64 `json:"share"`
	PerUser     int64 `json:"per_user"`
	Distributed int64 `json:"distributed"`
}

type PoolPayout struct {
	UserID  int64 `json:"user_id"`
	Level   int   `json:"level"`
	Amount  int64 `json:"amount"`
	EntryID int64 `json:"entry_id"`
}

// PoolDistribution is the audit record of one admin-triggered distribution.
type PoolDistribution struct {
	ID                string           `json:"id"`
	AdminID           int64            `json:"admin_id"`
	TotalAmount       int64            `json:"total_amount"`
	DistributedAmount int64            `json:"distributed_amount"`
	CarriedAmount     int64            `json:"carried_amount"`
	Levels            []PoolLevelShare `json:"levels"`
	Payouts           []PoolPayout     `json:"payouts"`
	CreatedAt         time.Time        `json:"created_at"`
}

type PoolSummary struct {
	Undistributed    int64             `json:"undistributed"`
	LastDistribution *PoolDistribution `json:"last_distribution,omitempty"`
}
