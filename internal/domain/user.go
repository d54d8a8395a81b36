package domain

import "time"

// SystemRootReferralCode is the referral code of the synthetic matrix root.
const SystemRootReferralCode = "ROOT"

type User struct {
	ID                   int64      `json:"id"`
	SponsorID            *int64     `json:"sponsor_id,omitempty"`
	ReferralCode         *string    `json:"referral_code,omitempty"`
	IsActive             bool       `json:"is_active"`
	IsSystem             bool       `json:"is_system"`
	Level                int        `json:"level"`
	WalletBalance        int64      `json:"wallet_balance"` // paisa
	MonthlyPurchase      int64      `json:"monthly_purchase"`
	IsEligibleRepurchase bool       `json:"is_eligible_repurchase"`
	TotalTeams           int        `json:"total_teams"`
	ActivatedAt          *time.Time `json:"activated_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// HasActivated reports whether the user completed a first paid order.
func (u *User) HasActivated() bool {
	return u.IsActive || u.ActivatedAt != nil || u.ReferralCode != nil
}

// CanEarnSponsorCommission is the joining-order gate for ancestors.
func (u *User) CanEarnSponsorCommission() bool {
	return u.IsActive && !u.IsSystem
}
