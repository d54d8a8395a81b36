package domain

import (
	"fmt"
	"time"
)

type EntryType string

const (
	EntryTypeCompanyFund          EntryType = "company_fund"
	EntryTypeSponsorCommission    EntryType = "sponsor_commission"
	EntryTypeRepurchaseCommission EntryType = "repurchase_commission"
	EntryTypeRollupToCompany      EntryType = "rollup_to_company"
	EntryTypeSelfIncome           EntryType = "self_income"
	EntryTypePoolContribution     EntryType = "pool_contribution"
	EntryTypePoolDistribution     EntryType = "pool_distribution"
	EntryTypeWithdrawalDebit      EntryType = "withdrawal_debit"
	EntryTypeWithdrawalReversal   EntryType = "withdrawal_reversal"
	EntryTypeReversal             EntryType = "reversal"
)

// ParseEntryType validates an entry type coming from a query string.
func ParseEntryType(s string) (EntryType, error) {
	switch t := EntryType(s); t {
	case EntryTypeCompanyFund, EntryTypeSponsorCommission, EntryTypeRepurchaseCommission,
		EntryTypeRollupToCompany, EntryTypeSelfIncome, EntryTypePoolContribution,
		EntryTypePoolDistribution, EntryTypeWithdrawalDebit, EntryTypeWithdrawalReversal,
		EntryTypeReversal:
		return t, nil
	}
	return "", Validation("ParseEntryType", "unknown ledger entry type %q", s)
}

// LedgerEntry is immutable once posted. A nil UserID means the company.
type LedgerEntry struct {
	ID         int64     `json:"id"`
	UserID     *int64    `json:"user_id,omitempty"`
	Type       EntryType `json:"type"`
	Amount     int64     `json:"amount"` // signed, paisa
	LevelDepth *int      `json:"level_depth,omitempty"`
	Ref        string    `json:"ref"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type LedgerFilter struct {
	UserID   int64
	Types    []EntryType
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// WalletSummary is what account screens and the withdrawal flow read.
type WalletSummary struct {
	UserID             int64      `json:"user_id"`
	Balance            int64      `json:"balance"`
	PendingWithdrawals int64      `json:"pending_withdrawals"`
	Withdrawable       int64      `json:"withdrawable"`
	AsOf               *time.Time `json:"as_of,omitempty"`
	HistoricalBalance  *int64     `json:"historical_balance,omitempty"`
}

// OrderSettlement shows where one paid order's commission went. Posted counts entries
// under the order's ref, Deferred the installments still scheduled.
type OrderSettlement struct {
	OrderID     int64                `json:"order_id"`
	Commission  int64                `json:"commission"`
	Posted      int64                `json:"posted"`
	Deferred    int64                `json:"deferred"`
	Unaccounted int64                `json:"unaccounted"`
	Schedule    []SelfPayoutSchedule `json:"schedule"`
}

// WalletMismatch is a user whose cached balance disagrees with the ledger sum.
type WalletMismatch struct {
	UserID        int64 `json:"user_id"`
	WalletBalance int64 `json:"wallet_balance"`
	LedgerBalance int64 `json:"ledger_balance"`
}

func OrderRef(orderID int64) string {
	return fmt.Sprintf("order:%d", orderID)
}

func PoolRef(distributionID string) string {
	return "pool:" + distributionID
}

func ReversalRef(entryID int64) string {
	return fmt.Sprintf("reversal:%d", entryID)
}

func IntPtr(v int) *int {
	return &v
}

func Int64Ptr(v int64) *int64 {
	return &v
}
