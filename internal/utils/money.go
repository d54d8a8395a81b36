package utils

import (
	"fmt"
	"time"
)

// BpsDenominator is 100% expressed in basis points.
const BpsDenominator int64 = 10000

// SplitRule describes how one commission amount is carved up.
// CompanyBps applies to the whole commission; SponsorsBps, SelfBps and PoolBps
// apply to the bucket left after the company cut. LevelBps applies to the sponsors pot.
type SplitRule struct {
	CompanyBps  int64
	SponsorsBps int64
	SelfBps     int64
	PoolBps     int64
	LevelBps    []int64
}

// Split is the result of applying a SplitRule to a commission.
type Split struct {
	Total        int64
	CompanyCut   int64
	Bucket       int64
	SponsorsPot  int64
	SelfPot      int64
	PoolPot      int64
	LevelAmounts []int64
	// Dust is the part of the sponsors pot lost to per-level flooring. Routed to the company.
	Dust int64
}

// Sum returns every amount the split hands out. Always equals Total.
func (s Split) Sum() int64 {
	sum := s.CompanyCut + s.SelfPot + s.PoolPot + s.Dust
	for _, a := range s.LevelAmounts {
		sum += a
	}
	return sum
}

// ApplyBps returns floor(amount * bps / 10000) for non-negative inputs.
func ApplyBps(amount, bps int64) int64 {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return amount * bps / BpsDenominator
}

// ComputeSplit applies rule to total using floor division everywhere.
// The bucket remainder left by flooring goes to the self pot when the rule has one,
// otherwise to the pool pot, otherwise to the sponsors pot.
func ComputeSplit(total int64, rule SplitRule) Split {
	s := Split{Total: total}
	if total <= 0 {
		s.LevelAmounts = make([]int64, len(rule.LevelBps))
		return s
	}

	s.CompanyCut = ApplyBps(total, rule.CompanyBps)
	s.Bucket = total - s.CompanyCut

	s.SponsorsPot = ApplyBps(s.Bucket, rule.SponsorsBps)
	s.PoolPot = ApplyBps(s.Bucket, rule.PoolBps)
	s.SelfPot = ApplyBps(s.Bucket, rule.SelfBps)

	rem := s.Bucket - s.SponsorsPot - s.PoolPot - s.SelfPot
	switch {
	case rule.SelfBps > 0:
		s.SelfPot += rem
	case rule.PoolBps > 0:
		s.PoolPot += rem
	default:
		s.SponsorsPot += rem
	}

	s.LevelAmounts = make([]int64, len(rule.LevelBps))
	var paid int64
	for i, bps := range rule.LevelBps {
		s.LevelAmounts[i] = ApplyBps(s.SponsorsPot, bps)
		paid += s.LevelAmounts[i]
	}
	s.Dust = s.SponsorsPot - paid
	return s
}

// SplitInstallments divides amount into n floor shares with the remainder on the first one.
func SplitInstallments(amount int64, n int) ([]int64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("installments must be positive, got %d", n)
	}
	if amount < 0 {
		return nil, fmt.Errorf("amount must not be negative, got %d", amount)
	}
	shares := make([]int64, n)
	each := amount / int64(n)
	for i := range shares {
		shares[i] = each
	}
	shares[0] += amount - each*int64(n)
	return shares, nil
}

// InstallmentDueDates returns paidAt + i*periodDays for i = 1..n.
func InstallmentDueDates(paidAt time.Time, n, periodDays int) []time.Time {
	dates := make([]time.Time, n)
	for i := 0; i < n; i++ {
		dates[i] = paidAt.AddDate(0, 0, (i+1)*periodDays)
	}
	return dates
}

// LevelForTeams returns the highest level whose threshold is met by totalTeams.
// thresholds[0] is the requirement for level 1.
func LevelForTeams(totalTeams int, thresholds []int) int {
	level := 0
	for i, required := range thresholds {
		if totalTeams >= required {
			level = i + 1
		}
	}
	return level
}
