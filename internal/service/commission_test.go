package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matrix-commission-backend/internal/config"
	"matrix-commission-backend/internal/domain"
)

// seedSponsor creates an active sponsor already placed under the system root.
func seedSponsor(t *testing.T, store *memStore, placeFn func(int64) error, id int64) {
	t.Helper()
	store.addUser(id, nil, true)
	require.NoError(t, placeFn(id))
}

func TestCommission_JoiningOrderScenario(t *testing.T) {
	store, svcs := newTestServices(t)
	ctx := context.Background()
	place := func(id int64) error {
		_, err := svcs.Placement.PlaceUser(ctx, id, nil)
		return err
	}

	seedSponsor(t, store, place, 10)
	store.addUser(20, domain.Int64Ptr(10), false)
	store.addOrder(500, 20, 5000, 1000)

	res, err := svcs.Order.OnOrderPaid(ctx, paidEvent("evt-1", 500, 20, 1000))
	require.NoError(t, err)

	assert.Equal(t, domain.OrderKindJoining, res.Kind)
	assert.Equal(t, int64(250), res.CompanyCut)
	assert.Equal(t, int64(525), res.SponsorsPot)
	assert.Equal(t, int64(225), res.SelfPot)
	assert.Equal(t, int64(3), res.RoundingDust)
	assert.Equal(t, int64(1000), res.PostedTotal())

	require.NotNil(t, res.Placement)
	assert.Equal(t, int64(10), *res.Placement.ParentID)
	assert.Equal(t, 2, res.Placement.Depth)

	t.Run("Company fund row of 250", func(t *testing.T) {
		var found bool
		for _, e := range store.entries(domain.EntryTypeCompanyFund) {
			found = found || (e.Amount == 250 && e.UserID == nil && e.Ref == "order:500")
		}
		assert.True(t, found)
	})

	t.Run("Levels paid or rolled up", func(t *testing.T) {
		sponsor := store.entries(domain.EntryTypeSponsorCommission)
		require.Len(t, sponsor, 1)
		assert.Equal(t, int64(10), *sponsor[0].UserID)
		assert.Equal(t, int64(157), sponsor[0].Amount)
		assert.Equal(t, 1, *sponsor[0].LevelDepth)
		assert.Equal(t, int64(157), store.user(10).WalletBalance)

		var rolled []int64
		for _, e := range store.entries(domain.EntryTypeRollupToCompany) {
			assert.Nil(t, e.UserID)
			rolled = append(rolled, e.Amount)
		}
		// depth 2 is the system root; depths 3..7 have no ancestor
		assert.Equal(t, []int64{105, 78, 52, 52, 42, 36}, rolled)
	})

	t.Run("Buyer activated once", func(t *testing.T) {
		buyer := store.user(20)
		assert.True(t, buyer.IsActive)
		require.NotNil(t, buyer.ReferralCode)
		assert.True(t, strings.HasPrefix(*buyer.ReferralCode, "MX"))
		assert.Len(t, *buyer.ReferralCode, 10)
		assert.Equal(t, int64(5000), buyer.MonthlyPurchase)
		assert.True(t, store.st.orders[500].IsJoiningOrder)
	})

	t.Run("Self income installments", func(t *testing.T) {
		require.Len(t, res.Schedule, 4)
		amounts := make([]int64, 4)
		for i, row := range res.Schedule {
			amounts[i] = row.Amount
			assert.Equal(t, paidAt.AddDate(0, 0, 7*(i+1)), row.DueAt)
		}
		assert.Equal(t, []int64{57, 56, 56, 56}, amounts)
		assert.Equal(t, int64(775), store.sumByRef("order:500"))
	})

	t.Run("Ledger balances once installments are paid", func(t *testing.T) {
		run, err := svcs.SelfIncome.RunDuePayouts(ctx, paidAt.Add(30*24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 4, run.Paid)
		assert.Equal(t, int64(1000), store.sumByRef("order:500"))
		assert.Equal(t, int64(225), store.user(20).WalletBalance)
	})

	t.Run("Team under direct sponsor", func(t *testing.T) {
		require.NotNil(t, res.Team)
		assert.Equal(t, int64(10), res.Team.LeaderID)
		assert.Equal(t, 1, res.Team.Members)
		assert.False(t, res.Team.Completed)
	})
}

func TestCommission_Idempotency(t *testing.T) {
	store, svcs := newTestServices(t)
	ctx := context.Background()

	store.addUser(20, nil, false)
	store.addOrder(500, 20, 5000, 1000)

	_, err := svcs.Order.OnOrderPaid(ctx, paidEvent("evt-1", 500, 20, 1000))
	require.NoError(t, err)
	ledgerLen := len(store.st.ledger)
	scheduled := len(store.st.schedules)
	wallet := store.user(20).WalletBalance

	for _, eventID := range []string{"evt-1", "evt-1-redelivered"} {
		res, err := svcs.Order.OnOrderPaid(ctx, paidEvent(eventID, 500, 20, 1000))
		require.NoError(t, err)
		assert.True(t, res.AlreadyProcessed)
	}

	assert.Len(t, store.st.ledger, ledgerLen)
	assert.Len(t, store.st.schedules, scheduled)
	assert.Equal(t, wallet, store.user(20).WalletBalance)
	assert.Equal(t, int64(5000), store.user(20).MonthlyPurchase)
}

func TestCommission_RepurchaseGatedByThreeThreeRule(t *testing.T) {
	store, svcs := newTestServices(t)
	ctx := context.Background()
	place := func(id int64) error {
		_, err := svcs.Placement.PlaceUser(ctx, id, nil)
		return err
	}

	seedSponsor(t, store, place, 10)
	store.addUser(20, domain.Int64Ptr(10), false)
	store.addOrder(500, 20, 5000, 1000)
	store.addOrder(501, 20, 2000, 1000)
	store.addOrder(502, 20, 2000, 1000)

	_, err := svcs.Order.OnOrderPaid(ctx, paidEvent("evt-1", 500, 20, 1000))
	require.NoError(t, err)

	// sponsor has only one direct referral
	res, err := svcs.Order.OnOrderPaid(ctx, paidEvent("evt-2", 501, 20, 1000))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderKindRepurchase, res.Kind)
	assert.Empty(t, res.Schedule)
	assert.Equal(t, int64(750), res.SponsorsPot)
	assert.Equal(t, int64(2), res.RoundingDust)
	assert.Empty(t, store.entries(domain.EntryTypeRepurchaseCommission))
	assert.Equal(t, int64(1000), store.sumByRef("order:501"))
	assert.False(t, store.st.orders[501].IsJoiningOrder)

	directs := addDirects(store, 10, 30, 2)
	directs = append(directs, 20)
	for i, d := range directs {
		addDirects(store, d, int64(100*(i+1)), 3)
	}

	_, err = svcs.Order.OnOrderPaid(ctx, paidEvent("evt-3", 502, 20, 1000))
	require.NoError(t, err)
	paid := store.entries(domain.EntryTypeRepurchaseCommission)
	require.Len(t, paid, 1)
	assert.Equal(t, int64(187), paid[0].Amount)
	assert.Equal(t, int64(10), *paid[0].UserID)
	assert.Equal(t, int64(1000), store.sumByRef("order:502"))
	assert.True(t, store.user(10).IsEligibleRepurchase)
}

func TestCommission_PoolPlanFeedsTurnoverPool(t *testing.T) {
	store, svcs := newTestServices(t, func(c *config.Config) {
		c.Commission.Model = config.CommissionModelPool
		c.Matrix.MaxDepth = 5
	})
	ctx := context.Background()

	store.addUser(20, nil, false)
	store.addOrder(500, 20, 5000, 1000)

	res, err := svcs.Order.OnOrderPaid(ctx, paidEvent("evt-1", 500, 20, 1000))
	require.NoError(t, err)
	assert.Equal(t, int64(300), res.CompanyCut)
	assert.Equal(t, int64(280), res.SponsorsPot)
	assert.Equal(t, int64(210), res.PoolPot)
	assert.Equal(t, int64(210), res.SelfPot)
	assert.Equal(t, int64(210), store.st.pool)

	contributions := store.entries(domain.EntryTypePoolContribution)
	require.Len(t, contributions, 1)
	assert.Equal(t, int64(210), contributions[0].Amount)
	assert.Equal(t, int64(790), store.sumByRef("order:500"))
}

func TestCommission_FailuresRollBack(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing order", func(t *testing.T) {
		store, svcs := newTestServices(t)
		store.addUser(20, nil, false)

		_, err := svcs.Order.OnOrderPaid(ctx, paidEvent("evt-1", 404, 20, 1000))
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.Empty(t, store.st.events)
		assert.Empty(t, store.st.ledger)
	})

	t.Run("Order of another user", func(t *testing.T) {
		store, svcs := newTestServices(t)
		store.addUser(20, nil, false)
		store.addUser(21, nil, false)
		store.addOrder(500, 21, 5000, 1000)

		_, err := svcs.Order.OnOrderPaid(ctx, paidEvent("evt-1", 500, 20, 1000))
		assert.True(t, errors.Is(err, domain.ErrValidation))
		assert.Empty(t, store.st.nodes)
	})

	t.Run("Commission mismatch", func(t *testing.T) {
		store, svcs := newTestServices(t)
		store.addUser(20, nil, false)
		store.addOrder(500, 20, 5000, 1000)

		_, err := svcs.Order.OnOrderPaid(ctx, paidEvent("evt-1", 500, 20, 999))
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})

	t.Run("Missing event id", func(t *testing.T) {
		_, svcs := newTestServices(t)
		_, err := svcs.Order.OnOrderPaid(ctx, paidEvent("", 500, 20, 1000))
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})

	t.Run("Zero commission still activates", func(t *testing.T) {
		store, svcs := newTestServices(t)
		store.addUser(20, nil, false)
		store.addOrder(500, 20, 5000, 0)

		res, err := svcs.Order.OnOrderPaid(ctx, paidEvent("evt-1", 500, 20, 0))
		require.NoError(t, err)
		assert.Empty(t, res.Postings)
		assert.True(t, store.user(20).IsActive)
	})

	t.Run("Zero commission repurchase is rejected", func(t *testing.T) {
		store, svcs := newTestServices(t)
		store.addUser(20, nil, true)
		store.addOrder(501, 20, 2000, 0)

		_, err := svcs.Order.OnOrderPaid(ctx, paidEvent("evt-1", 501, 20, 0))
		assert.True(t, errors.Is(err, domain.ErrValidation))
		assert.Empty(t, store.st.events)
		assert.Nil(t, store.st.orders[501].PaidAt)
		assert.Zero(t, store.user(20).MonthlyPurchase)
	})
}

func TestCommission_RetriesConflicts(t *testing.T) {
	store, svcs := newTestServices(t)
	ctx := context.Background()
	store.addUser(20, nil, false)
	store.addOrder(500, 20, 5000, 1000)

	store.failNext = 2
	res, err := svcs.Order.OnOrderPaid(ctx, paidEvent("evt-1", 500, 20, 1000))
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	assert.Equal(t, 3, store.txCount)

	store.addOrder(501, 20, 5000, 1000)
	store.failNext = 3
	_, err = svcs.Order.OnOrderPaid(ctx, paidEvent("evt-2", 501, 20, 1000))
	assert.True(t, domain.IsRetryable(err))
}
