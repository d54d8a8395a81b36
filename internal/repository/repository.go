package repository

import (
	"context"
	"time"

	"matrix-commission-backend/internal/domain"
)

// Advisory lock keys for single-writer sweeps.
const (
	LockSelfIncomeSweep  int64 = 7301
	LockPoolDistribution int64 = 7302
	LockMatrixRoot       int64 = 7303
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*domain.User, error)
	CreateSystemUser(ctx context.Context, referralCode string) (*domain.User, error)
	// Activate sets is_active and assigns the referral code only if none exists yet.
	Activate(ctx context.Context, id int64, referralCode string, at time.Time) error
	ListDirectReferrals(ctx context.Context, sponsorID int64) ([]int64, error)
	CountDirectReferrals(ctx context.Context, sponsorIDs []int64) (map[int64]int, error)
	SetEligibility(ctx context.Context, id int64, eligible bool) error
	ListActiveIDs(ctx context.Context) ([]int64, error)
	ListActiveByLevel(ctx context.Context, level int) ([]int64, error)
	IncrementTeams(ctx context.Context, id int64) (int, error)
	// RaiseLevel never lowers a level; it returns the stored level afterwards.
	RaiseLevel(ctx context.Context, id int64, level int) (int, error)
	AddMonthlyPurchase(ctx context.Context, id int64, amount int64) error
	ResetMonthlyPurchases(ctx context.Context) (int64, error)
}

type MatrixRepository interface {
	GetNode(ctx context.Context, userID int64) (*domain.MatrixNode, error)
	GetRoot(ctx context.Context) (*domain.MatrixNode, error)
	// ChildrenOf returns children grouped in the order of parentIDs, by position.
	ChildrenOf(ctx context.Context, parentIDs []int64) ([]domain.MatrixNode, error)
	LockNode(ctx context.Context, userID int64) error
	ChildPositions(ctx context.Context, parentID int64) ([]int, error)
	Insert(ctx context.Context, node *domain.MatrixNode) error
	ListAll(ctx context.Context) ([]domain.MatrixNode, error)
}

type HierarchyRepository interface {
	Insert(ctx context.Context, rows []domain.HierarchyRow) (int64, error)
	Ancestors(ctx context.Context, descendantID int64, maxDepth int) ([]domain.HierarchyRow, error)
}

type OrderRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	MarkPaid(ctx context.Context, id int64, joining bool, paidAt time.Time) error
}

type LedgerRepository interface {
	// Post inserts the entry and moves the owner's wallet balance by the same amount.
	Post(ctx context.Context, entry *domain.LedgerEntry) error
	GetByID(ctx context.Context, id int64) (*domain.LedgerEntry, error)
	List(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, int64, error)
	ExistsByRef(ctx context.Context, ref string) (bool, error)
	SumByRef(ctx context.Context, ref string) (int64, error)
	BalanceAt(ctx context.Context, userID int64, at time.Time) (int64, error)
	ListWalletMismatches(ctx context.Context) ([]domain.WalletMismatch, error)
}

type ScheduleRepository interface {
	CreateBatch(ctx context.Context, rows []domain.SelfPayoutSchedule) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.SelfPayoutSchedule, error)
	// MarkPaid returns false when the row was no longer scheduled.
	MarkPaid(ctx context.Context, id int64, at time.Time) (bool, error)
	ListByOrder(ctx context.Context, orderID int64) ([]domain.SelfPayoutSchedule, error)
}

type TeamRepository interface {
	IsMember(ctx context.Context, userID int64) (bool, error)
	GetFormingForUpdate(ctx context.Context, leaderID int64) (*domain.Team, error)
	Create(ctx context.Context, leaderID int64) (*domain.Team, error)
	AddMember(ctx context.Context, teamID, userID int64) (int, error)
	Complete(ctx context.Context, teamID int64, at time.Time) error
}

type PoolRepository interface {
	Get(ctx context.Context) (*domain.TurnoverPool, error)
	GetForUpdate(ctx context.Context) (*domain.TurnoverPool, error)
	Add(ctx context.Context, amount int64) error
	Subtract(ctx context.Context, amount int64) error
	SaveDistribution(ctx context.Context, d *domain.PoolDistribution) error
	LastDistribution(ctx context.Context) (*domain.PoolDistribution, error)
}

type IdempotencyRepository interface {
	// Claim records the event and returns false if the event or order was already claimed.
	Claim(ctx context.Context, eventID string, orderID int64) (bool, error)
}

type WithdrawalRepository interface {
	SumPending(ctx context.Context, userID int64) (int64, error)
}

type LockRepository interface {
	// TryAdvisoryXactLock takes a lock released at the end of the current transaction.
	TryAdvisoryXactLock(ctx context.Context, key int64) (bool, error)
}

// Repositories is the set of repositories bound to one connection or transaction.
type Repositories interface {
	Users() UserRepository
	Matrix() MatrixRepository
	Hierarchy() HierarchyRepository
	Orders() OrderRepository
	Ledger() LedgerRepository
	Schedules() ScheduleRepository
	Teams() TeamRepository
	Pool() PoolRepository
	Idempotency() IdempotencyRepository
	Withdrawals() WithdrawalRepository
	Locks() LockRepository
}

// UnitOfWork runs fn inside a single serializable transaction. Returning an error rolls back.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	// Reader returns repositories bound to the pool for read-only queries.
	Reader() Repositories
}
