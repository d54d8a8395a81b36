package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/repository"
)

// memStore is an in-memory UnitOfWork. A transaction holds the store mutex and
// restores a snapshot when fn fails.
type memStore struct {
	mu        sync.Mutex
	st        *memState
	busyLocks map[int64]bool
	// failNext makes the next n transactions fail with a concurrency conflict.
	failNext int
	txCount  int
}

type memState struct {
	nextID      int64
	users       map[int64]*domain.User
	nodes       map[int64]*domain.MatrixNode
	hierarchy   map[domain.HierarchyRow]bool
	orders      map[int64]*domain.Order
	ledger      []domain.LedgerEntry
	schedules   []domain.SelfPayoutSchedule
	teams       map[int64]*domain.Team
	teamOf      map[int64]int64
	pool        int64
	dists       []domain.PoolDistribution
	events      map[string]int64
	eventOrders map[int64]bool
	pending     map[int64]int64
}

func newMemStore() *memStore {
	return &memStore{
		busyLocks: map[int64]bool{},
		st: &memState{
			nextID:      1000,
			users:       map[int64]*domain.User{},
			nodes:       map[int64]*domain.MatrixNode{},
			hierarchy:   map[domain.HierarchyRow]bool{},
			orders:      map[int64]*domain.Order{},
			teams:       map[int64]*domain.Team{},
			teamOf:      map[int64]int64{},
			events:      map[string]int64{},
			eventOrders: map[int64]bool{},
			pending:     map[int64]int64{},
		},
	}
}

func (st *memState) clone() *memState {
	c := &memState{
		nextID:      st.nextID,
		users:       make(map[int64]*domain.User, len(st.users)),
		nodes:       make(map[int64]*domain.MatrixNode, len(st.nodes)),
		hierarchy:   make(map[domain.HierarchyRow]bool, len(st.hierarchy)),
		orders:      make(map[int64]*domain.Order, len(st.orders)),
		ledger:      append([]domain.LedgerEntry(nil), st.ledger...),
		schedules:   append([]domain.SelfPayoutSchedule(nil), st.schedules...),
		teams:       make(map[int64]*domain.Team, len(st.teams)),
		teamOf:      make(map[int64]int64, len(st.teamOf)),
		pool:        st.pool,
		dists:       append([]domain.PoolDistribution(nil), st.dists...),
		events:      make(map[string]int64, len(st.events)),
		eventOrders: make(map[int64]bool, len(st.eventOrders)),
		pending:     make(map[int64]int64, len(st.pending)),
	}
	for k, v := range st.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range st.nodes {
		n := *v
		c.nodes[k] = &n
	}
	for k, v := range st.hierarchy {
		c.hierarchy[k] = v
	}
	for k, v := range st.orders {
		o := *v
		c.orders[k] = &o
	}
	for k, v := range st.teams {
		t := *v
		t.Members = append([]int64(nil), v.Members...)
		c.teams[k] = &t
	}
	for k, v := range st.teamOf {
		c.teamOf[k] = v
	}
	for k, v := range st.events {
		c.events[k] = v
	}
	for k, v := range st.eventOrders {
		c.eventOrders[k] = v
	}
	for k, v := range st.pending {
		c.pending[k] = v
	}
	return c
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++
	if s.failNext > 0 {
		s.failNext--
		return domain.Conflict("memStore", context.DeadlineExceeded)
	}
	snap := s.st.clone()
	if err := fn(ctx, memRepos{s}); err != nil {
		s.st = snap
		return err
	}
	return nil
}

func (s *memStore) Reader() repository.Repositories { return memRepos{s} }

func (s *memStore) id() int64 {
	s.st.nextID++
	return s.st.nextID
}

// seeding helpers

func (s *memStore) addUser(id int64, sponsorID *int64, active bool) *domain.User {
	u := &domain.User{ID: id, SponsorID: sponsorID, IsActive: active, CreatedAt: time.Now()}
	if active {
		code := "SEED"
		u.ReferralCode = &code
	}
	s.st.users[id] = u
	return u
}

func (s *memStore) addOrder(id, userID, total, commission int64) {
	s.st.orders[id] = &domain.Order{ID: id, UserID: userID, TotalAmount: total, CommissionAmount: commission}
}

func (s *memStore) user(id int64) domain.User {
	return *s.st.users[id]
}

func (s *memStore) sumByRef(ref string) int64 {
	var sum int64
	for _, e := range s.st.ledger {
		if e.Ref == ref {
			sum += e.Amount
		}
	}
	return sum
}

func (s *memStore) entries(t domain.EntryType) []domain.LedgerEntry {
	var out []domain.LedgerEntry
	for _, e := range s.st.ledger {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) children(parentID int64) []int64 {
	var out []domain.MatrixNode
	for _, n := range s.st.nodes {
		if n.ParentID != nil && *n.ParentID == parentID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].Position < *out[j].Position })
	ids := make([]int64, len(out))
	for i, n := range out {
		ids[i] = n.UserID
	}
	return ids
}

type memRepos struct{ s *memStore }

func (r memRepos) Users() repository.UserRepository             { return memUsers(r) }
func (r memRepos) Matrix() repository.MatrixRepository          { return memMatrix(r) }
func (r memRepos) Hierarchy() repository.HierarchyRepository    { return memHierarchy(r) }
func (r memRepos) Orders() repository.OrderRepository           { return memOrders(r) }
func (r memRepos) Ledger() repository.LedgerRepository          { return memLedger(r) }
func (r memRepos) Schedules() repository.ScheduleRepository     { return memSchedules(r) }
func (r memRepos) Teams() repository.TeamRepository             { return memTeams(r) }
func (r memRepos) Pool() repository.PoolRepository              { return memPool(r) }
func (r memRepos) Idempotency() repository.IdempotencyRepository { return memIdempotency(r) }
func (r memRepos) Withdrawals() repository.WithdrawalRepository { return memWithdrawals(r) }
func (r memRepos) Locks() repository.LockRepository             { return memLocks(r) }

type memUsers struct{ s *memStore }

func (r memUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, domain.NotFound("GetUser", "user %d not found", id)
	}
	c := *u
	return &c, nil
}

func (r memUsers) GetByIDs(_ context.Context, ids []int64) (map[int64]*domain.User, error) {
	out := map[int64]*domain.User{}
	for _, id := range ids {
		if u, ok := r.s.st.users[id]; ok {
			c := *u
			out[id] = &c
		}
	}
	return out, nil
}

func (r memUsers) CreateSystemUser(_ context.Context, code string) (*domain.User, error) {
	now := time.Now()
	u := &domain.User{ID: r.s.id(), ReferralCode: &code, IsActive: true, IsSystem: true, ActivatedAt: &now}
	r.s.st.users[u.ID] = u
	c := *u
	return &c, nil
}

func (r memUsers) Activate(_ context.Context, id int64, code string, at time.Time) error {
	u, ok := r.s.st.users[id]
	if !ok {
		return domain.NotFound("ActivateUser", "user %d not found", id)
	}
	u.IsActive = true
	if u.ReferralCode == nil {
		u.ReferralCode = &code
	}
	if u.ActivatedAt == nil {
		u.ActivatedAt = &at
	}
	return nil
}

func (r memUsers) ListDirectReferrals(_ context.Context, sponsorID int64) ([]int64, error) {
	var ids []int64
	for _, u := range r.s.st.users {
		if u.SponsorID != nil && *u.SponsorID == sponsorID && u.IsActive && !u.IsSystem {
			ids = append(ids, u.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r memUsers) CountDirectReferrals(ctx context.Context, sponsorIDs []int64) (map[int64]int, error) {
	out := map[int64]int{}
	for _, id := range sponsorIDs {
		ids, _ := r.ListDirectReferrals(ctx, id)
		if len(ids) > 0 {
			out[id] = len(ids)
		}
	}
	return out, nil
}

func (r memUsers) SetEligibility(_ context.Context, id int64, eligible bool) error {
	u, ok := r.s.st.users[id]
	if !ok {
		return domain.NotFound("SetEligibility", "user %d not found", id)
	}
	u.IsEligibleRepurchase = eligible
	return nil
}

func (r memUsers) ListActiveIDs(_ context.Context) ([]int64, error) {
	var ids []int64
	for _, u := range r.s.st.users {
		if u.IsActive && !u.IsSystem {
			ids = append(ids, u.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r memUsers) ListActiveByLevel(_ context.Context, level int) ([]int64, error) {
	var ids []int64
	for _, u := range r.s.st.users {
		if u.IsActive && !u.IsSystem && u.Level == level {
			ids = append(ids, u.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r memUsers) IncrementTeams(_ context.Context, id int64) (int, error) {
	u, ok := r.s.st.users[id]
	if !ok {
		return 0, domain.NotFound("IncrementTeams", "user %d not found", id)
	}
	u.TotalTeams++
	return u.TotalTeams, nil
}

func (r memUsers) RaiseLevel(_ context.Context, id int64, level int) (int, error) {
	u, ok := r.s.st.users[id]
	if !ok {
		return 0, domain.NotFound("RaiseLevel", "user %d not found", id)
	}
	u.Level = max(u.Level, level)
	return u.Level, nil
}

func (r memUsers) AddMonthlyPurchase(_ context.Context, id int64, amount int64) error {
	if u, ok := r.s.st.users[id]; ok {
		u.MonthlyPurchase += amount
	}
	return nil
}

func (r memUsers) ResetMonthlyPurchases(_ context.Context) (int64, error) {
	var n int64
	for _, u := range r.s.st.users {
		if u.MonthlyPurchase != 0 {
			u.MonthlyPurchase = 0
			n++
		}
	}
	return n, nil
}

type memMatrix struct{ s *memStore }

func (r memMatrix) GetNode(_ context.Context, userID int64) (*domain.MatrixNode, error) {
	n, ok := r.s.st.nodes[userID]
	if !ok {
		return nil, domain.NotFound("GetMatrixNode", "user %d has no matrix node", userID)
	}
	c := *n
	return &c, nil
}

func (r memMatrix) GetRoot(_ context.Context) (*domain.MatrixNode, error) {
	for _, n := range r.s.st.nodes {
		if n.ParentID == nil {
			c := *n
			return &c, nil
		}
	}
	return nil, domain.NotFound("GetMatrixRoot", "matrix is empty")
}

func (r memMatrix) ChildrenOf(_ context.Context, parentIDs []int64) ([]domain.MatrixNode, error) {
	var out []domain.MatrixNode
	for _, pid := range parentIDs {
		for _, id := range r.s.children(pid) {
			out = append(out, *r.s.st.nodes[id])
		}
	}
	return out, nil
}

func (r memMatrix) LockNode(_ context.Context, userID int64) error {
	if _, ok := r.s.st.nodes[userID]; !ok {
		return domain.NotFound("LockMatrixNode", "user %d has no matrix node", userID)
	}
	return nil
}

func (r memMatrix) ChildPositions(_ context.Context, parentID int64) ([]int, error) {
	var out []int
	for _, id := range r.s.children(parentID) {
		out = append(out, *r.s.st.nodes[id].Position)
	}
	return out, nil
}

func (r memMatrix) Insert(_ context.Context, node *domain.MatrixNode) error {
	if _, ok := r.s.st.nodes[node.UserID]; ok {
		return domain.Conflict("InsertMatrixNode", context.Canceled)
	}
	node.CreatedAt = time.Now()
	c := *node
	r.s.st.nodes[node.UserID] = &c
	return nil
}

func (r memMatrix) ListAll(_ context.Context) ([]domain.MatrixNode, error) {
	var out []domain.MatrixNode
	for _, n := range r.s.st.nodes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

type memHierarchy struct{ s *memStore }

func (r memHierarchy) Insert(_ context.Context, rows []domain.HierarchyRow) (int64, error) {
	var n int64
	for _, row := range rows {
		if !r.s.st.hierarchy[row] {
			r.s.st.hierarchy[row] = true
			n++
		}
	}
	return n, nil
}

func (r memHierarchy) Ancestors(_ context.Context, descendantID int64, maxDepth int) ([]domain.HierarchyRow, error) {
	var out []domain.HierarchyRow
	for row := range r.s.st.hierarchy {
		if row.DescendantID == descendantID && row.Depth <= maxDepth {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Depth < out[j].Depth })
	return out, nil
}

type memOrders struct{ s *memStore }

func (r memOrders) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	o, ok := r.s.st.orders[id]
	if !ok {
		return nil, domain.NotFound("GetOrder", "order %d not found", id)
	}
	c := *o
	return &c, nil
}

func (r memOrders) MarkPaid(_ context.Context, id int64, joining bool, paidAt time.Time) error {
	o, ok := r.s.st.orders[id]
	if !ok {
		return domain.NotFound("MarkOrderPaid", "order %d not found", id)
	}
	o.IsJoiningOrder = o.IsJoiningOrder || joining
	if o.PaidAt == nil {
		o.PaidAt = &paidAt
	}
	return nil
}

type memLedger struct{ s *memStore }

func (r memLedger) Post(_ context.Context, entry *domain.LedgerEntry) error {
	if entry.UserID != nil && entry.Amount != 0 {
		u, ok := r.s.st.users[*entry.UserID]
		if !ok {
			return domain.NotFound("PostLedgerEntry", "user %d not found", *entry.UserID)
		}
		u.WalletBalance += entry.Amount
	}
	entry.ID = r.s.id()
	entry.CreatedAt = time.Now()
	r.s.st.ledger = append(r.s.st.ledger, *entry)
	return nil
}

func (r memLedger) GetByID(_ context.Context, id int64) (*domain.LedgerEntry, error) {
	for _, e := range r.s.st.ledger {
		if e.ID == id {
			c := e
			return &c, nil
		}
	}
	return nil, domain.NotFound("GetLedgerEntry", "entry %d not found", id)
}

func (r memLedger) List(_ context.Context, f domain.LedgerFilter) ([]domain.LedgerEntry, int64, error) {
	var out []domain.LedgerEntry
	for _, e := range r.s.st.ledger {
		if f.UserID != 0 && (e.UserID == nil || *e.UserID != f.UserID) {
			continue
		}
		if len(f.Types) > 0 {
			match := false
			for _, t := range f.Types {
				match = match || t == e.Type
			}
			if !match {
				continue
			}
		}
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

func (r memLedger) ExistsByRef(_ context.Context, ref string) (bool, error) {
	for _, e := range r.s.st.ledger {
		if e.Ref == ref {
			return true, nil
		}
	}
	return false, nil
}

func (r memLedger) SumByRef(_ context.Context, ref string) (int64, error) {
	return r.s.sumByRef(ref), nil
}

func (r memLedger) BalanceAt(_ context.Context, userID int64, at time.Time) (int64, error) {
	var sum int64
	for _, e := range r.s.st.ledger {
		if e.UserID != nil && *e.UserID == userID && !e.CreatedAt.After(at) {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (r memLedger) ListWalletMismatches(_ context.Context) ([]domain.WalletMismatch, error) {
	sums := map[int64]int64{}
	for _, e := range r.s.st.ledger {
		if e.UserID != nil {
			sums[*e.UserID] += e.Amount
		}
	}
	var out []domain.WalletMismatch
	for id, u := range r.s.st.users {
		if u.WalletBalance != sums[id] {
			out = append(out, domain.WalletMismatch{UserID: id, WalletBalance: u.WalletBalance, LedgerBalance: sums[id]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

type memSchedules struct{ s *memStore }

func (r memSchedules) CreateBatch(_ context.Context, rows []domain.SelfPayoutSchedule) error {
	for i := range rows {
		rows[i].ID = r.s.id()
		rows[i].Status = domain.PayoutStatusScheduled
		r.s.st.schedules = append(r.s.st.schedules, rows[i])
	}
	return nil
}

func (r memSchedules) ListDue(_ context.Context, now time.Time, limit int) ([]domain.SelfPayoutSchedule, error) {
	var out []domain.SelfPayoutSchedule
	for _, row := range r.s.st.schedules {
		if row.Status == domain.PayoutStatusScheduled && !row.DueAt.After(now) {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memSchedules) MarkPaid(_ context.Context, id int64, at time.Time) (bool, error) {
	for i := range r.s.st.schedules {
		row := &r.s.st.schedules[i]
		if row.ID == id && row.Status == domain.PayoutStatusScheduled {
			row.Status = domain.PayoutStatusPaid
			row.PaidAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (r memSchedules) ListByOrder(_ context.Context, orderID int64) ([]domain.SelfPayoutSchedule, error) {
	var out []domain.SelfPayoutSchedule
	for _, row := range r.s.st.schedules {
		if row.OrderID == orderID {
			out = append(out, row)
		}
	}
	return out, nil
}

type memTeams struct{ s *memStore }

func (r memTeams) IsMember(_ context.Context, userID int64) (bool, error) {
	_, ok := r.s.st.teamOf[userID]
	return ok, nil
}

func (r memTeams) GetFormingForUpdate(_ context.Context, leaderID int64) (*domain.Team, error) {
	for _, t := range r.s.st.teams {
		if t.LeaderID == leaderID && t.Status == domain.TeamStatusForming {
			c := *t
			c.Members = append([]int64(nil), t.Members...)
			return &c, nil
		}
	}
	return nil, domain.NotFound("GetFormingTeam", "leader %d has no forming team", leaderID)
}

func (r memTeams) Create(_ context.Context, leaderID int64) (*domain.Team, error) {
	t := &domain.Team{ID: r.s.id(), LeaderID: leaderID, Status: domain.TeamStatusForming, CreatedAt: time.Now()}
	r.s.st.teams[t.ID] = t
	c := *t
	return &c, nil
}

func (r memTeams) AddMember(_ context.Context, teamID, userID int64) (int, error) {
	t := r.s.st.teams[teamID]
	t.Members = append(t.Members, userID)
	r.s.st.teamOf[userID] = teamID
	return len(t.Members), nil
}

func (r memTeams) Complete(_ context.Context, teamID int64, at time.Time) error {
	t := r.s.st.teams[teamID]
	t.Status = domain.TeamStatusComplete
	t.CompletedAt = &at
	return nil
}

type memPool struct{ s *memStore }

func (r memPool) Get(_ context.Context) (*domain.TurnoverPool, error) {
	return &domain.TurnoverPool{Undistributed: r.s.st.pool}, nil
}

func (r memPool) GetForUpdate(ctx context.Context) (*domain.TurnoverPool, error) {
	return r.Get(ctx)
}

func (r memPool) Add(_ context.Context, amount int64) error {
	r.s.st.pool += amount
	return nil
}

func (r memPool) Subtract(_ context.Context, amount int64) error {
	if r.s.st.pool < amount {
		return domain.Structural("SubtractPool", "pool holds %d, cannot subtract %d", r.s.st.pool, amount)
	}
	r.s.st.pool -= amount
	return nil
}

func (r memPool) SaveDistribution(_ context.Context, d *domain.PoolDistribution) error {
	d.CreatedAt = time.Now()
	r.s.st.dists = append(r.s.st.dists, *d)
	return nil
}

func (r memPool) LastDistribution(_ context.Context) (*domain.PoolDistribution, error) {
	if len(r.s.st.dists) == 0 {
		return nil, domain.NotFound("LastPoolDistribution", "no pool distribution yet")
	}
	d := r.s.st.dists[len(r.s.st.dists)-1]
	return &d, nil
}

type memIdempotency struct{ s *memStore }

func (r memIdempotency) Claim(_ context.Context, eventID string, orderID int64) (bool, error) {
	if _, ok := r.s.st.events[eventID]; ok || r.s.st.eventOrders[orderID] {
		return false, nil
	}
	r.s.st.events[eventID] = orderID
	r.s.st.eventOrders[orderID] = true
	return true, nil
}

type memWithdrawals struct{ s *memStore }

func (r memWithdrawals) SumPending(_ context.Context, userID int64) (int64, error) {
	return r.s.st.pending[userID], nil
}

type memLocks struct{ s *memStore }

func (r memLocks) TryAdvisoryXactLock(_ context.Context, key int64) (bool, error) {
	return !r.s.busyLocks[key], nil
}
