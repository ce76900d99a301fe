package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"bankloan/internal/models"
	"bankloan/internal/store"
	"bankloan/internal/websocket"

	"github.com/jmoiron/sqlx"
)

// memState is an in-memory stand-in for the database. fakeTxRunner holds its
// lock for the whole transaction and restores a snapshot on error, which is
// enough to model serializable commits and rollbacks.
type memState struct {
	mu           sync.Mutex
	customers    map[string]models.Customer
	accounts     map[string]models.Account
	transactions []models.Transaction
	loans        map[string]models.Loan
	installments []models.Installment
	audits       []models.AuditEntry
	failAudit    error
}

func newMemState() *memState {
	return &memState{
		customers: map[string]models.Customer{},
		accounts:  map[string]models.Account{},
		loans:     map[string]models.Loan{},
	}
}

type memSnapshot struct {
	customers    map[string]models.Customer
	accounts     map[string]models.Account
	transactions []models.Transaction
	loans        map[string]models.Loan
	installments []models.Installment
	audits       []models.AuditEntry
}

func (m *memState) snapshot() memSnapshot {
	snap := memSnapshot{
		customers:    map[string]models.Customer{},
		accounts:     map[string]models.Account{},
		loans:        map[string]models.Loan{},
		transactions: append([]models.Transaction(nil), m.transactions...),
		installments: append([]models.Installment(nil), m.installments...),
		audits:       append([]models.AuditEntry(nil), m.audits...),
	}
	for k, v := range m.customers {
		snap.customers[k] = v
	}
	for k, v := range m.accounts {
		snap.accounts[k] = v
	}
	for k, v := range m.loans {
		snap.loans[k] = v
	}
	return snap
}

func (m *memState) restore(s memSnapshot) {
	m.customers = s.customers
	m.accounts = s.accounts
	m.loans = s.loans
	m.transactions = s.transactions
	m.installments = s.installments
	m.audits = s.audits
}

// fakeTxRunner runs one transaction at a time and passes a nil tx, which the
// fakes ignore.
type fakeTxRunner struct {
	state *memState
	txMu  sync.Mutex
	calls int
}

func (r *fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	r.calls++
	r.state.mu.Lock()
	snap := r.state.snapshot()
	r.state.mu.Unlock()
	if err := fn(nil); err != nil {
		r.state.mu.Lock()
		r.state.restore(snap)
		r.state.mu.Unlock()
		return err
	}
	return nil
}

type fakeAccounts struct{ s *memState }

func (f fakeAccounts) Create(_ context.Context, _ store.Execer, a models.Account) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	f.s.accounts[a.ID] = a
	return nil
}

func (f fakeAccounts) GetByNumber(_ context.Context, number string) (models.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, a := range f.s.accounts {
		if a.Number == number {
			return a, nil
		}
	}
	return models.Account{}, sql.ErrNoRows
}

func (f fakeAccounts) GetByID(_ context.Context, id string) (models.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	a, ok := f.s.accounts[id]
	if !ok {
		return models.Account{}, sql.ErrNoRows
	}
	return a, nil
}

func (f fakeAccounts) GetForUpdate(ctx context.Context, _ store.Getter, number string) (models.Account, error) {
	return f.GetByNumber(ctx, number)
}

func (f fakeAccounts) GetByIDForUpdate(ctx context.Context, _ store.Getter, id string) (models.Account, error) {
	return f.GetByID(ctx, id)
}

func (f fakeAccounts) UpdateBalance(_ context.Context, _ store.Execer, id string, balance int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	a, ok := f.s.accounts[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.Balance = balance
	f.s.accounts[id] = a
	return nil
}

func (f fakeAccounts) ListByCustomer(_ context.Context, customerID string) ([]models.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Account
	for _, a := range f.s.accounts {
		if a.CustomerID == customerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (f fakeAccounts) Reconcile(_ context.Context, customerID string) ([]store.BalanceCheck, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []store.BalanceCheck
	for _, a := range f.s.accounts {
		if customerID != "" && a.CustomerID != customerID {
			continue
		}
		var calculated int64
		for _, t := range f.s.transactions {
			if t.AccountID == a.ID {
				calculated += t.Type.Signed(t.Amount)
			}
		}
		out = append(out, store.BalanceCheck{
			ID:                a.ID,
			CustomerID:        a.CustomerID,
			Number:            a.Number,
			StoredBalance:     a.Balance,
			CalculatedBalance: calculated,
			Difference:        a.Balance - calculated,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (f fakeAccounts) TotalBalance(_ context.Context, customerID string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var total int64
	for _, a := range f.s.accounts {
		if a.CustomerID == customerID {
			total += a.Balance
		}
	}
	return total, nil
}

func (f fakeAccounts) Count(context.Context) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return int64(len(f.s.accounts)), nil
}

type fakeTransactions struct{ s *memState }

func (f fakeTransactions) Append(_ context.Context, _ store.Execer, t models.Transaction) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.transactions = append(f.s.transactions, t)
	return nil
}

func (f fakeTransactions) GetByID(_ context.Context, id string) (models.Transaction, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, t := range f.s.transactions {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Transaction{}, sql.ErrNoRows
}

func (f fakeTransactions) filter(keep func(models.Transaction) bool) []models.Transaction {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Transaction
	for _, t := range f.s.transactions {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out
}

func (f fakeTransactions) Recent(_ context.Context, accountID string, limit int) ([]models.Transaction, error) {
	rows := f.filter(func(t models.Transaction) bool { return t.AccountID == accountID })
	out := make([]models.Transaction, 0, limit)
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, rows[i])
	}
	return out, nil
}

func (f fakeTransactions) ListBefore(_ context.Context, accountID string, before time.Time) ([]models.Transaction, error) {
	return f.filter(func(t models.Transaction) bool {
		return t.AccountID == accountID && t.OccurredAt.Before(before)
	}), nil
}

func (f fakeTransactions) ListBetween(_ context.Context, accountID string, from, to time.Time) ([]models.Transaction, error) {
	return f.filter(func(t models.Transaction) bool {
		return t.AccountID == accountID && !t.OccurredAt.Before(from) && t.OccurredAt.Before(to)
	}), nil
}

func (f fakeTransactions) Search(_ context.Context, q store.TransactionFilter) ([]models.Transaction, int64, error) {
	rows := f.filter(func(t models.Transaction) bool {
		switch {
		case t.AccountID != q.AccountID:
			return false
		case q.Type != "" && t.Type != q.Type:
			return false
		case q.MinAmount != nil && t.Amount < *q.MinAmount:
			return false
		case q.MaxAmount != nil && t.Amount > *q.MaxAmount:
			return false
		case q.Category != "" && (t.Category == nil || *t.Category != q.Category):
			return false
		case q.From != nil && t.OccurredAt.Before(*q.From):
			return false
		case q.To != nil && !t.OccurredAt.Before(*q.To):
			return false
		}
		return true
	})
	total := int64(len(rows))
	var page []models.Transaction
	for i := len(rows) - 1 - q.Offset; i >= 0 && len(page) < q.Limit; i-- {
		page = append(page, rows[i])
	}
	return page, total, nil
}

func (f fakeTransactions) update(id string, apply func(*models.Transaction)) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for i := range f.s.transactions {
		if f.s.transactions[i].ID == id {
			apply(&f.s.transactions[i])
			return 1, nil
		}
	}
	return 0, nil
}

func (f fakeTransactions) UpdateDescription(_ context.Context, _ store.Execer, id, description string) (int64, error) {
	return f.update(id, func(t *models.Transaction) { t.Description = &description })
}

func (f fakeTransactions) UpdateCategory(_ context.Context, _ store.Execer, id, category string) (int64, error) {
	return f.update(id, func(t *models.Transaction) { t.Category = &category })
}

func (f fakeTransactions) RecentForCustomer(_ context.Context, customerID string, limit int) ([]store.Activity, error) {
	f.s.mu.Lock()
	numbers := map[string]string{}
	for _, a := range f.s.accounts {
		if a.CustomerID == customerID {
			numbers[a.ID] = a.Number
		}
	}
	f.s.mu.Unlock()
	rows := f.filter(func(t models.Transaction) bool {
		_, ok := numbers[t.AccountID]
		return ok
	})
	var out []store.Activity
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, store.Activity{Transaction: rows[i], AccountNumber: numbers[rows[i].AccountID]})
	}
	return out, nil
}

type fakeCustomers struct{ s *memState }

func (f fakeCustomers) Create(_ context.Context, _ store.Execer, c models.Customer) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.customers[c.ID] = c
	return nil
}

func (f fakeCustomers) GetByEmail(_ context.Context, email string) (models.Customer, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, c := range f.s.customers {
		if c.Email == email {
			return c, nil
		}
	}
	return models.Customer{}, sql.ErrNoRows
}

func (f fakeCustomers) GetByID(_ context.Context, id string) (models.Customer, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.customers[id]
	if !ok {
		return models.Customer{}, sql.ErrNoRows
	}
	return c, nil
}

func (f fakeCustomers) GetRole(ctx context.Context, id string) (models.Role, error) {
	c, err := f.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return c.Role, nil
}

func (f fakeCustomers) HasAnyAdmin(context.Context, store.Getter) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, c := range f.s.customers {
		if c.Role == models.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeCustomers) UpdateProfile(_ context.Context, _ store.Execer, id string, p store.ProfileUpdate) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.customers[id]
	if !ok {
		return 0, nil
	}
	c.Name, c.Phone, c.Address, c.DateOfBirth = p.Name, p.Phone, p.Address, p.DateOfBirth
	f.s.customers[id] = c
	return 1, nil
}

func (f fakeCustomers) UpdatePassword(_ context.Context, _ store.Execer, id, hash string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c := f.s.customers[id]
	c.PasswordHash = hash
	f.s.customers[id] = c
	return nil
}

func (f fakeCustomers) List(_ context.Context, limit, offset int) ([]models.Customer, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Customer
	for _, c := range f.s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeCustomers) Count(context.Context) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return int64(len(f.s.customers)), nil
}

type fakeLoans struct{ s *memState }

func (f fakeLoans) Create(_ context.Context, _ store.Execer, l models.Loan) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.loans[l.ID] = l
	return nil
}

func (f fakeLoans) GetByID(_ context.Context, id string) (models.Loan, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	l, ok := f.s.loans[id]
	if !ok {
		return models.Loan{}, sql.ErrNoRows
	}
	return l, nil
}

func (f fakeLoans) GetForUpdate(ctx context.Context, _ store.Getter, id string) (models.Loan, error) {
	return f.GetByID(ctx, id)
}

func (f fakeLoans) Update(_ context.Context, _ store.Execer, l models.Loan) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.loans[l.ID]; !ok {
		return sql.ErrNoRows
	}
	f.s.loans[l.ID] = l
	return nil
}

func (f fakeLoans) sorted(keep func(models.Loan) bool, asc bool) []models.Loan {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Loan
	for _, l := range f.s.loans {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if asc {
			return out[i].AppliedAt.Before(out[j].AppliedAt)
		}
		return out[j].AppliedAt.Before(out[i].AppliedAt)
	})
	return out
}

func (f fakeLoans) ListByCustomer(_ context.Context, customerID string) ([]models.Loan, error) {
	return f.sorted(func(l models.Loan) bool { return l.CustomerID == customerID }, false), nil
}

func (f fakeLoans) List(_ context.Context, status models.LoanStatus, limit, offset int) ([]models.Loan, error) {
	rows := f.sorted(func(l models.Loan) bool { return status == "" || l.Status == status }, status == models.LoanPending)
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f fakeLoans) Stats(_ context.Context, customerID string) ([]store.LoanStat, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	type key struct {
		p models.ProductType
		s models.LoanStatus
	}
	grouped := map[key]*store.LoanStat{}
	for _, l := range f.s.loans {
		if customerID != "" && l.CustomerID != customerID {
			continue
		}
		k := key{l.Product, l.Status}
		st, ok := grouped[k]
		if !ok {
			st = &store.LoanStat{Product: l.Product, Status: l.Status}
			grouped[k] = st
		}
		st.Count++
		st.Principal += l.Principal
		st.Outstanding += l.Outstanding
		st.Disbursed += l.DisbursedAmount
		st.EMI += l.EMI
	}
	var out []store.LoanStat
	for _, st := range grouped {
		out = append(out, *st)
	}
	return out, nil
}

func (f fakeLoans) CountApprovedBy(_ context.Context, officerID string, since time.Time) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for _, l := range f.s.loans {
		if l.ApprovedBy != nil && *l.ApprovedBy == officerID && l.ApprovedAt != nil && !l.ApprovedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type fakeInstallments struct{ s *memState }

func (f fakeInstallments) Create(_ context.Context, _ store.Execer, in models.Installment) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.installments = append(f.s.installments, in)
	return nil
}

func (f fakeInstallments) CountByLoan(_ context.Context, _ store.Getter, loanID string) (int, error) {
	rows, _ := f.ListByLoan(context.Background(), loanID)
	return len(rows), nil
}

func (f fakeInstallments) ListByLoan(_ context.Context, loanID string) ([]models.Installment, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Installment
	for _, in := range f.s.installments {
		if in.LoanID == loanID {
			out = append(out, in)
		}
	}
	return out, nil
}

type fakeAudit struct{ s *memState }

func (f fakeAudit) Log(_ context.Context, _ store.Execer, actorID, action, entityType, entityID, data string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failAudit != nil {
		return f.s.failAudit
	}
	f.s.audits = append(f.s.audits, models.AuditEntry{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Data:       data,
		CreatedAt:  time.Now().UTC(),
	})
	return nil
}

func (f fakeAudit) List(_ context.Context, limit, offset int) ([]models.AuditEntry, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	rows := append([]models.AuditEntry(nil), f.s.audits...)
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

type recordingHub struct {
	mu      sync.Mutex
	updates map[string][]websocket.BalanceUpdate
}

func (h *recordingHub) BroadcastBalance(customerID string, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.updates == nil {
		h.updates = map[string][]websocket.BalanceUpdate{}
	}
	h.updates[customerID] = append(h.updates[customerID], update)
}

func (h *recordingHub) last(customerID string) (websocket.BalanceUpdate, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	u := h.updates[customerID]
	if len(u) == 0 {
		return websocket.BalanceUpdate{}, false
	}
	return u[len(u)-1], true
}

// clock hands out strictly increasing instants so ordering by time is stable.
type clock struct {
	mu  sync.Mutex
	cur time.Time
}

func newClock(start time.Time) *clock { return &clock{cur: start} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

// Next makes the following Now call return t.
func (c *clock) Next(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = t.Add(-time.Second)
}

type fixture struct {
	state      *memState
	tx         *fakeTxRunner
	hub        *recordingHub
	clock      *clock
	ledger     *LedgerService
	statements *StatementService
	loans      *LoanService
	customers  *CustomerService
	dashboards *DashboardService
}

func newFixture() *fixture {
	state := newMemState()
	tx := &fakeTxRunner{state: state}
	hub := &recordingHub{}
	clk := newClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	accounts := fakeAccounts{state}
	transactions := fakeTransactions{state}
	customers := fakeCustomers{state}
	audit := fakeAudit{state}
	loanStore := fakeLoans{state}

	ledger := NewLedgerService(tx, accounts, transactions, customers, audit, hub, nil, nil)
	ledger.now = clk.Now
	loans := NewLoanService(tx, loanStore, fakeInstallments{state}, accounts, transactions, customers, audit, hub, nil, nil)
	loans.now = clk.Now
	customerSvc := NewCustomerService(tx, customers, audit, nil)
	customerSvc.now = clk.Now
	dashboards := NewDashboardService(customers, loanStore, accounts, transactions, customers, audit)
	dashboards.now = clk.Now
	return &fixture{
		state:      state,
		tx:         tx,
		hub:        hub,
		clock:      clk,
		ledger:     ledger,
		statements: NewStatementService(accounts, transactions),
		loans:      loans,
		customers:  customerSvc,
		dashboards: dashboards,
	}
}

func (f *fixture) addCustomer(id string, role models.Role) {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	f.state.customers[id] = models.Customer{ID: id, Email: id + "@example.com", Name: id, Role: role}
}

func (f *fixture) addAccount(id, customerID, number string, balance int64) {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	f.state.accounts[id] = models.Account{ID: id, CustomerID: customerID, Number: number, Balance: balance, Status: models.AccountActive}
}

func (f *fixture) account(id string) models.Account {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	return f.state.accounts[id]
}
