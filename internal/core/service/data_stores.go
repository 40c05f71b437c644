package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/rs/zerolog"

	"github.com/pennywise/finance-client/internal/core/domain"
	"github.com/pennywise/finance-client/internal/core/ports"
)

const recentTransactionsLimit = 10

// CurrentProfileReader exposes the profile that scopes backend reads.
type CurrentProfileReader interface {
	CurrentProfile() (domain.Profile, bool)
}

// Refresher is a data store that reloads itself for the current profile.
type Refresher interface {
	Name() string
	Refresh(ctx context.Context) error
}

// RegisterRefreshers registers every store with the coordinator.
func RegisterRefreshers(c *RefreshCoordinator, stores ...Refresher) error {
	for _, s := range stores {
		if _, err := c.Register(s.Name(), s.Refresh); err != nil {
			return fmt.Errorf("register %s: %w", s.Name(), err)
		}
	}
	return nil
}

// maxProfileLoads bounds how often one refresh reloads after the profile moved
// under it.
const maxProfileLoads = 3

var (
	errProfileMoved  = errors.New("current profile changed during load")
	errSnapshotStale = errors.New("loaded for a previous profile, refresh pending")
)

// loadFor runs load for the profile current at call time. When the profile
// changed while load ran, load runs again for the new one, so a single sweep
// ends on the latest selection even though triggers raised during it are
// dropped. current is false only when the selection kept moving for
// maxProfileLoads attempts.
func loadFor(ctx context.Context, profiles CurrentProfileReader, load func(ctx context.Context) error) (id domain.ProfileID, current bool, err error) {
	p, ok := profiles.CurrentProfile()
	if !ok {
		return "", false, nil
	}
	for attempt := 0; attempt < maxProfileLoads; attempt++ {
		if err := load(ctx); err != nil {
			return p.ID, false, err
		}
		cur, ok := profiles.CurrentProfile()
		if !ok {
			return "", false, nil
		}
		if cur.ID == p.ID {
			return p.ID, true, nil
		}
		p = cur
	}
	return p.ID, false, nil
}

// staleFor reports whether data loaded for loaded no longer belongs to the
// current profile, and returns the profile that is current now. A refresh that
// completed before a switch keeps its snapshot until the next sweep; reads in
// between must not see it.
func staleFor(profiles CurrentProfileReader, loaded domain.ProfileID) (domain.ProfileID, bool) {
	if loaded.IsZero() {
		return "", false
	}
	p, ok := profiles.CurrentProfile()
	if !ok {
		return "", true
	}
	return p.ID, p.ID != loaded
}

// ---------------------------------------------------------------------------
// Dashboard
// ---------------------------------------------------------------------------

// DashboardSnapshot is the loaded dashboard state.
type DashboardSnapshot struct {
	ProfileID          domain.ProfileID      `json:"profile_id"`
	RecentTransactions []domain.Transaction  `json:"recent_transactions"`
	Stats              domain.DashboardStats `json:"stats"`
	LoadedAt           time.Time             `json:"loaded_at"`
	Error              string                `json:"error,omitempty"`
}

// DashboardStore holds recent transactions and summary stats.
type DashboardStore struct {
	backend  ports.FinanceBackend
	profiles CurrentProfileReader
	log      zerolog.Logger
	now      func() time.Time

	mu   sync.RWMutex
	snap DashboardSnapshot
}

func NewDashboardStore(backend ports.FinanceBackend, profiles CurrentProfileReader, log zerolog.Logger) *DashboardStore {
	return &DashboardStore{
		backend:  backend,
		profiles: profiles,
		log:      log.With().Str("store", "dashboard").Logger(),
		now:      time.Now,
	}
}

func (s *DashboardStore) Name() string { return "dashboard" }

// Refresh reloads the dashboard for the current profile.
func (s *DashboardStore) Refresh(ctx context.Context) error {
	var (
		txs   []domain.Transaction
		stats *domain.DashboardStats
	)
	id, current, err := loadFor(ctx, s.profiles, func(ctx context.Context) error {
		var err error
		txs, err = s.backend.ListTransactions(ctx, domain.TransactionFilter{Limit: recentTransactionsLimit, Order: "desc"})
		if err != nil {
			return fmt.Errorf("recent transactions: %w", err)
		}
		stats, err = s.backend.TransactionStats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		return nil
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		s.snap.Error = err.Error()
		return fmt.Errorf("dashboard: %w", err)
	case id.IsZero():
		s.snap = DashboardSnapshot{}
		return nil
	case !current:
		s.log.Warn().Str("profile_id", id.String()).Msg("profile kept changing, dashboard not loaded")
		s.snap = DashboardSnapshot{Error: errProfileMoved.Error()}
		return fmt.Errorf("dashboard: %w", errProfileMoved)
	}
	if len(txs) > recentTransactionsLimit {
		txs = txs[:recentTransactionsLimit]
	}
	s.snap = DashboardSnapshot{
		ProfileID:          id,
		RecentTransactions: txs,
		Stats:              *stats,
		LoadedAt:           s.now(),
	}
	return nil
}

// Snapshot returns the last loaded dashboard, or an empty one when it was
// loaded for a profile that is no longer current.
func (s *DashboardStore) Snapshot() DashboardSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cur, stale := staleFor(s.profiles, s.snap.ProfileID); stale {
		return DashboardSnapshot{ProfileID: cur, Error: errSnapshotStale.Error()}
	}
	out := s.snap
	out.RecentTransactions = append([]domain.Transaction(nil), s.snap.RecentTransactions...)
	return out
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

// AccountSnapshot is the loaded account list with per-currency totals.
type AccountSnapshot struct {
	ProfileID   domain.ProfileID  `json:"profile_id"`
	Accounts    []domain.Account  `json:"accounts"`
	Totals      map[string]int64  `json:"totals"`
	TotalsLabel map[string]string `json:"totals_label"`
	LoadedAt    time.Time         `json:"loaded_at"`
	Error       string            `json:"error,omitempty"`
}

// AccountStore holds the accounts of the current profile.
type AccountStore struct {
	backend         ports.FinanceBackend
	profiles        CurrentProfileReader
	defaultCurrency string
	log             zerolog.Logger
	now             func() time.Time

	mu   sync.RWMutex
	snap AccountSnapshot
}

// NewAccountStore returns a store that books accounts without a currency in
// defaultCurrency.
func NewAccountStore(backend ports.FinanceBackend, profiles CurrentProfileReader, defaultCurrency string, log zerolog.Logger) *AccountStore {
	if defaultCurrency == "" {
		defaultCurrency = money.USD
	}
	return &AccountStore{
		backend:         backend,
		profiles:        profiles,
		defaultCurrency: defaultCurrency,
		log:             log.With().Str("store", "accounts").Logger(),
		now:             time.Now,
	}
}

func (s *AccountStore) Name() string { return "accounts" }

// Refresh reloads the accounts for the current profile.
func (s *AccountStore) Refresh(ctx context.Context) error {
	var accounts []domain.Account
	id, current, err := loadFor(ctx, s.profiles, func(ctx context.Context) error {
		var err error
		accounts, err = s.backend.ListAccounts(ctx)
		return err
	})
	var totals map[string]*money.Money
	if err == nil && current {
		totals, err = TotalBalances(accounts, s.defaultCurrency)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		s.snap.Error = err.Error()
		return fmt.Errorf("accounts: %w", err)
	case id.IsZero():
		s.snap = AccountSnapshot{}
		return nil
	case !current:
		s.log.Warn().Str("profile_id", id.String()).Msg("profile kept changing, accounts not loaded")
		s.snap = AccountSnapshot{Error: errProfileMoved.Error()}
		return fmt.Errorf("accounts: %w", errProfileMoved)
	}

	snap := AccountSnapshot{
		ProfileID:   id,
		Accounts:    accounts,
		Totals:      make(map[string]int64, len(totals)),
		TotalsLabel: make(map[string]string, len(totals)),
		LoadedAt:    s.now(),
	}
	for cur, m := range totals {
		snap.Totals[cur] = m.Amount()
		snap.TotalsLabel[cur] = m.Display()
	}
	s.snap = snap
	return nil
}

// Snapshot returns the last loaded accounts of the current profile.
func (s *AccountStore) Snapshot() AccountSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cur, stale := staleFor(s.profiles, s.snap.ProfileID); stale {
		return AccountSnapshot{ProfileID: cur, Error: errSnapshotStale.Error()}
	}
	out := s.snap
	out.Accounts = append([]domain.Account(nil), s.snap.Accounts...)
	return out
}

// TotalBalances sums the effective balance of every account per currency.
// Accounts without a currency count as fallback.
func TotalBalances(accounts []domain.Account, fallback string) (map[string]*money.Money, error) {
	totals := make(map[string]*money.Money)
	for _, a := range accounts {
		cur := a.Currency
		if cur == "" {
			cur = fallback
		}
		amount := money.New(a.EffectiveBalance(), cur)
		sum, ok := totals[cur]
		if !ok {
			totals[cur] = amount
			continue
		}
		next, err := sum.Add(amount)
		if err != nil {
			return nil, fmt.Errorf("total %s: %w", cur, err)
		}
		totals[cur] = next
	}
	return totals, nil
}

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

// TransactionSnapshot is the loaded transaction list.
type TransactionSnapshot struct {
	ProfileID    domain.ProfileID     `json:"profile_id"`
	Transactions []domain.Transaction `json:"transactions"`
	LoadedAt     time.Time            `json:"loaded_at"`
	Error        string               `json:"error,omitempty"`
}

// TransactionStore holds a filtered transaction list of the current profile.
// Edits made through it are mirrored into the loaded list until the next
// refresh.
type TransactionStore struct {
	backend  ports.TransactionBackend
	profiles CurrentProfileReader
	log      zerolog.Logger
	now      func() time.Time

	mu     sync.RWMutex
	filter domain.TransactionFilter
	snap   TransactionSnapshot
}

func NewTransactionStore(backend ports.TransactionBackend, profiles CurrentProfileReader, filter domain.TransactionFilter, log zerolog.Logger) *TransactionStore {
	return &TransactionStore{
		backend:  backend,
		profiles: profiles,
		filter:   filter,
		log:      log.With().Str("store", "transactions").Logger(),
		now:      time.Now,
	}
}

func (s *TransactionStore) Name() string { return "transactions" }

// SetFilter changes the filter used by the next refresh.
func (s *TransactionStore) SetFilter(f domain.TransactionFilter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

// Refresh reloads the transactions for the current profile.
func (s *TransactionStore) Refresh(ctx context.Context) error {
	s.mu.RLock()
	filter := s.filter
	s.mu.RUnlock()

	var txs []domain.Transaction
	id, current, err := loadFor(ctx, s.profiles, func(ctx context.Context) error {
		var err error
		txs, err = s.backend.ListTransactions(ctx, filter)
		return err
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		s.snap.Error = err.Error()
		return fmt.Errorf("transactions: %w", err)
	case id.IsZero():
		s.snap = TransactionSnapshot{}
		return nil
	case !current:
		s.log.Warn().Str("profile_id", id.String()).Msg("profile kept changing, transactions not loaded")
		s.snap = TransactionSnapshot{Error: errProfileMoved.Error()}
		return fmt.Errorf("transactions: %w", errProfileMoved)
	}
	s.snap = TransactionSnapshot{ProfileID: id, Transactions: txs, LoadedAt: s.now()}
	return nil
}

// Create creates a transaction for the current profile and prepends it.
func (s *TransactionStore) Create(ctx context.Context, in domain.TransactionInput) (domain.Transaction, error) {
	if err := validateInput(in); err != nil {
		return domain.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	id, ok := s.scope()
	tx, err := s.backend.CreateTransaction(ctx, in)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.mirror(id, ok, func() {
		s.snap.Transactions = append([]domain.Transaction{*tx}, s.snap.Transactions...)
	})
	return *tx, nil
}

// Update replaces a transaction and swaps it in place.
func (s *TransactionStore) Update(ctx context.Context, txID string, in domain.TransactionInput) (domain.Transaction, error) {
	if err := validateInput(in); err != nil {
		return domain.Transaction{}, fmt.Errorf("update transaction %q: %w", txID, err)
	}
	id, ok := s.scope()
	tx, err := s.backend.UpdateTransaction(ctx, txID, in)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("update transaction %q: %w", txID, err)
	}
	s.mirror(id, ok, func() {
		for i := range s.snap.Transactions {
			if s.snap.Transactions[i].ID == txID {
				s.snap.Transactions[i] = *tx
				return
			}
		}
	})
	return *tx, nil
}

// Delete removes a transaction and drops it from the loaded list.
func (s *TransactionStore) Delete(ctx context.Context, txID string) error {
	id, ok := s.scope()
	if err := s.backend.DeleteTransaction(ctx, txID); err != nil {
		return fmt.Errorf("delete transaction %q: %w", txID, err)
	}
	s.mirror(id, ok, func() {
		for i := range s.snap.Transactions {
			if s.snap.Transactions[i].ID == txID {
				s.snap.Transactions = append(s.snap.Transactions[:i:i], s.snap.Transactions[i+1:]...)
				return
			}
		}
	})
	return nil
}

// scope reports the profile an edit is issued for.
func (s *TransactionStore) scope() (domain.ProfileID, bool) {
	p, ok := s.profiles.CurrentProfile()
	return p.ID, ok
}

// mirror applies edit to the loaded list when that list still belongs to the
// profile the edit was issued for.
func (s *TransactionStore) mirror(id domain.ProfileID, ok bool, edit func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok || s.snap.ProfileID != id {
		return
	}
	edit()
}

// Snapshot returns the transactions ordered as loaded.
func (s *TransactionStore) Snapshot() TransactionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cur, stale := staleFor(s.profiles, s.snap.ProfileID); stale {
		return TransactionSnapshot{ProfileID: cur, Error: errSnapshotStale.Error()}
	}
	out := s.snap
	out.Transactions = append([]domain.Transaction(nil), s.snap.Transactions...)
	return out
}

// Categories lists the distinct categories of the loaded transactions.
func (s *TransactionStore) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, stale := staleFor(s.profiles, s.snap.ProfileID); stale {
		return []string{}
	}
	seen := make(map[string]struct{})
	for _, tx := range s.snap.Transactions {
		if tx.Category != "" {
			seen[tx.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

// ReportSnapshot is the loaded cash flow report.
type ReportSnapshot struct {
	ProfileID domain.ProfileID `json:"profile_id"`
	CashFlow  *domain.Report   `json:"cash_flow"`
	LoadedAt  time.Time        `json:"loaded_at"`
	Error     string           `json:"error,omitempty"`
}

// ReportStore keeps the cash flow report of the current profile and fetches
// other reports on demand.
type ReportStore struct {
	backend  ports.ReportBackend
	profiles CurrentProfileReader
	log      zerolog.Logger
	now      func() time.Time

	mu   sync.RWMutex
	snap ReportSnapshot
}

func NewReportStore(backend ports.ReportBackend, profiles CurrentProfileReader, log zerolog.Logger) *ReportStore {
	return &ReportStore{
		backend:  backend,
		profiles: profiles,
		log:      log.With().Str("store", "reports").Logger(),
		now:      time.Now,
	}
}

func (s *ReportStore) Name() string { return "reports" }

// Refresh reloads the cash flow report for the current profile.
func (s *ReportStore) Refresh(ctx context.Context) error {
	var report *domain.Report
	id, current, err := loadFor(ctx, s.profiles, func(ctx context.Context) error {
		var err error
		report, err = s.backend.Report(ctx, domain.ReportCashFlow, domain.ReportQuery{})
		return err
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		s.snap.Error = err.Error()
		return fmt.Errorf("reports: %w", err)
	case id.IsZero():
		s.snap = ReportSnapshot{}
		return nil
	case !current:
		s.log.Warn().Str("profile_id", id.String()).Msg("profile kept changing, reports not loaded")
		s.snap = ReportSnapshot{Error: errProfileMoved.Error()}
		return fmt.Errorf("reports: %w", errProfileMoved)
	}
	s.snap = ReportSnapshot{ProfileID: id, CashFlow: report, LoadedAt: s.now()}
	return nil
}

// Snapshot returns the last loaded reports.
func (s *ReportStore) Snapshot() ReportSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cur, stale := staleFor(s.profiles, s.snap.ProfileID); stale {
		return ReportSnapshot{ProfileID: cur, Error: errSnapshotStale.Error()}
	}
	return s.snap
}

// Report fetches kind for the current profile without caching it.
func (s *ReportStore) Report(ctx context.Context, kind string, q domain.ReportQuery) (*domain.Report, error) {
	switch kind {
	case domain.ReportCashFlow, domain.ReportProjectedBalance:
	default:
		return nil, fmt.Errorf("report %q: %w", kind, domain.ErrUnknownReport)
	}
	if _, ok := s.profiles.CurrentProfile(); !ok {
		return nil, fmt.Errorf("report %q: %w", kind, domain.ErrProfileNotFound)
	}
	report, err := s.backend.Report(ctx, kind, q)
	if err != nil {
		return nil, fmt.Errorf("report %q: %w", kind, err)
	}
	return report, nil
}
