// Package memory is an in-process ledger.Store used by tests and local runs
// without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/core/datamodel/payroll"
	"github.com/frahmantamala/payroll-ledger/internal/ledger"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu      sync.RWMutex
	users   map[int64]internal.Role
	rates   []payroll.HourlyRate
	hours   []payroll.WorkedHours
	perm    []payroll.PermanentSalary
	history []payroll.HistoryEntry
	nextID  int64

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex

	failAppend error
}

func NewStore() *Store {
	return &Store{
		users: make(map[int64]internal.Role),
		locks: make(map[int64]*sync.Mutex),
	}
}

// FailHistoryWith makes every following AppendHistory return err after the
// deletes were staged. nil restores normal behaviour.
func (s *Store) FailHistoryWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAppend = err
}

func (s *Store) AddUser(id int64, role internal.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = role
}

func (s *Store) AddHours(userID int64, hours decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.hours = append(s.hours, payroll.WorkedHours{ID: s.nextID, UserID: userID, Hours: hours, RequestDate: time.Now()})
}

func (s *Store) AddRate(userID int64, rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.rates = append(s.rates, payroll.HourlyRate{ID: s.nextID, UserID: userID, Salary: rate, CreatedAt: time.Now()})
}

func (s *Store) AddPermanent(userID int64, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.perm = append(s.perm, payroll.PermanentSalary{ID: s.nextID, UserID: userID, Salary: amount, CreatedAt: time.Now()})
}

func (s *Store) History(userID int64) []payroll.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payroll.HistoryEntry
	for _, h := range s.history {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	return out
}

func (s *Store) UnpaidRecords(_ context.Context, userID int64) (*ledger.UnpaidRecords, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(userID), nil
}

func (s *Store) collect(userID int64) *ledger.UnpaidRecords {
	records := &ledger.UnpaidRecords{}
	for _, h := range s.hours {
		if h.UserID == userID {
			records.Hours = append(records.Hours, h)
		}
	}
	for _, r := range s.rates {
		if r.UserID == userID {
			records.Rates = append(records.Rates, r)
		}
	}
	for _, p := range s.perm {
		if p.UserID == userID {
			records.Permanent = append(records.Permanent, p)
		}
	}
	return records
}

func (s *Store) employeeLock(id int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// WithinSettlement serializes settlements per employee and applies staged
// writes only when fn succeeds.
func (s *Store) WithinSettlement(ctx context.Context, employeeID int64, fn func(ctx context.Context, tx ledger.SettlementTx) error) error {
	lock := s.employeeLock(employeeID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &settlementTx{store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.hours = without(s.hours, func(h payroll.WorkedHours) bool { return tx.hourIDs[h.ID] })
	s.perm = without(s.perm, func(p payroll.PermanentSalary) bool { return tx.permIDs[p.ID] })
	for _, entry := range tx.appended {
		s.nextID++
		entry.ID = s.nextID
		s.history = append(s.history, *entry)
	}
	return nil
}

type settlementTx struct {
	store    *Store
	hourIDs  map[int64]bool
	permIDs  map[int64]bool
	appended []*payroll.HistoryEntry
}

func (t *settlementTx) LockEmployee(_ context.Context, employeeID int64) error {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if _, ok := t.store.users[employeeID]; !ok {
		return internal.ErrEmployeeNotFound
	}
	return nil
}

func (t *settlementTx) UnpaidRecords(_ context.Context, employeeID int64) (*ledger.UnpaidRecords, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.collect(employeeID), nil
}

func (t *settlementTx) DeleteUnpaid(_ context.Context, records *ledger.UnpaidRecords) error {
	t.hourIDs = make(map[int64]bool, len(records.Hours))
	for _, id := range records.HourIDs() {
		t.hourIDs[id] = true
	}
	t.permIDs = make(map[int64]bool, len(records.Permanent))
	for _, id := range records.PermanentIDs() {
		t.permIDs[id] = true
	}
	return nil
}

// AppendHistory stages entry; its ID is assigned on commit.
func (t *settlementTx) AppendHistory(_ context.Context, entry *payroll.HistoryEntry) error {
	t.store.mu.RLock()
	failure := t.store.failAppend
	t.store.mu.RUnlock()
	if failure != nil {
		return failure
	}
	t.appended = append(t.appended, entry)
	return nil
}

func without[T any](items []T, drop func(T) bool) []T {
	out := items[:0]
	for _, item := range items {
		if !drop(item) {
			out = append(out, item)
		}
	}
	return out
}
