package ledger

import (
	"context"
	"sync"
)

// Memory is an in-process Ledger for development and tests.
type Memory struct {
	mu        sync.Mutex
	freeQuota int64
	balances  map[int64]*Balance
}

var _ Ledger = (*Memory)(nil)

// NewMemory creates a ledger that seeds freeQuota generations per owner.
func NewMemory(freeQuota int64) *Memory {
	return &Memory{freeQuota: freeQuota, balances: make(map[int64]*Balance)}
}

// touch returns the owner's balance, seeding it on first use. Callers hold mu.
func (m *Memory) touch(ownerID int64) *Balance {
	b, ok := m.balances[ownerID]
	if !ok {
		b = &Balance{OwnerID: ownerID, Free: m.freeQuota}
		m.balances[ownerID] = b
	}
	return b
}

// TryConsume implements Ledger.
func (m *Memory) TryConsume(_ context.Context, ownerID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.touch(ownerID)
	switch {
	case b.Free > 0:
		b.Free--
		b.UsedFree++
	case b.Paid > 0:
		b.Paid--
		b.UsedPaid++
	default:
		return false, nil
	}
	return true, nil
}

// Refund implements Ledger.
func (m *Memory) Refund(_ context.Context, ownerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch(ownerID).Free++
	return nil
}

// RecordOutcome implements Ledger.
func (m *Memory) RecordOutcome(_ context.Context, ownerID int64, outcome Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.touch(ownerID)
	if outcome == OutcomeSuccess {
		b.Successful++
	} else {
		b.Failed++
	}
	return nil
}

// Credit implements Ledger.
func (m *Memory) Credit(_ context.Context, ownerID int64, n int64) error {
	if n <= 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch(ownerID).Paid += n
	return nil
}

// Balance implements Ledger.
func (m *Memory) Balance(_ context.Context, ownerID int64) (Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.touch(ownerID), nil
}
