package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/meemee/studio/ledger"
)

func TestMemory_ConsumesFreeThenPaid(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory(1)

	if err := l.Credit(ctx, 42, 1); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	for i, want := range []bool{true, true, false} {
		ok, err := l.TryConsume(ctx, 42)
		if err != nil {
			t.Fatalf("TryConsume #%d: %v", i+1, err)
		}
		if ok != want {
			t.Errorf("TryConsume #%d = %v, want %v", i+1, ok, want)
		}
	}

	b, _ := l.Balance(ctx, 42)
	if b.UsedFree != 1 || b.UsedPaid != 1 || b.Available() != 0 {
		t.Errorf("balance = %+v, want one free and one paid used", b)
	}
}

func TestMemory_RefundReturnsToFree(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory(1)

	if ok, _ := l.TryConsume(ctx, 7); !ok {
		t.Fatal("expected first consume to succeed")
	}
	if err := l.Refund(ctx, 7); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	b, _ := l.Balance(ctx, 7)
	if b.Free != 1 {
		t.Errorf("Free = %d, want 1", b.Free)
	}
}

func TestMemory_RecordOutcome(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory(0)

	_ = l.RecordOutcome(ctx, 1, ledger.OutcomeSuccess)
	_ = l.RecordOutcome(ctx, 1, ledger.OutcomeFailure)
	_ = l.RecordOutcome(ctx, 1, ledger.OutcomeFailure)

	b, _ := l.Balance(ctx, 1)
	if b.Successful != 1 || b.Failed != 2 {
		t.Errorf("counters = %d/%d, want 1/2", b.Successful, b.Failed)
	}
}

func TestMemory_CreditRejectsNonPositive(t *testing.T) {
	l := ledger.NewMemory(0)
	if err := l.Credit(context.Background(), 1, 0); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestMemory_ConcurrentConsumeNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory(5)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.TryConsume(ctx, 9); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 5 {
		t.Errorf("granted = %d, want 5", granted)
	}
}
