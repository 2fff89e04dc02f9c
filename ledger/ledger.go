// Package ledger tracks how many generations each user may still consume.
//
// Every owner has a free bucket, seeded on first touch, and a paid bucket
// filled by [Ledger.Credit]. Consumption drains free before paid; refunds
// return to the free bucket. The engine never consumes: callers reserve
// quota before creating a job, and the engine reconciles once per terminal
// transition with [Ledger.RecordOutcome] and, on failure, [Ledger.Refund].
package ledger

import (
	"context"
	"errors"
)

// Outcome is the result recorded for a finished job.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ErrInvalidAmount is returned by Credit for non-positive amounts.
var ErrInvalidAmount = errors.New("ledger: credit amount must be positive")

// Balance is a snapshot of one owner's quota.
type Balance struct {
	OwnerID    int64 `json:"owner_id"`
	Free       int64 `json:"free"`
	Paid       int64 `json:"paid"`
	UsedFree   int64 `json:"used_free"`
	UsedPaid   int64 `json:"used_paid"`
	Successful int64 `json:"successful"`
	Failed     int64 `json:"failed"`
}

// Available returns the number of generations left.
func (b Balance) Available() int64 {
	return b.Free + b.Paid
}

// Ledger is the quota accounting contract.
type Ledger interface {
	// TryConsume takes one generation from the owner's quota and reports
	// whether one was available.
	TryConsume(ctx context.Context, ownerID int64) (bool, error)

	// Refund returns one generation to the owner's free bucket.
	Refund(ctx context.Context, ownerID int64) error

	// RecordOutcome counts a finished job.
	RecordOutcome(ctx context.Context, ownerID int64, outcome Outcome) error

	// Credit adds n paid generations.
	Credit(ctx context.Context, ownerID int64, n int64) error

	// Balance returns the owner's current quota.
	Balance(ctx context.Context, ownerID int64) (Balance, error)
}
