package ledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Hash fields of a quota record.
const (
	fieldInit       = "init"
	fieldFree       = "free"
	fieldPaid       = "paid"
	fieldUsedFree   = "used_free"
	fieldUsedPaid   = "used_paid"
	fieldSuccessful = "successful"
	fieldFailed     = "failed"
)

// seed is the shared prelude: the first touch of a quota hash sets the free
// bucket to ARGV[1].
const seed = `
if redis.call('HSETNX', KEYS[1], 'init', 1) == 1 then
  redis.call('HSET', KEYS[1], 'free', ARGV[1])
end
`

// consumeScript returns 1 for a free generation, 2 for a paid one, and 0
// when the owner has none left.
var consumeScript = redis.NewScript(seed + `
local free = tonumber(redis.call('HGET', KEYS[1], 'free') or '0')
if free > 0 then
  redis.call('HINCRBY', KEYS[1], 'free', -1)
  redis.call('HINCRBY', KEYS[1], 'used_free', 1)
  return 1
end
local paid = tonumber(redis.call('HGET', KEYS[1], 'paid') or '0')
if paid > 0 then
  redis.call('HINCRBY', KEYS[1], 'paid', -1)
  redis.call('HINCRBY', KEYS[1], 'used_paid', 1)
  return 2
end
return 0
`)

// incrScript adds ARGV[3] to field ARGV[2].
var incrScript = redis.NewScript(seed + `
return redis.call('HINCRBY', KEYS[1], ARGV[2], ARGV[3])
`)

// Redis is a Ledger backed by one hash per owner. Every operation is a
// single Lua script, so concurrent consumers never overdraw.
type Redis struct {
	client    redis.UniversalClient
	prefix    string
	freeQuota int64
}

var _ Ledger = (*Redis)(nil)

// NewRedis creates a Redis ledger. Keys are "{prefix}:quota:{ownerID}".
func NewRedis(client redis.UniversalClient, prefix string, freeQuota int64) *Redis {
	if prefix == "" {
		prefix = "studio"
	}
	return &Redis{client: client, prefix: prefix, freeQuota: freeQuota}
}

func (r *Redis) key(ownerID int64) string {
	return r.prefix + ":quota:" + strconv.FormatInt(ownerID, 10)
}

func (r *Redis) incr(ctx context.Context, ownerID int64, field string, delta int64) error {
	if err := incrScript.Run(ctx, r.client, []string{r.key(ownerID)}, r.freeQuota, field, delta).Err(); err != nil {
		return fmt.Errorf("studio/redis: quota %s: %w", field, err)
	}
	return nil
}

// TryConsume implements Ledger.
func (r *Redis) TryConsume(ctx context.Context, ownerID int64) (bool, error) {
	n, err := consumeScript.Run(ctx, r.client, []string{r.key(ownerID)}, r.freeQuota).Int()
	if err != nil {
		return false, fmt.Errorf("studio/redis: consume quota: %w", err)
	}
	return n > 0, nil
}

// Refund implements Ledger.
func (r *Redis) Refund(ctx context.Context, ownerID int64) error {
	return r.incr(ctx, ownerID, fieldFree, 1)
}

// RecordOutcome implements Ledger.
func (r *Redis) RecordOutcome(ctx context.Context, ownerID int64, outcome Outcome) error {
	field := fieldFailed
	if outcome == OutcomeSuccess {
		field = fieldSuccessful
	}
	return r.incr(ctx, ownerID, field, 1)
}

// Credit implements Ledger.
func (r *Redis) Credit(ctx context.Context, ownerID int64, n int64) error {
	if n <= 0 {
		return ErrInvalidAmount
	}
	return r.incr(ctx, ownerID, fieldPaid, n)
}

// Balance implements Ledger.
func (r *Redis) Balance(ctx context.Context, ownerID int64) (Balance, error) {
	// A zero increment seeds an untouched owner.
	if err := r.incr(ctx, ownerID, fieldFree, 0); err != nil {
		return Balance{}, err
	}
	m, err := r.client.HGetAll(ctx, r.key(ownerID)).Result()
	if err != nil {
		return Balance{}, fmt.Errorf("studio/redis: get quota: %w", err)
	}
	return Balance{
		OwnerID:    ownerID,
		Free:       parseInt(m[fieldFree]),
		Paid:       parseInt(m[fieldPaid]),
		UsedFree:   parseInt(m[fieldUsedFree]),
		UsedPaid:   parseInt(m[fieldUsedPaid]),
		Successful: parseInt(m[fieldSuccessful]),
		Failed:     parseInt(m[fieldFailed]),
	}, nil
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64) //nolint:errcheck // missing fields read as zero
	return n
}
