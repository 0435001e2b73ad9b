package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"tng-backend/internal/ledger"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idem:"

// inFlight marks a key whose original operation has not completed yet.
const inFlight = "__in_flight__"

// Guard deduplicates retried operations across server instances using a
// caller-supplied key. Semantics: reject while the original is in flight
// (DUPLICATE_IDEMPOTENCY_KEY), replay the stored outcome once it has
// completed. Redis is the shared fast path; the durable
// IdempotencyRecord row written with the operation itself backstops it.
type Guard struct {
	Rdb *redis.Client
	TTL time.Duration
}

// Outcome is what a replayed key returns: the stored result of the
// original operation, success or failure alike.
type Outcome struct {
	TransferID string          `json:"transfer_id,omitempty"`
	Success    bool            `json:"success"`
	Code       ledger.Code     `json:"code,omitempty"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// Begin reserves the key. Returns (nil, nil) when the key is new and the
// caller should execute; a stored Outcome when this is a replay; or
// DUPLICATE_IDEMPOTENCY_KEY while the original is still in flight.
func (g *Guard) Begin(ctx context.Context, key string) (*Outcome, error) {
	ok, err := g.Rdb.SetNX(ctx, keyPrefix+key, inFlight, g.TTL).Result()
	if err != nil {
		return nil, ledger.Wrap(ledger.CodeInternalError, "idempotency reservation", err)
	}
	if ok {
		return nil, nil
	}

	val, err := g.Rdb.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		// Expired between SetNX and Get; treat as a concurrent duplicate
		// and let the client retry.
		return nil, ledger.E(ledger.CodeDuplicateIdempotencyKey, "operation with this key is in progress")
	}
	if err != nil {
		return nil, ledger.Wrap(ledger.CodeInternalError, "idempotency lookup", err)
	}
	if val == inFlight {
		return nil, ledger.E(ledger.CodeDuplicateIdempotencyKey, "operation with this key is in progress")
	}

	var out Outcome
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		return nil, ledger.Wrap(ledger.CodeInternalError, "decoding stored idempotency outcome", err)
	}
	return &out, nil
}

// Complete stores the terminal outcome so subsequent calls with the key
// replay it instead of re-executing side effects.
func (g *Guard) Complete(ctx context.Context, key string, out *Outcome) error {
	b, err := json.Marshal(out)
	if err != nil {
		return ledger.Wrap(ledger.CodeInternalError, "encoding idempotency outcome", err)
	}
	if err := g.Rdb.Set(ctx, keyPrefix+key, b, g.TTL).Err(); err != nil {
		return ledger.Wrap(ledger.CodeInternalError, "storing idempotency outcome", err)
	}
	return nil
}

// Abort drops the in-flight reservation after a transient failure so the
// client's retry can re-execute. Never called for terminal outcomes.
func (g *Guard) Abort(ctx context.Context, key string) {
	_ = g.Rdb.Del(ctx, keyPrefix+key).Err()
}
