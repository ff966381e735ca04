package service

import (
	"context"
	"sync"
	"time"

	dErrors "bureau/pkg/domain-errors"
)

// MandateStoreTx provides a transactional boundary for mandate writes.
// Implementations may wrap a database transaction or, in-memory, a lock.
// fn receives the transaction-scoped context and must use it for every store
// call. fn's error aborts the transaction; nothing fn wrote may remain visible.
type MandateStoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// numMandateShards spreads members over independent locks so writers for
// different members do not contend.
const numMandateShards = 64

// defaultMandateTxTimeout is the maximum duration for a mandate transaction.
const defaultMandateTxTimeout = 5 * time.Second

// ShardedTx serializes in-memory mandate writes per member. The workflow only
// writes after every check has passed, so an aborted fn leaves nothing behind.
type ShardedTx struct {
	shards  [numMandateShards]sync.Mutex
	store   Store
	timeout time.Duration
}

// NewShardedTx wraps an in-memory store with per-member write serialization.
func NewShardedTx(store Store, timeout time.Duration) *ShardedTx {
	return &ShardedTx{store: store, timeout: timeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultMandateTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx, t.store)
}

// selectShard picks a shard from the member ID in context, or defaults to shard 0.
func (t *ShardedTx) selectShard(ctx context.Context) int {
	if memberID, ok := TxMemberFromContext(ctx); ok {
		return int(uint64(memberID) % numMandateShards)
	}
	return 0
}

type txMemberKey struct{}

// WithTxMember records which member a transaction writes to, so lock-based
// transaction implementations can serialize per member.
func WithTxMember(ctx context.Context, memberID int64) context.Context {
	return context.WithValue(ctx, txMemberKey{}, memberID)
}

// TxMemberFromContext returns the member recorded by WithTxMember.
func TxMemberFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(txMemberKey{}).(int64)
	return id, ok
}
