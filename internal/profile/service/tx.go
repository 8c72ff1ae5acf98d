package service

import (
	"context"
	"sync"
	"time"

	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
)

// StoreTx serializes operations on one account and scopes their store
// access. Implementations may wrap a database transaction or, in-memory, a
// lock per account shard. fn must use the store it is handed.
type StoreTx interface {
	RunInTx(ctx context.Context, account id.AccountID, fn func(ctx context.Context, store Store) error) error
}

// numAccountShards spreads account locks so unrelated accounts rarely contend.
const numAccountShards = 128

// DefaultTxTimeout bounds one registry transaction when the caller set no deadline.
const DefaultTxTimeout = 5 * time.Second

// ShardedTx serializes per account with a fixed array of mutexes selected by
// a hash of the account id. It suits stores without transactions of their
// own (memory, redis).
type ShardedTx struct {
	shards  [numAccountShards]sync.Mutex
	store   Store
	timeout time.Duration
}

// NewShardedTx wraps store. A zero timeout means DefaultTxTimeout.
func NewShardedTx(store Store, timeout time.Duration) *ShardedTx {
	return &ShardedTx{store: store, timeout: timeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, account id.AccountID, fn func(ctx context.Context, store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := shardFor(account)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx, t.store)
}

func shardFor(account id.AccountID) int {
	return int(hashFNV1a(account.String()) % numAccountShards)
}

// hashFNV1a is 32-bit FNV-1a.
func hashFNV1a(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
