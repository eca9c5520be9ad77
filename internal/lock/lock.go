package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	customError "github.com/kobofin/loan-engine/pkg/errors"
)

// LoanLocker serializes mutations per loan: exactly one allocation, reversal
// or recalculation may be in flight for a loan at a time. Release must be
// called once when the operation commits or fails.
type LoanLocker interface {
	Acquire(ctx context.Context, loanID uuid.UUID) (release func(), err error)
}

// releaseScript deletes the lock key only when it still holds our token, so
// a lock that expired and was re-acquired elsewhere is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker takes per-loan locks in Redis with SET NX and a TTL, so a
// crashed process cannot hold a loan forever.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, loanID uuid.UUID) (func(), error) {
	key := fmt.Sprintf("loan-lock:%s", loanID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, customError.WrapCacheError(err)
	}
	if !ok {
		return nil, customError.WrapLoanLocked(loanID.String())
	}

	release := func() {
		// Best effort; the TTL reclaims the lock if this fails.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, nil
}

// LocalLocker serializes per-loan mutations within a single process. Used in
// tests and single-node deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[uuid.UUID]bool)}
}

func (l *LocalLocker) Acquire(_ context.Context, loanID uuid.UUID) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[loanID] {
		return nil, customError.WrapLoanLocked(loanID.String())
	}
	l.held[loanID] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, loanID)
	}, nil
}
