package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// FundLockKey builds redis keys for petty cash fund critical sections.
func FundLockKey(fundID int64) string {
	return fmt.Sprintf("pettycash:fund:%d:lock", fundID)
}

// ErrLockHeld indicates another disbursement currently owns the fund lock.
var ErrLockHeld = errors.New("fund lock held by another request")

// FundMutex serialises fund balance mutation across processes.
type FundMutex struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFundMutex constructs a FundMutex. TTL bounds the lock lifetime if a
// holder crashes before releasing.
func NewFundMutex(client *redis.Client, ttl time.Duration) *FundMutex {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &FundMutex{client: client, ttl: ttl}
}

// Acquire takes the per-fund lock and returns a release function. The token
// guards against releasing a lock a slow holder already lost to TTL expiry.
func (m *FundMutex) Acquire(ctx context.Context, fundID int64) (func(), error) {
	if m == nil || m.client == nil {
		return func() {}, nil
	}
	key := FundLockKey(fundID)
	token := uuid.NewString()
	ok, err := m.client.SetNX(ctx, key, token, m.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func() {
		const script = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`
		_ = m.client.Eval(context.Background(), script, []string{key}, token).Err()
	}
	return release, nil
}
