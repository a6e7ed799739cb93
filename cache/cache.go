package cache

import (
	"context"
	"time"

	"github.com/josh-vincent/roast-me-characters-sub001/config"
)

const opTimeout = 300 * time.Millisecond

// Store is a byte cache with per-entry TTLs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Name() string
}

// New returns Redis when REDIS_ADDR is set and the server answers, otherwise an
// in-process cache. The returned error reports why Redis was skipped.
func New(ctx context.Context, cfg config.Redis) (Store, error) {
	if cfg.Addr == "" {
		return NewMemory(), nil
	}
	store, err := NewRedis(ctx, cfg)
	if err != nil {
		return NewMemory(), err
	}
	return store, nil
}

// boundedContext caps cache calls so a slow cache never stalls a request.
func boundedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), opTimeout)
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= opTimeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, opTimeout)
}
