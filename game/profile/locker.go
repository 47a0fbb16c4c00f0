package profile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/raidsim/server/cache"
	"github.com/kasuganosora/raidsim/server/config"
	"go.uber.org/zap"
)

// ErrLockTimeout is returned when the profile lock cannot be acquired before
// the context ends.
var ErrLockTimeout = errors.New("profile: lock timeout")

// Locker grants exclusive access to one profile at a time. Within a process
// it uses a keyed semaphore; with a distributed cache it additionally holds
// lock:profile:<id> so other nodes are excluded too.
type Locker struct {
	local       sync.Map // id -> chan struct{}
	cache       cache.Cache
	distributed bool
	ttl         time.Duration
	retry       time.Duration
	logger      *zap.Logger
}

// NewLocker creates a Locker. c may be nil when only in-process locking is needed.
func NewLocker(c cache.Cache, cfg config.ProfileConfig, logger *zap.Logger) *Locker {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	retry := cfg.LockRetry
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	return &Locker{
		cache:       c,
		distributed: cfg.Distributed && c != nil,
		ttl:         ttl,
		retry:       retry,
		logger:      logger,
	}
}

func (l *Locker) sem(id string) chan struct{} {
	v, _ := l.local.LoadOrStore(id, make(chan struct{}, 1))
	return v.(chan struct{})
}

// Lock blocks until the profile is free or ctx ends. The returned function
// releases the lock and must be called exactly once.
func (l *Locker) Lock(ctx context.Context, id string) (func(), error) {
	sem := l.sem(id)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ErrLockTimeout
	}
	if !l.distributed {
		return func() { <-sem }, nil
	}

	key := "lock:profile:" + id
	token := uuid.NewString()
	for {
		ok, err := l.cache.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			<-sem
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-time.After(l.retry):
		case <-ctx.Done():
			<-sem
			return nil, ErrLockTimeout
		}
	}
	return func() {
		if _, err := l.cache.DelIfValue(context.Background(), key, token); err != nil {
			l.logger.Warn("release profile lock", zap.String("profile_id", id), zap.Error(err))
		}
		<-sem
	}, nil
}
