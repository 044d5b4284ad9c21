package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PolyEdge/pkg/cache"
	applogger "PolyEdge/pkg/logger"

	"github.com/google/uuid"
)

var (
	// ErrLedgerOwned is returned when another engine instance holds the ledger lease.
	ErrLedgerOwned = errors.New("ledger is owned by another instance")
	// ErrLeaseLost is returned when the lease expired and was not renewed in time.
	ErrLeaseLost = errors.New("ledger lease lost")
)

// lease keeps a single writer per ledger state file across processes sharing a cache.
// It only spans processes when the cache is Redis; the in-memory cache guards one process.
type lease struct {
	c     cache.Service
	key   string
	owner string
	ttl   time.Duration
	l     *applogger.Logger
}

func newLease(c cache.Service, statePath string, ttl time.Duration, l *applogger.Logger) *lease {
	return &lease{
		c:     c,
		key:   cache.Key("ledger", "owner", statePath),
		owner: uuid.NewString(),
		ttl:   ttl,
		l:     l,
	}
}

func (ls *lease) acquire(ctx context.Context) error {
	ok, err := ls.c.TryLock(ctx, ls.key, ls.owner, ls.ttl)
	if err != nil {
		return fmt.Errorf("acquire ledger lease: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLedgerOwned, ls.key)
	}
	return nil
}

// renew extends the lease only while this process still owns it.
func (ls *lease) renew(ctx context.Context) error {
	ok, err := ls.c.Refresh(ctx, ls.key, ls.owner, ls.ttl)
	if err != nil {
		return fmt.Errorf("renew ledger lease: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLeaseLost, ls.key)
	}
	return nil
}

// keepAlive renews the lease every ttl/3 until ctx is done. If the lease is
// found taken or expired, onLost is called once and renewal stops.
func (ls *lease) keepAlive(ctx context.Context, onLost func()) {
	ticker := time.NewTicker(ls.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := ls.renew(ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrLeaseLost):
				ls.l.Error("ledger lease lost, stopping", applogger.String("key", ls.key))
				onLost()
				return
			case ctx.Err() == nil:
				ls.l.Warn("ledger lease renewal failed", applogger.Error(err))
			}
		}
	}
}

func (ls *lease) release(ctx context.Context) {
	ok, err := ls.c.Unlock(ctx, ls.key, ls.owner)
	if err != nil {
		ls.l.Warn("ledger lease release failed", applogger.Error(err))
		return
	}
	if !ok {
		ls.l.Warn("ledger lease was not held at release", applogger.String("key", ls.key))
	}
}
