// Package grantsweep implements a periodic background worker that
// reconciles the permission grant lifecycle: it walks stored grants,
// evicts those past their expiry, and skips any already covered by a
// revocation record. A single ticking sweeper, since a grant sweep is
// a serial store scan rather than a dispatchable work queue.
package grantsweep

import (
	"context"
	"time"

	"github.com/dwn-project/dwn-core/logging"
	"github.com/dwn-project/dwn-core/message"
	"github.com/dwn-project/dwn-core/store"
	"github.com/dwn-project/dwn-core/timestamp"
)

var logger = logging.Logger("grantsweep")

// Result summarizes one sweep pass, for tests and operational logging.
type Result struct {
	Scanned         int
	Expired         int
	AlreadyRevoked  int
	EvictionErrors  int
}

// Sweeper periodically scans a tenant's stored permission grants and
// evicts those that have passed their dateExpires.
type Sweeper struct {
	store    store.Store
	tenant   string
	interval time.Duration
}

// New builds a Sweeper for tenant, ticking every interval.
func New(st store.Store, tenant string, interval time.Duration) *Sweeper {
	return &Sweeper{store: st, tenant: tenant, interval: interval}
}

// Run ticks until ctx is done or stopCh fires, sweeping immediately on
// start and then every interval.
func (s *Sweeper) Run(ctx context.Context, stopCh <-chan struct{}) {
	logger.Info("starting grant sweep", "tenant", s.tenant, "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("grant sweep stopping: context cancelled")

			return
		case <-stopCh:
			logger.Info("grant sweep stopping: stop signal received")

			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	result, err := Sweep(ctx, s.store, s.tenant)
	if err != nil {
		logger.Error("grant sweep failed", "error", err)

		return
	}

	logger.Info("grant sweep complete",
		"scanned", result.Scanned,
		"expired", result.Expired,
		"already_revoked", result.AlreadyRevoked,
		"eviction_errors", result.EvictionErrors)
}

// Sweep runs one sweep pass over tenant's stored grants: every
// Permissions.Grant message past its dateExpires is evicted from the
// store, unless a revocation record already exists for it (in which
// case the sweep only counts it, leaving eviction to whatever handled
// the revocation).
func Sweep(ctx context.Context, st store.Store, tenant string) (Result, error) {
	var result Result

	grants, err := st.Query(ctx, tenant, []store.Filter{{
		Interface: message.InterfacePermissions,
		Method:    message.MethodGrant,
	}})
	if err != nil {
		return result, err
	}

	result.Scanned = len(grants)
	now := timestamp.Now()

	for _, grantMsg := range grants {
		if timestamp.Compare(now, grantMsg.Descriptor.DateExpires) < 0 {
			continue
		}

		result.Expired++

		grantCID, err := grantMsg.CID()
		if err != nil {
			result.EvictionErrors++

			continue
		}

		revocations, err := st.Query(ctx, tenant, []store.Filter{{
			Interface: message.InterfacePermissions,
			Method:    message.MethodRevoke,
			ParentID:  grantCID,
		}})
		if err != nil {
			result.EvictionErrors++

			continue
		}

		if len(revocations) > 0 {
			result.AlreadyRevoked++

			continue
		}

		if err := st.Delete(ctx, tenant, grantCID); err != nil {
			result.EvictionErrors++
		}
	}

	return result, nil
}
