// Package housekeep implements the prebuild housekeeper of spec.md §4.10:
// a Housekeeper that sweeps the prebuild cache exactly once, at scope
// exit, regardless of how the run ended.
package housekeep

import (
	"context"
	"time"

	"github.com/scibuild/fab/internal/ctxlog"
	"github.com/scibuild/fab/internal/prebuild"
	"github.com/scibuild/fab/internal/runtime"
)

// sweeper is the runtime.Housekeeper that sweeps Cache once per scope.
// With olderThan nil it keeps exactly what this run touched, per spec.md
// §4.10's access-tracking default; with olderThan set it deletes every
// entry older than that duration, whether or not this run touched it, and
// keeps the rest, per the same step's explicit override.
type sweeper struct {
	cache     *prebuild.Cache
	olderThan *time.Duration
}

// New returns the Housekeeper scope.UseHousekeeper registers: it reads
// Cache.Touched() as the keep set at the moment housekeeping actually
// runs, so it sees every key touched over the whole run, not just what
// existed when the housekeeper was constructed.
func New(cache *prebuild.Cache, olderThan *time.Duration) runtime.Housekeeper {
	return &sweeper{cache: cache, olderThan: olderThan}
}

func (h *sweeper) Housekeep(ctx context.Context, s *runtime.Scope) error {
	logger := ctxlog.FromContext(ctx)

	removed, err := h.cache.Sweep(h.cache.Touched(), h.olderThan)
	if err != nil {
		return err
	}
	logger.Info("housekeeping swept prebuild cache", "removed", len(removed))
	return nil
}
