package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/daejeonsafe/safenet/internal/database"
)

// newCleanupTask builds the task that purges aged audit rows and runs
// database maintenance.
func newCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "cleanup")
	ages := database.CleanupAges{
		APIRequests:     deps.Config.Cleanup.APIRequestAge,
		DriverLocations: deps.Config.Cleanup.DriverLocationAge,
		Notifications:   deps.Config.Cleanup.NotificationAge,
	}

	return func(ctx context.Context) error {
		start := time.Now()
		removed, err := deps.Store.CleanupOldData(ctx, ages)
		if err != nil {
			log.ErrorContext(ctx, "cleanup failed", "error", err, "duration", time.Since(start))
			return fmt.Errorf("cleanup failed: %w", err)
		}

		log.InfoContext(ctx, "cleanup complete", "rows_removed", removed, "duration", time.Since(start))
		return nil
	}
}
