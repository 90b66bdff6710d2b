package tasks

import (
	"context"
	"fmt"

	"github.com/daejeonsafe/safenet/internal/database"
	"github.com/daejeonsafe/safenet/internal/realtime"
)

// newAnalyticsTask builds the task that snapshots aggregate statistics
// and mirrors them onto the admin realtime channel.
func newAnalyticsTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "analytics")

	return func(ctx context.Context) error {
		stats, err := deps.Store.Statistics(ctx)
		if err != nil {
			log.ErrorContext(ctx, "statistics query failed", "error", err)
			return fmt.Errorf("statistics query failed: %w", err)
		}

		snapshot := &database.AnalyticsSnapshot{
			TotalActive:   stats.TotalActive,
			HighPriority:  stats.HighPriority,
			ActiveDevices: stats.ActiveDevices,
			TodayReports:  stats.TodayReports,
		}
		if err := deps.Store.SaveAnalyticsSnapshot(ctx, snapshot); err != nil {
			log.ErrorContext(ctx, "failed to save analytics snapshot", "error", err)
			return fmt.Errorf("failed to save analytics snapshot: %w", err)
		}

		if deps.Registry != nil {
			deps.Registry.Broadcast(realtime.AnalyticsUpdate(stats), realtime.ChannelAdmin)
		}

		log.InfoContext(ctx, "analytics snapshot saved",
			"total_active", stats.TotalActive,
			"high_priority", stats.HighPriority)
		return nil
	}
}
