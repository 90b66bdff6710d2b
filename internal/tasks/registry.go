package tasks

import "context"

// ScheduledTaskFunc is the signature every scheduled task implements.
// The provided context comes from the scheduler and must be respected
// for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks builds the task registry. The map keys match the task
// names used in the scheduler configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		"cleanup":   newCleanupTask(deps),
		"analytics": newAnalyticsTask(deps),
	}

	deps.Logger.Info("initialized scheduled tasks", "count", len(tasks))
	return tasks
}
