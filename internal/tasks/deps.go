// Package tasks implements the periodic maintenance jobs driven by the
// scheduler: audit-data cleanup and analytics snapshotting.
package tasks

import (
	"log/slog"

	"github.com/daejeonsafe/safenet/internal/config"
	"github.com/daejeonsafe/safenet/internal/database"
	"github.com/daejeonsafe/safenet/internal/realtime"
)

// TaskDeps contains the dependencies shared by all scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Registry *realtime.Registry
	Config   *config.Config
}
