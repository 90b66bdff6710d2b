package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/daejeonsafe/safenet/internal/config"
	"github.com/daejeonsafe/safenet/internal/tasks"
)

// Scheduler runs the configured periodic tasks through gocron.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
}

// NewScheduler builds a scheduler over the registered task map. Task
// names in the configuration select entries from the map.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// Start registers every enabled task and begins ticking. Misconfigured
// tasks are skipped with a warning rather than failing startup.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	if s.cfg == nil || len(s.cfg.Tasks) == 0 {
		s.logger.Warn("no scheduler tasks configured")
		s.scheduler.Start()
		s.running = true
		return nil
	}

	scheduled := 0
	for name, taskCfg := range s.cfg.Tasks {
		if !taskCfg.Enabled {
			s.logger.Info("skipping disabled task", "task", name)
			continue
		}

		taskFunc, ok := s.taskMap[name]
		if !ok {
			s.logger.Warn("configured task not found in registry", "task", name)
			continue
		}
		if taskCfg.Schedule == "" {
			s.logger.Warn("task enabled with empty schedule", "task", name)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(taskCfg.Schedule, true),
			gocron.NewTask(
				func(ctx context.Context, name string) {
					start := time.Now()
					if err := taskFunc(ctx); err != nil {
						s.logger.Error("scheduled task failed", "task", name, "error", err)
					}
					s.logger.Info("scheduled task finished", "task", name, "duration", time.Since(start))
				},
				context.Background(),
				name,
			),
			gocron.WithName(name),
		)
		if err != nil {
			s.logger.Error("failed to schedule task", "task", name, "schedule", taskCfg.Schedule, "error", err)
			continue
		}

		s.logger.Info("scheduled task", "task", name, "schedule", taskCfg.Schedule)
		scheduled++
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("scheduler started", "tasks", scheduled)
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	err := s.scheduler.Shutdown()
	s.running = false
	if err != nil {
		return fmt.Errorf("scheduler shutdown failed: %w", err)
	}

	s.logger.Info("scheduler stopped")
	return nil
}
