package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maelis/hostpilot/internal/store"
)

// Conversations idle this long get archived by the conversation_archive
// task.
const archiveAfterDays = 30

// ScheduledTaskFunc is the signature for all scheduled tasks. The context
// provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// TaskDeps contains the dependencies available to scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  store.Store
}

// RegisterAllTasks returns the registry of scheduled tasks keyed by the
// names used in the scheduler configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		"store_maintenance":    newStoreMaintenanceTask(deps),
		"conversation_archive": newConversationArchiveTask(deps),
	}
	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}

func newStoreMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "store_maintenance")

	return func(ctx context.Context) error {
		startTime := time.Now()
		if err := deps.Store.RunMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "Store maintenance failed", "error", err, "duration", time.Since(startTime))
			return fmt.Errorf("store maintenance failed: %w", err)
		}
		log.InfoContext(ctx, "Store maintenance completed", "duration", time.Since(startTime))
		return nil
	}
}

func newConversationArchiveTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "conversation_archive")

	return func(ctx context.Context) error {
		archived, err := deps.Store.ArchiveStaleConversations(ctx, archiveAfterDays)
		if err != nil {
			log.ErrorContext(ctx, "Conversation archiving failed", "error", err)
			return fmt.Errorf("conversation archiving failed: %w", err)
		}
		log.InfoContext(ctx, "Conversation archiving completed", "archived", archived)
		return nil
	}
}
