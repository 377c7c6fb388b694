package handlers

import (
	"context"
	"time"

	"projo/internal/models/task"
	"projo/internal/service"

	"github.com/google/uuid"
)

type TimerService interface {
	Start(ctx context.Context, ownerID, taskID uuid.UUID) error
	Stop(ctx context.Context, ownerID, taskID uuid.UUID) (*task.Session, error)
	IsRunning(ctx context.Context, ownerID, taskID uuid.UUID) (bool, error)
	History(ctx context.Context, ownerID, taskID uuid.UUID) ([]*task.Session, error)
	TotalTimeSpent(ctx context.Context, ownerID, taskID uuid.UUID) (int64, error)
	Reset(ctx context.Context, ownerID, taskID uuid.UUID) error
}

type ReminderService interface {
	SetCustomReminder(ctx context.Context, ownerID, taskID uuid.UUID, reminderTime time.Time) error
	DisableReminders(ctx context.Context, ownerID, taskID uuid.UUID) error
	RunCustomReminderSweep(ctx context.Context) (service.SweepStats, error)
	RunDeadlineReminderSweep(ctx context.Context) (service.SweepStats, error)
	RunOverdueSweep(ctx context.Context) (service.SweepStats, error)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
