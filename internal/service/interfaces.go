package service

import (
	"context"
	"time"

	"projo/internal/models/task"

	"github.com/google/uuid"
)

type TaskRepository interface {
	HealthCheck(ctx context.Context) error

	Create(ctx context.Context, t *task.Task) error
	Update(ctx context.Context, t *task.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// CreateSession атомарна относительно конкурентных start той же
	// задачи: возвращает repository.ErrActiveSession, если активная
	// сессия уже есть
	CreateSession(ctx context.Context, session *task.Session) error
	GetActiveSession(ctx context.Context, taskID uuid.UUID) (*task.Session, error)
	FinishSession(ctx context.Context, session *task.Session) error
	GetSessionsByTask(ctx context.Context, taskID uuid.UUID) ([]*task.Session, error)
	GetTotalDuration(ctx context.Context, taskID uuid.UUID) (int64, error)
	DeleteSessionsByTask(ctx context.Context, taskID uuid.UUID) error

	// выборки под три свипа планировщика
	GetTasksForCustomReminder(ctx context.Context, now time.Time, limit int) ([]*task.Task, error)
	GetTasksForDeadlineReminder(ctx context.Context, today, tomorrow time.Time, limit int) ([]*task.Task, error)
	GetOverdueTasks(ctx context.Context, today time.Time, limit int) ([]*task.Task, error)

	// условные записи: true = запись выиграна этим вызовом
	MarkCustomReminderSent(ctx context.Context, taskID uuid.UUID) (bool, error)
	MarkDeadlineReminderSent(ctx context.Context, taskID uuid.UUID) (bool, error)
	MarkOverdue(ctx context.Context, taskID uuid.UUID) (bool, error)

	CreateActivity(ctx context.Context, activity *task.Activity) error
}

// Notifier - внешний транспорт уведомлений; ошибка отправки - обычное
// возвращаемое значение, повтор на следующем свипе
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// CacheInvalidator дёргается после каждой успешной мутации, чтобы
// производные вьюхи (kanban, дашборды) не отдавались протухшими
type CacheInvalidator interface {
	InvalidateTask(taskID uuid.UUID)
}
