package task

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	UUID        uuid.UUID  `json:"uuid" db:"uuid"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Status      Status     `json:"status" db:"status"`
	Priority    Priority   `json:"priority" db:"priority"`
	ProjectID   uuid.UUID  `json:"project_id" db:"project_id"`
	OwnerID     uuid.UUID  `json:"owner_id" db:"owner_id"`
	OwnerEmail  string     `json:"owner_email" db:"owner_email"`
	StartDate   *time.Time `json:"start_date,omitempty" db:"start_date"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`

	// поля напоминаний: sent-флаги монотонны, сбрасывает их только
	// установка нового напоминания пользователем, не планировщик
	ReminderTime         *time.Time `json:"reminder_time,omitempty" db:"reminder_time"`
	ReminderEnabled      bool       `json:"reminder_enabled" db:"reminder_enabled"`
	DeadlineReminderSent bool       `json:"deadline_reminder_sent" db:"deadline_reminder_sent"`
	CustomReminderSent   bool       `json:"custom_reminder_sent" db:"custom_reminder_sent"`
	IsCompleted          bool       `json:"is_completed" db:"is_completed"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at,omitempty"`
	Version   int        `json:"version" db:"version"`
}

type Status string
type Priority string

const StatusTodo Status = "todo"
const StatusInProgress Status = "in_progress"
const StatusDone Status = "done"
const StatusCompleted Status = "completed"
const StatusOverdue Status = "overdue"
const StatusCancelled Status = "cancelled"

const PriorityLow Priority = "low"
const PriorityMedium Priority = "medium"
const PriorityHigh Priority = "high"

// терминальные статусы планировщик не трогает
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusCompleted || s == StatusCancelled
}

func New(title, description string, projectID, ownerID uuid.UUID, ownerEmail string, opts ...TaskOption) *Task {
	t := &Task{
		UUID:            uuid.New(),
		Title:           title,
		Description:     description,
		Status:          StatusTodo,
		Priority:        PriorityMedium,
		ProjectID:       projectID,
		OwnerID:         ownerID,
		OwnerEmail:      ownerEmail,
		ReminderEnabled: true,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}
