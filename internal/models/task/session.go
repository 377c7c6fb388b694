package task

import (
	"time"

	"github.com/google/uuid"
)

// Session - один интервал работы над задачей.
// EndTime == nil означает активный таймер; Duration ставится один раз
// при остановке и больше не меняется.
type Session struct {
	UUID      uuid.UUID  `json:"uuid" db:"uuid"`
	TaskID    uuid.UUID  `json:"task_id" db:"task_id"`
	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" db:"end_time"`
	Duration  int        `json:"duration" db:"duration"` // секунды
}

func NewSession(taskID uuid.UUID, startTime time.Time) *Session {
	return &Session{
		UUID:      uuid.New(),
		TaskID:    taskID,
		StartTime: startTime,
	}
}

func (s *Session) IsActive() bool {
	return s.EndTime == nil
}
