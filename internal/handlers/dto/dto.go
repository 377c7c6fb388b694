package dto

import (
	"time"

	"projo/internal/models/task"

	"github.com/google/uuid"
)

type SetReminderRequest struct {
	ReminderTime time.Time `json:"reminder_time"`
}

type SessionResponse struct {
	UUID      uuid.UUID  `json:"id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Duration  int        `json:"duration"`
	IsActive  bool       `json:"is_active"`
}

type TimerStatusResponse struct {
	Running      bool  `json:"running"`
	TotalSeconds int64 `json:"total_seconds"`
}

func FromSession(s *task.Session) SessionResponse {
	return SessionResponse{
		UUID:      s.UUID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Duration:  s.Duration,
		IsActive:  s.IsActive(),
	}
}

func FromSessionList(sessions []*task.Session) []SessionResponse {
	result := make([]SessionResponse, len(sessions))
	for i, s := range sessions {
		result[i] = FromSession(s)
	}
	return result
}
