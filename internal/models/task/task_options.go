package task

import (
	"time"
)

type TaskOption func(*Task)

func WithTitle(title string) TaskOption {
	return func(task *Task) {
		task.Title = title
	}
}

func WithDescription(description string) TaskOption {
	if description == "" {
		return nil
	}
	return func(task *Task) {
		task.Description = description
	}
}

func WithStatus(status Status) TaskOption {
	if status == "" {
		return nil
	}
	return func(task *Task) {
		task.Status = status
	}
}

func WithPriority(priority Priority) TaskOption {
	if priority == "" {
		return nil
	}
	return func(task *Task) {
		task.Priority = priority
	}
}

func WithDueDate(dueDate time.Time) TaskOption {
	if dueDate.IsZero() {
		return nil
	}
	return func(task *Task) {
		task.DueDate = &dueDate
	}
}

func WithStartDate(startDate time.Time) TaskOption {
	if startDate.IsZero() {
		return nil
	}
	return func(task *Task) {
		task.StartDate = &startDate
	}
}

func WithReminderTime(reminderTime time.Time) TaskOption {
	if reminderTime.IsZero() {
		return nil
	}
	return func(task *Task) {
		task.ReminderTime = &reminderTime
	}
}
