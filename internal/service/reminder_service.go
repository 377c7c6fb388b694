package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"projo/internal/logger"
	"projo/internal/models/task"
	repo "projo/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SweepStats - итог одного прохода свипа, для логов и ручных триггеров
type SweepStats struct {
	Checked int `json:"checked"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"` // условную запись выиграл другой проход
}

// ReminderService - три независимых свипа планировщика плюс управление
// напоминаниями. Каждый свип - детерминированная функция от текущего
// времени и содержимого хранилища; сбой одной задачи не трогает
// остальные, никакая транзакция не охватывает больше одной задачи
type ReminderService struct {
	repo      TaskRepository
	notifier  Notifier
	cache     CacheInvalidator
	batchSize int
}

func NewReminderService(repo TaskRepository, notifier Notifier, cache CacheInvalidator, batchSize int) ReminderService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return ReminderService{
		repo:      repo,
		notifier:  notifier,
		cache:     cache,
		batchSize: batchSize,
	}
}

// RunCustomReminderSweep - задачи, у которых наступило кастомное
// напоминание. Порядок на задачу: уведомить, при успехе - условная
// запись флага (WHERE custom_reminder_sent = FALSE), чтобы из
// перекрывающихся проходов выиграл ровно один. При сбое отправки флаг
// не трогаем - задача переизберётся следующим свипом
func (s *ReminderService) RunCustomReminderSweep(ctx context.Context) (SweepStats, error) {
	start := time.Now()
	logger.Info("Scheduler: Проверка кастомных напоминаний")

	stats := SweepStats{}
	tasks, err := s.repo.GetTasksForCustomReminder(ctx, time.Now(), s.batchSize)
	if err != nil {
		logger.Error("Scheduler: Ошибка выборки задач для напоминаний", err)
		return stats, fmt.Errorf("выборка задач для напоминаний: %w", err)
	}
	stats.Checked = len(tasks)

	for _, t := range tasks {
		subject := "Task Reminder: " + t.Title
		if err := s.notifier.Send(ctx, t.OwnerEmail, subject, customReminderBody(t)); err != nil {
			logger.Warn("Scheduler: Не удалось отправить кастомное напоминание",
				zap.String("task_id", t.UUID.String()),
				zap.String("recipient", t.OwnerEmail),
				zap.Error(err))
			stats.Failed++
			continue
		}

		won, err := s.repo.MarkCustomReminderSent(ctx, t.UUID)
		if err != nil {
			logger.Warn("Scheduler: Не удалось записать флаг напоминания",
				zap.String("task_id", t.UUID.String()),
				zap.Error(err))
			stats.Failed++
			continue
		}
		if !won {
			stats.Skipped++
			continue
		}

		s.cache.InvalidateTask(t.UUID)
		stats.Sent++
		logger.Info("Scheduler: Кастомное напоминание отправлено",
			zap.String("task_id", t.UUID.String()),
			zap.String("recipient", t.OwnerEmail))
	}

	logger.Info("Scheduler: Свип кастомных напоминаний завершён",
		zap.Duration("ms", time.Since(start)),
		zap.Int("checked", stats.Checked),
		zap.Int("sent", stats.Sent),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// RunDeadlineReminderSweep - задачи с дедлайном сегодня или завтра;
// классификация влияет только на текст письма
func (s *ReminderService) RunDeadlineReminderSweep(ctx context.Context) (SweepStats, error) {
	start := time.Now()
	logger.Info("Scheduler: Проверка дедлайнов")

	stats := SweepStats{}
	today := time.Now()
	tomorrow := today.AddDate(0, 0, 1)

	tasks, err := s.repo.GetTasksForDeadlineReminder(ctx, today, tomorrow, s.batchSize)
	if err != nil {
		logger.Error("Scheduler: Ошибка выборки задач с дедлайном", err)
		return stats, fmt.Errorf("выборка задач с дедлайном: %w", err)
	}
	stats.Checked = len(tasks)

	for _, t := range tasks {
		timeFrame := "TOMORROW"
		if t.DueDate != nil && sameDate(*t.DueDate, today) {
			timeFrame = "TODAY"
		}

		subject := fmt.Sprintf("Task Due %s: %s", timeFrame, t.Title)
		if err := s.notifier.Send(ctx, t.OwnerEmail, subject, deadlineReminderBody(t, timeFrame)); err != nil {
			logger.Warn("Scheduler: Не удалось отправить дедлайн-напоминание",
				zap.String("task_id", t.UUID.String()),
				zap.String("recipient", t.OwnerEmail),
				zap.Error(err))
			stats.Failed++
			continue
		}

		won, err := s.repo.MarkDeadlineReminderSent(ctx, t.UUID)
		if err != nil {
			logger.Warn("Scheduler: Не удалось записать флаг дедлайна",
				zap.String("task_id", t.UUID.String()),
				zap.Error(err))
			stats.Failed++
			continue
		}
		if !won {
			stats.Skipped++
			continue
		}

		s.cache.InvalidateTask(t.UUID)
		stats.Sent++
		logger.Info("Scheduler: Дедлайн-напоминание отправлено",
			zap.String("task_id", t.UUID.String()),
			zap.String("due", timeFrame))
	}

	logger.Info("Scheduler: Свип дедлайнов завершён",
		zap.Duration("ms", time.Since(start)),
		zap.Int("checked", stats.Checked),
		zap.Int("sent", stats.Sent),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// RunOverdueSweep переводит просроченные задачи в overdue. Сначала
// условный переход статуса, потом best-effort уведомление: статус
// авторитетен и при сбое отправки не откатывается
func (s *ReminderService) RunOverdueSweep(ctx context.Context) (SweepStats, error) {
	start := time.Now()
	logger.Info("Scheduler: Проверка просроченных задач")

	stats := SweepStats{}
	tasks, err := s.repo.GetOverdueTasks(ctx, time.Now(), s.batchSize)
	if err != nil {
		logger.Error("Scheduler: Ошибка выборки просроченных задач", err)
		return stats, fmt.Errorf("выборка просроченных задач: %w", err)
	}
	stats.Checked = len(tasks)

	for _, t := range tasks {
		won, err := s.repo.MarkOverdue(ctx, t.UUID)
		if err != nil {
			logger.Warn("Scheduler: Не удалось отметить просрочку",
				zap.String("task_id", t.UUID.String()),
				zap.Error(err))
			stats.Failed++
			continue
		}
		if !won {
			// терминальный статус или другой проход успел раньше
			stats.Skipped++
			continue
		}

		s.cache.InvalidateTask(t.UUID)
		stats.Sent++
		logger.Info("Scheduler: Задача помечена просроченной",
			zap.String("task_id", t.UUID.String()),
			zap.String("title", t.Title))

		subject := "OVERDUE Task: " + t.Title
		if err := s.notifier.Send(ctx, t.OwnerEmail, subject, overdueBody(t)); err != nil {
			logger.Warn("Scheduler: Не удалось отправить уведомление о просрочке",
				zap.String("task_id", t.UUID.String()),
				zap.String("recipient", t.OwnerEmail),
				zap.Error(err))
		}
	}

	logger.Info("Scheduler: Свип просрочек завершён",
		zap.Duration("ms", time.Since(start)),
		zap.Int("checked", stats.Checked),
		zap.Int("overdue", stats.Sent),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// SetCustomReminder - единственный легальный сброс sent-флага
func (s *ReminderService) SetCustomReminder(ctx context.Context, ownerID, taskID uuid.UUID, reminderTime time.Time) error {
	if reminderTime.IsZero() {
		return NewValidationError("reminder_time", "время напоминания должно быть задано")
	}

	t, err := getOwnedTask(ctx, s.repo, ownerID, taskID)
	if err != nil {
		return err
	}

	t.ReminderTime = &reminderTime
	t.CustomReminderSent = false
	t.ReminderEnabled = true

	if err := s.repo.Update(ctx, t); err != nil {
		if errors.Is(err, repo.ErrVersionConflict) {
			return NewBusinessError(CodeVersionConflict, "задача была изменена параллельно, повторите запрос")
		}
		return fmt.Errorf("установка напоминания: %w", err)
	}

	s.logActivity(ctx, ownerID, fmt.Sprintf("Установлено напоминание для задачи '%s'", t.Title))
	s.cache.InvalidateTask(t.UUID)

	logger.Info("Service: Напоминание установлено",
		zap.String("task_id", taskID.String()),
		zap.Time("reminder_time", reminderTime))
	return nil
}

// DisableReminders выключает напоминания, sent-флаги не трогает
func (s *ReminderService) DisableReminders(ctx context.Context, ownerID, taskID uuid.UUID) error {
	t, err := getOwnedTask(ctx, s.repo, ownerID, taskID)
	if err != nil {
		return err
	}

	t.ReminderEnabled = false

	if err := s.repo.Update(ctx, t); err != nil {
		if errors.Is(err, repo.ErrVersionConflict) {
			return NewBusinessError(CodeVersionConflict, "задача была изменена параллельно, повторите запрос")
		}
		return fmt.Errorf("отключение напоминаний: %w", err)
	}

	s.logActivity(ctx, ownerID, fmt.Sprintf("Отключены напоминания для задачи '%s'", t.Title))
	s.cache.InvalidateTask(t.UUID)

	logger.Info("Service: Напоминания отключены", zap.String("task_id", taskID.String()))
	return nil
}

func (s *ReminderService) logActivity(ctx context.Context, ownerID uuid.UUID, action string) {
	if err := s.repo.CreateActivity(ctx, task.NewActivity(ownerID, action)); err != nil {
		logger.Warn("Service: Не удалось записать активность", zap.Error(err))
	}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// тексты писем повторяют формат оригинальных уведомлений Projo

func customReminderBody(t *task.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\nThis is a friendly reminder about your task:\n\n")
	fmt.Fprintf(&b, "Task: %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", t.Description)
	}
	if t.DueDate != nil {
		fmt.Fprintf(&b, "Due Date: %s\n", t.DueDate.Format("Jan 02, 2006"))
	}
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	fmt.Fprintf(&b, "Status: %s\n\n", t.Status)
	b.WriteString("Don't forget to work on this task!\n\nBest regards,\nProjo Team")
	return b.String()
}

func deadlineReminderBody(t *task.Task, timeFrame string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\nYour task is due %s!\n\n", strings.ToLower(timeFrame))
	fmt.Fprintf(&b, "Task: %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", t.Description)
	}
	if t.DueDate != nil {
		fmt.Fprintf(&b, "Due Date: %s\n", t.DueDate.Format("Jan 02, 2006"))
	}
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	fmt.Fprintf(&b, "Status: %s\n\n", t.Status)
	if timeFrame == "TODAY" {
		b.WriteString("This task is due today! Please complete it as soon as possible.\n\n")
	} else {
		b.WriteString("This task is due tomorrow! Please plan to complete it.\n\n")
	}
	b.WriteString("Best regards,\nProjo Team")
	return b.String()
}

func overdueBody(t *task.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\nYour task is now OVERDUE!\n\n")
	fmt.Fprintf(&b, "Task: %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", t.Description)
	}
	if t.DueDate != nil {
		fmt.Fprintf(&b, "Due Date: %s\n", t.DueDate.Format("Jan 02, 2006"))
	}
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	b.WriteString("Status: OVERDUE\n\n")
	b.WriteString("This task is past its deadline. Please complete it immediately or update its status.\n\n")
	b.WriteString("Best regards,\nProjo Team")
	return b.String()
}
