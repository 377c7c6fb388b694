package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"projo/internal/logger"
	"projo/internal/models/task"
	repo "projo/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TimerService - операции тайм-трекинга над одной задачей.
// Идентичность вызывающего передаётся явно, никакого ambient-состояния
type TimerService struct {
	repo  TaskRepository
	cache CacheInvalidator
}

func NewTimerService(repo TaskRepository, cache CacheInvalidator) TimerService {
	return TimerService{
		repo:  repo,
		cache: cache,
	}
}

func (s *TimerService) ownedTask(ctx context.Context, ownerID, taskID uuid.UUID) (*task.Task, error) {
	return getOwnedTask(ctx, s.repo, ownerID, taskID)
}

// журнал действий best-effort: его сбой не валит операцию
func (s *TimerService) logActivity(ctx context.Context, ownerID uuid.UUID, action string) {
	if err := s.repo.CreateActivity(ctx, task.NewActivity(ownerID, action)); err != nil {
		logger.Warn("Service: Не удалось записать активность", zap.Error(err))
	}
}

func (s *TimerService) Start(ctx context.Context, ownerID, taskID uuid.UUID) error {
	t, err := s.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return err
	}

	session := task.NewSession(t.UUID, time.Now())
	if err := s.repo.CreateSession(ctx, session); err != nil {
		if errors.Is(err, repo.ErrActiveSession) {
			logger.Info("Service: Таймер уже запущен", zap.String("task_id", taskID.String()))
			return NewTimerAlreadyRunning(taskID.String())
		}
		return fmt.Errorf("запуск таймера: %w", err)
	}

	s.logActivity(ctx, ownerID, fmt.Sprintf("Запущен таймер задачи '%s'", t.Title))
	s.cache.InvalidateTask(t.UUID)

	logger.Info("Service: Таймер запущен",
		zap.String("task_id", taskID.String()),
		zap.String("session_id", session.UUID.String()))
	return nil
}

func (s *TimerService) Stop(ctx context.Context, ownerID, taskID uuid.UUID) (*task.Session, error) {
	t, err := s.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	session, err := s.repo.GetActiveSession(ctx, t.UUID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Info("Service: Активного таймера нет", zap.String("task_id", taskID.String()))
			return nil, NewNoActiveTimer(taskID.String())
		}
		return nil, fmt.Errorf("поиск активного таймера: %w", err)
	}

	endTime := time.Now()
	duration := int(endTime.Sub(session.StartTime).Seconds())
	if duration < 0 {
		// рассинхрон часов или start_time в будущем: данные кривые,
		// но длительность не может быть отрицательной
		logger.Warn("Service: Отрицательная длительность сессии, клампим в 0",
			zap.String("session_id", session.UUID.String()),
			zap.Time("start_time", session.StartTime),
			zap.Time("end_time", endTime))
		duration = 0
	}

	session.EndTime = &endTime
	session.Duration = duration

	if err := s.repo.FinishSession(ctx, session); err != nil {
		return nil, fmt.Errorf("остановка таймера: %w", err)
	}

	s.logActivity(ctx, ownerID, fmt.Sprintf("Остановлен таймер задачи '%s' (%dс)", t.Title, duration))
	s.cache.InvalidateTask(t.UUID)

	logger.Info("Service: Таймер остановлен",
		zap.String("task_id", taskID.String()),
		zap.Int("duration_sec", duration))
	return session, nil
}

func (s *TimerService) IsRunning(ctx context.Context, ownerID, taskID uuid.UUID) (bool, error) {
	t, err := s.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return false, err
	}

	_, err = s.repo.GetActiveSession(ctx, t.UUID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("поиск активного таймера: %w", err)
	}
	return true, nil
}

// полный re-query при каждом вызове, самые свежие сессии первыми
func (s *TimerService) History(ctx context.Context, ownerID, taskID uuid.UUID) ([]*task.Session, error) {
	t, err := s.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	sessions, err := s.repo.GetSessionsByTask(ctx, t.UUID)
	if err != nil {
		return nil, fmt.Errorf("получение истории: %w", err)
	}
	return sessions, nil
}

// TotalTimeSpent суммирует только завершённые сессии: активная даёт 0,
// а не частично прошедшее время. Осознанное упрощение
func (s *TimerService) TotalTimeSpent(ctx context.Context, ownerID, taskID uuid.UUID) (int64, error) {
	t, err := s.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return 0, err
	}

	total, err := s.repo.GetTotalDuration(ctx, t.UUID)
	if err != nil {
		return 0, fmt.Errorf("подсчёт времени: %w", err)
	}
	return total, nil
}

// Reset удаляет все сессии задачи, включая активную; пустой список - не ошибка
func (s *TimerService) Reset(ctx context.Context, ownerID, taskID uuid.UUID) error {
	t, err := s.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteSessionsByTask(ctx, t.UUID); err != nil {
		return fmt.Errorf("сброс таймера: %w", err)
	}

	s.logActivity(ctx, ownerID, fmt.Sprintf("Сброшен таймер задачи '%s'", t.Title))
	s.cache.InvalidateTask(t.UUID)

	logger.Info("Service: Таймер сброшен", zap.String("task_id", taskID.String()))
	return nil
}
