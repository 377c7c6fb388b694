package service

import (
	"context"
	"errors"
	"fmt"

	"projo/internal/logger"
	"projo/internal/models/task"
	repo "projo/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// getOwnedTask скоупит операцию владельцем: чужая задача неотличима
// от несуществующей, оракула существования наружу нет
func getOwnedTask(ctx context.Context, r TaskRepository, ownerID, taskID uuid.UUID) (*task.Task, error) {
	t, err := r.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Info("Service: Задача не найдена", zap.String("task_id", taskID.String()))
			return nil, NewNotFound("задача", taskID.String())
		}
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	if t.OwnerID != ownerID {
		logger.Warn("Service: Попытка доступа к чужой задаче",
			zap.String("task_id", taskID.String()),
			zap.String("caller_id", ownerID.String()))
		return nil, NewNotFound("задача", taskID.String())
	}
	return t, nil
}
