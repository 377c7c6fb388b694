package inmemory_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"projo/internal/logger"
	"projo/internal/models/task"
	"projo/internal/repository"
	"projo/internal/repository/task/inmemory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Init(true); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTask(opts ...task.TaskOption) *task.Task {
	return task.New("Test Task", "Test Description", uuid.New(), uuid.New(), "owner@projo.local", opts...)
}

// TestTaskStorage_New тестирует создание хранилища
func TestTaskStorage_New(t *testing.T) {
	storage := inmemory.NewTaskStorage()
	assert.NotNil(t, storage)
}

// TestTaskStorage_HealthCheck тестирует проверку здоровья
func TestTaskStorage_HealthCheck(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()

	err := storage.HealthCheck(ctx)
	assert.NoError(t, err)
}

// TestTaskStorage_Create тестирует создание задачи
func TestTaskStorage_Create(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()

	taskToCreate := newTask()
	err := storage.Create(ctx, taskToCreate)
	require.NoError(t, err)

	// Проверяем, что поля заполнены
	assert.False(t, taskToCreate.CreatedAt.IsZero())
	assert.Equal(t, task.StatusTodo, taskToCreate.Status)

	// Проверяем, что задача сохранена
	retrieved, err := storage.GetByID(ctx, taskToCreate.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Test Task", retrieved.Title)
}

// TestTaskStorage_GetByID тестирует получение задачи по ID
func TestTaskStorage_GetByID(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()

	t.Run("not found", func(t *testing.T) {
		_, err := storage.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("returns copy", func(t *testing.T) {
		created := newTask()
		require.NoError(t, storage.Create(ctx, created))

		first, err := storage.GetByID(ctx, created.UUID)
		require.NoError(t, err)

		// мутация копии не должна протечь в хранилище
		first.Title = "Mutated"

		second, err := storage.GetByID(ctx, created.UUID)
		require.NoError(t, err)
		assert.Equal(t, "Test Task", second.Title)
	})
}

// TestTaskStorage_Update тестирует оптимистичную блокировку
func TestTaskStorage_Update(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()

	created := newTask()
	require.NoError(t, storage.Create(ctx, created))

	t.Run("success - version incremented", func(t *testing.T) {
		toUpdate, err := storage.GetByID(ctx, created.UUID)
		require.NoError(t, err)

		toUpdate.Title = "Updated"
		require.NoError(t, storage.Update(ctx, toUpdate))

		updated, err := storage.GetByID(ctx, created.UUID)
		require.NoError(t, err)
		assert.Equal(t, "Updated", updated.Title)
		assert.Equal(t, 1, updated.Version)
		assert.NotNil(t, updated.UpdatedAt)
	})

	t.Run("stale version rejected", func(t *testing.T) {
		stale, err := storage.GetByID(ctx, created.UUID)
		require.NoError(t, err)
		stale.Version-- // имитируем чтение до чужого апдейта

		err = storage.Update(ctx, stale)
		assert.ErrorIs(t, err, repository.ErrVersionConflict)
	})

	t.Run("unknown task", func(t *testing.T) {
		err := storage.Update(ctx, newTask())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

// TestTaskStorage_Delete тестирует каскадное удаление сессий
func TestTaskStorage_Delete(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()

	created := newTask()
	require.NoError(t, storage.Create(ctx, created))
	require.NoError(t, storage.CreateSession(ctx, task.NewSession(created.UUID, time.Now())))

	require.NoError(t, storage.Delete(ctx, created.UUID))

	_, err := storage.GetByID(ctx, created.UUID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	sessions, err := storage.GetSessionsByTask(ctx, created.UUID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	assert.ErrorIs(t, storage.Delete(ctx, created.UUID), repository.ErrNotFound)
}

// TestTaskStorage_CreateSession тестирует эксклюзивность активной сессии
func TestTaskStorage_CreateSession(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()

	created := newTask()
	require.NoError(t, storage.Create(ctx, created))

	t.Run("unknown task", func(t *testing.T) {
		err := storage.CreateSession(ctx, task.NewSession(uuid.New(), time.Now()))
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("second active session rejected", func(t *testing.T) {
		require.NoError(t, storage.CreateSession(ctx, task.NewSession(created.UUID, time.Now())))

		err := storage.CreateSession(ctx, task.NewSession(created.UUID, time.Now()))
		assert.ErrorIs(t, err, repository.ErrActiveSession)
	})

	t.Run("allowed again after finish", func(t *testing.T) {
		active, err := storage.GetActiveSession(ctx, created.UUID)
		require.NoError(t, err)

		end := time.Now()
		active.EndTime = &end
		active.Duration = 1
		require.NoError(t, storage.FinishSession(ctx, active))

		assert.NoError(t, storage.CreateSession(ctx, task.NewSession(created.UUID, time.Now())))
	})
}

// TestTaskStorage_CreateSession_Concurrent: при параллельных стартах
// выигрывает ровно один, остальные получают ErrActiveSession
func TestTaskStorage_CreateSession_Concurrent(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()

	created := newTask()
	require.NoError(t, storage.Create(ctx, created))

	const workers = 50
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- storage.CreateSession(ctx, task.NewSession(created.UUID, time.Now()))
		}()
	}
	wg.Wait()
	close(results)

	succeeded, conflicted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, repository.ErrActiveSession):
			conflicted++
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicted)
}

// TestTaskStorage_FinishSession тестирует завершение сессии
func TestTaskStorage_FinishSession(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()

	created := newTask()
	require.NoError(t, storage.Create(ctx, created))

	session := task.NewSession(created.UUID, time.Now().Add(-10*time.Second))
	require.NoError(t, storage.CreateSession(ctx, session))

	end := time.Now()
	session.EndTime = &end
	session.Duration = 10

	require.NoError(t, storage.FinishSession(ctx, session))

	_, err := storage.GetActiveSession(ctx, created.UUID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// повторное завершение той же сессии
	err = storage.FinishSession(ctx, session)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	// завершение несуществующей сессии
	err = storage.FinishSession(ctx, task.NewSession(created.UUID, time.Now()))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// TestTaskStorage_GetSessionsByTask тестирует порядок истории
func TestTaskStorage_GetSessionsByTask(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()

	created := newTask()
	require.NoError(t, storage.Create(ctx, created))

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		session := task.NewSession(created.UUID, base.Add(time.Duration(i)*time.Minute))
		end := session.StartTime.Add(30 * time.Second)
		require.NoError(t, storage.CreateSession(ctx, session))
		session.EndTime = &end
		session.Duration = 30
		require.NoError(t, storage.FinishSession(ctx, session))
	}

	sessions, err := storage.GetSessionsByTask(ctx, created.UUID)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	// самые свежие первыми
	for i := 1; i < len(sessions); i++ {
		assert.True(t, sessions[i-1].StartTime.After(sessions[i].StartTime))
	}
}

// TestTaskStorage_GetTotalDuration: активная сессия в сумму не входит
func TestTaskStorage_GetTotalDuration(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()

	created := newTask()
	require.NoError(t, storage.Create(ctx, created))

	finished := task.NewSession(created.UUID, time.Now().Add(-5*time.Minute))
	require.NoError(t, storage.CreateSession(ctx, finished))
	end := time.Now().Add(-4 * time.Minute)
	finished.EndTime = &end
	finished.Duration = 60
	require.NoError(t, storage.FinishSession(ctx, finished))

	require.NoError(t, storage.CreateSession(ctx, task.NewSession(created.UUID, time.Now())))

	total, err := storage.GetTotalDuration(ctx, created.UUID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), total)
}

// TestTaskStorage_DeleteSessionsByTask тестирует сброс таймера
func TestTaskStorage_DeleteSessionsByTask(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()

	created := newTask()
	require.NoError(t, storage.Create(ctx, created))
	require.NoError(t, storage.CreateSession(ctx, task.NewSession(created.UUID, time.Now())))

	require.NoError(t, storage.DeleteSessionsByTask(ctx, created.UUID))

	sessions, err := storage.GetSessionsByTask(ctx, created.UUID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	// сброс пустого списка не ошибка
	assert.NoError(t, storage.DeleteSessionsByTask(ctx, created.UUID))
}

// TestTaskStorage_GetTasksForCustomReminder тестирует предикат выборки
func TestTaskStorage_GetTasksForCustomReminder(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()
	now := time.Now()

	due := newTask(task.WithReminderTime(now.Add(-time.Minute)))
	future := newTask(task.WithReminderTime(now.Add(time.Hour)))
	noReminder := newTask()
	for _, tsk := range []*task.Task{due, future, noReminder} {
		require.NoError(t, storage.Create(ctx, tsk))
	}

	tasks, err := storage.GetTasksForCustomReminder(ctx, now, 100)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, due.UUID, tasks[0].UUID)
}

// TestTaskStorage_GetOverdueTasks тестирует предикат просрочки
func TestTaskStorage_GetOverdueTasks(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()
	now := time.Now()
	yesterday := now.AddDate(0, 0, -1)

	late := newTask(task.WithDueDate(yesterday))
	completed := newTask(task.WithDueDate(yesterday), task.WithStatus(task.StatusCompleted))
	alreadyOverdue := newTask(task.WithDueDate(yesterday), task.WithStatus(task.StatusOverdue))
	dueToday := newTask(task.WithDueDate(now))
	for _, tsk := range []*task.Task{late, completed, alreadyOverdue, dueToday} {
		require.NoError(t, storage.Create(ctx, tsk))
	}

	tasks, err := storage.GetOverdueTasks(ctx, now, 100)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, late.UUID, tasks[0].UUID)
}

// TestTaskStorage_MarkCustomReminderSent тестирует условную запись флага
func TestTaskStorage_MarkCustomReminderSent(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()

	created := newTask(task.WithReminderTime(time.Now().Add(-time.Minute)))
	require.NoError(t, storage.Create(ctx, created))

	won, err := storage.MarkCustomReminderSent(ctx, created.UUID)
	require.NoError(t, err)
	assert.True(t, won)

	// второй вызов проигрывает
	won, err = storage.MarkCustomReminderSent(ctx, created.UUID)
	require.NoError(t, err)
	assert.False(t, won)

	_, err = storage.MarkCustomReminderSent(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// TestTaskStorage_MarkOverdue: терминальные статусы не трогаем
func TestTaskStorage_MarkOverdue(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()

	tests := []struct {
		name    string
		status  task.Status
		wantWon bool
	}{
		{"todo becomes overdue", task.StatusTodo, true},
		{"in_progress becomes overdue", task.StatusInProgress, true},
		{"done untouched", task.StatusDone, false},
		{"completed untouched", task.StatusCompleted, false},
		{"cancelled untouched", task.StatusCancelled, false},
		{"overdue stays overdue", task.StatusOverdue, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := newTask(task.WithStatus(tt.status))
			require.NoError(t, storage.Create(ctx, created))

			won, err := storage.MarkOverdue(ctx, created.UUID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWon, won)

			got, err := storage.GetByID(ctx, created.UUID)
			require.NoError(t, err)
			if tt.wantWon {
				assert.Equal(t, task.StatusOverdue, got.Status)
			} else {
				assert.Equal(t, tt.status, got.Status)
			}
		})
	}
}

// TestTaskStorage_CreateActivity тестирует журнал действий
func TestTaskStorage_CreateActivity(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTaskStorage()

	activity := task.NewActivity(uuid.New(), "Запущен таймер задачи 'Test Task'")
	require.NoError(t, storage.CreateActivity(ctx, activity))
	assert.False(t, activity.CreatedAt.IsZero())
}
