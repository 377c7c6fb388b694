package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"projo/internal/logger"
	"projo/internal/models/task"
	repo "projo/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Storage struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	err := s.pool.Ping(ctx)
	if err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

const taskColumns = `uuid, title, description, status, priority,
				project_id, owner_id, owner_email, start_date, due_date,
				reminder_time, reminder_enabled, deadline_reminder_sent,
				custom_reminder_sent, is_completed,
				created_at, updated_at, version`

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}
	err := row.Scan(
		&t.UUID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.ProjectID,
		&t.OwnerID,
		&t.OwnerEmail,
		&t.StartDate,
		&t.DueDate,
		&t.ReminderTime,
		&t.ReminderEnabled,
		&t.DeadlineReminderSent,
		&t.CustomReminderSent,
		&t.IsCompleted,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.Version,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Storage) collectTasks(rows pgx.Rows) ([]*task.Task, error) {
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования задачи", zap.Error(err))
			continue
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	return tasks, nil
}

func (s *Storage) Create(ctx context.Context, taskToCreate *task.Task) error {
	start := time.Now()

	query := `INSERT INTO tasks
				(uuid, title, description, status, priority,
				project_id, owner_id, owner_email, start_date, due_date,
				reminder_time, reminder_enabled, deadline_reminder_sent,
				custom_reminder_sent, is_completed, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
				RETURNING created_at`

	err := s.pool.QueryRow(ctx, query,
		taskToCreate.UUID,
		taskToCreate.Title,
		taskToCreate.Description,
		taskToCreate.Status,
		taskToCreate.Priority,
		taskToCreate.ProjectID,
		taskToCreate.OwnerID,
		taskToCreate.OwnerEmail,
		taskToCreate.StartDate,
		taskToCreate.DueDate,
		taskToCreate.ReminderTime,
		taskToCreate.ReminderEnabled,
		taskToCreate.DeadlineReminderSent,
		taskToCreate.CustomReminderSent,
		taskToCreate.IsCompleted,
		time.Now(),
	).Scan(&taskToCreate.CreatedAt)

	if err != nil {
		logger.Error("Repository: Не удалось добавить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление задачи: %w", err)
	}

	if time.Since(start) > time.Millisecond*50 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

func (s *Storage) Update(ctx context.Context, taskToUpdate *task.Task) error {
	start := time.Now()

	query := `UPDATE tasks
			SET title = $1,
				description = $2,
				status = $3,
				priority = $4,
				start_date = $5,
				due_date = $6,
				reminder_time = $7,
				reminder_enabled = $8,
				deadline_reminder_sent = $9,
				custom_reminder_sent = $10,
				is_completed = $11,
				version = version + 1,
				updated_at = NOW()
			WHERE uuid = $12 AND version = $13
			RETURNING updated_at, version`

	err := s.pool.QueryRow(ctx, query,
		taskToUpdate.Title,
		taskToUpdate.Description,
		taskToUpdate.Status,
		taskToUpdate.Priority,
		taskToUpdate.StartDate,
		taskToUpdate.DueDate,
		taskToUpdate.ReminderTime,
		taskToUpdate.ReminderEnabled,
		taskToUpdate.DeadlineReminderSent,
		taskToUpdate.CustomReminderSent,
		taskToUpdate.IsCompleted,
		taskToUpdate.UUID,
		taskToUpdate.Version,
	).Scan(&taskToUpdate.UpdatedAt, &taskToUpdate.Version)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Warn("Конфликт версий при обновлении задачи",
				zap.String("task_id", taskToUpdate.UUID.String()),
				zap.Int("expected_version", taskToUpdate.Version))
			return repo.ErrVersionConflict
		}
		logger.Error("Repository: Не удалось обновить задачу", err)
		return fmt.Errorf("обновление задачи: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

func (s *Storage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	start := time.Now()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE uuid = $1`

	t, err := scanTask(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задачи: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}

	return t, nil
}

// сессии удаляются каскадом (FK ON DELETE CASCADE)
func (s *Storage) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()

	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE uuid = $1`, id)
	if err != nil {
		logger.Error("Repository: Удаление задачи", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("удаление задачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// CreateSession полагается на partial unique index
// task_sessions_active_uq (task_id WHERE end_time IS NULL): вторая
// активная сессия ловится как 23505 даже при гонке двух start
func (s *Storage) CreateSession(ctx context.Context, session *task.Session) error {
	start := time.Now()

	query := `INSERT INTO task_sessions (uuid, task_id, start_time)
				VALUES ($1, $2, $3)`

	_, err := s.pool.Exec(ctx, query, session.UUID, session.TaskID, session.StartTime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505": // unique_violation
				return repo.ErrActiveSession
			case "23503": // foreign_key_violation - задачи нет
				return repo.ErrNotFound
			}
		}
		logger.Error("Repository: Не удалось создать сессию", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("создание сессии: %w", err)
	}

	if time.Since(start) > time.Millisecond*50 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

func (s *Storage) GetActiveSession(ctx context.Context, taskID uuid.UUID) (*task.Session, error) {
	query := `SELECT uuid, task_id, start_time, end_time, duration
				FROM task_sessions
				WHERE task_id = $1 AND end_time IS NULL`

	session := &task.Session{}
	err := s.pool.QueryRow(ctx, query, taskID).Scan(
		&session.UUID,
		&session.TaskID,
		&session.StartTime,
		&session.EndTime,
		&session.Duration,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить активную сессию", err)
		return nil, fmt.Errorf("получение активной сессии: %w", err)
	}
	return session, nil
}

// FinishSession закрывает сессию ровно один раз: условие end_time IS NULL
// защищает от повторного stop
func (s *Storage) FinishSession(ctx context.Context, session *task.Session) error {
	query := `UPDATE task_sessions
			SET end_time = $1,
				duration = $2
			WHERE uuid = $3 AND end_time IS NULL`

	tag, err := s.pool.Exec(ctx, query, session.EndTime, session.Duration, session.UUID)
	if err != nil {
		logger.Error("Repository: Не удалось завершить сессию", err)
		return fmt.Errorf("завершение сессии: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Storage) GetSessionsByTask(ctx context.Context, taskID uuid.UUID) ([]*task.Session, error) {
	start := time.Now()

	query := `SELECT uuid, task_id, start_time, end_time, duration
				FROM task_sessions
				WHERE task_id = $1
				ORDER BY start_time DESC`

	rows, err := s.pool.Query(ctx, query, taskID)
	if err != nil {
		logger.Error("Repository: Не удалось получить сессии", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение сессий: %w", err)
	}
	defer rows.Close()

	sessions := []*task.Session{}
	for rows.Next() {
		session := &task.Session{}
		err := rows.Scan(
			&session.UUID,
			&session.TaskID,
			&session.StartTime,
			&session.EndTime,
			&session.Duration,
		)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования сессии", zap.Error(err))
			continue
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	return sessions, nil
}

// активные сессии не учитываются: duration у них ещё 0 и end_time IS NULL
func (s *Storage) GetTotalDuration(ctx context.Context, taskID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(duration), 0)
				FROM task_sessions
				WHERE task_id = $1 AND end_time IS NOT NULL`

	var total int64
	err := s.pool.QueryRow(ctx, query, taskID).Scan(&total)
	if err != nil {
		logger.Error("Repository: Не удалось посчитать время", err)
		return 0, fmt.Errorf("подсчёт времени: %w", err)
	}
	return total, nil
}

func (s *Storage) DeleteSessionsByTask(ctx context.Context, taskID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM task_sessions WHERE task_id = $1`, taskID)
	if err != nil {
		logger.Error("Repository: Не удалось удалить сессии", err)
		return fmt.Errorf("удаление сессий: %w", err)
	}
	return nil
}

func (s *Storage) GetTasksForCustomReminder(ctx context.Context, now time.Time, limit int) ([]*task.Task, error) {
	start := time.Now()

	query := `SELECT ` + taskColumns + ` FROM tasks
				WHERE reminder_time <= $1
				AND custom_reminder_sent = FALSE
				AND reminder_enabled = TRUE
				AND is_completed = FALSE
				LIMIT $2`

	rows, err := s.pool.Query(ctx, query, now, limit)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	return s.collectTasks(rows)
}

func (s *Storage) GetTasksForDeadlineReminder(ctx context.Context, today, tomorrow time.Time, limit int) ([]*task.Task, error) {
	start := time.Now()

	query := `SELECT ` + taskColumns + ` FROM tasks
				WHERE due_date IN ($1::date, $2::date)
				AND deadline_reminder_sent = FALSE
				AND reminder_enabled = TRUE
				AND is_completed = FALSE
				LIMIT $3`

	rows, err := s.pool.Query(ctx, query, today, tomorrow, limit)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	return s.collectTasks(rows)
}

func (s *Storage) GetOverdueTasks(ctx context.Context, today time.Time, limit int) ([]*task.Task, error) {
	start := time.Now()

	query := `SELECT ` + taskColumns + ` FROM tasks
				WHERE due_date < $1::date
				AND status NOT IN ('completed', 'overdue')
				AND is_completed = FALSE
				LIMIT $2`

	rows, err := s.pool.Query(ctx, query, today, limit)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	return s.collectTasks(rows)
}

// условная запись: выигрывает ровно один из перекрывающихся свипов
func (s *Storage) MarkCustomReminderSent(ctx context.Context, taskID uuid.UUID) (bool, error) {
	query := `UPDATE tasks
			SET custom_reminder_sent = TRUE,
				version = version + 1,
				updated_at = NOW()
			WHERE uuid = $1 AND custom_reminder_sent = FALSE`

	tag, err := s.pool.Exec(ctx, query, taskID)
	if err != nil {
		logger.Error("Repository: Не удалось отметить custom-напоминание", err)
		return false, fmt.Errorf("отметка custom-напоминания: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Storage) MarkDeadlineReminderSent(ctx context.Context, taskID uuid.UUID) (bool, error) {
	query := `UPDATE tasks
			SET deadline_reminder_sent = TRUE,
				version = version + 1,
				updated_at = NOW()
			WHERE uuid = $1 AND deadline_reminder_sent = FALSE`

	tag, err := s.pool.Exec(ctx, query, taskID)
	if err != nil {
		logger.Error("Repository: Не удалось отметить deadline-напоминание", err)
		return false, fmt.Errorf("отметка deadline-напоминания: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// терминальные статусы и уже overdue исключены условием UPDATE
func (s *Storage) MarkOverdue(ctx context.Context, taskID uuid.UUID) (bool, error) {
	query := `UPDATE tasks
			SET status = 'overdue',
				version = version + 1,
				updated_at = NOW()
			WHERE uuid = $1
			AND status NOT IN ('done', 'completed', 'cancelled', 'overdue')
			AND is_completed = FALSE`

	tag, err := s.pool.Exec(ctx, query, taskID)
	if err != nil {
		logger.Error("Repository: Не удалось отметить просрочку", err)
		return false, fmt.Errorf("отметка просрочки: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Storage) CreateActivity(ctx context.Context, activity *task.Activity) error {
	query := `INSERT INTO activity_logs (uuid, owner_id, action)
				VALUES ($1, $2, $3)
				RETURNING created_at`

	err := s.pool.QueryRow(ctx, query, activity.UUID, activity.OwnerID, activity.Action).Scan(&activity.CreatedAt)
	if err != nil {
		logger.Error("Repository: Не удалось записать активность", err)
		return fmt.Errorf("запись активности: %w", err)
	}
	return nil
}
