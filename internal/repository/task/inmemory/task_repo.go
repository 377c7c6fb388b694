package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"projo/internal/logger"
	"projo/internal/models/task"
	repo "projo/internal/repository"

	"github.com/google/uuid"
)

type TaskStorage struct {
	tasks      map[uuid.UUID]*task.Task
	sessions   map[uuid.UUID][]*task.Session // по task_id, порядок вставки
	activities []*task.Activity
	mtx        *sync.RWMutex
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		tasks:    make(map[uuid.UUID]*task.Task),
		sessions: make(map[uuid.UUID][]*task.Session),
		mtx:      &sync.RWMutex{},
	}
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	logger.Info("Repository: Соединение стабильно")
	return nil
}

func (s *TaskStorage) Create(ctx context.Context, taskToCreate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	taskToCreate.CreatedAt = time.Now()
	s.tasks[taskToCreate.UUID] = taskToCreate
	return nil
}

func (s *TaskStorage) Update(ctx context.Context, taskToUpdate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.tasks[taskToUpdate.UUID]
	if !ok {
		return repo.ErrNotFound
	}
	if existing.Version != taskToUpdate.Version {
		return repo.ErrVersionConflict
	}

	now := time.Now()
	taskToUpdate.UpdatedAt = &now
	taskToUpdate.Version++
	s.tasks[taskToUpdate.UUID] = taskToUpdate

	return nil
}

func (s *TaskStorage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	taskToGet, ok := s.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *taskToGet
	return &copied, nil
}

func (s *TaskStorage) Delete(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return repo.ErrNotFound
	}
	// сессии принадлежат задаче и умирают вместе с ней
	delete(s.tasks, id)
	delete(s.sessions, id)
	return nil
}

// CreateSession создаёт сессию, если для задачи нет активной.
// Проверка и вставка под одним мьютексом - это и есть атомарный
// примитив "insert iff нет активной"
func (s *TaskStorage) CreateSession(ctx context.Context, session *task.Session) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.tasks[session.TaskID]; !ok {
		return repo.ErrNotFound
	}

	for _, existing := range s.sessions[session.TaskID] {
		if existing.IsActive() {
			return repo.ErrActiveSession
		}
	}

	s.sessions[session.TaskID] = append(s.sessions[session.TaskID], session)
	return nil
}

func (s *TaskStorage) GetActiveSession(ctx context.Context, taskID uuid.UUID) (*task.Session, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	for _, session := range s.sessions[taskID] {
		if session.IsActive() {
			copied := *session
			return &copied, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *TaskStorage) FinishSession(ctx context.Context, finished *task.Session) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, session := range s.sessions[finished.TaskID] {
		if session.UUID == finished.UUID {
			if !session.IsActive() {
				return repo.ErrVersionConflict
			}
			session.EndTime = finished.EndTime
			session.Duration = finished.Duration
			return nil
		}
	}
	return repo.ErrNotFound
}

// сессии по start_time, самые свежие первыми
func (s *TaskStorage) GetSessionsByTask(ctx context.Context, taskID uuid.UUID) ([]*task.Session, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	sessions := make([]*task.Session, 0, len(s.sessions[taskID]))
	for _, session := range s.sessions[taskID] {
		copied := *session
		sessions = append(sessions, &copied)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
	return sessions, nil
}

// сумма duration завершённых сессий; активная даёт 0
func (s *TaskStorage) GetTotalDuration(ctx context.Context, taskID uuid.UUID) (int64, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var total int64
	for _, session := range s.sessions[taskID] {
		if !session.IsActive() {
			total += int64(session.Duration)
		}
	}
	return total, nil
}

func (s *TaskStorage) DeleteSessionsByTask(ctx context.Context, taskID uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	delete(s.sessions, taskID)
	return nil
}

// задачи с наступившим кастомным напоминанием
func (s *TaskStorage) GetTasksForCustomReminder(ctx context.Context, now time.Time, limit int) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	tasks := []*task.Task{}
	for _, t := range s.tasks {
		if len(tasks) >= limit {
			break
		}
		if t.ReminderTime != nil &&
			!t.ReminderTime.After(now) &&
			!t.CustomReminderSent &&
			t.ReminderEnabled &&
			!t.IsCompleted {

			copied := *t
			tasks = append(tasks, &copied)
		}
	}
	return tasks, nil
}

// задачи с дедлайном сегодня или завтра
func (s *TaskStorage) GetTasksForDeadlineReminder(ctx context.Context, today, tomorrow time.Time, limit int) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	tasks := []*task.Task{}
	for _, t := range s.tasks {
		if len(tasks) >= limit {
			break
		}
		if t.DueDate == nil || t.DeadlineReminderSent || !t.ReminderEnabled || t.IsCompleted {
			continue
		}

		due := dateOnly(*t.DueDate)
		if due.Equal(dateOnly(today)) || due.Equal(dateOnly(tomorrow)) {
			copied := *t
			tasks = append(tasks, &copied)
		}
	}
	return tasks, nil
}

// просроченные задачи, ещё не помеченные и не завершённые
func (s *TaskStorage) GetOverdueTasks(ctx context.Context, today time.Time, limit int) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	tasks := []*task.Task{}
	for _, t := range s.tasks {
		if len(tasks) >= limit {
			break
		}
		if t.DueDate != nil &&
			dateOnly(*t.DueDate).Before(dateOnly(today)) &&
			t.Status != task.StatusCompleted &&
			t.Status != task.StatusOverdue &&
			!t.IsCompleted {

			copied := *t
			tasks = append(tasks, &copied)
		}
	}
	return tasks, nil
}

// условная запись флага: true, если флаг был false и мы его выставили.
// Защита от перекрывающихся свипов
func (s *TaskStorage) MarkCustomReminderSent(ctx context.Context, taskID uuid.UUID) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return false, repo.ErrNotFound
	}
	if t.CustomReminderSent {
		return false, nil
	}

	now := time.Now()
	t.CustomReminderSent = true
	t.UpdatedAt = &now
	t.Version++
	return true, nil
}

func (s *TaskStorage) MarkDeadlineReminderSent(ctx context.Context, taskID uuid.UUID) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return false, repo.ErrNotFound
	}
	if t.DeadlineReminderSent {
		return false, nil
	}

	now := time.Now()
	t.DeadlineReminderSent = true
	t.UpdatedAt = &now
	t.Version++
	return true, nil
}

// условный переход в overdue: терминальные и уже overdue не трогаем
func (s *TaskStorage) MarkOverdue(ctx context.Context, taskID uuid.UUID) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return false, repo.ErrNotFound
	}
	if t.Status.IsTerminal() || t.Status == task.StatusOverdue || t.IsCompleted {
		return false, nil
	}

	now := time.Now()
	t.Status = task.StatusOverdue
	t.UpdatedAt = &now
	t.Version++
	return true, nil
}

func (s *TaskStorage) CreateActivity(ctx context.Context, activity *task.Activity) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	activity.CreatedAt = time.Now()
	s.activities = append(s.activities, activity)
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
