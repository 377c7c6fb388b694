package cache

import (
	"sync"

	"projo/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// имена вьюх, которые строятся из задач и протухают при любой их мутации
const ViewKanban = "tasks_kanban"
const ViewGantt = "tasks_gantt"
const ViewCalendar = "tasks_calendar"
const ViewTask = "task"

var taskViews = []string{ViewKanban, ViewGantt, ViewCalendar, ViewTask}

// Views - примитивный in-memory кэш именованных вьюх. Сам кэш вне ядра,
// ядру важен только хук инвалидации после мутаций
type Views struct {
	mtx    sync.RWMutex
	stores map[string]map[string]any
}

func NewViews() *Views {
	return &Views{
		stores: make(map[string]map[string]any),
	}
}

func (v *Views) Get(view, key string) (any, bool) {
	v.mtx.RLock()
	defer v.mtx.RUnlock()

	store, ok := v.stores[view]
	if !ok {
		return nil, false
	}
	value, ok := store[key]
	return value, ok
}

func (v *Views) Set(view, key string, value any) {
	v.mtx.Lock()
	defer v.mtx.Unlock()

	if v.stores[view] == nil {
		v.stores[view] = make(map[string]any)
	}
	v.stores[view][key] = value
}

func (v *Views) Evict(views ...string) {
	v.mtx.Lock()
	defer v.mtx.Unlock()

	for _, view := range views {
		delete(v.stores, view)
	}
}

// InvalidateTask сбрасывает все вьюхи, построенные из задач.
// Целиком, без точечных ключей: мутация статуса двигает задачу между
// колонками kanban и днями календаря
func (v *Views) InvalidateTask(taskID uuid.UUID) {
	v.Evict(taskViews...)
	logger.Info("Cache: Инвалидация вьюх задач", zap.String("task_id", taskID.String()))
}

// Noop для тестов и конфигураций без кэша
type Noop struct{}

func (Noop) InvalidateTask(taskID uuid.UUID) {}
