package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"projo/internal/cache"
	"projo/internal/config"
	"projo/internal/handlers"
	"projo/internal/logger"
	"projo/internal/middleware"
	"projo/internal/migrations"
	"projo/internal/notifier"
	"projo/internal/repository/task/inmemory"
	"projo/internal/repository/task/postgres"
	"projo/internal/service"
	"projo/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type App struct {
	config    *config.Config
	server    *http.Server
	worker    *worker.ReminderWorker
	shutdowns []func() // функции для graceful shutdown, в обратном порядке
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}

	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})

	var repo service.TaskRepository
	switch a.config.Repository.Type {
	case "postgres":
		if err := migrations.Up(a.config.Database.URL); err != nil {
			return fmt.Errorf("миграции: %w", err)
		}

		storage, err := postgres.New(ctx, a.config.Database.URL)
		if err != nil {
			return fmt.Errorf("подключение к PostgreSQL: %w", err)
		}
		a.shutdowns = append(a.shutdowns, storage.Close)
		repo = storage
	default:
		logger.Info("Репозиторий inmemory: данные не переживут рестарт")
		repo = inmemory.NewTaskStorage()
	}

	views := cache.NewViews()

	var notif service.Notifier
	if a.config.SMTP.Enabled {
		notif = notifier.NewSMTP(a.config.SMTP)
	} else {
		notif = notifier.NewLog()
	}

	timerService := service.NewTimerService(repo, views)
	reminderService := service.NewReminderService(repo, notif, views, a.config.Scheduler.BatchSize)

	a.worker = worker.NewReminderWorker(
		&reminderService,
		&a.config.Scheduler.CustomInterval,
		&a.config.Scheduler.DailyInterval,
	)

	timerHandler := handlers.NewTimerHandler(&timerService, repo)
	reminderHandler := handlers.NewReminderHandler(&reminderService)

	a.server = &http.Server{
		Addr:    a.config.GetServerAddr(),
		Handler: a.router(&timerHandler, &reminderHandler),
	}

	return nil
}

func (a *App) router(timerHandler *handlers.TimerHandler, reminderHandler *handlers.ReminderHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.RateLimit(100))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-User-ID"},
		MaxAge:         300,
	}))

	r.Route("/tasks/{id}", func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Route("/timer", func(r chi.Router) {
			r.Get("/", timerHandler.GetTimerStatus)          // GET /tasks/{id}/timer
			r.Post("/start", timerHandler.StartTimer)        // POST /tasks/{id}/timer/start
			r.Post("/stop", timerHandler.StopTimer)          // POST /tasks/{id}/timer/stop
			r.Post("/reset", timerHandler.ResetTimer)        // POST /tasks/{id}/timer/reset
			r.Get("/history", timerHandler.GetTimeHistory)   // GET /tasks/{id}/timer/history
		})

		r.Route("/reminders", func(r chi.Router) {
			r.Post("/", reminderHandler.SetCustomReminder)  // POST /tasks/{id}/reminders
			r.Delete("/", reminderHandler.DisableReminders) // DELETE /tasks/{id}/reminders
		})
	})

	r.Route("/admin/reminders", func(r chi.Router) {
		r.Post("/trigger/custom", reminderHandler.TriggerCustomSweep)
		r.Post("/trigger/deadline", reminderHandler.TriggerDeadlineSweep)
		r.Post("/trigger/overdue", reminderHandler.TriggerOverdueSweep)
	})

	r.Get("/health", timerHandler.HealthCheck)

	return r
}

// Run блокируется до отмены контекста, затем гасит всё в обратном порядке
func (a *App) Run(ctx context.Context) error {
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go a.worker.Start(workerCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Сервер запущен: " + a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("сервер: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Получен сигнал завершения, останавливаемся...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Остановка сервера", err)
	}

	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	return nil
}
