package worker

import (
	"context"
	"time"

	"projo/internal/logger"
	"projo/internal/service"

	"go.uber.org/zap"
)

// ReminderWorker гоняет свипы планировщика по расписанию: кастомные
// напоминания часто, дедлайны и просрочки раз в сутки. Сама логика
// свипов живёт в ReminderService, поэтому тесты зовут её напрямую,
// не дожидаясь тикеров
type ReminderWorker struct {
	svc            *service.ReminderService
	customInterval time.Duration
	dailyInterval  time.Duration
}

func NewReminderWorker(svc *service.ReminderService, customInterval, dailyInterval *time.Duration) *ReminderWorker {
	var customToSet time.Duration
	if customInterval == nil {
		customToSet = 5 * time.Minute
	} else {
		customToSet = *customInterval
	}

	var dailyToSet time.Duration
	if dailyInterval == nil {
		dailyToSet = 24 * time.Hour
	} else {
		dailyToSet = *dailyInterval
	}

	return &ReminderWorker{
		svc:            svc,
		customInterval: customToSet,
		dailyInterval:  dailyToSet,
	}
}

func (w *ReminderWorker) Start(ctx context.Context) {
	customTicker := time.NewTicker(w.customInterval)
	defer customTicker.Stop()

	dailyTicker := time.NewTicker(w.dailyInterval)
	defer dailyTicker.Stop()

	logger.Info("Worker: Планировщик напоминаний запущен",
		zap.Duration("custom_interval", w.customInterval),
		zap.Duration("daily_interval", w.dailyInterval))

	for {
		select {
		case <-customTicker.C:
			w.runCustom(ctx)
		case <-dailyTicker.C:
			w.runDaily(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Планировщик напоминаний останавливается")
			return
		}
	}
}

func (w *ReminderWorker) runCustom(ctx context.Context) {
	if _, err := w.svc.RunCustomReminderSweep(ctx); err != nil {
		logger.Warn("Worker: Свип кастомных напоминаний не удался", zap.Error(err))
	}
}

// порядок фиксирован: сначала дедлайны, потом просрочки - чтобы задача
// с дедлайном вчера успела получить дедлайн-письмо до смены статуса
func (w *ReminderWorker) runDaily(ctx context.Context) {
	if _, err := w.svc.RunDeadlineReminderSweep(ctx); err != nil {
		logger.Warn("Worker: Свип дедлайнов не удался", zap.Error(err))
	}
	if _, err := w.svc.RunOverdueSweep(ctx); err != nil {
		logger.Warn("Worker: Свип просрочек не удался", zap.Error(err))
	}
}
