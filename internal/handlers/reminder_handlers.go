package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"projo/internal/handlers/dto"
	"projo/internal/logger"
	"projo/internal/service"

	"go.uber.org/zap"
)

type ReminderHandler struct {
	ReminderService ReminderService
}

func NewReminderHandler(reminderService ReminderService) ReminderHandler {
	return ReminderHandler{
		ReminderService: reminderService,
	}
}

func (h *ReminderHandler) SetCustomReminder(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, taskID, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
		return
	}

	var request dto.SetReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса:"+err.Error())
		return
	}

	if request.ReminderTime.IsZero() {
		logger.Warn("HTTP: Ошибка валидации",
			zap.String("field", "reminder_time"),
			zap.String("error", "empty_field"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "время напоминания должно быть задано")
		return
	}

	logger.Info("HTTP: Вызов сервиса установки напоминания")

	if err := h.ReminderService.SetCustomReminder(r.Context(), ownerID, taskID, request.ReminderTime); err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "set_reminder"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Напоминание установлено",
		zap.String("task_id", taskID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("message", "напоминание установлено"))
}

func (h *ReminderHandler) DisableReminders(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, taskID, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	if err := h.ReminderService.DisableReminders(r.Context(), ownerID, taskID); err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "disable_reminders"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Напоминания отключены",
		zap.String("task_id", taskID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("message", "напоминания отключены"))
}

// ручные триггеры свипов, для эксплуатации и тестов

func (h *ReminderHandler) TriggerCustomSweep(w http.ResponseWriter, r *http.Request) {
	h.triggerSweep(w, r, "custom", h.ReminderService.RunCustomReminderSweep)
}

func (h *ReminderHandler) TriggerDeadlineSweep(w http.ResponseWriter, r *http.Request) {
	h.triggerSweep(w, r, "deadline", h.ReminderService.RunDeadlineReminderSweep)
}

func (h *ReminderHandler) TriggerOverdueSweep(w http.ResponseWriter, r *http.Request) {
	h.triggerSweep(w, r, "overdue", h.ReminderService.RunOverdueSweep)
}

func (h *ReminderHandler) triggerSweep(w http.ResponseWriter, r *http.Request, name string, sweep func(ctx context.Context) (service.SweepStats, error)) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	stats, err := sweep(r.Context())
	if err != nil {
		logger.Error("HTTP: Ошибка свипа", err,
			zap.String("sweep", name),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Свип выполнен",
		zap.String("sweep", name),
		zap.Int("sent", stats.Sent),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK,
		toPayload("sweep", name),
		toPayload("stats", stats),
	)
}
