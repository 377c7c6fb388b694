package handlers

import (
	"net/http"
	"time"

	"projo/internal/handlers/dto"
	"projo/internal/logger"
	"projo/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TimerHandler struct {
	TimerService TimerService
	Health       HealthChecker
}

func NewTimerHandler(timerService TimerService, health HealthChecker) TimerHandler {
	return TimerHandler{
		TimerService: timerService,
		Health:       health,
	}
}

// ownerID кладёт middleware.Identity, taskID приходит в URL
func requestIdentity(w http.ResponseWriter, r *http.Request) (ownerID, taskID uuid.UUID, ok bool) {
	ownerID, found := middleware.GetUserID(r.Context())
	if !found {
		logger.Warn("HTTP: Идентичность не найдена в контексте",
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnauthorized, "идентичность вызывающего не установлена")
		return uuid.Nil, uuid.Nil, false
	}

	idParam := chi.URLParam(r, "id")
	taskID, err := uuid.Parse(idParam)
	if err != nil {
		logger.Warn("HTTP: Не удалось получить id",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "не удалось получить id:"+err.Error())
		return uuid.Nil, uuid.Nil, false
	}

	if taskID == uuid.Nil {
		logger.Warn("HTTP: Неверное значение id",
			zap.String("error", "nil id"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "id не может быть пустым")
		return uuid.Nil, uuid.Nil, false
	}

	return ownerID, taskID, true
}

func (h *TimerHandler) StartTimer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, taskID, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	logger.Info("HTTP: Вызов сервиса запуска таймера")

	if err := h.TimerService.Start(r.Context(), ownerID, taskID); err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "start_timer"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Таймер запущен",
		zap.String("task_id", taskID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, toPayload("message", "таймер запущен"))
}

func (h *TimerHandler) StopTimer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, taskID, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	logger.Info("HTTP: Вызов сервиса остановки таймера")

	session, err := h.TimerService.Stop(r.Context(), ownerID, taskID)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "stop_timer"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Таймер остановлен",
		zap.String("task_id", taskID.String()),
		zap.Int("duration_sec", session.Duration),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("session", dto.FromSession(session)))
}

// текущее состояние таймера: запущен ли и сколько секунд уже учтено
func (h *TimerHandler) GetTimerStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, taskID, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	running, err := h.TimerService.IsRunning(r.Context(), ownerID, taskID)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "timer_status"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	total, err := h.TimerService.TotalTimeSpent(r.Context(), ownerID, taskID)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "timer_status"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Статус таймера получен",
		zap.String("task_id", taskID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("timer", dto.TimerStatusResponse{
		Running:      running,
		TotalSeconds: total,
	}))
}

func (h *TimerHandler) GetTimeHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, taskID, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	sessions, err := h.TimerService.History(r.Context(), ownerID, taskID)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "time_history"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: История сессий получена",
		zap.String("task_id", taskID.String()),
		zap.Int("sessions", len(sessions)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("sessions", dto.FromSessionList(sessions)))
}

func (h *TimerHandler) ResetTimer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, taskID, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	if err := h.TimerService.Reset(r.Context(), ownerID, taskID); err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "reset_timer"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Таймер сброшен",
		zap.String("task_id", taskID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("message", "таймер сброшен"))
}

func (h *TimerHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := h.Health.HealthCheck(r.Context()); err != nil {
		responseWithJSON(w, http.StatusServiceUnavailable, toPayload("status", "unhealthy"))
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("status", "ok"))
}
