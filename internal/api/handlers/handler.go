// handler.go — основной обработчик API Portfolio Tracker.
// Объединяет все доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/portfolio-tracker/internal/api/errors"
	"github.com/bigkaa/portfolio-tracker/internal/domain/model"
	"github.com/bigkaa/portfolio-tracker/internal/service"
)

// maxBodyBytes — ограничение размера тела запроса.
const maxBodyBytes = 1 << 20

// UserManager — операции с пользователями.
type UserManager interface {
	Register(ctx context.Context, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*service.AccessToken, error)
	Get(ctx context.Context, userID string) (*model.User, error)
}

// HoldingManager — операции с позициями портфеля.
type HoldingManager interface {
	Upload(ctx context.Context, userID string, items []service.HoldingItem) (*model.UpsertResult, error)
	List(ctx context.Context, userID string) ([]*model.Holding, error)
	DeleteAll(ctx context.Context, userID string) (int, error)
}

// ReportGenerator — генерация отчёта об аллокации.
type ReportGenerator interface {
	Generate(ctx context.Context, userID, format string) (*service.GenerateResult, error)
}

// ReportAccess — выдача файлов отчётов и список записей.
type ReportAccess interface {
	Open(ctx context.Context, userID, reportID string) (*service.Download, error)
	List(ctx context.Context, userID string) ([]*model.Report, error)
	Now() time.Time
}

// APIHandler — основной обработчик API.
type APIHandler struct {
	health    *HealthHandler
	users     UserManager
	holdings  HoldingManager
	generator ReportGenerator
	access    ReportAccess
	logger    *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	users UserManager,
	holdings HoldingManager,
	generator ReportGenerator,
	access ReportAccess,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:    health,
		users:     users,
		holdings:  holdings,
		generator: generator,
		access:    access,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса строго: неизвестные поля запрещены.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError переводит ошибку сервисного слоя в ответ API.
// Неизвестные ошибки логируются и отдаются как 500 с сообщением fallback.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		apierrors.InvalidCredentials(w)
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrGone):
		apierrors.Gone(w, err.Error())
	case errors.Is(err, service.ErrUnavailable):
		h.logger.Warn(fallback, "error", err)
		apierrors.Unavailable(w, err.Error())
	default:
		h.logger.Error(fallback, "error", err)
		apierrors.InternalError(w, fallback)
	}
}
