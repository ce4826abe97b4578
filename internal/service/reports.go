// reports.go — генерация отчёта об аллокации портфеля.
//
// Формат json возвращает строки без побочных эффектов.
// Формат excel сначала пишет файл, затем вставляет запись в reports.
// Ошибка вставки оставляет файл-сироту: он логируется и не удаляется.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/portfolio-tracker/internal/domain/model"
	"github.com/bigkaa/portfolio-tracker/internal/repository"
	"github.com/bigkaa/portfolio-tracker/internal/storage/filestore"
	"github.com/bigkaa/portfolio-tracker/internal/storage/xlsx"
)

// NoHoldingsMessage — ответ для пользователя без позиций.
const NoHoldingsMessage = "No holdings found for this user."

var reportsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pt_reports_generated_total",
	Help: "Количество запросов генерации отчёта по формату и результату",
}, []string{"format", "result"})

// HoldingCounter — источник количества позиций пользователя.
type HoldingCounter interface {
	Count(ctx context.Context, userID string) (int, error)
}

// ReportWriter — запись файла отчёта на диск.
type ReportWriter interface {
	Save(ownerID string, at time.Time, write func(w io.Writer) error) (*filestore.SaveResult, error)
}

// ReportCreator — вставка записи отчёта в хранилище.
type ReportCreator interface {
	Create(ctx context.Context, r *model.Report) error
}

// GenerateResult — результат генерации.
// Ровно одно из: NoHoldings, Rows (json), Report (excel).
type GenerateResult struct {
	NoHoldings bool
	Rows       []model.AllocationRow
	Report     *model.Report
}

// ReportGenerator — генератор отчётов об аллокации.
type ReportGenerator struct {
	holdings   HoldingCounter
	allocation repository.AllocationRepository
	reports    ReportCreator
	files      ReportWriter
	clock      Clock
	ttl        time.Duration
	logger     *slog.Logger
}

// NewReportGenerator создаёт генератор. ttl — время жизни excel-отчёта.
func NewReportGenerator(
	holdings HoldingCounter,
	allocation repository.AllocationRepository,
	reports ReportCreator,
	files ReportWriter,
	clock Clock,
	ttl time.Duration,
	logger *slog.Logger,
) *ReportGenerator {
	return &ReportGenerator{
		holdings:   holdings,
		allocation: allocation,
		reports:    reports,
		files:      files,
		clock:      clock,
		ttl:        ttl,
		logger:     logger.With(slog.String("component", "report_generator")),
	}
}

// Generate строит отчёт пользователя в формате format (json или excel).
func (g *ReportGenerator) Generate(ctx context.Context, userID, format string) (*GenerateResult, error) {
	if format != model.FormatJSON && format != model.FormatExcel {
		return nil, fmt.Errorf("%w: неизвестный формат %q, допустимые: json, excel", ErrValidation, format)
	}

	count, err := g.holdings.Count(ctx, userID)
	if err != nil {
		reportsGeneratedTotal.WithLabelValues(format, "error").Inc()
		return nil, fmt.Errorf("подсчёт позиций: %w", err)
	}
	if count == 0 {
		reportsGeneratedTotal.WithLabelValues(format, "no_holdings").Inc()
		return &GenerateResult{NoHoldings: true}, nil
	}

	rows, err := g.allocation.Allocation(ctx, userID)
	if err != nil {
		reportsGeneratedTotal.WithLabelValues(format, "error").Inc()
		return nil, fmt.Errorf("агрегация портфеля: %w", err)
	}

	if format == model.FormatJSON {
		reportsGeneratedTotal.WithLabelValues(format, "ok").Inc()
		return &GenerateResult{Rows: rows}, nil
	}

	now := g.clock.Now()
	saved, err := g.files.Save(userID, now, func(w io.Writer) error {
		return xlsx.WriteAllocation(w, rows)
	})
	if err != nil {
		reportsGeneratedTotal.WithLabelValues(format, "error").Inc()
		return nil, fmt.Errorf("запись файла отчёта: %w", err)
	}

	report := &model.Report{
		ID:        uuid.New().String(),
		OwnerID:   userID,
		FilePath:  saved.Path,
		ExpiresAt: now.Add(g.ttl),
	}
	if err := g.reports.Create(ctx, report); err != nil {
		reportsGeneratedTotal.WithLabelValues(format, "error").Inc()
		g.logger.Error("Файл отчёта записан, но запись не сохранена",
			slog.String("user_id", userID),
			slog.String("orphan_path", saved.Path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	reportsGeneratedTotal.WithLabelValues(format, "ok").Inc()
	g.logger.Info("Отчёт сгенерирован",
		slog.String("report_id", report.ID),
		slog.String("user_id", userID),
		slog.String("path", saved.Path),
		slog.Int64("size", saved.Size),
		slog.String("checksum", saved.Checksum),
		slog.Time("expires_at", report.ExpiresAt),
	)

	return &GenerateResult{Report: report}, nil
}
