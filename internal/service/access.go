// access.go — выдача ранее сгенерированного отчёта владельцу.
// Срок и владелец проверяются в момент чтения, а не очисткой.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/portfolio-tracker/internal/domain/model"
	"github.com/bigkaa/portfolio-tracker/internal/repository"
)

var reportDownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pt_report_downloads_total",
	Help: "Количество запросов скачивания отчёта по результату",
}, []string{"result"})

// ReportReader — чтение записей отчётов для выдачи.
type ReportReader interface {
	GetByID(ctx context.Context, id string) (*model.Report, error)
	GetLatestByOwner(ctx context.Context, ownerID string) (*model.Report, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Report, error)
	MarkDownloaded(ctx context.Context, id string) error
}

// ReportOpener — открытие файла отчёта по сохранённому пути.
type ReportOpener interface {
	Open(path string) (*os.File, error)
}

// Download — открытый файл отчёта. Вызывающий код закрывает File.
type Download struct {
	Report   *model.Report
	File     *os.File
	Filename string
	ModTime  time.Time
}

// ReportAccessGate — проверка доступа и выдача файлов отчётов.
type ReportAccessGate struct {
	reports ReportReader
	files   ReportOpener
	clock   Clock
	logger  *slog.Logger
}

// NewReportAccessGate создаёт ReportAccessGate.
func NewReportAccessGate(reports ReportReader, files ReportOpener, clock Clock, logger *slog.Logger) *ReportAccessGate {
	return &ReportAccessGate{
		reports: reports,
		files:   files,
		clock:   clock,
		logger:  logger.With(slog.String("component", "report_access")),
	}
}

// Open возвращает файл отчёта reportID, а при пустом reportID — отчёт
// пользователя с наибольшим expires_at.
//
// Ошибки: ErrValidation (некорректный UUID), ErrNotFound, ErrForbidden,
// ErrGone (истёк или удалён), ErrUnavailable (файл отсутствует на диске).
func (g *ReportAccessGate) Open(ctx context.Context, userID, reportID string) (*Download, error) {
	report, err := g.lookup(ctx, userID, reportID)
	if err != nil {
		reportDownloadsTotal.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	now := g.clock.Now()
	if report.IsDeleted || report.IsExpired(now) {
		reportDownloadsTotal.WithLabelValues("gone").Inc()
		return nil, fmt.Errorf("%w: отчёт %s истёк %s", ErrGone, report.ID, report.ExpiresAt.Format(time.RFC3339))
	}

	f, err := g.files.Open(report.FilePath)
	if err != nil {
		reportDownloadsTotal.WithLabelValues("unavailable").Inc()
		g.logger.Warn("Файл отчёта недоступен",
			slog.String("report_id", report.ID),
			slog.String("path", report.FilePath),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	modTime := report.CreatedAt
	if info, statErr := f.Stat(); statErr == nil {
		modTime = info.ModTime()
	}

	if !report.Downloaded {
		if err := g.reports.MarkDownloaded(ctx, report.ID); err != nil {
			g.logger.Warn("Не удалось отметить отчёт скачанным",
				slog.String("report_id", report.ID),
				slog.String("error", err.Error()),
			)
		} else {
			report.Downloaded = true
		}
	}

	reportDownloadsTotal.WithLabelValues("ok").Inc()
	g.logger.Debug("Отчёт выдан",
		slog.String("report_id", report.ID),
		slog.String("user_id", userID),
	)

	return &Download{
		Report:   report,
		File:     f,
		Filename: filepath.Base(report.FilePath),
		ModTime:  modTime,
	}, nil
}

// List возвращает все отчёты пользователя (включая удалённые), новые первыми.
func (g *ReportAccessGate) List(ctx context.Context, userID string) ([]*model.Report, error) {
	reports, err := g.reports.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("получение отчётов: %w", err)
	}
	return reports, nil
}

// Now возвращает текущее время часов сервиса (для вычисления состояния).
func (g *ReportAccessGate) Now() time.Time {
	return g.clock.Now()
}

func (g *ReportAccessGate) lookup(ctx context.Context, userID, reportID string) (*model.Report, error) {
	if reportID == "" {
		report, err := g.reports.GetLatestByOwner(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: у пользователя нет отчётов", ErrNotFound)
			}
			return nil, fmt.Errorf("получение последнего отчёта: %w", err)
		}
		return report, nil
	}

	if _, err := uuid.Parse(reportID); err != nil {
		return nil, fmt.Errorf("%w: некорректный report_id %q", ErrValidation, reportID)
	}

	report, err := g.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: отчёт %s не найден", ErrNotFound, reportID)
		}
		return nil, fmt.Errorf("получение отчёта: %w", err)
	}
	if report.OwnerID != userID {
		return nil, fmt.Errorf("%w: отчёт %s принадлежит другому пользователю", ErrForbidden, reportID)
	}
	return report, nil
}

// outcome возвращает метку метрики для ошибки поиска отчёта.
func outcome(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
