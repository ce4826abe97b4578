// sweeper.go — фоновая очистка просроченных отчётов.
//
// Каждый цикл:
//  1. Выбирает записи is_deleted = false AND expires_at < now
//  2. Удаляет файл каждой записи; ошибка по одному файлу не прерывает цикл
//  3. Помечает каждую запись удалённой в памяти, независимо от исхода удаления файла
//  4. Фиксирует все отметки одним коммитом; при ошибке коммита ничего не меняется,
//     записи будут повторно обработаны в следующем цикле
//
// Запускается как горутина с периодическим тикером (PT_SWEEP_INTERVAL).
// Циклы не перекрываются. Stop возвращает управление только после выхода из цикла.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/portfolio-tracker/internal/domain/model"
)

// Prometheus метрики очистки
var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pt_sweep_runs_total",
		Help: "Общее количество циклов очистки отчётов",
	})

	sweepFilesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pt_sweep_files_deleted_total",
		Help: "Количество файлов отчётов, удалённых очисткой",
	})

	sweepFileErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pt_sweep_file_errors_total",
		Help: "Количество ошибок удаления файлов отчётов",
	})

	sweepRecordsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pt_sweep_records_deleted_total",
		Help: "Количество записей отчётов, помеченных удалёнными",
	})

	sweepCommitFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pt_sweep_commit_failures_total",
		Help: "Количество неудачных коммитов soft delete",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pt_sweep_duration_seconds",
		Help:    "Длительность цикла очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepStore — операции хранилища, нужные очистке.
type SweepStore interface {
	ListExpired(ctx context.Context, now time.Time) ([]*model.Report, error)
	MarkDeleted(ctx context.Context, marks []model.DeletionMark) (int, error)
}

// FileRemover — идемпотентное удаление файла отчёта.
// removed = false означает, что файла уже не было.
type FileRemover interface {
	Delete(path string) (removed bool, err error)
}

// SweepResult — результат одного цикла очистки.
type SweepResult struct {
	// Expired — количество найденных просроченных записей
	Expired int
	// FilesDeleted — количество удалённых файлов
	FilesDeleted int
	// FilesMissing — файлов уже не было на диске
	FilesMissing int
	// FileErrors — ошибки удаления файлов
	FileErrors int
	// Marked — количество записей, помеченных удалёнными после коммита
	Marked int
	// Err — ошибка выборки или коммита (записи будут обработаны повторно)
	Err error
	// Duration — длительность цикла
	Duration time.Duration
}

// SweeperService — фоновая очистка просроченных отчётов.
type SweeperService struct {
	store    SweepStore
	files    FileRemover
	clock    Clock
	interval time.Duration
	logger   *slog.Logger

	mu sync.Mutex // защита от параллельного запуска RunOnce

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSweeperService создаёт сервис очистки.
func NewSweeperService(
	store SweepStore,
	files FileRemover,
	clock Clock,
	interval time.Duration,
	logger *slog.Logger,
) *SweeperService {
	return &SweeperService{
		store:    store,
		files:    files,
		clock:    clock,
		interval: interval,
		logger:   logger.With(slog.String("component", "sweeper")),
	}
}

// Start запускает фоновую горутину очистки. Повторный вызов без Stop игнорируется.
func (s *SweeperService) Start(ctx context.Context) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.done != nil {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(sweepCtx, s.done)

	s.logger.Info("Очистка отчётов запущена",
		slog.String("interval", s.interval.String()),
	)
}

// Stop отменяет цикл и ждёт выхода горутины.
// После возврата очистка больше не обращается к хранилищу.
func (s *SweeperService) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.done == nil {
		return
	}

	s.cancel()
	<-s.done
	s.done = nil
	s.cancel = nil

	s.logger.Info("Очистка отчётов остановлена")
}

// run — основной цикл фоновой горутины.
func (s *SweeperService) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	// Первый запуск — сразу после старта
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл очистки.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (s *SweeperService) RunOnce(ctx context.Context) *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}
	defer func() {
		result.Duration = time.Since(start)
		sweepRunsTotal.Inc()
		sweepDurationSeconds.Observe(result.Duration.Seconds())
	}()

	now := s.clock.Now()

	expired, err := s.store.ListExpired(ctx, now)
	if err != nil {
		result.Err = err
		s.logger.Error("Очистка: ошибка выборки просроченных отчётов",
			slog.String("error", err.Error()),
		)
		return result
	}
	result.Expired = len(expired)
	if len(expired) == 0 {
		s.logger.Debug("Очистка: просроченных отчётов нет")
		return result
	}

	marks := make([]model.DeletionMark, 0, len(expired))
	for _, r := range expired {
		s.deleteFile(r, result)
		marks = append(marks, model.DeletionMark{ReportID: r.ID, DeletedAt: s.clock.Now()})
	}

	sweepFilesDeletedTotal.Add(float64(result.FilesDeleted))
	sweepFileErrorsTotal.Add(float64(result.FileErrors))

	marked, err := s.store.MarkDeleted(ctx, marks)
	if err != nil {
		result.Err = err
		sweepCommitFailuresTotal.Inc()
		s.logger.Error("Очистка: ошибка коммита soft delete, записи будут обработаны повторно",
			slog.Int("records", len(marks)),
			slog.String("error", err.Error()),
		)
		return result
	}
	result.Marked = marked
	sweepRecordsDeletedTotal.Add(float64(marked))

	s.logger.Info("Очистка завершена",
		slog.Int("expired", result.Expired),
		slog.Int("files_deleted", result.FilesDeleted),
		slog.Int("files_missing", result.FilesMissing),
		slog.Int("file_errors", result.FileErrors),
		slog.Int("marked", result.Marked),
		slog.Duration("duration", time.Since(start)),
	)

	return result
}

// deleteFile удаляет файл отчёта и учитывает исход в result.
func (s *SweeperService) deleteFile(r *model.Report, result *SweepResult) {
	removed, err := s.files.Delete(r.FilePath)
	switch {
	case err != nil:
		result.FileErrors++
		s.logger.Error("Очистка: ошибка удаления файла",
			slog.String("report_id", r.ID),
			slog.String("path", r.FilePath),
			slog.String("error", err.Error()),
		)
	case removed:
		result.FilesDeleted++
		s.logger.Debug("Очистка: файл удалён",
			slog.String("report_id", r.ID),
			slog.String("path", r.FilePath),
		)
	default:
		result.FilesMissing++
		s.logger.Warn("Очистка: файл не найден (уже удалён?)",
			slog.String("report_id", r.ID),
			slog.String("path", r.FilePath),
		)
	}
}
