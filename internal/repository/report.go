package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/portfolio-tracker/internal/domain/model"
)

// ReportRepository — хранилище метаданных отчётов (таблица reports).
// Строки не удаляются физически: очистка выставляет is_deleted.
type ReportRepository interface {
	// Create вставляет новую запись отчёта.
	Create(ctx context.Context, r *model.Report) error
	// GetByID возвращает отчёт по UUID.
	GetByID(ctx context.Context, id string) (*model.Report, error)
	// GetLatestByOwner возвращает отчёт владельца с наибольшим expires_at
	// (включая удалённые).
	GetLatestByOwner(ctx context.Context, ownerID string) (*model.Report, error)
	// ListByOwner возвращает все отчёты владельца, новые первыми.
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Report, error)
	// MarkDownloaded выставляет downloaded = true (только false → true).
	MarkDownloaded(ctx context.Context, id string) error
	// ListExpired возвращает неудалённые отчёты с expires_at < now.
	ListExpired(ctx context.Context, now time.Time) ([]*model.Report, error)
	// MarkDeleted одним коммитом помечает отчёты удалёнными.
	// Возвращает количество фактически изменённых строк.
	MarkDeleted(ctx context.Context, marks []model.DeletionMark) (int, error)
}

// PoolDB — пул, выполняющий запросы и открывающий транзакции.
// Реализуется *pgxpool.Pool и pgx.Tx.
type PoolDB interface {
	DBTX
	TxBeginner
}

type reportRepo struct {
	db PoolDB
}

// NewReportRepository создаёт репозиторий отчётов.
func NewReportRepository(db PoolDB) ReportRepository {
	return &reportRepo{db: db}
}

const reportColumns = `id, user_id, file_path, expires_at, downloaded, is_deleted, deleted_at, created_at`

func scanReport(row pgx.Row) (*model.Report, error) {
	r := &model.Report{}
	err := row.Scan(
		&r.ID, &r.OwnerID, &r.FilePath, &r.ExpiresAt,
		&r.Downloaded, &r.IsDeleted, &r.DeletedAt, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *reportRepo) Create(ctx context.Context, rep *model.Report) error {
	query := `
		INSERT INTO reports (id, user_id, file_path, expires_at, downloaded, is_deleted)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		rep.ID, rep.OwnerID, rep.FilePath, rep.ExpiresAt, rep.Downloaded,
	).Scan(&rep.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: отчёт %s уже существует", ErrConflict, rep.ID)
		}
		return fmt.Errorf("ошибка создания отчёта: %w", err)
	}
	return nil
}

func (r *reportRepo) GetByID(ctx context.Context, id string) (*model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	rep, err := scanReport(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения отчёта: %w", err)
	}
	return rep, nil
}

func (r *reportRepo) GetLatestByOwner(ctx context.Context, ownerID string) (*model.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE user_id = $1
		ORDER BY expires_at DESC
		LIMIT 1`

	rep, err := scanReport(r.db.QueryRow(ctx, query, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения последнего отчёта: %w", err)
	}
	return rep, nil
}

func (r *reportRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE user_id = $1
		ORDER BY expires_at DESC`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка отчётов: %w", err)
	}
	defer rows.Close()

	var result []*model.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования отчёта: %w", err)
		}
		result = append(result, rep)
	}
	return result, rows.Err()
}

func (r *reportRepo) MarkDownloaded(ctx context.Context, id string) error {
	query := `UPDATE reports SET downloaded = TRUE WHERE id = $1 AND downloaded = FALSE`

	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("ошибка отметки скачивания отчёта: %w", err)
	}
	return nil
}

func (r *reportRepo) ListExpired(ctx context.Context, now time.Time) ([]*model.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE is_deleted = FALSE AND expires_at < $1
		ORDER BY expires_at`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки просроченных отчётов: %w", err)
	}
	defer rows.Close()

	var result []*model.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования отчёта: %w", err)
		}
		result = append(result, rep)
	}
	return result, rows.Err()
}

// MarkDeleted отправляет все UPDATE одним batch внутри одной транзакции.
// При ошибке любого шага или коммита ни одна строка не меняется.
func (r *reportRepo) MarkDeleted(ctx context.Context, marks []model.DeletionMark) (int, error) {
	if len(marks) == 0 {
		return 0, nil
	}

	flipped := 0
	err := runInTx(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, m := range marks {
			batch.Queue(`
				UPDATE reports
				SET is_deleted = TRUE, deleted_at = $2
				WHERE id = $1 AND is_deleted = FALSE`,
				m.ReportID, m.DeletedAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for _, m := range marks {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return fmt.Errorf("ошибка soft delete отчёта %s: %w", m.ReportID, err)
			}
			flipped += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}
	return flipped, nil
}
