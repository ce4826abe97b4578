package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bigkaa/portfolio-tracker/internal/domain/model"
)

// HoldingRepository — интерфейс для таблицы holdings.
type HoldingRepository interface {
	// Upsert вставляет или обновляет позиции пользователя в одной транзакции.
	// Возвращает количество вставленных и обновлённых строк.
	Upsert(ctx context.Context, userID string, holdings []*model.Holding) (inserted, updated int, err error)
	// ListWithInstruments возвращает позиции пользователя вместе с данными инструмента.
	ListWithInstruments(ctx context.Context, userID string) ([]*model.Holding, error)
	// DeleteAll удаляет все позиции пользователя, возвращает число удалённых.
	DeleteAll(ctx context.Context, userID string) (int, error)
	// Count возвращает количество позиций пользователя.
	Count(ctx context.Context, userID string) (int, error)
}

type holdingRepo struct {
	db PoolDB
}

// NewHoldingRepository создаёт репозиторий позиций.
func NewHoldingRepository(db PoolDB) HoldingRepository {
	return &holdingRepo{db: db}
}

func (r *holdingRepo) Upsert(ctx context.Context, userID string, holdings []*model.Holding) (int, int, error) {
	var inserted, updated int

	err := runInTx(ctx, r.db, func(tx pgx.Tx) error {
		for _, h := range holdings {
			query := `
				INSERT INTO holdings (user_id, isin_no, quantity, avg_price)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (user_id, isin_no) DO UPDATE SET
					quantity = EXCLUDED.quantity,
					avg_price = EXCLUDED.avg_price,
					updated_at = now()
				RETURNING (xmax = 0) AS is_insert`

			var isInsert bool
			err := tx.QueryRow(ctx, query,
				userID, h.ISIN, h.Quantity.String(), h.AvgPrice.String(),
			).Scan(&isInsert)
			if err != nil {
				return fmt.Errorf("ошибка upsert позиции %s: %w", h.ISIN, err)
			}
			if isInsert {
				inserted++
			} else {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inserted, updated, nil
}

func (r *holdingRepo) ListWithInstruments(ctx context.Context, userID string) ([]*model.Holding, error) {
	query := `
		SELECT h.user_id, h.isin_no, h.quantity::text, h.avg_price::text,
			h.created_at, h.updated_at,
			i.trading_symbol, i.name, i.sector_name, i.industry_new_name
		FROM holdings h
		JOIN instruments i ON i.isin_no = h.isin_no
		WHERE h.user_id = $1
		ORDER BY h.isin_no`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения позиций: %w", err)
	}
	defer rows.Close()

	var result []*model.Holding
	for rows.Next() {
		h := &model.Holding{Instrument: &model.Instrument{}}
		var qty, price string
		if err := rows.Scan(
			&h.UserID, &h.ISIN, &qty, &price, &h.CreatedAt, &h.UpdatedAt,
			&h.Instrument.TradingSymbol, &h.Instrument.Name,
			&h.Instrument.SectorName, &h.Instrument.IndustryName,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования позиции: %w", err)
		}
		h.Instrument.ISIN = h.ISIN
		if h.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("некорректное количество %q: %w", qty, err)
		}
		if h.AvgPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("некорректная цена %q: %w", price, err)
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

func (r *holdingRepo) DeleteAll(ctx context.Context, userID string) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM holdings WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления позиций: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *holdingRepo) Count(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM holdings WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта позиций: %w", err)
	}
	return count, nil
}
