package repository

import (
	"context"
	"fmt"
)

// InstrumentRepository — чтение справочника instruments.
// Таблица заполняется внешним импортом.
type InstrumentRepository interface {
	// ExistingISINs возвращает подмножество isins, присутствующих в справочнике.
	ExistingISINs(ctx context.Context, isins []string) (map[string]bool, error)
}

type instrumentRepo struct {
	db DBTX
}

// NewInstrumentRepository создаёт репозиторий инструментов.
func NewInstrumentRepository(db DBTX) InstrumentRepository {
	return &instrumentRepo{db: db}
}

func (r *instrumentRepo) ExistingISINs(ctx context.Context, isins []string) (map[string]bool, error) {
	result := make(map[string]bool, len(isins))
	if len(isins) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx, `SELECT isin_no FROM instruments WHERE isin_no = ANY($1)`, isins)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки ISIN: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var isin string
		if err := rows.Scan(&isin); err != nil {
			return nil, fmt.Errorf("ошибка сканирования ISIN: %w", err)
		}
		result[isin] = true
	}
	return result, rows.Err()
}
