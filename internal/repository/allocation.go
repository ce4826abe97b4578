package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bigkaa/portfolio-tracker/internal/domain/model"
)

// AllocationRepository — агрегация портфеля по секторам и бумагам.
type AllocationRepository interface {
	// Allocation возвращает строки аллокации пользователя, упорядоченные
	// по сектору и доле бумаги внутри сектора (по убыванию).
	Allocation(ctx context.Context, userID string) ([]model.AllocationRow, error)
}

type allocationRepo struct {
	db DBTX
}

// NewAllocationRepository создаёт репозиторий агрегации.
func NewAllocationRepository(db DBTX) AllocationRepository {
	return &allocationRepo{db: db}
}

// Проценты округляются до двух знаков на стороне PostgreSQL.
const allocationQuery = `
	WITH stock_investments AS (
		SELECT
			i.industry_new_name AS sector,
			i.name AS stock_name,
			h.isin_no,
			SUM(h.quantity * h.avg_price) AS stock_investment
		FROM holdings h
		JOIN instruments i ON h.isin_no = i.isin_no
		WHERE h.user_id = $1
		GROUP BY i.industry_new_name, i.name, h.isin_no
	),
	sector_totals AS (
		SELECT sector, SUM(stock_investment) AS sector_total
		FROM stock_investments
		GROUP BY sector
	),
	portfolio_total AS (
		SELECT SUM(stock_investment) AS total_portfolio
		FROM stock_investments
	)
	SELECT
		s.sector,
		s.stock_name,
		s.isin_no,
		s.stock_investment::text,
		st.sector_total::text,
		ROUND(st.sector_total * 100.0 / p.total_portfolio, 2)::text,
		ROUND(s.stock_investment * 100.0 / st.sector_total, 2)::text AS stock_pct_within_sector,
		ROUND(s.stock_investment * 100.0 / p.total_portfolio, 2)::text
	FROM stock_investments s
	JOIN sector_totals st ON s.sector = st.sector
	JOIN portfolio_total p ON TRUE
	ORDER BY s.sector, ROUND(s.stock_investment * 100.0 / st.sector_total, 2) DESC, s.isin_no`

func (r *allocationRepo) Allocation(ctx context.Context, userID string) ([]model.AllocationRow, error) {
	rows, err := r.db.Query(ctx, allocationQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка агрегации портфеля: %w", err)
	}
	defer rows.Close()

	var result []model.AllocationRow
	for rows.Next() {
		var row model.AllocationRow
		var nums [5]string
		if err := rows.Scan(
			&row.Sector, &row.StockName, &row.ISIN,
			&nums[0], &nums[1], &nums[2], &nums[3], &nums[4],
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки аллокации: %w", err)
		}

		targets := []*decimal.Decimal{
			&row.StockInvestment, &row.SectorTotal, &row.SectorPctOfPortfolio,
			&row.StockPctWithinSector, &row.StockPctOfPortfolio,
		}
		for i, s := range nums {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("некорректное число %q: %w", s, err)
			}
			*targets[i] = d
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
