package model

import "github.com/shopspring/decimal"

// AllocationRow — строка отчёта об аллокации портфеля по секторам.
type AllocationRow struct {
	Sector               string          `json:"sector"`
	StockName            string          `json:"stock_name"`
	ISIN                 string          `json:"isin_no"`
	StockInvestment      decimal.Decimal `json:"stock_investment"`
	SectorTotal          decimal.Decimal `json:"sector_total"`
	SectorPctOfPortfolio decimal.Decimal `json:"sector_pct_of_portfolio"`
	StockPctWithinSector decimal.Decimal `json:"stock_pct_within_sector"`
	StockPctOfPortfolio  decimal.Decimal `json:"stock_pct_of_portfolio"`
}
