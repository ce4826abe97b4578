// Пакет xlsx — сериализация отчёта об аллокации в формат Excel.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/bigkaa/portfolio-tracker/internal/domain/model"
)

// SheetName — имя листа с данными отчёта.
const SheetName = "Allocation Report"

// ContentType — MIME-тип файлов xlsx.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Header — заголовки колонок, совпадают с JSON-полями AllocationRow.
var Header = []string{
	"sector",
	"stock_name",
	"isin_no",
	"stock_investment",
	"sector_total",
	"sector_pct_of_portfolio",
	"stock_pct_within_sector",
	"stock_pct_of_portfolio",
}

// WriteAllocation записывает строки аллокации в w как книгу xlsx
// с единственным листом SheetName.
func WriteAllocation(w io.Writer, rows []model.AllocationRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("ошибка переименования листа: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &Header); err != nil {
		return fmt.Errorf("ошибка записи заголовка: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			r.Sector,
			r.StockName,
			r.ISIN,
			r.StockInvestment.InexactFloat64(),
			r.SectorTotal.InexactFloat64(),
			r.SectorPctOfPortfolio.InexactFloat64(),
			r.StockPctWithinSector.InexactFloat64(),
			r.StockPctOfPortfolio.InexactFloat64(),
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("ошибка записи строки %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("ошибка сериализации xlsx: %w", err)
	}
	return nil
}
