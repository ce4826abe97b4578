// reports.go — обработчики генерации, скачивания и списка отчётов.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/bigkaa/portfolio-tracker/internal/api/middleware"
	"github.com/bigkaa/portfolio-tracker/internal/domain/model"
	"github.com/bigkaa/portfolio-tracker/internal/service"
	"github.com/bigkaa/portfolio-tracker/internal/storage/xlsx"
)

// allocationRowResponse — строка отчёта в JSON.
type allocationRowResponse struct {
	Sector               string      `json:"sector"`
	StockName            string      `json:"stock_name"`
	ISIN                 string      `json:"isin_no"`
	StockInvestment      json.Number `json:"stock_investment"`
	SectorTotal          json.Number `json:"sector_total"`
	SectorPctOfPortfolio json.Number `json:"sector_pct_of_portfolio"`
	StockPctWithinSector json.Number `json:"stock_pct_within_sector"`
	StockPctOfPortfolio  json.Number `json:"stock_pct_of_portfolio"`
}

type allocationJSONResponse struct {
	UserID string                  `json:"user_id"`
	Report []allocationRowResponse `json:"report"`
}

type reportGeneratedResponse struct {
	Message   string    `json:"message"`
	ReportID  string    `json:"report_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type reportRecordResponse struct {
	ID         string     `json:"id"`
	State      string     `json:"state"`
	FileName   string     `json:"file_name"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Downloaded bool       `json:"downloaded"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type reportListResponse struct {
	Reports []reportRecordResponse `json:"reports"`
}

func toAllocationRows(rows []model.AllocationRow) []allocationRowResponse {
	out := make([]allocationRowResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, allocationRowResponse{
			Sector:               row.Sector,
			StockName:            row.StockName,
			ISIN:                 row.ISIN,
			StockInvestment:      decimalNumber(row.StockInvestment),
			SectorTotal:          decimalNumber(row.SectorTotal),
			SectorPctOfPortfolio: decimalNumber(row.SectorPctOfPortfolio),
			StockPctWithinSector: decimalNumber(row.StockPctWithinSector),
			StockPctOfPortfolio:  decimalNumber(row.StockPctOfPortfolio),
		})
	}
	return out
}

// GenerateAllocationReport — GET /api/v1/reports/allocation?format=json|excel.
func (h *APIHandler) GenerateAllocationReport(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	format := r.URL.Query().Get("format")
	if format == "" {
		format = model.FormatJSON
	}

	result, err := h.generator.Generate(r.Context(), userID, format)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка генерации отчёта")
		return
	}

	switch {
	case result.NoHoldings:
		writeJSON(w, http.StatusOK, messageResponse{Message: service.NoHoldingsMessage})
	case result.Report != nil:
		writeJSON(w, http.StatusOK, reportGeneratedResponse{
			Message:   "Report generated",
			ReportID:  result.Report.ID,
			ExpiresAt: result.Report.ExpiresAt,
		})
	default:
		writeJSON(w, http.StatusOK, allocationJSONResponse{
			UserID: userID,
			Report: toAllocationRows(result.Rows),
		})
	}
}

// DownloadReport — GET /api/v1/reports/download[?report_id=].
// Без report_id отдаётся последний отчёт пользователя.
func (h *APIHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	dl, err := h.access.Open(r.Context(), userID, r.URL.Query().Get("report_id"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка скачивания отчёта")
		return
	}
	defer dl.File.Close()

	w.Header().Set("Content-Type", xlsx.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, dl.Filename))
	w.Header().Set("Cache-Control", "no-store")

	// http.ServeContent поддерживает Range и If-Modified-Since
	http.ServeContent(w, r, dl.Filename, dl.ModTime, dl.File)
}

// ListReports — GET /api/v1/reports.
func (h *APIHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	reports, err := h.access.List(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения отчётов")
		return
	}

	now := h.access.Now()
	resp := reportListResponse{Reports: make([]reportRecordResponse, 0, len(reports))}
	for _, rep := range reports {
		resp.Reports = append(resp.Reports, reportRecordResponse{
			ID:         rep.ID,
			State:      string(rep.State(now)),
			FileName:   filepath.Base(rep.FilePath),
			ExpiresAt:  rep.ExpiresAt,
			Downloaded: rep.Downloaded,
			DeletedAt:  rep.DeletedAt,
			CreatedAt:  rep.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
