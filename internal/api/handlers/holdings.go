// holdings.go — обработчики загрузки, просмотра и удаления позиций.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	apierrors "github.com/bigkaa/portfolio-tracker/internal/api/errors"
	"github.com/bigkaa/portfolio-tracker/internal/api/middleware"
	"github.com/bigkaa/portfolio-tracker/internal/service"
)

// holdingItem — элемент тела POST /api/v1/holdings.
// Числа принимаются и как JSON number, и как строка.
type holdingItem struct {
	ISIN     string          `json:"isin_no"`
	Quantity decimal.Decimal `json:"quantity"`
	AvgPrice decimal.Decimal `json:"avg_price"`
}

type uploadResponse struct {
	Status         string   `json:"status"`
	InsertedCount  int      `json:"inserted_records"`
	UpdatedCount   int      `json:"updated_records"`
	InvalidISINs   []string `json:"invalid_isins"`
	ProcessedCount int      `json:"processed_count"`
}

type instrumentResponse struct {
	Name          string `json:"name"`
	SectorName    string `json:"sector_name"`
	TradingSymbol string `json:"trading_symbol"`
}

type holdingResponse struct {
	ISIN       string              `json:"isin_no"`
	Quantity   json.Number         `json:"quantity"`
	AvgPrice   json.Number         `json:"avg_price"`
	Instrument *instrumentResponse `json:"instrument,omitempty"`
}

type holdingsListResponse struct {
	UserID   string            `json:"user_id"`
	Holdings []holdingResponse `json:"holdings"`
}

type deleteHoldingsResponse struct {
	Message      string `json:"message"`
	DeletedCount int    `json:"deleted_count"`
}

// decimalNumber отдаёт decimal как JSON number без потери точности.
func decimalNumber(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// UploadHoldings — POST /api/v1/holdings.
func (h *APIHandler) UploadHoldings(w http.ResponseWriter, r *http.Request) {
	var req []holdingItem
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}

	items := make([]service.HoldingItem, 0, len(req))
	for _, it := range req {
		items = append(items, service.HoldingItem{
			ISIN:     it.ISIN,
			Quantity: it.Quantity,
			AvgPrice: it.AvgPrice,
		})
	}

	result, err := h.holdings.Upload(r.Context(), middleware.UserIDFromContext(r.Context()), items)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка загрузки позиций")
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Status:         "success",
		InsertedCount:  result.Inserted,
		UpdatedCount:   result.Updated,
		InvalidISINs:   result.InvalidISINs,
		ProcessedCount: result.Inserted + result.Updated,
	})
}

// ListHoldings — GET /api/v1/holdings.
func (h *APIHandler) ListHoldings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	holdings, err := h.holdings.List(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения позиций")
		return
	}

	resp := holdingsListResponse{UserID: userID, Holdings: make([]holdingResponse, 0, len(holdings))}
	for _, hd := range holdings {
		item := holdingResponse{
			ISIN:     hd.ISIN,
			Quantity: decimalNumber(hd.Quantity),
			AvgPrice: decimalNumber(hd.AvgPrice),
		}
		if hd.Instrument != nil {
			item.Instrument = &instrumentResponse{
				Name:          hd.Instrument.Name,
				SectorName:    hd.Instrument.SectorName,
				TradingSymbol: hd.Instrument.TradingSymbol,
			}
		}
		resp.Holdings = append(resp.Holdings, item)
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteHoldings — DELETE /api/v1/holdings.
func (h *APIHandler) DeleteHoldings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	deleted, err := h.holdings.DeleteAll(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка удаления позиций")
		return
	}

	writeJSON(w, http.StatusOK, deleteHoldingsResponse{
		Message:      fmt.Sprintf("Deleted %d holdings for user %s", deleted, userID),
		DeletedCount: deleted,
	})
}
