package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Instrument — метаданные ценной бумаги (таблица instruments).
// Заполняется внешним импортом, сервис только читает.
type Instrument struct {
	ISIN          string
	TradingSymbol string
	Name          string
	SectorName    string
	IndustryName  string
}

// Holding — позиция пользователя по одному ISIN.
// Первичный ключ — (UserID, ISIN).
type Holding struct {
	UserID   string
	ISIN     string
	Quantity decimal.Decimal
	AvgPrice decimal.Decimal
	// Instrument — заполняется при чтении со связкой instruments
	Instrument *Instrument
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UpsertResult — итог загрузки позиций.
type UpsertResult struct {
	Inserted     int
	Updated      int
	InvalidISINs []string
}
