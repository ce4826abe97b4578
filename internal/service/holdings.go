// holdings.go — загрузка, просмотр и удаление позиций пользователя.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/bigkaa/portfolio-tracker/internal/domain/model"
	"github.com/bigkaa/portfolio-tracker/internal/repository"
)

// isinPattern — 2 буквы страны, 9 алфанумерических символов, контрольная цифра.
var isinPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

// HoldingItem — одна позиция во входных данных загрузки.
type HoldingItem struct {
	ISIN     string
	Quantity decimal.Decimal
	AvgPrice decimal.Decimal
}

// ISINChecker — проверка существования ISIN в справочнике.
type ISINChecker interface {
	Known(ctx context.Context, isins []string) (map[string]bool, error)
}

// HoldingService — сервис позиций.
type HoldingService struct {
	holdings repository.HoldingRepository
	isins    ISINChecker
	logger   *slog.Logger
}

// NewHoldingService создаёт сервис позиций.
func NewHoldingService(holdings repository.HoldingRepository, isins ISINChecker, logger *slog.Logger) *HoldingService {
	return &HoldingService{
		holdings: holdings,
		isins:    isins,
		logger:   logger.With(slog.String("component", "holding_service")),
	}
}

// Upload валидирует позиции и сохраняет известные ISIN одной транзакцией.
// Неизвестные ISIN пропускаются и возвращаются в InvalidISINs.
func (s *HoldingService) Upload(ctx context.Context, userID string, items []HoldingItem) (*model.UpsertResult, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: пустой список позиций", ErrValidation)
	}

	isins := make([]string, 0, len(items))
	for i, item := range items {
		if !isinPattern.MatchString(item.ISIN) {
			return nil, fmt.Errorf("%w: позиция %d: некорректный ISIN %q", ErrValidation, i, item.ISIN)
		}
		if !item.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: позиция %d: quantity должно быть больше 0", ErrValidation, i)
		}
		if !item.AvgPrice.IsPositive() {
			return nil, fmt.Errorf("%w: позиция %d: avg_price должно быть больше 0", ErrValidation, i)
		}
		isins = append(isins, item.ISIN)
	}

	known, err := s.isins.Known(ctx, isins)
	if err != nil {
		return nil, fmt.Errorf("проверка ISIN: %w", err)
	}
	if len(known) == 0 {
		return nil, fmt.Errorf("%w: No valid ISIN numbers found", ErrValidation)
	}

	result := &model.UpsertResult{InvalidISINs: []string{}}
	valid := make([]*model.Holding, 0, len(items))
	for _, item := range items {
		if !known[item.ISIN] {
			result.InvalidISINs = append(result.InvalidISINs, item.ISIN)
			continue
		}
		valid = append(valid, &model.Holding{
			UserID:   userID,
			ISIN:     item.ISIN,
			Quantity: item.Quantity,
			AvgPrice: item.AvgPrice,
		})
	}

	result.Inserted, result.Updated, err = s.holdings.Upsert(ctx, userID, valid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.logger.Info("Позиции загружены",
		slog.String("user_id", userID),
		slog.Int("inserted", result.Inserted),
		slog.Int("updated", result.Updated),
		slog.Int("invalid", len(result.InvalidISINs)),
	)
	return result, nil
}

// List возвращает позиции пользователя с данными инструментов.
func (s *HoldingService) List(ctx context.Context, userID string) ([]*model.Holding, error) {
	holdings, err := s.holdings.ListWithInstruments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("получение позиций: %w", err)
	}
	if len(holdings) == 0 {
		return nil, fmt.Errorf("%w: No holdings found for user %s", ErrNotFound, userID)
	}
	return holdings, nil
}

// DeleteAll удаляет все позиции пользователя и возвращает их количество.
func (s *HoldingService) DeleteAll(ctx context.Context, userID string) (int, error) {
	count, err := s.holdings.Count(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("подсчёт позиций: %w", err)
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: No holdings found for user %s", ErrNotFound, userID)
	}

	deleted, err := s.holdings.DeleteAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.logger.Info("Позиции удалены",
		slog.String("user_id", userID),
		slog.Int("deleted", deleted),
	)
	return deleted, nil
}

// Count возвращает количество позиций пользователя.
func (s *HoldingService) Count(ctx context.Context, userID string) (int, error) {
	return s.holdings.Count(ctx, userID)
}
