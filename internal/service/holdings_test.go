package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bigkaa/portfolio-tracker/internal/domain/model"
	"github.com/bigkaa/portfolio-tracker/internal/testutil"
)

// mockInstruments — function-field mock для InstrumentRepository.
type mockInstruments struct {
	existingFn func(ctx context.Context, isins []string) (map[string]bool, error)
	calls      int
}

func (m *mockInstruments) ExistingISINs(ctx context.Context, isins []string) (map[string]bool, error) {
	m.calls++
	return m.existingFn(ctx, isins)
}

func knownISINs(known ...string) *mockInstruments {
	set := make(map[string]bool, len(known))
	for _, k := range known {
		set[k] = true
	}
	return &mockInstruments{
		existingFn: func(_ context.Context, isins []string) (map[string]bool, error) {
			result := make(map[string]bool)
			for _, isin := range isins {
				if set[isin] {
					result[isin] = true
				}
			}
			return result, nil
		},
	}
}

func item(isin string, qty, price int64) HoldingItem {
	return HoldingItem{ISIN: isin, Quantity: decimal.NewFromInt(qty), AvgPrice: decimal.NewFromInt(price)}
}

func TestUpload(t *testing.T) {
	var upserted []*model.Holding
	holdings := &mockHoldings{
		upsertFn: func(_ context.Context, _ string, h []*model.Holding) (int, int, error) {
			upserted = h
			return 1, 1, nil
		},
	}
	cache := NewInstrumentCache(knownISINs("INE002A01018", "INE467B01029"), 100, time.Minute)
	svc := NewHoldingService(holdings, cache, testutil.Logger())

	res, err := svc.Upload(context.Background(), testUser, []HoldingItem{
		item("INE002A01018", 10, 100),
		item("US0000000001", 1, 1),
		item("INE467B01029", 5, 50),
	})
	if err != nil {
		t.Fatalf("Upload() ошибка: %v", err)
	}

	if len(upserted) != 2 {
		t.Fatalf("upsert получил %d позиций, хотели 2", len(upserted))
	}
	if upserted[0].UserID != testUser || upserted[0].ISIN != "INE002A01018" {
		t.Errorf("первая позиция = %+v", upserted[0])
	}
	if res.Inserted != 1 || res.Updated != 1 {
		t.Errorf("Inserted/Updated = %d/%d", res.Inserted, res.Updated)
	}
	if len(res.InvalidISINs) != 1 || res.InvalidISINs[0] != "US0000000001" {
		t.Errorf("InvalidISINs = %v", res.InvalidISINs)
	}
}

func TestUpload_Validation(t *testing.T) {
	holdings := &mockHoldings{
		upsertFn: func(context.Context, string, []*model.Holding) (int, int, error) {
			t.Fatal("upsert не должен вызываться")
			return 0, 0, nil
		},
	}
	svc := NewHoldingService(holdings, NewInstrumentCache(knownISINs("INE002A01018"), 10, time.Minute), testutil.Logger())

	tests := []struct {
		name  string
		items []HoldingItem
	}{
		{"пустой список", nil},
		{"ISIN в нижнем регистре", []HoldingItem{item("ine002a01018", 1, 1)}},
		{"ISIN без контрольной цифры", []HoldingItem{item("INE002A0101X", 1, 1)}},
		{"нулевое количество", []HoldingItem{item("INE002A01018", 0, 1)}},
		{"отрицательная цена", []HoldingItem{item("INE002A01018", 1, -5)}},
		{"нет известных ISIN", []HoldingItem{item("US0000000001", 1, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Upload(context.Background(), testUser, tt.items); !errors.Is(err, ErrValidation) {
				t.Errorf("ожидался ErrValidation, получили %v", err)
			}
		})
	}
}

func TestUpload_PersistenceFailure(t *testing.T) {
	holdings := &mockHoldings{
		upsertFn: func(context.Context, string, []*model.Holding) (int, int, error) {
			return 0, 0, errors.New("tx aborted")
		},
	}
	svc := NewHoldingService(holdings, NewInstrumentCache(knownISINs("INE002A01018"), 10, time.Minute), testutil.Logger())

	_, err := svc.Upload(context.Background(), testUser, []HoldingItem{item("INE002A01018", 1, 1)})
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("ожидался ErrPersistence, получили %v", err)
	}
}

func TestListAndDeleteAll(t *testing.T) {
	count := 2
	holdings := &mockHoldings{
		countFn: func(context.Context, string) (int, error) { return count, nil },
		listFn: func(context.Context, string) ([]*model.Holding, error) {
			if count == 0 {
				return nil, nil
			}
			return []*model.Holding{{ISIN: "INE002A01018"}, {ISIN: "INE467B01029"}}, nil
		},
		deleteAllFn: func(context.Context, string) (int, error) {
			n := count
			count = 0
			return n, nil
		},
	}
	svc := NewHoldingService(holdings, NewInstrumentCache(knownISINs(), 10, time.Minute), testutil.Logger())
	ctx := context.Background()

	list, err := svc.List(ctx, testUser)
	if err != nil || len(list) != 2 {
		t.Fatalf("List() = %d, %v", len(list), err)
	}

	deleted, err := svc.DeleteAll(ctx, testUser)
	if err != nil || deleted != 2 {
		t.Fatalf("DeleteAll() = %d, %v", deleted, err)
	}

	if _, err := svc.List(ctx, testUser); !errors.Is(err, ErrNotFound) {
		t.Errorf("List() без позиций: ожидался ErrNotFound, получили %v", err)
	}
	if _, err := svc.DeleteAll(ctx, testUser); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteAll() без позиций: ожидался ErrNotFound, получили %v", err)
	}
	if n, _ := svc.Count(ctx, testUser); n != 0 {
		t.Errorf("Count() = %d", n)
	}
}

func TestInstrumentCache(t *testing.T) {
	repo := knownISINs("INE002A01018")
	cache := NewInstrumentCache(repo, 10, time.Minute)
	ctx := context.Background()

	got, err := cache.Known(ctx, []string{"INE002A01018", "US0000000001"})
	if err != nil {
		t.Fatalf("Known() ошибка: %v", err)
	}
	if !got["INE002A01018"] || got["US0000000001"] {
		t.Errorf("Known() = %v", got)
	}
	if repo.calls != 1 || cache.Len() != 1 {
		t.Errorf("calls=%d len=%d", repo.calls, cache.Len())
	}

	// Известный ISIN берётся из кэша без запроса
	if _, err := cache.Known(ctx, []string{"INE002A01018"}); err != nil {
		t.Fatalf("Known() ошибка: %v", err)
	}
	if repo.calls != 1 {
		t.Errorf("повторная проверка ушла в БД: calls=%d", repo.calls)
	}

	// Отсутствующие ISIN не кэшируются
	if _, err := cache.Known(ctx, []string{"US0000000001"}); err != nil {
		t.Fatalf("Known() ошибка: %v", err)
	}
	if repo.calls != 2 {
		t.Errorf("неизвестный ISIN должен проверяться в БД: calls=%d", repo.calls)
	}
}

func TestInstrumentCache_RepoError(t *testing.T) {
	repo := &mockInstruments{existingFn: func(context.Context, []string) (map[string]bool, error) {
		return nil, errors.New("db down")
	}}
	if _, err := NewInstrumentCache(repo, 10, time.Minute).Known(context.Background(), []string{"INE002A01018"}); err == nil {
		t.Error("ожидалась ошибка")
	}
}
