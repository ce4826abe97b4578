package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bigkaa/portfolio-tracker/internal/domain/model"
	"github.com/bigkaa/portfolio-tracker/internal/storage/filestore"
	"github.com/bigkaa/portfolio-tracker/internal/testutil"
)

const testUser = "7c9e6679-7425-40de-944b-e07fc1f90ae7"

var testRows = []model.AllocationRow{
	{
		Sector:               "IT",
		StockName:            "TCS",
		ISIN:                 "INE467B01029",
		StockInvestment:      decimal.NewFromInt(300),
		SectorTotal:          decimal.NewFromInt(300),
		SectorPctOfPortfolio: decimal.NewFromInt(100),
		StockPctWithinSector: decimal.NewFromInt(100),
		StockPctOfPortfolio:  decimal.NewFromInt(100),
	},
}

type generatorFixture struct {
	gen     *ReportGenerator
	store   *memReports
	files   *filestore.FileStore
	clock   *testutil.StubClock
	holding *mockHoldings
	alloc   *mockAllocation
}

func newGeneratorFixture(t *testing.T, holdings int) *generatorFixture {
	t.Helper()

	files, err := filestore.New(filepath.Join(t.TempDir(), "reports"))
	if err != nil {
		t.Fatalf("filestore.New() ошибка: %v", err)
	}

	f := &generatorFixture{
		store: newMemReports(),
		files: files,
		clock: testutil.FixedClock(),
		holding: &mockHoldings{
			countFn: func(context.Context, string) (int, error) { return holdings, nil },
		},
		alloc: &mockAllocation{
			allocationFn: func(context.Context, string) ([]model.AllocationRow, error) { return testRows, nil },
		},
	}
	f.gen = NewReportGenerator(f.holding, f.alloc, f.store, f.files, f.clock, 5*time.Minute, testutil.Logger())
	return f
}

// fileCount возвращает количество файлов под корнем хранилища.
func (f *generatorFixture) fileCount(t *testing.T) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(f.files.BaseDir(), func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("обход директории: %v", err)
	}
	return n
}

func TestGenerate_NoHoldingsShortCircuits(t *testing.T) {
	for _, format := range []string{model.FormatJSON, model.FormatExcel} {
		t.Run(format, func(t *testing.T) {
			f := newGeneratorFixture(t, 0)
			f.alloc.allocationFn = func(context.Context, string) ([]model.AllocationRow, error) {
				t.Fatal("агрегация не должна вызываться без позиций")
				return nil, nil
			}

			res, err := f.gen.Generate(context.Background(), testUser, format)
			if err != nil {
				t.Fatalf("Generate() ошибка: %v", err)
			}
			if !res.NoHoldings || res.Report != nil || res.Rows != nil {
				t.Errorf("результат = %+v, ожидался NoHoldings", res)
			}
			if n := f.fileCount(t); n != 0 {
				t.Errorf("создано файлов: %d", n)
			}
			if n := f.store.count(); n != 0 {
				t.Errorf("создано записей: %d", n)
			}
		})
	}
}

func TestGenerate_JSONIsStateless(t *testing.T) {
	f := newGeneratorFixture(t, 1)

	res, err := f.gen.Generate(context.Background(), testUser, model.FormatJSON)
	if err != nil {
		t.Fatalf("Generate() ошибка: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0].ISIN != "INE467B01029" {
		t.Errorf("Rows = %+v", res.Rows)
	}
	if res.Report != nil {
		t.Error("json не должен создавать запись")
	}
	if f.fileCount(t) != 0 || f.store.count() != 0 {
		t.Error("json не должен оставлять файлов и записей")
	}
}

func TestGenerate_Excel(t *testing.T) {
	f := newGeneratorFixture(t, 1)
	now := f.clock.Now()

	res, err := f.gen.Generate(context.Background(), testUser, model.FormatExcel)
	if err != nil {
		t.Fatalf("Generate() ошибка: %v", err)
	}
	if res.Report == nil {
		t.Fatal("Report = nil")
	}

	got := f.store.get(t, res.Report.ID)
	if got.OwnerID != testUser {
		t.Errorf("OwnerID = %s", got.OwnerID)
	}
	if !got.ExpiresAt.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, хотели now+5m", got.ExpiresAt)
	}
	if got.Downloaded || got.IsDeleted || got.DeletedAt != nil {
		t.Errorf("флаги новой записи: %+v", got)
	}
	if got.FilePath != f.files.ReportPath(testUser, now) {
		t.Errorf("FilePath = %s", got.FilePath)
	}
	if !f.files.Exists(got.FilePath) {
		t.Error("файл отчёта не создан")
	}
}

func TestGenerate_TwoInstantsTwoReports(t *testing.T) {
	f := newGeneratorFixture(t, 1)
	ctx := context.Background()

	first, err := f.gen.Generate(ctx, testUser, model.FormatExcel)
	if err != nil {
		t.Fatalf("первый Generate() ошибка: %v", err)
	}
	f.clock.Advance(time.Second)
	second, err := f.gen.Generate(ctx, testUser, model.FormatExcel)
	if err != nil {
		t.Fatalf("второй Generate() ошибка: %v", err)
	}

	if first.Report.ID == second.Report.ID {
		t.Error("ID отчётов совпадают")
	}
	if first.Report.FilePath == second.Report.FilePath {
		t.Error("пути файлов совпадают")
	}
	if f.store.count() != 2 || f.fileCount(t) != 2 {
		t.Errorf("записей %d, файлов %d, хотели по 2", f.store.count(), f.fileCount(t))
	}
}

func TestGenerate_InsertFailureLeavesOrphanFile(t *testing.T) {
	f := newGeneratorFixture(t, 1)
	f.store.createErr = errors.New("connection reset")

	_, err := f.gen.Generate(context.Background(), testUser, model.FormatExcel)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("ожидался ErrPersistence, получили %v", err)
	}
	if f.store.count() != 0 {
		t.Error("запись не должна появиться")
	}
	if !f.files.Exists(f.files.ReportPath(testUser, f.clock.Now())) {
		t.Error("файл-сирота должен остаться на диске")
	}
}

func TestGenerate_WriteFailureCreatesNoRecord(t *testing.T) {
	f := newGeneratorFixture(t, 1)

	// Файл с тем же моментом уже существует
	if _, err := f.gen.Generate(context.Background(), testUser, model.FormatExcel); err != nil {
		t.Fatalf("Generate() ошибка: %v", err)
	}
	_, err := f.gen.Generate(context.Background(), testUser, model.FormatExcel)
	if !errors.Is(err, filestore.ErrFileExists) {
		t.Fatalf("ожидался ErrFileExists, получили %v", err)
	}
	if f.store.count() != 1 {
		t.Errorf("записей = %d, хотели 1", f.store.count())
	}
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("неизвестный формат", func(t *testing.T) {
		f := newGeneratorFixture(t, 1)
		if _, err := f.gen.Generate(context.Background(), testUser, "csv"); !errors.Is(err, ErrValidation) {
			t.Errorf("ожидался ErrValidation, получили %v", err)
		}
	})

	t.Run("ошибка подсчёта позиций", func(t *testing.T) {
		f := newGeneratorFixture(t, 1)
		f.holding.countFn = func(context.Context, string) (int, error) { return 0, errors.New("db down") }
		if _, err := f.gen.Generate(context.Background(), testUser, model.FormatExcel); err == nil {
			t.Error("ожидалась ошибка")
		}
		if f.fileCount(t) != 0 {
			t.Error("файл не должен создаваться")
		}
	})
}
