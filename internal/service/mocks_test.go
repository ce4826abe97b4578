package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/portfolio-tracker/internal/domain/model"
	"github.com/bigkaa/portfolio-tracker/internal/repository"
)

// memReports — хранилище отчётов в памяти с семантикой таблицы reports:
// MarkDeleted атомарен, строки не удаляются.
type memReports struct {
	mu      sync.Mutex
	records map[string]*model.Report

	// Подмена поведения отдельных операций
	createErr       error
	markDeletedErr  error
	markDownloadErr error
	listExpiredFn   func(ctx context.Context, now time.Time) ([]*model.Report, error)

	listCalls int
}

func newMemReports() *memReports {
	return &memReports{records: make(map[string]*model.Report)}
}

func (m *memReports) Create(_ context.Context, r *model.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.records[r.ID]; ok {
		return repository.ErrConflict
	}
	cp := *r
	cp.Downloaded, cp.IsDeleted, cp.DeletedAt = false, false, nil
	m.records[r.ID] = &cp
	return nil
}

// put вставляет запись как есть, минуя проверки Create.
func (m *memReports) put(r *model.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.records[r.ID] = &cp
}

func (m *memReports) GetByID(_ context.Context, id string) (*model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memReports) GetLatestByOwner(ctx context.Context, ownerID string) (*model.Report, error) {
	list, _ := m.ListByOwner(ctx, ownerID)
	if len(list) == 0 {
		return nil, repository.ErrNotFound
	}
	return list[0], nil
}

func (m *memReports) ListByOwner(_ context.Context, ownerID string) ([]*model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*model.Report
	for _, r := range m.records {
		if r.OwnerID == ownerID {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExpiresAt.After(result[j].ExpiresAt) })
	return result, nil
}

func (m *memReports) MarkDownloaded(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markDownloadErr != nil {
		return m.markDownloadErr
	}
	if r, ok := m.records[id]; ok {
		r.Downloaded = true
	}
	return nil
}

func (m *memReports) ListExpired(ctx context.Context, now time.Time) ([]*model.Report, error) {
	m.mu.Lock()
	m.listCalls++
	fn := m.listExpiredFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, now)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*model.Report
	for _, r := range m.records {
		if !r.IsDeleted && r.ExpiresAt.Before(now) {
			cp := *r
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *memReports) MarkDeleted(_ context.Context, marks []model.DeletionMark) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markDeletedErr != nil {
		return 0, m.markDeletedErr
	}
	flipped := 0
	for _, mark := range marks {
		r, ok := m.records[mark.ReportID]
		if !ok || r.IsDeleted {
			continue
		}
		at := mark.DeletedAt
		r.IsDeleted = true
		r.DeletedAt = &at
		flipped++
	}
	return flipped, nil
}

func (m *memReports) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func (m *memReports) get(t *testing.T, id string) *model.Report {
	t.Helper()
	r, err := m.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("запись %s не найдена: %v", id, err)
	}
	return r
}

func (m *memReports) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// assertDeletedAtConsistent проверяет deleted_at != nil ⇔ is_deleted для всех записей.
func (m *memReports) assertDeletedAtConsistent(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if (r.DeletedAt != nil) != r.IsDeleted {
			t.Errorf("запись %s: is_deleted=%v, deleted_at=%v", id, r.IsDeleted, r.DeletedAt)
		}
	}
}

// mockHoldings — function-field mock для HoldingCounter и HoldingRepository.
type mockHoldings struct {
	countFn     func(ctx context.Context, userID string) (int, error)
	upsertFn    func(ctx context.Context, userID string, h []*model.Holding) (int, int, error)
	listFn      func(ctx context.Context, userID string) ([]*model.Holding, error)
	deleteAllFn func(ctx context.Context, userID string) (int, error)
}

func (m *mockHoldings) Count(ctx context.Context, userID string) (int, error) {
	return m.countFn(ctx, userID)
}

func (m *mockHoldings) Upsert(ctx context.Context, userID string, h []*model.Holding) (int, int, error) {
	return m.upsertFn(ctx, userID, h)
}

func (m *mockHoldings) ListWithInstruments(ctx context.Context, userID string) ([]*model.Holding, error) {
	return m.listFn(ctx, userID)
}

func (m *mockHoldings) DeleteAll(ctx context.Context, userID string) (int, error) {
	return m.deleteAllFn(ctx, userID)
}

// mockAllocation — function-field mock для AllocationRepository.
type mockAllocation struct {
	allocationFn func(ctx context.Context, userID string) ([]model.AllocationRow, error)
}

func (m *mockAllocation) Allocation(ctx context.Context, userID string) ([]model.AllocationRow, error) {
	return m.allocationFn(ctx, userID)
}

// failingRemover удаляет файлы через next, но возвращает ошибку для путей из fail.
type failingRemover struct {
	next FileRemover
	fail map[string]bool
}

func (f *failingRemover) Delete(path string) (bool, error) {
	if f.fail[path] {
		return false, errors.New("permission denied")
	}
	return f.next.Delete(path)
}
