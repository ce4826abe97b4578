package model

import "time"

// Форматы отчёта об аллокации.
const (
	// FormatJSON — структурированные данные, без файла и без записи в хранилище.
	FormatJSON = "json"
	// FormatExcel — файл xlsx с временной записью в таблице reports.
	FormatExcel = "excel"
)

// ReportState — состояние жизненного цикла отчёта.
type ReportState string

const (
	// StateActive — не удалён, срок ещё не истёк.
	StateActive ReportState = "active"
	// StateExpiredPending — срок истёк, но очистка ещё не обработала запись.
	StateExpiredPending ReportState = "expired-pending"
	// StateDeleted — запись помечена удалённой (soft delete).
	StateDeleted ReportState = "deleted"
)

// Report — метаданные сгенерированного файла отчёта.
// Хранится в таблице reports, физически не удаляется.
type Report struct {
	// ID — UUID отчёта
	ID string
	// OwnerID — UUID пользователя, запросившего отчёт
	OwnerID string
	// FilePath — путь к файлу отчёта на диске
	FilePath string
	// ExpiresAt — момент, после которого отчёт не отдаётся
	ExpiresAt time.Time
	// Downloaded — отчёт хотя бы раз успешно отдан
	Downloaded bool
	// IsDeleted — запись обработана очисткой
	IsDeleted bool
	// DeletedAt — время soft delete (nil, пока IsDeleted = false)
	DeletedAt *time.Time
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

// IsExpired сообщает, истёк ли срок отчёта на момент now.
// Граница включительна: в момент ExpiresAt отчёт ещё доступен.
func (r *Report) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// State вычисляет состояние жизненного цикла на момент now.
func (r *Report) State(now time.Time) ReportState {
	switch {
	case r.IsDeleted:
		return StateDeleted
	case r.IsExpired(now):
		return StateExpiredPending
	default:
		return StateActive
	}
}

// DeletionMark — отметка soft delete, накопленная за цикл очистки.
type DeletionMark struct {
	ReportID  string
	DeletedAt time.Time
}
