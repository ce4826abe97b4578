// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrForbidden — ресурс принадлежит другому пользователю.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrGone — срок действия отчёта истёк или отчёт удалён очисткой.
	ErrGone = errors.New("срок действия отчёта истёк")
	// ErrUnavailable — файл отчёта временно недоступен, запрос можно повторить.
	ErrUnavailable = errors.New("файл отчёта недоступен")
	// ErrPersistence — ошибка записи в хранилище метаданных.
	ErrPersistence = errors.New("ошибка сохранения данных")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("ресурс уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrInvalidCredentials — неизвестный email или неверный пароль.
	ErrInvalidCredentials = errors.New("Invalid Credentials")
)
