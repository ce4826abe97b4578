package model

import "time"

// User — зарегистрированный пользователь.
type User struct {
	// ID — UUID пользователя
	ID string
	// Email — уникальный адрес, используется как логин
	Email string
	// PasswordHash — bcrypt-хэш пароля
	PasswordHash string
	// CreatedAt — время регистрации
	CreatedAt time.Time
}
