// user.go — модель пользователя (таблица users).
package model

import "time"

// User — учётная запись пользователя системы.
type User struct {
	// ID — UUID пользователя
	ID string
	// Email — e-mail, уникален, не изменяется после регистрации
	Email string
	// DisplayName — отображаемое имя (опционально)
	DisplayName string
	// PasswordHash — bcrypt-хэш пароля
	PasswordHash string
	// CreatedAt — время регистрации
	CreatedAt time.Time
	// LastLoginAt — время последнего входа (nil — ни разу не входил)
	LastLoginAt *time.Time
}
