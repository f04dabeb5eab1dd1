// password.go — хэширование и проверка паролей через bcrypt.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength — минимальная длина пароля.
const MinPasswordLength = 6

// ErrPasswordTooShort возвращается при пароле короче MinPasswordLength.
var ErrPasswordTooShort = errors.New("пароль слишком короткий")

// ErrWrongPassword возвращается при несовпадении пароля с хэшем.
var ErrWrongPassword = errors.New("неверный пароль")

// HashPassword проверяет длину пароля и возвращает его bcrypt-хэш.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword сравнивает пароль с bcrypt-хэшем.
// Возвращает ErrWrongPassword при несовпадении.
func VerifyPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrWrongPassword
	}
	return nil
}
