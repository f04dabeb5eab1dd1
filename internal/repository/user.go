// user.go — репозиторий пользователей (таблица users).
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
)

// UserRepository — интерфейс для таблицы users.
type UserRepository interface {
	// Create регистрирует пользователя. Дублирующийся email — ErrConflict.
	Create(ctx context.Context, user *model.User) (string, error)
	// GetByID возвращает пользователя по id. Если не найден — ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByEmail возвращает пользователя по email. Если не найден — ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdateDisplayName изменяет отображаемое имя.
	UpdateDisplayName(ctx context.Context, id, displayName string) error
	// UpdatePassword заменяет bcrypt-хэш пароля.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// TouchLastLogin фиксирует время последнего входа.
	TouchLastLogin(ctx context.Context, id string) error
}

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

// Create регистрирует нового пользователя.
func (r *userRepo) Create(ctx context.Context, user *model.User) (string, error) {
	id := uuid.New().String()

	query := `
		INSERT INTO users (id, email, display_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, NOW())`

	_, err := r.db.Exec(ctx, query, id, user.Email, user.DisplayName, user.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrConflict
		}
		return "", fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	return id, nil
}

const userColumns = `id, email, display_name, password_hash, created_at, last_login_at`

// GetByID возвращает пользователя по id.
func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRow(ctx, query, id), id)
}

// GetByEmail возвращает пользователя по email.
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.db.QueryRow(ctx, query, email), email)
}

// UpdateDisplayName изменяет отображаемое имя пользователя.
func (r *userRepo) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET display_name = $2 WHERE id = $1`, id, displayName)
	if err != nil {
		return fmt.Errorf("ошибка обновления имени пользователя %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword заменяет хэш пароля пользователя.
func (r *userRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("ошибка обновления пароля пользователя %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastLogin фиксирует время последнего входа.
func (r *userRepo) TouchLastLogin(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления времени входа %s: %w", id, err)
	}
	return nil
}

// scanUser сканирует одну строку в User.
func (r *userRepo) scanUser(row pgx.Row, key string) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash,
		&u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя %s: %w", key, err)
	}
	return u, nil
}
