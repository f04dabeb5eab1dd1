// settings.go — репозиторий пользовательских настроек (таблица user_settings).
// Настройки хранятся одной JSONB-записью на пользователя.
// Отсутствующие или повреждённые данные прозрачно заменяются
// значениями по умолчанию — чтение настроек никогда не падает
// из-за содержимого.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
)

// SettingsRepository — интерфейс для таблицы user_settings.
type SettingsRepository interface {
	// Get возвращает настройки пользователя, наложенные на значения
	// по умолчанию. Отсутствие записи или битый JSON — не ошибка.
	Get(ctx context.Context, userID string) (model.Settings, error)
	// Set создаёт или обновляет настройки пользователя (upsert).
	Set(ctx context.Context, userID string, settings model.Settings) error
	// Reset записывает значения по умолчанию, не удаляя запись.
	Reset(ctx context.Context, userID string) (model.Settings, error)
}

// settingsRepo — реализация SettingsRepository.
type settingsRepo struct {
	db DBTX
}

// NewSettingsRepository создаёт репозиторий настроек.
func NewSettingsRepository(db DBTX) SettingsRepository {
	return &settingsRepo{db: db}
}

// Get возвращает настройки пользователя.
// Сохранённые поля накладываются на DefaultSettings: частично
// заполненная запись дополняется умолчаниями, битый JSON игнорируется.
func (r *settingsRepo) Get(ctx context.Context, userID string) (model.Settings, error) {
	defaults := model.DefaultSettings()

	var raw []byte
	err := r.db.QueryRow(ctx,
		`SELECT settings FROM user_settings WHERE user_id = $1`, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return defaults, nil
		}
		return defaults, fmt.Errorf("ошибка получения настроек пользователя %s: %w", userID, err)
	}

	// Merge поверх умолчаний: Unmarshal перезаписывает только
	// присутствующие в JSON поля. Битый JSON — fallback на умолчания.
	settings := defaults
	if err := json.Unmarshal(raw, &settings); err != nil {
		return defaults, nil
	}
	return settings, nil
}

// Set создаёт или обновляет настройки (INSERT ... ON CONFLICT DO UPDATE).
func (r *settingsRepo) Set(ctx context.Context, userID string, settings model.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("ошибка сериализации настроек: %w", err)
	}

	query := `
		INSERT INTO user_settings (user_id, settings)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET settings = EXCLUDED.settings,
			updated_at = NOW()`

	if _, err := r.db.Exec(ctx, query, userID, data); err != nil {
		return fmt.Errorf("ошибка сохранения настроек пользователя %s: %w", userID, err)
	}
	return nil
}

// Reset перезаписывает настройки значениями по умолчанию.
// Запись сохраняется (сброс не удаляет ключ).
func (r *settingsRepo) Reset(ctx context.Context, userID string) (model.Settings, error) {
	defaults := model.DefaultSettings()
	if err := r.Set(ctx, userID, defaults); err != nil {
		return defaults, err
	}
	return defaults, nil
}
