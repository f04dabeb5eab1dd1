// settings.go — обработчики пользовательских настроек.
package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/arturkryukov/phvinspect/report-module/internal/api/errors"
	"github.com/arturkryukov/phvinspect/report-module/internal/api/middleware"
	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
	"github.com/arturkryukov/phvinspect/report-module/internal/i18n"
	"github.com/arturkryukov/phvinspect/report-module/internal/repository"
)

// SettingsHandler — обработчики настроек отображения.
type SettingsHandler struct {
	settings repository.SettingsRepository
	logger   *slog.Logger
}

// NewSettingsHandler создаёт SettingsHandler.
func NewSettingsHandler(settings repository.SettingsRepository, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		logger:   logger.With(slog.String("component", "settings_handler")),
	}
}

// GetSettings — GET /api/v1/settings.
// Отсутствующая запись отдаётся как значения по умолчанию.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	settings, err := h.settings.Get(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("Ошибка чтения настроек", slog.String("error", err.Error()))
		apierrors.InternalError(w, i18n.T(r.Context(), "err_internal"))
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings — PUT /api/v1/settings. Полная замена настроек.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.Settings
	if err := decodeJSON(w, r, &settings); err != nil {
		apierrors.ValidationError(w, i18n.T(r.Context(), "err_invalid_request"))
		return
	}

	if !model.ValidLanguage(settings.Language) ||
		!model.ValidUnit(settings.DefaultUnit) ||
		!model.ValidDateFormat(settings.DateFormat) ||
		!settings.DefaultPineType.Valid() {
		apierrors.ValidationError(w, i18n.T(r.Context(), "err_invalid_request"))
		return
	}

	identity := middleware.IdentityFromContext(r.Context())
	if err := h.settings.Set(r.Context(), identity.UserID, settings); err != nil {
		h.logger.Error("Ошибка сохранения настроек", slog.String("error", err.Error()))
		apierrors.InternalError(w, i18n.T(r.Context(), "err_internal"))
		return
	}

	h.logger.Info("Настройки обновлены", slog.String("user_id", identity.UserID))
	writeJSON(w, http.StatusOK, settings)
}

// ResetSettings — POST /api/v1/settings/reset.
// Возвращает настройки к значениям по умолчанию.
func (h *SettingsHandler) ResetSettings(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	settings, err := h.settings.Reset(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("Ошибка сброса настроек", slog.String("error", err.Error()))
		apierrors.InternalError(w, i18n.T(r.Context(), "err_internal"))
		return
	}

	h.logger.Info("Настройки сброшены", slog.String("user_id", identity.UserID))
	writeJSON(w, http.StatusOK, settings)
}
