// profile.go — обработчики профиля пользователя.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/arturkryukov/phvinspect/report-module/internal/api/errors"
	"github.com/arturkryukov/phvinspect/report-module/internal/api/middleware"
	"github.com/arturkryukov/phvinspect/report-module/internal/auth"
	"github.com/arturkryukov/phvinspect/report-module/internal/i18n"
	"github.com/arturkryukov/phvinspect/report-module/internal/repository"
)

// ProfileHandler — обработчики изменения профиля.
type ProfileHandler struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewProfileHandler создаёт ProfileHandler.
func NewProfileHandler(users repository.UserRepository, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		users:  users,
		logger: logger.With(slog.String("component", "profile_handler")),
	}
}

// UpdateProfile — PUT /api/v1/profile. Изменяет отображаемое имя.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"displayName"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, i18n.T(r.Context(), "err_invalid_request"))
		return
	}

	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		apierrors.ValidationError(w, i18n.T(r.Context(), "err_invalid_request"))
		return
	}

	identity := middleware.IdentityFromContext(r.Context())
	if err := h.users.UpdateDisplayName(r.Context(), identity.UserID, name); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.NotFound(w, i18n.T(r.Context(), "err_user_not_found"))
			return
		}
		h.logger.Error("Ошибка обновления профиля", slog.String("error", err.Error()))
		apierrors.InternalError(w, i18n.T(r.Context(), "err_internal"))
		return
	}

	h.logger.Info("Профиль обновлён", slog.String("user_id", identity.UserID))
	writeJSON(w, http.StatusOK, map[string]string{"displayName": name})
}

// ChangePassword — PUT /api/v1/profile/password.
// Требует повторного ввода текущего пароля.
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, i18n.T(r.Context(), "err_invalid_request"))
		return
	}

	identity := middleware.IdentityFromContext(r.Context())
	user, err := h.users.GetByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.NotFound(w, i18n.T(r.Context(), "err_user_not_found"))
			return
		}
		h.logger.Error("Ошибка чтения пользователя", slog.String("error", err.Error()))
		apierrors.InternalError(w, i18n.T(r.Context(), "err_internal"))
		return
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		apierrors.ValidationError(w, i18n.T(r.Context(), "err_wrong_password"))
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			apierrors.ValidationError(w,
				i18n.Tf(r.Context(), "err_password_too_short", auth.MinPasswordLength))
			return
		}
		h.logger.Error("Ошибка хэширования пароля", slog.String("error", err.Error()))
		apierrors.InternalError(w, i18n.T(r.Context(), "err_internal"))
		return
	}

	if err := h.users.UpdatePassword(r.Context(), identity.UserID, hash); err != nil {
		h.logger.Error("Ошибка обновления пароля", slog.String("error", err.Error()))
		apierrors.InternalError(w, i18n.T(r.Context(), "err_internal"))
		return
	}

	h.logger.Info("Пароль изменён", slog.String("user_id", identity.UserID))
	w.WriteHeader(http.StatusNoContent)
}
