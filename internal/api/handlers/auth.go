// auth.go — обработчики регистрации и входа.
// Успешный вход устанавливает зашифрованный session cookie;
// API-клиенты могут вместо этого запросить Bearer-токен.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	apierrors "github.com/arturkryukov/phvinspect/report-module/internal/api/errors"
	"github.com/arturkryukov/phvinspect/report-module/internal/api/middleware"
	"github.com/arturkryukov/phvinspect/report-module/internal/auth"
	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
	"github.com/arturkryukov/phvinspect/report-module/internal/i18n"
	"github.com/arturkryukov/phvinspect/report-module/internal/repository"
)

// AuthHandler — обработчики аутентификации.
type AuthHandler struct {
	users    repository.UserRepository
	sessions *auth.SessionManager
	tokens   *auth.TokenIssuer
	logger   *slog.Logger
}

// NewAuthHandler создаёт AuthHandler.
func NewAuthHandler(
	users repository.UserRepository,
	sessions *auth.SessionManager,
	tokens *auth.TokenIssuer,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger.With(slog.String("component", "auth_handler")),
	}
}

// userResponse — проводной формат пользователя. Хэш пароля не выдаётся.
type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// registerRequest — тело запроса регистрации.
type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// Register — POST /api/v1/auth/register.
// Создаёт пользователя и сразу открывает сессию.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, i18n.T(r.Context(), "err_invalid_request"))
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(req.Email); err != nil {
		apierrors.ValidationError(w, i18n.T(r.Context(), "err_invalid_request"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
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

	user := &model.User{
		Email:        req.Email,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: hash,
	}
	id, err := h.users.Create(r.Context(), user)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			apierrors.Conflict(w, i18n.T(r.Context(), "err_email_in_use"))
			return
		}
		h.logger.Error("Ошибка создания пользователя", slog.String("error", err.Error()))
		apierrors.InternalError(w, i18n.T(r.Context(), "err_internal"))
		return
	}
	user.ID = id
	user.CreatedAt = time.Now().UTC()

	if err := h.openSession(w, user); err != nil {
		h.logger.Error("Ошибка открытия сессии", slog.String("error", err.Error()))
		apierrors.InternalError(w, i18n.T(r.Context(), "err_internal"))
		return
	}

	h.logger.Info("Пользователь зарегистрирован", slog.String("user_id", id))
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// loginRequest — тело запроса входа.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login — POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	user, ok := h.checkCredentials(w, r)
	if !ok {
		return
	}

	if err := h.openSession(w, user); err != nil {
		h.logger.Error("Ошибка открытия сессии", slog.String("error", err.Error()))
		apierrors.InternalError(w, i18n.T(r.Context(), "err_internal"))
		return
	}

	if err := h.users.TouchLastLogin(r.Context(), user.ID); err != nil {
		// Не критично для входа
		h.logger.Warn("Не удалось обновить время входа",
			slog.String("user_id", user.ID), slog.String("error", err.Error()))
	}

	h.logger.Info("Пользователь вошёл", slog.String("user_id", user.ID))
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Token — POST /api/v1/auth/token.
// Выпускает Bearer-токен для API-клиентов по тем же учётным данным.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	user, ok := h.checkCredentials(w, r)
	if !ok {
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		h.logger.Error("Ошибка выпуска токена", slog.String("error", err.Error()))
		apierrors.InternalError(w, i18n.T(r.Context(), "err_internal"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Logout — POST /api/v1/auth/logout. Удаляет session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me — GET /api/v1/auth/me. Возвращает текущего пользователя.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// checkCredentials читает loginRequest и проверяет пароль.
// Несуществующий email и неверный пароль дают одинаковый ответ 401.
func (h *AuthHandler) checkCredentials(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, i18n.T(r.Context(), "err_invalid_request"))
		return nil, false
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.users.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.Unauthorized(w, i18n.T(r.Context(), "err_invalid_credentials"))
			return nil, false
		}
		h.logger.Error("Ошибка чтения пользователя", slog.String("error", err.Error()))
		apierrors.InternalError(w, i18n.T(r.Context(), "err_internal"))
		return nil, false
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		apierrors.Unauthorized(w, i18n.T(r.Context(), "err_invalid_credentials"))
		return nil, false
	}

	return user, true
}

// openSession шифрует и устанавливает session cookie.
func (h *AuthHandler) openSession(w http.ResponseWriter, user *model.User) error {
	return h.sessions.SetSessionCookie(w, &auth.SessionData{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		ExpiresAt:   time.Now().Add(auth.SessionCookieMaxAge * time.Second).Unix(),
	})
}
