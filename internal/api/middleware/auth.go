// auth.go — middleware аутентификации запросов.
// Принимает два способа подтверждения личности:
//   - зашифрованный session cookie (браузерные клиенты)
//   - заголовок Authorization: Bearer <JWT> (API-клиенты)
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/arturkryukov/phvinspect/report-module/internal/api/errors"
	"github.com/arturkryukov/phvinspect/report-module/internal/auth"
	"github.com/arturkryukov/phvinspect/report-module/internal/i18n"
)

// Identity — аутентифицированный пользователь запроса.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
}

// contextKey — тип ключа контекста (избегаем коллизий).
type contextKey string

const contextKeyIdentity contextKey = "identity"

// IdentityFromContext извлекает Identity из контекста запроса.
// Возвращает nil если запрос не аутентифицирован.
func IdentityFromContext(ctx context.Context) *Identity {
	if id, ok := ctx.Value(contextKeyIdentity).(*Identity); ok {
		return id
	}
	return nil
}

// WithIdentity помещает Identity в контекст (используется в тестах обработчиков).
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, id)
}

// RequireAuth возвращает middleware, пропускающий только аутентифицированные
// запросы. Порядок проверки: session cookie → Bearer token. При отказе — 401.
func RequireAuth(sessions *auth.SessionManager, tokens *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := resolveIdentity(r, sessions, tokens)
			if identity == nil {
				errors.Unauthorized(w, i18n.T(r.Context(), "err_unauthorized"))
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveIdentity определяет пользователя из cookie или Bearer-токена.
func resolveIdentity(r *http.Request, sessions *auth.SessionManager, tokens *auth.TokenIssuer) *Identity {
	// 1. Session cookie
	if session, err := sessions.GetSessionFromRequest(r); err == nil && session != nil && !session.IsExpired() {
		return &Identity{
			UserID:      session.UserID,
			Email:       session.Email,
			DisplayName: session.DisplayName,
		}
	}

	// 2. Bearer token
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		if claims, err := tokens.Verify(token); err == nil {
			return &Identity{
				UserID: claims.Subject,
				Email:  claims.Email,
			}
		}
	}

	return nil
}
