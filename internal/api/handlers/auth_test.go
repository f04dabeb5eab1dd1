package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arturkryukov/phvinspect/report-module/internal/auth"
	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
	"github.com/arturkryukov/phvinspect/report-module/internal/repository"
)

func newTestAuthHandler(t *testing.T, users *mockUserRepo) *AuthHandler {
	t.Helper()
	sessions, err := auth.NewSessionManager("test-session-key", false)
	if err != nil {
		t.Fatalf("ошибка создания SessionManager: %v", err)
	}
	tokens := auth.NewTokenIssuer("test-jwt-secret", time.Hour)
	return NewAuthHandler(users, sessions, tokens, testLogger())
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestRegister(t *testing.T) {
	var created *model.User
	users := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) (string, error) {
			created = user
			return "user-new", nil
		},
	}
	h := newTestAuthHandler(t, users)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", jsonBody(t, map[string]string{
		"email":       "Inspector@Example.com",
		"password":    "secret123",
		"displayName": "Инспектор",
	}))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("ожидался статус 201, получен %d: %s", rec.Code, rec.Body.String())
	}
	if created == nil {
		t.Fatal("пользователь не был создан")
	}
	if created.Email != "inspector@example.com" {
		t.Errorf("email должен быть нормализован к нижнему регистру, получен %q", created.Email)
	}
	if created.PasswordHash == "secret123" || created.PasswordHash == "" {
		t.Error("пароль должен храниться в виде bcrypt-хэша")
	}
	if c := sessionCookie(rec); c == nil || c.Value == "" {
		t.Error("успешная регистрация должна устанавливать session cookie")
	}
	resp := decodeResponse[userResponse](t, rec)
	if resp.ID != "user-new" {
		t.Errorf("ожидался id user-new, получен %q", resp.ID)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) (string, error) {
			return "", repository.ErrConflict
		},
	}
	h := newTestAuthHandler(t, users)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", jsonBody(t, map[string]string{
		"email":    "busy@example.com",
		"password": "secret123",
	}))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("ожидался статус 409, получен %d", rec.Code)
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	h := newTestAuthHandler(t, &mockUserRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", jsonBody(t, map[string]string{
		"email":    "inspector@example.com",
		"password": "abc",
	}))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидался статус 400 для короткого пароля, получен %d", rec.Code)
	}
}

func TestRegister_InvalidEmail(t *testing.T) {
	h := newTestAuthHandler(t, &mockUserRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", jsonBody(t, map[string]string{
		"email":    "не-адрес",
		"password": "secret123",
	}))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидался статус 400 для недопустимого email, получен %d", rec.Code)
	}
}

func loginUsers(t *testing.T, touched *bool) *mockUserRepo {
	t.Helper()
	hash, err := auth.HashPassword("secret123")
	if err != nil {
		t.Fatalf("ошибка хэширования: %v", err)
	}
	return &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			if email != "inspector@example.com" {
				return nil, repository.ErrNotFound
			}
			return &model.User{
				ID:           testUserID,
				Email:        email,
				DisplayName:  "Инспектор",
				PasswordHash: hash,
				CreatedAt:    time.Now(),
			}, nil
		},
		touchLastLoginFn: func(ctx context.Context, id string) error {
			if touched != nil {
				*touched = true
			}
			return nil
		},
	}
}

func TestLogin(t *testing.T) {
	var touched bool
	h := newTestAuthHandler(t, loginUsers(t, &touched))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", jsonBody(t, map[string]string{
		"email":    "inspector@example.com",
		"password": "secret123",
	}))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d: %s", rec.Code, rec.Body.String())
	}
	if sessionCookie(rec) == nil {
		t.Error("успешный вход должен устанавливать session cookie")
	}
	if !touched {
		t.Error("вход должен фиксировать время последнего входа")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newTestAuthHandler(t, loginUsers(t, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", jsonBody(t, map[string]string{
		"email":    "inspector@example.com",
		"password": "неверный",
	}))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("ожидался статус 401, получен %d", rec.Code)
	}
	if sessionCookie(rec) != nil {
		t.Error("неудачный вход не должен устанавливать cookie")
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	h := newTestAuthHandler(t, loginUsers(t, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", jsonBody(t, map[string]string{
		"email":    "stranger@example.com",
		"password": "secret123",
	}))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	// Несуществующий email неотличим от неверного пароля
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("ожидался статус 401, получен %d", rec.Code)
	}
}

func TestToken(t *testing.T) {
	h := newTestAuthHandler(t, loginUsers(t, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", jsonBody(t, map[string]string{
		"email":    "inspector@example.com",
		"password": "secret123",
	}))
	rec := httptest.NewRecorder()
	h.Token(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse[map[string]string](t, rec)
	token := resp["token"]
	if token == "" {
		t.Fatal("ответ должен содержать токен")
	}

	claims, err := h.tokens.Verify(token)
	if err != nil {
		t.Fatalf("выпущенный токен не прошёл проверку: %v", err)
	}
	if claims.Subject != testUserID || claims.Email != "inspector@example.com" {
		t.Errorf("неожиданные claims: subject=%q email=%q", claims.Subject, claims.Email)
	}
}

func TestLogout(t *testing.T) {
	h := newTestAuthHandler(t, &mockUserRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("ожидался статус 204, получен %d", rec.Code)
	}
	c := sessionCookie(rec)
	if c == nil || c.MaxAge != -1 {
		t.Error("logout должен сбрасывать session cookie")
	}
}

func TestMe(t *testing.T) {
	users := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			if id != testUserID {
				return nil, repository.ErrNotFound
			}
			return &model.User{
				ID:          testUserID,
				Email:       "inspector@example.com",
				DisplayName: "Инспектор",
				CreatedAt:   time.Now(),
			}, nil
		},
	}
	h := newTestAuthHandler(t, users)

	req := authedRequest(http.MethodGet, "/api/v1/auth/me", nil)
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}
	resp := decodeResponse[userResponse](t, rec)
	if resp.Email != "inspector@example.com" {
		t.Errorf("неожиданный email: %q", resp.Email)
	}
	if strings.Contains(rec.Body.String(), "passwordHash") {
		t.Error("ответ не должен содержать хэш пароля")
	}
}
