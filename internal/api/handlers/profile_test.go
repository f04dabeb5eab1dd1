package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arturkryukov/phvinspect/report-module/internal/auth"
	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
)

func TestUpdateProfile(t *testing.T) {
	var gotID, gotName string
	users := &mockUserRepo{
		updateDisplayNameFn: func(ctx context.Context, id, displayName string) error {
			gotID, gotName = id, displayName
			return nil
		},
	}
	h := NewProfileHandler(users, testLogger())

	req := authedRequest(http.MethodPut, "/api/v1/profile", jsonBody(t, map[string]string{
		"displayName": "  Новое имя  ",
	}))
	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d: %s", rec.Code, rec.Body.String())
	}
	if gotID != testUserID {
		t.Errorf("обновлён не тот пользователь: %q", gotID)
	}
	if gotName != "Новое имя" {
		t.Errorf("имя должно быть очищено от пробелов, получено %q", gotName)
	}
}

func TestUpdateProfile_EmptyName(t *testing.T) {
	h := NewProfileHandler(&mockUserRepo{}, testLogger())

	req := authedRequest(http.MethodPut, "/api/v1/profile", jsonBody(t, map[string]string{
		"displayName": "   ",
	}))
	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидался статус 400, получен %d", rec.Code)
	}
}

func passwordUsers(t *testing.T, current string, updated *string) *mockUserRepo {
	t.Helper()
	hash, err := auth.HashPassword(current)
	if err != nil {
		t.Fatalf("ошибка хэширования: %v", err)
	}
	return &mockUserRepo{
		getByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, PasswordHash: hash}, nil
		},
		updatePasswordFn: func(ctx context.Context, id, passwordHash string) error {
			if updated != nil {
				*updated = passwordHash
			}
			return nil
		},
	}
}

func TestChangePassword(t *testing.T) {
	var newHash string
	h := NewProfileHandler(passwordUsers(t, "старый-пароль", &newHash), testLogger())

	req := authedRequest(http.MethodPut, "/api/v1/profile/password", jsonBody(t, map[string]string{
		"currentPassword": "старый-пароль",
		"newPassword":     "новый-пароль",
	}))
	rec := httptest.NewRecorder()
	h.ChangePassword(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("ожидался статус 204, получен %d: %s", rec.Code, rec.Body.String())
	}
	if newHash == "" {
		t.Fatal("пароль не был обновлён")
	}
	if err := auth.VerifyPassword(newHash, "новый-пароль"); err != nil {
		t.Error("новый хэш не соответствует новому паролю")
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	var newHash string
	h := NewProfileHandler(passwordUsers(t, "старый-пароль", &newHash), testLogger())

	req := authedRequest(http.MethodPut, "/api/v1/profile/password", jsonBody(t, map[string]string{
		"currentPassword": "не тот пароль",
		"newPassword":     "новый-пароль",
	}))
	rec := httptest.NewRecorder()
	h.ChangePassword(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидался статус 400, получен %d", rec.Code)
	}
	if newHash != "" {
		t.Error("пароль не должен меняться при неверном текущем пароле")
	}
}

func TestChangePassword_TooShort(t *testing.T) {
	var newHash string
	h := NewProfileHandler(passwordUsers(t, "старый-пароль", &newHash), testLogger())

	req := authedRequest(http.MethodPut, "/api/v1/profile/password", jsonBody(t, map[string]string{
		"currentPassword": "старый-пароль",
		"newPassword":     "abc",
	}))
	rec := httptest.NewRecorder()
	h.ChangePassword(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидался статус 400, получен %d", rec.Code)
	}
	if newHash != "" {
		t.Error("слишком короткий пароль не должен сохраняться")
	}
}
