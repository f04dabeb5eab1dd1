// handler_test.go — общие моки и помощники тестов обработчиков.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/phvinspect/report-module/internal/api/middleware"
	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
	"github.com/arturkryukov/phvinspect/report-module/internal/service"
)

// --- Моки репозиториев (поля-функции, как в остальных тестах) ---

type mockUserRepo struct {
	createFn            func(ctx context.Context, user *model.User) (string, error)
	getByIDFn           func(ctx context.Context, id string) (*model.User, error)
	getByEmailFn        func(ctx context.Context, email string) (*model.User, error)
	updateDisplayNameFn func(ctx context.Context, id, displayName string) error
	updatePasswordFn    func(ctx context.Context, id, passwordHash string) error
	touchLastLoginFn    func(ctx context.Context, id string) error
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) (string, error) {
	return m.createFn(ctx, user)
}
func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return m.getByIDFn(ctx, id)
}
func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.getByEmailFn(ctx, email)
}
func (m *mockUserRepo) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	return m.updateDisplayNameFn(ctx, id, displayName)
}
func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return m.updatePasswordFn(ctx, id, passwordHash)
}
func (m *mockUserRepo) TouchLastLogin(ctx context.Context, id string) error {
	if m.touchLastLoginFn != nil {
		return m.touchLastLoginFn(ctx, id)
	}
	return nil
}

type mockSettingsRepo struct {
	getFn   func(ctx context.Context, userID string) (model.Settings, error)
	setFn   func(ctx context.Context, userID string, settings model.Settings) error
	resetFn func(ctx context.Context, userID string) (model.Settings, error)
}

func (m *mockSettingsRepo) Get(ctx context.Context, userID string) (model.Settings, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return model.DefaultSettings(), nil
}
func (m *mockSettingsRepo) Set(ctx context.Context, userID string, settings model.Settings) error {
	return m.setFn(ctx, userID, settings)
}
func (m *mockSettingsRepo) Reset(ctx context.Context, userID string) (model.Settings, error) {
	return m.resetFn(ctx, userID)
}

type mockReportRepo struct {
	createFn       func(ctx context.Context, report *model.InspectionReport) (string, error)
	getByIDFn      func(ctx context.Context, id string) (*model.InspectionReport, error)
	listByUserFn   func(ctx context.Context, userID string) ([]*model.InspectionReport, error)
	updateFn       func(ctx context.Context, id string, report *model.InspectionReport) error
	updateImagesFn func(ctx context.Context, id string, images model.ReportImages, status model.Status) error
	deleteFn       func(ctx context.Context, id string) error
}

func (m *mockReportRepo) Create(ctx context.Context, report *model.InspectionReport) (string, error) {
	return m.createFn(ctx, report)
}
func (m *mockReportRepo) GetByID(ctx context.Context, id string) (*model.InspectionReport, error) {
	return m.getByIDFn(ctx, id)
}
func (m *mockReportRepo) ListByUser(ctx context.Context, userID string) ([]*model.InspectionReport, error) {
	return m.listByUserFn(ctx, userID)
}
func (m *mockReportRepo) Update(ctx context.Context, id string, report *model.InspectionReport) error {
	return m.updateFn(ctx, id, report)
}
func (m *mockReportRepo) UpdateImages(ctx context.Context, id string, images model.ReportImages, status model.Status) error {
	if m.updateImagesFn != nil {
		return m.updateImagesFn(ctx, id, images, status)
	}
	return nil
}
func (m *mockReportRepo) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

type mockUploader struct {
	uploadFn func(ctx context.Context, reportID string, files []service.UploadFile) (model.ReportImages, []string, error)
}

func (m *mockUploader) UploadBatch(ctx context.Context, reportID string, files []service.UploadFile) (model.ReportImages, []string, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, reportID, files)
	}
	return model.ReportImages{}, nil, nil
}

type mockPurger struct {
	deleted []string
}

func (m *mockPurger) DeleteReportDir(reportID string) error {
	m.deleted = append(m.deleted, reportID)
	return nil
}

// --- Помощники ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testUserID = "user-1"

// authedRequest создаёт запрос с identity аутентифицированного пользователя.
func authedRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	ctx := middleware.WithIdentity(req.Context(), &middleware.Identity{
		UserID: testUserID,
		Email:  "inspector@example.com",
	})
	return req.WithContext(ctx)
}

// withURLParam помещает параметр маршрута chi в контекст запроса.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("ошибка сериализации тела запроса: %v", err)
	}
	return bytes.NewReader(data)
}

func newTestReportService(repo *mockReportRepo, uploader *mockUploader, purger *mockPurger) *service.ReportService {
	return service.NewReportService(repo, uploader, purger,
		service.NewCacheService(16, 0), testLogger())
}

func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("ошибка разбора ответа: %v", err)
	}
	return v
}
