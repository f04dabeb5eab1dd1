package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
)

func newTestDashboardHandler(repo *mockReportRepo, settings *mockSettingsRepo) *DashboardHandler {
	return NewDashboardHandler(
		newTestReportService(repo, &mockUploader{}, &mockPurger{}),
		settings,
		testLogger(),
	)
}

func TestGetDashboard(t *testing.T) {
	now := time.Now()
	reports := []*model.InspectionReport{}
	for i, supplier := range []string{"Serraria Norte", "Serraria Norte", "Madeiras Sul"} {
		r := ownedReport("rep-" + string(rune('1'+i)))
		r.MillSupplier = supplier
		r.CreatedAt = now.AddDate(0, 0, -i)
		reports = append(reports, r)
	}
	reports[2].Status = model.StatusRejected

	repo := &mockReportRepo{
		listByUserFn: func(ctx context.Context, userID string) ([]*model.InspectionReport, error) {
			return reports, nil
		},
	}
	h := newTestDashboardHandler(repo, &mockSettingsRepo{})

	req := authedRequest(http.MethodGet, "/api/v1/dashboard", nil)
	rec := httptest.NewRecorder()
	h.GetDashboard(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse[dashboardResponse](t, rec)

	if resp.TotalReports != 3 {
		t.Errorf("ожидалось 3 отчёта, получено %d", resp.TotalReports)
	}
	if resp.StatusTotals[model.StatusApproved] != 2 || resp.StatusTotals[model.StatusRejected] != 1 {
		t.Errorf("неожиданные итоги по статусам: %v", resp.StatusTotals)
	}
	if len(resp.MonthlyCounts) != 6 {
		t.Errorf("ожидалось 6 месячных корзин, получено %d", len(resp.MonthlyCounts))
	}
	if len(resp.TopSuppliers) != 2 || resp.TopSuppliers[0].Key != "Serraria Norte" {
		t.Errorf("неожиданные лидирующие поставщики: %+v", resp.TopSuppliers)
	}
	if len(resp.RecentReports) != 3 || resp.RecentReports[0].ID != "rep-1" {
		t.Errorf("последние отчёты должны идти от новых к старым: %+v", resp.RecentReports)
	}
}

func TestGetDashboard_RecentLimit(t *testing.T) {
	now := time.Now()
	var reports []*model.InspectionReport
	for i := 0; i < recentReportCount+3; i++ {
		r := ownedReport("rep")
		r.CreatedAt = now.Add(-time.Duration(i) * time.Hour)
		reports = append(reports, r)
	}

	repo := &mockReportRepo{
		listByUserFn: func(ctx context.Context, userID string) ([]*model.InspectionReport, error) {
			return reports, nil
		},
	}
	h := newTestDashboardHandler(repo, &mockSettingsRepo{})

	req := authedRequest(http.MethodGet, "/api/v1/dashboard", nil)
	rec := httptest.NewRecorder()
	h.GetDashboard(rec, req)

	resp := decodeResponse[dashboardResponse](t, rec)
	if len(resp.RecentReports) != recentReportCount {
		t.Errorf("список последних отчётов должен быть ограничен %d, получено %d",
			recentReportCount, len(resp.RecentReports))
	}
}

func TestGetDashboard_LanguageFromSettings(t *testing.T) {
	repo := &mockReportRepo{
		listByUserFn: func(ctx context.Context, userID string) ([]*model.InspectionReport, error) {
			r := ownedReport("rep-1")
			r.CreatedAt = time.Now()
			return []*model.InspectionReport{r}, nil
		},
	}
	settings := &mockSettingsRepo{
		getFn: func(ctx context.Context, userID string) (model.Settings, error) {
			s := model.DefaultSettings()
			s.Language = "en"
			return s, nil
		},
	}
	h := newTestDashboardHandler(repo, settings)

	req := authedRequest(http.MethodGet, "/api/v1/dashboard", nil)
	rec := httptest.NewRecorder()
	h.GetDashboard(rec, req)

	resp := decodeResponse[dashboardResponse](t, rec)
	// Английские подписи месяцев: последняя корзина — текущий месяц
	label := resp.MonthlyCounts[len(resp.MonthlyCounts)-1].Label
	english := map[string]bool{
		"Jan": true, "Feb": true, "Mar": true, "Apr": true, "May": true, "Jun": true,
		"Jul": true, "Aug": true, "Sep": true, "Oct": true, "Nov": true, "Dec": true,
	}
	if !english[label] {
		t.Errorf("ожидалась английская подпись месяца, получено %q", label)
	}
}
