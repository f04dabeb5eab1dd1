// dashboard.go — сводный обработчик панели мониторинга.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/arturkryukov/phvinspect/report-module/internal/api/errors"
	"github.com/arturkryukov/phvinspect/report-module/internal/api/middleware"
	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
	"github.com/arturkryukov/phvinspect/report-module/internal/i18n"
	"github.com/arturkryukov/phvinspect/report-module/internal/repository"
	"github.com/arturkryukov/phvinspect/report-module/internal/service"
)

// Число лидирующих поставщиков в сводке.
const topSupplierCount = 4

// Число последних отчётов в сводке.
const recentReportCount = 5

// DashboardHandler — агрегированная сводка по отчётам пользователя.
type DashboardHandler struct {
	reports  *service.ReportService
	settings repository.SettingsRepository
	logger   *slog.Logger
}

// NewDashboardHandler создаёт DashboardHandler.
func NewDashboardHandler(
	reports *service.ReportService,
	settings repository.SettingsRepository,
	logger *slog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		reports:  reports,
		settings: settings,
		logger:   logger.With(slog.String("component", "dashboard_handler")),
	}
}

// dashboardResponse — сводка панели мониторинга.
type dashboardResponse struct {
	TotalReports  int                   `json:"totalReports"`
	StatusTotals  map[model.Status]int  `json:"statusTotals"`
	MonthlyCounts []service.MonthBucket `json:"monthlyCounts"`
	TopSuppliers  []service.Group       `json:"topSuppliers"`
	RecentReports []reportDTO           `json:"recentReports"`
}

// GetDashboard — GET /api/v1/dashboard.
// Все подсчёты выполняются в памяти над отчётами пользователя.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	reports, err := h.reports.List(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("Ошибка получения отчётов для сводки", slog.String("error", err.Error()))
		apierrors.InternalError(w, i18n.T(r.Context(), "err_internal"))
		return
	}

	lang := model.DefaultSettings().Language
	if settings, err := h.settings.Get(r.Context(), identity.UserID); err == nil {
		lang = settings.Language
	}

	recent := service.SortByRecency(reports)
	if len(recent) > recentReportCount {
		recent = recent[:recentReportCount]
	}
	recentDTOs := make([]reportDTO, 0, len(recent))
	for _, report := range recent {
		recentDTOs = append(recentDTOs, toDTO(report))
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		TotalReports: len(reports),
		StatusTotals: service.StatusTotals(reports),
		MonthlyCounts: service.MonthlyCounts(reports, time.Now(), lang),
		TopSuppliers: service.TopGroups(reports, func(r *model.InspectionReport) string {
			return r.MillSupplier
		}, topSupplierCount),
		RecentReports: recentDTOs,
	})
}
