// reports.go — обработчики отчётов инспекций.
// Создание и обновление принимают multipart/form-data: JSON-часть
// "report" плюс файлы изображений, имя части файла — категория.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/phvinspect/report-module/internal/api/errors"
	"github.com/arturkryukov/phvinspect/report-module/internal/api/middleware"
	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
	"github.com/arturkryukov/phvinspect/report-module/internal/i18n"
	"github.com/arturkryukov/phvinspect/report-module/internal/pdf"
	"github.com/arturkryukov/phvinspect/report-module/internal/repository"
	"github.com/arturkryukov/phvinspect/report-module/internal/service"
)

// Память, выделяемая на разбор multipart-формы; остальное — во временные файлы.
const multipartMemory = 8 << 20 // 8 MiB

// ReportHandler — обработчики CRUD отчётов и экспорта PDF.
type ReportHandler struct {
	reports       *service.ReportService
	settings      repository.SettingsRepository
	renderer      *pdf.Renderer
	maxUploadSize int64
	logger        *slog.Logger
}

// NewReportHandler создаёт ReportHandler.
// maxUploadSize ограничивает суммарный размер одного multipart-запроса.
func NewReportHandler(
	reports *service.ReportService,
	settings repository.SettingsRepository,
	renderer *pdf.Renderer,
	maxUploadSize int64,
	logger *slog.Logger,
) *ReportHandler {
	return &ReportHandler{
		reports:       reports,
		settings:      settings,
		renderer:      renderer,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "report_handler")),
	}
}

// createResponse — ответ на создание/обновление отчёта.
// Shortfall перечисляет категории с недогруженными файлами.
type createResponse struct {
	ID        string   `json:"id"`
	Shortfall []string `json:"shortfall,omitempty"`
}

// ListReports — GET /api/v1/reports?query=&date=.
// Фильтрация выполняется в памяти над отчётами пользователя.
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	reports, err := h.reports.List(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("Ошибка получения списка отчётов", slog.String("error", err.Error()))
		apierrors.InternalError(w, i18n.T(r.Context(), "err_internal"))
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	dateFilter := strings.TrimSpace(r.URL.Query().Get("date"))
	if query != "" || dateFilter != "" {
		settings := h.userSettings(r)
		reports = service.FilterReports(reports, query, dateFilter, settings.DateFormat)
	}

	dtos := make([]reportDTO, 0, len(reports))
	for _, report := range reports {
		dtos = append(dtos, toDTO(report))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateReport — POST /api/v1/reports.
func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	report, files, closers, ok := h.readReportRequest(w, r)
	if !ok {
		return
	}
	defer closeAll(closers)

	identity := middleware.IdentityFromContext(r.Context())
	report.UserID = identity.UserID

	id, shortfall, err := h.reports.Create(r.Context(), report, files)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("Отчёт создан",
		slog.String("report_id", id), slog.String("user_id", identity.UserID))
	writeJSON(w, http.StatusCreated, createResponse{ID: id, Shortfall: shortfall})
}

// GetReport — GET /api/v1/reports/{id}.
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	reportID := chi.URLParam(r, "id")

	report, err := h.reports.Get(r.Context(), identity.UserID, reportID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDTO(report))
}

// UpdateReport — PUT /api/v1/reports/{id}.
// Принимает тот же формат, что и создание; новые файлы добавляются
// в конец своих категорий.
func (h *ReportHandler) UpdateReport(w http.ResponseWriter, r *http.Request) {
	report, files, closers, ok := h.readReportRequest(w, r)
	if !ok {
		return
	}
	defer closeAll(closers)

	identity := middleware.IdentityFromContext(r.Context())
	reportID := chi.URLParam(r, "id")

	shortfall, err := h.reports.Update(r.Context(), identity.UserID, reportID, report, files)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("Отчёт обновлён",
		slog.String("report_id", reportID), slog.String("user_id", identity.UserID))
	writeJSON(w, http.StatusOK, createResponse{ID: reportID, Shortfall: shortfall})
}

// DeleteReport — DELETE /api/v1/reports/{id}.
func (h *ReportHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	reportID := chi.URLParam(r, "id")

	if err := h.reports.Delete(r.Context(), identity.UserID, reportID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("Отчёт удалён",
		slog.String("report_id", reportID), slog.String("user_id", identity.UserID))
	w.WriteHeader(http.StatusNoContent)
}

// AddImages — POST /api/v1/reports/{id}/images.
// Добавляет файлы к существующему отчёту, не меняя остальных полей.
func (h *ReportHandler) AddImages(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	reportID := chi.URLParam(r, "id")

	report, err := h.reports.Get(r.Context(), identity.UserID, reportID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	files, closers, errKey := h.readMultipartFiles(r)
	if errKey != "" {
		apierrors.ValidationError(w, i18n.T(r.Context(), errKey))
		return
	}
	defer closeAll(closers)

	shortfall, err := h.reports.Update(r.Context(), identity.UserID, reportID, report, files)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, createResponse{ID: reportID, Shortfall: shortfall})
}

// ExportPDF — GET /api/v1/reports/{id}/pdf.
// Отдаёт PDF как attachment; видимость логотипа берётся из настроек.
func (h *ReportHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	reportID := chi.URLParam(r, "id")

	report, err := h.reports.Get(r.Context(), identity.UserID, reportID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	settings := h.userSettings(r)
	data, err := h.renderer.Render(report, settings.PDFLogoVisible)
	if err != nil {
		h.logger.Error("Ошибка генерации PDF",
			slog.String("report_id", reportID), slog.String("error", err.Error()))
		apierrors.InternalError(w, i18n.T(r.Context(), "err_internal"))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+pdf.FileName(report)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // клиент мог закрыть соединение
}

// readReportRequest разбирает тело создания/обновления отчёта.
// Поддерживаются multipart/form-data (часть "report" + файлы)
// и чистый application/json без файлов.
func (h *ReportHandler) readReportRequest(w http.ResponseWriter, r *http.Request) (*model.InspectionReport, []service.UploadFile, []multipart.File, bool) {
	var dto reportDTO
	var files []service.UploadFile
	var closers []multipart.File

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				apierrors.PayloadTooLarge(w, i18n.T(r.Context(), "err_file_too_large"))
				return nil, nil, nil, false
			}
			apierrors.ValidationError(w, i18n.T(r.Context(), "err_invalid_request"))
			return nil, nil, nil, false
		}

		if err := json.Unmarshal([]byte(r.FormValue("report")), &dto); err != nil {
			apierrors.ValidationError(w, i18n.T(r.Context(), "err_invalid_request"))
			return nil, nil, nil, false
		}

		var errKey string
		files, closers, errKey = h.readMultipartFiles(r)
		if errKey != "" {
			apierrors.ValidationError(w, i18n.T(r.Context(), errKey))
			return nil, nil, nil, false
		}
	} else {
		if err := decodeJSON(w, r, &dto); err != nil {
			apierrors.ValidationError(w, i18n.T(r.Context(), "err_invalid_request"))
			return nil, nil, nil, false
		}
	}

	if problem := validateReport(&dto); problem != "" {
		closeAll(closers)
		apierrors.ValidationError(w, i18n.T(r.Context(), problem))
		return nil, nil, nil, false
	}

	return dto.toModel(), files, closers, true
}

// readMultipartFiles собирает файлы из формы.
// Имя части — категория изображения; неизвестная категория — ошибка.
// Возвращает ключ сообщения об ошибке или "".
func (h *ReportHandler) readMultipartFiles(r *http.Request) ([]service.UploadFile, []multipart.File, string) {
	if r.MultipartForm == nil {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, nil, "err_invalid_request"
		}
	}

	var files []service.UploadFile
	var closers []multipart.File
	for category, headers := range r.MultipartForm.File {
		if !model.ValidImageCategory(category) {
			closeAll(closers)
			return nil, nil, "err_invalid_category"
		}
		for _, header := range headers {
			f, err := header.Open()
			if err != nil {
				h.logger.Warn("Не удалось открыть часть формы",
					slog.String("filename", header.Filename), slog.String("error", err.Error()))
				continue
			}
			closers = append(closers, f)
			files = append(files, service.UploadFile{
				Category: category,
				Filename: header.Filename,
				Data:     f,
			})
		}
	}
	return files, closers, ""
}

// userSettings возвращает настройки текущего пользователя,
// при ошибке — значения по умолчанию.
func (h *ReportHandler) userSettings(r *http.Request) model.Settings {
	identity := middleware.IdentityFromContext(r.Context())
	settings, err := h.settings.Get(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Warn("Ошибка чтения настроек, используются значения по умолчанию",
			slog.String("user_id", identity.UserID), slog.String("error", err.Error()))
		return model.DefaultSettings()
	}
	return settings
}

// writeServiceError преобразует ошибки сервисного слоя в HTTP-ответы.
func (h *ReportHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrReportNotFound):
		apierrors.NotFound(w, i18n.T(r.Context(), "err_report_not_found"))
	case errors.Is(err, service.ErrNotOwner):
		apierrors.Forbidden(w, i18n.T(r.Context(), "err_forbidden"))
	case errors.Is(err, service.ErrInvalidCategory):
		apierrors.ValidationError(w, i18n.T(r.Context(), "err_invalid_category"))
	default:
		h.logger.Error("Ошибка сервисного слоя", slog.String("error", err.Error()))
		apierrors.InternalError(w, i18n.T(r.Context(), "err_internal"))
	}
}

func closeAll(closers []multipart.File) {
	for _, c := range closers {
		c.Close() //nolint:errcheck
	}
}
