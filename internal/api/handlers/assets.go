// assets.go — раздача загруженных изображений.
// Доступ проверяется через владение отчётом: ключ вложения
// начинается с reports/<report_id>/.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	apierrors "github.com/arturkryukov/phvinspect/report-module/internal/api/errors"
	"github.com/arturkryukov/phvinspect/report-module/internal/api/middleware"
	"github.com/arturkryukov/phvinspect/report-module/internal/i18n"
	"github.com/arturkryukov/phvinspect/report-module/internal/service"
	"github.com/arturkryukov/phvinspect/report-module/internal/storage/assetstore"
)

// AssetHandler отдаёт файлы из хранилища вложений.
type AssetHandler struct {
	assets  *assetstore.Store
	reports *service.ReportService
	logger  *slog.Logger
}

// NewAssetHandler создаёт AssetHandler.
func NewAssetHandler(assets *assetstore.Store, reports *service.ReportService, logger *slog.Logger) *AssetHandler {
	return &AssetHandler{
		assets:  assets,
		reports: reports,
		logger:  logger.With(slog.String("component", "asset_handler")),
	}
}

// ServeAsset — GET /assets/*.
func (h *AssetHandler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, assetstore.URLPrefix)

	// Ключ имеет вид reports/<report_id>/<category>/<file>
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 || parts[0] != "reports" {
		apierrors.NotFound(w, i18n.T(r.Context(), "err_report_not_found"))
		return
	}

	identity := middleware.IdentityFromContext(r.Context())
	if _, err := h.reports.Get(r.Context(), identity.UserID, parts[1]); err != nil {
		h.writeAccessError(w, r, err)
		return
	}

	f, err := h.assets.Open(key)
	if err != nil {
		apierrors.NotFound(w, i18n.T(r.Context(), "err_report_not_found"))
		return
	}
	defer f.Close() //nolint:errcheck

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")

	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("Ошибка отдачи вложения",
			slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (h *AssetHandler) writeAccessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotOwner):
		apierrors.Forbidden(w, i18n.T(r.Context(), "err_forbidden"))
	default:
		apierrors.NotFound(w, i18n.T(r.Context(), "err_report_not_found"))
	}
}
