// Пакет handlers — HTTP-обработчики Report Module.
// handler.go — общие помощники и DTO проводного формата.
// Доменные структуры не сериализуются напрямую: формат API
// зафиксирован в camelCase и не зависит от внутренних имён.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
)

// maxJSONBodySize — лимит размера JSON-тела запроса.
const maxJSONBodySize = 1 << 20 // 1 MiB

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает JSON-тело запроса с лимитом размера.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// reportDTO — проводной формат отчёта.
type reportDTO struct {
	ID                 string                   `json:"id,omitempty"`
	InspectionDate     string                   `json:"inspectionDate"`
	MillSupplier       string                   `json:"millSupplier"`
	OrderNumber        string                   `json:"orderNumber"`
	Piles              string                   `json:"piles"`
	PineType           string                   `json:"pineType"`
	Location           string                   `json:"location"`
	ItemInspected      string                   `json:"itemInspected"`
	DimensionalEval    string                   `json:"dimensionalEval"`
	VisualEval         string                   `json:"visualEval"`
	PackagingEval      string                   `json:"packagingEval"`
	LotTreatment       string                   `json:"lotTreatment"`
	Defects            []model.Defect           `json:"defects"`
	DimensionalRecords model.DimensionalRecords `json:"dimensionalRecords"`
	Images             model.ReportImages       `json:"images"`
	Status             string                   `json:"status,omitempty"`
	CreatedAt          *time.Time               `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time               `json:"updatedAt,omitempty"`
}

// toDTO переводит доменный отчёт в проводной формат.
func toDTO(r *model.InspectionReport) reportDTO {
	dto := reportDTO{
		ID:                 r.ID,
		InspectionDate:     r.InspectionDate,
		MillSupplier:       r.MillSupplier,
		OrderNumber:        r.OrderNumber,
		Piles:              r.Piles,
		PineType:           string(r.PineType),
		Location:           r.Location,
		ItemInspected:      r.ItemInspected,
		DimensionalEval:    string(r.DimensionalEval),
		VisualEval:         string(r.VisualEval),
		PackagingEval:      string(r.PackagingEval),
		LotTreatment:       string(r.LotTreatment),
		Defects:            r.Defects,
		DimensionalRecords: r.DimensionalRecords,
		Images:             r.Images,
		Status:             string(r.Status),
	}
	if !r.CreatedAt.IsZero() {
		created := r.CreatedAt
		dto.CreatedAt = &created
	}
	if !r.UpdatedAt.IsZero() {
		updated := r.UpdatedAt
		dto.UpdatedAt = &updated
	}
	return dto
}

// toModel переводит проводной формат в доменный отчёт.
// Статус и временные метки клиента игнорируются: статус деривируется
// сервером, метки назначает БД.
func (dto *reportDTO) toModel() *model.InspectionReport {
	return &model.InspectionReport{
		InspectionDate:     dto.InspectionDate,
		MillSupplier:       dto.MillSupplier,
		OrderNumber:        dto.OrderNumber,
		Piles:              dto.Piles,
		PineType:           model.PineType(dto.PineType),
		Location:           dto.Location,
		ItemInspected:      dto.ItemInspected,
		DimensionalEval:    model.Evaluation(dto.DimensionalEval),
		VisualEval:         model.Evaluation(dto.VisualEval),
		PackagingEval:      model.Evaluation(dto.PackagingEval),
		LotTreatment:       model.Evaluation(dto.LotTreatment),
		Defects:            dto.Defects,
		DimensionalRecords: dto.DimensionalRecords,
		Images:             dto.Images,
	}
}

// validateReport проверяет обязательные поля и значения перечислений.
// Возвращает ключ i18n-каталога первой найденной проблемы или пустую строку.
func validateReport(dto *reportDTO) string {
	if dto.InspectionDate == "" {
		return "err_inspection_date_required"
	}
	if _, err := time.Parse("2006-01-02", dto.InspectionDate); err != nil {
		return "err_invalid_inspection_date"
	}
	if dto.ItemInspected == "" {
		return "err_item_inspected_required"
	}
	if dto.PineType != "" && !model.PineType(dto.PineType).Valid() {
		return "err_invalid_pine_type"
	}
	for _, e := range []string{dto.DimensionalEval, dto.VisualEval, dto.PackagingEval, dto.LotTreatment} {
		if !model.Evaluation(e).Valid() {
			return "err_invalid_evaluation"
		}
	}
	return ""
}
