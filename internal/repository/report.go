// report.go — репозиторий отчётов инспекции (таблица inspection_reports).
// Вложенные структуры сериализуются в JSONB-колонки.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
)

// ReportRepository — интерфейс для таблицы inspection_reports.
type ReportRepository interface {
	// Create создаёт отчёт со статусом pending и пустыми изображениями.
	// Возвращает назначенный UUID.
	Create(ctx context.Context, report *model.InspectionReport) (string, error)
	// GetByID возвращает отчёт по id. Если не найден — ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.InspectionReport, error)
	// ListByUser возвращает отчёты пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string) ([]*model.InspectionReport, error)
	// Update перезаписывает все редактируемые поля отчёта.
	Update(ctx context.Context, id string, report *model.InspectionReport) error
	// UpdateImages обновляет только изображения и статус (шаг после загрузки).
	UpdateImages(ctx context.Context, id string, images model.ReportImages, status model.Status) error
	// Delete безвозвратно удаляет отчёт по id.
	Delete(ctx context.Context, id string) error
}

// reportRepo — реализация ReportRepository.
type reportRepo struct {
	db DBTX
}

// NewReportRepository создаёт репозиторий отчётов.
func NewReportRepository(db DBTX) ReportRepository {
	return &reportRepo{db: db}
}

// reportColumns — список колонок для SELECT в порядке scanReport.
const reportColumns = `
	id, user_id, inspection_date, mill_supplier, order_number, piles,
	pine_type, location, item_inspected,
	dimensional_eval, visual_eval, packaging_eval, lot_treatment,
	defects, dimensional_records, images, status, created_at, updated_at`

// Create создаёт отчёт. Статус записывается как передан (сервис деривирует
// его из оценок перед вызовом), временные метки назначает сервер.
func (r *reportRepo) Create(ctx context.Context, report *model.InspectionReport) (string, error) {
	id := uuid.New().String()

	defects, dimensional, images, err := marshalNested(report)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO inspection_reports (
			id, user_id, inspection_date, mill_supplier, order_number, piles,
			pine_type, location, item_inspected,
			dimensional_eval, visual_eval, packaging_eval, lot_treatment,
			defects, dimensional_records, images, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW()
		)`

	_, err = r.db.Exec(ctx, query,
		id, report.UserID, report.InspectionDate, report.MillSupplier,
		report.OrderNumber, report.Piles, report.PineType, report.Location,
		report.ItemInspected,
		report.DimensionalEval, report.VisualEval, report.PackagingEval,
		report.LotTreatment,
		defects, dimensional, images, report.Status,
	)
	if err != nil {
		return "", fmt.Errorf("ошибка создания отчёта: %w", err)
	}

	return id, nil
}

// GetByID возвращает отчёт по id.
func (r *reportRepo) GetByID(ctx context.Context, id string) (*model.InspectionReport, error) {
	query := `SELECT ` + reportColumns + ` FROM inspection_reports WHERE id = $1`

	report, err := scanReport(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения отчёта %s: %w", id, err)
	}
	return report, nil
}

// ListByUser возвращает отчёты пользователя, отсортированные по created_at DESC.
//
// Fallback: если серверная сортировка недоступна (отсутствующий индекс /
// объект), выполняется повторный запрос без ORDER BY и сортировка на клиенте.
// Поведение каскадно унаследовано от исходного хранилища документов и
// сохраняется намеренно.
func (r *reportRepo) ListByUser(ctx context.Context, userID string) ([]*model.InspectionReport, error) {
	ordered := `SELECT ` + reportColumns + `
		FROM inspection_reports
		WHERE user_id = $1
		ORDER BY created_at DESC`

	reports, err := r.queryReports(ctx, ordered, userID)
	if err == nil {
		return reports, nil
	}
	if !isOrderingUnavailable(err) {
		return nil, fmt.Errorf("ошибка получения отчётов пользователя %s: %w", userID, err)
	}

	// Повторный запрос без сортировки + сортировка на клиенте
	unordered := `SELECT ` + reportColumns + `
		FROM inspection_reports
		WHERE user_id = $1`

	reports, err = r.queryReports(ctx, unordered, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения отчётов пользователя %s: %w", userID, err)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	return reports, nil
}

// Update перезаписывает все редактируемые поля отчёта целиком.
// updated_at назначается сервером, created_at не меняется.
func (r *reportRepo) Update(ctx context.Context, id string, report *model.InspectionReport) error {
	defects, dimensional, images, err := marshalNested(report)
	if err != nil {
		return err
	}

	query := `
		UPDATE inspection_reports SET
			inspection_date = $2,
			mill_supplier = $3,
			order_number = $4,
			piles = $5,
			pine_type = $6,
			location = $7,
			item_inspected = $8,
			dimensional_eval = $9,
			visual_eval = $10,
			packaging_eval = $11,
			lot_treatment = $12,
			defects = $13,
			dimensional_records = $14,
			images = $15,
			status = $16,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		id, report.InspectionDate, report.MillSupplier, report.OrderNumber,
		report.Piles, report.PineType, report.Location, report.ItemInspected,
		report.DimensionalEval, report.VisualEval, report.PackagingEval,
		report.LotTreatment,
		defects, dimensional, images, report.Status,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления отчёта %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateImages обновляет изображения и статус отчёта.
// Отдельный шаг после параллельной загрузки файлов.
func (r *reportRepo) UpdateImages(ctx context.Context, id string, images model.ReportImages, status model.Status) error {
	data, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("ошибка сериализации изображений: %w", err)
	}

	query := `
		UPDATE inspection_reports SET
			images = $2,
			status = $3,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, data, status)
	if err != nil {
		return fmt.Errorf("ошибка обновления изображений отчёта %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete безвозвратно удаляет отчёт.
func (r *reportRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM inspection_reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления отчёта %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Вспомогательные функции ---

// queryReports выполняет запрос и сканирует все строки.
func (r *reportRepo) queryReports(ctx context.Context, query string, args ...any) ([]*model.InspectionReport, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*model.InspectionReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования отчёта: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// marshalNested сериализует вложенные структуры отчёта в JSONB.
func marshalNested(report *model.InspectionReport) (defects, dimensional, images []byte, err error) {
	defects, err = json.Marshal(report.Defects)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ошибка сериализации дефектов: %w", err)
	}
	dimensional, err = json.Marshal(report.DimensionalRecords)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ошибка сериализации замеров: %w", err)
	}
	images, err = json.Marshal(report.Images)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ошибка сериализации изображений: %w", err)
	}
	return defects, dimensional, images, nil
}

// scanReport сканирует одну строку в InspectionReport.
func scanReport(row pgx.Row) (*model.InspectionReport, error) {
	var (
		report      model.InspectionReport
		defects     []byte
		dimensional []byte
		images      []byte
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := row.Scan(
		&report.ID, &report.UserID, &report.InspectionDate,
		&report.MillSupplier, &report.OrderNumber, &report.Piles,
		&report.PineType, &report.Location, &report.ItemInspected,
		&report.DimensionalEval, &report.VisualEval, &report.PackagingEval,
		&report.LotTreatment,
		&defects, &dimensional, &images, &report.Status,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(defects, &report.Defects); err != nil {
		return nil, fmt.Errorf("ошибка десериализации дефектов: %w", err)
	}
	if err := json.Unmarshal(dimensional, &report.DimensionalRecords); err != nil {
		return nil, fmt.Errorf("ошибка десериализации замеров: %w", err)
	}
	if err := json.Unmarshal(images, &report.Images); err != nil {
		return nil, fmt.Errorf("ошибка десериализации изображений: %w", err)
	}

	report.CreatedAt = createdAt
	report.UpdatedAt = updatedAt
	return &report, nil
}
