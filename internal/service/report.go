// report.go — оркестрация жизненного цикла отчёта:
// создание → конкурентная загрузка изображений → запись URL и статуса.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
	"github.com/arturkryukov/phvinspect/report-module/internal/repository"
)

// ErrReportNotFound возвращается при обращении к несуществующему отчёту.
var ErrReportNotFound = errors.New("отчёт не найден")

// ErrNotOwner возвращается при обращении к чужому отчёту.
var ErrNotOwner = errors.New("отчёт принадлежит другому пользователю")

// Uploader — интерфейс пакетной загрузки изображений (для подмены в тестах).
type Uploader interface {
	UploadBatch(ctx context.Context, reportID string, files []UploadFile) (model.ReportImages, []string, error)
}

// AssetPurger — удаление всех вложений отчёта.
type AssetPurger interface {
	DeleteReportDir(reportID string) error
}

// ReportService — бизнес-логика работы с отчётами.
// Деривация статуса выполняется здесь при каждом изменении оценок;
// статус никогда не принимается от клиента напрямую.
type ReportService struct {
	reports  repository.ReportRepository
	uploader Uploader
	assets   AssetPurger
	cache    *CacheService
	logger   *slog.Logger
}

// NewReportService создаёт ReportService.
func NewReportService(
	reports repository.ReportRepository,
	uploader Uploader,
	assets AssetPurger,
	cache *CacheService,
	logger *slog.Logger,
) *ReportService {
	return &ReportService{
		reports:  reports,
		uploader: uploader,
		assets:   assets,
		cache:    cache,
		logger:   logger.With(slog.String("component", "report-service")),
	}
}

// Create сохраняет новый отчёт и загружает его изображения.
// Последовательность: создание записи → конкурентная загрузка файлов →
// запись URL изображений вместе с деривированным статусом.
// Статус, список дефектов и списки изображений клиенту не принадлежат:
// статус деривируется из оценок, дефекты нормализуются к фиксированному
// списку, изображения нового отчёта всегда пустые.
// Возвращает id отчёта и список категорий с недогруженными файлами
// (недогрузка — не ошибка, см. UploadService).
func (s *ReportService) Create(ctx context.Context, report *model.InspectionReport, files []UploadFile) (string, []string, error) {
	report.Status = model.DeriveStatus(
		report.DimensionalEval, report.VisualEval, report.PackagingEval, report.LotTreatment)
	report.Defects = model.NormalizeDefects(report.Defects)
	report.Images = model.ReportImages{}

	id, err := s.reports.Create(ctx, report)
	if err != nil {
		return "", nil, fmt.Errorf("ошибка создания отчёта: %w", err)
	}

	shortfall, err := s.attachImages(ctx, id, report.Status, files)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info("Отчёт создан",
		slog.String("report_id", id),
		slog.String("status", string(report.Status)),
		slog.Int("files", len(files)),
	)
	return id, shortfall, nil
}

// Get возвращает отчёт по id с проверкой владельца.
// Сначала смотрит в кэш, при промахе читает из БД и кэширует.
func (s *ReportService) Get(ctx context.Context, userID, reportID string) (*model.InspectionReport, error) {
	if cached, ok := s.cache.Get(reportID); ok {
		if cached.UserID != userID {
			return nil, ErrNotOwner
		}
		return cached, nil
	}

	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("ошибка чтения отчёта: %w", err)
	}
	if report.UserID != userID {
		return nil, ErrNotOwner
	}

	s.cache.Set(reportID, report)
	return report, nil
}

// List возвращает отчёты пользователя, новые первыми.
func (s *ReportService) List(ctx context.Context, userID string) ([]*model.InspectionReport, error) {
	reports, err := s.reports.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка отчётов: %w", err)
	}
	return reports, nil
}

// Update перезаписывает поля отчёта, заново деривируя статус
// и нормализуя список дефектов, и при необходимости догружает
// новые изображения.
// Существующие списки URL в report.Images сохраняются, новые файлы
// добавляются в конец своих категорий.
func (s *ReportService) Update(ctx context.Context, userID, reportID string, report *model.InspectionReport, files []UploadFile) ([]string, error) {
	existing, err := s.Get(ctx, userID, reportID)
	if err != nil {
		return nil, err
	}

	report.UserID = existing.UserID
	report.Status = model.DeriveStatus(
		report.DimensionalEval, report.VisualEval, report.PackagingEval, report.LotTreatment)
	report.Defects = model.NormalizeDefects(report.Defects)

	if err := s.reports.Update(ctx, reportID, report); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("ошибка обновления отчёта: %w", err)
	}
	s.cache.Delete(reportID)

	var shortfall []string
	if len(files) > 0 {
		uploaded, sf, err := s.uploader.UploadBatch(ctx, reportID, files)
		if err != nil {
			return nil, err
		}
		shortfall = sf

		merged := report.Images
		for _, category := range model.ImageCategories {
			if urls := uploaded.Category(category); len(urls) > 0 {
				merged.SetCategory(category, append(merged.Category(category), urls...))
			}
		}
		if err := s.reports.UpdateImages(ctx, reportID, merged, report.Status); err != nil {
			return nil, fmt.Errorf("ошибка записи изображений: %w", err)
		}
	}

	s.logger.Info("Отчёт обновлён",
		slog.String("report_id", reportID),
		slog.String("status", string(report.Status)),
	)
	return shortfall, nil
}

// Delete удаляет отчёт вместе со всеми его вложениями.
// Ошибка удаления файлов с диска логируется, но не прерывает операцию:
// запись в БД уже удалена, оставшиеся файлы подчистит оператор.
func (s *ReportService) Delete(ctx context.Context, userID, reportID string) error {
	if _, err := s.Get(ctx, userID, reportID); err != nil {
		return err
	}

	if err := s.reports.Delete(ctx, reportID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrReportNotFound
		}
		return fmt.Errorf("ошибка удаления отчёта: %w", err)
	}
	s.cache.Delete(reportID)

	if err := s.assets.DeleteReportDir(reportID); err != nil {
		s.logger.Error("Ошибка удаления вложений отчёта",
			slog.String("report_id", reportID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("Отчёт удалён", slog.String("report_id", reportID))
	return nil
}

// attachImages загружает файлы и записывает URL вместе со статусом.
func (s *ReportService) attachImages(ctx context.Context, reportID string, status model.Status, files []UploadFile) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	images, shortfall, err := s.uploader.UploadBatch(ctx, reportID, files)
	if err != nil {
		return nil, err
	}

	if err := s.reports.UpdateImages(ctx, reportID, images, status); err != nil {
		return nil, fmt.Errorf("ошибка записи изображений: %w", err)
	}
	return shortfall, nil
}
