// upload.go — конкурентная загрузка изображений отчёта.
// Все файлы одного сохранения отправляются одновременно; отказ одного
// файла не прерывает остальные, его результат — пустой сентинел,
// отфильтровываемый из итогового списка URL.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
	"github.com/arturkryukov/phvinspect/report-module/internal/storage/assetstore"
)

// maxConcurrentUploads — ограничение одновременных записей на диск.
const maxConcurrentUploads = 8

// ErrInvalidCategory — входные данные содержат неизвестную категорию изображения.
var ErrInvalidCategory = errors.New("недопустимая категория изображения")

// AssetSaver — минимальный интерфейс хранилища вложений для загрузчика.
type AssetSaver interface {
	Save(reader io.Reader, reportID, category, originalFilename string) (*assetstore.SaveResult, error)
}

// UploadFile — один файл для загрузки.
type UploadFile struct {
	// Category — категория изображения (одна из model.ImageCategories).
	Category string
	// Filename — исходное имя файла.
	Filename string
	// Data — содержимое файла.
	Data io.Reader
}

// UploadService — пакетная загрузка изображений отчёта.
type UploadService struct {
	assets AssetSaver
	logger *slog.Logger
}

// NewUploadService создаёт UploadService.
func NewUploadService(assets AssetSaver, logger *slog.Logger) *UploadService {
	return &UploadService{
		assets: assets,
		logger: logger.With(slog.String("component", "upload")),
	}
}

// UploadBatch загружает все файлы конкурентно и возвращает URL по категориям.
// Порядок URL внутри категории повторяет порядок файлов во входном списке.
// Отказавшие файлы пропускаются; их категории перечисляются в shortfall
// в формате "категория (загружено/всего)".
//
// Ошибка возвращается только при недопустимой категории во входных данных —
// сбой записи отдельного файла ошибкой не является.
func (s *UploadService) UploadBatch(ctx context.Context, reportID string, files []UploadFile) (model.ReportImages, []string, error) {
	var images model.ReportImages

	for _, f := range files {
		if !model.ValidImageCategory(f.Category) {
			return images, nil, fmt.Errorf("%w: %s", ErrInvalidCategory, f.Category)
		}
	}

	// urls[i] — URL файла files[i], "" при сбое (сентинел)
	urls := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)

	for i, f := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res, err := s.assets.Save(f.Data, reportID, f.Category, f.Filename)
			if err != nil {
				// Отказ одного файла не прерывает остальные
				s.logger.Warn("Ошибка загрузки изображения",
					slog.String("report_id", reportID),
					slog.String("category", f.Category),
					slog.String("filename", f.Filename),
					slog.String("error", err.Error()),
				)
				return nil
			}
			urls[i] = res.URL
			return nil
		})
	}
	// Горутины не возвращают ошибок, Wait нужен только для синхронизации
	_ = g.Wait()

	// Собираем URL по категориям, сохраняя порядок и фильтруя сентинелы
	total := make(map[string]int)
	uploaded := make(map[string]int)
	for i, f := range files {
		total[f.Category]++
		if urls[i] == "" {
			continue
		}
		uploaded[f.Category]++
		images.SetCategory(f.Category, append(images.Category(f.Category), urls[i]))
	}

	var shortfall []string
	for _, category := range model.ImageCategories {
		if n, ok := total[category]; ok && uploaded[category] < n {
			shortfall = append(shortfall,
				fmt.Sprintf("%s (%d/%d)", model.ImageCategoryLabels[category], uploaded[category], n))
		}
	}

	return images, shortfall, nil
}
