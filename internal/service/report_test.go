package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
	"github.com/arturkryukov/phvinspect/report-module/internal/repository"
)

// mockReportRepo — мок репозитория отчётов.
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
	return m.updateImagesFn(ctx, id, images, status)
}
func (m *mockReportRepo) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

// mockUploader — мок пакетной загрузки.
type mockUploader struct {
	uploadFn func(ctx context.Context, reportID string, files []UploadFile) (model.ReportImages, []string, error)
}

func (m *mockUploader) UploadBatch(ctx context.Context, reportID string, files []UploadFile) (model.ReportImages, []string, error) {
	return m.uploadFn(ctx, reportID, files)
}

// mockPurger — мок удаления вложений.
type mockPurger struct {
	deleted []string
	err     error
}

func (m *mockPurger) DeleteReportDir(reportID string) error {
	m.deleted = append(m.deleted, reportID)
	return m.err
}

func newTestReportService(repo *mockReportRepo, uploader *mockUploader, purger *mockPurger) *ReportService {
	return NewReportService(repo, uploader, purger,
		NewCacheService(10, time.Minute), testLogger())
}

func TestReportServiceCreate_DerivesStatusAndUploads(t *testing.T) {
	var createdStatus model.Status
	var imagesStatus model.Status
	var storedImages model.ReportImages

	repo := &mockReportRepo{
		createFn: func(ctx context.Context, report *model.InspectionReport) (string, error) {
			createdStatus = report.Status
			return "rep-1", nil
		},
		updateImagesFn: func(ctx context.Context, id string, images model.ReportImages, status model.Status) error {
			storedImages = images
			imagesStatus = status
			return nil
		},
	}
	uploader := &mockUploader{
		uploadFn: func(ctx context.Context, reportID string, files []UploadFile) (model.ReportImages, []string, error) {
			var img model.ReportImages
			img.SetCategory("face", []string{"/assets/a.jpg"})
			return img, []string{"Face (1/2)"}, nil
		},
	}
	svc := newTestReportService(repo, uploader, &mockPurger{})

	report := &model.InspectionReport{
		UserID:          "user-1",
		DimensionalEval: model.EvalApproved,
		VisualEval:      model.EvalRejected,
		PackagingEval:   model.EvalApproved,
		LotTreatment:    model.EvalApproved,
	}
	id, shortfall, err := svc.Create(context.Background(), report, uploadFiles("face", "a.jpg", "b.jpg"))
	if err != nil {
		t.Fatalf("Create вернул ошибку: %v", err)
	}
	if id != "rep-1" {
		t.Errorf("id = %q, ожидается rep-1", id)
	}
	// Статус деривирован, а не взят от клиента
	if createdStatus != model.StatusRejected || imagesStatus != model.StatusRejected {
		t.Errorf("статусы create=%q images=%q, ожидается rejected", createdStatus, imagesStatus)
	}
	if len(storedImages.Face) != 1 {
		t.Errorf("записано %d изображений, ожидается 1", len(storedImages.Face))
	}
	if len(shortfall) != 1 {
		t.Errorf("shortfall = %v, ожидается одна запись", shortfall)
	}
}

func TestReportServiceCreate_NoFiles(t *testing.T) {
	var persisted *model.InspectionReport
	repo := &mockReportRepo{
		createFn: func(ctx context.Context, report *model.InspectionReport) (string, error) {
			persisted = report
			return "rep-1", nil
		},
		updateImagesFn: func(ctx context.Context, id string, images model.ReportImages, status model.Status) error {
			t.Error("UpdateImages не должен вызываться без файлов")
			return nil
		},
	}
	uploader := &mockUploader{
		uploadFn: func(ctx context.Context, reportID string, files []UploadFile) (model.ReportImages, []string, error) {
			t.Error("UploadBatch не должен вызываться без файлов")
			return model.ReportImages{}, nil, nil
		},
	}
	svc := newTestReportService(repo, uploader, &mockPurger{})

	report := &model.InspectionReport{
		DimensionalEval: model.EvalApproved,
		VisualEval:      model.EvalRejected,
		PackagingEval:   model.EvalApproved,
		LotTreatment:    model.EvalApproved,
	}
	if _, _, err := svc.Create(context.Background(), report, nil); err != nil {
		t.Fatalf("Create вернул ошибку: %v", err)
	}
	// Статус консистентен с оценками уже при создании записи,
	// даже если файлов нет и UpdateImages не вызывается
	if persisted.Status != model.StatusRejected {
		t.Errorf("статус в Create = %q, ожидается rejected", persisted.Status)
	}
}

func TestReportServiceCreate_EnforcesServerFields(t *testing.T) {
	var persisted *model.InspectionReport
	repo := &mockReportRepo{
		createFn: func(ctx context.Context, report *model.InspectionReport) (string, error) {
			persisted = report
			return "rep-1", nil
		},
	}
	svc := newTestReportService(repo, &mockUploader{}, &mockPurger{})

	var preloaded model.ReportImages
	preloaded.SetCategory("face", []string{"/assets/injected.jpg"})

	report := &model.InspectionReport{
		DimensionalEval: model.EvalApproved,
		VisualEval:      model.EvalApproved,
		PackagingEval:   model.EvalApproved,
		LotTreatment:    model.EvalApproved,
		// Клиент пытается подменить состав дефектов и предзаполнить URL
		Defects: []model.Defect{
			{Name: "Invented defect", Description: "x", Qty: "1"},
			{Name: "Split", Description: "trinca na borda", Qty: "3"},
		},
		Images: preloaded,
	}
	if _, _, err := svc.Create(context.Background(), report, nil); err != nil {
		t.Fatalf("Create вернул ошибку: %v", err)
	}

	if persisted.Images.Total() != 0 {
		t.Errorf("Images.Total() = %d, новый отчёт создаётся без изображений", persisted.Images.Total())
	}
	if len(persisted.Defects) != len(model.DefectNames) {
		t.Fatalf("дефектов = %d, ожидается %d", len(persisted.Defects), len(model.DefectNames))
	}
	for i, name := range model.DefectNames {
		if persisted.Defects[i].Name != name {
			t.Fatalf("Defects[%d].Name = %q, ожидается %q (канонический порядок)",
				i, persisted.Defects[i].Name, name)
		}
	}
	// Описание известного дефекта сохраняется, выдуманного — отброшено
	for _, d := range persisted.Defects {
		if d.Name == "Split" && (d.Description != "trinca na borda" || d.Qty != "3") {
			t.Errorf("данные дефекта Split не сохранены: %+v", d)
		}
		if d.Name == "Invented defect" {
			t.Error("выдуманное имя дефекта не должно сохраняться")
		}
	}
}

func TestReportServiceGet_OwnershipAndCache(t *testing.T) {
	dbCalls := 0
	repo := &mockReportRepo{
		getByIDFn: func(ctx context.Context, id string) (*model.InspectionReport, error) {
			dbCalls++
			if id != "rep-1" {
				return nil, repository.ErrNotFound
			}
			return &model.InspectionReport{ID: "rep-1", UserID: "user-1"}, nil
		},
	}
	svc := newTestReportService(repo, &mockUploader{}, &mockPurger{})
	ctx := context.Background()

	if _, err := svc.Get(ctx, "user-1", "rep-1"); err != nil {
		t.Fatalf("Get вернул ошибку: %v", err)
	}
	// Второе чтение из кэша, без обращения к БД
	if _, err := svc.Get(ctx, "user-1", "rep-1"); err != nil {
		t.Fatalf("повторный Get вернул ошибку: %v", err)
	}
	if dbCalls != 1 {
		t.Errorf("обращений к БД = %d, ожидается 1 (кэш)", dbCalls)
	}

	// Чужой отчёт (в том числе из кэша)
	if _, err := svc.Get(ctx, "user-2", "rep-1"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Get чужого отчёта = %v, ожидается ErrNotOwner", err)
	}
	if _, err := svc.Get(ctx, "user-1", "missing"); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("Get несуществующего = %v, ожидается ErrReportNotFound", err)
	}
}

func TestReportServiceUpdate_RecomputesStatus(t *testing.T) {
	var updatedStatus model.Status
	var updatedDefects []model.Defect
	repo := &mockReportRepo{
		getByIDFn: func(ctx context.Context, id string) (*model.InspectionReport, error) {
			return &model.InspectionReport{ID: id, UserID: "user-1", Status: model.StatusRejected}, nil
		},
		updateFn: func(ctx context.Context, id string, report *model.InspectionReport) error {
			updatedStatus = report.Status
			updatedDefects = report.Defects
			return nil
		},
	}
	svc := newTestReportService(repo, &mockUploader{}, &mockPurger{})

	report := &model.InspectionReport{
		DimensionalEval: model.EvalApproved,
		VisualEval:      model.EvalApproved,
		PackagingEval:   model.EvalRework,
		LotTreatment:    model.EvalApproved,
	}
	if _, err := svc.Update(context.Background(), "user-1", "rep-1", report, nil); err != nil {
		t.Fatalf("Update вернул ошибку: %v", err)
	}
	if updatedStatus != model.StatusPending {
		t.Errorf("статус после Update = %q, ожидается pending (rework)", updatedStatus)
	}
	if len(updatedDefects) != len(model.DefectNames) {
		t.Errorf("дефектов после Update = %d, ожидается канонический список из %d",
			len(updatedDefects), len(model.DefectNames))
	}
}

func TestReportServiceDelete_PurgesAssets(t *testing.T) {
	repo := &mockReportRepo{
		getByIDFn: func(ctx context.Context, id string) (*model.InspectionReport, error) {
			return &model.InspectionReport{ID: id, UserID: "user-1"}, nil
		},
		deleteFn: func(ctx context.Context, id string) error { return nil },
	}
	purger := &mockPurger{}
	svc := newTestReportService(repo, &mockUploader{}, purger)

	if err := svc.Delete(context.Background(), "user-1", "rep-1"); err != nil {
		t.Fatalf("Delete вернул ошибку: %v", err)
	}
	if len(purger.deleted) != 1 || purger.deleted[0] != "rep-1" {
		t.Errorf("вложения не удалены: %v", purger.deleted)
	}

	// Ошибка удаления вложений не прерывает операцию
	purger.err = errors.New("диск недоступен")
	if err := svc.Delete(context.Background(), "user-1", "rep-1"); err != nil {
		t.Errorf("Delete при ошибке purge = %v, ожидается nil", err)
	}
}
