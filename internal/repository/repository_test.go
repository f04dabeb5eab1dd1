package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arturkryukov/phvinspect/report-module/internal/config"
	"github.com/arturkryukov/phvinspect/report-module/internal/database"
	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool; очистка через t.Cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("phvinspect_test"),
		postgres.WithUsername("phvinspect"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	os.Setenv("RM_DB_HOST", host)
	os.Setenv("RM_DB_PORT", port.Port())
	os.Setenv("RM_DB_NAME", "phvinspect_test")
	os.Setenv("RM_DB_USER", "phvinspect")
	os.Setenv("RM_DB_PASSWORD", "test-password")
	os.Setenv("RM_DB_SSL_MODE", "disable")
	os.Setenv("RM_JWT_SECRET", "test-secret")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// createTestUser регистрирует пользователя и возвращает его id.
func createTestUser(t *testing.T, pool *pgxpool.Pool, email string) string {
	t.Helper()

	users := NewUserRepository(pool)
	id, err := users.Create(context.Background(), &model.User{
		Email:        email,
		DisplayName:  "Test User",
		PasswordHash: "$2a$10$fakefakefakefakefakefa",
	})
	if err != nil {
		t.Fatalf("Ошибка создания пользователя: %v", err)
	}
	return id
}

// testReport возвращает заполненный отчёт для тестов.
// Статус задан явно: Create записывает его как передан,
// деривация из оценок — ответственность сервисного слоя.
func testReport(userID string) *model.InspectionReport {
	return &model.InspectionReport{
		UserID:          userID,
		Status:          model.StatusApproved,
		InspectionDate:  "2024-03-15",
		MillSupplier:    "Serra Alta",
		OrderNumber:     "ORD-1001",
		Piles:           "P-7",
		PineType:        model.PinePine100,
		Location:        "Curitiba",
		ItemInspected:   "Plywood 18mm",
		DimensionalEval: model.EvalApproved,
		VisualEval:      model.EvalApproved,
		PackagingEval:   model.EvalApproved,
		LotTreatment:    model.EvalApproved,
		Defects:         model.DefaultDefects(),
		DimensionalRecords: model.DimensionalRecords{
			Length: []string{"2440", "2441"}, LengthUnit: "mm",
			Width: []string{"1220"}, WidthUnit: "mm",
			ThicknessUnit: "mm", SquarenessUnit: "mm",
		},
	}
}

// --- Тесты ReportRepository ---

func TestReportCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewReportRepository(pool)
	userID := createTestUser(t, pool, "crud@example.com")

	// Create
	id, err := repo.Create(ctx, testReport(userID))
	if err != nil {
		t.Fatalf("Create вернул ошибку: %v", err)
	}
	if id == "" {
		t.Fatal("Create вернул пустой id")
	}

	// GetByID: статус записан как передан, изображения пустые
	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID вернул ошибку: %v", err)
	}
	if got.Status != model.StatusApproved {
		t.Errorf("Status = %q, ожидается approved (как передан в Create)", got.Status)
	}
	if got.Images.Total() != 0 {
		t.Errorf("Images.Total() = %d, ожидается 0", got.Images.Total())
	}
	if len(got.Defects) != len(model.DefectNames) {
		t.Errorf("количество дефектов = %d, ожидается %d", len(got.Defects), len(model.DefectNames))
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.Before(got.CreatedAt) {
		t.Errorf("временные метки некорректны: created=%v updated=%v", got.CreatedAt, got.UpdatedAt)
	}

	// Update: полная перезапись + статус
	got.VisualEval = model.EvalRejected
	got.Status = model.DeriveStatus(got.DimensionalEval, got.VisualEval, got.PackagingEval, got.LotTreatment)
	if err := repo.Update(ctx, id, got); err != nil {
		t.Fatalf("Update вернул ошибку: %v", err)
	}

	updated, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID после Update: %v", err)
	}
	if updated.Status != model.StatusRejected {
		t.Errorf("Status после Update = %q, ожидается rejected", updated.Status)
	}
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		t.Error("UpdatedAt < CreatedAt после Update")
	}

	// UpdateImages
	var images model.ReportImages
	images.SetCategory("face", []string{"/assets/reports/" + id + "/face/1_a.jpg"})
	if err := repo.UpdateImages(ctx, id, images, model.StatusRejected); err != nil {
		t.Fatalf("UpdateImages вернул ошибку: %v", err)
	}
	withImages, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID после UpdateImages: %v", err)
	}
	if withImages.Images.Total() != 1 {
		t.Errorf("Images.Total() = %d, ожидается 1", withImages.Images.Total())
	}

	// Delete
	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("Delete вернул ошибку: %v", err)
	}
	if _, err := repo.GetByID(ctx, id); err != ErrNotFound {
		t.Errorf("GetByID после Delete = %v, ожидается ErrNotFound", err)
	}
	if err := repo.Delete(ctx, id); err != ErrNotFound {
		t.Errorf("повторный Delete = %v, ожидается ErrNotFound", err)
	}
}

func TestReportListByUser_NewestFirst(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewReportRepository(pool)
	userID := createTestUser(t, pool, "list@example.com")
	otherID := createTestUser(t, pool, "other@example.com")

	for i := 0; i < 3; i++ {
		if _, err := repo.Create(ctx, testReport(userID)); err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := repo.Create(ctx, testReport(otherID)); err != nil {
		t.Fatalf("Create чужого отчёта: %v", err)
	}

	reports, err := repo.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListByUser вернул ошибку: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("len(reports) = %d, ожидается 3 (только свои)", len(reports))
	}
	for i := 1; i < len(reports); i++ {
		if reports[i].CreatedAt.After(reports[i-1].CreatedAt) {
			t.Errorf("отчёты не отсортированы по убыванию created_at: [%d] > [%d]", i, i-1)
		}
	}
}

// --- Тесты UserRepository ---

func TestUserRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(pool)

	id, err := repo.Create(ctx, &model.User{
		Email:        "user@example.com",
		DisplayName:  "Инспектор",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("Create вернул ошибку: %v", err)
	}

	// Дублирующийся email → ErrConflict
	if _, err := repo.Create(ctx, &model.User{Email: "user@example.com", PasswordHash: "x"}); err != ErrConflict {
		t.Errorf("повторный Create = %v, ожидается ErrConflict", err)
	}

	byEmail, err := repo.GetByEmail(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("GetByEmail вернул ошибку: %v", err)
	}
	if byEmail.ID != id {
		t.Errorf("GetByEmail.ID = %q, ожидается %q", byEmail.ID, id)
	}
	if byEmail.LastLoginAt != nil {
		t.Error("LastLoginAt нового пользователя должен быть nil")
	}

	if err := repo.TouchLastLogin(ctx, id); err != nil {
		t.Fatalf("TouchLastLogin вернул ошибку: %v", err)
	}
	touched, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID вернул ошибку: %v", err)
	}
	if touched.LastLoginAt == nil {
		t.Error("LastLoginAt должен быть установлен после TouchLastLogin")
	}

	if err := repo.UpdateDisplayName(ctx, id, "Новое имя"); err != nil {
		t.Fatalf("UpdateDisplayName вернул ошибку: %v", err)
	}
	if err := repo.UpdatePassword(ctx, id, "new-hash"); err != nil {
		t.Fatalf("UpdatePassword вернул ошибку: %v", err)
	}

	renamed, _ := repo.GetByID(ctx, id)
	if renamed.DisplayName != "Новое имя" || renamed.PasswordHash != "new-hash" {
		t.Errorf("обновления не применились: %+v", renamed)
	}

	if _, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000"); err != ErrNotFound {
		t.Errorf("GetByID несуществующего = %v, ожидается ErrNotFound", err)
	}
}

// --- Тесты TxRunner ---

func TestTxRunner(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	runner := NewTxRunner(pool)
	userID := createTestUser(t, pool, "tx@example.com")

	// Откат: ошибка из fn отменяет все изменения.
	wantErr := errors.New("тестовая ошибка")
	err := runner.RunInTx(ctx, func(tx pgx.Tx) error {
		if _, err := NewReportRepository(tx).Create(ctx, testReport(userID)); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("RunInTx = %v, ожидается тестовая ошибка", err)
	}
	rolled, err := NewReportRepository(pool).ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListByUser после отката: %v", err)
	}
	if len(rolled) != 0 {
		t.Errorf("после отката отчётов = %d, ожидается 0", len(rolled))
	}

	// Коммит: изменения нескольких репозиториев атомарны.
	var reportID string
	err = runner.RunInTx(ctx, func(tx pgx.Tx) error {
		id, err := NewReportRepository(tx).Create(ctx, testReport(userID))
		if err != nil {
			return err
		}
		reportID = id
		custom := model.DefaultSettings()
		custom.Language = "en"
		return NewSettingsRepository(tx).Set(ctx, userID, custom)
	})
	if err != nil {
		t.Fatalf("RunInTx вернул ошибку: %v", err)
	}
	if _, err := NewReportRepository(pool).GetByID(ctx, reportID); err != nil {
		t.Errorf("отчёт не виден после коммита: %v", err)
	}
	stored, err := NewSettingsRepository(pool).Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get настроек после коммита: %v", err)
	}
	if stored.Language != "en" {
		t.Errorf("Language = %q, ожидается en", stored.Language)
	}
}

// --- Тесты SettingsRepository ---

func TestSettingsRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewSettingsRepository(pool)
	userID := createTestUser(t, pool, "settings@example.com")

	// Отсутствующая запись → значения по умолчанию
	got, err := repo.Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get вернул ошибку: %v", err)
	}
	if got != model.DefaultSettings() {
		t.Errorf("Get без записи = %+v, ожидаются умолчания", got)
	}

	// Upsert и чтение
	custom := got
	custom.Language = "en"
	custom.DateFormat = "yyyy-mm-dd"
	custom.PDFLogoVisible = false
	if err := repo.Set(ctx, userID, custom); err != nil {
		t.Fatalf("Set вернул ошибку: %v", err)
	}
	stored, err := repo.Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get после Set: %v", err)
	}
	if stored != custom {
		t.Errorf("Get = %+v, ожидается %+v", stored, custom)
	}

	// Битый JSON → умолчания, без ошибки
	if _, err := pool.Exec(ctx,
		`UPDATE user_settings SET settings = '"oops"' WHERE user_id = $1`, userID); err != nil {
		t.Fatalf("не удалось испортить настройки: %v", err)
	}
	corrupt, err := repo.Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get с битым JSON вернул ошибку: %v", err)
	}
	if corrupt != model.DefaultSettings() {
		t.Errorf("Get с битым JSON = %+v, ожидаются умолчания", corrupt)
	}

	// Reset: умолчания, запись остаётся
	if _, err := repo.Reset(ctx, userID); err != nil {
		t.Fatalf("Reset вернул ошибку: %v", err)
	}
	var count int
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_settings WHERE user_id = $1`, userID).Scan(&count); err != nil {
		t.Fatalf("подсчёт записей: %v", err)
	}
	if count != 1 {
		t.Errorf("после Reset записей = %d, ожидается 1 (сброс не удаляет запись)", count)
	}
}
