// Точка входа Report Module — сервис отчётов полевых инспекций.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// инициализирует i18n, хранилище вложений, сервисный слой и HTTP-обработчики,
// запускает мониторинг зависимостей (topologymetrics) и HTTP-сервер
// с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/arturkryukov/phvinspect/report-module/internal/api/handlers"
	"github.com/arturkryukov/phvinspect/report-module/internal/auth"
	"github.com/arturkryukov/phvinspect/report-module/internal/config"
	"github.com/arturkryukov/phvinspect/report-module/internal/database"
	"github.com/arturkryukov/phvinspect/report-module/internal/i18n"
	"github.com/arturkryukov/phvinspect/report-module/internal/pdf"
	"github.com/arturkryukov/phvinspect/report-module/internal/repository"
	"github.com/arturkryukov/phvinspect/report-module/internal/server"
	"github.com/arturkryukov/phvinspect/report-module/internal/service"
	"github.com/arturkryukov/phvinspect/report-module/internal/storage/assetstore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Report Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("RM_SESSION_KEY") == "" {
		logger.Warn("RM_SESSION_KEY не задана — сессии не переживут рестарт сервиса")
	}

	// 3. Загрузка каталогов переводов
	bundle := i18n.Init(logger)
	if err := i18n.LoadFromEmbedFS(bundle, logger); err != nil {
		logger.Error("Ошибка загрузки i18n каталогов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 6. Мониторинг зависимостей (topologymetrics)
	dephealthSvc, err := service.NewDephealthService(
		"report-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания dephealth", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := dephealthSvc.Start(ctx); err != nil {
		logger.Error("Ошибка запуска dephealth", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dephealthSvc.Stop()

	// 7. Хранилище вложений
	assets, err := assetstore.New(cfg.AssetDataDir, cfg.AssetMaxFileSize)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища вложений",
			slog.String("dir", cfg.AssetDataDir), slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 8. Сессии и токены
	sessions, err := auth.NewSessionManager(cfg.SessionKey, cfg.SessionSecure)
	if err != nil {
		logger.Error("Ошибка создания SessionManager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

	// 9. Repositories
	userRepo := repository.NewUserRepository(pool)
	reportRepo := repository.NewReportRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	// 10. Services
	uploadSvc := service.NewUploadService(assets, logger)
	cacheSvc := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	reportSvc := service.NewReportService(reportRepo, uploadSvc, assets, cacheSvc, logger)
	renderer := pdf.NewRenderer(cfg.PDFLogoPath, logger)

	// 11. HTTP handlers
	h := server.Handlers{
		Health:    handlers.NewHealthHandler(database.NewReadinessChecker(pool)),
		Auth:      handlers.NewAuthHandler(userRepo, sessions, tokens, logger),
		Profile:   handlers.NewProfileHandler(userRepo, logger),
		Settings:  handlers.NewSettingsHandler(settingsRepo, logger),
		Reports:   handlers.NewReportHandler(reportSvc, settingsRepo, renderer, cfg.UploadMaxRequestSize, logger),
		Dashboard: handlers.NewDashboardHandler(reportSvc, settingsRepo, logger),
		Assets:    handlers.NewAssetHandler(assets, reportSvc, logger),
	}

	// 12. Запуск HTTP-сервера (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, h, sessions, tokens)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Report Module остановлен")
}
