// Пакет server — HTTP-сервер Report Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/phvinspect/report-module/internal/api/handlers"
	"github.com/arturkryukov/phvinspect/report-module/internal/api/middleware"
	"github.com/arturkryukov/phvinspect/report-module/internal/auth"
	"github.com/arturkryukov/phvinspect/report-module/internal/config"
	"github.com/arturkryukov/phvinspect/report-module/internal/i18n"
)

// Handlers — все HTTP-обработчики Report Module.
type Handlers struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	Profile   *handlers.ProfileHandler
	Settings  *handlers.SettingsHandler
	Reports   *handlers.ReportHandler
	Dashboard *handlers.DashboardHandler
	Assets    *handlers.AssetHandler
}

// Server — HTTP-сервер Report Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	h Handlers,
	sessions *auth.SessionManager,
	tokens *auth.TokenIssuer,
) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(i18n.Middleware())

	// Служебные endpoints — без аутентификации
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)

	// Аутентификация — открытые маршруты
	router.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
		r.Post("/logout", h.Auth.Logout)
		r.Post("/token", h.Auth.Token)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessions, tokens))
			r.Get("/me", h.Auth.Me)
		})
	})

	// Основное API — только для аутентифицированных
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(sessions, tokens))

		r.Put("/api/v1/profile", h.Profile.UpdateProfile)
		r.Put("/api/v1/profile/password", h.Profile.ChangePassword)

		r.Get("/api/v1/settings", h.Settings.GetSettings)
		r.Put("/api/v1/settings", h.Settings.UpdateSettings)
		r.Post("/api/v1/settings/reset", h.Settings.ResetSettings)

		r.Route("/api/v1/reports", func(r chi.Router) {
			r.Get("/", h.Reports.ListReports)
			r.Post("/", h.Reports.CreateReport)
			r.Get("/{id}", h.Reports.GetReport)
			r.Put("/{id}", h.Reports.UpdateReport)
			r.Delete("/{id}", h.Reports.DeleteReport)
			r.Post("/{id}/images", h.Reports.AddImages)
			r.Get("/{id}/pdf", h.Reports.ExportPDF)
		})

		r.Get("/api/v1/dashboard", h.Dashboard.GetDashboard)

		r.Get("/assets/*", h.Assets.ServeAsset)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
