// Пакет server — HTTP-сервер specsCloud с graceful shutdown.
// Без TLS — termination ожидается на reverse proxy.
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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iamdeveloper17/specsCloud/internal/api/handlers"
	"github.com/iamdeveloper17/specsCloud/internal/api/middleware"
	"github.com/iamdeveloper17/specsCloud/internal/config"
)

// Handlers — набор доменных обработчиков, монтируемых на router.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Files   *handlers.FilesHandler
	Folders *handlers.FoldersHandler
	Admin   *handlers.AdminHandler
	Health  *handlers.HealthHandler
}

// Server — HTTP-сервер specsCloud.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, h Handlers, auth *middleware.JWTAuth) *Server {
	router := NewRouter(logger, h, auth)

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		// Ограничение размера тела: максимальный файл + запас на
		// multipart-заголовки и остальные поля формы.
		Handler:      http.MaxBytesHandler(router, cfg.MaxFileSize+(10<<20)),
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

// NewRouter собирает chi-router со всеми маршрутами и middleware.
func NewRouter(logger *slog.Logger, h Handlers, auth *middleware.JWTAuth) *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Публичные endpoints: probes, метрики, аутентификация.
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/signup", h.Auth.Signup)
		r.Post("/auth/login", h.Auth.Login)

		// Все остальные маршруты требуют JWT.
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Post("/files/upload", h.Files.Upload)
			r.Get("/files", h.Files.List)
			r.Get("/files/{id}", h.Files.Get)
			r.Get("/files/{id}/download", h.Files.Download)
			r.Put("/files/{id}/rename", h.Files.Rename)
			r.Delete("/files/{id}", h.Files.Delete)

			r.Get("/folders", h.Folders.List)
			r.Put("/folders/{name}", h.Folders.Rename)
			r.Delete("/folders/{name}", h.Folders.Delete)

			// Административные endpoints — только для админов.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/admin/users", h.Admin.ListUsers)
				r.Delete("/admin/users/{id}", h.Admin.DeleteUser)
			})
		})
	})

	return router
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
