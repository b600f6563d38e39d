// Точка входа specsCloud — сервис каталогизации файлов.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// инициализирует blob store, сервисный слой и API handlers,
// запускает HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/iamdeveloper17/specsCloud/internal/api/handlers"
	"github.com/iamdeveloper17/specsCloud/internal/api/middleware"
	"github.com/iamdeveloper17/specsCloud/internal/config"
	"github.com/iamdeveloper17/specsCloud/internal/database"
	"github.com/iamdeveloper17/specsCloud/internal/repository"
	"github.com/iamdeveloper17/specsCloud/internal/server"
	"github.com/iamdeveloper17/specsCloud/internal/service"
	"github.com/iamdeveloper17/specsCloud/internal/storage/blobstore"
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
	logger.Info("specsCloud запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Blob store на диске
	blobs, err := blobstore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации blob store",
			slog.String("data_dir", cfg.DataDir),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Blob store готов", slog.String("data_dir", blobs.DataDir()))

	// 6. Repositories
	fileRepo := repository.NewFileRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	// 7. Services. FolderService создаётся первым: он же —
	// инвалидатор кэша для мутирующих сервисов.
	folderSvc := service.NewFolderService(fileRepo, blobs, cfg.FolderCacheSize, cfg.FolderCacheTTL, logger)
	uploadSvc := service.NewUploadService(fileRepo, blobs, folderSvc, cfg.MaxFileSize, logger)
	fileSvc := service.NewFileService(fileRepo, blobs, folderSvc, logger)
	downloadSvc := service.NewDownloadService(fileRepo, blobs, logger)
	adminSvc := service.NewAdminService(userRepo, fileRepo, blobs, repository.NewTxRunner(pool), folderSvc, logger)
	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTTTL, logger)

	// Bootstrap администратора: создаётся один раз, повторные старты — no-op
	if cfg.AdminEmail != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logger.Error("Ошибка bootstrap администратора", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// 8. API handlers
	h := server.Handlers{
		Auth:    handlers.NewAuthHandler(authSvc, logger),
		Files:   handlers.NewFilesHandler(uploadSvc, fileSvc, downloadSvc, logger),
		Folders: handlers.NewFoldersHandler(folderSvc, logger),
		Admin:   handlers.NewAdminHandler(adminSvc, logger),
		Health:  handlers.NewHealthHandler(database.NewReadinessChecker(pool), blobs),
	}

	// 9. JWT middleware
	jwtAuth := middleware.NewJWTAuth(authSvc)

	// 10. HTTP-сервер
	srv := server.New(cfg, logger, h, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка HTTP-сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
