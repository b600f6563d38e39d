// files.go — сервис файлового реестра: получение, список, rename, delete.
// Запись реестра монопольно владеет своим blob'ом: удаление записи
// всегда освобождает и blob.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iamdeveloper17/specsCloud/internal/domain/model"
	"github.com/iamdeveloper17/specsCloud/internal/repository"
	"github.com/iamdeveloper17/specsCloud/internal/storage/blobstore"
)

// FileService — сервис файлового реестра.
type FileService struct {
	files       repository.FileRepository
	blobs       *blobstore.Store
	invalidator FolderInvalidator
	logger      *slog.Logger
}

// NewFileService создаёт сервис файлового реестра.
func NewFileService(
	files repository.FileRepository,
	blobs *blobstore.Store,
	invalidator FolderInvalidator,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		files:       files,
		blobs:       blobs,
		invalidator: invalidator,
		logger:      logger.With(slog.String("component", "file_service")),
	}
}

// Get возвращает метаданные файла.
func (s *FileService) Get(ctx context.Context, kind model.Kind, id string) (*model.FileRecord, error) {
	f, err := s.files.GetByID(ctx, kind, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("получение файла: %w", err)
	}
	return f, nil
}

// List возвращает метаданные файлов kind'а с фильтрацией.
func (s *FileService) List(ctx context.Context, kind model.Kind, filters repository.FileListFilters) ([]*model.FileRecord, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: недопустимый kind %q", ErrValidation, kind)
	}
	if filters.Category != nil && !model.ValidCategory(*filters.Category) {
		return nil, fmt.Errorf("%w: недопустимая категория %q", ErrValidation, *filters.Category)
	}

	records, err := s.files.List(ctx, kind, filters)
	if err != nil {
		return nil, fmt.Errorf("список файлов: %w", err)
	}
	return records, nil
}

// Rename меняет отображаемое имя файла.
// Пустое или состоящее из пробелов имя отклоняется; имя без изменений — no-op.
// FileType, FileSize и BlobRef не затрагиваются.
func (s *FileService) Rename(ctx context.Context, kind model.Kind, id, newName string) (*model.FileRecord, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, fmt.Errorf("%w: новое имя файла не может быть пустым", ErrValidation)
	}

	current, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if current.FileName == newName {
		// Переименование в то же имя — допустимый no-op
		return current, nil
	}

	f, err := s.files.Rename(ctx, kind, id, newName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("переименование файла: %w", err)
	}

	s.invalidator.Invalidate()
	s.logger.Info("Файл переименован",
		slog.String("file_id", id),
		slog.String("old_name", current.FileName),
		slog.String("new_name", newName),
	)
	return f, nil
}

// Delete удаляет запись файла и освобождает её blob.
// Отсутствующий id — NotFound. Ошибка удаления blob'а логируется,
// но не отменяет удаление записи: Delete в blob store идемпотентен,
// очистку можно повторить.
func (s *FileService) Delete(ctx context.Context, kind model.Kind, id string) error {
	blobRef, err := s.files.Delete(ctx, kind, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: файл %s", ErrNotFound, id)
		}
		return fmt.Errorf("удаление файла: %w", err)
	}

	if err := s.blobs.Delete(blobRef); err != nil {
		s.logger.Error("Ошибка удаления blob после удаления записи",
			slog.String("file_id", id),
			slog.String("blob_ref", blobRef),
			slog.String("error", err.Error()),
		)
	}

	s.invalidator.Invalidate()
	s.logger.Info("Файл удалён",
		slog.String("kind", string(kind)),
		slog.String("file_id", id),
	)
	return nil
}
