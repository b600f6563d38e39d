// admin.go — админский сервис: агрегированный список пользователей
// и удаление пользователя с каскадом.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/iamdeveloper17/specsCloud/internal/domain/model"
	"github.com/iamdeveloper17/specsCloud/internal/repository"
	"github.com/iamdeveloper17/specsCloud/internal/storage/blobstore"
)

// TxRunner запускает функцию внутри транзакции БД.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// AdminService — админские операции над пользователями.
type AdminService struct {
	users       repository.UserRepository
	files       repository.FileRepository
	blobs       *blobstore.Store
	tx          TxRunner
	invalidator FolderInvalidator
	logger      *slog.Logger
}

// NewAdminService создаёт админский сервис.
func NewAdminService(
	users repository.UserRepository,
	files repository.FileRepository,
	blobs *blobstore.Store,
	tx TxRunner,
	invalidator FolderInvalidator,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		users:       users,
		files:       files,
		blobs:       blobs,
		tx:          tx,
		invalidator: invalidator,
		logger:      logger.With(slog.String("component", "admin_service")),
	}
}

// ListUsersWithFileCounts возвращает всех пользователей с количеством
// загруженных ими файлов. Пользователь без загрузок получает 0.
func (s *AdminService) ListUsersWithFileCounts(ctx context.Context) ([]*model.UserFileCount, error) {
	users, err := s.users.ListWithFileCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("список пользователей: %w", err)
	}
	return users, nil
}

// DeleteUser удаляет пользователя и каскадно — его файлы с blob'ами.
// Записи и пользователь удаляются в одной транзакции: висячие owner_id
// не остаются даже при сбое на полпути. Blob'ы освобождаются после
// коммита; ошибка освобождения логируется, Delete идемпотентен.
func (s *AdminService) DeleteUser(ctx context.Context, id string) error {
	var blobRefs []string
	err := s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		refs, err := s.files.WithTx(tx).DeleteByOwner(ctx, id)
		if err != nil {
			return fmt.Errorf("каскадное удаление файлов: %w", err)
		}
		if err := s.users.WithTx(tx).Delete(ctx, id); err != nil {
			return err
		}
		blobRefs = refs
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: пользователь %s", ErrNotFound, id)
		}
		return fmt.Errorf("удаление пользователя: %w", err)
	}

	for _, ref := range blobRefs {
		if err := s.blobs.Delete(ref); err != nil {
			s.logger.Error("Ошибка освобождения blob",
				slog.String("blob_ref", ref),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(blobRefs) > 0 {
		s.invalidator.Invalidate()
	}
	s.logger.Info("Пользователь удалён",
		slog.String("user_id", id),
		slog.Int("files_deleted", len(blobRefs)),
	)
	return nil
}
