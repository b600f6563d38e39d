// folders.go — сервис виртуальных папок.
// Папки не хранятся: это проекция группировки записей по folder_name,
// вычисляемая на запрос и кэшируемая в LRU с TTL. Инвалидация —
// через счётчик версии хранилища, участвующий в ключе кэша.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iamdeveloper17/specsCloud/internal/domain/model"
	"github.com/iamdeveloper17/specsCloud/internal/repository"
	"github.com/iamdeveloper17/specsCloud/internal/storage/blobstore"
)

// Prometheus-метрики кэша папок.
var (
	folderCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sc_folder_cache_hits_total",
		Help: "Общее количество попаданий в кэш вида папок.",
	})
	folderCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sc_folder_cache_misses_total",
		Help: "Общее количество промахов кэша вида папок.",
	})
)

// FolderScope — область запроса вида папок.
// Kind == nil — объединённый вид по обоим kind'ам.
// OwnerID == nil — все владельцы (админская область).
type FolderScope struct {
	Kind    *model.Kind
	OwnerID *string
}

// cacheKey возвращает ключ кэша для области с учётом версии хранилища.
func (sc FolderScope) cacheKey(version uint64) string {
	kind := "*"
	if sc.Kind != nil {
		kind = string(*sc.Kind)
	}
	owner := "*"
	if sc.OwnerID != nil {
		owner = *sc.OwnerID
	}
	return fmt.Sprintf("v%d|kind=%s|owner=%s", version, kind, owner)
}

// FolderService — сервис виртуальных папок.
type FolderService struct {
	files  repository.FileRepository
	blobs  *blobstore.Store
	cache  *expirable.LRU[string, []*model.Folder]
	logger *slog.Logger

	// version — счётчик версии хранилища; мутации инкрементируют его,
	// делая все закэшированные проекции недостижимыми
	version atomic.Uint64
}

// NewFolderService создаёт сервис папок с LRU-кэшем проекций.
// cacheSize — максимальное количество областей в кэше, cacheTTL — время
// жизни проекции после вычисления.
func NewFolderService(
	files repository.FileRepository,
	blobs *blobstore.Store,
	cacheSize int,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *FolderService {
	return &FolderService{
		files:  files,
		blobs:  blobs,
		cache:  expirable.NewLRU[string, []*model.Folder](cacheSize, nil, cacheTTL),
		logger: logger.With(slog.String("component", "folder_service")),
	}
}

// Invalidate помечает все закэшированные проекции устаревшими.
// Вызывается после любой мутации файлового реестра.
func (s *FolderService) Invalidate() {
	s.version.Add(1)
}

// ListFolders возвращает вид папок для области.
// Каждая запись области попадает ровно в одну папку; записи с пустым
// folder_name группируются под меткой "No Folder". Порядок детерминирован:
// папки отсортированы по имени, файлы — в порядке выдачи реестра
// (uploaded_at DESC, id).
func (s *FolderService) ListFolders(ctx context.Context, scope FolderScope) ([]*model.Folder, error) {
	if scope.Kind != nil && !scope.Kind.Valid() {
		return nil, fmt.Errorf("%w: недопустимый kind %q", ErrValidation, *scope.Kind)
	}

	key := scope.cacheKey(s.version.Load())
	if folders, ok := s.cache.Get(key); ok {
		folderCacheHitsTotal.Inc()
		return folders, nil
	}
	folderCacheMissesTotal.Inc()

	var records []*model.FileRecord
	var err error
	if scope.Kind != nil {
		records, err = s.files.List(ctx, *scope.Kind, repository.FileListFilters{OwnerID: scope.OwnerID})
	} else {
		records, err = s.files.ListAllKinds(ctx, scope.OwnerID)
	}
	if err != nil {
		return nil, fmt.Errorf("получение записей для вида папок: %w", err)
	}

	folders := groupByFolder(records)
	s.cache.Add(key, folders)
	return folders, nil
}

// groupByFolder строит проекцию папок из плоского списка записей.
func groupByFolder(records []*model.FileRecord) []*model.Folder {
	grouped := make(map[string][]model.FolderFile)
	for _, f := range records {
		folder := f.FolderName
		if strings.TrimSpace(folder) == "" {
			folder = model.NoFolder
		}
		grouped[folder] = append(grouped[folder], model.FolderFile{
			ID:       f.ID,
			FileName: f.FileName,
			FileType: f.FileType,
			FileSize: f.FileSize,
			Category: f.Category,
			Kind:     f.Kind,
			OwnerID:  f.OwnerID,
		})
	}

	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)

	folders := make([]*model.Folder, 0, len(names))
	for _, name := range names {
		files := grouped[name]
		folders = append(folders, &model.Folder{
			FolderName: name,
			FileCount:  len(files),
			Files:      files,
		})
	}
	return folders
}

// RenameFolder массово переносит записи папки под новое имя.
// ownerID != nil ограничивает операцию файлами этого владельца:
// не-админ мутирует только собственную часть папки.
// Пустое новое имя отклоняется. Отсутствующая папка — no-op (0 записей):
// bulk-операции естественно идемпотентны на пустом множестве.
func (s *FolderService) RenameFolder(ctx context.Context, kind model.Kind, oldName, newName string, ownerID *string) (int, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: недопустимый kind %q", ErrValidation, kind)
	}
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return 0, fmt.Errorf("%w: новое имя папки не может быть пустым", ErrValidation)
	}

	count, err := s.files.RenameFolder(ctx, kind, oldName, newName, ownerID)
	if err != nil {
		return 0, fmt.Errorf("переименование папки: %w", err)
	}

	if count > 0 {
		s.Invalidate()
	}
	s.logger.Info("Папка переименована",
		slog.String("kind", string(kind)),
		slog.String("old_name", oldName),
		slog.String("new_name", newName),
		slog.Int("updated", count),
	)
	return count, nil
}

// DeleteFolder массово удаляет записи папки вместе с их blob'ами.
// ownerID != nil ограничивает операцию файлами этого владельца.
// Отсутствующая папка — no-op (0 записей).
func (s *FolderService) DeleteFolder(ctx context.Context, kind model.Kind, folderName string, ownerID *string) (int, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: недопустимый kind %q", ErrValidation, kind)
	}

	blobRefs, err := s.files.DeleteByFolder(ctx, kind, folderName, ownerID)
	if err != nil {
		return 0, fmt.Errorf("удаление папки: %w", err)
	}

	s.reclaimBlobs(blobRefs)

	if len(blobRefs) > 0 {
		s.Invalidate()
	}
	s.logger.Info("Папка удалена",
		slog.String("kind", string(kind)),
		slog.String("folder", folderName),
		slog.Int("deleted", len(blobRefs)),
	)
	return len(blobRefs), nil
}

// reclaimBlobs освобождает blob'ы удалённых записей.
// Ошибки логируются, но не прерывают очистку: Delete идемпотентен.
func (s *FolderService) reclaimBlobs(blobRefs []string) {
	for _, ref := range blobRefs {
		if err := s.blobs.Delete(ref); err != nil {
			s.logger.Error("Ошибка освобождения blob",
				slog.String("blob_ref", ref),
				slog.String("error", err.Error()),
			)
		}
	}
}
