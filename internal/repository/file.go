package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/iamdeveloper17/specsCloud/internal/domain/model"
)

// FileRepository — интерфейс CRUD для таблицы files.
// Все операции параметризованы kind'ом: catalogue и specification
// живут в одной таблице, но ведут себя как независимые коллекции.
type FileRepository interface {
	// Create создаёт новую запись файла.
	Create(ctx context.Context, f *model.FileRecord) error
	// GetByID возвращает файл по UUID в рамках kind.
	GetByID(ctx context.Context, kind model.Kind, id string) (*model.FileRecord, error)
	// List возвращает метаданные файлов с фильтрацией (без blob-содержимого).
	List(ctx context.Context, kind model.Kind, filters FileListFilters) ([]*model.FileRecord, error)
	// ListAllKinds возвращает метаданные файлов обоих kind'ов с фильтрацией по владельцу.
	ListAllKinds(ctx context.Context, ownerID *string) ([]*model.FileRecord, error)
	// Rename меняет file_name. Валидация нового имени — в сервисном слое.
	Rename(ctx context.Context, kind model.Kind, id, newName string) (*model.FileRecord, error)
	// Delete удаляет запись и возвращает её blob_ref для освобождения blob'а.
	Delete(ctx context.Context, kind model.Kind, id string) (string, error)
	// RenameFolder массово меняет folder_name. Пустая папка — no-op (0 записей).
	// ownerID != nil ограничивает операцию записями этого владельца.
	RenameFolder(ctx context.Context, kind model.Kind, oldName, newName string, ownerID *string) (int, error)
	// DeleteByFolder массово удаляет записи папки, возвращая их blob_ref'ы.
	// ownerID != nil ограничивает операцию записями этого владельца.
	DeleteByFolder(ctx context.Context, kind model.Kind, folderName string, ownerID *string) ([]string, error)
	// CountByOwner возвращает количество файлов владельца по обоим kind'ам.
	CountByOwner(ctx context.Context, ownerID string) (int, error)
	// DeleteByOwner удаляет все записи владельца, возвращая их blob_ref'ы.
	DeleteByOwner(ctx context.Context, ownerID string) ([]string, error)
	// WithTx возвращает репозиторий, выполняющий запросы внутри tx.
	WithTx(tx DBTX) FileRepository
}

// FileListFilters — фильтры для списка файлов.
// Фильтрация выполняется на сервере, чтобы не раздувать ответ.
type FileListFilters struct {
	OwnerID    *string
	Category   *string
	FolderName *string
}

// fileRepo — реализация FileRepository.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлового реестра.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

func (r *fileRepo) WithTx(tx DBTX) FileRepository {
	return &fileRepo{db: tx}
}

// fileColumns — список колонок для SELECT запросов.
const fileColumns = `id, kind, file_name, file_type, file_size, blob_ref, checksum,
		owner_id, owner_email, category, folder_name, uploaded_at, created_at, updated_at`

// scanFile сканирует одну строку в FileRecord.
func scanFile(row pgx.Row) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	err := row.Scan(
		&f.ID, &f.Kind, &f.FileName, &f.FileType, &f.FileSize, &f.BlobRef, &f.Checksum,
		&f.OwnerID, &f.OwnerEmail, &f.Category, &f.FolderName,
		&f.UploadedAt, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *fileRepo) Create(ctx context.Context, f *model.FileRecord) error {
	query := `
		INSERT INTO files (id, kind, file_name, file_type, file_size, blob_ref, checksum,
			owner_id, owner_email, category, folder_name, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		f.ID, f.Kind, f.FileName, f.FileType, f.FileSize, f.BlobRef, f.Checksum,
		f.OwnerID, f.OwnerEmail, f.Category, f.FolderName, f.UploadedAt,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл с таким ID уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, kind model.Kind, id string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE kind = $1 AND id = $2`, fileColumns)

	f, err := scanFile(r.db.QueryRow(ctx, query, kind, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

// buildFileWhere строит WHERE-условие и аргументы для фильтрации файлов.
func buildFileWhere(kind model.Kind, filters FileListFilters) (string, []any) {
	conditions := []string{"kind = $1"}
	args := []any{kind}
	argNum := 2

	if filters.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argNum))
		args = append(args, *filters.OwnerID)
		argNum++
	}
	if filters.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argNum))
		args = append(args, *filters.Category)
		argNum++
	}
	if filters.FolderName != nil {
		conditions = append(conditions, fmt.Sprintf("folder_name = $%d", argNum))
		args = append(args, *filters.FolderName)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

func (r *fileRepo) List(ctx context.Context, kind model.Kind, filters FileListFilters) ([]*model.FileRecord, error) {
	where, args := buildFileWhere(kind, filters)

	query := fmt.Sprintf(`
		SELECT %s
		FROM files
		%s
		ORDER BY uploaded_at DESC, id`, fileColumns, where)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	return collectFiles(rows)
}

func (r *fileRepo) ListAllKinds(ctx context.Context, ownerID *string) ([]*model.FileRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM files
		WHERE ($1::uuid IS NULL OR owner_id = $1)
		ORDER BY uploaded_at DESC, id`, fileColumns)

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	return collectFiles(rows)
}

// collectFiles вычитывает все строки результата в срез FileRecord.
func collectFiles(rows pgx.Rows) ([]*model.FileRecord, error) {
	var result []*model.FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRepo) Rename(ctx context.Context, kind model.Kind, id, newName string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`
		UPDATE files
		SET file_name = $3, updated_at = now()
		WHERE kind = $1 AND id = $2
		RETURNING %s`, fileColumns)

	f, err := scanFile(r.db.QueryRow(ctx, query, kind, id, newName))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка переименования файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) Delete(ctx context.Context, kind model.Kind, id string) (string, error) {
	query := `
		DELETE FROM files
		WHERE kind = $1 AND id = $2
		RETURNING blob_ref`

	var blobRef string
	err := r.db.QueryRow(ctx, query, kind, id).Scan(&blobRef)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("ошибка удаления файла: %w", err)
	}
	return blobRef, nil
}

func (r *fileRepo) RenameFolder(ctx context.Context, kind model.Kind, oldName, newName string, ownerID *string) (int, error) {
	query := `
		UPDATE files
		SET folder_name = $3, updated_at = now()
		WHERE kind = $1 AND folder_name = $2
		  AND ($4::uuid IS NULL OR owner_id = $4)`

	tag, err := r.db.Exec(ctx, query, kind, oldName, newName, ownerID)
	if err != nil {
		return 0, fmt.Errorf("ошибка переименования папки: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *fileRepo) DeleteByFolder(ctx context.Context, kind model.Kind, folderName string, ownerID *string) ([]string, error) {
	query := `
		DELETE FROM files
		WHERE kind = $1 AND folder_name = $2
		  AND ($3::uuid IS NULL OR owner_id = $3)
		RETURNING blob_ref`

	rows, err := r.db.Query(ctx, query, kind, folderName, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка удаления папки: %w", err)
	}
	defer rows.Close()

	return collectBlobRefs(rows)
}

func (r *fileRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM files WHERE owner_id = $1`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return count, nil
}

func (r *fileRepo) DeleteByOwner(ctx context.Context, ownerID string) ([]string, error) {
	query := `
		DELETE FROM files
		WHERE owner_id = $1
		RETURNING blob_ref`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка удаления файлов владельца: %w", err)
	}
	defer rows.Close()

	return collectBlobRefs(rows)
}

// collectBlobRefs вычитывает blob_ref'ы из результата bulk delete.
func collectBlobRefs(rows pgx.Rows) ([]string, error) {
	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("ошибка сканирования blob_ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
