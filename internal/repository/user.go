package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iamdeveloper17/specsCloud/internal/domain/model"
)

// UserRepository — интерфейс CRUD для таблицы users.
type UserRepository interface {
	// Create создаёт нового пользователя. ErrConflict при дублирующемся email.
	Create(ctx context.Context, u *model.User) error
	// GetByID возвращает пользователя по UUID.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByEmail возвращает пользователя по email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// ListWithFileCounts возвращает всех пользователей с количеством их файлов.
	ListWithFileCounts(ctx context.Context) ([]*model.UserFileCount, error)
	// Delete удаляет пользователя. Файлы владельца удаляет сервисный слой.
	Delete(ctx context.Context, id string) error
	// WithTx возвращает репозиторий, выполняющий запросы внутри tx.
	WithTx(tx DBTX) UserRepository
}

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) WithTx(tx DBTX) UserRepository {
	return &userRepo{db: tx}
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, u.IsAdmin,
	).Scan(&u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: пользователь с таким email уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `WHERE email = $1`, email)
}

// getOne выполняет SELECT одного пользователя по условию.
func (r *userRepo) getOne(ctx context.Context, where string, arg any) (*model.User, error) {
	query := fmt.Sprintf(`
		SELECT id, name, email, password_hash, is_admin, created_at
		FROM users %s`, where)

	u := &model.User{}
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

// ListWithFileCounts — агрегация users ⟕ files.
// У пользователя без загрузок totalFiles = 0, запись не пропадает.
func (r *userRepo) ListWithFileCounts(ctx context.Context) ([]*model.UserFileCount, error) {
	query := `
		SELECT u.id, u.name, u.email, u.is_admin, COUNT(f.id)
		FROM users u
		LEFT JOIN files f ON f.owner_id = u.id
		GROUP BY u.id, u.name, u.email, u.is_admin
		ORDER BY u.created_at, u.id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	defer rows.Close()

	var result []*model.UserFileCount
	for rows.Next() {
		u := &model.UserFileCount{}
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin, &u.TotalFiles); err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
