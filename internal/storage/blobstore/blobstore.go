// Пакет blobstore — хранение бинарного содержимого файлов на диске.
// Обеспечивает streaming-запись с подсчётом SHA-256 на лету, чтение
// и идемпотентное удаление. Метаданные живут в PostgreSQL, здесь —
// только байты под устойчивыми к коллизиям ключами.
package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound — blob с указанным ключом отсутствует.
var ErrNotFound = errors.New("blob не найден")

// Store — дисковое хранилище blob'ов.
type Store struct {
	// dataDir — корневая директория хранения (SC_DATA_DIR)
	dataDir string
}

// SaveResult — результат сохранения blob'а.
type SaveResult struct {
	// Key — ключ blob'а в хранилище (относительное имя файла)
	Key string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого
	Checksum string
}

// New создаёт Store. Создаёт директорию данных, если её нет.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &Store{dataDir: dataDir}, nil
}

// Save записывает данные из reader на диск с подсчётом SHA-256 на лету.
// nameHint — оригинальное имя файла, owner — идентификатор владельца;
// оба участвуют только в генерации ключа.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (s *Store) Save(reader io.Reader, nameHint, owner string) (*SaveResult, error) {
	key := generateKey(nameHint, owner)
	fullPath := filepath.Join(s.dataDir, key)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Streaming запись с одновременным подсчётом SHA-256
	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		Key:      key,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает blob для чтения и возвращает *os.File.
// Вызывающий код обязан закрыть файл.
// Возвращает ErrNotFound, если ключ отсутствует.
func (s *Store) Open(key string) (*os.File, error) {
	f, err := os.Open(filepath.Join(s.dataDir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("ошибка открытия blob %s: %w", key, err)
	}

	return f, nil
}

// Delete удаляет blob с диска.
// Возвращает nil, если blob уже не существует — повторная очистка безопасна.
func (s *Store) Delete(key string) error {
	err := os.Remove(filepath.Join(s.dataDir, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления blob %s: %w", key, err)
	}
	return nil
}

// Exists проверяет существование blob'а.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(filepath.Join(s.dataDir, key))
	return err == nil
}

// DataDir возвращает путь к директории данных.
func (s *Store) DataDir() string {
	return s.dataDir
}

// CheckReady — проверка готовности хранилища для health endpoint:
// директория данных существует и доступна на запись.
func (s *Store) CheckReady() (status, message string) {
	probe := filepath.Join(s.dataDir, ".ready-probe")
	if err := os.WriteFile(probe, nil, 0o640); err != nil {
		return "fail", fmt.Sprintf("директория данных недоступна на запись: %v", err)
	}
	os.Remove(probe)
	return "ok", "директория данных доступна"
}

// generateKey генерирует ключ blob'а.
// Формат: {name}_{owner}_{timestamp}_{uuid}.{ext}
// Timestamp сам по себе не защищает от коллизий при одновременных
// загрузках одинаковых имён, поэтому добавляется случайный компонент.
func generateKey(nameHint, owner string) string {
	ext := filepath.Ext(nameHint)
	name := strings.TrimSuffix(nameHint, ext)

	name = sanitize(name)
	user := sanitize(owner)

	// Ограничиваем длину имени для предотвращения проблем с FS
	if len(name) > 50 {
		name = name[:50]
	}
	if len(user) > 20 {
		user = user[:20]
	}

	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8]

	if ext != "" {
		return fmt.Sprintf("%s_%s_%s_%s%s", name, user, ts, uid, ext)
	}
	return fmt.Sprintf("%s_%s_%s_%s", name, user, ts, uid)
}

// sanitize убирает небезопасные символы из строки для использования в ключе.
// Оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}
