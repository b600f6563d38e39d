// Пакет model — доменные модели specsCloud.
package model

import "time"

// Kind — контекст загрузки, разделяющий файлы на независимые коллекции.
type Kind string

// Допустимые kind'ы.
const (
	// KindCatalogue — каталожные документы.
	KindCatalogue Kind = "catalogue"
	// KindSpecification — спецификации.
	KindSpecification Kind = "specification"
)

// Valid проверяет, что kind — одно из допустимых значений.
func (k Kind) Valid() bool {
	return k == KindCatalogue || k == KindSpecification
}

// Categories — фиксированный перечень категорий файлов.
// Валидируется на сервере при загрузке.
var Categories = []string{
	"N/A",
	"Mechanical",
	"Electrical",
	"Civil",
	"Instrumentation",
	"General",
}

// ValidCategory проверяет, что категория входит в фиксированный перечень.
func ValidCategory(c string) bool {
	for _, cat := range Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// DefaultFolder — папка по умолчанию при загрузке без указания папки.
const DefaultFolder = "General"

// NoFolder — метка для записей с пустым folder_name в виртуальной группировке.
const NoFolder = "No Folder"

// FileRecord — запись файла в реестре.
// Хранится в таблице files. Бинарное содержимое лежит в blob store на диске,
// запись держит только ключ (BlobRef).
type FileRecord struct {
	// ID — UUID записи, генерируется системой
	ID string `json:"id"`
	// Kind — контекст загрузки (catalogue, specification)
	Kind Kind `json:"kind"`
	// FileName — отображаемое имя файла, изменяемое через rename
	FileName string `json:"fileName"`
	// FileType — MIME-тип, задаётся при загрузке, далее неизменен
	FileType string `json:"fileType"`
	// FileSize — размер в байтах, задаётся при загрузке, далее неизменен
	FileSize int64 `json:"fileSize"`
	// BlobRef — ключ файла в blob store, наружу не отдаётся
	BlobRef string `json:"-"`
	// Checksum — SHA-256 содержимого, считается при загрузке
	Checksum string `json:"checksum"`
	// OwnerID — слабая ссылка на пользователя (UUID)
	OwnerID string `json:"ownerId"`
	// OwnerEmail — денормализованный email владельца
	OwnerEmail string `json:"ownerEmail"`
	// Category — категория из фиксированного перечня
	Category string `json:"category"`
	// FolderName — метка папки; папки существуют только как группировка
	FolderName string `json:"folderName"`
	// UploadedAt — время загрузки
	UploadedAt time.Time `json:"uploadedAt"`
	// CreatedAt — время создания записи
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time `json:"updatedAt"`
}

// FolderFile — файл внутри виртуальной папки (метаданные без blob).
type FolderFile struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
	Category string `json:"category"`
	Kind     Kind   `json:"kind"`
	OwnerID  string `json:"ownerId"`
}

// Folder — виртуальная папка: не хранится, вычисляется группировкой
// записей по folder_name.
type Folder struct {
	FolderName string       `json:"folderName"`
	FileCount  int          `json:"fileCount"`
	Files      []FolderFile `json:"files"`
}
