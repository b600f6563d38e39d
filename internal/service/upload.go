// Пакет service — бизнес-логика specsCloud.
// upload.go — сервис загрузки файлов: blob store + запись реестра на файл.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iamdeveloper17/specsCloud/internal/domain/model"
	"github.com/iamdeveloper17/specsCloud/internal/repository"
	"github.com/iamdeveloper17/specsCloud/internal/storage/blobstore"
)

// Prometheus-метрики загрузки.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sc_uploads_total",
		Help: "Общее количество загруженных файлов (по результату).",
	}, []string{"kind", "status"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sc_upload_bytes_total",
		Help: "Общее количество принятых байт при загрузке.",
	})
)

// UploadFile — один файл внутри multipart-запроса.
type UploadFile struct {
	// Reader — поток данных файла
	Reader io.Reader
	// FileName — оригинальное имя файла
	FileName string
	// ContentType — MIME-тип из заголовка части
	ContentType string
	// Size — заявленный размер (из multipart header)
	Size int64
}

// UploadParams — параметры пакетной загрузки.
// Category и FolderName общие для всех файлов пакета.
type UploadParams struct {
	Kind       model.Kind
	OwnerID    string
	OwnerEmail string
	Category   string
	FolderName string
	Files      []UploadFile
}

// UploadFailure — ошибка загрузки одного файла из пакета.
type UploadFailure struct {
	FileName string `json:"fileName"`
	Reason   string `json:"reason"`
}

// UploadResult — результат пакетной загрузки.
// Политика — best-effort: успешные файлы фиксируются, ошибки
// сообщаются per-file, пакет не откатывается целиком.
type UploadResult struct {
	Uploaded []*model.FileRecord
	Failed   []UploadFailure
}

// UploadService — сервис загрузки файлов.
type UploadService struct {
	files       repository.FileRepository
	blobs       *blobstore.Store
	invalidator FolderInvalidator
	maxFileSize int64
	logger      *slog.Logger
}

// FolderInvalidator — инвалидация кэша вида папок после мутаций.
// Реализуется FolderService.
type FolderInvalidator interface {
	Invalidate()
}

// NewUploadService создаёт сервис загрузки файлов.
func NewUploadService(
	files repository.FileRepository,
	blobs *blobstore.Store,
	invalidator FolderInvalidator,
	maxFileSize int64,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		files:       files,
		blobs:       blobs,
		invalidator: invalidator,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "upload_service")),
	}
}

// Upload загружает пакет файлов.
//
// Поток на каждый файл:
//  1. Проверка размера
//  2. blobstore.Save (streaming + SHA-256)
//  3. repository.Create
//
// При ошибке Create сохранённый blob удаляется (компенсация), ошибка
// попадает в Failed, обработка остальных файлов продолжается.
func (s *UploadService) Upload(ctx context.Context, params UploadParams) (*UploadResult, error) {
	if len(params.Files) == 0 {
		return nil, fmt.Errorf("%w: файлы не переданы", ErrValidation)
	}
	if !params.Kind.Valid() {
		return nil, fmt.Errorf("%w: недопустимый kind %q", ErrValidation, params.Kind)
	}

	category := params.Category
	if category == "" {
		category = "N/A"
	}
	if !model.ValidCategory(category) {
		return nil, fmt.Errorf("%w: недопустимая категория %q", ErrValidation, category)
	}

	folderName := strings.TrimSpace(params.FolderName)
	if folderName == "" {
		folderName = model.DefaultFolder
	}

	result := &UploadResult{}

	for _, file := range params.Files {
		record, err := s.uploadOne(ctx, params, file, category, folderName)
		if err != nil {
			uploadsTotal.WithLabelValues(string(params.Kind), "error").Inc()
			s.logger.Error("Ошибка загрузки файла",
				slog.String("file_name", file.FileName),
				slog.String("owner_id", params.OwnerID),
				slog.String("error", err.Error()),
			)
			result.Failed = append(result.Failed, UploadFailure{
				FileName: file.FileName,
				Reason:   failureReason(err),
			})
			continue
		}

		uploadsTotal.WithLabelValues(string(params.Kind), "success").Inc()
		uploadBytesTotal.Add(float64(record.FileSize))
		result.Uploaded = append(result.Uploaded, record)
	}

	if len(result.Uploaded) > 0 {
		s.invalidator.Invalidate()
		s.logger.Info("Пакет файлов загружен",
			slog.String("kind", string(params.Kind)),
			slog.String("owner_id", params.OwnerID),
			slog.String("folder", folderName),
			slog.Int("uploaded", len(result.Uploaded)),
			slog.Int("failed", len(result.Failed)),
		)
	}

	return result, nil
}

// uploadOne сохраняет один файл: blob, затем запись реестра.
func (s *UploadService) uploadOne(ctx context.Context, params UploadParams, file UploadFile, category, folderName string) (*model.FileRecord, error) {
	if strings.TrimSpace(file.FileName) == "" {
		return nil, fmt.Errorf("%w: пустое имя файла", ErrValidation)
	}
	if file.Size > s.maxFileSize {
		return nil, fmt.Errorf("%w: размер файла %d байт превышает максимум %d байт",
			ErrValidation, file.Size, s.maxFileSize)
	}

	saved, err := s.blobs.Save(file.Reader, file.FileName, params.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("сохранение blob: %w", err)
	}

	record := &model.FileRecord{
		ID:         uuid.New().String(),
		Kind:       params.Kind,
		FileName:   file.FileName,
		FileType:   detectContentType(file.ContentType),
		FileSize:   saved.Size,
		BlobRef:    saved.Key,
		Checksum:   saved.Checksum,
		OwnerID:    params.OwnerID,
		OwnerEmail: params.OwnerEmail,
		Category:   category,
		FolderName: folderName,
		UploadedAt: time.Now().UTC(),
	}

	if err := s.files.Create(ctx, record); err != nil {
		// Компенсация: запись не создана — blob не должен остаться сиротой
		if delErr := s.blobs.Delete(saved.Key); delErr != nil {
			s.logger.Error("Ошибка компенсационного удаления blob",
				slog.String("blob_ref", saved.Key),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("создание записи файла: %w", err)
	}

	return record, nil
}

// failureReason возвращает человекочитаемую причину для ответа per-file.
func failureReason(err error) string {
	// Внутренние детали (SQL, пути) не выносим наружу целиком,
	// но причина всегда непустая.
	msg := err.Error()
	if msg == "" {
		return "внутренняя ошибка"
	}
	return msg
}

// detectContentType нормализует Content-Type из заголовка multipart part.
// Если не указан — используется application/octet-stream.
func detectContentType(contentType string) string {
	if contentType == "" {
		return "application/octet-stream"
	}
	// Убираем параметры (charset и т.д.)
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return contentType
}
