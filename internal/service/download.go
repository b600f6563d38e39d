// download.go — сервис скачивания файлов.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/iamdeveloper17/specsCloud/internal/api/errors"
	"github.com/iamdeveloper17/specsCloud/internal/domain/model"
	"github.com/iamdeveloper17/specsCloud/internal/repository"
	"github.com/iamdeveloper17/specsCloud/internal/storage/blobstore"
)

// Prometheus-метрики скачивания.
var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sc_downloads_total",
		Help: "Общее количество запросов на скачивание (по статусу).",
	}, []string{"status"})
)

// DownloadError — ошибка скачивания с HTTP-кодом.
type DownloadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// DownloadService — сервис скачивания файлов.
type DownloadService struct {
	files  repository.FileRepository
	blobs  *blobstore.Store
	logger *slog.Logger
}

// NewDownloadService создаёт сервис скачивания файлов.
func NewDownloadService(
	files repository.FileRepository,
	blobs *blobstore.Store,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		files:  files,
		blobs:  blobs,
		logger: logger.With(slog.String("component", "download_service")),
	}
}

// Serve отдаёт файл клиенту через http.ServeContent.
// Поддерживает Range requests (206 Partial Content) и ETag (If-None-Match).
// 404 — если отсутствует запись или сам blob.
func (s *DownloadService) Serve(w http.ResponseWriter, r *http.Request, kind model.Kind, fileID string) *DownloadError {
	record, err := s.files.GetByID(r.Context(), kind, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			downloadsTotal.WithLabelValues("not_found").Inc()
			return &DownloadError{
				StatusCode: http.StatusNotFound,
				Code:       apierrors.CodeNotFound,
				Message:    fmt.Sprintf("Файл %s не найден", fileID),
			}
		}
		downloadsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Ошибка получения записи файла",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return &DownloadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка получения метаданных файла",
		}
	}

	blob, err := s.blobs.Open(record.BlobRef)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			downloadsTotal.WithLabelValues("not_found").Inc()
			s.logger.Error("Blob отсутствует на диске",
				slog.String("file_id", fileID),
				slog.String("blob_ref", record.BlobRef),
			)
			return &DownloadError{
				StatusCode: http.StatusNotFound,
				Code:       apierrors.CodeNotFound,
				Message:    fmt.Sprintf("Содержимое файла %s не найдено", fileID),
			}
		}
		downloadsTotal.WithLabelValues("error").Inc()
		return &DownloadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка чтения файла",
		}
	}
	defer blob.Close()

	stat, err := blob.Stat()
	if err != nil {
		downloadsTotal.WithLabelValues("error").Inc()
		return &DownloadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка чтения файла",
		}
	}

	w.Header().Set("Content-Type", record.FileType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.FileName))
	w.Header().Set("ETag", fmt.Sprintf("%q", record.Checksum))
	w.Header().Set("Accept-Ranges", "bytes")

	// ServeContent берёт на себя Range и If-None-Match
	http.ServeContent(w, r, record.FileName, stat.ModTime(), blob)

	downloadsTotal.WithLabelValues("success").Inc()
	return nil
}
