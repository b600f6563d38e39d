// files.go — HTTP handlers файловых операций.
// Upload (multipart, несколько файлов), List, Get, Download, Rename, Delete.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/iamdeveloper17/specsCloud/internal/api/errors"
	"github.com/iamdeveloper17/specsCloud/internal/api/middleware"
	"github.com/iamdeveloper17/specsCloud/internal/domain/model"
	"github.com/iamdeveloper17/specsCloud/internal/repository"
	"github.com/iamdeveloper17/specsCloud/internal/service"
)

// multipartMemoryLimit — буфер парсинга multipart form в памяти,
// остальное уходит во временные файлы.
const multipartMemoryLimit = 32 << 20

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	uploadSvc   *service.UploadService
	fileSvc     *service.FileService
	downloadSvc *service.DownloadService
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(
	uploadSvc *service.UploadService,
	fileSvc *service.FileService,
	downloadSvc *service.DownloadService,
	logger *slog.Logger,
) *FilesHandler {
	return &FilesHandler{
		uploadSvc:   uploadSvc,
		fileSvc:     fileSvc,
		downloadSvc: downloadSvc,
		logger:      logger.With(slog.String("component", "files-handler")),
	}
}

// uploadResponse — ответ POST /api/v1/files/upload.
type uploadResponse struct {
	Uploaded []*model.FileRecord     `json:"uploaded"`
	Failed   []service.UploadFailure `json:"failed"`
}

// renameRequest — тело PUT /api/v1/files/{id}/rename.
type renameRequest struct {
	Kind    string `json:"kind"`
	NewName string `json:"newName"`
}

// Upload обрабатывает POST /api/v1/files/upload.
// Multipart form: files (несколько, обязательно), kind (обязательно),
// category (опционально), folderName (опционально).
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Размер запроса превышает лимит %d байт", maxBytesErr.Limit))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	kind, ok := parseKind(w, r.FormValue("kind"))
	if !ok {
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		apierrors.ValidationError(w, "Поле 'files' обязательно: не передано ни одного файла")
		return
	}

	files := make([]service.UploadFile, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()

	for _, header := range headers {
		part, err := header.Open()
		if err != nil {
			apierrors.ValidationError(w, fmt.Sprintf("Не удалось прочитать файл '%s'", header.Filename))
			return
		}
		opened = append(opened, part)

		files = append(files, service.UploadFile{
			Reader:      part,
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
		})
	}

	result, err := h.uploadSvc.Upload(r.Context(), service.UploadParams{
		Kind:       kind,
		OwnerID:    identity.UserID,
		OwnerEmail: identity.Email,
		Category:   r.FormValue("category"),
		FolderName: r.FormValue("folderName"),
		Files:      files,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		default:
			h.logger.Error("Ошибка загрузки", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Не удалось загрузить файлы")
		}
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Uploaded: result.Uploaded,
		Failed:   result.Failed,
	})
}

// List обрабатывает GET /api/v1/files.
// Query: kind (обязательно), category, folderName, ownerId (только админ).
// Не-админ всегда видит только собственные файлы.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	kind, ok := parseKind(w, r.URL.Query().Get("kind"))
	if !ok {
		return
	}

	filters := repository.FileListFilters{}
	if v := r.URL.Query().Get("category"); v != "" {
		filters.Category = &v
	}
	if v := r.URL.Query().Get("folderName"); v != "" {
		filters.FolderName = &v
	}

	if identity.IsAdmin {
		if v := r.URL.Query().Get("ownerId"); v != "" {
			filters.OwnerID = &v
		}
	} else {
		ownerID := identity.UserID
		filters.OwnerID = &ownerID
	}

	records, err := h.fileSvc.List(r.Context(), kind, filters)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		default:
			h.logger.Error("Ошибка получения списка файлов", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Не удалось получить список файлов")
		}
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// Get обрабатывает GET /api/v1/files/{id}.
// Query: kind (обязательно).
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r.URL.Query().Get("kind"))
	if !ok {
		return
	}

	record, ok := h.fetchOwned(w, r, kind, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// Download обрабатывает GET /api/v1/files/{id}/download.
// Query: kind (обязательно). Поддерживает Range и If-None-Match.
// Не-админ скачивает только собственные файлы.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r.URL.Query().Get("kind"))
	if !ok {
		return
	}

	fileID := chi.URLParam(r, "id")
	if _, ok := h.fetchOwned(w, r, kind, fileID); !ok {
		return
	}

	if downloadErr := h.downloadSvc.Serve(w, r, kind, fileID); downloadErr != nil {
		apierrors.WriteError(w, downloadErr.StatusCode, downloadErr.Code, downloadErr.Message)
	}
}

// Rename обрабатывает PUT /api/v1/files/{id}/rename.
// Тело: {kind, newName}.
func (h *FilesHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	kind, ok := parseKind(w, req.Kind)
	if !ok {
		return
	}

	fileID := chi.URLParam(r, "id")
	if _, ok := h.fetchOwned(w, r, kind, fileID); !ok {
		return
	}

	record, err := h.fileSvc.Rename(r.Context(), kind, fileID, req.NewName)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Файл не найден")
		default:
			h.logger.Error("Ошибка переименования файла",
				slog.String("file_id", fileID),
				slog.String("error", err.Error()))
			apierrors.InternalError(w, "Не удалось переименовать файл")
		}
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// Delete обрабатывает DELETE /api/v1/files/{id}.
// Query: kind (обязательно). 204 при успехе, 404 если файла нет.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r.URL.Query().Get("kind"))
	if !ok {
		return
	}

	fileID := chi.URLParam(r, "id")
	if _, ok := h.fetchOwned(w, r, kind, fileID); !ok {
		return
	}

	if err := h.fileSvc.Delete(r.Context(), kind, fileID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Файл не найден")
		default:
			h.logger.Error("Ошибка удаления файла",
				slog.String("file_id", fileID),
				slog.String("error", err.Error()))
			apierrors.InternalError(w, "Не удалось удалить файл")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// fetchOwned загружает запись и проверяет право доступа:
// не-админ работает только со своими файлами.
// При отказе пишет ответ об ошибке и возвращает false.
func (h *FilesHandler) fetchOwned(w http.ResponseWriter, r *http.Request, kind model.Kind, fileID string) (*model.FileRecord, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return nil, false
	}

	record, err := h.fileSvc.Get(r.Context(), kind, fileID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Файл не найден")
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		default:
			h.logger.Error("Ошибка получения файла",
				slog.String("file_id", fileID),
				slog.String("error", err.Error()))
			apierrors.InternalError(w, "Не удалось получить файл")
		}
		return nil, false
	}

	if !identity.IsAdmin && record.OwnerID != identity.UserID {
		apierrors.Forbidden(w, "Файл принадлежит другому пользователю")
		return nil, false
	}

	return record, true
}
