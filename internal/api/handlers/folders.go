// folders.go — HTTP handlers виртуальных папок.
// Папки не хранятся отдельно: это группировка файловых записей
// по folder_name, собираемая на лету.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/iamdeveloper17/specsCloud/internal/api/errors"
	"github.com/iamdeveloper17/specsCloud/internal/api/middleware"
	"github.com/iamdeveloper17/specsCloud/internal/service"
)

// FoldersHandler — обработчик endpoints виртуальных папок.
type FoldersHandler struct {
	folderSvc *service.FolderService
	logger    *slog.Logger
}

// NewFoldersHandler создаёт обработчик папок.
func NewFoldersHandler(folderSvc *service.FolderService, logger *slog.Logger) *FoldersHandler {
	return &FoldersHandler{
		folderSvc: folderSvc,
		logger:    logger.With(slog.String("component", "folders-handler")),
	}
}

// renameFolderRequest — тело PUT /api/v1/folders/{name}.
type renameFolderRequest struct {
	Kind          string `json:"kind"`
	NewFolderName string `json:"newFolderName"`
}

// List обрабатывает GET /api/v1/folders.
// Query: kind (опционально — без него объединённое представление),
// ownerId (только админ). Не-админ видит только свои папки.
func (h *FoldersHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	scope := service.FolderScope{}
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind, ok := parseKind(w, raw)
		if !ok {
			return
		}
		scope.Kind = &kind
	}

	if identity.IsAdmin {
		if v := r.URL.Query().Get("ownerId"); v != "" {
			scope.OwnerID = &v
		}
	} else {
		ownerID := identity.UserID
		scope.OwnerID = &ownerID
	}

	folders, err := h.folderSvc.ListFolders(r.Context(), scope)
	if err != nil {
		h.logger.Error("Ошибка построения представления папок", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Не удалось получить список папок")
		return
	}

	writeJSON(w, http.StatusOK, folders)
}

// Rename обрабатывает PUT /api/v1/folders/{name}.
// Тело: {kind, newFolderName}. Не-админ переименовывает только
// собственную часть папки. Переименование несуществующей папки —
// no-op с updated=0.
func (h *FoldersHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameFolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	kind, ok := parseKind(w, req.Kind)
	if !ok {
		return
	}

	owner, ok := h.mutationScope(w, r)
	if !ok {
		return
	}

	oldName := folderNameParam(r)
	updated, err := h.folderSvc.RenameFolder(r.Context(), kind, oldName, req.NewFolderName, owner)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		default:
			h.logger.Error("Ошибка переименования папки",
				slog.String("folder", oldName),
				slog.String("error", err.Error()))
			apierrors.InternalError(w, "Не удалось переименовать папку")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

// Delete обрабатывает DELETE /api/v1/folders/{name}.
// Query: kind (обязательно). Удаляет файлы папки вместе с blob;
// не-админ — только собственные. Удаление несуществующей папки —
// no-op с deleted=0.
func (h *FoldersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r.URL.Query().Get("kind"))
	if !ok {
		return
	}

	owner, ok := h.mutationScope(w, r)
	if !ok {
		return
	}

	folderName := folderNameParam(r)
	deleted, err := h.folderSvc.DeleteFolder(r.Context(), kind, folderName, owner)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		default:
			h.logger.Error("Ошибка удаления папки",
				slog.String("folder", folderName),
				slog.String("error", err.Error()))
			apierrors.InternalError(w, "Не удалось удалить папку")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// mutationScope возвращает ограничение владельца для bulk-операций:
// nil для админа (вся папка), ID пользователя для остальных.
func (h *FoldersHandler) mutationScope(w http.ResponseWriter, r *http.Request) (*string, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return nil, false
	}
	if identity.IsAdmin {
		return nil, true
	}
	ownerID := identity.UserID
	return &ownerID, true
}

// folderNameParam извлекает имя папки из URL.
// Имена папок могут содержать пробелы и спецсимволы.
func folderNameParam(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
