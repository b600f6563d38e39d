// admin.go — HTTP handlers административных операций.
// Все endpoints требуют роль администратора (middleware.RequireAdmin).
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/iamdeveloper17/specsCloud/internal/api/errors"
	"github.com/iamdeveloper17/specsCloud/internal/api/middleware"
	"github.com/iamdeveloper17/specsCloud/internal/service"
)

// AdminHandler — обработчик административных endpoints.
type AdminHandler struct {
	adminSvc *service.AdminService
	logger   *slog.Logger
}

// NewAdminHandler создаёт обработчик административных endpoints.
func NewAdminHandler(adminSvc *service.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		adminSvc: adminSvc,
		logger:   logger.With(slog.String("component", "admin-handler")),
	}
}

// ListUsers обрабатывает GET /api/v1/admin/users.
// Возвращает всех пользователей с суммарным числом файлов
// (включая пользователей без файлов — totalFiles=0).
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminSvc.ListUsersWithFileCounts(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения списка пользователей", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Не удалось получить список пользователей")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// DeleteUser обрабатывает DELETE /api/v1/admin/users/{id}.
// Каскадно удаляет файловые записи и blob пользователя.
// Администратор не может удалить собственную учётную запись.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	if identity, ok := middleware.IdentityFromContext(r.Context()); ok && identity.UserID == userID {
		apierrors.ValidationError(w, "Нельзя удалить собственную учётную запись")
		return
	}

	if err := h.adminSvc.DeleteUser(r.Context(), userID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Пользователь не найден")
		default:
			h.logger.Error("Ошибка удаления пользователя",
				slog.String("user_id", userID),
				slog.String("error", err.Error()))
			apierrors.InternalError(w, "Не удалось удалить пользователя")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
