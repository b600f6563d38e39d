// auth.go — HTTP handlers регистрации и входа.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/iamdeveloper17/specsCloud/internal/api/errors"
	"github.com/iamdeveloper17/specsCloud/internal/service"
)

// AuthHandler — обработчик endpoints аутентификации.
type AuthHandler struct {
	authSvc *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler создаёт обработчик аутентификации.
func NewAuthHandler(authSvc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authSvc: authSvc,
		logger:  logger.With(slog.String("component", "auth-handler")),
	}
}

// signupRequest — тело POST /api/v1/auth/signup.
type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest — тело POST /api/v1/auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse — ответ POST /api/v1/auth/login.
type loginResponse struct {
	Token string           `json:"token"`
	User  service.Identity `json:"user"`
}

// Signup обрабатывает POST /api/v1/auth/signup.
// 201 при успехе, 400 при невалидных данных, 409 при дубликате email.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.authSvc.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		case errors.Is(err, service.ErrConflict):
			apierrors.Conflict(w, "Пользователь с таким email уже существует")
		default:
			h.logger.Error("Ошибка регистрации", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Не удалось зарегистрировать пользователя")
		}
		return
	}

	writeJSON(w, http.StatusCreated, service.Identity{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
	})
}

// Login обрабатывает POST /api/v1/auth/login.
// 200 с токеном при успехе, 401 при неверных учётных данных.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	identity, token, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			apierrors.Unauthorized(w, "Неверный email или пароль")
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		default:
			h.logger.Error("Ошибка входа", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Не удалось выполнить вход")
		}
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: *identity})
}
