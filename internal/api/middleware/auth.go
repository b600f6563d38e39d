// auth.go — JWT middleware для аутентификации и авторизации.
// Токены HS256 выдаются сервисом аутентификации при входе.
// Публичные endpoints (health, metrics, auth) подключаются без middleware.
package middleware

import (
	"context"
	"net/http"
	"strings"

	apierrors "github.com/iamdeveloper17/specsCloud/internal/api/errors"
	"github.com/iamdeveloper17/specsCloud/internal/service"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// contextKeyIdentity — ключ идентичности пользователя в контексте запроса.
const contextKeyIdentity contextKey = "auth_identity"

// Identity — идентичность аутентифицированного пользователя.
type Identity struct {
	// UserID — UUID пользователя (sub из JWT)
	UserID string
	// Email — email пользователя
	Email string
	// Name — отображаемое имя
	Name string
	// IsAdmin — флаг администратора
	IsAdmin bool
}

// TokenParser — валидация JWT. Реализуется service.AuthService.
type TokenParser interface {
	ParseToken(tokenString string) (*service.AuthClaims, error)
}

// JWTAuth — middleware для JWT-аутентификации.
type JWTAuth struct {
	parser TokenParser
}

// NewJWTAuth создаёт JWT middleware.
func NewJWTAuth(parser TokenParser) *JWTAuth {
	return &JWTAuth{parser: parser}
}

// Middleware проверяет заголовок Authorization: Bearer <token>.
// При успехе кладёт Identity в контекст запроса.
func (a *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
			return
		}

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			apierrors.Unauthorized(w, "Ожидается схема Bearer")
			return
		}

		claims, err := a.parser.ParseToken(tokenString)
		if err != nil {
			apierrors.Unauthorized(w, "Недействительный токен")
			return
		}

		identity := Identity{
			UserID:  claims.Subject,
			Email:   claims.Email,
			Name:    claims.Name,
			IsAdmin: claims.IsAdmin,
		}

		ctx := context.WithValue(r.Context(), contextKeyIdentity, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin — middleware, пропускающий только администраторов.
// Должен стоять после Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			apierrors.Unauthorized(w, "Требуется аутентификация")
			return
		}
		if !identity.IsAdmin {
			apierrors.Forbidden(w, "Недостаточно прав: требуется роль администратора")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext возвращает идентичность из контекста запроса.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKeyIdentity).(Identity)
	return identity, ok
}
