// auth.go — регистрация и вход пользователей.
// Пароли хранятся только как bcrypt-хэши. Успешный вход выдаёт
// HS256 JWT с идентичностью и флагом администратора.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/iamdeveloper17/specsCloud/internal/domain/model"
	"github.com/iamdeveloper17/specsCloud/internal/repository"
)

// Identity — идентичность пользователя, возвращаемая при входе.
type Identity struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

// AuthClaims — claims выдаваемых JWT.
type AuthClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"admin"`
}

// AuthService — регистрация и вход пользователей.
type AuthService struct {
	users     repository.UserRepository
	jwtSecret []byte
	jwtTTL    time.Duration
	logger    *slog.Logger
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(
	users repository.UserRepository,
	jwtSecret string,
	jwtTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: []byte(jwtSecret),
		jwtTTL:    jwtTTL,
		logger:    logger.With(slog.String("component", "auth_service")),
	}
}

// Signup регистрирует нового пользователя.
// Дублирующийся email — ErrConflict. Новые пользователи не админы;
// первый админ создаётся при старте через EnsureAdmin.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return nil, fmt.Errorf("%w: имя обязательно", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: некорректный email", ErrValidation)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: пароль должен быть не короче 8 символов", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("хэширование пароля: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: пользователь с email %s уже зарегистрирован", ErrConflict, email)
		}
		return nil, fmt.Errorf("создание пользователя: %w", err)
	}

	s.logger.Info("Пользователь зарегистрирован",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// EnsureAdmin создаёт административную учётную запись при старте,
// если пользователя с таким email ещё нет. Повторные запуски — no-op:
// существующая запись не трогается, пароль не перезаписывается.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Info("Административная учётная запись уже существует",
			slog.String("email", email),
		)
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("проверка администратора: %w", err)
	}

	if len(password) < 8 {
		return fmt.Errorf("%w: пароль администратора должен быть не короче 8 символов", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("хэширование пароля администратора: %w", err)
	}

	admin := &model.User{
		ID:           uuid.New().String(),
		Name:         "Administrator",
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      true,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		// Гонка при параллельном старте нескольких экземпляров
		if errors.Is(err, repository.ErrConflict) {
			return nil
		}
		return fmt.Errorf("создание администратора: %w", err)
	}

	s.logger.Info("Административная учётная запись создана",
		slog.String("user_id", admin.ID),
		slog.String("email", admin.Email),
	)
	return nil
}

// Login проверяет учётные данные и возвращает идентичность + JWT.
// Неверный email и неверный пароль неразличимы для вызывающего.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Identity, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrUnauthorized
		}
		return nil, "", fmt.Errorf("получение пользователя: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrUnauthorized
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("выдача токена: %w", err)
	}

	s.logger.Info("Пользователь вошёл",
		slog.String("user_id", user.ID),
		slog.Bool("is_admin", user.IsAdmin),
	)

	return &Identity{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
	}, token, nil
}

// issueToken подписывает HS256 JWT с идентичностью пользователя.
func (s *AuthService) issueToken(user *model.User) (string, error) {
	now := time.Now().UTC()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtTTL)),
		},
		Email:   user.Email,
		Name:    user.Name,
		IsAdmin: user.IsAdmin,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// ParseToken валидирует JWT и возвращает claims.
// Используется JWT middleware.
func (s *AuthService) ParseToken(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("валидация токена: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("токен недействителен")
	}
	return claims, nil
}
