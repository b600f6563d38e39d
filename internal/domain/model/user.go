package model

import "time"

// User — пользователь specsCloud.
// Хранится в таблице users. Пароль — только bcrypt-хэш.
type User struct {
	// ID — UUID пользователя
	ID string
	// Name — отображаемое имя
	Name string
	// Email — адрес электронной почты, уникален
	Email string
	// PasswordHash — bcrypt-хэш пароля
	PasswordHash string
	// IsAdmin — флаг администратора
	IsAdmin bool
	// CreatedAt — время регистрации
	CreatedAt time.Time
}

// UserFileCount — пользователь с количеством загруженных файлов.
// Результат админской агрегации users ⟕ files.
type UserFileCount struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	IsAdmin    bool   `json:"isAdmin"`
	TotalFiles int    `json:"totalFiles"`
}
