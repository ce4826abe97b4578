// users.go — регистрация, аутентификация и профиль пользователя.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/portfolio-tracker/internal/auth"
	"github.com/bigkaa/portfolio-tracker/internal/domain/model"
	"github.com/bigkaa/portfolio-tracker/internal/repository"
)

// MinPasswordLength — минимальная длина пароля после удаления пробелов по краям.
const MinPasswordLength = 4

// TokenSigner — выпуск access token для пользователя.
type TokenSigner interface {
	Issue(userID string) (string, time.Time, error)
}

// AccessToken — результат успешного входа.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// UserService — сервис пользователей.
type UserService struct {
	users  repository.UserRepository
	tokens TokenSigner
	logger *slog.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(users repository.UserRepository, tokens TokenSigner, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		tokens: tokens,
		logger: logger.With(slog.String("component", "user_service")),
	}
}

// Register создаёт пользователя. Пароль сохраняется только как bcrypt-хэш.
func (s *UserService) Register(ctx context.Context, email, password string) (*model.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	password = strings.TrimSpace(password)
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: пароль должен содержать не менее %d символов", ErrValidation, MinPasswordLength)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: пользователь с email %s уже существует", ErrConflict, email)
		}
		return nil, fmt.Errorf("создание пользователя: %w", err)
	}

	s.logger.Info("Пользователь зарегистрирован",
		slog.String("user_id", u.ID),
	)
	return u, nil
}

// Login проверяет учётные данные и выпускает access token.
// Неизвестный email и неверный пароль неразличимы для клиента.
func (s *UserService) Login(ctx context.Context, email, password string) (*AccessToken, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("поиск пользователя: %w", err)
	}

	ok, err := auth.CheckPassword(u.PasswordHash, strings.TrimSpace(password))
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Debug("Неверный пароль", slog.String("user_id", u.ID))
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &AccessToken{Token: token, ExpiresAt: expiresAt}, nil
}

// Get возвращает пользователя по ID.
func (s *UserService) Get(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: пользователь %s не найден", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}
	return u, nil
}

// normalizeEmail проверяет адрес и приводит его к нижнему регистру.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: некорректный email %q", ErrValidation, email)
	}
	return email, nil
}
