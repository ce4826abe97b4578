package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/portfolio-tracker/internal/auth"
	"github.com/bigkaa/portfolio-tracker/internal/domain/model"
	"github.com/bigkaa/portfolio-tracker/internal/repository"
	"github.com/bigkaa/portfolio-tracker/internal/testutil"
)

// memUsers — UserRepository в памяти.
type memUsers struct {
	byEmail map[string]*model.User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: make(map[string]*model.User)}
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return repository.ErrConflict
	}
	u.CreatedAt = time.Now()
	cp := *u
	m.byEmail[u.Email] = &cp
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func newUserService(t *testing.T) (*UserService, *auth.TokenIssuer) {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("test-secret", "HS256", 30*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenIssuer() ошибка: %v", err)
	}
	return NewUserService(newMemUsers(), tokens, testutil.Logger()), tokens
}

func TestRegister(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "  Alice@Example.com ", "pass")
	if err != nil {
		t.Fatalf("Register() ошибка: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("Email = %q, ожидался нормализованный", u.Email)
	}
	if u.PasswordHash == "" || strings.Contains(u.PasswordHash, "pass") {
		t.Errorf("пароль не захэширован: %q", u.PasswordHash)
	}

	if _, err := svc.Register(ctx, "alice@example.com", "other"); !errors.Is(err, ErrConflict) {
		t.Errorf("повторная регистрация: ожидался ErrConflict, получили %v", err)
	}

	got, err := svc.Get(ctx, u.ID)
	if err != nil || got.Email != u.Email {
		t.Errorf("Get() = %v, %v", got, err)
	}
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() неизвестного: ожидался ErrNotFound, получили %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newUserService(t)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"короткий пароль", "bob@example.com", "abc"},
		{"пароль из пробелов", "bob@example.com", "      "},
		{"некорректный email", "not-an-email", "password"},
		{"email с именем", "Bob <bob@example.com>", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tt.email, tt.password); !errors.Is(err, ErrValidation) {
				t.Errorf("ожидался ErrValidation, получили %v", err)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	svc, tokens := newUserService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "carol@example.com", "secret")
	if err != nil {
		t.Fatalf("Register() ошибка: %v", err)
	}

	tok, err := svc.Login(ctx, "Carol@example.com", "secret")
	if err != nil {
		t.Fatalf("Login() ошибка: %v", err)
	}
	userID, err := tokens.Parse(tok.Token)
	if err != nil {
		t.Fatalf("выпущенный токен не проходит проверку: %v", err)
	}
	if userID != u.ID {
		t.Errorf("user_id в токене = %s, хотели %s", userID, u.ID)
	}

	for name, creds := range map[string][2]string{
		"неверный пароль":    {"carol@example.com", "wrong"},
		"неизвестный email":  {"dave@example.com", "secret"},
		"мусор вместо email": {"???", "secret"},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Login(ctx, creds[0], creds[1]); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("ожидался ErrInvalidCredentials, получили %v", err)
			}
		})
	}
}
