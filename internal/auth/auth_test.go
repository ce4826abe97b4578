package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newIssuer(t *testing.T, alg string) *TokenIssuer {
	t.Helper()
	ti, err := NewTokenIssuer("test-secret", alg, 30*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenIssuer() ошибка: %v", err)
	}
	return ti
}

func TestNewTokenIssuer_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		alg    string
		ttl    time.Duration
	}{
		{"пустой секрет", "", "HS256", time.Minute},
		{"RS256 не поддерживается", "s", "RS256", time.Minute},
		{"нулевой TTL", "s", "HS256", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTokenIssuer(tt.secret, tt.alg, tt.ttl); err == nil {
				t.Error("ожидалась ошибка")
			}
		})
	}
}

func TestIssueAndParse(t *testing.T) {
	for _, alg := range []string{"HS256", "HS384", "HS512"} {
		t.Run(alg, func(t *testing.T) {
			ti := newIssuer(t, alg)

			token, expiresAt, err := ti.Issue("user-1")
			if err != nil {
				t.Fatalf("Issue() ошибка: %v", err)
			}
			if time.Until(expiresAt) <= 29*time.Minute {
				t.Errorf("expiresAt = %v, ожидалось ~30m", expiresAt)
			}

			userID, err := ti.Parse(token)
			if err != nil {
				t.Fatalf("Parse() ошибка: %v", err)
			}
			if userID != "user-1" {
				t.Errorf("userID = %q, хотели user-1", userID)
			}
		})
	}
}

func TestParse_Expired(t *testing.T) {
	ti := newIssuer(t, "HS256")
	issued := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	ti.now = func() time.Time { return issued }

	token, _, err := ti.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue() ошибка: %v", err)
	}

	ti.now = func() time.Time { return issued.Add(31 * time.Minute) }
	if _, err := ti.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("просроченный токен: ожидался ErrInvalidToken, получили %v", err)
	}
}

func TestParse_Rejects(t *testing.T) {
	ti := newIssuer(t, "HS256")

	other, _ := NewTokenIssuer("other-secret", "HS256", time.Minute)
	foreign, _, _ := other.Issue("user-1")

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "user-1"}).
		SignedString([]byte("test-secret"))

	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
		UserID:           "user-1",
	}).SignedString([]byte("test-secret"))

	tests := map[string]string{
		"чужой секрет":    foreign,
		"без exp":         noExp,
		"другой алгоритм": wrongAlg,
		"мусор":           "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ti.Parse(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ожидался ErrInvalidToken, получили %v", err)
			}
		})
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() ошибка: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("пароль сохранён в открытом виде")
	}

	ok, err := CheckPassword(hash, "s3cret")
	if err != nil || !ok {
		t.Errorf("CheckPassword(верный) = %v, %v", ok, err)
	}
	ok, err = CheckPassword(hash, "wrong")
	if err != nil || ok {
		t.Errorf("CheckPassword(неверный) = %v, %v", ok, err)
	}
	if _, err := CheckPassword("not-a-hash", "x"); err == nil {
		t.Error("CheckPassword с битым хэшем должен вернуть ошибку")
	}
}
