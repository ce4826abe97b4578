// auth.go — middleware аутентификации по Bearer access token.
// Проверяет подпись и срок токена, помещает user_id в контекст запроса.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/portfolio-tracker/internal/api/errors"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyUserID — UUID аутентифицированного пользователя.
	ContextKeyUserID contextKey = "user_id"
)

// TokenParser — проверка access token. Возвращает user_id из claims.
type TokenParser interface {
	Parse(token string) (string, error)
}

// TokenAuth — middleware аутентификации.
type TokenAuth struct {
	parser TokenParser
	logger *slog.Logger
}

// NewTokenAuth создаёт middleware аутентификации.
func NewTokenAuth(parser TokenParser, logger *slog.Logger) *TokenAuth {
	return &TokenAuth{
		parser: parser,
		logger: logger.With(slog.String("component", "auth_middleware")),
	}
}

// Middleware возвращает HTTP middleware для аутентификации.
func (a *TokenAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			userID, err := a.parser.Parse(tokenString)
			if err != nil {
				a.logger.Debug("Токен не прошёл проверку",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// --- Context helpers ---

// WithUserID возвращает контекст с user_id аутентифицированного пользователя.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// UserIDFromContext извлекает user_id из контекста запроса.
// Возвращает пустую строку, если запрос не аутентифицирован.
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(ContextKeyUserID).(string)
	return userID
}
