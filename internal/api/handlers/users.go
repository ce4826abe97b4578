// users.go — обработчики регистрации, входа и профиля пользователя.
package handlers

import (
	"net/http"
	"strings"
	"time"

	apierrors "github.com/bigkaa/portfolio-tracker/internal/api/errors"
	"github.com/bigkaa/portfolio-tracker/internal/api/middleware"
	"github.com/bigkaa/portfolio-tracker/internal/domain/model"
)

// registerRequest — тело POST /api/v1/users/register.
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest — JSON-вариант тела POST /api/v1/auth/login.
// username и email взаимозаменяемы.
type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

// RegisterUser — POST /api/v1/users/register.
func (h *APIHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}

	user, err := h.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка регистрации пользователя")
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login — POST /api/v1/auth/login.
// Принимает form (username, password) или JSON.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var email, password string

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
			return
		}
		email = req.Username
		if email == "" {
			email = req.Email
		}
		password = req.Password
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		email = r.PostFormValue("username")
		password = r.PostFormValue("password")
	}

	if email == "" || password == "" {
		apierrors.ValidationError(w, "Требуются username и password")
		return
	}

	token, err := h.users.Login(r.Context(), email, password)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка входа")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token.Token,
		TokenType:   "bearer",
		ExpiresAt:   token.ExpiresAt,
	})
}

// GetCurrentUser — GET /api/v1/users/me.
func (h *APIHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения пользователя")
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}
