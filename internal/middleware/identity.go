package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Perrohpta23/chatbot/internal/models"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// CookieName is the identity cookie. The value is an opaque user id; there is
// no login flow, the cookie is the whole identity.
const CookieName = "user_id"

// Two years, in seconds.
const cookieMaxAge = 2 * 365 * 24 * 60 * 60

type userStore interface {
	Create(ctx context.Context, user *models.User) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Identity resolves every request to a stable user id, minting a new user
// when the cookie is absent, unparseable, or references no stored user.
type Identity struct {
	users  userStore
	secure bool
	logger *zap.Logger
}

func NewIdentity(users userStore, secure bool, logger *zap.Logger) *Identity {
	return &Identity{users: users, secure: secure, logger: logger}
}

func (i *Identity) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, minted, err := i.resolve(r)
		if err != nil {
			i.logger.Error("identity resolution failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", r)
			return
		}

		if minted {
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    userID.String(),
				Path:     "/",
				MaxAge:   cookieMaxAge,
				HttpOnly: true,
				Secure:   i.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (i *Identity) resolve(r *http.Request) (uuid.UUID, bool, error) {
	if cookie, err := r.Cookie(CookieName); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			exists, err := i.users.Exists(r.Context(), id)
			if err != nil {
				return uuid.Nil, false, err
			}
			if exists {
				return id, false, nil
			}
		}
	}

	user := &models.User{}
	if err := i.users.Create(r.Context(), user); err != nil {
		return uuid.Nil, false, err
	}
	return user.ID, true, nil
}

// GetUserID extracts the resolved user id from the request context.
func GetUserID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return id
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}
