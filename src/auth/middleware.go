package auth

import (
	"context"
	"net/http"
	"strconv"

	logger "github.com/sirupsen/logrus"

	"papertrader/src/model"
)

type userLoader interface {
	GetUser(ctx context.Context, userID uint) (*model.User, error)
}

// Middleware resolves the X-User-ID header to an account and stores it on the
// request context. It stands in for the real authentication layer, which is
// an external collaborator of this service.
func Middleware(users userLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("X-User-ID")
			if header == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			id, err := strconv.ParseUint(header, 10, 64)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := users.GetUser(r.Context(), uint(id))
			if err != nil {
				logger.WithError(err).Error("Failed to resolve user")
				http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
				return
			}
			if user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
