package app

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/reshmi-chandran/graph-api-mvp/internal/config"
	"github.com/reshmi-chandran/graph-api-mvp/pkg/user"
	log "github.com/sirupsen/logrus"
)

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Propagate X-User-Id header into context for downstream services. The
	// fronting auth service owns the session and guarantees the header is a
	// valid user; handlers reject requests where it is absent.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			requestId := uuid.NewString()
			ctx := req.Context()

			userIdHeader := req.Header.Get("X-User-Id")
			if userIdHeader != "" {
				log.Debugf("user resolved from session: %s", userIdHeader)
				ctx = user.WithUser(ctx, user.User{Uid: userIdHeader})
			}

			log.WithFields(log.Fields{
				"requestId": requestId,
				"method":    req.Method,
				"path":      req.URL.Path,
			}).Debug("handling request")

			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
}
