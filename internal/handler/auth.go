package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	appI18n "github.com/MUZAKI1453/CBT-Sekolah/internal/i18n"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
)

// The auth collaborator in front of the API authenticates the user and
// forwards the identity in these headers.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

// actorMiddleware puts the forwarded identity into the request context.
// Requests without identity headers pass through with no actor.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idStr := r.Header.Get(headerUserID)
		if idStr == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		role := model.Role(r.Header.Get(headerUserRole))
		if err != nil || id <= 0 || !role.Valid() {
			slog.Warn("malformed identity headers", "user_id", idStr, "role", role)
			unauthorized(w, r)
			return
		}
		ctx := model.ContextWithActor(r.Context(), &model.Actor{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the actor has one of the allowed roles.
func requireRole(allowed ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := model.ActorFromContext(r.Context())
			if actor == nil {
				unauthorized(w, r)
				return
			}
			for _, role := range allowed {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSON(w, http.StatusForbidden, errorResponse{
				Error:   "forbidden",
				Message: appI18n.T(r.Context(), "ErrForbidden"),
			})
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{
		Error:   "unauthorized",
		Message: appI18n.T(r.Context(), "ErrUnauthorized"),
	})
}
