package middleware

import (
	"net/http"
	"strings"

	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
)

// ActorIDHeader names the staff member on whose behalf the request runs.
// Authentication happens upstream; this service only records the id.
const ActorIDHeader = "X-Actor-ID"

const maxActorIDLength = 128

// ActorMiddleware stores the X-Actor-ID header in the request context and
// rejects requests without one.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID := strings.TrimSpace(r.Header.Get(ActorIDHeader))
		if actorID == "" {
			utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Missing "+ActorIDHeader+" header", nil)
			return
		}
		if len(actorID) > maxActorIDLength {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, ActorIDHeader+" header too long", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(utils.WithActorID(r.Context(), actorID)))
	})
}
