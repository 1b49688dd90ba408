package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/mverkerk/opsboard/internal/store"
	"github.com/mverkerk/opsboard/pkg/models"
)

// actorHeader identifies the acting user. Token verification happens
// upstream (gateway or auth proxy); by the time a request reaches this
// service the header is trusted.
const actorHeader = "X-Actor-ID"

// requireActor resolves the acting user from the request. On failure it
// writes the 401 response and returns ok=false.
func requireActor(w http.ResponseWriter, r *http.Request, st store.Store) (models.Actor, bool) {
	raw := r.Header.Get(actorHeader)
	if raw == "" {
		writeJSONError(w, http.StatusUnauthorized, "X-Actor-ID header required")
		return models.Actor{}, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusUnauthorized, "invalid X-Actor-ID header")
		return models.Actor{}, false
	}
	u, err := st.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, http.StatusUnauthorized, "unknown actor")
			return models.Actor{}, false
		}
		writeJSONError(w, http.StatusInternalServerError, "actor lookup failed")
		return models.Actor{}, false
	}
	return models.Actor{ID: u.ID, Role: u.Role}, true
}
