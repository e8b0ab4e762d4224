package httpapi

import (
	"net/http"

	"jobboard-engine/internal/index"
)

type HealthHandler struct {
	View *index.View
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"ok":           true,
		"indexed_jobs": h.View.Len(),
	})
}
