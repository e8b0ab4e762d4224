package httpapi

import (
	"encoding/json"
	"net/http"

	"jobboard-engine/internal/rank"
)

type SearchHandler struct {
	Engine *rank.Engine
}

func (h SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req rank.Request
	if err := dec.Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_search_parameter", "invalid JSON: "+err.Error())
		return
	}

	res, err := h.Engine.Search(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, res)
}
