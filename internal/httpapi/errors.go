package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"jobboard-engine/internal/domain"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// writeDomainError maps the engine's sentinel errors onto HTTP codes.
// Anything unrecognized is a 500 with the detail kept out of the body.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSearchParameter):
		WriteError(w, r, http.StatusBadRequest, "invalid_search_parameter", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrCategoryNotAssignable):
		WriteError(w, r, http.StatusUnprocessableEntity, "category_not_assignable", err.Error())
	case errors.Is(err, domain.ErrEntitlementNotOwned):
		WriteError(w, r, http.StatusForbidden, "entitlement_not_owned", err.Error())
	case errors.Is(err, domain.ErrEntitlementExhausted):
		WriteError(w, r, http.StatusConflict, "entitlement_exhausted", err.Error())
	case errors.Is(err, domain.ErrUnitNotApplicable):
		WriteError(w, r, http.StatusUnprocessableEntity, "unit_not_applicable", err.Error())
	default:
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
