package httpapi

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"jobboard-engine/internal/domain"
	"jobboard-engine/internal/identity"
	"jobboard-engine/internal/ledger"
	"jobboard-engine/internal/store"
)

type PromotionsHandler struct {
	DB       *sql.DB
	Ledger   *ledger.Ledger
	Identity identity.Provider
}

type unitRequest struct {
	ID             string  `json:"id"`
	PlanID         string  `json:"planId"`
	Action         string  `json:"action"`
	Target         string  `json:"target"`
	IsLifeTime     bool    `json:"isLifeTime"`
	IsUsageLimited bool    `json:"isUsageLimited"`
	UsageLimit     int     `json:"usageLimit"`
	DayDuration    int     `json:"dayDuration"`
	Value          float64 `json:"value"`
}

// UpsertUnit syncs one catalog unit from the commerce system. The engine
// does not sell anything; it only needs the unit's effect parameters.
func (h PromotionsHandler) UpsertUnit(w http.ResponseWriter, r *http.Request) {
	var req unitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid JSON: "+err.Error())
		return
	}
	if req.ID == "" {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "id is required")
		return
	}
	action, err := domain.ParsePromotionAction(req.Action)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	target := domain.PromotionTarget(req.Target)
	switch target {
	case domain.TargetJobPost, domain.TargetCompany, domain.TargetCv:
	default:
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "unknown target "+req.Target)
		return
	}

	u := domain.PromotionUnit{
		ID:             req.ID,
		PlanID:         req.PlanID,
		Action:         action,
		Target:         target,
		IsLifeTime:     req.IsLifeTime,
		IsUsageLimited: req.IsUsageLimited,
		UsageLimit:     req.UsageLimit,
		DayDuration:    req.DayDuration,
		Value:          req.Value,
	}
	if err := store.UpsertPromotionUnit(r.Context(), h.DB, u); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, u)
}

type grantRequest struct {
	UserID  string `json:"userId"`
	UnitID  string `json:"unitId"`
	StartAt string `json:"startAt,omitempty"` // RFC3339, defaults to now
}

// Grant records a purchase. Called by the commerce system, so the user
// comes from the body rather than the request identity.
func (h PromotionsHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid JSON: "+err.Error())
		return
	}
	if req.UserID == "" || req.UnitID == "" {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "userId and unitId are required")
		return
	}
	startAt := time.Now().UTC()
	if req.StartAt != "" {
		t, err := time.Parse(time.RFC3339, req.StartAt)
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, "invalid_body", "startAt: "+err.Error())
			return
		}
		startAt = t
	}

	ent, err := h.Ledger.Grant(r.Context(), req.UserID, req.UnitID, startAt)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, ent)
}

type applyRequest struct {
	UnitID string `json:"unitId"`
	JobID  int64  `json:"jobId"`
}

// Apply spends one use of the caller's entitlement on a job.
func (h PromotionsHandler) Apply(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.Identity.CurrentUserID(r.Context())
	if !ok {
		WriteError(w, r, http.StatusUnauthorized, "unauthenticated", "missing user identity")
		return
	}

	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid JSON: "+err.Error())
		return
	}
	if req.UnitID == "" || req.JobID <= 0 {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "unitId and jobId are required")
		return
	}

	eff, err := h.Ledger.ApplyEffect(r.Context(), userID, req.UnitID, req.JobID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, eff)
}

// ListEntitlements returns the caller's entitlements, lazily re-evaluated
// so stale ACTIVE rows show their real status.
func (h PromotionsHandler) ListEntitlements(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.Identity.CurrentUserID(r.Context())
	if !ok {
		WriteError(w, r, http.StatusUnauthorized, "unauthenticated", "missing user identity")
		return
	}
	ents, err := h.Ledger.ListForUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"items": ents})
}

// RevokeByPath force-expires an entitlement and its live effects. Used by
// the commerce system on refunds.
func (h PromotionsHandler) RevokeByPath(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTail(r.URL.Path, "/entitlements/", "/revoke")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid entitlement id")
		return
	}
	if err := h.Ledger.Revoke(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "id": id})
}
