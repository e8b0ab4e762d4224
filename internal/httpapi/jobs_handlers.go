package httpapi

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"jobboard-engine/internal/domain"
	"jobboard-engine/internal/events"
	"jobboard-engine/internal/index"
	"jobboard-engine/internal/ledger"
	"jobboard-engine/internal/store"
	"jobboard-engine/internal/taxonomy"
)

type JobsHandler struct {
	DB     *sql.DB
	Hub    *events.Hub
	Tree   *taxonomy.Tree
	View   *index.View
	Ledger *ledger.Ledger
}

type jobRequest struct {
	CategoryID       int64  `json:"categoryId"`
	ProvinceCode     string `json:"provinceCode"`
	DistrictCode     string `json:"districtCode"`
	EmploymentType   string `json:"employmentType"`
	PositionType     string `json:"positionType"`
	ExperienceLevel  string `json:"experienceLevel"`
	SalaryMin        int    `json:"salaryMin"`
	SalaryMax        int    `json:"salaryMax"`
	SalaryNegotiable bool   `json:"salaryNegotiable"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	ExpiresAt        string `json:"expiresAt"` // RFC3339
	IsUrgent         bool   `json:"isUrgent"`
}

func (req jobRequest) toJob(now time.Time) (domain.Job, error) {
	var j domain.Job
	et, err := domain.ParseEmploymentType(req.EmploymentType)
	if err != nil {
		return j, err
	}
	pt, err := domain.ParsePositionType(req.PositionType)
	if err != nil {
		return j, err
	}
	xp, err := domain.ParseExperienceLevel(req.ExperienceLevel)
	if err != nil {
		return j, err
	}
	expires, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		return j, err
	}
	return domain.Job{
		CategoryID:       req.CategoryID,
		ProvinceCode:     req.ProvinceCode,
		DistrictCode:     req.DistrictCode,
		EmploymentType:   et,
		PositionType:     pt,
		ExperienceLevel:  xp,
		SalaryMin:        req.SalaryMin,
		SalaryMax:        req.SalaryMax,
		SalaryNegotiable: req.SalaryNegotiable,
		Title:            req.Title,
		Description:      req.Description,
		Status:           domain.JobOpen,
		PostedAt:         now,
		ExpiresAt:        expires,
		IsUrgent:         req.IsUrgent,
	}, nil
}

func (h JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := store.ListOpenJobs(r.Context(), h.DB)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"items": jobs, "totalCount": len(jobs)})
}

func (h JobsHandler) GetByPath(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r.URL.Path, "/jobs/", "")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid job id")
		return
	}
	job, err := store.GetJob(r.Context(), h.DB, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	effects, err := h.Ledger.EffectsForJob(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"job": job, "effects": effects})
}

// Publish opens a posting: counter roll-up first (it carries the
// leaf/active validation), then the store row, then the index entry.
func (h JobsHandler) Publish(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req jobRequest
	if err := dec.Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid JSON: "+err.Error())
		return
	}
	if req.Title == "" {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "title is required")
		return
	}
	job, err := req.toJob(time.Now().UTC())
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	if err := h.Tree.OnJobOpened(job.CategoryID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	id, err := store.InsertJob(r.Context(), h.DB, job)
	if err != nil {
		// undo the roll-up so counters stay consistent with the store
		_ = h.Tree.OnJobClosedOrRemoved(job.CategoryID)
		writeDomainError(w, r, err)
		return
	}
	job.ID = id
	h.View.Upsert(job)

	reqID := RequestIDFrom(r.Context())
	h.Hub.Publish(events.MakeEvent(reqID, events.TypeJobOpened, 1, map[string]any{"id": id}))
	WriteJSON(w, http.StatusCreated, job)
}

// CloseByPath closes a posting: store status, counter roll-down, index
// removal. Closing an already-closed job is a no-op.
func (h JobsHandler) CloseByPath(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r.URL.Path, "/jobs/", "/close")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid job id")
		return
	}
	job, err := store.GetJob(r.Context(), h.DB, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if job.Status != domain.JobOpen {
		writeJSON(w, map[string]any{"ok": true, "id": id, "status": job.Status})
		return
	}

	if err := store.UpdateJobStatus(r.Context(), h.DB, id, domain.JobClosed); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.Tree.OnJobClosedOrRemoved(job.CategoryID); err != nil {
		log.Printf("level=warn msg=\"counter roll-down failed\" job_id=%d category_id=%d err=%v", id, job.CategoryID, err)
	}
	h.View.Remove(id)

	reqID := RequestIDFrom(r.Context())
	h.Hub.Publish(events.MakeEvent(reqID, events.TypeJobClosed, 1, map[string]any{"id": id}))
	writeJSON(w, map[string]any{"ok": true, "id": id, "status": domain.JobClosed})
}
