// Package index holds the denormalized, queryable projection of open jobs.
// It is never authoritative: every entry can be re-derived from the store,
// and Rebuild does exactly that.
package index

import (
	"log"
	"sync"
	"time"

	"jobboard-engine/internal/domain"
	"jobboard-engine/internal/textutil"
)

// Entry is one open job flattened for search: facet fields plus the
// currently active promotion state.
type Entry struct {
	JobID            int64
	CategoryID       int64
	ProvinceCode     string
	DistrictCode     string
	EmploymentType   domain.EmploymentType
	PositionType     domain.PositionType
	ExperienceLevel  domain.ExperienceLevel
	SalaryMin        int
	SalaryMax        int
	SalaryNegotiable bool
	Title            string
	PlainDescription string
	PostedAt         time.Time
	ExpiresAt        time.Time
	IsUrgent         bool

	BoostScore      float64
	IsTopListed     bool
	IsVerifiedBadge bool
}

// slot wraps an entry with its own mutex so a single job's state never
// observes interleaved half-applied updates, while jobs stay independent.
type slot struct {
	mu sync.Mutex
	e  Entry
}

type View struct {
	mu      sync.RWMutex
	entries map[int64]*slot
}

func NewView() *View {
	return &View{entries: make(map[int64]*slot)}
}

// Upsert projects a job into the view, extracting plain text from the HTML
// description. Promotion state of an existing entry is preserved.
func (v *View) Upsert(j domain.Job) {
	v.mu.Lock()
	s, ok := v.entries[j.ID]
	if !ok {
		s = &slot{}
		v.entries[j.ID] = s
	}
	v.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	boost, top, badge := s.e.BoostScore, s.e.IsTopListed, s.e.IsVerifiedBadge
	s.e = Entry{
		JobID:            j.ID,
		CategoryID:       j.CategoryID,
		ProvinceCode:     j.ProvinceCode,
		DistrictCode:     j.DistrictCode,
		EmploymentType:   j.EmploymentType,
		PositionType:     j.PositionType,
		ExperienceLevel:  j.ExperienceLevel,
		SalaryMin:        j.SalaryMin,
		SalaryMax:        j.SalaryMax,
		SalaryNegotiable: j.SalaryNegotiable,
		Title:            j.Title,
		PlainDescription: textutil.ExtractText(j.Description),
		PostedAt:         j.PostedAt,
		ExpiresAt:        j.ExpiresAt,
		IsUrgent:         j.IsUrgent,
		BoostScore:       boost,
		IsTopListed:      top,
		IsVerifiedBadge:  badge,
	}
}

func (v *View) Remove(jobID int64) {
	v.mu.Lock()
	delete(v.entries, jobID)
	v.mu.Unlock()
}

// RefreshPromotionState reduces the job's effects to the three ranking
// inputs. Only ACTIVE, unexpired, job-post effects count. A refresh for a
// job that is not in the view is stale by definition; it is logged and
// dropped, never an error.
func (v *View) RefreshPromotionState(jobID int64, effects []domain.JobPromotionEffect, now time.Time) {
	v.mu.RLock()
	s, ok := v.entries[jobID]
	v.mu.RUnlock()
	if !ok {
		log.Printf("level=warn msg=\"promotion refresh for job not in index\" job_id=%d", jobID)
		return
	}

	var boost float64
	var top, badge bool
	for _, f := range effects {
		if f.Status != domain.StatusActive || f.TimeExpired(now) {
			continue
		}
		switch f.Action {
		case domain.ActionBoostScoreJob:
			boost += f.Value
		case domain.ActionTopList:
			top = true
		case domain.ActionVerifiedBadge:
			badge = true
		}
	}

	s.mu.Lock()
	s.e.BoostScore = boost
	s.e.IsTopListed = top
	s.e.IsVerifiedBadge = badge
	s.mu.Unlock()
}

// Rebuild replaces the whole projection from authoritative rows.
func (v *View) Rebuild(jobs []domain.Job, effectsByJob map[int64][]domain.JobPromotionEffect, now time.Time) {
	fresh := make(map[int64]*slot, len(jobs))
	v.mu.Lock()
	v.entries = fresh
	v.mu.Unlock()

	for _, j := range jobs {
		if !j.Searchable(now) {
			continue
		}
		v.Upsert(j)
		if effs := effectsByJob[j.ID]; len(effs) > 0 {
			v.RefreshPromotionState(j.ID, effs, now)
		}
	}
}

// Filter is the hard facet set for QueryCandidates. Nil/empty collections
// mean "no restriction". MatchKeyword may be nil.
type Filter struct {
	Now             time.Time // non-zero: drop entries whose ExpiresAt has passed
	LeafIDs         map[int64]struct{}
	RestrictToLeafs bool // distinguishes "no category filter" from "category expanded to nothing"
	Provinces       map[string]struct{}
	Districts       map[string]struct{}
	EmploymentTypes map[domain.EmploymentType]struct{}
	PositionTypes   map[domain.PositionType]struct{}
	Experience      map[domain.ExperienceLevel]struct{}
	IsUrgent        *bool
	MatchSalary     func(min, max int, negotiable bool) bool
	MatchKeyword    func(title, description string) bool
}

// QueryCandidates returns a fresh snapshot of matching entries. No cursor
// state; each call re-reads the live view.
func (v *View) QueryCandidates(f Filter) []Entry {
	v.mu.RLock()
	slots := make([]*slot, 0, len(v.entries))
	for _, s := range v.entries {
		slots = append(slots, s)
	}
	v.mu.RUnlock()

	out := make([]Entry, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		e := s.e
		s.mu.Unlock()
		if matches(f, e) {
			out = append(out, e)
		}
	}
	return out
}

func matches(f Filter, e Entry) bool {
	// Expired jobs stay out of results even before the sweep drops them.
	if !f.Now.IsZero() && !e.ExpiresAt.After(f.Now) {
		return false
	}
	if f.RestrictToLeafs {
		if _, ok := f.LeafIDs[e.CategoryID]; !ok {
			return false
		}
	}
	if len(f.Provinces) > 0 {
		if _, ok := f.Provinces[e.ProvinceCode]; !ok {
			return false
		}
	}
	if len(f.Districts) > 0 {
		if _, ok := f.Districts[e.DistrictCode]; !ok {
			return false
		}
	}
	if len(f.EmploymentTypes) > 0 {
		if _, ok := f.EmploymentTypes[e.EmploymentType]; !ok {
			return false
		}
	}
	if len(f.PositionTypes) > 0 {
		if _, ok := f.PositionTypes[e.PositionType]; !ok {
			return false
		}
	}
	if len(f.Experience) > 0 {
		if _, ok := f.Experience[e.ExperienceLevel]; !ok {
			return false
		}
	}
	if f.IsUrgent != nil && e.IsUrgent != *f.IsUrgent {
		return false
	}
	if f.MatchSalary != nil && !f.MatchSalary(e.SalaryMin, e.SalaryMax, e.SalaryNegotiable) {
		return false
	}
	if f.MatchKeyword != nil && !f.MatchKeyword(e.Title, e.PlainDescription) {
		return false
	}
	return true
}

// Len reports the number of indexed jobs. Used by health reporting.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries)
}
