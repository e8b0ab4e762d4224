// Package rank executes search requests: facet filtering through the
// index view, keyword + promotion scoring, sponsored-slot placement and
// pagination over one deterministic total order.
package rank

import (
	"context"
	"sort"
	"time"

	"jobboard-engine/internal/config"
	"jobboard-engine/internal/geo"
	"jobboard-engine/internal/index"
	"jobboard-engine/internal/taxonomy"
)

type Engine struct {
	tree *taxonomy.Tree
	view *index.View
	geo  geo.Resolver // nil disables display-name enrichment
	cfg  func() config.Config
	now  func() time.Time
}

func NewEngine(tree *taxonomy.Tree, view *index.View, resolver geo.Resolver, cfg func() config.Config) *Engine {
	return &Engine{tree: tree, view: view, geo: resolver, cfg: cfg, now: time.Now}
}

// WithClock overrides the time source. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Item is one ranked result row.
type Item struct {
	Entry        index.Entry `json:"job"`
	TotalScore   float64     `json:"totalScore"`
	Sponsored    bool        `json:"sponsored"`
	ProvinceName string      `json:"provinceName,omitempty"`
	DistrictName string      `json:"districtName,omitempty"`
}

type Result struct {
	Items      []Item `json:"items"`
	TotalCount int    `json:"totalCount"`
}

type scored struct {
	entry index.Entry
	total float64
}

// Search runs the four ranking steps: candidate retrieval, scoring, slot
// partition, pagination.
func (e *Engine) Search(ctx context.Context, req Request) (Result, error) {
	cfg := e.cfg()
	// Validation rejects a non-positive page size at load, but a stored
	// config predating that check must degrade, not divide by zero.
	pageSize := cfg.Ranking.MaxPageSize
	if pageSize < 1 {
		pageSize = 1
	}
	p, err := parseRequest(req, pageSize)
	if err != nil {
		return Result{}, err
	}
	now := e.now()
	kw := newKeyword(p.keyword)

	// Step 1: hard facets. Unknown category ids expand to nothing and are
	// dropped silently; the category facet is advisory.
	filter := index.Filter{
		Now:             now,
		Provinces:       p.provinces,
		Districts:       p.districts,
		EmploymentTypes: p.employmentTypes,
		PositionTypes:   p.positionTypes,
		Experience:      p.experience,
		IsUrgent:        p.isUrgent,
		MatchSalary:     p.salary.Matches,
		MatchKeyword:    kw.matchesAny,
	}
	if len(p.categoryIDs) > 0 {
		leafs := make(map[int64]struct{})
		for _, id := range p.categoryIDs {
			for leaf := range e.tree.ExpandToLeafIDs(id) {
				leafs[leaf] = struct{}{}
			}
		}
		filter.RestrictToLeafs = true
		filter.LeafIDs = leafs
	}
	candidates := e.view.QueryCandidates(filter)

	// Step 2: scoring.
	sc := scorer{cfg: cfg, kw: kw, now: now}
	all := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		all = append(all, scored{entry: c, total: sc.totalScore(c)})
	}

	// Steps 3+4: slot placement over a total order, then one page slice.
	order := mergeOrder(all, p.sortBy, pageSize, cfg.Ranking.SponsoredSlotsPerPage)

	start := p.skipCount
	if start > len(order) {
		start = len(order)
	}
	end := start + p.maxResultCount
	if end > len(order) {
		end = len(order)
	}

	items := make([]Item, 0, end-start)
	for _, s := range order[start:end] {
		items = append(items, Item{
			Entry:      s.entry,
			TotalScore: s.total,
			Sponsored:  s.entry.IsTopListed,
		})
	}
	e.enrich(items)

	return Result{Items: items, TotalCount: len(all)}, nil
}

// mergeOrder lays every candidate into one deterministic sequence. The
// first `slots` positions of each page are fed from the sponsored queue
// (score order); every other position takes the best not-yet-placed
// candidate under the organic comparator, sponsored leftovers included.
func mergeOrder(all []scored, sortBy SortBy, pageSize, slots int) []scored {
	if pageSize < 1 {
		pageSize = 1
	}
	sponsored := make([]scored, 0)
	for _, s := range all {
		if s.entry.IsTopListed {
			sponsored = append(sponsored, s)
		}
	}
	sort.SliceStable(sponsored, func(i, j int) bool {
		return sponsorLess(sponsored[i], sponsored[j])
	})

	organic := make([]scored, len(all))
	copy(organic, all)
	sort.SliceStable(organic, func(i, j int) bool {
		return organicLess(organic[i], organic[j], sortBy)
	})

	placed := make(map[int64]struct{}, len(all))
	next := func(queue []scored, i *int) (scored, bool) {
		for *i < len(queue) {
			s := queue[*i]
			*i++
			if _, ok := placed[s.entry.JobID]; ok {
				continue
			}
			placed[s.entry.JobID] = struct{}{}
			return s, true
		}
		return scored{}, false
	}

	out := make([]scored, 0, len(all))
	si, oi := 0, 0
	for len(out) < len(all) {
		if len(out)%pageSize < slots {
			if s, ok := next(sponsored, &si); ok {
				out = append(out, s)
				continue
			}
		}
		s, ok := next(organic, &oi)
		if !ok {
			break
		}
		out = append(out, s)
	}
	return out
}

// sponsorLess: totalScore desc, postedAt desc, id asc.
func sponsorLess(a, b scored) bool {
	if a.total != b.total {
		return a.total > b.total
	}
	return tieBreak(a, b)
}

func organicLess(a, b scored, sortBy SortBy) bool {
	switch sortBy {
	case SortSalary:
		an, bn := salaryKey(a.entry), salaryKey(b.entry)
		if an != bn {
			return an > bn
		}
	case SortExperience:
		ar, br := a.entry.ExperienceLevel.Rank(), b.entry.ExperienceLevel.Rank()
		if ar != br {
			return ar > br
		}
	case SortExpiredAt:
		if !a.entry.ExpiresAt.Equal(b.entry.ExpiresAt) {
			return a.entry.ExpiresAt.Before(b.entry.ExpiresAt)
		}
	default: // SortRelevance
		if a.total != b.total {
			return a.total > b.total
		}
	}
	return tieBreak(a, b)
}

// salaryKey sorts negotiable and unspecified salaries last.
func salaryKey(e index.Entry) int {
	if e.SalaryNegotiable || e.SalaryMax <= 0 {
		return -1
	}
	return e.SalaryMax
}

// tieBreak completes the total order: postedAt desc, then jobId asc.
func tieBreak(a, b scored) bool {
	if !a.entry.PostedAt.Equal(b.entry.PostedAt) {
		return a.entry.PostedAt.After(b.entry.PostedAt)
	}
	return a.entry.JobID < b.entry.JobID
}

func (e *Engine) enrich(items []Item) {
	if e.geo == nil || len(items) == 0 {
		return
	}
	provinces := make([]string, 0, len(items))
	districts := make([]string, 0, len(items))
	for _, it := range items {
		provinces = append(provinces, it.Entry.ProvinceCode)
		districts = append(districts, it.Entry.DistrictCode)
	}
	pn := e.geo.ResolveProvinceNames(provinces)
	dn := e.geo.ResolveDistrictNames(districts)
	for i := range items {
		items[i].ProvinceName = pn[items[i].Entry.ProvinceCode]
		items[i].DistrictName = dn[items[i].Entry.DistrictCode]
	}
}
