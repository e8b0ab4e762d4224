package rank

import (
	"fmt"

	"jobboard-engine/internal/domain"
)

type SortBy string

const (
	SortRelevance  SortBy = "RELEVANCE"
	SortSalary     SortBy = "SALARY"
	SortExperience SortBy = "EXPERIENCE"
	SortExpiredAt  SortBy = "EXPIRED_AT"
)

func ParseSortBy(s string) (SortBy, error) {
	if s == "" {
		return SortRelevance, nil
	}
	v := SortBy(s)
	switch v {
	case SortRelevance, SortSalary, SortExperience, SortExpiredAt:
		return v, nil
	}
	return "", fmt.Errorf("sortBy %q: %w", s, domain.ErrInvalidSearchParameter)
}

type SalaryBucket string

const (
	SalaryAny      SalaryBucket = ""
	SalaryUnder10  SalaryBucket = "UNDER_10"
	Salary10To15   SalaryBucket = "10_15"
	Salary15To20   SalaryBucket = "15_20"
	Salary20To30   SalaryBucket = "20_30"
	Salary30To50   SalaryBucket = "30_50"
	SalaryOver50   SalaryBucket = "OVER_50"
	SalaryDeal     SalaryBucket = "DEAL"
)

// bucketRange bounds in millions VND; hi == 0 means unbounded.
var bucketRange = map[SalaryBucket][2]int{
	SalaryUnder10: {0, 10},
	Salary10To15:  {10, 15},
	Salary15To20:  {15, 20},
	Salary20To30:  {20, 30},
	Salary30To50:  {30, 50},
	SalaryOver50:  {50, 0},
}

func ParseSalaryBucket(s string) (SalaryBucket, error) {
	if s == "" {
		return SalaryAny, nil
	}
	v := SalaryBucket(s)
	if v == SalaryDeal {
		return v, nil
	}
	if _, ok := bucketRange[v]; ok {
		return v, nil
	}
	return "", fmt.Errorf("salary filter %q: %w", s, domain.ErrInvalidSearchParameter)
}

// Matches applies bucket semantics to a job's salary. Numeric buckets
// overlap-match the advertised range; DEAL matches negotiable jobs only.
func (b SalaryBucket) Matches(min, max int, negotiable bool) bool {
	switch b {
	case SalaryAny:
		return true
	case SalaryDeal:
		return negotiable
	}
	if negotiable {
		return false
	}
	r := bucketRange[b]
	if max < r[0] {
		return false
	}
	if r[1] > 0 && min >= r[1] {
		return false
	}
	return true
}

// Request is the raw search input as the API layer hands it over. Enum
// fields are plain strings so validation happens in exactly one place.
type Request struct {
	Keyword          string   `json:"keyword"`
	CategoryIDs      []int64  `json:"categoryIds"`
	ProvinceCodes    []string `json:"provinceCodes"`
	DistrictCodes    []string `json:"districtCodes"`
	ExperienceLevels []string `json:"experienceLevels"`
	SalaryFilter     string   `json:"salaryFilter"`
	EmploymentTypes  []string `json:"employmentTypes"`
	PositionTypes    []string `json:"positionTypes"`
	IsUrgent         *bool    `json:"isUrgent"`
	SortBy           string   `json:"sortBy"`
	SkipCount        int      `json:"skipCount"`
	MaxResultCount   int      `json:"maxResultCount"`
}

type parsedRequest struct {
	keyword          string
	categoryIDs      []int64
	provinces        map[string]struct{}
	districts        map[string]struct{}
	experience       map[domain.ExperienceLevel]struct{}
	salary           SalaryBucket
	employmentTypes  map[domain.EmploymentType]struct{}
	positionTypes    map[domain.PositionType]struct{}
	isUrgent         *bool
	sortBy           SortBy
	skipCount        int
	maxResultCount   int
}

// parseRequest validates before any read, per the error taxonomy.
func parseRequest(req Request, maxPageSize int) (parsedRequest, error) {
	var p parsedRequest

	if req.SkipCount < 0 {
		return p, fmt.Errorf("skipCount %d: %w", req.SkipCount, domain.ErrInvalidSearchParameter)
	}
	if req.MaxResultCount < 0 {
		return p, fmt.Errorf("maxResultCount %d: %w", req.MaxResultCount, domain.ErrInvalidSearchParameter)
	}

	sortBy, err := ParseSortBy(req.SortBy)
	if err != nil {
		return p, err
	}
	salary, err := ParseSalaryBucket(req.SalaryFilter)
	if err != nil {
		return p, err
	}

	p.experience = make(map[domain.ExperienceLevel]struct{}, len(req.ExperienceLevels))
	for _, s := range req.ExperienceLevels {
		v, err := domain.ParseExperienceLevel(s)
		if err != nil {
			return p, fmt.Errorf("%v: %w", err, domain.ErrInvalidSearchParameter)
		}
		p.experience[v] = struct{}{}
	}
	p.employmentTypes = make(map[domain.EmploymentType]struct{}, len(req.EmploymentTypes))
	for _, s := range req.EmploymentTypes {
		v, err := domain.ParseEmploymentType(s)
		if err != nil {
			return p, fmt.Errorf("%v: %w", err, domain.ErrInvalidSearchParameter)
		}
		p.employmentTypes[v] = struct{}{}
	}
	p.positionTypes = make(map[domain.PositionType]struct{}, len(req.PositionTypes))
	for _, s := range req.PositionTypes {
		v, err := domain.ParsePositionType(s)
		if err != nil {
			return p, fmt.Errorf("%v: %w", err, domain.ErrInvalidSearchParameter)
		}
		p.positionTypes[v] = struct{}{}
	}

	p.provinces = toSet(req.ProvinceCodes)
	p.districts = toSet(req.DistrictCodes)
	p.keyword = req.Keyword
	p.categoryIDs = req.CategoryIDs
	p.isUrgent = req.IsUrgent
	p.salary = salary
	p.sortBy = sortBy
	p.skipCount = req.SkipCount
	p.maxResultCount = req.MaxResultCount
	if p.maxResultCount == 0 || p.maxResultCount > maxPageSize {
		p.maxResultCount = maxPageSize
	}
	return p, nil
}

func toSet(xs []string) map[string]struct{} {
	out := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		if x != "" {
			out[x] = struct{}{}
		}
	}
	return out
}
