package domain

import (
	"fmt"
	"time"
)

type JobStatus string

const (
	JobDraft    JobStatus = "DRAFT"
	JobOpen     JobStatus = "OPEN"
	JobClosed   JobStatus = "CLOSED"
	JobExpired  JobStatus = "EXPIRED"
	JobRejected JobStatus = "REJECTED"
	JobDeleted  JobStatus = "DELETED"
)

type EmploymentType string

const (
	EmploymentFullTime  EmploymentType = "FULL_TIME"
	EmploymentPartTime  EmploymentType = "PART_TIME"
	EmploymentContract  EmploymentType = "CONTRACT"
	EmploymentFreelance EmploymentType = "FREELANCE"
	EmploymentIntern    EmploymentType = "INTERN"
)

type PositionType string

const (
	PositionStaff    PositionType = "STAFF"
	PositionTeamLead PositionType = "TEAM_LEAD"
	PositionManager  PositionType = "MANAGER"
	PositionDirector PositionType = "DIRECTOR"
)

type ExperienceLevel string

const (
	ExpNone      ExperienceLevel = "NONE"
	ExpUnderOne  ExperienceLevel = "UNDER_1Y"
	ExpOneToTwo  ExperienceLevel = "1_2Y"
	ExpTwoToFive ExperienceLevel = "2_5Y"
	ExpFivePlus  ExperienceLevel = "OVER_5Y"
)

// experienceRank orders levels for sortBy=Experience.
var experienceRank = map[ExperienceLevel]int{
	ExpNone:      0,
	ExpUnderOne:  1,
	ExpOneToTwo:  2,
	ExpTwoToFive: 3,
	ExpFivePlus:  4,
}

func (e ExperienceLevel) Rank() int { return experienceRank[e] }

func ParseEmploymentType(s string) (EmploymentType, error) {
	t := EmploymentType(s)
	switch t {
	case EmploymentFullTime, EmploymentPartTime, EmploymentContract, EmploymentFreelance, EmploymentIntern:
		return t, nil
	}
	return "", fmt.Errorf("unknown employment type %q", s)
}

func ParsePositionType(s string) (PositionType, error) {
	t := PositionType(s)
	switch t {
	case PositionStaff, PositionTeamLead, PositionManager, PositionDirector:
		return t, nil
	}
	return "", fmt.Errorf("unknown position type %q", s)
}

func ParseExperienceLevel(s string) (ExperienceLevel, error) {
	t := ExperienceLevel(s)
	if _, ok := experienceRank[t]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown experience level %q", s)
}

func ParseJobStatus(s string) (JobStatus, error) {
	t := JobStatus(s)
	switch t {
	case JobDraft, JobOpen, JobClosed, JobExpired, JobRejected, JobDeleted:
		return t, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// Job is the search-relevant slice of a posting. Salary amounts are
// millions of VND per month; zero min/max with Negotiable set means
// "salary on agreement".
type Job struct {
	ID               int64
	CategoryID       int64
	ProvinceCode     string
	DistrictCode     string
	EmploymentType   EmploymentType
	PositionType     PositionType
	ExperienceLevel  ExperienceLevel
	SalaryMin        int
	SalaryMax        int
	SalaryNegotiable bool
	Title            string
	Description      string // raw HTML as submitted by the recruiter
	Status           JobStatus
	PostedAt         time.Time
	ExpiresAt        time.Time
	IsUrgent         bool
}

// Searchable reports whether the job belongs in the search index.
func (j Job) Searchable(now time.Time) bool {
	return j.Status == JobOpen && j.ExpiresAt.After(now)
}
