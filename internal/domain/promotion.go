// Promotion entitlements and per-job effects share one status machine:
//
//	INACTIVE ──► ACTIVE ──► EXPIRED
//
// EXPIRED is terminal. A plan-level cancellation is mapped to EXPIRED
// before it reaches this package.
package domain

import (
	"fmt"
	"time"
)

type PromotionAction string

const (
	ActionBoostScoreJob    PromotionAction = "BOOST_SCORE_JOB"
	ActionTopList          PromotionAction = "TOP_LIST"
	ActionVerifiedBadge    PromotionAction = "VERIFIED_BADGE"
	ActionBoostScoreCv     PromotionAction = "BOOST_SCORE_CV"
	ActionIncreaseQuota    PromotionAction = "INCREASE_QUOTA"
	ActionExtendExpiryDate PromotionAction = "EXTEND_EXPIRED_DATE"
)

type PromotionTarget string

const (
	TargetJobPost PromotionTarget = "JOB_POST"
	TargetCompany PromotionTarget = "COMPANY"
	TargetCv      PromotionTarget = "CV"
)

type EffectStatus string

const (
	StatusInactive EffectStatus = "INACTIVE"
	StatusActive   EffectStatus = "ACTIVE"
	StatusExpired  EffectStatus = "EXPIRED"
)

// validStatusTransitions lists every allowed (from → to) pair.
var validStatusTransitions = map[EffectStatus][]EffectStatus{
	StatusInactive: {StatusActive, StatusExpired},
	StatusActive:   {StatusExpired},
	// EXPIRED is terminal
}

func ParseEffectStatus(s string) (EffectStatus, error) {
	st := EffectStatus(s)
	switch st {
	case StatusInactive, StatusActive, StatusExpired:
		return st, nil
	}
	return "", fmt.Errorf("unknown effect status %q", s)
}

func ParsePromotionAction(s string) (PromotionAction, error) {
	a := PromotionAction(s)
	switch a {
	case ActionBoostScoreJob, ActionTopList, ActionVerifiedBadge,
		ActionBoostScoreCv, ActionIncreaseQuota, ActionExtendExpiryDate:
		return a, nil
	}
	return "", fmt.Errorf("unknown promotion action %q", s)
}

// CanTransition reports whether moving from → to is permitted.
func CanTransition(from, to EffectStatus) bool {
	for _, s := range validStatusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PromotionPlan is the catalog/billing entity. The engine never reads it on
// the search path; it exists so granted entitlements can point back at what
// was sold.
type PromotionPlan struct {
	ID            string
	Title         string
	Target        PromotionTarget
	Price         int64
	SalePrice     int64
	SaleStartsAt  *time.Time
	SaleEndsAt    *time.Time
	IsLifeTime    bool
	DayDuration   int
	PurchaseLimit int
}

// PromotionUnit describes one purchasable effect. Value's meaning depends
// on Action (score points for BOOST_SCORE_JOB, ignored for TOP_LIST and
// VERIFIED_BADGE). Only Target == JOB_POST units influence ranking.
type PromotionUnit struct {
	ID             string
	PlanID         string
	Action         PromotionAction
	Target         PromotionTarget
	IsLifeTime     bool
	IsUsageLimited bool
	UsageLimit     int
	DayDuration    int
	Value          float64
}

// UserEntitlement is a user's purchased instance of a unit. EndDate is nil
// iff the unit is lifetime.
type UserEntitlement struct {
	ID              string
	UserID          string
	PromotionUnitID string
	Status          EffectStatus
	UsedTime        int
	UsageLimit      int
	StartDate       time.Time
	EndDate         *time.Time
}

// UsageExhausted reports whether a usage-limited entitlement has no
// applications left. Unlimited entitlements never exhaust.
func (e UserEntitlement) UsageExhausted() bool {
	return e.UsageLimit > 0 && e.UsedTime >= e.UsageLimit
}

// TimeExpired reports whether the entitlement's window has closed.
func (e UserEntitlement) TimeExpired(now time.Time) bool {
	return e.EndDate != nil && now.After(*e.EndDate)
}

// JobPromotionEffect is one entitlement applied to one job. Its window is
// always a subset of the originating entitlement's window unless the unit
// is lifetime.
type JobPromotionEffect struct {
	ID              string
	JobID           int64
	EntitlementID   string
	PromotionUnitID string
	Action          PromotionAction
	Value           float64
	Status          EffectStatus
	StartDate       time.Time
	EndDate         *time.Time
}

func (f JobPromotionEffect) TimeExpired(now time.Time) bool {
	return f.EndDate != nil && now.After(*f.EndDate)
}
