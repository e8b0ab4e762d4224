// engine/internal/rank/score.go
package rank

import (
	"strings"
	"time"

	"jobboard-engine/internal/config"
	"jobboard-engine/internal/index"
	"jobboard-engine/internal/taxonomy"
)

// keyword is a search phrase prepared for scoring: folded once, split once.
type keyword struct {
	phrase string
	tokens []string
}

func newKeyword(raw string) keyword {
	phrase := taxonomy.Fold(strings.TrimSpace(raw))
	return keyword{phrase: phrase, tokens: strings.Fields(phrase)}
}

func (k keyword) empty() bool { return k.phrase == "" }

// matchesAny is the hard predicate pushed into QueryCandidates: at least
// one token somewhere in title or description.
func (k keyword) matchesAny(title, description string) bool {
	if k.empty() {
		return true
	}
	t := taxonomy.Fold(title)
	d := taxonomy.Fold(description)
	for _, tok := range k.tokens {
		if strings.Contains(t, tok) || strings.Contains(d, tok) {
			return true
		}
	}
	return false
}

type scorer struct {
	cfg config.Config
	kw  keyword
	now time.Time
}

// baseRelevance is the organic part of the score: weighted keyword match
// (title over description, phrase over token subset) plus the urgent
// bonus. With no keyword it degrades to a recency ramp so
// sortBy=RELEVANCE still means "newest first".
func (s scorer) baseRelevance(e index.Entry) float64 {
	var score float64
	if s.kw.empty() {
		score = s.recency(e)
	} else {
		score = s.fieldScore(taxonomy.Fold(e.Title), s.cfg.Ranking.TitleWeight) +
			s.fieldScore(taxonomy.Fold(e.PlainDescription), s.cfg.Ranking.DescriptionWeight)
	}
	if e.IsUrgent {
		score += s.cfg.Ranking.UrgentBonus
	}
	return score
}

func (s scorer) fieldScore(text string, weight float64) float64 {
	if strings.Contains(text, s.kw.phrase) {
		return weight * s.cfg.Ranking.PhraseFactor
	}
	matched := 0
	for _, tok := range s.kw.tokens {
		if strings.Contains(text, tok) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return weight * float64(matched) / float64(len(s.kw.tokens))
}

func (s scorer) recency(e index.Entry) float64 {
	age := s.now.Sub(e.PostedAt).Hours()
	if age < 0 {
		age = 0
	}
	v := s.cfg.Ranking.RecencyBase - age*s.cfg.Ranking.RecencyDecayPerHour
	if v < 0 {
		return 0
	}
	return v
}

// totalScore folds the promotion boost in, capped so a promoted but
// irrelevant job cannot outrank a relevant one by an unbounded margin.
func (s scorer) totalScore(e index.Entry) float64 {
	boost := e.BoostScore
	if ceiling := s.cfg.Ranking.BoostCeiling; boost > ceiling {
		boost = ceiling
	}
	if boost < 0 {
		boost = 0
	}
	return s.baseRelevance(e) + boost
}
