package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

func Validate(cfg Config) error {
	var errs []string

	if cfg.App.Port <= 0 || cfg.App.Port > 65535 {
		errs = append(errs, "app.port must be 1..65535")
	}

	checkNonNeg := func(name string, v float64) {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}
	checkNonNeg("ranking.title_weight", cfg.Ranking.TitleWeight)
	checkNonNeg("ranking.description_weight", cfg.Ranking.DescriptionWeight)
	checkNonNeg("ranking.urgent_bonus", cfg.Ranking.UrgentBonus)
	checkNonNeg("ranking.recency_base", cfg.Ranking.RecencyBase)
	checkNonNeg("ranking.recency_decay_per_hour", cfg.Ranking.RecencyDecayPerHour)
	checkNonNeg("ranking.boost_ceiling", cfg.Ranking.BoostCeiling)

	if cfg.Ranking.TitleWeight < cfg.Ranking.DescriptionWeight {
		errs = append(errs, "ranking.title_weight must be >= ranking.description_weight")
	}
	if cfg.Ranking.PhraseFactor < 1 {
		errs = append(errs, "ranking.phrase_factor must be >= 1 (phrase match outranks token match)")
	}
	if cfg.Ranking.SponsoredSlotsPerPage < 0 {
		errs = append(errs, "ranking.sponsored_slots_per_page must be >= 0")
	}
	if cfg.Ranking.MaxPageSize <= 0 {
		errs = append(errs, "ranking.max_page_size must be > 0")
	}
	if cfg.Ranking.SponsoredSlotsPerPage >= cfg.Ranking.MaxPageSize {
		errs = append(errs, "ranking.sponsored_slots_per_page must be < ranking.max_page_size")
	}
	if cfg.Sweep.IntervalSeconds <= 0 {
		errs = append(errs, "sweep.interval_seconds must be > 0")
	}
	if cfg.Limits.SearchPerSecond <= 0 {
		errs = append(errs, "limits.search_per_second must be > 0")
	}
	if cfg.Limits.SearchBurst <= 0 {
		errs = append(errs, "limits.search_burst must be > 0")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}

func SaveAtomic(path string, cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	return os.Rename(tmp, path)
}
