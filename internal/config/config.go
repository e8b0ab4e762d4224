// engine/internal/config/config.go
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Ranking struct {
		TitleWeight           float64 `yaml:"title_weight"`
		DescriptionWeight     float64 `yaml:"description_weight"`
		PhraseFactor          float64 `yaml:"phrase_factor"`
		UrgentBonus           float64 `yaml:"urgent_bonus"`
		RecencyBase           float64 `yaml:"recency_base"`
		RecencyDecayPerHour   float64 `yaml:"recency_decay_per_hour"`
		BoostCeiling          float64 `yaml:"boost_ceiling"`
		SponsoredSlotsPerPage int     `yaml:"sponsored_slots_per_page"`
		MaxPageSize           int     `yaml:"max_page_size"`
	} `yaml:"ranking"`

	Sweep struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"sweep"`

	Limits struct {
		SearchPerSecond float64 `yaml:"search_per_second"`
		SearchBurst     int     `yaml:"search_burst"`
	} `yaml:"limits"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

// Default returns the tuning constants shipped with the engine. Used when
// no config file exists yet and as the baseline for tests.
func Default() Config {
	var cfg Config
	cfg.App.Port = 38471
	cfg.App.DataDir = "."
	cfg.Ranking.TitleWeight = 10
	cfg.Ranking.DescriptionWeight = 4
	cfg.Ranking.PhraseFactor = 2.0
	cfg.Ranking.UrgentBonus = 3
	cfg.Ranking.RecencyBase = 10
	cfg.Ranking.RecencyDecayPerHour = 0.05
	cfg.Ranking.BoostCeiling = 30
	cfg.Ranking.SponsoredSlotsPerPage = 3
	cfg.Ranking.MaxPageSize = 100
	cfg.Sweep.IntervalSeconds = 60
	cfg.Limits.SearchPerSecond = 20
	cfg.Limits.SearchBurst = 40
	return cfg
}
