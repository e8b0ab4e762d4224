// Package geo is the boundary to the geographic reference data owned by
// another service. The engine only needs display names for result
// enrichment; filtering always works on raw codes.
package geo

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Resolver interface {
	ResolveProvinceNames(codes []string) map[string]string
	ResolveDistrictNames(codes []string) map[string]string
}

// StaticResolver serves lookups from a yaml snapshot shipped with the
// engine. Good enough until the reference-data service grows an API.
type StaticResolver struct {
	Provinces map[string]string `yaml:"provinces"`
	Districts map[string]string `yaml:"districts"`
}

func LoadStatic(path string) (*StaticResolver, error) {
	var r StaticResolver
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *StaticResolver) ResolveProvinceNames(codes []string) map[string]string {
	return pick(r.Provinces, codes)
}

func (r *StaticResolver) ResolveDistrictNames(codes []string) map[string]string {
	return pick(r.Districts, codes)
}

func pick(m map[string]string, codes []string) map[string]string {
	out := make(map[string]string, len(codes))
	for _, c := range codes {
		if name, ok := m[c]; ok {
			out[c] = name
		}
	}
	return out
}
