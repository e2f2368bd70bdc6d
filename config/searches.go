package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Search is a predefined location query run when no query is given on the
// command line.
type Search struct {
	Name          string `yaml:"name"`
	Query         string `yaml:"query"`
	TargetResults int    `yaml:"target_results"`
}

type searchesFile struct {
	Searches []Search `yaml:"searches"`
}

// LoadSearches reads search presets from a YAML file. Entries without a
// target fall back to defaultTarget; entries without a query are rejected.
func LoadSearches(path string, defaultTarget int) ([]Search, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read searches file %q", path)
	}

	var f searchesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrapf(err, "parse searches file %q", path)
	}

	for i := range f.Searches {
		s := &f.Searches[i]
		s.Query = strings.TrimSpace(s.Query)
		if s.Query == "" {
			return nil, eris.Errorf("searches file %q: entry %d has no query", path, i)
		}
		if s.Name == "" {
			s.Name = s.Query
		}
		if s.TargetResults <= 0 {
			s.TargetResults = defaultTarget
		}
	}
	return f.Searches, nil
}
