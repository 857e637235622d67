package config

import (
	"os"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/teranos/warden/errors"
)

// ConditionSpec describes one declarative alerting condition from
// conditions.yaml. The expression is compiled at registration time, not here,
// so this package stays a plain data layer.
type ConditionSpec struct {
	Name            string   `yaml:"name"`             // label used in notifications
	Title           string   `yaml:"title"`            // optional display title (default: expr)
	Expr            string   `yaml:"expr"`             // expression over scalar names, e.g. "loss < 0.5"
	CooldownSeconds *int     `yaml:"cooldown_seconds"` // nil = default 30
	OnlyRelevant    bool     `yaml:"only_relevant"`    // restrict update payloads to the condition's scalars
	Default         *float64 `yaml:"default"`          // value for missing scalars (nil = default 1)
	Jobs            []string `yaml:"jobs"`             // job-name glob patterns; empty = every job
}

type conditionsFile struct {
	Conditions []ConditionSpec `yaml:"conditions"`
}

// LoadConditions reads the declarative conditions file. A missing file is not
// an error: it returns no conditions.
func LoadConditions(path string) ([]ConditionSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read conditions file")
	}

	var file conditionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse conditions file")
	}

	for i, spec := range file.Conditions {
		if spec.Name == "" {
			return nil, errors.Newf("conditions[%d]: name is required", i)
		}
		if spec.Expr == "" {
			return nil, errors.Newf("conditions[%d] (%s): expr is required", i, spec.Name)
		}
		if spec.CooldownSeconds != nil && *spec.CooldownSeconds < 0 {
			return nil, errors.Newf("conditions[%d] (%s): cooldown_seconds must be >= 0, got %d",
				i, spec.Name, *spec.CooldownSeconds)
		}
	}

	return file.Conditions, nil
}

// Matches reports whether this condition applies to a job with the given name.
func (s *ConditionSpec) Matches(jobName string) bool {
	if len(s.Jobs) == 0 {
		return true
	}
	for _, pattern := range s.Jobs {
		if ok, err := path.Match(pattern, jobName); err == nil && ok {
			return true
		}
	}
	return false
}
