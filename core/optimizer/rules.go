package optimizer

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk shape of a rule. An omitted upper bound means +Inf,
// which JSON cannot express directly.
type ruleFile struct {
	UpperBound *float64   `json:"upper_bound" yaml:"upper_bound"`
	Adjustment Adjustment `json:"adjustment" yaml:"adjustment"`
}

// LoadRules reads a rule table from a JSON or YAML file.
func LoadRules(path string) (*Optimizer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []ruleFile
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &raw)
	case ".json":
		err = json.Unmarshal(b, &raw)
	default:
		return nil, fmt.Errorf("unsupported rules format: %s", ext)
	}
	if err != nil {
		return nil, err
	}
	rules := make([]Rule, len(raw))
	for i, r := range raw {
		bound := math.Inf(1)
		if r.UpperBound != nil {
			bound = *r.UpperBound
		}
		rules[i] = Rule{UpperBound: bound, Adjustment: r.Adjustment}
	}
	return New(rules)
}
