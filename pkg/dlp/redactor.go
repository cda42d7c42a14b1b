// Package dlp masks personal identifiers in text bound for the message log.
package dlp

import (
	"fmt"
	"regexp"
)

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

type Redactor struct {
	rules []compiledRule
}

func NewRedactor(cfg RulesConfig) (*Redactor, error) {
	var compiled []compiledRule
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}
	return &Redactor{rules: compiled}, nil
}

// Text returns s with every rule applied in order. A nil Redactor is a
// no-op.
func (r *Redactor) Text(s string) string {
	if r == nil {
		return s
	}
	for _, rule := range r.rules {
		s = rule.re.ReplaceAllString(s, rule.rule.Mask)
	}
	return s
}

// Map masks string values recursively and returns a copy.
func (r *Redactor) Map(data map[string]interface{}) map[string]interface{} {
	if r == nil {
		return data
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = r.value(v)
	}
	return out
}

func (r *Redactor) value(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return r.Text(val)
	case map[string]interface{}:
		return r.Map(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, nested := range val {
			out[i] = r.value(nested)
		}
		return out
	default:
		return v
	}
}

// Types reports which rule types matched s.
func (r *Redactor) Types(s string) []string {
	if r == nil {
		return nil
	}
	var types []string
	for _, rule := range r.rules {
		if rule.re.MatchString(s) {
			types = append(types, rule.rule.Type)
		}
	}
	return types
}
