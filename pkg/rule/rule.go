// Package rule compiles YAML matching rules and evaluates them against
// decoded JSON records.
//
// A rule document carries a detection block with a condition expression
// over named selections, plus optional embedded example records used by
// Validate:
//
//	title: admin logins
//	detection:
//	  condition: selection and not filter
//	  selection:
//	    event.kind: login
//	    user|startswith: adm
//	  filter:
//	    source.ip|re: ^10\.
//	true_positives:
//	  - {event: {kind: login}, user: admin, source: {ip: "8.8.8.8"}}
//	true_negatives:
//	  - {event: {kind: login}, user: guest}
//
// Field paths are dotted and may resolve to multiple values, in which
// case any matching value satisfies the predicate. Matching is
// case-sensitive throughout.
package rule

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Rule is a compiled matching rule
type Rule struct {
	// Title is the optional human-readable rule title
	Title string

	selections map[string]*selection
	condition  node

	truePositives []interface{}
	trueNegatives []interface{}
}

type document struct {
	Title         string                 `yaml:"title"`
	Detection     map[string]interface{} `yaml:"detection"`
	TruePositives []interface{}          `yaml:"true_positives"`
	TrueNegatives []interface{}          `yaml:"true_negatives"`
}

// Load compiles rule source text into a Rule. It fails on YAML decode
// errors, a missing or empty detection block, bad field modifiers,
// unparseable patterns, and condition expressions that do not resolve
// against the rule's selections.
func Load(data []byte) (*Rule, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}

	if len(doc.Detection) == 0 {
		return nil, fmt.Errorf("rule has no detection block")
	}

	rawCondition, ok := doc.Detection["condition"]
	if !ok {
		return nil, fmt.Errorf("detection block has no condition")
	}
	conditionExpr, ok := rawCondition.(string)
	if !ok {
		return nil, fmt.Errorf("condition must be a string")
	}

	selections := make(map[string]*selection)
	for name, raw := range doc.Detection {
		if name == "condition" {
			continue
		}
		sel, err := compileSelection(raw)
		if err != nil {
			return nil, fmt.Errorf("selection %q: %w", name, err)
		}
		selections[name] = sel
	}
	if len(selections) == 0 {
		return nil, fmt.Errorf("detection block has no selections")
	}

	cond, err := parseCondition(conditionExpr, selections)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", conditionExpr, err)
	}

	return &Rule{
		Title:         doc.Title,
		selections:    selections,
		condition:     cond,
		truePositives: doc.TruePositives,
		trueNegatives: doc.TrueNegatives,
	}, nil
}

// Matches reports whether the record satisfies the rule's condition
func (r *Rule) Matches(record interface{}) bool {
	results := make(map[string]bool, len(r.selections))
	for name, sel := range r.selections {
		results[name] = sel.matches(record)
	}
	return r.condition.eval(results)
}

// Validate runs the rule against its own embedded examples: every
// true positive must match and no true negative may. A rule without
// examples is vacuously valid.
func (r *Rule) Validate() bool {
	for _, record := range r.truePositives {
		if !r.Matches(record) {
			return false
		}
	}
	for _, record := range r.trueNegatives {
		if r.Matches(record) {
			return false
		}
	}
	return true
}
