package rule

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
	"github.com/ohler55/ojg/jp"
)

// selection is an OR over groups; a group is an AND over predicates.
// A mapping selection compiles to a single group, a list selection to
// one group per element.
type selection struct {
	groups []*group
}

type group struct {
	predicates []*predicate
}

// predicate resolves a field path and tests every resolved value
// against the compiled matcher; any matching value satisfies it
type predicate struct {
	path  jp.Expr
	match func(interface{}) bool
}

func (s *selection) matches(record interface{}) bool {
	for _, g := range s.groups {
		if g.matches(record) {
			return true
		}
	}
	return false
}

func (g *group) matches(record interface{}) bool {
	for _, p := range g.predicates {
		if !p.matches(record) {
			return false
		}
	}
	return true
}

func (p *predicate) matches(record interface{}) bool {
	for _, val := range p.path.Get(record) {
		// A list-valued field matches when any element does
		if list, ok := val.([]interface{}); ok {
			for _, elem := range list {
				if p.match(elem) {
					return true
				}
			}
			continue
		}
		if p.match(val) {
			return true
		}
	}
	return false
}

func compileSelection(raw interface{}) (*selection, error) {
	switch v := raw.(type) {
	case map[string]interface{}:
		g, err := compileGroup(v)
		if err != nil {
			return nil, err
		}
		return &selection{groups: []*group{g}}, nil
	case []interface{}:
		if len(v) == 0 {
			return nil, fmt.Errorf("empty selection list")
		}
		sel := &selection{}
		for i, elem := range v {
			fields, ok := elem.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("element %d is not a mapping", i)
			}
			g, err := compileGroup(fields)
			if err != nil {
				return nil, err
			}
			sel.groups = append(sel.groups, g)
		}
		return sel, nil
	default:
		return nil, fmt.Errorf("selection must be a mapping or a list of mappings")
	}
}

func compileGroup(fields map[string]interface{}) (*group, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty selection")
	}
	g := &group{}
	for key, expected := range fields {
		p, err := compilePredicate(key, expected)
		if err != nil {
			return nil, err
		}
		g.predicates = append(g.predicates, p)
	}
	return g, nil
}

func compilePredicate(key string, expected interface{}) (*predicate, error) {
	field := key
	modifier := ""
	if idx := strings.Index(key, "|"); idx >= 0 {
		field = key[:idx]
		modifier = key[idx+1:]
	}
	if field == "" {
		return nil, fmt.Errorf("empty field name in %q", key)
	}

	path, err := jp.ParseString(field)
	if err != nil {
		return nil, fmt.Errorf("field path %q: %w", field, err)
	}

	match, err := compileMatcher(modifier, expected)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}

	return &predicate{path: path, match: match}, nil
}

// compileMatcher builds the value test. A list of expected values is
// any-of; list elements and scalars compile identically.
func compileMatcher(modifier string, expected interface{}) (func(interface{}) bool, error) {
	values, ok := expected.([]interface{})
	if !ok {
		values = []interface{}{expected}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty value list")
	}

	var matchers []func(interface{}) bool
	for _, value := range values {
		m, err := compileValueMatcher(modifier, value)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}

	return func(val interface{}) bool {
		for _, m := range matchers {
			if m(val) {
				return true
			}
		}
		return false
	}, nil
}

func compileValueMatcher(modifier string, expected interface{}) (func(interface{}) bool, error) {
	switch modifier {
	case "":
		if s, ok := expected.(string); ok && strings.ContainsAny(s, "*?") {
			g, err := glob.Compile(s)
			if err != nil {
				return nil, fmt.Errorf("wildcard %q: %w", s, err)
			}
			return func(val interface{}) bool {
				str, ok := val.(string)
				return ok && g.Match(str)
			}, nil
		}
		return func(val interface{}) bool {
			return scalarEqual(val, expected)
		}, nil

	case "contains", "startswith", "endswith":
		needle, ok := expected.(string)
		if !ok {
			return nil, fmt.Errorf("%s expects a string value", modifier)
		}
		test := strings.Contains
		switch modifier {
		case "startswith":
			test = strings.HasPrefix
		case "endswith":
			test = strings.HasSuffix
		}
		return func(val interface{}) bool {
			str, ok := val.(string)
			return ok && test(str, needle)
		}, nil

	case "re":
		pattern, ok := expected.(string)
		if !ok {
			return nil, fmt.Errorf("re expects a string value")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("regexp %q: %w", pattern, err)
		}
		return func(val interface{}) bool {
			str, ok := val.(string)
			return ok && re.MatchString(str)
		}, nil

	default:
		return nil, fmt.Errorf("unknown modifier %q", modifier)
	}
}

// scalarEqual compares a record value with an expected scalar, bridging
// the numeric types produced by the YAML and JSON decoders
func scalarEqual(val, expected interface{}) bool {
	if val == nil || expected == nil {
		return val == nil && expected == nil
	}
	if vf, ok := toFloat(val); ok {
		ef, ok := toFloat(expected)
		return ok && vf == ef
	}
	return val == expected
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
