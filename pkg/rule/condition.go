package rule

import (
	"fmt"
	"strings"
)

// node is one operator in the compiled condition expression
type node interface {
	eval(results map[string]bool) bool
}

type identNode struct{ name string }
type notNode struct{ operand node }
type andNode struct{ left, right node }
type orNode struct{ left, right node }

// quantNode covers "all of them" / "any of them"
type quantNode struct{ all bool }

func (n *identNode) eval(results map[string]bool) bool { return results[n.name] }
func (n *notNode) eval(results map[string]bool) bool   { return !n.operand.eval(results) }
func (n *andNode) eval(results map[string]bool) bool {
	return n.left.eval(results) && n.right.eval(results)
}
func (n *orNode) eval(results map[string]bool) bool {
	return n.left.eval(results) || n.right.eval(results)
}
func (n *quantNode) eval(results map[string]bool) bool {
	for _, matched := range results {
		if n.all && !matched {
			return false
		}
		if !n.all && matched {
			return true
		}
	}
	return n.all
}

// parseCondition compiles a condition expression. Grammar, loosest
// binding first:
//
//	expr    := term { "or" term }
//	term    := factor { "and" factor }
//	factor  := [ "not" ] primary
//	primary := "(" expr ")" | "all of them" | "any of them" | ident
//
// Every identifier must name a selection.
func parseCondition(expr string, selections map[string]*selection) (node, error) {
	p := &condParser{tokens: tokenize(expr)}
	n, err := p.parseOr(selections)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok != "" {
		return nil, fmt.Errorf("unexpected token %q", tok)
	}
	return n, nil
}

func tokenize(expr string) []string {
	expr = strings.ReplaceAll(expr, "(", " ( ")
	expr = strings.ReplaceAll(expr, ")", " ) ")
	return strings.Fields(expr)
}

type condParser struct {
	tokens []string
	pos    int
}

func (p *condParser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *condParser) next() string {
	tok := p.peek()
	if tok != "" {
		p.pos++
	}
	return tok
}

func (p *condParser) parseOr(selections map[string]*selection) (node, error) {
	left, err := p.parseAnd(selections)
	if err != nil {
		return nil, err
	}
	for p.peek() == "or" {
		p.next()
		right, err := p.parseAnd(selections)
		if err != nil {
			return nil, err
		}
		left = &orNode{left: left, right: right}
	}
	return left, nil
}

func (p *condParser) parseAnd(selections map[string]*selection) (node, error) {
	left, err := p.parseFactor(selections)
	if err != nil {
		return nil, err
	}
	for p.peek() == "and" {
		p.next()
		right, err := p.parseFactor(selections)
		if err != nil {
			return nil, err
		}
		left = &andNode{left: left, right: right}
	}
	return left, nil
}

func (p *condParser) parseFactor(selections map[string]*selection) (node, error) {
	if p.peek() == "not" {
		p.next()
		operand, err := p.parseFactor(selections)
		if err != nil {
			return nil, err
		}
		return &notNode{operand: operand}, nil
	}
	return p.parsePrimary(selections)
}

func (p *condParser) parsePrimary(selections map[string]*selection) (node, error) {
	tok := p.next()
	switch tok {
	case "":
		return nil, fmt.Errorf("unexpected end of condition")
	case "(":
		n, err := p.parseOr(selections)
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing != ")" {
			return nil, fmt.Errorf("expected closing parenthesis, got %q", closing)
		}
		return n, nil
	case ")", "and", "or", "not":
		return nil, fmt.Errorf("unexpected token %q", tok)
	case "all", "any":
		if p.next() != "of" || p.next() != "them" {
			return nil, fmt.Errorf("expected %q to be followed by \"of them\"", tok)
		}
		return &quantNode{all: tok == "all"}, nil
	default:
		if _, ok := selections[tok]; !ok {
			return nil, fmt.Errorf("unknown selection %q", tok)
		}
		return &identNode{name: tok}, nil
	}
}
