package expr

import (
	"encoding/json"
	"fmt"
	"strings"
)

var comparisons = map[string]bool{
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true, "contains": true,
}

// SyntaxError describes an expression that cannot be parsed.
type SyntaxError struct {
	Expr   string
	Offset int
	Reason string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expression %q: %s at offset %d", e.Expr, e.Reason, e.Offset)
}

// Expression is a parsed condition. It is immutable and safe for
// concurrent use.
type Expression struct {
	src  string
	vars []string
}

// Parse parses src. Word operators bind tighter in the order
// not, and, or; parentheses group.
func Parse(src string) (*Expression, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &SyntaxError{Expr: src, Reason: "empty expression"}
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks, seen: make(map[string]bool)}
	if err := p.parseOr(); err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.fail(t, fmt.Sprintf("unexpected %q", t.text))
	}
	return &Expression{src: src, vars: p.vars}, nil
}

// String returns the source text.
func (e *Expression) String() string { return e.src }

// Vars returns the identifiers the expression reads, in first-use order.
func (e *Expression) Vars() []string {
	out := make([]string, len(e.vars))
	copy(out, e.vars)
	return out
}

type parser struct {
	src  string
	toks []token
	i    int
	vars []string
	seen map[string]bool
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) fail(t token, reason string) error {
	return &SyntaxError{Expr: p.src, Offset: t.pos, Reason: reason}
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) parseOr() error {
	if err := p.parseAnd(); err != nil {
		return err
	}
	for p.isOp("or") {
		p.next()
		if err := p.parseAnd(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseAnd() error {
	if err := p.parseUnary(); err != nil {
		return err
	}
	for p.isOp("and") {
		p.next()
		if err := p.parseUnary(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseUnary() error {
	if p.isOp("not") || p.isOp("!") {
		p.next()
		return p.parseUnary()
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() error {
	if err := p.parsePrimary(); err != nil {
		return err
	}
	t := p.peek()
	if t.kind != tokOp || !comparisons[t.text] {
		return nil
	}
	p.next()
	return p.parsePrimary()
}

func (p *parser) parsePrimary() error {
	t := p.next()
	switch t.kind {
	case tokLParen:
		if err := p.parseOr(); err != nil {
			return err
		}
		if p.peek().kind != tokRParen {
			return p.fail(p.peek(), "missing ')'")
		}
		p.next()
		return nil
	case tokString:
		return nil
	case tokWord:
		p.word(t.text)
		return nil
	case tokEOF:
		return p.fail(t, "missing operand")
	default:
		return p.fail(t, fmt.Sprintf("missing operand before %q", t.text))
	}
}

// word records w as a variable unless it is a literal.
func (p *parser) word(w string) {
	switch strings.ToLower(w) {
	case "true", "false", "null", "nil":
		return
	}
	var num json.Number
	if json.Unmarshal([]byte(w), &num) == nil {
		return
	}
	if !p.seen[w] {
		p.seen[w] = true
		p.vars = append(p.vars, w)
	}
}
