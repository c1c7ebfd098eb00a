// Package conditions evaluates predicates over game state: boolean flag
// expressions and the typed conditions used by events, exits, endings
// and puzzles.
package conditions

import (
	"fmt"
	"strings"
	"unicode"
)

// Expr is a parsed flag expression.
type Expr interface {
	Eval(flag func(string) bool) bool
}

type flagExpr string

func (f flagExpr) Eval(flag func(string) bool) bool { return flag(string(f)) }

type constExpr bool

func (c constExpr) Eval(func(string) bool) bool { return bool(c) }

type notExpr struct{ x Expr }

func (n notExpr) Eval(flag func(string) bool) bool { return !n.x.Eval(flag) }

type andExpr struct{ l, r Expr }

func (a andExpr) Eval(flag func(string) bool) bool { return a.l.Eval(flag) && a.r.Eval(flag) }

type orExpr struct{ l, r Expr }

func (o orExpr) Eval(flag func(string) bool) bool { return o.l.Eval(flag) || o.r.Eval(flag) }

// Evaluate parses and evaluates a flag expression. A malformed expression
// evaluates to false.
//
// Grammar, loosest binding first:
//
//	or      = and { ("or" | "||") and }
//	and     = not { ("and" | "&&") not }
//	not     = ("not" | "!") not | primary
//	primary = "(" or ")" | "true" | "false" | flag
func Evaluate(expr string, flag func(string) bool) bool {
	x, err := Parse(expr)
	if err != nil {
		return false
	}
	return x.Eval(flag)
}

// Parse compiles a flag expression.
func Parse(expr string) (Expr, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	p := &exprParser{toks: toks}
	x, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("unexpected %q at token %d", p.toks[p.pos], p.pos)
	}
	return x, nil
}

type exprParser struct {
	toks []string
	pos  int
}

func (p *exprParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *exprParser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t == "or" || t == "||"; t = p.peek() {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orExpr{left, right}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t == "and" || t == "&&"; t = p.peek() {
		p.pos++
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = andExpr{left, right}
	}
	return left, nil
}

func (p *exprParser) parseNot() (Expr, error) {
	if t := p.peek(); t == "not" || t == "!" {
		p.pos++
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notExpr{x}, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (Expr, error) {
	t := p.peek()
	switch t {
	case "":
		return nil, fmt.Errorf("unexpected end of expression")
	case "(":
		p.pos++
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ")" {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return x, nil
	case ")", "and", "or", "&&", "||":
		return nil, fmt.Errorf("unexpected %q", t)
	case "true":
		p.pos++
		return constExpr(true), nil
	case "false":
		p.pos++
		return constExpr(false), nil
	}
	p.pos++
	return flagExpr(t), nil
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_.:-", r)
}

// tokenize splits an expression into parentheses, symbolic operators and
// words. Word operators are lowercased; flag names keep their case.
func tokenize(expr string) ([]string, error) {
	var toks []string
	rs := []rune(expr)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(' || r == ')':
			toks = append(toks, string(r))
			i++
		case r == '!':
			toks = append(toks, "!")
			i++
		case r == '&' || r == '|':
			if i+1 >= len(rs) || rs[i+1] != r {
				return nil, fmt.Errorf("single %q at offset %d", r, i)
			}
			toks = append(toks, string([]rune{r, r}))
			i += 2
		case isIdentRune(r):
			j := i
			for j < len(rs) && isIdentRune(rs[j]) {
				j++
			}
			word := string(rs[i:j])
			switch lw := strings.ToLower(word); lw {
			case "and", "or", "not", "true", "false":
				word = lw
			}
			toks = append(toks, word)
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
		}
	}
	return toks, nil
}
