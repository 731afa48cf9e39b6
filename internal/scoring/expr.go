package scoring

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// The condition grammar shared by rule files and per-user buy/sell
// conditions: comparisons over variables and numeric literals, chained
// ranges (`60 <= rsi <= 75`), and AND/OR connectors evaluated left to right
// with equal precedence. Variables missing from the environment read as 0.

// Env resolves variable names for expression evaluation.
type Env interface {
	Lookup(name string) (float64, bool)
}

// MapEnv is a case-insensitive map-backed Env.
type MapEnv map[string]float64

func (m MapEnv) Lookup(name string) (float64, bool) {
	v, ok := m[strings.ToLower(name)]
	return v, ok
}

// ParseError describes where a condition string failed to parse.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("condition %q: %s at position %d", e.Input, e.Msg, e.Pos)
}

// Expr is a parsed condition.
type Expr struct {
	src    string
	chains []cmpChain
	conns  []string // "AND"/"OR" between chains, len = len(chains)-1
}

// String returns the original condition text.
func (e *Expr) String() string { return e.src }

// Eval evaluates the condition against an environment.
func (e *Expr) Eval(env Env) bool {
	result := e.chains[0].eval(env)
	for i, conn := range e.conns {
		next := e.chains[i+1].eval(env)
		if conn == "AND" {
			result = result && next
		} else {
			result = result || next
		}
	}
	return result
}

// cmpChain is `operand op operand (op operand)*`; every adjacent pair must
// hold, giving range conditions their usual meaning.
type cmpChain struct {
	operands []operand
	ops      []string
}

func (c cmpChain) eval(env Env) bool {
	left := c.operands[0].value(env)
	for i, op := range c.ops {
		right := c.operands[i+1].value(env)
		if !compare(left, op, right) {
			return false
		}
		left = right
	}
	return true
}

type operand struct {
	ident string
	num   float64
	isNum bool
}

func (o operand) value(env Env) float64 {
	if o.isNum {
		return o.num
	}
	v, _ := env.Lookup(o.ident) // missing variables read 0
	return v
}

func compare(a float64, op string, b float64) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	case "==", "=":
		return a == b
	case "!=":
		return a != b
	}
	return false
}

// ParseExpr parses a condition string. Empty input is an error; callers
// handle the empty-DSL fallback themselves.
func ParseExpr(input string) (*Expr, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, &ParseError{Input: input, Pos: 0, Msg: "empty condition"}
	}

	p := &parser{input: input, toks: toks}
	expr := &Expr{src: input}

	chain, err := p.parseChain()
	if err != nil {
		return nil, err
	}
	expr.chains = append(expr.chains, chain)

	for !p.done() {
		tok := p.next()
		conn := strings.ToUpper(tok.text)
		if tok.kind != tokIdent || (conn != "AND" && conn != "OR") {
			return nil, &ParseError{Input: input, Pos: tok.pos, Msg: fmt.Sprintf("expected AND/OR, got %q", tok.text)}
		}
		chain, err := p.parseChain()
		if err != nil {
			return nil, err
		}
		expr.conns = append(expr.conns, conn)
		expr.chains = append(expr.chains, chain)
	}
	return expr, nil
}

type tokKind int

const (
	tokIdent tokKind = iota
	tokNumber
	tokOp
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func tokenize(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		ch := rune(input[i])
		switch {
		case unicode.IsSpace(ch):
			i++
		case ch == '<' || ch == '>' || ch == '=' || ch == '!':
			start := i
			i++
			if i < len(input) && input[i] == '=' {
				i++
			}
			op := input[start:i]
			if op == "!" {
				return nil, &ParseError{Input: input, Pos: start, Msg: "lone '!'"}
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: start})
		case unicode.IsDigit(ch) || ch == '-' || ch == '.':
			start := i
			if ch == '-' {
				i++
				if i >= len(input) || !unicode.IsDigit(rune(input[i])) {
					return nil, &ParseError{Input: input, Pos: start, Msg: "lone '-'"}
				}
			}
			for i < len(input) && (unicode.IsDigit(rune(input[i])) || input[i] == '.') {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: input[start:i], pos: start})
		case unicode.IsLetter(ch) || ch == '_':
			start := i
			for i < len(input) {
				c := rune(input[i])
				if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '.' {
					i++
				} else {
					break
				}
			}
			toks = append(toks, token{kind: tokIdent, text: input[start:i], pos: start})
		default:
			return nil, &ParseError{Input: input, Pos: i, Msg: fmt.Sprintf("unexpected character %q", ch)}
		}
	}
	return toks, nil
}

type parser struct {
	input string
	toks  []token
	i     int
}

func (p *parser) done() bool { return p.i >= len(p.toks) }

func (p *parser) next() token {
	t := p.toks[p.i]
	p.i++
	return t
}

func (p *parser) peek() (token, bool) {
	if p.done() {
		return token{}, false
	}
	return p.toks[p.i], true
}

// parseChain reads `operand (op operand)+`.
func (p *parser) parseChain() (cmpChain, error) {
	var chain cmpChain

	first, err := p.parseOperand()
	if err != nil {
		return chain, err
	}
	chain.operands = append(chain.operands, first)

	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokOp {
			break
		}
		p.next()
		operand, err := p.parseOperand()
		if err != nil {
			return chain, err
		}
		chain.ops = append(chain.ops, tok.text)
		chain.operands = append(chain.operands, operand)
	}

	if len(chain.ops) == 0 {
		pos := 0
		if len(p.toks) > 0 && p.i-1 < len(p.toks) {
			pos = p.toks[p.i-1].pos
		}
		return chain, &ParseError{Input: p.input, Pos: pos, Msg: "expected comparison"}
	}
	return chain, nil
}

func (p *parser) parseOperand() (operand, error) {
	if p.done() {
		return operand{}, &ParseError{Input: p.input, Pos: len(p.input), Msg: "unexpected end of condition"}
	}
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return operand{}, &ParseError{Input: p.input, Pos: tok.pos, Msg: fmt.Sprintf("bad number %q", tok.text)}
		}
		return operand{num: v, isNum: true}, nil
	case tokIdent:
		up := strings.ToUpper(tok.text)
		if up == "AND" || up == "OR" {
			return operand{}, &ParseError{Input: p.input, Pos: tok.pos, Msg: fmt.Sprintf("%s without left-hand comparison", up)}
		}
		return operand{ident: tok.text}, nil
	default:
		return operand{}, &ParseError{Input: p.input, Pos: tok.pos, Msg: fmt.Sprintf("unexpected %q", tok.text)}
	}
}
