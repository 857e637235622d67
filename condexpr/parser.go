package condexpr

import (
	"math"
	"strconv"

	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/internal/util"
)

// Compiled is a parsed predicate. Names lists the scalar names the
// expression references, in first-use order; Eval expects one value per
// name in that order.
type Compiled struct {
	Source string
	Names  []string

	root node
}

// Compile parses src into an evaluable predicate.
//
// Grammar, loosest to tightest binding:
//
//	expr   = and ( "||" and )*
//	and    = cmp ( "&&" cmp )*
//	cmp    = sum ( ("<" | "<=" | ">" | ">=" | "==" | "!=") sum )*
//	sum    = term ( ("+" | "-") term )*
//	term   = unary ( ("*" | "/") unary )*
//	unary  = "-" unary | primary
//	primary = number | name | func "(" expr ("," expr)* ")" | "(" expr ")"
//
// Comparisons and logical operators evaluate to 1 or 0; the predicate is
// true when the whole expression is nonzero. Division follows IEEE 754
// (x/0 is ±Inf, comparisons against NaN are false).
func Compile(src string) (*Compiled, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens, nameIndex: make(map[string]int)}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, errors.Newf("unexpected %q at position %d", tok.text, tok.pos)
	}

	return &Compiled{Source: src, Names: p.names, root: root}, nil
}

// Arity returns the number of distinct scalar names the expression uses.
func (c *Compiled) Arity() int {
	return len(c.Names)
}

// Eval applies the predicate to values, which must align with Names.
func (c *Compiled) Eval(values []float64) (bool, error) {
	if len(values) != len(c.Names) {
		return false, errors.Newf("expression takes %d values, got %d", len(c.Names), len(values))
	}
	return c.root.eval(values) != 0, nil
}

type node interface {
	eval(values []float64) float64
}

type numberNode float64

func (n numberNode) eval([]float64) float64 { return float64(n) }

// identNode holds the index into Compiled.Names / the Eval values slice.
type identNode int

func (n identNode) eval(values []float64) float64 { return values[n] }

type unaryNode struct {
	operand node
}

func (n unaryNode) eval(values []float64) float64 { return -n.operand.eval(values) }

type binaryNode struct {
	op          tokenKind
	left, right node
}

func (n binaryNode) eval(values []float64) float64 {
	switch n.op {
	case tokenPlus:
		return n.left.eval(values) + n.right.eval(values)
	case tokenMinus:
		return n.left.eval(values) - n.right.eval(values)
	case tokenStar:
		return n.left.eval(values) * n.right.eval(values)
	case tokenSlash:
		return n.left.eval(values) / n.right.eval(values)
	case tokenLT:
		return boolToFloat(n.left.eval(values) < n.right.eval(values))
	case tokenLE:
		return boolToFloat(n.left.eval(values) <= n.right.eval(values))
	case tokenGT:
		return boolToFloat(n.left.eval(values) > n.right.eval(values))
	case tokenGE:
		return boolToFloat(n.left.eval(values) >= n.right.eval(values))
	case tokenEQ:
		return boolToFloat(n.left.eval(values) == n.right.eval(values))
	case tokenNE:
		return boolToFloat(n.left.eval(values) != n.right.eval(values))
	case tokenAnd:
		return boolToFloat(n.left.eval(values) != 0 && n.right.eval(values) != 0)
	case tokenOr:
		return boolToFloat(n.left.eval(values) != 0 || n.right.eval(values) != 0)
	}
	return 0
}

type callNode struct {
	fn   string
	args []node
}

func (n callNode) eval(values []float64) float64 {
	switch n.fn {
	case "abs":
		return util.AbsFloat64(n.args[0].eval(values))
	case "min":
		result := n.args[0].eval(values)
		for _, arg := range n.args[1:] {
			result = math.Min(result, arg.eval(values))
		}
		return result
	case "max":
		result := n.args[0].eval(values)
		for _, arg := range n.args[1:] {
			result = math.Max(result, arg.eval(values))
		}
		return result
	}
	return 0
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// builtinArity maps function names to their minimum argument count.
// abs takes exactly one argument; min and max take one or more.
var builtinArity = map[string]int{
	"abs": 1,
	"min": 1,
	"max": 1,
}

type parser struct {
	tokens    []token
	pos       int
	names     []string
	nameIndex map[string]int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryNode{tokenOr, left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenAnd {
		p.next()
		right, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		left = binaryNode{tokenAnd, left, right}
	}
	return left, nil
}

func (p *parser) parseCmp() (node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().kind
		switch op {
		case tokenLT, tokenLE, tokenGT, tokenGE, tokenEQ, tokenNE:
			p.next()
			right, err := p.parseSum()
			if err != nil {
				return nil, err
			}
			left = binaryNode{op, left, right}
		default:
			return left, nil
		}
	}
}

func (p *parser) parseSum() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().kind
		if op != tokenPlus && op != tokenMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op, left, right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().kind
		if op != tokenStar && op != tokenSlash {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op, left, right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokenMinus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokenNumber:
		v, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, errors.Newf("malformed number %q at position %d", tok.text, tok.pos)
		}
		return numberNode(v), nil

	case tokenIdent:
		if _, isBuiltin := builtinArity[tok.text]; isBuiltin {
			return p.parseCall(tok)
		}
		if p.peek().kind == tokenLParen {
			return nil, errors.Newf("unknown function %q at position %d", tok.text, tok.pos)
		}
		idx, ok := p.nameIndex[tok.text]
		if !ok {
			idx = len(p.names)
			p.names = append(p.names, tok.text)
			p.nameIndex[tok.text] = idx
		}
		return identNode(idx), nil

	case tokenLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokenRParen {
			return nil, errors.Newf("expected ')' at position %d", closing.pos)
		}
		return inner, nil

	case tokenEOF:
		return nil, errors.New("unexpected end of expression")

	default:
		return nil, errors.Newf("unexpected %q at position %d", tok.text, tok.pos)
	}
}

// parseCall parses a builtin invocation. The function name is reserved:
// abs/min/max cannot double as scalar names.
func (p *parser) parseCall(fnTok token) (node, error) {
	if open := p.next(); open.kind != tokenLParen {
		return nil, errors.Newf("expected '(' after %q at position %d", fnTok.text, open.pos)
	}

	var args []node
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		sep := p.next()
		if sep.kind == tokenRParen {
			break
		}
		if sep.kind != tokenComma {
			return nil, errors.Newf("expected ',' or ')' at position %d", sep.pos)
		}
	}

	if fnTok.text == "abs" && len(args) != 1 {
		return nil, errors.Newf("abs takes exactly 1 argument, got %d", len(args))
	}
	if len(args) < builtinArity[fnTok.text] {
		return nil, errors.Newf("%s takes at least %d argument(s), got %d", fnTok.text, builtinArity[fnTok.text], len(args))
	}

	return callNode{fnTok.text, args}, nil
}
