// Package parser turns Roller source text into expression trees.
//
// The grammar is expression oriented: every construct, including loops and
// declarations, is an expression. Expressions in a program or in a
// do ... end block are separated by newlines or semicolons; inside
// parentheses, brackets and braces newlines are ignored.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/podhmo/roller/ast"
	"github.com/podhmo/roller/internal/ratio"
	"github.com/podhmo/roller/object"
)

// Error is a syntax error at a 1-based line and column.
type Error struct {
	Line int
	Col  int
	Msg  string
	// Err is the underlying cause, if any.
	Err error
	// Incomplete is set when the input ended early, so more lines could
	// complete it.
	Incomplete bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsIncomplete reports whether err is a syntax error caused only by the
// input ending too early.
func IsIncomplete(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Incomplete
}

// ParseExpr parses src, which must hold exactly one expression.
func ParseExpr(src string) (ast.Expr, error) {
	exprs, err := ParseProgram(src)
	if err != nil {
		return nil, err
	}
	if len(exprs) != 1 {
		return nil, &Error{Line: 1, Col: 1, Msg: fmt.Sprintf("expected one expression, found %d", len(exprs))}
	}
	return exprs[0], nil
}

// ParseProgram parses a sequence of expressions. It stops at the first
// syntax error, which is returned as *Error.
func ParseProgram(src string) (exprs []ast.Expr, err error) {
	p := newParser(src)
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			exprs, err = nil, b.err
		}
	}()
	exprs = p.parseSequence(EOF)
	p.expect(EOF)
	return exprs, nil
}

// bailout carries the first syntax error up to ParseProgram.
type bailout struct{ err *Error }

const (
	_ int = iota
	precLowest
	precOr      // or
	precXor     // xor
	precAnd     // and
	precNot     // not x
	precCompare // == != < <= > >=
	precSum     // + -
	precProduct // * /
	precPrefix  // -x
	precPower   // ^, right associative
	precPostfix // f(x) x[i]
)

var precedences = map[TokenType]int{
	OR:       precOr,
	XOR:      precXor,
	AND:      precAnd,
	EQ:       precCompare,
	NOT_EQ:   precCompare,
	LT:       precCompare,
	LT_EQ:    precCompare,
	GT:       precCompare,
	GT_EQ:    precCompare,
	PLUS:     precSum,
	MINUS:    precSum,
	ASTERISK: precProduct,
	SLASH:    precProduct,
	CARET:    precPower,
	LPAREN:   precPostfix,
	LBRACKET: precPostfix,
}

var binaryOps = map[TokenType]ast.OpCode{
	PLUS:     ast.OpAdd,
	MINUS:    ast.OpSub,
	ASTERISK: ast.OpMul,
	SLASH:    ast.OpDiv,
	CARET:    ast.OpPow,
	AND:      ast.OpAnd,
	OR:       ast.OpOr,
	XOR:      ast.OpXor,
}

var compOps = map[TokenType]ast.CompOp{
	EQ:     ast.Eq,
	NOT_EQ: ast.Ne,
	LT:     ast.Lt,
	LT_EQ:  ast.Le,
	GT:     ast.Gt,
	GT_EQ:  ast.Ge,
}

type parser struct {
	tokens []Token
	pos    int
	// newlines[len-1] reports whether a newline separates expressions here.
	newlines []bool
}

func newParser(src string) *parser {
	l := NewLexer(src)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			break
		}
	}
	return &parser{tokens: tokens, newlines: []bool{true}}
}

func (p *parser) significantNewlines() bool { return p.newlines[len(p.newlines)-1] }

func (p *parser) push(significant bool) { p.newlines = append(p.newlines, significant) }

func (p *parser) pop() { p.newlines = p.newlines[:len(p.newlines)-1] }

func (p *parser) cur() Token {
	if !p.significantNewlines() {
		p.skipNewlines()
	}
	return p.tokens[p.pos]
}

func (p *parser) skipNewlines() {
	for p.tokens[p.pos].Type == NEWLINE {
		p.pos++
	}
}

// peek returns the token after the current one.
func (p *parser) peek() Token {
	p.cur()
	i := p.pos + 1
	for i < len(p.tokens)-1 && !p.significantNewlines() && p.tokens[i].Type == NEWLINE {
		i++
	}
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

func (p *parser) next() Token {
	tok := p.cur()
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *parser) at(types ...TokenType) bool {
	t := p.cur().Type
	for _, tt := range types {
		if t == tt {
			return true
		}
	}
	return false
}

func (p *parser) accept(tt TokenType) bool {
	if p.at(tt) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(tt TokenType) Token {
	tok := p.cur()
	if tok.Type != tt {
		p.errorf(tok, "expected %s, found %s", tt, describe(tok))
	}
	return p.next()
}

// continuesOn lets a construct continue on the next line when that line
// starts with one of types, as in an `else` on its own line.
func (p *parser) continuesOn(types ...TokenType) {
	i := p.pos
	for p.tokens[i].Type == NEWLINE {
		i++
	}
	for _, tt := range types {
		if p.tokens[i].Type == tt {
			p.pos = i
			return
		}
	}
}

func (p *parser) errorf(tok Token, format string, args ...any) {
	panic(bailout{&Error{Line: tok.Line, Col: tok.Col, Msg: fmt.Sprintf(format, args...), Incomplete: tok.Type == EOF}})
}

func (p *parser) fail(tok Token, err error) {
	panic(bailout{&Error{Line: tok.Line, Col: tok.Col, Msg: err.Error(), Err: err}})
}

func describe(tok Token) string {
	switch tok.Type {
	case ILLEGAL:
		if tok.Literal == "unterminated string" {
			return tok.Literal
		}
		return strconv.Quote(tok.Literal)
	case IDENT, INT, DEC, DICE:
		return tok.Type.String() + " " + tok.Literal
	case STRING:
		return "string"
	}
	return strconv.Quote(tok.Type.String())
}

// parseSequence parses separated expressions up to one of the terminators,
// which is left unconsumed.
func (p *parser) parseSequence(terminators ...TokenType) []ast.Expr {
	var exprs []ast.Expr
	for {
		for p.at(NEWLINE, SEMICOLON) {
			p.next()
		}
		if p.at(terminators...) {
			return exprs
		}
		if p.at(EOF) {
			p.expect(terminators[0])
		}
		exprs = append(exprs, p.parseExpr())
		if p.at(EOF) && !p.at(terminators...) {
			p.expect(terminators[0])
		}
		if !p.at(NEWLINE, SEMICOLON) && !p.at(terminators...) {
			p.errorf(p.cur(), "expected newline or ';' after expression, found %s", describe(p.cur()))
		}
	}
}

// parseExpr parses a full expression, including declarations and
// assignments.
func (p *parser) parseExpr() ast.Expr {
	if p.accept(LET) {
		name := p.expect(IDENT).Literal
		p.expect(ASSIGN)
		return &ast.Decl{Name: name, Value: p.parseExpr()}
	}
	start := p.cur()
	left := p.parseExpression(precLowest)
	if p.accept(ASSIGN) {
		return p.assignment(start, left, p.parseExpr())
	}
	return left
}

func (p *parser) assignment(start Token, target, value ast.Expr) ast.Expr {
	if id, ok := target.(*ast.Id); ok {
		return &ast.Assign{Name: id.Name, Value: value}
	}
	var index []ast.Expr
	cur := target
	for {
		op, ok := cur.(*ast.Op)
		if !ok || op.Call.Code != ast.OpIndex {
			break
		}
		index = append([]ast.Expr{op.Call.Args[1]}, index...)
		cur = op.Call.Args[0]
	}
	if id, ok := cur.(*ast.Id); ok && len(index) > 0 {
		return &ast.AssignIndex{Name: id.Name, Index: index, Value: value}
	}
	p.errorf(start, "cannot assign to %s", target)
	return nil
}

func (p *parser) parseExpression(prec int) ast.Expr {
	return p.parseInfix(p.parsePrefix(), prec)
}

func (p *parser) parseInfix(left ast.Expr, prec int) ast.Expr {
	compared := false
	for {
		tok := p.cur()
		tp, ok := precedences[tok.Type]
		if !ok || tp <= prec {
			return left
		}
		p.next()
		switch {
		case tok.Type == LPAREN:
			left = p.parseCall(tok, left)
		case tok.Type == LBRACKET:
			p.push(false)
			idx := p.parseExpr()
			p.expect(RBRACKET)
			p.pop()
			left = ast.NewCall(ast.OpIndex, left, idx)
		case tp == precCompare:
			if compared {
				p.errorf(tok, "comparison operators cannot be chained")
			}
			compared = true
			left = &ast.Comp{Op: compOps[tok.Type], LHS: left, RHS: p.parseExpression(tp)}
		case tp == precPower:
			left = ast.NewCall(ast.OpPow, left, p.parseExpression(tp-1))
		default:
			left = ast.NewCall(binaryOps[tok.Type], left, p.parseExpression(tp))
		}
	}
}

func (p *parser) parsePrefix() ast.Expr {
	p.skipNewlines()
	tok := p.next()
	switch tok.Type {
	case INT:
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.errorf(tok, "integer literal %s is out of range", tok.Literal)
		}
		return &ast.Val{Value: object.NewInt(n)}
	case DEC:
		return &ast.Val{Value: p.parseDecimal(tok)}
	case DICE:
		return p.parseDice(tok)
	case STRING:
		return &ast.Val{Value: object.NewString(tok.Literal)}
	case TRUE:
		return &ast.Val{Value: object.TRUE}
	case FALSE:
		return &ast.Val{Value: object.FALSE}
	case NONE:
		return &ast.Val{Value: object.NONE}
	case IDENT:
		return &ast.Id{Name: tok.Literal}
	case MINUS:
		return ast.NewCall(ast.OpNeg, p.parseExpression(precPrefix))
	case NOT:
		return ast.NewCall(ast.OpNot, p.parseExpression(precNot))
	case LPAREN:
		p.push(false)
		e := p.parseExpr()
		p.expect(RPAREN)
		p.pop()
		return e
	case LBRACKET:
		return &ast.List{Elems: p.parseList(RBRACKET)}
	case LBRACE:
		return p.parseBraces()
	case DO:
		return p.parseBlockBody()
	case IF:
		return p.parseIf()
	case WHILE:
		cond := p.parseExpression(precLowest)
		return &ast.Ctrl{Control: &ast.While{Cond: cond, Body: p.parseBlock()}}
	case FOR:
		name := p.expect(IDENT).Literal
		p.expect(IN)
		iterable := p.parseExpression(precLowest)
		return &ast.Ctrl{Control: &ast.For{Iterator: name, Iterable: iterable, Body: p.parseBlock()}}
	case LOOP:
		return &ast.Ctrl{Control: &ast.Loop{Body: p.parseBlock()}}
	case TRY:
		body := p.parseExpr()
		p.continuesOn(ELSE)
		p.expect(ELSE)
		return &ast.Ctrl{Control: &ast.Try{Expr: body, Else: p.parseExpr()}}
	case BREAK:
		return &ast.Ctrl{Control: &ast.Break{}}
	case CONTINUE:
		return &ast.Ctrl{Control: &ast.Continue{}}
	case FN:
		return p.parseFunction(tok)
	}
	p.errorf(tok, "unexpected %s", describe(tok))
	return nil
}

// parseDecimal reads a decimal literal as an exact fraction.
func (p *parser) parseDecimal(tok Token) *object.Num {
	whole, frac, _ := strings.Cut(tok.Literal, ".")
	n, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil || len(frac) > 18 {
		p.errorf(tok, "decimal literal %s is out of range", tok.Literal)
	}
	den := int64(1)
	for range frac {
		den *= 10
	}
	r, err := ratio.New(n, den)
	if err != nil {
		p.fail(tok, err)
	}
	return &object.Num{Value: r}
}

// parseDice reads NdM, or dM for a single die.
func (p *parser) parseDice(tok Token) ast.Expr {
	count, sides, _ := strings.Cut(tok.Literal, "d")
	if count == "" {
		count = "1"
	}
	c, err1 := strconv.ParseInt(count, 10, 64)
	s, err2 := strconv.ParseInt(sides, 10, 64)
	if err1 != nil || err2 != nil {
		p.errorf(tok, "dice literal %s is out of range", tok.Literal)
	}
	return ast.NewCall(ast.OpDice, &ast.Val{Value: object.NewInt(c)}, &ast.Val{Value: object.NewInt(s)})
}

// parseList parses comma separated expressions up to close. The opening
// token is already consumed. A trailing comma is allowed.
func (p *parser) parseList(close TokenType) []ast.Expr {
	p.push(false)
	defer p.pop()
	var elems []ast.Expr
	for !p.at(close) {
		elems = append(elems, p.parseExpr())
		if !p.accept(COMMA) {
			break
		}
	}
	p.expect(close)
	return elems
}

func (p *parser) parseCall(lparen Token, callee ast.Expr) ast.Expr {
	id, ok := callee.(*ast.Id)
	if !ok {
		p.errorf(lparen, "only named functions can be called, not %s", callee)
	}
	p.push(false)
	defer p.pop()
	var args []ast.Expr
	var kwargs []ast.KwArg
	for !p.at(RPAREN) {
		if p.at(IDENT) && p.peek().Type == COLON {
			name := p.next().Literal
			p.expect(COLON)
			kwargs = append(kwargs, ast.KwArg{Name: name, Value: p.parseExpr()})
		} else {
			tok := p.cur()
			arg := p.parseExpr()
			if len(kwargs) > 0 {
				p.errorf(tok, "positional argument after keyword argument")
			}
			args = append(args, arg)
		}
		if !p.accept(COMMA) {
			break
		}
	}
	p.expect(RPAREN)
	return ast.NewNamedCall(id.Name, args, kwargs)
}

// parseBraces parses the literals written with braces: {} is an empty map,
// {,} an empty set, {k: v} a map, {a, b} a set and {(v, w), ...} a
// distribution.
func (p *parser) parseBraces() ast.Expr {
	p.push(false)
	defer p.pop()

	if p.accept(RBRACE) {
		return &ast.Map{}
	}
	if p.accept(COMMA) {
		p.expect(RBRACE)
		return &ast.Set{}
	}

	var first ast.Expr
	if lparen := p.cur(); lparen.Type == LPAREN {
		p.next()
		value := p.parseExpr()
		if p.accept(COMMA) {
			return p.parseDistribution(value)
		}
		p.expect(RPAREN)
		first = p.parseInfix(value, precLowest)
		if p.accept(ASSIGN) {
			p.errorf(lparen, "assignment is not allowed here")
		}
	} else {
		first = p.parseExpr()
	}

	if p.at(COLON) {
		return p.parseMap(first)
	}
	elems := []ast.Expr{first}
	for p.accept(COMMA) {
		if p.at(RBRACE) {
			break
		}
		elems = append(elems, p.parseExpr())
	}
	p.expect(RBRACE)
	return &ast.Set{Elems: elems}
}

func (p *parser) parseMap(firstKey ast.Expr) ast.Expr {
	m := &ast.Map{}
	seen := map[string]bool{}
	key := firstKey
	for {
		tok := p.expect(COLON)
		if s := key.String(); seen[s] {
			p.errorf(tok, "duplicate key %s in map literal", s)
		} else {
			seen[s] = true
		}
		m.Entries = append(m.Entries, ast.MapEntry{Key: key, Value: p.parseExpr()})
		if !p.accept(COMMA) || p.at(RBRACE) {
			break
		}
		key = p.parseExpr()
	}
	p.expect(RBRACE)
	return m
}

// parseDistribution continues after `{(value,`.
func (p *parser) parseDistribution(value ast.Expr) ast.Expr {
	d := &ast.Distribution{}
	for {
		weight := p.parseExpr()
		p.expect(RPAREN)
		d.Pairs = append(d.Pairs, ast.DistPair{Value: value, Weight: weight})
		if !p.accept(COMMA) || p.at(RBRACE) {
			break
		}
		p.expect(LPAREN)
		value = p.parseExpr()
		p.expect(COMMA)
	}
	p.expect(RBRACE)
	return d
}

func (p *parser) parseIf() ast.Expr {
	n := &ast.If{Cond: p.parseExpression(precLowest)}
	p.continuesOn(THEN)
	p.expect(THEN)
	n.Then = p.parseExpr()
	for {
		p.continuesOn(ELIF, ELSE)
		if !p.accept(ELIF) {
			break
		}
		cond := p.parseExpression(precLowest)
		p.continuesOn(THEN)
		p.expect(THEN)
		n.Elifs = append(n.Elifs, ast.ElifBranch{Cond: cond, Then: p.parseExpr()})
	}
	if p.accept(ELSE) {
		n.Else = p.parseExpr()
	}
	return &ast.Ctrl{Control: n}
}

// parseBlock parses the `do ... end` body of a loop.
func (p *parser) parseBlock() ast.Expr {
	p.continuesOn(DO)
	p.expect(DO)
	return p.parseBlockBody()
}

// parseBlockBody continues after `do`.
func (p *parser) parseBlockBody() ast.Expr {
	p.push(true)
	exprs := p.parseSequence(END)
	p.expect(END)
	p.pop()
	return &ast.Block{Exprs: exprs}
}

func (p *parser) parseFunction(fnTok Token) ast.Expr {
	p.expect(LPAREN)
	var params []string
	p.push(false)
	for !p.at(RPAREN) {
		params = append(params, p.expect(IDENT).Literal)
		if !p.accept(COMMA) {
			break
		}
	}
	p.expect(RPAREN)
	p.pop()
	body := p.parseExpr()
	fn, err := object.NewFunction(params, body)
	if err != nil {
		p.fail(fnTok, err)
	}
	return &ast.Val{Value: fn}
}
