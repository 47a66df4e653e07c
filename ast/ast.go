// Package ast declares the types used to represent Roller expression trees.
//
// Trees are built once (by the parser or by hand) and never mutated
// afterwards. The evaluator only reads them.
package ast

import (
	"regexp"
	"strings"
)

// Literal is a constant embedded in the tree by a Val node.
// Runtime values of package object satisfy it.
type Literal interface {
	Inspect() string
}

// quoter is implemented by literals whose Inspect form is not valid source,
// such as strings.
type quoter interface {
	Quote() string
}

// Node is implemented by every tree node. String renders the node in
// Roller surface syntax; the rendering is canonical for a given tree.
type Node interface {
	String() string
}

// Expr is a Roller expression.
type Expr interface {
	Node
	exprNode()
}

// Control is a control-flow construct wrapped by a Ctrl expression.
type Control interface {
	Node
	controlNode()
}

// ----------------------------------------------------------------------------
// Expressions

type (
	// Val is a literal value.
	Val struct {
		Value Literal
	}

	// Id is a reference to a variable.
	Id struct {
		Name string
	}

	// Decl introduces Name in the current scope.
	Decl struct {
		Name  string
		Value Expr
	}

	// Assign rebinds an existing name.
	Assign struct {
		Name  string
		Value Expr
	}

	// AssignIndex writes into the container bound to Name, e.g. xs[0]["k"] = v.
	AssignIndex struct {
		Name  string
		Index []Expr
		Value Expr
	}

	// Comp is a comparison.
	Comp struct {
		Op  CompOp
		LHS Expr
		RHS Expr
	}

	// Op applies an operator or a named function.
	Op struct {
		Call *FunCall
	}

	// List constructs a list.
	List struct {
		Elems []Expr
	}

	// Set constructs a set.
	Set struct {
		Elems []Expr
	}

	// Map constructs a map. Keys are unique.
	Map struct {
		Entries []MapEntry
	}

	// Ctrl wraps a control-flow node.
	Ctrl struct {
		Control Control
	}

	// Distribution constructs a distribution from (value, weight) pairs.
	Distribution struct {
		Pairs []DistPair
	}

	// Block evaluates Exprs in order in a child scope and yields the last value.
	Block struct {
		Exprs []Expr
	}
)

// MapEntry is one key/value pair of a Map literal.
type MapEntry struct {
	Key   Expr
	Value Expr
}

// DistPair is one (value, weight) pair of a Distribution literal.
type DistPair struct {
	Value  Expr
	Weight Expr
}

func (*Val) exprNode()          {}
func (*Id) exprNode()           {}
func (*Decl) exprNode()         {}
func (*Assign) exprNode()       {}
func (*AssignIndex) exprNode()  {}
func (*Comp) exprNode()         {}
func (*Op) exprNode()           {}
func (*List) exprNode()         {}
func (*Set) exprNode()          {}
func (*Map) exprNode()          {}
func (*Ctrl) exprNode()         {}
func (*Distribution) exprNode() {}
func (*Block) exprNode()        {}

// ----------------------------------------------------------------------------
// Control flow

type (
	// Break leaves the nearest enclosing loop.
	Break struct{}

	// Continue restarts the nearest enclosing loop.
	Continue struct{}

	// If evaluates Then when Cond holds, else the first matching Elifs branch,
	// else Else.
	If struct {
		Cond  Expr
		Then  Expr
		Elifs []ElifBranch
		Else  Expr
	}

	// Loop repeats Body until it breaks.
	Loop struct {
		Body Expr
	}

	// While repeats Body while Cond holds.
	While struct {
		Cond Expr
		Body Expr
	}

	// For binds Iterator to each element of Iterable in turn.
	For struct {
		Iterator string
		Iterable Expr
		Body     Expr
	}

	// Try evaluates Expr, falling back to Else on any runtime error.
	Try struct {
		Expr Expr
		Else Expr
	}
)

// ElifBranch is one `elif cond then expr` arm of an If.
type ElifBranch struct {
	Cond Expr
	Then Expr
}

func (*Break) controlNode()    {}
func (*Continue) controlNode() {}
func (*If) controlNode()       {}
func (*Loop) controlNode()     {}
func (*While) controlNode()    {}
func (*For) controlNode()      {}
func (*Try) controlNode()      {}

// ----------------------------------------------------------------------------
// Calls and operators

// FunCall is a function application with ordered and/or named arguments.
// Operators are built-in functions selected by Code; when Code is OpCall,
// Name selects a user-defined or built-in function.
type FunCall struct {
	Code   OpCode
	Name   string
	Args   []Expr
	KwArgs []KwArg
}

// KwArg is a named argument.
type KwArg struct {
	Name  string
	Value Expr
}

// OpCode identifies a built-in operator.
type OpCode int

const (
	OpCall OpCode = iota // named function application
	OpNeg
	OpNot
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpPow
	OpAnd
	OpOr
	OpXor
	OpIndex
	OpDice
)

var opSymbols = map[OpCode]string{
	OpCall:  "call",
	OpNeg:   "-",
	OpNot:   "not",
	OpAdd:   "+",
	OpSub:   "-",
	OpMul:   "*",
	OpDiv:   "/",
	OpPow:   "^",
	OpAnd:   "and",
	OpOr:    "or",
	OpXor:   "xor",
	OpIndex: "[]",
	OpDice:  "d",
}

func (c OpCode) String() string {
	if s, ok := opSymbols[c]; ok {
		return s
	}
	return "op?"
}

// Arity returns the number of operands of a built-in operator, or -1 for OpCall.
func (c OpCode) Arity() int {
	switch c {
	case OpCall:
		return -1
	case OpNeg, OpNot:
		return 1
	}
	return 2
}

// CompOp is a comparison operator.
type CompOp int

const (
	Eq CompOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func (op CompOp) String() string {
	switch op {
	case Eq:
		return "=="
	case Ne:
		return "!="
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	}
	return "?"
}

// ----------------------------------------------------------------------------
// Constructors

// NewCall returns an Op node applying a built-in operator.
func NewCall(code OpCode, args ...Expr) *Op {
	return &Op{Call: &FunCall{Code: code, Args: args}}
}

// NewNamedCall returns an Op node calling the function called name.
func NewNamedCall(name string, args []Expr, kwArgs []KwArg) *Op {
	return &Op{Call: &FunCall{Code: OpCall, Name: name, Args: args, KwArgs: kwArgs}}
}

// ----------------------------------------------------------------------------
// Rendering

var positiveInt = regexp.MustCompile(`^[1-9][0-9]*$`)

func (v *Val) String() string {
	if q, ok := v.Value.(quoter); ok {
		return q.Quote()
	}
	return v.Value.Inspect()
}

func (id *Id) String() string { return id.Name }

func (d *Decl) String() string { return "let " + d.Name + " = " + d.Value.String() }

func (a *Assign) String() string { return a.Name + " = " + a.Value.String() }

func (a *AssignIndex) String() string {
	var b strings.Builder
	b.WriteString(a.Name)
	for _, idx := range a.Index {
		b.WriteString("[" + idx.String() + "]")
	}
	b.WriteString(" = " + a.Value.String())
	return b.String()
}

func (c *Comp) String() string {
	return "(" + c.LHS.String() + " " + c.Op.String() + " " + c.RHS.String() + ")"
}

func (o *Op) String() string { return o.Call.String() }

func (fc *FunCall) String() string {
	switch {
	case fc.Code == OpCall:
		args := joinExprs(fc.Args)
		for _, kw := range fc.KwArgs {
			args = append(args, kw.Name+": "+kw.Value.String())
		}
		return fc.Name + "(" + strings.Join(args, ", ") + ")"
	case len(fc.Args) != fc.Code.Arity():
		return fc.Code.String() + "(" + strings.Join(joinExprs(fc.Args), ", ") + ")"
	case fc.Code == OpNeg:
		return "(-" + fc.Args[0].String() + ")"
	case fc.Code == OpNot:
		return "(not " + fc.Args[0].String() + ")"
	case fc.Code == OpIndex:
		return fc.Args[0].String() + "[" + fc.Args[1].String() + "]"
	case fc.Code == OpDice:
		n, m := fc.Args[0].String(), fc.Args[1].String()
		if positiveInt.MatchString(n) && positiveInt.MatchString(m) {
			return n + "d" + m
		}
		return "dice(" + n + ", " + m + ")"
	}
	return "(" + fc.Args[0].String() + " " + fc.Code.String() + " " + fc.Args[1].String() + ")"
}

func (l *List) String() string { return "[" + strings.Join(joinExprs(l.Elems), ", ") + "]" }

func (s *Set) String() string {
	if len(s.Elems) == 0 {
		return "{,}"
	}
	return "{" + strings.Join(joinExprs(s.Elems), ", ") + "}"
}

func (m *Map) String() string {
	parts := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		parts[i] = e.Key.String() + ": " + e.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (c *Ctrl) String() string { return c.Control.String() }

func (d *Distribution) String() string {
	parts := make([]string, len(d.Pairs))
	for i, p := range d.Pairs {
		parts[i] = "(" + p.Value.String() + ", " + p.Weight.String() + ")"
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (b *Block) String() string {
	if len(b.Exprs) == 0 {
		return "do end"
	}
	return "do " + strings.Join(joinExprs(b.Exprs), "; ") + " end"
}

func (*Break) String() string    { return "break" }
func (*Continue) String() string { return "continue" }

func (i *If) String() string {
	var b strings.Builder
	b.WriteString("if " + i.Cond.String() + " then " + i.Then.String())
	for _, elif := range i.Elifs {
		b.WriteString(" elif " + elif.Cond.String() + " then " + elif.Then.String())
	}
	if i.Else != nil {
		if s := i.Else.String(); s != "" {
			b.WriteString(" else " + s)
		}
	}
	return b.String()
}

func (l *Loop) String() string  { return "loop " + blockString(l.Body) }
func (w *While) String() string { return "while " + w.Cond.String() + " " + blockString(w.Body) }

func (f *For) String() string {
	return "for " + f.Iterator + " in " + f.Iterable.String() + " " + blockString(f.Body)
}

func (t *Try) String() string { return "try " + t.Expr.String() + " else " + t.Else.String() }

func blockString(e Expr) string {
	if b, ok := e.(*Block); ok {
		return b.String()
	}
	return "do " + e.String() + " end"
}

func joinExprs(exprs []Expr) []string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return parts
}
