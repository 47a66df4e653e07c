package evaluator

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/podhmo/roller/ast"
	"github.com/podhmo/roller/object"
)

func num(i int64) ast.Expr { return &ast.Val{Value: object.NewInt(i)} }

func str(s string) ast.Expr { return &ast.Val{Value: &object.String{Value: s}} }

func boolean(b bool) ast.Expr { return &ast.Val{Value: object.NativeBool(b)} }

func id(name string) ast.Expr { return &ast.Id{Name: name} }

func ctrl(c ast.Control) ast.Expr { return &ast.Ctrl{Control: c} }

func block(exprs ...ast.Expr) ast.Expr { return &ast.Block{Exprs: exprs} }

func let(name string, v ast.Expr) ast.Expr { return &ast.Decl{Name: name, Value: v} }

func assign(name string, v ast.Expr) ast.Expr { return &ast.Assign{Name: name, Value: v} }

func op(code ast.OpCode, args ...ast.Expr) ast.Expr { return ast.NewCall(code, args...) }

func comp(o ast.CompOp, lhs, rhs ast.Expr) ast.Expr { return &ast.Comp{Op: o, LHS: lhs, RHS: rhs} }

func call(name string, args ...ast.Expr) ast.Expr { return ast.NewNamedCall(name, args, nil) }

func fn(t *testing.T, params []string, body ast.Expr) ast.Expr {
	t.Helper()
	f, err := object.NewFunction(params, body)
	if err != nil {
		t.Fatal(err)
	}
	return &ast.Val{Value: f}
}

func die(sides int64) ast.Expr {
	var pairs []ast.DistPair
	for face := int64(1); face <= sides; face++ {
		pairs = append(pairs, ast.DistPair{Value: num(face), Weight: num(1)})
	}
	return &ast.Distribution{Pairs: pairs}
}

// run evaluates exprs in order in one global scope and returns the last result.
func run(t *testing.T, exprs ...ast.Expr) (object.Object, error) {
	t.Helper()
	e := New(Config{Rand: rand.New(rand.NewSource(1))})
	env := object.NewEnvironment()
	var result object.Object
	for _, expr := range exprs {
		var err error
		result, err = e.Evaluate(context.Background(), expr, env)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func mustRun(t *testing.T, exprs ...ast.Expr) string {
	t.Helper()
	result, err := run(t, exprs...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result.Inspect()
}

func TestEval_Arithmetic(t *testing.T) {
	tests := []struct {
		name string
		expr ast.Expr
		want string
	}{
		{"add", op(ast.OpAdd, num(1), num(2)), "3"},
		{"exact division", op(ast.OpDiv, num(1), num(3)), "1/3"},
		{"nested", op(ast.OpMul, op(ast.OpSub, num(5), num(2)), op(ast.OpNeg, num(2))), "-6"},
		{"pow", op(ast.OpPow, num(2), num(8)), "256"},
		{"index", op(ast.OpIndex, &ast.List{Elems: []ast.Expr{num(1), num(2)}}, num(-1)), "2"},
		{"comparison", comp(ast.Le, num(2), num(2)), "true"},
		{"logic", op(ast.OpXor, boolean(true), boolean(false)), "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustRun(t, tt.expr); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEval_Errors(t *testing.T) {
	tests := []struct {
		name string
		expr []ast.Expr
		want error
	}{
		{"division by zero", []ast.Expr{op(ast.OpDiv, num(1), num(0))}, object.ErrArithmetic},
		{"string plus number", []ast.Expr{op(ast.OpAdd, str("a"), num(1))}, object.ErrUnsupportedOp},
		{"unbound identifier", []ast.Expr{id("nope")}, object.ErrInvalidArg},
		{"assign to unbound", []ast.Expr{assign("nope", num(1))}, object.ErrInvalidArg},
		{"non-boolean condition", []ast.Expr{ctrl(&ast.If{Cond: num(1), Then: num(2)})}, object.ErrUnexpectedType},
		{"iterate a number", []ast.Expr{ctrl(&ast.For{Iterator: "x", Iterable: num(3), Body: id("x")})}, object.ErrUnexpectedType},
		{"break outside loop", []ast.Expr{ctrl(&ast.Break{})}, object.ErrInvalidArg},
		{"unknown function", []ast.Expr{call("nope")}, object.ErrInvalidArg},
		{"call a number", []ast.Expr{let("x", num(1)), call("x")}, object.ErrUnexpectedType},
		{"index out of bounds", []ast.Expr{op(ast.OpIndex, &ast.List{}, num(0))}, object.ErrInvalidArg},
		{"unbounded recursion", []ast.Expr{let("f", fn(t, []string{"n"}, call("f", op(ast.OpAdd, id("n"), num(1))))), call("f", num(0))}, object.ErrInvalidArg},
		{"zero weight distribution", []ast.Expr{&ast.Distribution{Pairs: []ast.DistPair{{Value: num(1), Weight: num(0)}}}}, object.ErrInvalidArg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.expr...)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want kind %v", err, tt.want)
			}
		})
	}
}

func TestEval_TryDivisionByZero(t *testing.T) {
	got := mustRun(t, ctrl(&ast.Try{Expr: op(ast.OpDiv, num(1), num(0)), Else: num(0)}))
	if got != "0" {
		t.Errorf("got %s, want 0", got)
	}
	got = mustRun(t, ctrl(&ast.Try{Expr: num(5), Else: num(0)}))
	if got != "5" {
		t.Errorf("try without error = %s, want 5", got)
	}
}

func TestEval_TryDoesNotSwallowBreak(t *testing.T) {
	got := mustRun(t,
		let("n", num(0)),
		ctrl(&ast.Loop{Body: block(
			assign("n", op(ast.OpAdd, id("n"), num(1))),
			ctrl(&ast.Try{Expr: ctrl(&ast.Break{}), Else: num(0)}),
		)}),
		id("n"),
	)
	if got != "1" {
		t.Errorf("loop ran %s times, want 1", got)
	}
}

func TestEval_WhileBreaksAfterThreeIterations(t *testing.T) {
	got := mustRun(t,
		let("i", num(0)),
		let("runs", num(0)),
		ctrl(&ast.While{
			Cond: comp(ast.Lt, id("i"), num(100)),
			Body: block(
				assign("runs", op(ast.OpAdd, id("runs"), num(1))),
				assign("i", op(ast.OpAdd, id("i"), num(1))),
				ctrl(&ast.If{Cond: comp(ast.Eq, id("i"), num(3)), Then: ctrl(&ast.Break{})}),
			),
		}),
		id("runs"),
	)
	if got != "3" {
		t.Errorf("body ran %s times, want 3", got)
	}
}

func TestEval_LoopContinue(t *testing.T) {
	// 1 + 2 + ... + 9, skipping 5
	got := mustRun(t,
		let("i", num(0)),
		let("sum", num(0)),
		ctrl(&ast.Loop{Body: block(
			assign("i", op(ast.OpAdd, id("i"), num(1))),
			ctrl(&ast.If{Cond: comp(ast.Ge, id("i"), num(10)), Then: ctrl(&ast.Break{})}),
			ctrl(&ast.If{Cond: comp(ast.Eq, id("i"), num(5)), Then: ctrl(&ast.Continue{})}),
			assign("sum", op(ast.OpAdd, id("sum"), id("i"))),
		)}),
		id("sum"),
	)
	if got != "40" {
		t.Errorf("sum = %s, want 40", got)
	}
}

func TestEval_For(t *testing.T) {
	m := &ast.Map{Entries: []ast.MapEntry{{Key: num(2), Value: str("b")}, {Key: num(1), Value: str("a")}}}
	tests := []struct {
		name     string
		iterable ast.Expr
		want     string
	}{
		{"list", &ast.List{Elems: []ast.Expr{num(3), num(1), num(2)}}, "{0: 3, 1: 1, 2: 2}"},
		{"set in order", &ast.Set{Elems: []ast.Expr{num(3), num(1), num(3)}}, "{0: 1, 1: 3}"},
		{"map keys in order", m, "{0: 1, 1: 2}"},
		{"string characters", str("ab"), `{0: "a", 1: "b"}`},
		{"distribution outcomes", die(3), "{0: 1, 1: 2, 2: 3}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustRun(t,
				let("seen", &ast.Map{}),
				let("n", num(0)),
				ctrl(&ast.For{Iterator: "x", Iterable: tt.iterable, Body: block(
					&ast.AssignIndex{Name: "seen", Index: []ast.Expr{id("n")}, Value: id("x")},
					assign("n", op(ast.OpAdd, id("n"), num(1))),
				)}),
				id("seen"),
			)
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEval_ClosureCapturesSnapshot(t *testing.T) {
	got := mustRun(t,
		let("x", num(1)),
		let("f", fn(t, nil, id("x"))),
		assign("x", num(2)),
		call("f"),
	)
	if got != "1" {
		t.Errorf("f() = %s, want the captured 1", got)
	}
}

func TestEval_Recursion(t *testing.T) {
	fact := fn(t, []string{"n"}, ctrl(&ast.If{
		Cond: comp(ast.Le, id("n"), num(1)),
		Then: num(1),
		Else: op(ast.OpMul, id("n"), call("fact", op(ast.OpSub, id("n"), num(1)))),
	}))
	if got := mustRun(t, let("fact", fact), call("fact", num(10))); got != "3628800" {
		t.Errorf("fact(10) = %s", got)
	}
}

func TestEval_KeywordArguments(t *testing.T) {
	sub := fn(t, []string{"a", "b"}, op(ast.OpSub, id("a"), id("b")))
	kw := func(args []ast.Expr, kws ...ast.KwArg) ast.Expr {
		return ast.NewNamedCall("sub", args, kws)
	}

	tests := []struct {
		name    string
		call    ast.Expr
		want    string
		wantErr error
	}{
		{"positional", kw([]ast.Expr{num(5), num(3)}), "2", nil},
		{"keywords reorder", kw(nil, ast.KwArg{Name: "b", Value: num(5)}, ast.KwArg{Name: "a", Value: num(3)}), "-2", nil},
		{"mixed", kw([]ast.Expr{num(10)}, ast.KwArg{Name: "b", Value: num(1)}), "9", nil},
		{"unknown keyword", kw([]ast.Expr{num(1), num(2)}, ast.KwArg{Name: "c", Value: num(1)}), "", object.ErrInvalidArg},
		{"keyword already bound", kw([]ast.Expr{num(1)}, ast.KwArg{Name: "a", Value: num(1)}), "", object.ErrInvalidArg},
		{"missing argument", kw([]ast.Expr{num(1)}), "", object.ErrInvalidArg},
		{"too many arguments", kw([]ast.Expr{num(1), num(2), num(3)}), "", object.ErrInvalidArg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := run(t, let("sub", sub), tt.call)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if result.Inspect() != tt.want {
				t.Errorf("got %s, want %s", result.Inspect(), tt.want)
			}
		})
	}

	_, err := run(t, ast.NewNamedCall("len", []ast.Expr{str("x")}, []ast.KwArg{{Name: "x", Value: num(1)}}))
	if !errors.Is(err, object.ErrInvalidArg) {
		t.Errorf("keyword to a builtin: error = %v", err)
	}
}

func TestEval_BreakInFunctionBody(t *testing.T) {
	_, err := run(t,
		let("f", fn(t, nil, ctrl(&ast.Break{}))),
		ctrl(&ast.Loop{Body: call("f")}),
	)
	if !errors.Is(err, object.ErrInvalidArg) {
		t.Errorf("error = %v, want InvalidArg", err)
	}
}

func TestEval_DuplicateParameters(t *testing.T) {
	lit := &ast.Val{Value: &object.Function{Params: []string{"a", "a"}, Body: id("a")}}
	_, err := run(t, let("f", lit))
	if !errors.Is(err, object.ErrInvalidArg) {
		t.Errorf("error = %v, want InvalidArg", err)
	}
}

func TestEval_AssignIndexCopiesContainers(t *testing.T) {
	m := &ast.Map{Entries: []ast.MapEntry{{Key: str("a"), Value: &ast.List{Elems: []ast.Expr{num(1), num(2)}}}}}
	got := mustRun(t,
		let("m", m),
		let("before", id("m")),
		&ast.AssignIndex{Name: "m", Index: []ast.Expr{str("a"), num(0)}, Value: num(5)},
		&ast.AssignIndex{Name: "m", Index: []ast.Expr{str("new")}, Value: boolean(true)},
		&ast.List{Elems: []ast.Expr{id("m"), id("before")}},
	)
	want := `[{"a": [5, 2], "new": true}, {"a": [1, 2]}]`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEval_Distributions(t *testing.T) {
	tests := []struct {
		name string
		expr ast.Expr
		want string
	}{
		{"two dice", op(ast.OpAdd, die(6), die(6)),
			"{(2, 1), (3, 2), (4, 3), (5, 4), (6, 5), (7, 6), (8, 5), (9, 4), (10, 3), (11, 2), (12, 1)}"},
		{"dice operator", op(ast.OpDice, num(2), num(4)), "{(2, 1), (3, 2), (4, 3), (5, 4), (6, 3), (7, 2), (8, 1)}"},
		{"dice count from a distribution", op(ast.OpDice, die(2), num(2)), "{(1, 2), (2, 3), (3, 2), (4, 1)}"},
		{"dice sides from a distribution", op(ast.OpDice, num(1), die(2)), "{(1, 3), (2, 1)}"},
		{"dice function lifts too", call("prob", call("dice", op(ast.OpDice, num(1), num(4)), num(6)), num(1)), "1/24"},
		{"scalar lifts", op(ast.OpMul, die(2), num(3)), "{(3, 1), (6, 1)}"},
		{"negation maps", op(ast.OpNeg, die(2)), "{(-2, 1), (-1, 1)}"},
		{"comparison", comp(ast.Gt, die(6), num(4)), "{(false, 4), (true, 2)}"},
		{"duplicate outcomes accumulate", &ast.Distribution{Pairs: []ast.DistPair{
			{Value: str("hit"), Weight: num(1)}, {Value: str("miss"), Weight: num(2)}, {Value: str("hit"), Weight: num(3)},
		}}, `{("hit", 4), ("miss", 2)}`},
		{"probability", call("prob", op(ast.OpDice, num(2), num(6)), num(7)), "1/6"},
		{"mean", call("mean", op(ast.OpDice, num(2), num(6))), "7"},
		{"total", call("total", op(ast.OpDice, num(3), num(6))), "216"},
		{"outcomes", call("outcomes", die(3)), "[1, 2, 3]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, mustRun(t, tt.expr)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEval_DistributionCondition(t *testing.T) {
	certain := &ast.Distribution{Pairs: []ast.DistPair{{Value: boolean(true), Weight: num(3)}}}
	got := mustRun(t, ctrl(&ast.If{Cond: certain, Then: str("yes"), Else: str("no")}))
	if got != "yes" {
		t.Errorf("got %s", got)
	}

	rolled := mustRun(t, call("roll", die(6)))
	switch rolled {
	case "1", "2", "3", "4", "5", "6":
	default:
		t.Errorf("roll(d6) = %s", rolled)
	}
}

func TestEval_Elif(t *testing.T) {
	classify := func(n int64) ast.Expr {
		return ctrl(&ast.If{
			Cond: comp(ast.Lt, num(n), num(0)),
			Then: str("negative"),
			Elifs: []ast.ElifBranch{
				{Cond: comp(ast.Eq, num(n), num(0)), Then: str("zero")},
			},
			Else: str("positive"),
		})
	}
	for n, want := range map[int64]string{-1: "negative", 0: "zero", 1: "positive"} {
		if got := mustRun(t, classify(n)); got != want {
			t.Errorf("classify(%d) = %s, want %s", n, got, want)
		}
	}
}

func TestEval_BlockScope(t *testing.T) {
	got := mustRun(t,
		let("x", num(1)),
		block(let("x", num(2)), id("x")),
		id("x"),
	)
	if got != "1" {
		t.Errorf("x = %s after the block, want 1", got)
	}
}

func TestEval_Print(t *testing.T) {
	var out bytes.Buffer
	e := New(Config{Stdout: &out})
	result, err := e.Evaluate(context.Background(), call("print", str("total"), num(3), &ast.List{Elems: []ast.Expr{str("x")}}), object.NewEnvironment())
	if err != nil {
		t.Fatal(err)
	}
	if result != object.VOID {
		t.Errorf("print returned %s", result.Inspect())
	}
	if got := out.String(); got != "total 3 [\"x\"]\n" {
		t.Errorf("printed %q", got)
	}
}

func TestBuiltinNames(t *testing.T) {
	want := []string{"dice", "keys", "len", "mean", "outcomes", "print", "prob", "roll", "str", "total"}
	if diff := cmp.Diff(want, BuiltinNames()); diff != "" {
		t.Errorf("BuiltinNames() mismatch (-want +got):\n%s", diff)
	}
}
