package evaluator

import (
	"context"
	"log/slog"

	"github.com/podhmo/roller/ast"
	"github.com/podhmo/roller/distribution"
	"github.com/podhmo/roller/object"
)

func (e *Evaluator) evalControl(ctx context.Context, ctrl ast.Control, env *object.Environment) object.Object {
	switch n := ctrl.(type) {
	case *ast.Break:
		return object.BREAK
	case *ast.Continue:
		return object.CONTINUE
	case *ast.If:
		return e.evalIf(ctx, n, env)
	case *ast.Loop:
		return e.evalLoop(ctx, n, env)
	case *ast.While:
		return e.evalWhile(ctx, n, env)
	case *ast.For:
		return e.evalFor(ctx, n, env)
	case *ast.Try:
		return e.evalTry(ctx, n, env)
	}
	return newError(object.UnsupportedOp, "evaluation not implemented for %T", ctrl)
}

// evalCondition evaluates a branch or loop condition. A distribution is
// sampled first; the result must be a boolean.
func (e *Evaluator) evalCondition(ctx context.Context, cond ast.Expr, env *object.Environment) (bool, object.Object) {
	val := e.Eval(ctx, cond, env)
	if isSignal(val) {
		return false, val
	}
	if d, ok := val.(*object.Distribution); ok {
		val = e.collapse(ctx, d)
		if isError(val) {
			return false, val
		}
	}
	b, ok := val.(*object.Boolean)
	if !ok {
		return false, newError(object.UnexpectedType, "condition must be a boolean, got %s", val.Type())
	}
	return b.Value, nil
}

func (e *Evaluator) collapse(ctx context.Context, d *object.Distribution) object.Object {
	outcome, err := distribution.Collapse(d, e.rand)
	if err != nil {
		return toObject(nil, err)
	}
	e.logc(ctx, slog.LevelDebug, "collapse", "outcomes", d.Len(), "total", d.Total(), "drawn", outcome)
	return outcome
}

func (e *Evaluator) evalIf(ctx context.Context, n *ast.If, env *object.Environment) object.Object {
	ok, sig := e.evalCondition(ctx, n.Cond, env)
	if sig != nil {
		return sig
	}
	if ok {
		return e.Eval(ctx, n.Then, env)
	}
	for _, elif := range n.Elifs {
		ok, sig := e.evalCondition(ctx, elif.Cond, env)
		if sig != nil {
			return sig
		}
		if ok {
			return e.Eval(ctx, elif.Then, env)
		}
	}
	if n.Else == nil {
		return object.VOID
	}
	return e.Eval(ctx, n.Else, env)
}

// loopBody runs one iteration. done is set when the loop must stop; result
// is then what the loop yields.
func (e *Evaluator) loopBody(ctx context.Context, body ast.Expr, env *object.Environment) (result object.Object, done bool) {
	r := e.Eval(ctx, body, env)
	if r == nil {
		return nil, false
	}
	switch r.Type() {
	case object.BREAK_OBJ:
		e.logc(ctx, slog.LevelDebug, "loop exit by break")
		return object.VOID, true
	case object.CONTINUE_OBJ:
		return nil, false
	case object.ERROR_OBJ:
		return r, true
	}
	return nil, false
}

func (e *Evaluator) evalLoop(ctx context.Context, n *ast.Loop, env *object.Environment) object.Object {
	for {
		if result, done := e.loopBody(ctx, n.Body, env); done {
			return result
		}
	}
}

func (e *Evaluator) evalWhile(ctx context.Context, n *ast.While, env *object.Environment) object.Object {
	for {
		ok, sig := e.evalCondition(ctx, n.Cond, env)
		if sig != nil {
			return sig
		}
		if !ok {
			return object.VOID
		}
		if result, done := e.loopBody(ctx, n.Body, env); done {
			return result
		}
	}
}

func (e *Evaluator) evalFor(ctx context.Context, n *ast.For, env *object.Environment) object.Object {
	iterable := e.Eval(ctx, n.Iterable, env)
	if isSignal(iterable) {
		return iterable
	}
	elements, err := iterate(iterable)
	if err != nil {
		return err
	}
	for _, el := range elements {
		iterEnv := object.NewEnclosedEnvironment(env)
		iterEnv.Set(n.Iterator, el)
		if result, done := e.loopBody(ctx, n.Body, iterEnv); done {
			return result
		}
	}
	return object.VOID
}

// iterate lists the elements a for loop visits. Distributions yield their
// outcomes in order without sampling.
func iterate(iterable object.Object) ([]object.Object, *object.Error) {
	switch it := iterable.(type) {
	case *object.List:
		return it.Elements, nil
	case *object.Set:
		return it.Elements(), nil
	case *object.Map:
		return it.Keys(), nil
	case *object.Distribution:
		return it.Outcomes(), nil
	case *object.String:
		var chars []object.Object
		for _, ch := range it.Value {
			chars = append(chars, &object.String{Value: string(ch)})
		}
		return chars, nil
	}
	return nil, newError(object.UnexpectedType, "cannot iterate over %s", iterable.Type())
}

func (e *Evaluator) evalTry(ctx context.Context, n *ast.Try, env *object.Environment) object.Object {
	result := e.Eval(ctx, n.Expr, env)
	if isError(result) {
		e.logc(ctx, slog.LevelDebug, "try recovered", "error", result)
		return e.Eval(ctx, n.Else, env)
	}
	return result
}
