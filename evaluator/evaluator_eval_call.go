package evaluator

import (
	"context"
	"log/slog"

	"github.com/podhmo/roller/ast"
	"github.com/podhmo/roller/distribution"
	"github.com/podhmo/roller/object"
)

var unaryOps = map[ast.OpCode]distribution.UnaryOp{
	ast.OpNeg: object.Neg,
	ast.OpNot: object.Not,
}

var binaryOps = map[ast.OpCode]distribution.BinaryOp{
	ast.OpAdd:   object.Add,
	ast.OpSub:   object.Sub,
	ast.OpMul:   object.Mul,
	ast.OpDiv:   object.Div,
	ast.OpPow:   object.Pow,
	ast.OpAnd:   object.And,
	ast.OpOr:    object.Or,
	ast.OpXor:   object.Xor,
	ast.OpIndex: object.IndexValue,
}

func (e *Evaluator) evalFunCall(ctx context.Context, call *ast.FunCall, env *object.Environment) object.Object {
	if call.Code == ast.OpCall {
		return e.evalNamedCall(ctx, call, env)
	}
	if len(call.KwArgs) > 0 {
		return newError(object.InvalidArg, "operator %s does not take keyword arguments", call.Code)
	}
	if arity := call.Code.Arity(); len(call.Args) != arity {
		return newError(object.InvalidArg, "operator %s takes %d arguments, got %d", call.Code, arity, len(call.Args))
	}
	args, sig := e.evalExprs(ctx, call.Args, env)
	if sig != nil {
		return sig
	}

	if op, ok := unaryOps[call.Code]; ok {
		if d, ok := args[0].(*object.Distribution); ok {
			return toObject(distribution.Map(d, op))
		}
		return toObject(op(args[0]))
	}
	if op, ok := binaryOps[call.Code]; ok {
		return e.applyBinary(ctx, call.Code.String(), op, args[0], args[1])
	}
	if call.Code == ast.OpDice {
		return toObject(distribution.DiceOf(args[0], args[1]))
	}
	return newError(object.UnsupportedOp, "unknown operator %s", call.Code)
}

// applyBinary applies op to plain values, or combines the operands when
// either is a distribution.
func (e *Evaluator) applyBinary(ctx context.Context, name string, op distribution.BinaryOp, lhs, rhs object.Object) object.Object {
	_, ld := lhs.(*object.Distribution)
	_, rd := rhs.(*object.Distribution)
	if !ld && !rd {
		return toObject(op(lhs, rhs))
	}
	d, err := distribution.Combine(lhs, rhs, op)
	if err != nil {
		return toObject(nil, err)
	}
	e.logc(ctx, slog.LevelDebug, "combine", "op", name, "outcomes", d.Len(), "total", d.Total())
	return d
}

func (e *Evaluator) evalComp(ctx context.Context, n *ast.Comp, env *object.Environment) object.Object {
	lhs := e.Eval(ctx, n.LHS, env)
	if isSignal(lhs) {
		return lhs
	}
	rhs := e.Eval(ctx, n.RHS, env)
	if isSignal(rhs) {
		return rhs
	}
	return e.applyBinary(ctx, n.Op.String(), func(a, b object.Object) (object.Object, error) {
		return object.CompareOp(n.Op, a, b)
	}, lhs, rhs)
}

// evalNamedCall calls a function bound in scope, falling back to the
// built-in functions.
func (e *Evaluator) evalNamedCall(ctx context.Context, call *ast.FunCall, env *object.Environment) object.Object {
	callee, bound := env.Get(call.Name)
	fn, isFunc := callee.(*object.Function)
	builtin, isBuiltin := e.builtins[call.Name]
	switch {
	case isFunc:
	case isBuiltin:
		if len(call.KwArgs) > 0 {
			return newError(object.InvalidArg, "built-in `%s` does not take keyword arguments", call.Name)
		}
		args, sig := e.evalExprs(ctx, call.Args, env)
		if sig != nil {
			return sig
		}
		e.logc(ctx, slog.LevelDebug, "apply builtin", "name", call.Name, "args", len(args))
		return builtin.Fn(ctx, e, args...)
	case bound:
		return newError(object.UnexpectedType, "`%s` is not a function, got %s", call.Name, callee.Type())
	default:
		return newError(object.InvalidArg, "unknown function `%s`", call.Name)
	}

	args, sig := e.evalExprs(ctx, call.Args, env)
	if sig != nil {
		return sig
	}
	kwargs := make([]object.Object, len(call.KwArgs))
	for i, kw := range call.KwArgs {
		val := e.Eval(ctx, kw.Value, env)
		if isSignal(val) {
			return val
		}
		kwargs[i] = val
	}

	callEnv, errObj := bindArguments(call, fn, args, kwargs)
	if errObj != nil {
		return errObj
	}
	return e.applyFunction(ctx, call.Name, fn, callEnv)
}

// bindArguments binds positional arguments in order, then keyword arguments
// by name, in a scope enclosed by the closure's captured scope.
func bindArguments(call *ast.FunCall, fn *object.Function, args, kwargs []object.Object) (*object.Environment, *object.Error) {
	if len(args) > len(fn.Params) {
		return nil, newError(object.InvalidArg, "`%s` takes %d arguments, got %d", call.Name, len(fn.Params), len(args))
	}
	env := object.NewEnclosedEnvironment(fn.Env)
	bound := make(map[string]bool, len(fn.Params))
	for i, arg := range args {
		env.Set(fn.Params[i], arg)
		bound[fn.Params[i]] = true
	}
	for i, kw := range call.KwArgs {
		if !hasParam(fn, kw.Name) {
			return nil, newError(object.InvalidArg, "`%s` has no argument named `%s`", call.Name, kw.Name)
		}
		if bound[kw.Name] {
			return nil, newError(object.InvalidArg, "argument `%s` given more than once", kw.Name)
		}
		env.Set(kw.Name, kwargs[i])
		bound[kw.Name] = true
	}
	for _, p := range fn.Params {
		if !bound[p] {
			return nil, newError(object.InvalidArg, "missing argument `%s` in call to `%s`", p, call.Name)
		}
	}
	return env, nil
}

func hasParam(fn *object.Function, name string) bool {
	for _, p := range fn.Params {
		if p == name {
			return true
		}
	}
	return false
}

// maxCallDepth bounds nested function calls so runaway recursion fails as an
// error instead of exhausting the goroutine stack.
const maxCallDepth = 10000

func (e *Evaluator) applyFunction(ctx context.Context, name string, fn *object.Function, env *object.Environment) object.Object {
	if len(e.callStack) >= maxCallDepth {
		return newError(object.InvalidArg, "maximum call depth %d exceeded in `%s`", maxCallDepth, name)
	}
	e.callStack = append(e.callStack, name)
	defer func() { e.callStack = e.callStack[:len(e.callStack)-1] }()

	e.logc(ctx, slog.LevelDebug, "apply function", "name", name, "params", len(fn.Params))
	result := e.Eval(ctx, fn.Body, env)
	switch result.Type() {
	case object.BREAK_OBJ:
		return newError(object.InvalidArg, "`break` outside of a loop in `%s`", name)
	case object.CONTINUE_OBJ:
		return newError(object.InvalidArg, "`continue` outside of a loop in `%s`", name)
	}
	return result
}
