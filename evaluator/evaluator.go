// Package evaluator walks Roller expression trees and produces values.
//
// Eval returns break and continue signals and *object.Error values as
// ordinary objects so they can travel up the tree until a loop or a try
// consumes them. Evaluate is the entry point for callers: it turns those
// into Go errors.
package evaluator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/podhmo/roller/ast"
	"github.com/podhmo/roller/object"
)

// Evaluator is the main object that evaluates the AST.
type Evaluator struct {
	logger    *slog.Logger
	rand      *rand.Rand
	stdout    io.Writer
	builtins  map[string]*Builtin
	callStack []string
}

// Config configures an Evaluator. Zero fields get defaults.
type Config struct {
	Logger *slog.Logger
	// Rand drives every sampling of a distribution.
	Rand   *rand.Rand
	Stdout io.Writer
}

// New creates a new Evaluator.
func New(cfg Config) *Evaluator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Evaluator{
		logger:   logger,
		rand:     rng,
		stdout:   stdout,
		builtins: builtins,
	}
}

// Evaluate evaluates expr in env. Runtime errors are returned as
// *object.Error; a break or continue that escapes every loop is an
// invalid-argument error.
func (e *Evaluator) Evaluate(ctx context.Context, expr ast.Expr, env *object.Environment) (object.Object, error) {
	result := e.Eval(ctx, expr, env)
	switch r := result.(type) {
	case *object.Error:
		e.logc(ctx, slog.LevelDebug, "evaluation failed", "error", r)
		return nil, r
	case *object.BreakStatement:
		return nil, newError(object.InvalidArg, "`break` outside of a loop")
	case *object.ContinueStatement:
		return nil, newError(object.InvalidArg, "`continue` outside of a loop")
	}
	return result, nil
}

// Eval is the main dispatch loop for the evaluator.
func (e *Evaluator) Eval(ctx context.Context, expr ast.Expr, env *object.Environment) object.Object {
	switch n := expr.(type) {
	case *ast.Val:
		return e.evalVal(n, env)
	case *ast.Id:
		return e.evalId(n, env)
	case *ast.Decl:
		return e.evalDecl(ctx, n, env)
	case *ast.Assign:
		return e.evalAssign(ctx, n, env)
	case *ast.AssignIndex:
		return e.evalAssignIndex(ctx, n, env)
	case *ast.Comp:
		return e.evalComp(ctx, n, env)
	case *ast.Op:
		return e.evalFunCall(ctx, n.Call, env)
	case *ast.List:
		return e.evalList(ctx, n, env)
	case *ast.Set:
		return e.evalSet(ctx, n, env)
	case *ast.Map:
		return e.evalMap(ctx, n, env)
	case *ast.Distribution:
		return e.evalDistribution(ctx, n, env)
	case *ast.Block:
		return e.evalBlock(ctx, n, env)
	case *ast.Ctrl:
		return e.evalControl(ctx, n.Control, env)
	}
	return newError(object.UnsupportedOp, "evaluation not implemented for %T", expr)
}

func (e *Evaluator) evalVal(n *ast.Val, env *object.Environment) object.Object {
	switch v := n.Value.(type) {
	case *object.Function:
		return e.closure(v, env)
	case object.Object:
		return v
	}
	return newError(object.UnexpectedType, "unsupported literal %T", n.Value)
}

// closure captures a snapshot of env for a function literal.
func (e *Evaluator) closure(fn *object.Function, env *object.Environment) object.Object {
	if err := fn.CheckValid(); err != nil {
		return toObject(nil, err)
	}
	return &object.Function{Params: fn.Params, Body: fn.Body, Env: env.Snapshot()}
}

func (e *Evaluator) evalId(n *ast.Id, env *object.Environment) object.Object {
	if val, ok := env.Get(n.Name); ok {
		return val
	}
	return newError(object.InvalidArg, "unbound identifier `%s`", n.Name)
}

func (e *Evaluator) evalDecl(ctx context.Context, n *ast.Decl, env *object.Environment) object.Object {
	val := e.Eval(ctx, n.Value, env)
	if isSignal(val) {
		return val
	}
	// a declared function sees itself, so it can recurse
	if fn, ok := val.(*object.Function); ok {
		if lit, ok := n.Value.(*ast.Val); ok {
			if _, ok := lit.Value.(*object.Function); ok {
				fn.Env.Set(n.Name, fn)
			}
		}
	}
	env.Set(n.Name, val)
	return object.VOID
}

func (e *Evaluator) evalAssign(ctx context.Context, n *ast.Assign, env *object.Environment) object.Object {
	val := e.Eval(ctx, n.Value, env)
	if isSignal(val) {
		return val
	}
	if !env.Assign(n.Name, val) {
		return newError(object.InvalidArg, "unbound identifier `%s`", n.Name)
	}
	return object.VOID
}

func (e *Evaluator) evalAssignIndex(ctx context.Context, n *ast.AssignIndex, env *object.Environment) object.Object {
	container, ok := env.Get(n.Name)
	if !ok {
		return newError(object.InvalidArg, "unbound identifier `%s`", n.Name)
	}
	keys, sig := e.evalExprs(ctx, n.Index, env)
	if sig != nil {
		return sig
	}
	val := e.Eval(ctx, n.Value, env)
	if isSignal(val) {
		return val
	}
	updated, err := setPath(container, keys, val)
	if err != nil {
		return toObject(nil, err)
	}
	env.Assign(n.Name, updated)
	return object.VOID
}

// setPath returns a copy of container with the value at keys replaced.
// Containers along the path are copied, never written in place.
func setPath(container object.Object, keys []object.Object, val object.Object) (object.Object, error) {
	loc, err := object.Index(container, keys[0], true)
	if err != nil {
		return nil, err
	}
	if len(keys) == 1 {
		return loc.Set(val)
	}
	inner, err := setPath(loc.Get(), keys[1:], val)
	if err != nil {
		return nil, err
	}
	return loc.Set(inner)
}

func (e *Evaluator) evalBlock(ctx context.Context, n *ast.Block, env *object.Environment) object.Object {
	var result object.Object = object.VOID
	blockEnv := object.NewEnclosedEnvironment(env)
	for _, expr := range n.Exprs {
		result = e.Eval(ctx, expr, blockEnv)
		if isSignal(result) {
			return result
		}
	}
	return result
}

// evalExprs evaluates exprs left to right. The second result is the first
// error or control signal met, if any.
func (e *Evaluator) evalExprs(ctx context.Context, exprs []ast.Expr, env *object.Environment) ([]object.Object, object.Object) {
	result := make([]object.Object, 0, len(exprs))
	for _, expr := range exprs {
		val := e.Eval(ctx, expr, env)
		if isSignal(val) {
			return nil, val
		}
		result = append(result, val)
	}
	return result, nil
}

func newError(kind object.ErrorKind, format string, args ...any) *object.Error {
	return object.NewError(kind, format, args...)
}

func isError(obj object.Object) bool {
	if obj != nil {
		return obj.Type() == object.ERROR_OBJ
	}
	return false
}

// isSignal reports whether obj must stop the evaluation of its siblings:
// an error, a break, or a continue.
func isSignal(obj object.Object) bool {
	if obj == nil {
		return false
	}
	switch obj.Type() {
	case object.ERROR_OBJ, object.BREAK_OBJ, object.CONTINUE_OBJ:
		return true
	}
	return false
}

// toObject folds the (value, error) result of a value operation into one
// object.
func toObject(val object.Object, err error) object.Object {
	if err == nil {
		return val
	}
	var oerr *object.Error
	if errors.As(err, &oerr) {
		return oerr
	}
	return newError(object.InvalidArg, "%v", err)
}
