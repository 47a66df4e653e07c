package evaluator

import (
	"context"

	"github.com/podhmo/roller/ast"
	"github.com/podhmo/roller/distribution"
	"github.com/podhmo/roller/object"
)

func (e *Evaluator) evalList(ctx context.Context, n *ast.List, env *object.Environment) object.Object {
	elems, sig := e.evalExprs(ctx, n.Elems, env)
	if sig != nil {
		return sig
	}
	return &object.List{Elements: elems}
}

func (e *Evaluator) evalSet(ctx context.Context, n *ast.Set, env *object.Environment) object.Object {
	elems, sig := e.evalExprs(ctx, n.Elems, env)
	if sig != nil {
		return sig
	}
	return object.NewSet(elems...)
}

// evalMap builds a map literal. When two keys evaluate to equal values the
// later entry wins.
func (e *Evaluator) evalMap(ctx context.Context, n *ast.Map, env *object.Environment) object.Object {
	m := object.NewMap()
	for _, entry := range n.Entries {
		key := e.Eval(ctx, entry.Key, env)
		if isSignal(key) {
			return key
		}
		val := e.Eval(ctx, entry.Value, env)
		if isSignal(val) {
			return val
		}
		m.Put(key, val)
	}
	return m
}

func (e *Evaluator) evalDistribution(ctx context.Context, n *ast.Distribution, env *object.Environment) object.Object {
	pairs := make([]distribution.Pair, 0, len(n.Pairs))
	for _, p := range n.Pairs {
		val := e.Eval(ctx, p.Value, env)
		if isSignal(val) {
			return val
		}
		w := e.Eval(ctx, p.Weight, env)
		if isSignal(w) {
			return w
		}
		weight, err := distribution.Weight(w)
		if err != nil {
			return toObject(nil, err)
		}
		pairs = append(pairs, distribution.Pair{Value: val, Weight: weight})
	}
	return toObject(distribution.Mixture(pairs))
}
