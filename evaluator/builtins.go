package evaluator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/podhmo/roller/distribution"
	"github.com/podhmo/roller/object"
)

// BuiltinFunction is the Go implementation of a built-in function.
type BuiltinFunction func(ctx context.Context, e *Evaluator, args ...object.Object) object.Object

// Builtin is a function provided by the evaluator itself. A user function
// bound under the same name takes precedence.
type Builtin struct {
	Name string
	Fn   BuiltinFunction
}

// BuiltinNames returns the names of the built-in functions, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var builtins map[string]*Builtin

func init() {
	builtins = map[string]*Builtin{}
	for _, b := range []*Builtin{
		{Name: "len", Fn: builtinLen},
		{Name: "dice", Fn: builtinDice},
		{Name: "roll", Fn: builtinRoll},
		{Name: "prob", Fn: builtinProb},
		{Name: "mean", Fn: builtinMean},
		{Name: "total", Fn: builtinTotal},
		{Name: "outcomes", Fn: builtinOutcomes},
		{Name: "keys", Fn: builtinKeys},
		{Name: "str", Fn: builtinStr},
		{Name: "print", Fn: builtinPrint},
	} {
		builtins[b.Name] = b
	}
}

func checkArgs(name string, args []object.Object, want int) *object.Error {
	if len(args) != want {
		return newError(object.InvalidArg, "`%s` takes %d arguments, got %d", name, want, len(args))
	}
	return nil
}

func builtinLen(ctx context.Context, e *Evaluator, args ...object.Object) object.Object {
	if err := checkArgs("len", args, 1); err != nil {
		return err
	}
	switch arg := args[0].(type) {
	case *object.List:
		return object.NewInt(int64(len(arg.Elements)))
	case *object.Set:
		return object.NewInt(int64(arg.Len()))
	case *object.Map:
		return object.NewInt(int64(arg.Len()))
	case *object.Distribution:
		return object.NewInt(int64(arg.Len()))
	case *object.String:
		return object.NewInt(int64(utf8.RuneCountInString(arg.Value)))
	}
	return newError(object.UnexpectedType, "argument to `len` not supported, got %s", args[0].Type())
}

func builtinDice(ctx context.Context, e *Evaluator, args ...object.Object) object.Object {
	if err := checkArgs("dice", args, 2); err != nil {
		return err
	}
	return toObject(distribution.DiceOf(args[0], args[1]))
}

// builtinRoll samples a distribution. Other values are already concrete.
func builtinRoll(ctx context.Context, e *Evaluator, args ...object.Object) object.Object {
	if err := checkArgs("roll", args, 1); err != nil {
		return err
	}
	if d, ok := args[0].(*object.Distribution); ok {
		return e.collapse(ctx, d)
	}
	return args[0]
}

func builtinProb(ctx context.Context, e *Evaluator, args ...object.Object) object.Object {
	if err := checkArgs("prob", args, 2); err != nil {
		return err
	}
	return toObject(distribution.Probability(distribution.Lift(args[0]), args[1]))
}

func builtinMean(ctx context.Context, e *Evaluator, args ...object.Object) object.Object {
	if err := checkArgs("mean", args, 1); err != nil {
		return err
	}
	return toObject(distribution.Mean(distribution.Lift(args[0])))
}

func builtinTotal(ctx context.Context, e *Evaluator, args ...object.Object) object.Object {
	if err := checkArgs("total", args, 1); err != nil {
		return err
	}
	total := distribution.Lift(args[0]).Total()
	if total > math.MaxInt64 {
		return newError(object.ArithmeticError, "integer overflow")
	}
	return object.NewInt(int64(total))
}

func builtinOutcomes(ctx context.Context, e *Evaluator, args ...object.Object) object.Object {
	if err := checkArgs("outcomes", args, 1); err != nil {
		return err
	}
	return &object.List{Elements: distribution.Lift(args[0]).Outcomes()}
}

func builtinKeys(ctx context.Context, e *Evaluator, args ...object.Object) object.Object {
	if err := checkArgs("keys", args, 1); err != nil {
		return err
	}
	m, ok := args[0].(*object.Map)
	if !ok {
		return newError(object.UnexpectedType, "argument to `keys` must be a map, got %s", args[0].Type())
	}
	return &object.List{Elements: m.Keys()}
}

func builtinStr(ctx context.Context, e *Evaluator, args ...object.Object) object.Object {
	if err := checkArgs("str", args, 1); err != nil {
		return err
	}
	return &object.String{Value: args[0].Inspect()}
}

func builtinPrint(ctx context.Context, e *Evaluator, args ...object.Object) object.Object {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.Inspect()
	}
	fmt.Fprintln(e.stdout, strings.Join(parts, " "))
	return object.VOID
}
