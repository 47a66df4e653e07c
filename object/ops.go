package object

import (
	"math"

	"github.com/podhmo/roller/ast"
	"github.com/podhmo/roller/internal/ratio"
)

// Every operation here is a pure function of its operands. Failures are
// reported as *Error.

// Neg negates a number.
func Neg(v Object) (Object, error) {
	n, ok := v.(*Num)
	if !ok {
		return nil, NewError(UnsupportedOp, "negation is not supported for %s", v.Type())
	}
	r, err := n.Value.Neg()
	if err != nil {
		return nil, arithmeticError(err)
	}
	return &Num{Value: r}, nil
}

// Not negates a boolean.
func Not(v Object) (Object, error) {
	b, ok := v.(*Boolean)
	if !ok {
		return nil, NewError(UnsupportedOp, "not operation is not supported for %s", v.Type())
	}
	return NativeBool(!b.Value), nil
}

// Add returns the exact sum of two numbers.
func Add(lhs, rhs Object) (Object, error) { return numeric("addition", lhs, rhs, ratio.Ratio.Add) }

// Sub returns the exact difference of two numbers.
func Sub(lhs, rhs Object) (Object, error) {
	return numeric("subtraction", lhs, rhs, ratio.Ratio.Sub)
}

// Mul returns the exact product of two numbers.
func Mul(lhs, rhs Object) (Object, error) {
	return numeric("multiplication", lhs, rhs, ratio.Ratio.Mul)
}

// Div returns the exact quotient of two numbers. The divisor is checked for
// zero by its exact value, so dividing by 1/2 is fine.
func Div(lhs, rhs Object) (Object, error) { return numeric("division", lhs, rhs, ratio.Ratio.Quo) }

// Pow raises lhs to the power rhs. Integer exponents are exact. A fractional
// exponent goes through float64 and is converted back to the nearest ratio
// with a bounded denominator, so the result is an approximation.
func Pow(lhs, rhs Object) (Object, error) {
	return numeric("raising to power", lhs, rhs, func(a, b ratio.Ratio) (ratio.Ratio, error) {
		if b.IsInteger() {
			return a.Pow(b.Numer())
		}
		f := math.Pow(a.Float64(), b.Float64())
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ratio.Ratio{}, NewError(ArithmeticError, "%s ^ %s has no real value", a, b)
		}
		return ratio.FromFloat(f)
	})
}

func numeric(name string, lhs, rhs Object, op func(a, b ratio.Ratio) (ratio.Ratio, error)) (Object, error) {
	a, ok1 := lhs.(*Num)
	b, ok2 := rhs.(*Num)
	if !ok1 || !ok2 {
		return nil, NewError(UnsupportedOp, "%s is not supported between %s and %s", name, lhs.Type(), rhs.Type())
	}
	r, err := op(a.Value, b.Value)
	if err != nil {
		return nil, arithmeticError(err)
	}
	return &Num{Value: r}, nil
}

// And is boolean conjunction.
func And(lhs, rhs Object) (Object, error) {
	return logical(lhs, rhs, func(a, b bool) bool { return a && b })
}

// Or is boolean disjunction.
func Or(lhs, rhs Object) (Object, error) {
	return logical(lhs, rhs, func(a, b bool) bool { return a || b })
}

// Xor is boolean exclusive or.
func Xor(lhs, rhs Object) (Object, error) {
	return logical(lhs, rhs, func(a, b bool) bool { return a != b })
}

func logical(lhs, rhs Object, op func(a, b bool) bool) (Object, error) {
	a, ok1 := lhs.(*Boolean)
	b, ok2 := rhs.(*Boolean)
	if !ok1 || !ok2 {
		return nil, NewError(UnsupportedOp, "boolean operators are not supported between %s and %s", lhs.Type(), rhs.Type())
	}
	return NativeBool(op(a.Value, b.Value)), nil
}

// CompareOp evaluates a comparison. Equality is defined between any two
// values; ordering only between numbers, strings, or booleans.
func CompareOp(op ast.CompOp, lhs, rhs Object) (Object, error) {
	switch op {
	case ast.Eq:
		return NativeBool(Equal(lhs, rhs)), nil
	case ast.Ne:
		return NativeBool(!Equal(lhs, rhs)), nil
	}

	if lhs.Type() != rhs.Type() {
		return nil, NewError(UnexpectedType, "cannot compare %s with %s", lhs.Type(), rhs.Type())
	}
	switch lhs.Type() {
	case NUM_OBJ, STRING_OBJ, BOOLEAN_OBJ:
	default:
		return nil, NewError(UnexpectedType, "ordering is not defined for %s", lhs.Type())
	}

	c := Compare(lhs, rhs)
	switch op {
	case ast.Lt:
		return NativeBool(c < 0), nil
	case ast.Le:
		return NativeBool(c <= 0), nil
	case ast.Gt:
		return NativeBool(c > 0), nil
	case ast.Ge:
		return NativeBool(c >= 0), nil
	}
	return nil, NewError(UnsupportedOp, "unknown comparison %s", op)
}

// Location addresses one slot of a container. Get reads the slot; Set
// returns a copy of the container with the slot replaced, leaving the
// original untouched.
type Location struct {
	get func() Object
	set func(v Object) (Object, error)
}

// Get returns the value stored at the location.
func (l *Location) Get() Object { return l.get() }

// Set returns the updated container.
func (l *Location) Set(v Object) (Object, error) { return l.set(v) }

// Index resolves key inside container.
//
// Lists take an integer key; negative keys count from the end. Maps look the
// key up; when insertIfMissing is set a missing key reads as None and Set
// adds it, otherwise a missing key is an InvalidArg error. Strings index to
// one-character strings and cannot be written.
func Index(container, key Object, insertIfMissing bool) (*Location, error) {
	switch c := container.(type) {
	case *List:
		idx, err := resolveIndex(key, len(c.Elements))
		if err != nil {
			return nil, err
		}
		return &Location{
			get: func() Object { return c.Elements[idx] },
			set: func(v Object) (Object, error) {
				elems := make([]Object, len(c.Elements))
				copy(elems, c.Elements)
				elems[idx] = v
				return &List{Elements: elems}, nil
			},
		}, nil
	case *Map:
		val, ok := c.Get(key)
		if !ok {
			if !insertIfMissing {
				return nil, NewError(InvalidArg, "key `%s` not found in map", inspectNested(key))
			}
			val = NONE
		}
		return &Location{
			get: func() Object { return val },
			set: func(v Object) (Object, error) {
				m := c.Copy()
				m.Put(key, v)
				return m, nil
			},
		}, nil
	case *String:
		chars := []rune(c.Value)
		idx, err := resolveIndex(key, len(chars))
		if err != nil {
			return nil, err
		}
		return &Location{
			get: func() Object { return &String{Value: string(chars[idx])} },
			set: func(Object) (Object, error) {
				return nil, NewError(UnsupportedOp, "strings cannot be modified")
			},
		}, nil
	}
	return nil, NewError(UnexpectedType, "expected indexable value, got %s", container.Type())
}

// IndexValue reads container[key] without inserting.
func IndexValue(container, key Object) (Object, error) {
	loc, err := Index(container, key, false)
	if err != nil {
		return nil, err
	}
	return loc.Get(), nil
}

func resolveIndex(key Object, length int) (int, error) {
	n, ok := key.(*Num)
	if !ok || !n.Value.IsInteger() {
		return 0, NewError(UnexpectedType, "expected an integer index, got %s", inspectNested(key))
	}
	i := n.Value.Numer()
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return 0, NewError(InvalidArg, "index %s is out of bounds", n.Inspect())
	}
	return int(i), nil
}
