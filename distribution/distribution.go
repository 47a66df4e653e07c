// Package distribution implements the probability engine of Roller: building
// distributions from literals, combining them under binary operators,
// sampling them, and querying them.
//
// A distribution maps outcomes to integer weights. All algorithms here keep
// weights exact; any weight that would not fit a uint64 fails with an
// arithmetic error.
package distribution

import (
	"math"
	"math/bits"
	"math/rand"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/podhmo/roller/internal/ratio"
	"github.com/podhmo/roller/object"
)

// UnaryOp is an operation on one plain value, such as object.Neg.
type UnaryOp func(v object.Object) (object.Object, error)

// BinaryOp is an operation on two plain values, such as object.Add.
type BinaryOp func(lhs, rhs object.Object) (object.Object, error)

// Builder accumulates weighted outcomes. Duplicate outcomes sum their weights.
type Builder struct {
	dist *object.Distribution
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{dist: object.NewDistribution()}
}

// Add adds w to the weight of outcome.
func (b *Builder) Add(outcome object.Object, w uint64) error {
	if _, ok := outcome.(*object.Distribution); ok {
		return object.NewError(object.UnexpectedType, "an outcome cannot be a distribution")
	}
	return b.dist.AddWeight(outcome, w)
}

// Build returns the finished distribution. A distribution without any
// weight is rejected.
func (b *Builder) Build() (*object.Distribution, error) {
	if b.dist.Total() == 0 {
		return nil, object.NewError(object.InvalidArg, "distribution must have a positive total weight")
	}
	d := b.dist
	b.dist = object.NewDistribution()
	return d, nil
}

// Weight converts an evaluated weight expression to a uint64. It must be a
// non-negative integer.
func Weight(v object.Object) (uint64, error) {
	n, ok := v.(*object.Num)
	if !ok {
		return 0, object.NewError(object.UnexpectedType, "weight must be a number, got %s", v.Type())
	}
	if !n.Value.IsInteger() || n.Value.Sign() < 0 {
		return 0, object.NewError(object.InvalidArg, "weight must be a non-negative integer, got %s", n.Inspect())
	}
	return uint64(n.Value.Numer()), nil
}

// Lift returns v as a distribution: distributions are returned as is and any
// other value becomes a single outcome of weight 1.
func Lift(v object.Object) *object.Distribution {
	if d, ok := v.(*object.Distribution); ok {
		return d
	}
	d := object.NewDistribution()
	d.AddWeight(v, 1) // a weight of 1 on an empty distribution cannot overflow
	return d
}

// Combine returns the distribution of op(a, b) for independent draws of a
// and b. Plain values are lifted first. Results that compare equal share
// one bucket; the first error from op aborts.
func Combine(a, b object.Object, op BinaryOp) (*object.Distribution, error) {
	da, db := Lift(a), Lift(b)
	buckets := treemap.NewWith(object.Comparator)
	var failed error
	da.Each(func(oa object.Object, wa uint64) bool {
		db.Each(func(ob object.Object, wb uint64) bool {
			w, err := mulWeight(wa, wb)
			if err != nil {
				failed = err
				return false
			}
			r, err := op(oa, ob)
			if err != nil {
				failed = err
				return false
			}
			failed = accumulate(buckets, r, w)
			return failed == nil
		})
		return failed == nil
	})
	if failed != nil {
		return nil, failed
	}
	return fromBuckets(buckets)
}

// Map returns the distribution of op(v) for v drawn from d.
func Map(d *object.Distribution, op UnaryOp) (*object.Distribution, error) {
	buckets := treemap.NewWith(object.Comparator)
	var failed error
	d.Each(func(o object.Object, w uint64) bool {
		r, err := op(o)
		if err != nil {
			failed = err
			return false
		}
		failed = accumulate(buckets, r, w)
		return failed == nil
	})
	if failed != nil {
		return nil, failed
	}
	return fromBuckets(buckets)
}

// Pair is one evaluated entry of a distribution literal.
type Pair struct {
	Value  object.Object
	Weight uint64
}

// Mixture builds the distribution of a literal. An entry whose value is
// itself a distribution is flattened into its outcomes, scaled so that the
// entry keeps the share given by its own weight.
func Mixture(pairs []Pair) (*object.Distribution, error) {
	scale := uint64(1)
	for _, p := range pairs {
		inner, ok := p.Value.(*object.Distribution)
		if !ok || p.Weight == 0 {
			continue
		}
		var err error
		if scale, err = lcm(scale, inner.Total()); err != nil {
			return nil, err
		}
	}

	b := NewBuilder()
	for _, p := range pairs {
		inner, ok := p.Value.(*object.Distribution)
		if !ok {
			w, err := mulWeight(p.Weight, scale)
			if err != nil {
				return nil, err
			}
			if err := b.Add(p.Value, w); err != nil {
				return nil, err
			}
			continue
		}
		if p.Weight == 0 {
			continue
		}
		factor, err := mulWeight(p.Weight, scale/inner.Total())
		if err != nil {
			return nil, err
		}
		var failed error
		inner.Each(func(o object.Object, w uint64) bool {
			var scaled uint64
			if scaled, failed = mulWeight(w, factor); failed != nil {
				return false
			}
			failed = b.Add(o, scaled)
			return failed == nil
		})
		if failed != nil {
			return nil, failed
		}
	}
	return b.Build()
}

// Dice returns the distribution of the sum of count fair dice with sides
// faces each. Zero dice always sum to 0.
func Dice(count, sides int64) (*object.Distribution, error) {
	if count < 0 {
		return nil, object.NewError(object.InvalidArg, "dice count must not be negative, got %d", count)
	}
	if sides < 1 {
		return nil, object.NewError(object.InvalidArg, "dice must have at least one side, got %d", sides)
	}
	die := object.NewDistribution()
	for face := int64(1); face <= sides; face++ {
		if err := die.AddWeight(object.NewInt(face), 1); err != nil {
			return nil, err
		}
	}
	sum := Lift(object.NewInt(0))
	for i := int64(0); i < count; i++ {
		next, err := Combine(sum, die, object.Add)
		if err != nil {
			return nil, err
		}
		sum = next
	}
	return sum, nil
}

// DiceOf is Dice over evaluated operands. When the count or the sides is a
// distribution, every (count, sides) pair contributes its own Dice
// distribution, weighted by the product of the two operand weights.
func DiceOf(count, sides object.Object) (*object.Distribution, error) {
	_, cd := count.(*object.Distribution)
	_, sd := sides.(*object.Distribution)
	if !cd && !sd {
		c, err := integer("dice count", count)
		if err != nil {
			return nil, err
		}
		s, err := integer("dice sides", sides)
		if err != nil {
			return nil, err
		}
		return Dice(c, s)
	}

	var pairs []Pair
	var failed error
	Lift(count).Each(func(c object.Object, cw uint64) bool {
		Lift(sides).Each(func(s object.Object, sw uint64) bool {
			var d *object.Distribution
			if d, failed = DiceOf(c, s); failed != nil {
				return false
			}
			var w uint64
			if w, failed = mulWeight(cw, sw); failed != nil {
				return false
			}
			pairs = append(pairs, Pair{Value: d, Weight: w})
			return true
		})
		return failed == nil
	})
	if failed != nil {
		return nil, failed
	}
	return Mixture(pairs)
}

func integer(what string, v object.Object) (int64, error) {
	n, ok := v.(*object.Num)
	if !ok || !n.Value.IsInteger() {
		return 0, object.NewError(object.UnexpectedType, "%s must be an integer, got %s", what, v.Inspect())
	}
	return n.Value.Numer(), nil
}

// Collapse draws one outcome. Each outcome owns a contiguous slice of
// [0, total) as wide as its weight, in outcome order, and a uniform integer
// from that range picks the slice.
func Collapse(d *object.Distribution, rng *rand.Rand) (object.Object, error) {
	total := d.Total()
	if total == 0 {
		return nil, object.NewError(object.InvalidArg, "cannot sample an empty distribution")
	}
	pick := uniform(rng, total)
	var outcome object.Object
	d.Each(func(o object.Object, w uint64) bool {
		if pick < w {
			outcome = o
			return false
		}
		pick -= w
		return true
	})
	return outcome, nil
}

func uniform(rng *rand.Rand, n uint64) uint64 {
	if n <= math.MaxInt64 {
		return uint64(rng.Int63n(int64(n)))
	}
	// rejection sampling keeps the draw unbiased for totals past MaxInt64
	limit := math.MaxUint64 - math.MaxUint64%n
	for {
		if v := rng.Uint64(); v < limit {
			return v % n
		}
	}
}

// Probability returns the exact probability of outcome in d.
func Probability(d *object.Distribution, outcome object.Object) (*object.Num, error) {
	return fraction(d.Weight(outcome), d.Total())
}

// Mean returns the exact expected value of d. Every outcome must be a number.
func Mean(d *object.Distribution) (*object.Num, error) {
	total, err := weightRatio(d.Total())
	if err != nil {
		return nil, err
	}
	sum := ratio.Int(0)
	var failed error
	d.Each(func(o object.Object, w uint64) bool {
		n, ok := o.(*object.Num)
		if !ok {
			failed = object.NewError(object.UnexpectedType, "mean requires numeric outcomes, got %s", o.Type())
			return false
		}
		wr, err := weightRatio(w)
		if err != nil {
			failed = err
			return false
		}
		term, err := n.Value.Mul(wr)
		if err == nil {
			sum, err = sum.Add(term)
		}
		if err != nil {
			failed = object.NewError(object.ArithmeticError, "mean: %v", err)
			return false
		}
		return true
	})
	if failed != nil {
		return nil, failed
	}
	mean, err := sum.Quo(total)
	if err != nil {
		return nil, object.NewError(object.ArithmeticError, "mean: %v", err)
	}
	return &object.Num{Value: mean}, nil
}

func fraction(w, total uint64) (*object.Num, error) {
	if total == 0 {
		return nil, object.NewError(object.ArithmeticError, "division by zero")
	}
	g := gcd(w, total)
	num, err := weightRatio(w / g)
	if err != nil {
		return nil, err
	}
	den, err := weightRatio(total / g)
	if err != nil {
		return nil, err
	}
	r, err := num.Quo(den)
	if err != nil {
		return nil, object.NewError(object.ArithmeticError, "%v", err)
	}
	return &object.Num{Value: r}, nil
}

func weightRatio(w uint64) (ratio.Ratio, error) {
	if w > math.MaxInt64 {
		return ratio.Ratio{}, object.NewError(object.ArithmeticError, "integer overflow")
	}
	return ratio.Int(int64(w)), nil
}

func accumulate(buckets *treemap.Map, outcome object.Object, w uint64) error {
	if old, ok := buckets.Get(outcome); ok {
		sum, carry := bits.Add64(old.(uint64), w, 0)
		if carry != 0 {
			return object.NewError(object.ArithmeticError, "distribution weight overflow")
		}
		w = sum
	}
	buckets.Put(outcome, w)
	return nil
}

func fromBuckets(buckets *treemap.Map) (*object.Distribution, error) {
	b := NewBuilder()
	it := buckets.Iterator()
	for it.Next() {
		if err := b.Add(it.Key().(object.Object), it.Value().(uint64)); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

func mulWeight(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, object.NewError(object.ArithmeticError, "distribution weight overflow")
	}
	return lo, nil
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	return mulWeight(a/gcd(a, b), b)
}
