// Package ratio implements fixed-width exact rational numbers.
//
// A Ratio is an int64 numerator over an int64 denominator, always kept in
// lowest terms with a positive denominator. Every operation re-normalizes its
// result. Operations whose exact result does not fit in 64 bits report
// ErrOverflow instead of silently wrapping.
package ratio

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

var (
	// ErrOverflow is returned when an exact result does not fit in int64.
	ErrOverflow = errors.New("integer overflow")
	// ErrDivisionByZero is returned for a zero denominator or divisor.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrNotFinite is returned when converting NaN or an infinity.
	ErrNotFinite = errors.New("not a finite number")
)

// MaxApproxDenominator bounds the denominator chosen by FromFloat.
const MaxApproxDenominator = 1 << 20

// Ratio is an exact rational number. The zero value is 0.
type Ratio struct {
	num int64
	den int64 // 0 in the zero value, read as 1
}

// Int returns the integer n as a Ratio.
func Int(n int64) Ratio {
	return Ratio{num: n, den: 1}
}

// New returns n/d in lowest terms.
func New(n, d int64) (Ratio, error) {
	if d == 0 {
		return Ratio{}, ErrDivisionByZero
	}
	return normalize(n < 0 != (d < 0), uabs(n), uabs(d))
}

// MustNew is like New but panics on error. It is meant for constants and tests.
func MustNew(n, d int64) Ratio {
	r, err := New(n, d)
	if err != nil {
		panic(fmt.Sprintf("ratio.MustNew(%d, %d): %v", n, d, err))
	}
	return r
}

// Numer returns the numerator.
func (r Ratio) Numer() int64 { return r.num }

// Denom returns the (always positive) denominator.
func (r Ratio) Denom() int64 {
	if r.den == 0 {
		return 1
	}
	return r.den
}

// IsInteger reports whether the denominator is 1.
func (r Ratio) IsInteger() bool { return r.Denom() == 1 }

// IsZero reports whether r is 0.
func (r Ratio) IsZero() bool { return r.num == 0 }

// Sign returns -1, 0 or +1.
func (r Ratio) Sign() int {
	switch {
	case r.num < 0:
		return -1
	case r.num > 0:
		return 1
	}
	return 0
}

// Float64 returns the nearest float64 value.
func (r Ratio) Float64() float64 {
	return float64(r.num) / float64(r.Denom())
}

// String renders an integer as "n" and anything else as "n/d".
func (r Ratio) String() string {
	if r.IsInteger() {
		return fmt.Sprintf("%d", r.num)
	}
	return fmt.Sprintf("%d/%d", r.num, r.Denom())
}

// Neg returns -r.
func (r Ratio) Neg() (Ratio, error) {
	if r.num == math.MinInt64 {
		return Ratio{}, ErrOverflow
	}
	return Ratio{num: -r.num, den: r.Denom()}, nil
}

// Add returns r + s.
func (r Ratio) Add(s Ratio) (Ratio, error) {
	a, b := r.num, r.Denom()
	c, d := s.num, s.Denom()
	g := int64(gcd(uint64(b), uint64(d)))
	x, ok1 := mul(a, d/g)
	y, ok2 := mul(c, b/g)
	sum, ok3 := add(x, y)
	den, ok4 := mul(b/g, d)
	if !(ok1 && ok2 && ok3 && ok4) {
		return Ratio{}, ErrOverflow
	}
	return New(sum, den)
}

// Sub returns r - s.
func (r Ratio) Sub(s Ratio) (Ratio, error) {
	neg, err := s.Neg()
	if err != nil {
		return Ratio{}, err
	}
	return r.Add(neg)
}

// Mul returns r * s.
func (r Ratio) Mul(s Ratio) (Ratio, error) {
	a, b := r.num, r.Denom()
	c, d := s.num, s.Denom()
	if a == 0 || c == 0 {
		return Ratio{den: 1}, nil
	}
	// cross-cancel first so that intermediates stay small
	g1 := gcd(uabs(a), uint64(d))
	g2 := gcd(uabs(c), uint64(b))
	neg := a < 0 != (c < 0)
	n, ok1 := umul(uabs(a)/g1, uabs(c)/g2)
	den, ok2 := umul(uint64(b)/g2, uint64(d)/g1)
	if !(ok1 && ok2) {
		return Ratio{}, ErrOverflow
	}
	return normalize(neg, n, den)
}

// Inv returns 1/r.
func (r Ratio) Inv() (Ratio, error) {
	if r.num == 0 {
		return Ratio{}, ErrDivisionByZero
	}
	return normalize(r.num < 0, uint64(r.Denom()), uabs(r.num))
}

// Quo returns r / s. The divisor is checked against its exact value.
func (r Ratio) Quo(s Ratio) (Ratio, error) {
	inv, err := s.Inv()
	if err != nil {
		return Ratio{}, err
	}
	return r.Mul(inv)
}

// Pow returns r raised to the integer power e.
func (r Ratio) Pow(e int64) (Ratio, error) {
	base := Ratio{num: r.num, den: r.Denom()}
	var ue uint64
	if e < 0 {
		inv, err := base.Inv()
		if err != nil {
			return Ratio{}, err
		}
		base = inv
		ue = uabs(e)
	} else {
		ue = uint64(e)
	}

	// 0, 1 and -1 never overflow, however large the exponent
	switch {
	case ue == 0:
		return Int(1), nil
	case base.num == 0:
		return Int(0), nil
	case base.IsInteger() && (base.num == 1 || base.num == -1):
		if base.num == -1 && ue%2 == 1 {
			return Int(-1), nil
		}
		return Int(1), nil
	}

	neg := base.num < 0 && ue%2 == 1
	n, ok1 := upow(uabs(base.num), ue)
	d, ok2 := upow(uint64(base.Denom()), ue)
	if !(ok1 && ok2) {
		return Ratio{}, ErrOverflow
	}
	// powers of coprime numbers stay coprime
	return normalize(neg, n, d)
}

// Cmp compares r and s and returns -1, 0 or +1.
func (r Ratio) Cmp(s Ratio) int {
	x, ok1 := mul(r.num, s.Denom())
	y, ok2 := mul(s.num, r.Denom())
	if ok1 && ok2 {
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	// cross products overflowed int64; compare them exactly
	bx := new(big.Int).Mul(big.NewInt(r.num), big.NewInt(s.Denom()))
	by := new(big.Int).Mul(big.NewInt(s.num), big.NewInt(r.Denom()))
	return bx.Cmp(by)
}

// Equal reports whether r == s.
func (r Ratio) Equal(s Ratio) bool {
	return r.num == s.num && r.Denom() == s.Denom()
}

// FromFloat converts f to the closest Ratio whose denominator does not exceed
// MaxApproxDenominator. The conversion is lossy for most inputs.
func FromFloat(f float64) (Ratio, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Ratio{}, ErrNotFinite
	}
	if math.Abs(f) >= 1<<62 {
		return Ratio{}, ErrOverflow
	}
	if f == math.Trunc(f) {
		return Int(int64(f)), nil
	}

	// continued fraction expansion, stopping before the denominator bound
	var h0, h1 int64 = 0, 1
	var k0, k1 int64 = 1, 0
	x := f
	for i := 0; i < 64; i++ {
		a := math.Floor(x)
		ai := int64(a)
		h2, ok1 := mul(ai, h1)
		k2, ok2 := mul(ai, k1)
		if ok1 {
			h2, ok1 = add(h2, h0)
		}
		if ok2 {
			k2, ok2 = add(k2, k0)
		}
		if !(ok1 && ok2) || k2 > MaxApproxDenominator {
			break
		}
		h0, h1 = h1, h2
		k0, k1 = k1, k2
		frac := x - a
		if frac < 1e-12 {
			break
		}
		x = 1 / frac
	}
	return New(h1, k1)
}

func normalize(neg bool, n, d uint64) (Ratio, error) {
	if d == 0 {
		return Ratio{}, ErrDivisionByZero
	}
	if n == 0 {
		return Ratio{den: 1}, nil
	}
	g := gcd(n, d)
	n, d = n/g, d/g
	if d > math.MaxInt64 {
		return Ratio{}, ErrOverflow
	}
	if neg {
		if n > 1<<63 {
			return Ratio{}, ErrOverflow
		}
		return Ratio{num: int64(-n), den: int64(d)}, nil // -(1<<63) wraps to MinInt64
	}
	if n > math.MaxInt64 {
		return Ratio{}, ErrOverflow
	}
	return Ratio{num: int64(n), den: int64(d)}, nil
}

func uabs(n int64) uint64 {
	if n < 0 {
		return uint64(-(n + 1)) + 1
	}
	return uint64(n)
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func add(a, b int64) (int64, bool) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, false
	}
	return c, true
}

func mul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) || c/b != a {
		return 0, false
	}
	return c, true
}

func umul(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}

func upow(b, e uint64) (uint64, bool) {
	result := uint64(1)
	for e > 0 {
		if e&1 == 1 {
			var ok bool
			if result, ok = umul(result, b); !ok {
				return 0, false
			}
		}
		e >>= 1
		if e > 0 {
			var ok bool
			if b, ok = umul(b, b); !ok {
				return 0, false
			}
		}
	}
	return result, true
}
