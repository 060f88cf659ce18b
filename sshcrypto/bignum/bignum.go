// Package bignum provides the modular arithmetic used by the RSA code as a
// replaceable capability.
//
// Integers are plain *big.Int values. Every function here treats its
// arguments as immutable and returns a freshly allocated result, so values
// may be shared read-only between keys and goroutines. The owner of a result
// holding secret material is responsible for wiping it (see package secret).
//
// Two backends exist: [Std], the general-purpose math/big implementation,
// and [ConstTime], which routes exponentiation and modular multiplication
// through github.com/cronokirby/safenum so that running time depends only
// on the sizes of the operands.
package bignum

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	bigZero = big.NewInt(0)
	bigOne  = big.NewInt(1)
)

var ErrUnknownBackend = errors.New("bignum: unknown backend")

// Arith is the set of modular operations the RSA code needs beyond
// ordinary addition, subtraction and comparison.
type Arith interface {
	// Name identifies the backend in configuration files.
	Name() string
	// Exp returns x**y mod m for y >= 0 and m > 0.
	Exp(x, y, m *big.Int) *big.Int
	// ModMul returns x*y mod m for m > 0.
	ModMul(x, y, m *big.Int) *big.Int
	// ModInverse returns the inverse of x mod m, or nil if x and m are
	// not coprime.
	ModInverse(x, m *big.Int) *big.Int
}

var backends = map[string]Arith{
	"std":       Std,
	"consttime": ConstTime,
}

// ByName returns the backend registered under name.
func ByName(name string) (Arith, error) {
	a, ok := backends[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return a, nil
}

// Backends lists the names accepted by ByName.
func Backends() []string {
	return []string{Std.Name(), ConstTime.Name()}
}

// Decrement returns x-1.
func Decrement(x *big.Int) *big.Int {
	return new(big.Int).Sub(x, bigOne)
}

// IsOne reports whether x == 1.
func IsOne(x *big.Int) bool {
	return x.Cmp(bigOne) == 0
}

// InOpenRange reports whether 0 < x < m.
func InOpenRange(x, m *big.Int) bool {
	return x.Cmp(bigZero) > 0 && x.Cmp(m) < 0
}

type stdArith struct{}

// Std is the math/big backend.
var Std Arith = stdArith{}

func (stdArith) Name() string { return "std" }

func (stdArith) Exp(x, y, m *big.Int) *big.Int {
	return new(big.Int).Exp(x, y, m)
}

func (stdArith) ModMul(x, y, m *big.Int) *big.Int {
	z := new(big.Int).Mul(x, y)
	return z.Mod(z, m)
}

func (stdArith) ModInverse(x, m *big.Int) *big.Int {
	if m.Sign() <= 0 {
		return nil
	}
	return new(big.Int).ModInverse(x, m)
}
