package bignum

import (
	"math/big"

	"github.com/cronokirby/safenum"
)

type constTimeArith struct{}

// ConstTime is the safenum backend. Inputs are reduced mod m with math/big
// before conversion; the exponentiation and multiplication themselves run
// in time independent of operand values.
//
// Even or trivial moduli (m <= 1) are outside what safenum's Montgomery
// arithmetic handles and fall back to [Std]. RSA moduli and primes are odd.
var ConstTime Arith = constTimeArith{}

func (constTimeArith) Name() string { return "consttime" }

func supported(m *big.Int) bool {
	return m.Bit(0) == 1 && m.Cmp(bigOne) > 0
}

func toNat(x, m *big.Int) *safenum.Nat {
	r := new(big.Int).Mod(x, m)
	return new(safenum.Nat).SetBytes(r.Bytes())
}

func (constTimeArith) Exp(x, y, m *big.Int) *big.Int {
	if !supported(m) || y.Sign() < 0 {
		return Std.Exp(x, y, m)
	}
	mod := safenum.ModulusFromBytes(m.Bytes())
	z := new(safenum.Nat).Exp(toNat(x, m), new(safenum.Nat).SetBytes(y.Bytes()), mod)
	return new(big.Int).SetBytes(z.Bytes())
}

func (constTimeArith) ModMul(x, y, m *big.Int) *big.Int {
	if !supported(m) {
		return Std.ModMul(x, y, m)
	}
	mod := safenum.ModulusFromBytes(m.Bytes())
	z := new(safenum.Nat).ModMul(toNat(x, m), toNat(y, m), mod)
	return new(big.Int).SetBytes(z.Bytes())
}

// ModInverse uses math/big. Inverses are only computed on values whose
// secrecy is already covered by blinding, or on public data during key
// validation.
func (constTimeArith) ModInverse(x, m *big.Int) *big.Int {
	return Std.ModInverse(x, m)
}
