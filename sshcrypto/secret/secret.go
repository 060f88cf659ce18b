// Package secret clears key material in place before it is dropped.
//
// The garbage collector gives no guarantee about when, or whether, freed
// memory is overwritten, so every buffer or integer that held a private
// exponent, a prime, a blinding factor or a MAC key goes through here first.
package secret

import (
	"crypto/subtle"
	"math/big"
)

// Wipe overwrites b with zeros.
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	zeros := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zeros)
}

// WipeAll zeros every given slice.
func WipeAll(slices ...[]byte) {
	for _, s := range slices {
		Wipe(s)
	}
}

// WipeInt zeros the limbs backing x and leaves x equal to 0.
// A nil x is ignored.
func WipeInt(x *big.Int) {
	if x == nil {
		return
	}
	words := x.Bits()
	for i := range words {
		words[i] = 0
	}
	x.SetInt64(0)
}

// WipeInts calls WipeInt on each argument.
func WipeInts(xs ...*big.Int) {
	for _, x := range xs {
		WipeInt(x)
	}
}
