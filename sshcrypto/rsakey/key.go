// Package rsakey implements the SSH RSA key: its wire encodings for both
// protocol versions and the OpenSSH interchange format, the blinded CRT
// private operation, PKCS#1 v1.5 SHA-1 signatures and RSAES-OAEP
// encryption for RSA key exchange.
//
// Arithmetic goes through a bignum.Arith so the numeric backend can be
// swapped per key. Values are *big.Int and are never modified in place
// once they are part of a Key, except by Wipe.
package rsakey

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/wokdav/sshcrypto/sshcrypto/bignum"
	"github.com/wokdav/sshcrypto/sshcrypto/hashalg"
	"github.com/wokdav/sshcrypto/sshcrypto/secret"
	"github.com/wokdav/sshcrypto/sshcrypto/wire"
)

// KeyType is the SSH-2 algorithm name of RSA keys and signatures.
const KeyType = "ssh-rsa"

var (
	ErrMalformed    = errors.New("rsakey: malformed key data")
	ErrInconsistent = errors.New("rsakey: inconsistent private key")
	ErrNotPrivate   = errors.New("rsakey: key has no private part")
	ErrKeyTooShort  = errors.New("rsakey: key too short")
	ErrMessageSize  = errors.New("rsakey: message size out of range")
)

// Key is an RSA key. A public key has only N and E set; a complete
// private key also carries D, P, Q and Iqmp with P > Q and
// Iqmp = Q^-1 mod P.
type Key struct {
	N *big.Int // modulus
	E *big.Int // public exponent

	D    *big.Int // private exponent
	P, Q *big.Int
	Iqmp *big.Int

	Comment string

	// Arith performs the modular arithmetic. Nil means bignum.Std.
	Arith bignum.Arith
}

func (k *Key) arith() bignum.Arith {
	if k.Arith == nil {
		return bignum.Std
	}
	return k.Arith
}

// Bits returns the bit length of the modulus.
func (k *Key) Bits() int {
	return k.N.BitLen()
}

// Size returns the modulus length in bytes.
func (k *Key) Size() int {
	return (k.N.BitLen() + 7) / 8
}

// HasPrivate reports whether the private exponent is present.
func (k *Key) HasPrivate() bool {
	return k.D != nil
}

// Complete reports whether every component the private operation needs
// is present.
func (k *Key) Complete() bool {
	return k.N != nil && k.E != nil && k.D != nil &&
		k.P != nil && k.Q != nil && k.Iqmp != nil
}

// Public returns a copy of k without the private components.
func (k *Key) Public() *Key {
	return &Key{N: k.N, E: k.E, Comment: k.Comment, Arith: k.Arith}
}

// Wipe zeroes the secret components and forgets them along with the
// comment. The public half stays usable.
func (k *Key) Wipe() {
	secret.WipeInts(k.D, k.P, k.Q, k.Iqmp)
	k.D, k.P, k.Q, k.Iqmp = nil, nil, nil, nil
	k.Comment = ""
}

// Verify checks the private half against the public half and brings it
// into canonical form: N = P*Q, E*D = 1 mod P-1 and mod Q-1, P > Q and
// Iqmp*Q = 1 mod P. If P < Q the primes are swapped and Iqmp is
// recomputed.
func (k *Key) Verify() error {
	if !k.Complete() {
		return ErrNotPrivate
	}
	a := k.arith()

	one := big.NewInt(1)
	if k.P.Cmp(one) <= 0 || k.Q.Cmp(one) <= 0 {
		return fmt.Errorf("%w: degenerate prime", ErrInconsistent)
	}
	if new(big.Int).Mul(k.P, k.Q).Cmp(k.N) != 0 {
		return fmt.Errorf("%w: modulus is not p*q", ErrInconsistent)
	}

	ed := new(big.Int).Mul(k.E, k.D)
	defer secret.WipeInt(ed)
	for _, prime := range []*big.Int{k.P, k.Q} {
		pm1 := bignum.Decrement(prime)
		r := new(big.Int).Mod(ed, pm1)
		ok := bignum.IsOne(r)
		secret.WipeInts(pm1, r)
		if !ok {
			return fmt.Errorf("%w: exponents do not match", ErrInconsistent)
		}
	}

	if k.P.Cmp(k.Q) <= 0 {
		k.P, k.Q = k.Q, k.P
		iqmp := a.ModInverse(k.Q, k.P)
		if iqmp == nil {
			return fmt.Errorf("%w: q is not invertible mod p", ErrInconsistent)
		}
		secret.WipeInt(k.Iqmp)
		k.Iqmp = iqmp
	}

	check := a.ModMul(k.Iqmp, k.Q, k.P)
	ok := bignum.IsOne(check)
	secret.WipeInt(check)
	if !ok {
		return fmt.Errorf("%w: iqmp is not the inverse of q", ErrInconsistent)
	}
	return nil
}

// Fingerprint returns "<bits> <md5 hex>[ <comment>]", where the MD5 is
// taken over the SSH-1 encodings of N and E. A positive maxLen limits the
// result to maxLen-1 bytes, the room left in a buffer of maxLen bytes
// after its terminator.
func (k *Key) Fingerprint(maxLen int) string {
	var buf []byte
	buf = wire.AppendSSH1MP(buf, k.N)
	buf = wire.AppendSSH1MP(buf, k.E)
	digest := hashalg.MD5.Sum(buf)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d ", k.Bits())
	for i, b := range digest {
		if i > 0 {
			sb.WriteByte(':')
		}
		fmt.Fprintf(&sb, "%02x", b)
	}
	if k.Comment != "" {
		sb.WriteByte(' ')
		sb.WriteString(k.Comment)
	}

	s := sb.String()
	if maxLen > 0 && len(s) > maxLen-1 {
		s = s[:maxLen-1]
	}
	return s
}

// FormatLen is an upper bound on len(k.String()).
func (k *Key) FormatLen() int {
	mdlen := (k.N.BitLen() + 15) / 16
	exlen := (k.E.BitLen() + 15) / 16
	return 4*(mdlen+exlen) + 20
}

// String renders the public half as "0xEXP,0xMOD" in lower-case hex.
func (k *Key) String() string {
	return fmt.Sprintf("0x%x,0x%x", k.E, k.N)
}
