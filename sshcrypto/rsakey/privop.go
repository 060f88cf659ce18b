package rsakey

import (
	"math/big"

	"github.com/wokdav/sshcrypto/sshcrypto/bignum"
	"github.com/wokdav/sshcrypto/sshcrypto/hashalg"
	"github.com/wokdav/sshcrypto/sshcrypto/secret"
	"github.com/wokdav/sshcrypto/sshcrypto/wire"
)

const blindingLabel = "RSA deterministic blinding"

// crtModPow computes base^exp mod p*q from the two half-size
// exponentiations mod p and mod q, given iqmp = q^-1 mod p.
func crtModPow(a bignum.Arith, base, exp, mod, p, q, iqmp *big.Int) *big.Int {
	pm1 := bignum.Decrement(p)
	qm1 := bignum.Decrement(q)
	pexp := new(big.Int).Mod(exp, pm1)
	qexp := new(big.Int).Mod(exp, qm1)

	presult := a.Exp(base, pexp, p)
	qresult := a.Exp(base, qexp, q)

	// qresult + (presult-qresult)*iqmp*q is congruent to qresult mod q
	// and to presult mod p
	if presult.Cmp(qresult) < 0 {
		presult.Add(presult, p)
	}
	diff := new(big.Int).Sub(presult, qresult)
	multiplier := new(big.Int).Mul(iqmp, q)
	ret := new(big.Int).Mul(multiplier, diff)
	ret.Add(ret, qresult)
	ret.Mod(ret, mod)

	secret.WipeInts(pm1, qm1, pexp, qexp, presult, qresult, diff, multiplier)
	return ret
}

// blindingStream is the deterministic byte source blinding factors are
// drawn from. Block i is SHA-512(SHA-512(label || uint32(i) || mpint(d)) ||
// mpint(input)), so the factor depends on the private exponent and the
// input but needs no random number generator.
type blindingStream struct {
	d, input []byte // SSH-2 encodings
	seq      uint32
	block    []byte
	used     int
}

func newBlindingStream(d, input *big.Int) *blindingStream {
	return &blindingStream{
		d:     wire.AppendMPInt(nil, d),
		input: wire.AppendMPInt(nil, input),
		block: make([]byte, hashalg.SHA512.Size()),
		used:  hashalg.SHA512.Size(),
	}
}

func (b *blindingStream) refill() {
	h := hashalg.SHA512.New()
	h.Write([]byte(blindingLabel))
	h.Write(wire.AppendUint32(nil, b.seq))
	h.Write(b.d)
	h.Final(b.block)
	b.seq++

	h = hashalg.SHA512.New()
	h.Write(b.block)
	h.Write(b.input)
	h.Final(b.block)
	b.used = 0
}

func (b *blindingStream) nextByte() byte {
	if b.used >= len(b.block) {
		b.refill()
	}
	c := b.block[b.used]
	b.used++
	return c
}

// candidate returns a number of the given bit length. Bits are assigned
// from the top down, each byte of the stream supplying eight of them
// least significant bit first.
func (b *blindingStream) candidate(bits int) *big.Int {
	buf := make([]byte, (bits+7)/8)
	var c byte
	left := 0
	for i := bits - 1; i >= 0; i-- {
		if left == 0 {
			c = b.nextByte()
			left = 8
		}
		buf[len(buf)-1-i/8] |= (c & 1) << (i % 8)
		c >>= 1
		left--
	}
	r := new(big.Int).SetBytes(buf)
	secret.Wipe(buf)
	return r
}

func (b *blindingStream) wipe() {
	secret.WipeAll(b.d, b.input, b.block)
}

// blindingFactor draws candidates until one lies in (0, n) and is
// invertible mod n. It returns the factor and its inverse.
func (k *Key) blindingFactor(input *big.Int) (r, rinv *big.Int) {
	a := k.arith()
	stream := newBlindingStream(k.D, input)
	defer stream.wipe()

	bits := k.N.BitLen()
	for {
		r = stream.candidate(bits)
		if !bignum.InOpenRange(r, k.N) {
			secret.WipeInt(r)
			continue
		}
		if rinv = a.ModInverse(r, k.N); rinv == nil {
			secret.WipeInt(r)
			continue
		}
		return r, rinv
	}
}

// PrivateOp returns input^D mod N. The input is blinded with a factor
// derived from D and the input before the CRT exponentiation so its
// timing is unrelated to either.
func (k *Key) PrivateOp(input *big.Int) (*big.Int, error) {
	if !k.Complete() {
		return nil, ErrNotPrivate
	}
	a := k.arith()

	// r is used as y^d; raising it to e gives y
	r, rinv := k.blindingFactor(input)
	renc := crtModPow(a, r, k.E, k.N, k.P, k.Q, k.Iqmp)
	blinded := a.ModMul(input, renc, k.N)
	retBlinded := crtModPow(a, blinded, k.D, k.N, k.P, k.Q, k.Iqmp)
	ret := a.ModMul(retBlinded, rinv, k.N)

	secret.WipeInts(r, rinv, renc, blinded, retBlinded)
	return ret, nil
}

// DecryptSSH1 performs the SSH-1 RSA decryption, the raw private
// operation. Padding removal is left to the caller.
func (k *Key) DecryptSSH1(input *big.Int) (*big.Int, error) {
	return k.PrivateOp(input)
}
