package rsakey

import (
	"crypto/subtle"
	"math/big"

	"golang.org/x/crypto/cryptobyte"

	"github.com/wokdav/sshcrypto/sshcrypto/hashalg"
	"github.com/wokdav/sshcrypto/sshcrypto/secret"
	"github.com/wokdav/sshcrypto/sshcrypto/wire"
)

// sha1Prefix is the byte ending the FF padding followed by the DER
// DigestInfo header for SHA-1: SEQUENCE { SEQUENCE { OID 1.3.14.3.2.26,
// NULL }, OCTET STRING (20 bytes) }.
var sha1Prefix = []byte{
	0x00, 0x30, 0x21, 0x30, 0x09, 0x06, 0x05, 0x2b,
	0x0e, 0x03, 0x02, 0x1a, 0x05, 0x00, 0x04, 0x14,
}

const sha1Len = 20

// Sign returns an SSH-2 "ssh-rsa" signature blob over msg, a PKCS#1 v1.5
// signature with SHA-1. It panics if the modulus is too small to hold the
// padded digest.
func (k *Key) Sign(msg []byte) ([]byte, error) {
	if !k.Complete() {
		return nil, ErrNotPrivate
	}
	hash := hashalg.SHA1.Sum(msg)

	nbytes := (k.Bits() - 1) / 8
	if nbytes-sha1Len-len(sha1Prefix) < 1 {
		panic("rsakey: modulus too small for a PKCS#1 signature")
	}

	// 01 FF .. FF <prefix> <digest>, one byte shorter than the modulus
	block := make([]byte, nbytes)
	block[0] = 1
	for i := 1; i < nbytes-sha1Len-len(sha1Prefix); i++ {
		block[i] = 0xff
	}
	copy(block[nbytes-sha1Len-len(sha1Prefix):], sha1Prefix)
	copy(block[nbytes-sha1Len:], hash)

	in := new(big.Int).SetBytes(block)
	out, err := k.PrivateOp(in)
	if err != nil {
		return nil, err
	}

	b := cryptobyte.NewBuilder(nil)
	wire.AddString(b, []byte(KeyType))
	wire.AddString(b, out.Bytes())

	secret.WipeAll(block, hash)
	secret.WipeInt(in)
	return b.BytesOrPanic(), nil
}

// VerifySignature reports whether sig is a valid "ssh-rsa" signature blob
// over msg. Every region of the decoded block is checked even after a
// mismatch has been found.
func (k *Key) VerifySignature(msg, sig []byte) bool {
	s := cryptobyte.String(sig)
	var name []byte
	if !wire.ReadString(&s, &name) || string(name) != KeyType {
		return false
	}
	in := new(big.Int)
	if !wire.ReadMPInt(&s, in) {
		return false
	}

	bytes := k.Size()
	if bytes < 2+len(sha1Prefix)+sha1Len {
		return false
	}
	out := k.arith().Exp(in, k.E, k.N)
	em := make([]byte, bytes)
	out.FillBytes(em)

	// em is most significant byte first, so em[i] is byte bytes-1-i of
	// the integer
	ok := 1
	ok &= subtle.ConstantTimeByteEq(em[0], 0)
	ok &= subtle.ConstantTimeByteEq(em[1], 1)
	prefixAt := bytes - sha1Len - len(sha1Prefix)
	for i := 2; i < prefixAt; i++ {
		ok &= subtle.ConstantTimeByteEq(em[i], 0xff)
	}
	ok &= subtle.ConstantTimeCompare(em[prefixAt:bytes-sha1Len], sha1Prefix)
	ok &= subtle.ConstantTimeCompare(em[bytes-sha1Len:], hashalg.SHA1.Sum(msg))

	return ok == 1
}
