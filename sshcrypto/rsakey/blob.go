package rsakey

import (
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"

	"github.com/wokdav/sshcrypto/sshcrypto/wire"
)

// SSH1Order is the field order of an SSH-1 public key record.
type SSH1Order int

const (
	ExponentFirst SSH1Order = iota
	ModulusFirst
)

func (o SSH1Order) String() string {
	switch o {
	case ExponentFirst:
		return "exponent-first"
	case ModulusFirst:
		return "modulus-first"
	default:
		return fmt.Sprintf("SSH1Order(%d)", int(o))
	}
}

// ReadSSH1Public parses an SSH-1 public key record: a uint32 bit count
// followed by the exponent and modulus in the given order. It returns the
// key and the number of bytes consumed.
func ReadSSH1Public(data []byte, order SSH1Order) (*Key, int, error) {
	s := cryptobyte.String(data)
	var bits uint32
	if !s.ReadUint32(&bits) {
		return nil, 0, ErrMalformed
	}
	consumed := 4

	k := &Key{N: new(big.Int), E: new(big.Int)}
	first, second := k.E, k.N
	if order == ModulusFirst {
		first, second = k.N, k.E
	}
	for _, v := range []*big.Int{first, second} {
		n := wire.ReadSSH1MP(&s, v)
		if n < 0 {
			return nil, 0, ErrMalformed
		}
		consumed += n
	}
	if k.N.Sign() == 0 {
		return nil, 0, fmt.Errorf("%w: zero modulus", ErrMalformed)
	}
	return k, consumed, nil
}

// ReadSSH1Private parses an SSH-1 private exponent record into k and
// returns the number of bytes consumed.
func ReadSSH1Private(data []byte, k *Key) (int, error) {
	s := cryptobyte.String(data)
	d := new(big.Int)
	n := wire.ReadSSH1MP(&s, d)
	if n < 0 {
		return 0, ErrMalformed
	}
	k.D = d
	return n, nil
}

// SSH1PublicBlob encodes the public half as an SSH-1 record.
func (k *Key) SSH1PublicBlob(order SSH1Order) []byte {
	b := cryptobyte.NewBuilder(nil)
	b.AddUint32(uint32(k.Bits()))
	if order == ModulusFirst {
		wire.AddSSH1MP(b, k.N)
		wire.AddSSH1MP(b, k.E)
	} else {
		wire.AddSSH1MP(b, k.E)
		wire.AddSSH1MP(b, k.N)
	}
	return b.BytesOrPanic()
}

// PublicBlobLen reports how many bytes of data an SSH-1 public key record
// (bit count, exponent, modulus) occupies, or -1 if data is too short.
func PublicBlobLen(data []byte) int {
	s := cryptobyte.String(data)
	if !s.Skip(4) {
		return -1
	}
	n := 4
	for i := 0; i < 2; i++ {
		m := wire.ReadSSH1MP(&s, nil)
		if m < 0 {
			return -1
		}
		n += m
	}
	return n
}

func readPublic(s *cryptobyte.String) (*Key, error) {
	var name []byte
	if !wire.ReadString(s, &name) || string(name) != KeyType {
		return nil, fmt.Errorf("%w: not an %s key", ErrMalformed, KeyType)
	}
	k := &Key{N: new(big.Int), E: new(big.Int)}
	if !wire.ReadMPInt(s, k.E) || !wire.ReadMPInt(s, k.N) {
		return nil, ErrMalformed
	}
	if k.N.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero modulus", ErrMalformed)
	}
	return k, nil
}

// ParsePublicBlob parses an SSH-2 public key blob: "ssh-rsa", e, n.
func ParsePublicBlob(blob []byte) (*Key, error) {
	s := cryptobyte.String(blob)
	return readPublic(&s)
}

// PublicKeyBits returns the modulus size of an SSH-2 public key blob.
func PublicKeyBits(blob []byte) (int, error) {
	k, err := ParsePublicBlob(blob)
	if err != nil {
		return 0, err
	}
	return k.Bits(), nil
}

// ParsePrivateBlob combines an SSH-2 public blob with the matching
// private blob (d, p, q, iqmp) and verifies the result. A key failing
// verification is wiped and not returned.
func ParsePrivateBlob(pub, priv []byte) (*Key, error) {
	k, err := ParsePublicBlob(pub)
	if err != nil {
		return nil, err
	}

	s := cryptobyte.String(priv)
	k.D, k.P, k.Q, k.Iqmp = new(big.Int), new(big.Int), new(big.Int), new(big.Int)
	for _, v := range []*big.Int{k.D, k.P, k.Q, k.Iqmp} {
		if !wire.ReadMPInt(&s, v) {
			k.Wipe()
			return nil, ErrMalformed
		}
	}

	if err := k.Verify(); err != nil {
		k.Wipe()
		return nil, err
	}
	return k, nil
}

// ParseOpenSSHBlob parses the OpenSSH agent and key file encoding of a
// private key: n, e, d, iqmp, p, q with no algorithm name. It returns the
// verified key and whatever follows it in blob.
func ParseOpenSSHBlob(blob []byte) (*Key, []byte, error) {
	s := cryptobyte.String(blob)
	k := &Key{
		N: new(big.Int), E: new(big.Int), D: new(big.Int),
		Iqmp: new(big.Int), P: new(big.Int), Q: new(big.Int),
	}
	for _, v := range []*big.Int{k.N, k.E, k.D, k.Iqmp, k.P, k.Q} {
		if !wire.ReadMPInt(&s, v) {
			k.Wipe()
			return nil, nil, ErrMalformed
		}
	}
	if k.N.Sign() == 0 {
		k.Wipe()
		return nil, nil, fmt.Errorf("%w: zero modulus", ErrMalformed)
	}

	if err := k.Verify(); err != nil {
		k.Wipe()
		return nil, nil, err
	}
	return k, s, nil
}

// PublicBlob encodes the public half as an SSH-2 blob.
func (k *Key) PublicBlob() []byte {
	b := cryptobyte.NewBuilder(nil)
	wire.AddString(b, []byte(KeyType))
	wire.AddMPInt(b, k.E)
	wire.AddMPInt(b, k.N)
	return b.BytesOrPanic()
}

// PrivateBlob encodes d, p, q and iqmp as an SSH-2 private blob.
func (k *Key) PrivateBlob() ([]byte, error) {
	if !k.Complete() {
		return nil, ErrNotPrivate
	}
	b := cryptobyte.NewBuilder(nil)
	for _, v := range []*big.Int{k.D, k.P, k.Q, k.Iqmp} {
		wire.AddMPInt(b, v)
	}
	return b.BytesOrPanic(), nil
}

// OpenSSHBlob encodes the key in the order ParseOpenSSHBlob reads it.
func (k *Key) OpenSSHBlob() ([]byte, error) {
	if !k.Complete() {
		return nil, ErrNotPrivate
	}
	b := cryptobyte.NewBuilder(nil)
	for _, v := range []*big.Int{k.N, k.E, k.D, k.Iqmp, k.P, k.Q} {
		wire.AddMPInt(b, v)
	}
	return b.BytesOrPanic(), nil
}
