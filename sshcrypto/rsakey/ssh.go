package rsakey

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/ssh"

	"github.com/wokdav/sshcrypto/sshcrypto/wire"
)

// SSHPublicKey returns k as a golang.org/x/crypto/ssh public key.
func (k *Key) SSHPublicKey() (ssh.PublicKey, error) {
	return ssh.ParsePublicKey(k.PublicBlob())
}

// FromSSHPublicKey converts an "ssh-rsa" public key.
func FromSSHPublicKey(pub ssh.PublicKey) (*Key, error) {
	if pub.Type() != KeyType {
		return nil, fmt.Errorf("%w: key type %s", ErrMalformed, pub.Type())
	}
	return ParsePublicBlob(pub.Marshal())
}

// FromStdPublic converts a crypto/rsa public key.
func FromStdPublic(pub *rsa.PublicKey) *Key {
	return &Key{
		N: new(big.Int).Set(pub.N),
		E: big.NewInt(int64(pub.E)),
	}
}

// FromStd converts a two-prime crypto/rsa private key. The components are
// copied and verified.
func FromStd(priv *rsa.PrivateKey) (*Key, error) {
	if len(priv.Primes) != 2 {
		return nil, fmt.Errorf("%w: %d primes, only two-prime keys are supported", ErrMalformed, len(priv.Primes))
	}
	k := FromStdPublic(&priv.PublicKey)
	k.D = new(big.Int).Set(priv.D)
	k.P = new(big.Int).Set(priv.Primes[0])
	k.Q = new(big.Int).Set(priv.Primes[1])
	k.Iqmp = k.arith().ModInverse(k.Q, k.P)
	if k.Iqmp == nil {
		k.Wipe()
		return nil, fmt.Errorf("%w: q is not invertible mod p", ErrInconsistent)
	}
	if err := k.Verify(); err != nil {
		k.Wipe()
		return nil, err
	}
	return k, nil
}

// StdPublic returns the public half as a crypto/rsa key.
func (k *Key) StdPublic() (*rsa.PublicKey, error) {
	if !k.E.IsInt64() || k.E.Int64() > math.MaxInt32 {
		return nil, errors.New("rsakey: public exponent too large for crypto/rsa")
	}
	return &rsa.PublicKey{N: new(big.Int).Set(k.N), E: int(k.E.Int64())}, nil
}

// Std returns a copy of k as a crypto/rsa private key.
func (k *Key) Std() (*rsa.PrivateKey, error) {
	if !k.Complete() {
		return nil, ErrNotPrivate
	}
	pub, err := k.StdPublic()
	if err != nil {
		return nil, err
	}
	priv := &rsa.PrivateKey{
		PublicKey: *pub,
		D:         new(big.Int).Set(k.D),
		Primes:    []*big.Int{new(big.Int).Set(k.P), new(big.Int).Set(k.Q)},
	}
	priv.Precompute()
	return priv, nil
}

type signer struct {
	key *Key
	pub ssh.PublicKey
}

// NewSigner wraps a private key as an ssh.Signer producing "ssh-rsa"
// (SHA-1) signatures through the blinded private operation.
func NewSigner(k *Key) (ssh.Signer, error) {
	if !k.Complete() {
		return nil, ErrNotPrivate
	}
	pub, err := k.SSHPublicKey()
	if err != nil {
		return nil, err
	}
	return &signer{key: k, pub: pub}, nil
}

func (s *signer) PublicKey() ssh.PublicKey {
	return s.pub
}

// Sign ignores rand; blinding is derived from the key and the message.
func (s *signer) Sign(_ io.Reader, data []byte) (*ssh.Signature, error) {
	blob, err := s.key.Sign(data)
	if err != nil {
		return nil, err
	}

	str := cryptobyte.String(blob)
	var format, sig []byte
	if !wire.ReadString(&str, &format) || !wire.ReadString(&str, &sig) {
		return nil, ErrMalformed
	}

	// crypto/rsa and OpenSSH expect the signature as long as the modulus
	padded := make([]byte, s.key.Size())
	copy(padded[len(padded)-len(sig):], sig)
	return &ssh.Signature{Format: string(format), Blob: padded}, nil
}
