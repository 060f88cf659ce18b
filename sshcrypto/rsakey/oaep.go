package rsakey

import (
	"fmt"
	"io"
	"math/big"

	"github.com/wokdav/sshcrypto/sshcrypto/hashalg"
	"github.com/wokdav/sshcrypto/sshcrypto/secret"
	"github.com/wokdav/sshcrypto/sshcrypto/wire"
)

// mgf1XOR XORs MGF1(seed) into out, mask block i being H(seed || uint32(i)).
func mgf1XOR(h *hashalg.Algorithm, seed, out []byte) {
	block := make([]byte, h.Size())
	var counter uint32
	for len(out) > 0 {
		s := h.New()
		s.Write(seed)
		s.Write(wire.AppendUint32(nil, counter))
		s.Final(block)
		counter++

		n := len(block)
		if n > len(out) {
			n = len(out)
		}
		for i := 0; i < n; i++ {
			out[i] ^= block[i]
		}
		out = out[n:]
	}
	secret.Wipe(block)
}

// MaxOAEPLen is the longest message EncryptOAEP accepts for k under h.
func (k *Key) MaxOAEPLen(h *hashalg.Algorithm) int {
	return k.Size() - 2*h.Size() - 2
}

// EncryptOAEP encrypts msg with RSAES-OAEP (RFC 3447 section 7.1.1) using
// h for both the label hash and MGF1, with an empty label. The result is
// exactly Size() bytes.
func (k *Key) EncryptOAEP(random io.Reader, h *hashalg.Algorithm, msg []byte) ([]byte, error) {
	out := make([]byte, k.Size())
	if err := k.EncryptOAEPInto(random, h, msg, out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncryptOAEPInto is EncryptOAEP writing into out, which must be exactly
// Size() bytes long.
func (k *Key) EncryptOAEPInto(random io.Reader, h *hashalg.Algorithm, msg, out []byte) error {
	size := k.Size()
	if len(out) != size {
		panic("rsakey: OAEP output buffer must match the modulus length")
	}
	hlen := h.Size()
	if len(msg) == 0 || len(msg) > size-2*hlen-2 {
		return fmt.Errorf("%w: %d bytes, at most %d allowed", ErrMessageSize, len(msg), size-2*hlen-2)
	}

	// 00 <seed> <lHash> 00 .. 00 01 <msg>
	out[0] = 0
	seed := out[1 : 1+hlen]
	db := out[1+hlen:]
	if _, err := io.ReadFull(random, seed); err != nil {
		return err
	}
	copy(db, h.Sum())
	for i := hlen; i < len(db); i++ {
		db[i] = 0
	}
	out[size-len(msg)-1] = 1
	copy(out[size-len(msg):], msg)

	mgf1XOR(h, seed, db)
	mgf1XOR(h, db, seed)

	m := new(big.Int).SetBytes(out)
	c := k.arith().Exp(m, k.E, k.N)
	c.FillBytes(out)
	secret.WipeInt(m)
	return nil
}

// EncryptSSH1 encrypts data for the SSH-1 protocol with PKCS#1 v1.5 type 2
// padding: 00 02 <non-zero random bytes> 00 <data>. The result is exactly
// Size() bytes.
func (k *Key) EncryptSSH1(random io.Reader, data []byte) ([]byte, error) {
	size := k.Size()
	if size < len(data)+4 {
		return nil, ErrKeyTooShort
	}

	block := make([]byte, size)
	block[0] = 0
	block[1] = 2
	pad := block[2 : size-len(data)-1]
	if _, err := io.ReadFull(random, pad); err != nil {
		return nil, err
	}
	var one [1]byte
	for i := range pad {
		for pad[i] == 0 {
			if _, err := io.ReadFull(random, one[:]); err != nil {
				return nil, err
			}
			pad[i] = one[0]
		}
	}
	block[size-len(data)-1] = 0
	copy(block[size-len(data):], data)

	m := new(big.Int).SetBytes(block)
	c := k.arith().Exp(m, k.E, k.N)
	c.FillBytes(block)
	secret.WipeInt(m)
	return block, nil
}

// KexAlgorithm is an RSA key exchange method (RFC 4432).
type KexAlgorithm struct {
	Name    string
	Hash    *hashalg.Algorithm
	KeyBits int // size of the transient host key the method calls for
}

var (
	KexSHA256 = &KexAlgorithm{Name: "rsa2048-sha256", Hash: hashalg.SHA256, KeyBits: 2048}
	KexSHA1   = &KexAlgorithm{Name: "rsa1024-sha1", Hash: hashalg.SHA1, KeyBits: 1024}
)

// KexAlgorithms lists the RSA key exchange methods in preference order.
var KexAlgorithms = []*KexAlgorithm{KexSHA256, KexSHA1}

// KexByName looks up an RSA key exchange method.
func KexByName(name string) (*KexAlgorithm, error) {
	for _, kex := range KexAlgorithms {
		if kex.Name == name {
			return kex, nil
		}
	}
	return nil, fmt.Errorf("rsakey: unknown key exchange %q", name)
}

// SecretBits is the size of the shared secret a client generates when
// key is the transient key: KLEN - 2*HLEN - 49 bits.
func (kex *KexAlgorithm) SecretBits(key *Key) int {
	return key.Bits() - 2*8*kex.Hash.Size() - 49
}

// Encrypt OAEP-encrypts the encoded shared secret to the transient key.
func (kex *KexAlgorithm) Encrypt(random io.Reader, key *Key, encodedSecret []byte) ([]byte, error) {
	if key.MaxOAEPLen(kex.Hash) < len(encodedSecret) {
		return nil, fmt.Errorf("%w: %d-bit key cannot carry a %d byte secret under %s",
			ErrKeyTooShort, key.Bits(), len(encodedSecret), kex.Name)
	}
	return key.EncryptOAEP(random, kex.Hash, encodedSecret)
}
