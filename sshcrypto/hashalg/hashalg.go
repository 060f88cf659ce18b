// Package hashalg describes the hash functions the SSH layer is built on and
// exposes them as incremental states that can be cloned.
//
// Cloning is what HMAC needs to keep a keyed inner and outer state around and
// start each message from a copy; the standard library hashes support it via
// encoding.BinaryMarshaler.
package hashalg

import (
	"crypto"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding"
	"fmt"
	"hash"

	"github.com/wokdav/sshcrypto/sshcrypto/secret"
)

// An Algorithm is a fixed hash function.
type Algorithm struct {
	Name     string // lower-case identifier, e.g. "sha256"
	TextName string // human readable, e.g. "SHA-256"
	Hash     crypto.Hash
	BlockLen int

	newFunc func() hash.Hash
}

var (
	MD5    = &Algorithm{Name: "md5", TextName: "MD5", Hash: crypto.MD5, BlockLen: md5.BlockSize, newFunc: md5.New}
	SHA1   = &Algorithm{Name: "sha1", TextName: "SHA-1", Hash: crypto.SHA1, BlockLen: sha1.BlockSize, newFunc: sha1.New}
	SHA256 = &Algorithm{Name: "sha256", TextName: "SHA-256", Hash: crypto.SHA256, BlockLen: sha256.BlockSize, newFunc: sha256.New}
	SHA512 = &Algorithm{Name: "sha512", TextName: "SHA-512", Hash: crypto.SHA512, BlockLen: sha512.BlockSize, newFunc: sha512.New}
)

var registry = map[string]*Algorithm{
	MD5.Name:    MD5,
	SHA1.Name:   SHA1,
	SHA256.Name: SHA256,
	SHA512.Name: SHA512,
}

// ByName looks up an algorithm by its lower-case identifier.
func ByName(name string) (*Algorithm, error) {
	a, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("hashalg: unknown hash %q", name)
	}
	return a, nil
}

// Size is the digest length in bytes.
func (a *Algorithm) Size() int {
	return a.Hash.Size()
}

// New returns a fresh state.
func (a *Algorithm) New() *State {
	return &State{alg: a, h: a.newFunc()}
}

// Sum hashes the concatenation of data in one go.
func (a *Algorithm) Sum(data ...[]byte) []byte {
	s := a.New()
	for _, d := range data {
		s.Write(d)
	}
	out := make([]byte, a.Size())
	s.Final(out)
	return out
}

func (a *Algorithm) String() string {
	return a.TextName
}

// State is an in-progress hash computation. A State is not safe for
// concurrent use; clones are fully independent.
type State struct {
	alg *Algorithm
	h   hash.Hash
}

// Algorithm returns the algorithm s was created from.
func (s *State) Algorithm() *Algorithm {
	return s.alg
}

// Write absorbs p. It never fails.
func (s *State) Write(p []byte) (int, error) {
	if s.h == nil {
		panic("hashalg: write to finalized state")
	}
	return s.h.Write(p)
}

// WriteByte absorbs a single byte.
func (s *State) WriteByte(c byte) error {
	_, err := s.Write([]byte{c})
	return err
}

// Clone returns an independent copy of s.
func (s *State) Clone() *State {
	if s.h == nil {
		panic("hashalg: clone of finalized state")
	}
	m, ok := s.h.(encoding.BinaryMarshaler)
	if !ok {
		panic(fmt.Sprintf("hashalg: %s state cannot be cloned", s.alg.TextName))
	}
	snapshot, err := m.MarshalBinary()
	if err != nil {
		panic(err)
	}
	defer secret.Wipe(snapshot)

	h := s.alg.newFunc()
	if err := h.(encoding.BinaryUnmarshaler).UnmarshalBinary(snapshot); err != nil {
		panic(err)
	}
	return &State{alg: s.alg, h: h}
}

// Final writes the digest into the first Size() bytes of out and
// finalizes s; s must not be used afterwards. Clones taken earlier are
// unaffected.
func (s *State) Final(out []byte) {
	if s.h == nil {
		panic("hashalg: state already finalized")
	}
	size := s.alg.Size()
	if len(out) < size {
		panic("hashalg: digest buffer too small")
	}
	// out has room for the digest, so Sum appends in place
	s.h.Sum(out[:0])
	s.h.Reset()
	s.h = nil
}
