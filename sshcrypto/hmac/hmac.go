// Package hmac implements HMAC (RFC 2104) over any algorithm from package
// hashalg, in the shape the SSH transport uses it: one keyed context per
// direction, reused for every packet.
//
// A Context moves between two states. After SetKey it is idle; Start
// clones the keyed inner state into a live computation, Write feeds it and
// Finish (or Abort) returns the context to idle. Starting while a
// computation is live is refused. A Context is not safe for concurrent
// use; separate contexts share nothing.
package hmac

import (
	"crypto/subtle"
	"errors"

	"github.com/wokdav/sshcrypto/sshcrypto/hashalg"
	"github.com/wokdav/sshcrypto/sshcrypto/secret"
	"github.com/wokdav/sshcrypto/sshcrypto/wire"
)

const (
	padOuter = 0x5c
	padInner = 0x36
)

var (
	ErrNoKey      = errors.New("hmac: no key installed")
	ErrInProgress = errors.New("hmac: computation already in progress")
	ErrNotStarted = errors.New("hmac: no computation in progress")
)

// Context is a keyed MAC instance.
type Context struct {
	alg          *Algorithm
	outer, inner *hashalg.State
	live         *hashalg.State
	digest       []byte
	name         string
}

// New returns an unkeyed context for alg.
func New(alg *Algorithm) *Context {
	return &Context{
		alg:    alg,
		digest: make([]byte, alg.Hash.Size()),
		name:   alg.TextName(),
	}
}

// Algorithm returns the variant c computes.
func (c *Context) Algorithm() *Algorithm { return c.alg }

// Name returns the display name, e.g. "HMAC-SHA-256".
func (c *Context) Name() string { return c.name }

// Size returns the number of MAC bytes Finish produces.
func (c *Context) Size() int { return c.alg.Len }

// SetKey installs key, discarding any previous key and any live
// computation. key is not retained.
func (c *Context) SetKey(key []byte) {
	if c.alg.BugCompatibleKey && len(key) > c.alg.KeyLen {
		key = key[:c.alg.KeyLen]
	}

	var hashed []byte
	if len(key) > c.alg.BlockLen {
		// RFC 2104 section 2: keys longer than a block are hashed first
		hashed = c.alg.Hash.Sum(key)
		key = hashed
	}

	c.live = nil
	c.outer = c.padState(key, padOuter)
	c.inner = c.padState(key, padInner)

	secret.Wipe(hashed)
}

func (c *Context) padState(key []byte, pad byte) *hashalg.State {
	block := make([]byte, c.alg.BlockLen)
	for i := range block {
		block[i] = pad
		if i < len(key) {
			block[i] ^= key[i]
		}
	}
	s := c.alg.Hash.New()
	s.Write(block)
	secret.Wipe(block)
	return s
}

// Start begins a new MAC computation.
func (c *Context) Start() error {
	if c.outer == nil || c.inner == nil {
		return ErrNoKey
	}
	if c.live != nil {
		return ErrInProgress
	}
	c.live = c.inner.Clone()
	return nil
}

// Write feeds message bytes into the live computation.
func (c *Context) Write(p []byte) (int, error) {
	if c.live == nil {
		return 0, ErrNotStarted
	}
	return c.live.Write(p)
}

// Finish completes the live computation and writes Size() bytes of MAC
// into out, which must be at least that long.
func (c *Context) Finish(out []byte) error {
	if c.live == nil {
		return ErrNotStarted
	}
	if len(out) < c.alg.Len {
		panic("hmac: output buffer too small")
	}

	c.live.Final(c.digest)
	c.live = nil

	h := c.outer.Clone()
	h.Write(c.digest)
	h.Final(c.digest)

	// truncated variants use only a prefix of the digest
	copy(out, c.digest[:c.alg.Len])
	secret.Wipe(c.digest)
	return nil
}

// Abort drops a live computation, if any.
func (c *Context) Abort() {
	c.live = nil
}

// Sum computes the MAC of msg in one call.
func (c *Context) Sum(msg []byte) ([]byte, error) {
	if err := c.Start(); err != nil {
		return nil, err
	}
	c.Write(msg)
	out := make([]byte, c.alg.Len)
	if err := c.Finish(out); err != nil {
		return nil, err
	}
	return out, nil
}

// PacketMAC computes the transport MAC of a packet: the MAC over the
// 32-bit sequence number followed by the packet bytes (RFC 4253 section 6.4).
func (c *Context) PacketMAC(seq uint32, packet []byte) ([]byte, error) {
	if err := c.Start(); err != nil {
		return nil, err
	}
	c.Write(wire.AppendUint32(nil, seq))
	c.Write(packet)
	out := make([]byte, c.alg.Len)
	if err := c.Finish(out); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyPacket reports whether mac is the transport MAC of packet.
func (c *Context) VerifyPacket(seq uint32, packet, mac []byte) bool {
	want, err := c.PacketMAC(seq, packet)
	if err != nil {
		return false
	}
	ok := subtle.ConstantTimeCompare(want, mac) == 1
	secret.Wipe(want)
	return ok
}

// Close wipes c's scratch buffer and drops its keyed states. c must be
// keyed again before further use.
func (c *Context) Close() {
	secret.Wipe(c.digest)
	c.outer, c.inner, c.live = nil, nil, nil
}
