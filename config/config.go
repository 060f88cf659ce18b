// Package config provides the crypto policy: which arithmetic backend the
// RSA code runs on, which MACs and RSA key exchanges are offered and how
// small a key may be.
//
// Like the certificate configuration it grew out of, it supports
// versioning with each implementation registering itself in this
// package. A policy file is YAML or JSON whose topmost element is a map
// with an integer 'version' property; everything else is up to the
// implementation for that version. This package must not import its
// implementations to avoid circular imports.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wokdav/sshcrypto/logging"
	"github.com/wokdav/sshcrypto/sshcrypto/bignum"
	"github.com/wokdav/sshcrypto/sshcrypto/hmac"
	"github.com/wokdav/sshcrypto/sshcrypto/rsakey"

	"github.com/ghodss/yaml"
)

const DefaultMinKeyBits = 1024

var configurators map[int]Configurator = make(map[int]Configurator, 1)

// Policy implementations register themselves using this function.
// It is recommended to keep version > 0 to avoid bugs regarding
// uninitialized version numbers.
func AddConfigurator(version int, c Configurator) {
	configurators[version] = c
}

// Get configurator for the supplied version.
// Returns an error, if this version does not exist (yet).
func GetConfigurator(version int) (Configurator, error) {
	c, ok := configurators[version]
	if !ok {
		return nil, fmt.Errorf("config: unknown version: %d", version)
	}

	return c, nil
}

// The interface each policy version must implement.
type Configurator interface {
	ParseConfiguration(s string) (*Policy, error)
	Example() string
}

// This is the minimum requirement for policy implementations.
// A test-marshal into this is done to determine the underlying implementation.
type configProxy struct {
	Version int
}

// The main parsing function for policies.
// It reads the version integer from the document and hands the document
// to the configurator registered for that version.
func ParseConfig(r io.Reader) (*Policy, error) {
	sb := new(strings.Builder)
	w, err := io.Copy(sb, r)
	if err != nil {
		return nil, fmt.Errorf("config: error reading policy after %d bytes: %v", w, err)
	}
	cfgstr := sb.String()

	var proxy configProxy
	err = yaml.Unmarshal([]byte(cfgstr), &proxy)
	if err != nil {
		return nil, errors.New("config: top level must be a map containing a key called 'version' that contains an integer")
	}

	configurator, prs := configurators[proxy.Version]
	if !prs {
		return nil, fmt.Errorf("config: unknown version: %d", proxy.Version)
	}

	p, err := configurator.ParseConfiguration(cfgstr)
	if err != nil {
		return nil, err
	}

	logging.Debugf("config: loaded version %d policy: backend %s, min key size %d bits, %d MACs, %d key exchanges",
		proxy.Version, p.Backend.Name(), p.MinKeyBits, len(p.MACs), len(p.Kex))

	return p, nil
}

// The general representation of a crypto policy.
type Policy struct {
	Backend    bignum.Arith
	MinKeyBits int

	// MACs are offered to regular peers, BugCompatMACs only to peers
	// known to derive 16-byte HMAC-SHA1 keys.
	MACs          []*hmac.Algorithm
	BugCompatMACs []*hmac.Algorithm

	Kex      []*rsakey.KexAlgorithm
	LogLevel logging.LogLevel
}

// The policy that applies when no policy file is given.
func Default() *Policy {
	return &Policy{
		Backend:    bignum.Std,
		MinKeyBits: DefaultMinKeyBits,
		MACs:       append([]*hmac.Algorithm(nil), hmac.Algorithms...),
		Kex:        append([]*rsakey.KexAlgorithm(nil), rsakey.KexAlgorithms...),
		LogLevel:   logging.LevelWarning,
	}
}

// Arith returns the arithmetic backend keys should use.
func (p *Policy) Arith() bignum.Arith {
	if p.Backend == nil {
		return bignum.Std
	}
	return p.Backend
}

// MAC resolves a MAC wire name, ETM names included, against the allowed
// algorithms. For peers with the HMAC-SHA1 key bug, set bugCompat.
func (p *Policy) MAC(name string, bugCompat bool) (*hmac.Algorithm, error) {
	alg, err := hmac.ByName(name, bugCompat)
	if err != nil {
		return nil, err
	}

	allowed := p.MACs
	if bugCompat {
		allowed = p.BugCompatMACs
	}
	for _, a := range allowed {
		if a == alg {
			return alg, nil
		}
	}

	return nil, fmt.Errorf("config: MAC '%s' not allowed by policy", name)
}

// KexAlgorithm resolves an RSA key exchange name against the allowed ones.
func (p *Policy) KexAlgorithm(name string) (*rsakey.KexAlgorithm, error) {
	for _, k := range p.Kex {
		if k.Name == name {
			return k, nil
		}
	}

	return nil, fmt.Errorf("config: key exchange '%s' not allowed by policy", name)
}

// CheckKey rejects keys with a modulus shorter than MinKeyBits. On success
// the key is switched to the policy's arithmetic backend.
func (p *Policy) CheckKey(k *rsakey.Key) error {
	if k.Bits() < p.MinKeyBits {
		return fmt.Errorf("config: %d-bit key below policy minimum of %d bits: %w",
			k.Bits(), p.MinKeyBits, rsakey.ErrKeyTooShort)
	}

	k.Arith = p.Arith()
	return nil
}
