// Implements version 1 of the policy parser.
//
// It applies some defaults to the policy:
// - Default backend: std
// - Default minimum key size: 1024 bits
// - Default MACs and key exchanges: all regular ones, in preference order
// - No bug-compatible MACs unless listed
package v1

import (
	"bytes"

	"github.com/wokdav/sshcrypto/config"
	"github.com/wokdav/sshcrypto/logging"
	"github.com/wokdav/sshcrypto/sshcrypto/bignum"
	"github.com/wokdav/sshcrypto/sshcrypto/hmac"
	"github.com/wokdav/sshcrypto/sshcrypto/rsakey"

	"github.com/ghodss/yaml"
)

func init() {
	config.AddConfigurator(1, V1Configurator{})
}

// Struct for YAML/JSON marshaling.
type PolicyConfig struct {
	Version           int      `json:"version"`
	Backend           string   `json:"backend"`
	MinKeyBits        int      `json:"minKeyBits"`
	MACs              []string `json:"macs"`
	BugCompatibleMACs []string `json:"bugCompatibleMacs"`
	Kex               []string `json:"kex"`
	LogLevel          string   `json:"logLevel"`
}

type V1Configurator struct{}

// Implements ParseConfiguration from [config.Configurator].
// The document is validated against the embedded schema first, so the
// name lookups below only fail on programming errors.
func (v V1Configurator) ParseConfiguration(s string) (*config.Policy, error) {
	js, err := yaml.YAMLToJSON([]byte(s))
	if err != nil {
		return nil, err
	}

	err = policySchema.Validate(bytes.NewBuffer(js))
	if err != nil {
		return nil, err
	}

	cfg := PolicyConfig{}
	err = yaml.Unmarshal(js, &cfg)
	if err != nil {
		return nil, err
	}

	return initPolicy(cfg)
}

func initPolicy(cfg PolicyConfig) (*config.Policy, error) {
	out := config.Default()

	if cfg.Backend != "" {
		a, err := bignum.ByName(cfg.Backend)
		if err != nil {
			return nil, err
		}
		out.Backend = a
	}

	if cfg.MinKeyBits != 0 {
		out.MinKeyBits = cfg.MinKeyBits
	}

	if len(cfg.MACs) > 0 {
		macs, err := resolveMACs(cfg.MACs, false)
		if err != nil {
			return nil, err
		}
		out.MACs = macs
	}

	if len(cfg.BugCompatibleMACs) > 0 {
		macs, err := resolveMACs(cfg.BugCompatibleMACs, true)
		if err != nil {
			return nil, err
		}
		out.BugCompatMACs = macs
		logging.Warningf("config-v1: bug-compatible MACs enabled: %v", cfg.BugCompatibleMACs)
	}

	if len(cfg.Kex) > 0 {
		out.Kex = nil
		for _, name := range cfg.Kex {
			k, err := rsakey.KexByName(name)
			if err != nil {
				return nil, err
			}
			out.Kex = append(out.Kex, k)
		}
	}

	if cfg.LogLevel != "" {
		l, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		out.LogLevel = l
	}

	return out, nil
}

// resolveMACs maps wire names to algorithms, keeping the first position
// of an algorithm listed under both its plain and its ETM name.
func resolveMACs(names []string, bugCompat bool) ([]*hmac.Algorithm, error) {
	var out []*hmac.Algorithm
	seen := make(map[*hmac.Algorithm]bool, len(names))
	for _, name := range names {
		a, err := hmac.ByName(name, bugCompat)
		if err != nil {
			return nil, err
		}
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}

	return out, nil
}

func (v V1Configurator) Example() string {
	return policyExample
}
