// Key store for directories of SSH keys.
//
// This package walks recursively through a given path and collects every
// RSA key it understands:
//
//   - *.pub files in authorized_keys format. The comment is kept.
//
//   - *.blob files holding a base64 encoded SSH-2 public key blob.
//
//   - Private keys in PEM or OpenSSH format, recognized as *.pem and *.key
//     files and by the usual id_rsa* names.
//
// Each key is known by an alias, the file base name without extension.
// A private key and its .pub file share an alias and end up as one
// entry. Otherwise aliases must be unique.
//
// Keys are checked against the crypto policy when loaded. Keys failing
// the check, encrypted private keys and non-RSA keys are skipped with a
// warning.
package keystore

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/wokdav/sshcrypto/config"
	"github.com/wokdav/sshcrypto/logging"
	"github.com/wokdav/sshcrypto/sshcrypto/rsakey"

	"golang.org/x/crypto/ssh"
)

var (
	ErrDuplicateAlias = errors.New("keystore: alias exists multiple times")
	ErrKeyFileName    = errors.New("keystore: refusing to write over a key file")
)

type fileKind int

const (
	kindUnknown fileKind = iota
	kindAuthorizedKey
	kindBlob
	kindPrivate
)

func kindOf(name string) fileKind {
	lname := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lname, ".pub"):
		return kindAuthorizedKey
	case strings.HasSuffix(lname, ".blob"):
		return kindBlob
	case strings.HasSuffix(lname, ".pem"), strings.HasSuffix(lname, ".key"):
		return kindPrivate
	case strings.HasPrefix(lname, "id_rsa") && !strings.Contains(lname, "."):
		return kindPrivate
	}
	return kindUnknown
}

func aliasOf(p string) string {
	base := path.Base(p)
	if i := strings.LastIndex(base, "."); i > 0 {
		return base[:i]
	}
	return base
}

// An Entry is one key of the store.
type Entry struct {
	Alias   string
	Path    string // file the key was read from, the private key file if there are two
	Key     *rsakey.Key
	ModTime time.Time
}

// Fingerprint returns the MD5 fingerprint without the key comment.
func (e *Entry) Fingerprint() string {
	pub := e.Key.Public()
	pub.Comment = ""
	return pub.Fingerprint(0)
}

// Store holds the keys of one directory tree.
type Store struct {
	filesystem Filesystem
	policy     *config.Policy

	entries       map[string]*Entry
	byFingerprint map[string]string // hex part of the fingerprint -> alias
}

// Create a new key store on the provided filesystem. A nil policy means
// [config.Default].
func NewStore(filesystem Filesystem, policy *config.Policy) *Store {
	if policy == nil {
		policy = config.Default()
	}
	return &Store{
		filesystem:    filesystem,
		policy:        policy,
		entries:       make(map[string]*Entry, 16),
		byFingerprint: make(map[string]string, 16),
	}
}

// Open walks through the filesystem and loads all keys.
func (s *Store) Open() error {
	logging.Debug("scanning folder for key files")
	fsys := s.filesystem.FS()

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		logging.Debugf("considering dir entry '%v'", p)
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		kind := kindOf(d.Name())
		if kind == kindUnknown {
			logging.Debugf("skipping. reason: not a recognized key file name")
			return nil
		}

		fi, err := fsys.Open(p)
		if err != nil {
			return err
		}
		content, err := io.ReadAll(fi)
		fi.Close()
		if err != nil {
			return err
		}

		key, err := parseKeyFile(kind, content)
		if err != nil {
			logging.Warningf("skipping %v: %v", p, err)
			return nil
		}

		if err := s.policy.CheckKey(key); err != nil {
			logging.Warningf("skipping %v: %v", p, err)
			key.Wipe()
			return nil
		}

		return s.add(p, key)
	})

	logging.Infof("found %d keys", len(s.entries))

	return err
}

func parseKeyFile(kind fileKind, content []byte) (*rsakey.Key, error) {
	switch kind {
	case kindAuthorizedKey:
		pub, comment, _, _, err := ssh.ParseAuthorizedKey(content)
		if err != nil {
			return nil, err
		}
		k, err := rsakey.FromSSHPublicKey(pub)
		if err != nil {
			return nil, err
		}
		k.Comment = comment
		return k, nil

	case kindBlob:
		blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(content)))
		if err != nil {
			return nil, err
		}
		return rsakey.ParsePublicBlob(blob)

	case kindPrivate:
		raw, err := ssh.ParseRawPrivateKey(content)
		if err != nil {
			var missing *ssh.PassphraseMissingError
			if errors.As(err, &missing) {
				return nil, errors.New("encrypted private keys are not supported")
			}
			return nil, err
		}
		priv, ok := raw.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA key but %T", raw)
		}
		return rsakey.FromStd(priv)
	}

	return nil, errors.New("unknown key file type")
}

func (s *Store) add(p string, key *rsakey.Key) error {
	alias := aliasOf(p)

	e, exists := s.entries[alias]
	if exists {
		merged, err := merge(e, p, key)
		if err != nil {
			logging.Errorf("alias %s already exists in key store", alias)
			logging.Errorf("either rename one of these files to something unique or remove one of them")
			return err
		}
		e = merged
	} else {
		e = &Entry{Alias: alias, Path: p, Key: key}
	}

	if fi, err := s.filesystem.Stat(e.Path); err != nil {
		logging.Warningf("could not get modtime for %v: %v", e.Path, err)
	} else {
		e.ModTime = fi.ModTime()
	}

	s.entries[alias] = e
	s.byFingerprint[fingerprintHex(e.Fingerprint())] = alias
	logging.Debugf("loaded %s as '%s' (%d bits, private: %v)", p, alias, key.Bits(), key.HasPrivate())

	return nil
}

// merge combines a private key and its public key file into one entry.
func merge(e *Entry, p string, key *rsakey.Key) (*Entry, error) {
	if e.Key.HasPrivate() == key.HasPrivate() || e.Key.N.Cmp(key.N) != 0 || e.Key.E.Cmp(key.E) != 0 {
		return nil, fmt.Errorf("%w: %s (%s and %s)", ErrDuplicateAlias, e.Alias, e.Path, p)
	}

	priv, pub := e.Key, key
	privPath := e.Path
	if key.HasPrivate() {
		priv, pub = key, e.Key
		privPath = p
	}
	if priv.Comment == "" {
		priv.Comment = pub.Comment
	}

	return &Entry{Alias: e.Alias, Path: privPath, Key: priv}, nil
}

// fingerprintHex extracts the colon separated hex digest from a
// fingerprint string, which may carry a bit count and a comment.
func fingerprintHex(fp string) string {
	for _, f := range strings.Fields(fp) {
		if strings.Count(f, ":") == 15 {
			return strings.ToLower(f)
		}
	}
	return fp
}

// Wipes all private keys.
func (s *Store) Close() error {
	for _, e := range s.entries {
		if e.Key.HasPrivate() {
			e.Key.Wipe()
		}
	}
	return nil
}

// Get returns the entry for alias, or nil.
func (s *Store) Get(alias string) *Entry {
	return s.entries[alias]
}

// ByFingerprint looks an entry up by its MD5 fingerprint, with or without
// the bit count prefix.
func (s *Store) ByFingerprint(fp string) *Entry {
	alias, ok := s.byFingerprint[fingerprintHex(fp)]
	if !ok {
		return nil
	}
	return s.entries[alias]
}

// Aliases returns all aliases in lexical order.
func (s *Store) Aliases() []string {
	out := make([]string, 0, len(s.entries))
	for a := range s.entries {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (s *Store) NumEntries() int {
	return len(s.entries)
}

// WriteFile stores an artifact, e.g. a signature, next to the keys. Names
// the store would read as key files are refused.
func (s *Store) WriteFile(name string, content []byte) error {
	if kindOf(path.Base(name)) != kindUnknown {
		return fmt.Errorf("%w: %s", ErrKeyFileName, name)
	}
	return s.filesystem.WriteFile(name, content)
}
