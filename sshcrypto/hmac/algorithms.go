package hmac

import (
	"fmt"

	"github.com/wokdav/sshcrypto/sshcrypto/hashalg"
)

// An Algorithm is one SSH MAC variant. Variants differ only in data: the
// underlying hash, how much of the result goes on the wire and how long a
// key the transport derives for them.
type Algorithm struct {
	Name     string // wire name
	ETMName  string // encrypt-then-MAC wire name, empty if there is none
	Hash     *hashalg.Algorithm
	BlockLen int    // HMAC block length, normally the hash block length
	Len      int    // bytes of output sent on the wire
	KeyLen   int    // key bytes the transport derives for this MAC
	Suffix   string // appended to the display name

	// BugCompatibleKey truncates an installed key to KeyLen bytes. Some
	// old servers only ever used 16 key bytes for HMAC-SHA1; talking
	// to them requires doing the same.
	BugCompatibleKey bool
}

var (
	SHA256 = &Algorithm{
		Name: "hmac-sha2-256", ETMName: "hmac-sha2-256-etm@openssh.com",
		Hash: hashalg.SHA256, BlockLen: 64, Len: 32, KeyLen: 32,
	}
	SHA1 = &Algorithm{
		Name: "hmac-sha1", ETMName: "hmac-sha1-etm@openssh.com",
		Hash: hashalg.SHA1, BlockLen: 64, Len: 20, KeyLen: 20,
	}
	SHA1Trunc96 = &Algorithm{
		Name: "hmac-sha1-96", ETMName: "hmac-sha1-96-etm@openssh.com",
		Hash: hashalg.SHA1, BlockLen: 64, Len: 12, KeyLen: 20, Suffix: "-96",
	}
	MD5 = &Algorithm{
		Name: "hmac-md5", ETMName: "hmac-md5-etm@openssh.com",
		Hash: hashalg.MD5, BlockLen: 64, Len: 16, KeyLen: 16,
	}
	SHA1BugCompat = &Algorithm{
		Name: "hmac-sha1",
		Hash: hashalg.SHA1, BlockLen: 64, Len: 20, KeyLen: 16, Suffix: " (bug-compatible)",
		BugCompatibleKey: true,
	}
	SHA1Trunc96BugCompat = &Algorithm{
		Name: "hmac-sha1-96",
		Hash: hashalg.SHA1, BlockLen: 64, Len: 12, KeyLen: 16, Suffix: "-96 (bug-compatible)",
		BugCompatibleKey: true,
	}
)

// Algorithms lists the regular variants in preference order.
var Algorithms = []*Algorithm{SHA256, SHA1, SHA1Trunc96, MD5}

// BugCompatAlgorithms lists the variants only used against known buggy peers.
var BugCompatAlgorithms = []*Algorithm{SHA1BugCompat, SHA1Trunc96BugCompat}

// ByName resolves a wire name, ETM names included, against the regular
// variants. If bugCompat is set, the plain names resolve to the
// bug-compatible variants instead; those have no ETM names.
func ByName(name string, bugCompat bool) (*Algorithm, error) {
	list := Algorithms
	if bugCompat {
		list = BugCompatAlgorithms
	}
	for _, a := range list {
		if a.Name == name || (a.ETMName != "" && a.ETMName == name) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("hmac: unknown MAC %q", name)
}

// TextName is the display name, e.g. "HMAC-SHA-1-96".
func (a *Algorithm) TextName() string {
	return "HMAC-" + a.Hash.TextName + a.Suffix
}

// IsETM reports whether name is a's encrypt-then-MAC name.
func (a *Algorithm) IsETM(name string) bool {
	return a.ETMName != "" && name == a.ETMName
}
