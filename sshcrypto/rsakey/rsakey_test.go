package rsakey

import (
	"bytes"
	"crypto"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/ssh"

	"github.com/wokdav/sshcrypto/sshcrypto/bignum"
	"github.com/wokdav/sshcrypto/sshcrypto/hashalg"
	"github.com/wokdav/sshcrypto/sshcrypto/wire"
)

func expectSameKey(got, want *Key) {
	Expect(got.N.Cmp(want.N)).To(Equal(0), "modulus differs")
	Expect(got.E.Cmp(want.E)).To(Equal(0), "exponent differs")
	if want.HasPrivate() {
		Expect(got.D.Cmp(want.D)).To(Equal(0), "private exponent differs")
		Expect(got.P.Cmp(want.P)).To(Equal(0), "p differs")
		Expect(got.Q.Cmp(want.Q)).To(Equal(0), "q differs")
		Expect(got.Iqmp.Cmp(want.Iqmp)).To(Equal(0), "iqmp differs")
	}
}

func expectCanonical(k *Key) {
	Expect(new(big.Int).Mul(k.P, k.Q).Cmp(k.N)).To(Equal(0))
	Expect(k.P.Cmp(k.Q)).To(Equal(1), "p must be larger than q")
	check := new(big.Int).Mul(k.Iqmp, k.Q)
	Expect(check.Mod(check, k.P).Int64()).To(Equal(int64(1)))
	ed := new(big.Int).Mul(k.E, k.D)
	for _, prime := range []*big.Int{k.P, k.Q} {
		pm1 := new(big.Int).Sub(prime, big.NewInt(1))
		Expect(new(big.Int).Mod(ed, pm1).Int64()).To(Equal(int64(1)))
	}
}

func signatureBlob(sig []byte) []byte {
	b := cryptobyte.NewBuilder(nil)
	wire.AddString(b, []byte(KeyType))
	wire.AddString(b, sig)
	return b.BytesOrPanic()
}

var _ = Describe("Key", func() {

	var key *Key

	BeforeEach(func() {
		key = testKey()
	})

	Context("converting from crypto/rsa", func() {

		It("produces a verified canonical key", func() {
			Expect(key.Complete()).To(BeTrue())
			Expect(key.Bits()).To(Equal(1024))
			Expect(key.Size()).To(Equal(128))
			expectCanonical(key)
		})

		It("converts back to an equivalent crypto/rsa key", func() {
			priv, err := key.Std()
			Expect(err).To(BeNil())
			Expect(priv.Validate()).To(Succeed())
			Expect(priv.N.Cmp(testStdKey().N)).To(Equal(0))
			Expect(priv.D.Cmp(testStdKey().D)).To(Equal(0))
		})
	})

	Context("SSH-2 blobs", func() {

		It("round-trips the public blob", func() {
			pub, err := ParsePublicBlob(key.PublicBlob())
			Expect(err).To(BeNil())
			Expect(pub.HasPrivate()).To(BeFalse())
			expectSameKey(pub, key.Public())
		})

		It("round-trips the private blob", func() {
			priv, err := key.PrivateBlob()
			Expect(err).To(BeNil())
			got, err := ParsePrivateBlob(key.PublicBlob(), priv)
			Expect(err).To(BeNil())
			expectSameKey(got, key)
		})

		It("round-trips the OpenSSH blob and returns what follows", func() {
			blob, err := key.OpenSSHBlob()
			Expect(err).To(BeNil())
			blob = append(blob, "trailer"...)

			got, rest, err := ParseOpenSSHBlob(blob)
			Expect(err).To(BeNil())
			Expect(string(rest)).To(Equal("trailer"))
			expectSameKey(got, key)
		})

		It("matches the encoding of x/crypto/ssh", func() {
			sshPub, err := ssh.NewPublicKey(&testStdKey().PublicKey)
			Expect(err).To(BeNil())
			Expect(key.PublicBlob()).To(Equal(sshPub.Marshal()))

			pub, err := key.SSHPublicKey()
			Expect(err).To(BeNil())
			Expect(pub.Type()).To(Equal(KeyType))

			back, err := FromSSHPublicKey(sshPub)
			Expect(err).To(BeNil())
			expectSameKey(back, key.Public())
		})

		It("reports the modulus size of a public blob", func() {
			bits, err := PublicKeyBits(key.PublicBlob())
			Expect(err).To(BeNil())
			Expect(bits).To(Equal(1024))

			_, err = PublicKeyBits([]byte("junk"))
			Expect(errors.Is(err, ErrMalformed)).To(BeTrue())
		})

		It("refuses private blobs of public keys", func() {
			_, err := key.Public().PrivateBlob()
			Expect(err).To(MatchError(ErrNotPrivate))
			_, err = key.Public().OpenSSHBlob()
			Expect(err).To(MatchError(ErrNotPrivate))
		})
	})

	Context("SSH-1 records", func() {

		for _, order := range []SSH1Order{ExponentFirst, ModulusFirst} {
			order := order

			It(fmt.Sprintf("round-trips %s records", order), func() {
				blob := key.SSH1PublicBlob(order)
				blob = append(blob, 0xee)

				got, n, err := ReadSSH1Public(blob, order)
				Expect(err).To(BeNil())
				Expect(n).To(Equal(len(blob) - 1))
				expectSameKey(got, key.Public())
			})
		}

		It("keeps the field order", func() {
			a := key.SSH1PublicBlob(ExponentFirst)
			b := key.SSH1PublicBlob(ModulusFirst)
			Expect(a).NotTo(Equal(b))
			Expect(a[:4]).To(Equal([]byte{0, 0, 4, 0}))
			Expect(a[4:6]).To(Equal([]byte{0, 17}), "65537 has 17 bits")
		})

		It("measures a record without decoding it", func() {
			blob := key.SSH1PublicBlob(ExponentFirst)
			Expect(PublicBlobLen(append(blob, 1, 2, 3))).To(Equal(len(blob)))
		})

		It("reads the private exponent record", func() {
			rec := wire.AppendSSH1MP(nil, key.D)
			pub := key.Public()
			n, err := ReadSSH1Private(rec, pub)
			Expect(err).To(BeNil())
			Expect(n).To(Equal(len(rec)))
			Expect(pub.D.Cmp(key.D)).To(Equal(0))
		})

		It("rejects a zero modulus", func() {
			zero := &Key{N: new(big.Int), E: big.NewInt(3)}
			_, _, err := ReadSSH1Public(zero.SSH1PublicBlob(ExponentFirst), ExponentFirst)
			Expect(errors.Is(err, ErrMalformed)).To(BeTrue())
		})
	})

	Context("malformed input", func() {

		It("rejects every truncation of every encoding", func() {
			priv, _ := key.PrivateBlob()
			openssh, _ := key.OpenSSHBlob()
			pub := key.PublicBlob()
			ssh1 := key.SSH1PublicBlob(ExponentFirst)

			for i := 0; i < len(pub); i++ {
				_, err := ParsePublicBlob(pub[:i])
				Expect(err).To(HaveOccurred(), "public blob cut at %d", i)
			}
			for i := 0; i < len(priv); i++ {
				_, err := ParsePrivateBlob(pub, priv[:i])
				Expect(err).To(HaveOccurred(), "private blob cut at %d", i)
			}
			for i := 0; i < len(openssh); i++ {
				_, _, err := ParseOpenSSHBlob(openssh[:i])
				Expect(err).To(HaveOccurred(), "OpenSSH blob cut at %d", i)
			}
			for i := 0; i < len(ssh1); i++ {
				_, _, err := ReadSSH1Public(ssh1[:i], ExponentFirst)
				Expect(err).To(HaveOccurred(), "SSH-1 record cut at %d", i)
				Expect(PublicBlobLen(ssh1[:i])).To(Equal(-1))
			}
		})

		It("rejects other key types", func() {
			b := cryptobyte.NewBuilder(nil)
			wire.AddString(b, []byte("ssh-dss"))
			wire.AddMPInt(b, key.E)
			wire.AddMPInt(b, key.N)
			_, err := ParsePublicBlob(b.BytesOrPanic())
			Expect(errors.Is(err, ErrMalformed)).To(BeTrue())
		})

		It("rejects private data that does not match the public key", func() {
			other := key.Public()
			other.N = new(big.Int).Add(key.N, big.NewInt(2))
			priv, _ := key.PrivateBlob()
			_, err := ParsePrivateBlob(other.PublicBlob(), priv)
			Expect(errors.Is(err, ErrInconsistent)).To(BeTrue())

			bad := *key
			bad.D = new(big.Int).Add(key.D, big.NewInt(1))
			priv, _ = bad.PrivateBlob()
			_, err = ParsePrivateBlob(key.PublicBlob(), priv)
			Expect(errors.Is(err, ErrInconsistent)).To(BeTrue())
		})
	})

	Context("canonicalisation", func() {

		It("swaps p and q and recomputes iqmp", func() {
			k := tinyKey(53, 61)
			k.Iqmp = big.NewInt(1)
			Expect(k.Verify()).To(Succeed())
			Expect(k.P.Int64()).To(Equal(int64(61)))
			Expect(k.Q.Int64()).To(Equal(int64(53)))
			expectCanonical(k)
		})

		It("accepts a private blob with p < q and reaches a fixed point", func() {
			k := tinyKey(53, 61)
			priv, err := k.PrivateBlob()
			Expect(err).To(BeNil())

			first, err := ParsePrivateBlob(k.PublicBlob(), priv)
			Expect(err).To(BeNil())
			expectCanonical(first)

			again, err := first.PrivateBlob()
			Expect(err).To(BeNil())
			second, err := ParsePrivateBlob(first.PublicBlob(), again)
			Expect(err).To(BeNil())
			expectSameKey(second, first)

			reencoded, _ := second.PrivateBlob()
			Expect(reencoded).To(Equal(again))
		})

		It("rejects a wrong iqmp when p > q", func() {
			k := tinyKey(61, 53)
			k.Iqmp = big.NewInt(2)
			Expect(errors.Is(k.Verify(), ErrInconsistent)).To(BeTrue())
		})

		It("rejects degenerate primes", func() {
			k := tinyKey(61, 53)
			k.P, k.Q = big.NewInt(1), big.NewInt(61*53)
			Expect(errors.Is(k.Verify(), ErrInconsistent)).To(BeTrue())
		})

		It("needs the private half", func() {
			Expect(key.Public().Verify()).To(MatchError(ErrNotPrivate))
		})
	})

	Context("the private operation", func() {

		It("agrees with a direct exponentiation under CRT", func() {
			for _, a := range []bignum.Arith{bignum.Std, bignum.ConstTime} {
				for i := 0; i < 4; i++ {
					base, _ := rand.Int(rand.Reader, key.N)
					exp, _ := rand.Int(rand.Reader, key.N)
					want := new(big.Int).Exp(base, exp, key.N)
					got := crtModPow(a, base, exp, key.N, key.P, key.Q, key.Iqmp)
					Expect(got.Cmp(want)).To(Equal(0), "backend %s", a.Name())
				}
			}
		})

		It("computes input^d mod n through the blinding", func() {
			for _, a := range []bignum.Arith{bignum.Std, bignum.ConstTime} {
				key.Arith = a
				input, _ := rand.Int(rand.Reader, key.N)
				got, err := key.PrivateOp(input)
				Expect(err).To(BeNil())
				Expect(got.Cmp(new(big.Int).Exp(input, key.D, key.N))).To(Equal(0))
			}
		})

		It("derives blinding factors deterministically from d and the input", func() {
			in1, in2 := big.NewInt(12345), big.NewInt(12346)
			r1, inv1 := key.blindingFactor(in1)
			r1again, _ := key.blindingFactor(in1)
			r2, _ := key.blindingFactor(in2)

			Expect(bignum.InOpenRange(r1, key.N)).To(BeTrue())
			Expect(r1.Cmp(r1again)).To(Equal(0))
			Expect(r1.Cmp(r2)).NotTo(Equal(0))

			check := new(big.Int).Mul(r1, inv1)
			Expect(check.Mod(check, key.N).Int64()).To(Equal(int64(1)))
		})

		It("derives candidate bits from the labelled SHA-512 stream", func() {
			d, input := big.NewInt(7), big.NewInt(9)
			stream := newBlindingStream(d, input)

			seed := hashalg.SHA512.Sum(
				[]byte("RSA deterministic blinding"),
				[]byte{0, 0, 0, 0},
				wire.AppendMPInt(nil, d))
			block := hashalg.SHA512.Sum(seed, wire.AppendMPInt(nil, input))

			// 16 bits: the first byte fills bits 15..8 low bit first,
			// so it appears bit-reversed in the top byte
			got := stream.candidate(16)
			want := uint16(reverse(block[0]))<<8 | uint16(reverse(block[1]))
			Expect(got.Int64()).To(Equal(int64(want)))
		})

		It("refuses public keys", func() {
			_, err := key.Public().PrivateOp(big.NewInt(2))
			Expect(err).To(MatchError(ErrNotPrivate))
		})

		It("decrypts SSH-1 encryptions", func() {
			data := []byte("session key material")
			ct, err := key.EncryptSSH1(rand.Reader, data)
			Expect(err).To(BeNil())
			Expect(ct).To(HaveLen(key.Size()))

			m, err := key.DecryptSSH1(new(big.Int).SetBytes(ct))
			Expect(err).To(BeNil())
			block := make([]byte, key.Size())
			m.FillBytes(block)

			Expect(block[:2]).To(Equal([]byte{0, 2}))
			padEnd := len(block) - len(data) - 1
			Expect(bytes.IndexByte(block[2:padEnd], 0)).To(Equal(-1), "padding must be non-zero")
			Expect(block[padEnd]).To(Equal(byte(0)))
			Expect(block[padEnd+1:]).To(Equal(data))

			plain, err := rsa.DecryptPKCS1v15(nil, testStdKey(), ct)
			Expect(err).To(BeNil())
			Expect(plain).To(Equal(data))
		})

		It("refuses SSH-1 data that does not fit", func() {
			_, err := key.EncryptSSH1(rand.Reader, make([]byte, key.Size()-3))
			Expect(err).To(MatchError(ErrKeyTooShort))
			_, err = key.EncryptSSH1(rand.Reader, make([]byte, key.Size()-4))
			Expect(err).To(BeNil())
		})
	})

	Context("signatures", func() {

		message := []byte("SSH_MSG_USERAUTH_REQUEST payload")

		It("verifies its own signatures", func() {
			sig, err := key.Sign(message)
			Expect(err).To(BeNil())
			Expect(key.VerifySignature(message, sig)).To(BeTrue())
			Expect(key.Public().VerifySignature(message, sig)).To(BeTrue())
		})

		It("is deterministic across backends", func() {
			a, _ := key.Sign(message)
			key.Arith = bignum.ConstTime
			b, _ := key.Sign(message)
			Expect(a).To(Equal(b))
		})

		It("rejects any single-byte change", func() {
			sig, _ := key.Sign(message)
			for i := range message {
				m := append([]byte(nil), message...)
				m[i] ^= 0x01
				Expect(key.VerifySignature(m, sig)).To(BeFalse(), "message byte %d", i)
			}
			for i := range sig {
				s := append([]byte(nil), sig...)
				s[i] ^= 0x01
				Expect(key.VerifySignature(message, s)).To(BeFalse(), "signature byte %d", i)
			}
		})

		It("rejects truncated signatures", func() {
			sig, _ := key.Sign(message)
			for i := 0; i < len(sig); i++ {
				Expect(key.VerifySignature(message, sig[:i])).To(BeFalse())
			}
		})

		It("interoperates with crypto/rsa", func() {
			sig, _ := key.Sign(message)
			s := cryptobyte.String(sig)
			var name, raw []byte
			Expect(wire.ReadString(&s, &name)).To(BeTrue())
			Expect(wire.ReadString(&s, &raw)).To(BeTrue())

			padded := make([]byte, key.Size())
			copy(padded[len(padded)-len(raw):], raw)
			digest := sha1.Sum(message)
			Expect(rsa.VerifyPKCS1v15(&testStdKey().PublicKey, crypto.SHA1, digest[:], padded)).To(Succeed())

			theirs, err := rsa.SignPKCS1v15(nil, testStdKey(), crypto.SHA1, digest[:])
			Expect(err).To(BeNil())
			Expect(key.VerifySignature(message, signatureBlob(theirs))).To(BeTrue())
		})

		It("works as an ssh.Signer", func() {
			signer, err := NewSigner(key)
			Expect(err).To(BeNil())
			sig, err := signer.Sign(rand.Reader, message)
			Expect(err).To(BeNil())
			Expect(sig.Format).To(Equal(KeyType))
			Expect(sig.Blob).To(HaveLen(key.Size()))
			Expect(signer.PublicKey().Verify(message, sig)).To(Succeed())

			_, err = NewSigner(key.Public())
			Expect(err).To(MatchError(ErrNotPrivate))
		})

		It("rejects a signature tagged with another algorithm", func() {
			sig, _ := key.Sign(message)
			s := cryptobyte.String(sig)
			var name, raw []byte
			wire.ReadString(&s, &name)
			wire.ReadString(&s, &raw)

			b := cryptobyte.NewBuilder(nil)
			wire.AddString(b, []byte("rsa-sha2-256"))
			wire.AddString(b, raw)
			Expect(key.VerifySignature(message, b.BytesOrPanic())).To(BeFalse())
		})

		It("panics when the modulus cannot hold the padded digest", func() {
			k := tinyKey(61, 53)
			Expect(k.Verify()).To(Succeed())
			Expect(func() { k.Sign(message) }).To(Panic())
		})
	})

	Context("OAEP", func() {

		for _, h := range []*hashalg.Algorithm{hashalg.SHA1, hashalg.SHA256} {
			h := h

			It(fmt.Sprintf("honours the size contract with %s", h), func() {
				limit := key.Size() - 2*h.Size() - 2
				Expect(key.MaxOAEPLen(h)).To(Equal(limit))

				ct, err := key.EncryptOAEP(rand.Reader, h, make([]byte, limit))
				Expect(err).To(BeNil())
				Expect(ct).To(HaveLen(key.Size()))

				_, err = key.EncryptOAEP(rand.Reader, h, make([]byte, limit+1))
				Expect(errors.Is(err, ErrMessageSize)).To(BeTrue())
				_, err = key.EncryptOAEP(rand.Reader, h, nil)
				Expect(errors.Is(err, ErrMessageSize)).To(BeTrue())
			})
		}

		It("randomises ciphertexts that crypto/rsa decrypts", func() {
			msg := []byte("shared secret K")
			a, err := key.EncryptOAEP(rand.Reader, hashalg.SHA256, msg)
			Expect(err).To(BeNil())
			b, err := key.EncryptOAEP(rand.Reader, hashalg.SHA256, msg)
			Expect(err).To(BeNil())
			Expect(a).NotTo(Equal(b))

			for _, ct := range [][]byte{a, b} {
				plain, err := rsa.DecryptOAEP(sha256.New(), nil, testStdKey(), ct, nil)
				Expect(err).To(BeNil())
				Expect(plain).To(Equal(msg))
			}

			c, err := key.EncryptOAEP(rand.Reader, hashalg.SHA1, msg)
			Expect(err).To(BeNil())
			plain, err := rsa.DecryptOAEP(sha1.New(), nil, testStdKey(), c, nil)
			Expect(err).To(BeNil())
			Expect(plain).To(Equal(msg))
		})

		It("demands an output buffer of the modulus length", func() {
			Expect(func() {
				key.EncryptOAEPInto(rand.Reader, hashalg.SHA1, []byte("x"), make([]byte, key.Size()-1))
			}).To(Panic())
		})

		It("passes random source errors through", func() {
			_, err := key.EncryptOAEP(bytes.NewReader(nil), hashalg.SHA1, []byte("x"))
			Expect(err).To(HaveOccurred())
		})
	})

	Context("RSA key exchange", func() {

		It("lists sha256 before sha1", func() {
			Expect(KexAlgorithms).To(HaveLen(2))
			Expect(KexAlgorithms[0].Name).To(Equal("rsa2048-sha256"))
			Expect(KexAlgorithms[1].Name).To(Equal("rsa1024-sha1"))

			kex, err := KexByName("rsa1024-sha1")
			Expect(err).To(BeNil())
			Expect(kex.Hash).To(Equal(hashalg.SHA1))
			_, err = KexByName("rsa4096-sha512")
			Expect(err).To(HaveOccurred())
		})

		It("sizes and encrypts the shared secret", func() {
			Expect(KexSHA1.SecretBits(key)).To(Equal(1024 - 320 - 49))

			secret := make([]byte, 40)
			ct, err := KexSHA1.Encrypt(rand.Reader, key, secret)
			Expect(err).To(BeNil())
			plain, err := rsa.DecryptOAEP(sha1.New(), nil, testStdKey(), ct, nil)
			Expect(err).To(BeNil())
			Expect(plain).To(Equal(secret))

			_, err = KexSHA256.Encrypt(rand.Reader, key, make([]byte, 63))
			Expect(errors.Is(err, ErrKeyTooShort)).To(BeTrue())
		})
	})

	Context("text forms", func() {

		It("fingerprints over the SSH-1 encodings with MD5", func() {
			k := &Key{N: big.NewInt(187), E: big.NewInt(3)}
			sum := md5.Sum([]byte{0, 8, 187, 0, 2, 3})
			var hexes []string
			for _, b := range sum {
				hexes = append(hexes, hex.EncodeToString([]byte{b}))
			}
			want := "8 " + joinColon(hexes)
			Expect(k.Fingerprint(0)).To(Equal(want))

			k.Comment = "tiny"
			Expect(k.Fingerprint(0)).To(Equal(want + " tiny"))
		})

		It("keeps fingerprints stable and exponent dependent", func() {
			fp := key.Fingerprint(0)
			Expect(fp).To(MatchRegexp(`^1024 ([0-9a-f]{2}:){15}[0-9a-f]{2} test@example$`))
			Expect(testKey().Fingerprint(0)).To(Equal(fp))

			other := key.Public()
			other.E = big.NewInt(3)
			Expect(other.Fingerprint(0)).NotTo(Equal(fp))
		})

		It("truncates fingerprints to the buffer size", func() {
			full := key.Fingerprint(0)
			Expect(key.Fingerprint(10)).To(Equal(full[:9]))
			Expect(key.Fingerprint(len(full) + 1)).To(Equal(full))
			Expect(key.Fingerprint(len(full) - 3)).To(Equal(full[:len(full)-4]))
		})

		It("renders exponent and modulus in hex", func() {
			k := &Key{N: big.NewInt(0xbeef), E: big.NewInt(0)}
			Expect(k.String()).To(Equal("0x0,0xbeef"))
			Expect(len(k.String())).To(BeNumerically("<=", k.FormatLen()))

			s := key.String()
			Expect(s).To(HavePrefix("0x10001,0x"))
			Expect(len(s)).To(BeNumerically("<=", key.FormatLen()))
		})
	})

	Context("lifecycle", func() {

		It("wipes the private half", func() {
			d := key.D
			key.Wipe()
			Expect(key.HasPrivate()).To(BeFalse())
			Expect(key.Complete()).To(BeFalse())
			Expect(key.Comment).To(BeEmpty())
			Expect(d.Sign()).To(Equal(0))
			Expect(key.N.Sign()).To(Equal(1))
		})
	})
})

func reverse(b byte) byte {
	var r byte
	for i := 0; i < 8; i++ {
		r = r<<1 | b&1
		b >>= 1
	}
	return r
}

func joinColon(parts []string) string {
	var buf bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			buf.WriteByte(':')
		}
		buf.WriteString(p)
	}
	return buf.String()
}
