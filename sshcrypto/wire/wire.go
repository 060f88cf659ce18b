// Package wire reads and writes the primitive encodings used by SSH key
// and signature blobs.
//
// Two integer encodings exist. SSH-1 ("legacy") integers are a 16-bit
// big-endian count of significant bits followed by ceil(bits/8) bytes.
// SSH-2 integers ("mpint", RFC 4251 section 5) are a uint32 byte length
// followed by a minimal two's complement big-endian string; a leading zero
// byte is inserted when the top bit would otherwise be set.
//
// Readers operate on a [cryptobyte.String] and follow its convention:
// they return false and leave the input in an unspecified state when the
// data is short. Integers are always interpreted as unsigned.
package wire

import (
	"math/big"

	"golang.org/x/crypto/cryptobyte"
)

// ReadString reads a uint32 length-prefixed byte string. out aliases s.
func ReadString(s *cryptobyte.String, out *[]byte) bool {
	var v cryptobyte.String
	if !s.ReadUint32LengthPrefixed(&v) {
		return false
	}
	*out = v
	return true
}

// ReadMPInt reads an SSH-2 integer into out.
func ReadMPInt(s *cryptobyte.String, out *big.Int) bool {
	var v []byte
	if !ReadString(s, &v) {
		return false
	}
	out.SetBytes(v)
	return true
}

// ReadSSH1MP reads an SSH-1 integer into out. A nil out skips the value.
// It returns the number of bytes consumed, or -1 if s is too short.
func ReadSSH1MP(s *cryptobyte.String, out *big.Int) int {
	var bits uint16
	if !s.ReadUint16(&bits) {
		return -1
	}
	n := (int(bits) + 7) / 8
	var v []byte
	if !s.ReadBytes(&v, n) {
		return -1
	}
	if out != nil {
		out.SetBytes(v)
	}
	return 2 + n
}

// MPIntBody returns the SSH-2 integer body of v without its length prefix.
// Zero encodes as the empty string.
func MPIntBody(v *big.Int) []byte {
	if v.Sign() == 0 {
		return nil
	}
	b := v.Bytes()
	if b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	return b
}

// AddString writes v with a uint32 length prefix.
func AddString(b *cryptobyte.Builder, v []byte) {
	b.AddUint32LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(v)
	})
}

// AddMPInt writes v as an SSH-2 integer.
func AddMPInt(b *cryptobyte.Builder, v *big.Int) {
	AddString(b, MPIntBody(v))
}

// AddSSH1MP writes v as an SSH-1 integer.
func AddSSH1MP(b *cryptobyte.Builder, v *big.Int) {
	bits := v.BitLen()
	b.AddUint16(uint16(bits))
	buf := make([]byte, (bits+7)/8)
	v.FillBytes(buf)
	b.AddBytes(buf)
}

// AppendMPInt appends the length-prefixed SSH-2 encoding of v to dst.
func AppendMPInt(dst []byte, v *big.Int) []byte {
	b := cryptobyte.NewBuilder(dst)
	AddMPInt(b, v)
	return b.BytesOrPanic()
}

// AppendSSH1MP appends the SSH-1 encoding of v to dst.
func AppendSSH1MP(dst []byte, v *big.Int) []byte {
	b := cryptobyte.NewBuilder(dst)
	AddSSH1MP(b, v)
	return b.BytesOrPanic()
}

// AppendUint32 appends v big-endian.
func AppendUint32(dst []byte, v uint32) []byte {
	return append(dst, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
