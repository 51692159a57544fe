// ByteArray backs the spec §3 "byte-array" value-domain member on top
// of funvibe/funbit's BitString/Builder/Matcher, the domain dependency
// named in SPEC_FULL §1: a Jactl byte[] is a whole-byte BitString. Regex
// matching does not use this type; it works on string subjects only.
package values

import (
	"github.com/funvibe/funbit/pkg/funbit"

	"github.com/jactl-lang/jactl/internal/typesystem"
)

// ByteArray is the byte-array value-domain member.
type ByteArray struct {
	bits *funbit.BitString
}

// NewByteArray wraps a raw byte slice as a whole-byte BitString.
func NewByteArray(data []byte) *ByteArray {
	return &ByteArray{bits: funbit.NewBitStringFromBytes(data)}
}

func (*ByteArray) Tag() typesystem.Tag { return typesystem.TAG_BYTEARRAY }

func (b *ByteArray) String() string { return funbit.ToHexDump(b.bits) }

// Bytes extracts the underlying bytes by running a single whole-binary
// match through funbit's Matcher, mirroring how other callers of the
// package pull bytes back out of a BitString (funbit_test.go's
// RestBinary pattern).
func (b *ByteArray) Bytes() ([]byte, error) {
	m := funbit.NewMatcher()
	var out []byte
	funbit.RestBinary(m, &out)
	if _, err := funbit.Match(m, b.bits); err != nil {
		return nil, err
	}
	return out, nil
}

// Len reports the byte-array's length in whole bytes.
func (b *ByteArray) Len() int {
	data, err := b.Bytes()
	if err != nil {
		return 0
	}
	return len(data)
}

// Concat appends other's bytes onto b, building a fresh BitString via
// funbit's Builder the way a Builder/AddBinary/Build pipeline is used
// throughout funbit's own public API example.
func (b *ByteArray) Concat(other *ByteArray) (*ByteArray, error) {
	selfBytes, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	otherBytes, err := other.Bytes()
	if err != nil {
		return nil, err
	}
	builder := funbit.NewBuilder()
	funbit.AddBinary(builder, selfBytes)
	funbit.AddBinary(builder, otherBytes)
	bs, err := funbit.Build(builder)
	if err != nil {
		return nil, err
	}
	return &ByteArray{bits: bs}, nil
}

// Slice returns a new ByteArray holding data[from:to], where data is the
// whole byte content that Bytes extracts; the range is cut from that Go
// slice and rewrapped with NewByteArray.
func (b *ByteArray) Slice(from, to int) (*ByteArray, error) {
	data, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	if from < 0 || to > len(data) || from > to {
		return nil, &SliceRangeError{From: from, To: to, Len: len(data)}
	}
	return NewByteArray(data[from:to]), nil
}

// SliceRangeError reports an out-of-range byte-array slice, surfaced by
// the code generator as a runtime error (spec §7: "value-domain
// violations").
type SliceRangeError struct{ From, To, Len int }

func (e *SliceRangeError) Error() string {
	return "byte-array slice out of range"
}
