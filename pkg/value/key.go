package value

import (
	"encoding/binary"
	"math"
)

// MaxKeyLen bounds the length of an encoded CompoundKey. Appends past this
// bound silently truncate — per spec a truncated key is still a valid
// inequality prefix, so truncation never corrupts ordering, only limits how
// many trailing fields participate in tie-breaking.
const MaxKeyLen = 4096

// Direction controls byte inversion for a single key component.
type Direction uint8

const (
	Asc Direction = iota
	Desc
)

// typeTag is the single byte written before every encoded value, fixing
// the null < bool < int < number < string order even across mixed-tag
// indexes (which the schema never actually produces per-field, but the
// tag byte keeps the encoding self-describing and future-proof).
func typeTag(k Kind) byte {
	return byte(k)
}

// CompoundKey is an order-preserving byte-encoded composite key. Two keys
// compare equal under bytes.Compare iff the tuples they encode compare
// equal under the fields' declared directions, for keys within MaxKeyLen.
type CompoundKey []byte

// Builder accumulates components into a CompoundKey.
type Builder struct {
	buf []byte
}

// NewBuilder returns an empty key builder.
func NewBuilder() *Builder {
	return &Builder{buf: make([]byte, 0, 64)}
}

// AppendValue encodes v in direction dir and appends it to the key.
// Appends past MaxKeyLen are silently dropped.
func (b *Builder) AppendValue(v Value, dir Direction) *Builder {
	if len(b.buf) >= MaxKeyLen {
		return b
	}
	start := len(b.buf)
	b.buf = append(b.buf, typeTag(v.Kind()))
	switch v.Kind() {
	case KindNull:
		// no payload
	case KindBool:
		if v.Bool() {
			b.buf = append(b.buf, 1)
		} else {
			b.buf = append(b.buf, 0)
		}
	case KindInt:
		b.buf = appendInt(b.buf, v.Int())
	case KindNumber:
		b.buf = appendNumber(b.buf, v.Number())
	case KindString:
		b.buf = appendString(b.buf, v.String())
	}
	if dir == Desc {
		invertRange(b.buf, start, len(b.buf))
	}
	b.truncate()
	return b
}

// AppendID appends a big-endian NodeId as a trailing uniqueness
// tiebreaker. IDs are never inverted: ties within a sort are always broken
// NodeId-ascending, per spec.md §5.
func (b *Builder) AppendID(id uint64) *Builder {
	if len(b.buf) >= MaxKeyLen {
		return b
	}
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], id)
	b.buf = append(b.buf, tmp[:]...)
	b.truncate()
	return b
}

func (b *Builder) truncate() {
	if len(b.buf) > MaxKeyLen {
		b.buf = b.buf[:MaxKeyLen]
	}
}

// Bytes returns the accumulated key. The returned slice must not be
// mutated by the caller; callers that need to keep it past further
// Builder calls should copy it first (Build does this).
func (b *Builder) Bytes() []byte { return b.buf }

// Build finalizes the key as an owned copy.
func (b *Builder) Build() CompoundKey {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// appendInt encodes a signed 64-bit integer so that big-endian byte
// comparison matches numeric order: flip the sign bit (zigzag-complement)
// so negative numbers sort before non-negative ones.
func appendInt(buf []byte, i int64) []byte {
	u := uint64(i) ^ (1 << 63)
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], u)
	return append(buf, tmp[:]...)
}

// appendNumber encodes an IEEE-754 double so that big-endian byte
// comparison matches numeric order across the full range including
// negatives: for non-negative floats, flip the sign bit; for negative
// floats, flip every bit. This is the standard totally-ordered-float
// rewrite.
func appendNumber(buf []byte, f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], bits)
	return append(buf, tmp[:]...)
}

// appendString encodes a string terminated by two zero bytes, escaping any
// embedded zero byte as 0x00 0x01 so the terminator remains unambiguous.
// Because the terminator sorts before any escaped byte pair, this preserves
// lexicographic string order under the raw-byte comparison the encoding
// relies on (see spec.md §9: desc-inverted terminators becoming 0xFF 0xFF
// still sort strings correctly).
func appendString(buf []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 0x00 {
			buf = append(buf, 0x00, 0x01)
		} else {
			buf = append(buf, c)
		}
	}
	return append(buf, 0x00, 0x00)
}

// invertRange bit-inverts buf[start:end] in place, implementing desc-field
// inversion: inverting every byte of an ascending encoding yields a
// descending one, because bytewise comparison is monotonic under
// complement.
func invertRange(buf []byte, start, end int) {
	for i := start; i < end; i++ {
		buf[i] = ^buf[i]
	}
}

// Compare orders two CompoundKeys by raw byte comparison.
func Compare(a, b CompoundKey) int {
	la, lb := len(a), len(b)
	n := la
	if lb < n {
		n = lb
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case la < lb:
		return -1
	case la > lb:
		return 1
	default:
		return 0
	}
}
