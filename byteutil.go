package ledgeridx

import (
	"encoding/binary"
	"strings"
)

func ensureCapacity(buf []byte, minCap int) []byte {
	c := cap(buf)
	if minCap > c {
		if c < 16 {
			c = 16
		}
		for minCap > c {
			c <<= 1
		}
		old := buf
		buf = make([]byte, len(old), c)
		copy(buf, old)
	}
	return buf
}

func grow(buf []byte, n int) (int, []byte) {
	off := len(buf)
	newLen := off + n
	buf = ensureCapacity(buf, newLen)
	return off, buf[:newLen]
}

// layoutWriter appends little-endian Borsh-style fields.
type layoutWriter struct {
	Buf []byte
}

func (w *layoutWriter) Grow(n int) (off int) {
	off, w.Buf = grow(w.Buf, n)
	return
}

func (w *layoutWriter) Raw(b []byte) {
	off := w.Grow(len(b))
	copy(w.Buf[off:], b)
}

func (w *layoutWriter) U8(v uint8) {
	off := w.Grow(1)
	w.Buf[off] = v
}

func (w *layoutWriter) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

func (w *layoutWriter) U16(v uint16) {
	off := w.Grow(2)
	binary.LittleEndian.PutUint16(w.Buf[off:], v)
}

func (w *layoutWriter) U32(v uint32) {
	off := w.Grow(4)
	binary.LittleEndian.PutUint32(w.Buf[off:], v)
}

func (w *layoutWriter) U64(v uint64) {
	off := w.Grow(8)
	binary.LittleEndian.PutUint64(w.Buf[off:], v)
}

func (w *layoutWriter) Uint(v uint64, width int) {
	switch width {
	case 1:
		w.U8(uint8(v))
	case 2:
		w.U16(uint16(v))
	case 4:
		w.U32(uint32(v))
	case 8:
		w.U64(v)
	default:
		panic("invalid integer width")
	}
}

func (w *layoutWriter) Pubkey(pk Pubkey) {
	w.Raw(pk[:])
}

func (w *layoutWriter) PubkeyVec(v []Pubkey) {
	w.U32(uint32(len(v)))
	for _, pk := range v {
		w.Pubkey(pk)
	}
}

func (w *layoutWriter) String(s string) {
	w.U32(uint32(len(s)))
	w.Raw([]byte(s))
}

func (w *layoutWriter) OptU64(v *uint64) {
	if v == nil {
		w.U8(0)
	} else {
		w.U8(1)
		w.U64(*v)
	}
}

func (w *layoutWriter) OptU8(v *uint8) {
	if v == nil {
		w.U8(0)
	} else {
		w.U8(1)
		w.U8(*v)
	}
}

// PadTo zero-fills up to n bytes total.
func (w *layoutWriter) PadTo(n int) {
	if rem := n - len(w.Buf); rem > 0 {
		w.Grow(rem)
	}
}

// layoutReader is a cursor over a payload. The first out-of-bounds read
// records an error; subsequent reads return zero values.
type layoutReader struct {
	Orig  []byte
	Buf   []byte
	class error
	err   *DecodeError
}

func makeLayoutReader(buf []byte) layoutReader {
	return layoutReader{Orig: buf, Buf: buf, class: ErrTooShort}
}

func (d *layoutReader) Off() int {
	return len(d.Orig) - len(d.Buf)
}

func (d *layoutReader) Remaining() int {
	return len(d.Buf)
}

func (d *layoutReader) Err() error {
	if d.err == nil {
		return nil
	}
	return d.err
}

// Section changes the error class reported for out-of-bounds reads from
// this point on.
func (d *layoutReader) Section(class error) {
	d.class = class
}

func (d *layoutReader) fail(format string, args ...any) {
	if d.err == nil {
		d.err = decodeErrf(d.Orig, d.Off(), d.class, format, args...)
	}
	d.Buf = nil
}

func (d *layoutReader) Raw(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.Buf) < n {
		d.fail("not enough data: %d bytes remaining, %d wanted", len(d.Buf), n)
		return nil
	}
	v := d.Buf[:n]
	d.Buf = d.Buf[n:]
	return v
}

func (d *layoutReader) Skip(n int) {
	d.Raw(n)
}

func (d *layoutReader) SeekTo(off int) {
	if d.err != nil {
		return
	}
	if off < 0 || off > len(d.Orig) {
		d.fail("offset %d out of bounds", off)
		return
	}
	d.Buf = d.Orig[off:]
}

func (d *layoutReader) U8() uint8 {
	b := d.Raw(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *layoutReader) Bool() bool {
	return d.U8() != 0
}

func (d *layoutReader) U16() uint16 {
	b := d.Raw(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (d *layoutReader) U32() uint32 {
	b := d.Raw(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *layoutReader) U64() uint64 {
	b := d.Raw(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *layoutReader) Uint(width int) uint64 {
	switch width {
	case 1:
		return uint64(d.U8())
	case 2:
		return uint64(d.U16())
	case 4:
		return uint64(d.U32())
	case 8:
		return d.U64()
	default:
		d.fail("invalid integer width %d", width)
		return 0
	}
}

func (d *layoutReader) Pubkey() Pubkey {
	var pk Pubkey
	if b := d.Raw(PubkeySize); b != nil {
		copy(pk[:], b)
	}
	return pk
}

// PubkeyVec reads a u32-prefixed vector of at most limit pubkeys.
func (d *layoutReader) PubkeyVec(limit int) []Pubkey {
	n := int(d.U32())
	if d.err != nil || n == 0 {
		return nil
	}
	if n > limit {
		d.fail("%d pubkeys, at most %d allowed", n, limit)
		return nil
	}
	v := make([]Pubkey, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		v = append(v, d.Pubkey())
	}
	return v
}

// String reads a u32-prefixed string and trims the NUL padding on-chain
// strings carry.
func (d *layoutReader) String() string {
	n := d.U32()
	b := d.Raw(int(n))
	return strings.TrimRight(string(b), "\x00")
}

func (d *layoutReader) OptU64() *uint64 {
	if d.U8() == 0 {
		return nil
	}
	v := d.U64()
	if d.err != nil {
		return nil
	}
	return &v
}

func (d *layoutReader) OptU8() *uint8 {
	if d.U8() == 0 {
		return nil
	}
	v := d.U8()
	if d.err != nil {
		return nil
	}
	return &v
}
