package protocol

import "errors"

var ErrInvalidVLQ = errors.New("invalid VLQ encoding")

// AppendInt appends v in Klipper's VLQ encoding, most significant group
// first.
func AppendInt(b []byte, v int32) []byte {
	if !(-(1<<26) <= v && v < (3<<26)) {
		b = append(b, byte((v>>28)&0x7F)|0x80)
	}
	if !(-(1<<19) <= v && v < (3<<19)) {
		b = append(b, byte((v>>21)&0x7F)|0x80)
	}
	if !(-(1<<12) <= v && v < (3<<12)) {
		b = append(b, byte((v>>14)&0x7F)|0x80)
	}
	if !(-(1<<5) <= v && v < (3<<5)) {
		b = append(b, byte((v>>7)&0x7F)|0x80)
	}
	return append(b, byte(v&0x7F))
}

// AppendUint appends v. Values above MaxInt32 wrap like on the MCU.
func AppendUint(b []byte, v uint32) []byte { return AppendInt(b, int32(v)) }

// AppendBytes appends a length-prefixed byte string.
func AppendBytes(b, data []byte) []byte {
	b = AppendUint(b, uint32(len(data)))
	return append(b, data...)
}

// AppendString appends a length-prefixed string.
func AppendString(b []byte, s string) []byte {
	b = AppendUint(b, uint32(len(s)))
	return append(b, s...)
}

// Reader decodes VLQ arguments from a payload.
type Reader struct {
	data []byte
}

func NewReader(data []byte) *Reader { return &Reader{data: data} }

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.data) }

// Int decodes one signed value.
func (r *Reader) Int() (int32, error) {
	if len(r.data) == 0 {
		return 0, ErrShortBuffer
	}
	c := uint32(r.data[0])
	r.data = r.data[1:]
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	for n := 0; c&0x80 != 0; n++ {
		if n == 4 {
			return 0, ErrInvalidVLQ
		}
		if len(r.data) == 0 {
			return 0, ErrShortBuffer
		}
		c = uint32(r.data[0])
		r.data = r.data[1:]
		v = v<<7 | c&0x7F
	}
	return int32(v), nil
}

// Uint decodes one unsigned value.
func (r *Reader) Uint() (uint32, error) {
	v, err := r.Int()
	return uint32(v), err
}

// Bytes decodes a length-prefixed byte string. The result aliases the
// payload.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Uint()
	if err != nil {
		return nil, err
	}
	if uint32(len(r.data)) < n {
		return nil, ErrShortBuffer
	}
	out := r.data[:n:n]
	r.data = r.data[n:]
	return out, nil
}

// String decodes a length-prefixed string.
func (r *Reader) String() (string, error) {
	b, err := r.Bytes()
	return string(b), err
}
