// Package protocol implements the host side of the Klipper serial protocol:
// framing, VLQ argument encoding and command format strings.
package protocol

import "errors"

// Frame layout: len, seq, payload..., crc hi, crc lo, sync.
const (
	FrameHeader  = 2
	FrameTrailer = 3
	FrameMin     = FrameHeader + FrameTrailer
	FrameMax     = 64
	PayloadMax   = FrameMax - FrameMin

	posLen = 0
	posSeq = 1

	SeqDest = 0x10
	SeqMask = 0x0F
	Sync    = 0x7E
)

var (
	ErrFrameTooLong = errors.New("frame too long")
	ErrShortBuffer  = errors.New("short buffer")
)

// Frame is one decoded message block.
type Frame struct {
	Seq     uint8
	Payload []byte
}

// IsAck reports whether f carries no payload.
func (f Frame) IsAck() bool { return len(f.Payload) == 0 }

// NextSeq returns the sequence number following seq.
func NextSeq(seq uint8) uint8 {
	return ((seq + 1) & SeqMask) | SeqDest
}

// EncodeFrame wraps payload into a complete frame with sequence seq.
func EncodeFrame(seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > PayloadMax {
		return nil, ErrFrameTooLong
	}
	n := FrameMin + len(payload)
	out := make([]byte, 0, n)
	out = append(out, byte(n), (seq&SeqMask)|SeqDest)
	out = append(out, payload...)
	crc := CRC16(out)
	return append(out, byte(crc>>8), byte(crc), Sync), nil
}
