package protocol

// Decoder reassembles frames from a byte stream. After a corrupt frame it
// drops input up to the next sync byte.
type Decoder struct {
	buf     []byte
	synced  bool
	Dropped int // Bytes discarded while resynchronizing
}

func NewDecoder() *Decoder { return &Decoder{synced: true} }

// Feed appends data and returns every complete frame now available.
func (d *Decoder) Feed(data []byte) []Frame {
	d.buf = append(d.buf, data...)
	var frames []Frame
	for len(d.buf) > 0 {
		if !d.synced {
			i := 0
			for i < len(d.buf) && d.buf[i] != Sync {
				i++
			}
			if i == len(d.buf) {
				d.drop(i)
				break
			}
			d.drop(i)
			d.buf = d.buf[1:]
			d.synced = true
			continue
		}
		if d.buf[0] == Sync {
			d.buf = d.buf[1:]
			continue
		}
		if len(d.buf) < FrameMin {
			break
		}
		n := int(d.buf[posLen])
		if n < FrameMin || n > FrameMax {
			d.synced = false
			continue
		}
		if len(d.buf) < n {
			break
		}
		if d.buf[n-1] != Sync || d.buf[posSeq]&^SeqMask != SeqDest {
			d.synced = false
			continue
		}
		crc := uint16(d.buf[n-3])<<8 | uint16(d.buf[n-2])
		if crc != CRC16(d.buf[:n-FrameTrailer]) {
			d.synced = false
			continue
		}
		payload := make([]byte, n-FrameMin)
		copy(payload, d.buf[FrameHeader:n-FrameTrailer])
		frames = append(frames, Frame{Seq: d.buf[posSeq], Payload: payload})
		d.buf = d.buf[n:]
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return frames
}

func (d *Decoder) drop(n int) {
	d.Dropped += n
	d.buf = d.buf[n:]
}
