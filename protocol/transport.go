package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrClosed  = errors.New("transport closed")
	ErrTimeout = errors.New("no acknowledgement")
)

const (
	DefaultTimeout = 250 * time.Millisecond
	DefaultRetries = 3

	// idleWait paces reads when the port reports a read timeout as EOF.
	idleWait = 10 * time.Millisecond
)

// Transport sends commands to an MCU and collects its responses. Send
// serializes callers and blocks until the command is acknowledged.
type Transport struct {
	port   io.ReadWriteCloser
	logger *slog.Logger

	Timeout time.Duration // Wait per attempt before retransmitting
	Retries int

	sendMu sync.Mutex
	seq    uint8

	acks      chan uint8
	responses chan []byte

	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewTransport starts reading from port.
func NewTransport(port io.ReadWriteCloser, logger *slog.Logger) *Transport {
	t := &Transport{
		port:      port,
		logger:    logger,
		Timeout:   DefaultTimeout,
		Retries:   DefaultRetries,
		seq:       SeqDest,
		acks:      make(chan uint8, 16),
		responses: make(chan []byte, 64),
		done:      make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// Send transmits payload as one frame and waits for the MCU to accept it,
// retransmitting on timeout.
func (t *Transport) Send(ctx context.Context, payload []byte) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	frame, err := EncodeFrame(t.seq, payload)
	if err != nil {
		return err
	}
	want := NextSeq(t.seq)
	for len(t.acks) > 0 {
		<-t.acks
	}

	for attempt := 0; attempt <= t.Retries; attempt++ {
		if attempt > 0 {
			t.logger.Debug("retransmitting", "seq", t.seq, "attempt", attempt)
		}
		if _, err := t.port.Write(frame); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		ok, err := t.waitAck(ctx, want)
		if err != nil {
			return err
		}
		if ok {
			t.seq = want
			return nil
		}
	}
	return fmt.Errorf("seq %#02x: %w after %d attempts", t.seq, ErrTimeout, t.Retries+1)
}

// waitAck returns true once a frame carrying want arrives and false when
// the attempt times out. Frames for other sequences are stale acks or naks.
func (t *Transport) waitAck(ctx context.Context, want uint8) (bool, error) {
	timer := time.NewTimer(t.Timeout)
	defer timer.Stop()
	for {
		select {
		case seq := <-t.acks:
			if seq == want {
				return true, nil
			}
			t.logger.Debug("ignoring frame", "seq", seq, "want", want)
		case <-timer.C:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		case <-t.done:
			return false, ErrClosed
		}
	}
}

// Receive returns the next response payload.
func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case p := <-t.responses:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return nil, ErrClosed
	}
}

func (t *Transport) readLoop() {
	defer close(t.done)
	dec := NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			for _, f := range dec.Feed(buf[:n]) {
				t.dispatch(f)
			}
		}
		if err == nil {
			continue
		}
		if t.closing.Load() {
			return
		}
		if errors.Is(err, io.EOF) {
			time.Sleep(idleWait)
			continue
		}
		t.logger.Error("serial read failed", "err", err)
		return
	}
}

// dispatch treats every frame as an acknowledgement; frames with a
// payload are also queued as responses.
func (t *Transport) dispatch(f Frame) {
	select {
	case t.acks <- f.Seq:
	default:
		select {
		case <-t.acks:
		default:
		}
		select {
		case t.acks <- f.Seq:
		default:
		}
	}
	if f.IsAck() {
		return
	}
	select {
	case t.responses <- f.Payload:
	default:
		select {
		case <-t.responses:
		default:
		}
		select {
		case t.responses <- f.Payload:
		default:
		}
		t.logger.Warn("response queue full, dropped oldest")
	}
}

// Close stops the reader and closes the port.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.closing.Store(true)
		t.closeErr = t.port.Close()
		<-t.done
	})
	return t.closeErr
}
