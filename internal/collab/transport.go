package collab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/preston-bernstein/ftbuilder/internal/codec"
)

// ErrTransportClosed is returned once a transport has been closed.
var ErrTransportClosed = errors.New("transport closed")

// Transport moves envelopes between editors. Receive blocks until an
// envelope arrives, ctx is done, or the transport is closed.
type Transport interface {
	Publish(ctx context.Context, e Envelope) error
	Receive(ctx context.Context) (Envelope, error)
	Close() error
}

// Hub is an in-process broadcast medium. Every envelope published by one
// peer is delivered to all other peers as encoded bytes.
type Hub struct {
	mu    sync.Mutex
	peers []*Loopback
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Join attaches a new peer with an inbox of the given capacity.
func (h *Hub) Join(buffer int) *Loopback {
	if buffer <= 0 {
		buffer = 64
	}
	p := &Loopback{hub: h, inbox: make(chan []byte, buffer), done: make(chan struct{})}
	h.mu.Lock()
	h.peers = append(h.peers, p)
	h.mu.Unlock()
	return p
}

func (h *Hub) leave(p *Loopback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, peer := range h.peers {
		if peer == p {
			h.peers = append(h.peers[:i], h.peers[i+1:]...)
			return
		}
	}
}

func (h *Hub) others(p *Loopback) []*Loopback {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Loopback, 0, len(h.peers))
	for _, peer := range h.peers {
		if peer != p {
			out = append(out, peer)
		}
	}
	return out
}

// Loopback is one peer on a Hub.
type Loopback struct {
	hub       *Hub
	inbox     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

var _ Transport = (*Loopback)(nil)

// Publish encodes e and delivers it to every other peer. A slow peer
// blocks the publisher until ctx is done.
func (l *Loopback) Publish(ctx context.Context, e Envelope) error {
	select {
	case <-l.done:
		return ErrTransportClosed
	default:
	}
	data, err := Encode(e)
	if err != nil {
		return err
	}
	for _, peer := range l.hub.others(l) {
		select {
		case peer.inbox <- data:
		case <-peer.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Receive returns the next envelope from another peer.
func (l *Loopback) Receive(ctx context.Context) (Envelope, error) {
	select {
	case data := <-l.inbox:
		return Decode(data)
	case <-l.done:
		return Envelope{}, ErrTransportClosed
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

// Close detaches the peer from its hub.
func (l *Loopback) Close() error {
	l.closeOnce.Do(func() {
		l.hub.leave(l)
		close(l.done)
	})
	return nil
}

// Stream carries envelopes as a CBOR sequence over a byte stream such as a
// net.Conn. Receive must be called from a single goroutine.
type Stream struct {
	rwc io.ReadWriteCloser

	writeMu sync.Mutex
	enc     *cbor.Encoder
	dec     *cbor.Decoder
}

var _ Transport = (*Stream)(nil)

// NewStream wraps rwc.
func NewStream(rwc io.ReadWriteCloser) *Stream {
	return &Stream{rwc: rwc, enc: codec.NewEncoder(rwc), dec: codec.NewDecoder(rwc)}
}

// Publish writes e to the stream.
func (s *Stream) Publish(ctx context.Context, e Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.enc.Encode(e)
}

// Receive reads the next envelope. A well-formed item that is not a valid
// envelope yields ErrInvalidEnvelope and the next call continues after it.
// Bytes that are not well-formed CBOR leave the stream unusable. Cancelling
// ctx does not interrupt a blocked read; close the stream for that.
func (s *Stream) Receive(ctx context.Context) (Envelope, error) {
	if err := ctx.Err(); err != nil {
		return Envelope{}, err
	}
	var e Envelope
	if err := s.dec.Decode(&e); err != nil {
		var (
			typeErr     *cbor.UnmarshalTypeError
			semanticErr *cbor.SemanticError
		)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe):
			return Envelope{}, ErrTransportClosed
		case errors.As(err, &typeErr), errors.As(err, &semanticErr):
			// The item was well formed, so the decoder has moved past it.
			return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
		default:
			return Envelope{}, fmt.Errorf("read envelope: %w", err)
		}
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

// Close closes the underlying stream.
func (s *Stream) Close() error {
	return s.rwc.Close()
}
