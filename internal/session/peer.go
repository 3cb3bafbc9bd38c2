package session

import (
	"errors"
	"sync"

	"github.com/romashorodok/collab-relay/pkg/protocol"
	"github.com/romashorodok/collab-relay/pkg/wsutils"
	"go.uber.org/atomic"
)

var (
	ErrOutboxFull = errors.New("outbox is full")
	ErrPeerClosed = errors.New("peer is closed")
)

// peer is the relay sink of one websocket. Frames are queued in outbox and
// written by the connection's write pump.
type peer struct {
	id     protocol.ConnID
	ws     *wsutils.ThreadSafeWriter
	outbox chan []byte

	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

func (p *peer) Send(frame []byte) error {
	select {
	case <-p.done:
		return ErrPeerClosed
	default:
	}

	select {
	case p.outbox <- frame:
		return nil
	case <-p.done:
		return ErrPeerClosed
	default:
		p.dropped.Inc()
		return ErrOutboxFull
	}
}

func (p *peer) close() {
	p.closeOnce.Do(func() { close(p.done) })
}

func newPeer(id protocol.ConnID, ws *wsutils.ThreadSafeWriter, outboxSize int) *peer {
	return &peer{
		id:     id,
		ws:     ws,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
	}
}
