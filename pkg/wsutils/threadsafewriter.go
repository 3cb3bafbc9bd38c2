package wsutils

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
)

var ErrWriterClosed = errors.New("websocket writer is closed")

// ThreadSafeWriter serializes writes on a gorilla connection, which supports
// only one concurrent writer. Reads stay on the owning goroutine.
type ThreadSafeWriter struct {
	*websocket.Conn
	sync.Mutex

	writeWait time.Duration
	closed    atomic.Bool
}

// WriteMessage writes one frame of the given gorilla message type.
func (t *ThreadSafeWriter) WriteMessage(messageType int, data []byte) error {
	t.Lock()
	defer t.Unlock()

	if t.closed.Load() {
		return ErrWriterClosed
	}
	t.setWriteDeadline()
	return t.Conn.WriteMessage(messageType, data)
}

func (t *ThreadSafeWriter) setWriteDeadline() {
	if t.writeWait > 0 {
		_ = t.Conn.SetWriteDeadline(time.Now().Add(t.writeWait))
	}
}

// CloseGracefully sends a close frame before closing the socket.
func (t *ThreadSafeWriter) CloseGracefully() error {
	t.Lock()
	if !t.closed.Load() {
		t.setWriteDeadline()
		_ = t.Conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
	t.Unlock()
	return t.Close()
}

// Close is safe to call more than once.
func (t *ThreadSafeWriter) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.Conn.Close()
}

func (t *ThreadSafeWriter) Closed() bool {
	return t.closed.Load()
}

func NewThreadSafeWriter(conn *websocket.Conn, writeWait time.Duration) *ThreadSafeWriter {
	return &ThreadSafeWriter{
		Conn:      conn,
		writeWait: writeWait,
	}
}
