package room

import (
	"context"
	"sync"

	"github.com/romashorodok/collab-relay/pkg/executils"
	"github.com/romashorodok/collab-relay/pkg/wsutils"
	"go.uber.org/fx"
)

// RoomNotifier pushes the room list to lobby listeners whenever membership
// changes. Bursts of changes collapse into one update.
type RoomNotifier struct {
	listeners     map[string]*wsutils.ThreadSafeWriter
	listenersMu   sync.Mutex
	updateRoomsCh chan struct{}
}

func (n *RoomNotifier) Listen(id string, w *wsutils.ThreadSafeWriter) {
	n.listenersMu.Lock()
	defer n.listenersMu.Unlock()
	n.listeners[id] = w
}

func (n *RoomNotifier) Stop(id string) error {
	n.listenersMu.Lock()
	defer n.listenersMu.Unlock()

	if _, exist := n.listeners[id]; !exist {
		return ErrListenerNotExists
	}
	delete(n.listeners, id)
	return nil
}

// DispatchUpdateRooms never blocks, it is called under the manager lock.
func (n *RoomNotifier) DispatchUpdateRooms() {
	select {
	case n.updateRoomsCh <- struct{}{}:
	default:
	}
}

func (n *RoomNotifier) getListeners() []*wsutils.ThreadSafeWriter {
	n.listenersMu.Lock()
	defer n.listenersMu.Unlock()

	result := make([]*wsutils.ThreadSafeWriter, 0, len(n.listeners))
	for _, listener := range n.listeners {
		result = append(result, listener)
	}
	return result
}

func (n *RoomNotifier) OnUpdateRooms(ctx context.Context, fn func(*wsutils.ThreadSafeWriter)) {
	opt := executils.ParallelOption{Threshold: 1000, Step: 2}
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.updateRoomsCh:
			executils.ParallelExec(n.getListeners(), opt, fn)
		}
	}
}

type NewRoomNotifierParams struct {
	fx.In

	Manager *Manager
}

func NewRoomNotifier(params NewRoomNotifierParams) *RoomNotifier {
	n := &RoomNotifier{
		listeners:     make(map[string]*wsutils.ThreadSafeWriter),
		updateRoomsCh: make(chan struct{}, 1),
	}
	params.Manager.OnChange(func(Change) { n.DispatchUpdateRooms() })
	return n
}
