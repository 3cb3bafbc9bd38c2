package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/romashorodok/collab-relay/internal/room"
	"github.com/romashorodok/collab-relay/pkg/executils"
	"github.com/romashorodok/collab-relay/pkg/protocol"
	"github.com/romashorodok/collab-relay/pkg/variables"
	"go.uber.org/fx"
)

var (
	ErrNoRoute      = errors.New("no route for event")
	ErrPeerGone     = errors.New("target peer is gone")
	ErrSinkAttached = errors.New("sink already attached")
	ErrUnknownScope = errors.New("unknown dispatch scope")
)

// Sink is the outbound path of one connection. Send must not block, a closed
// or saturated sink returns an error and the event is dropped for it.
type Sink interface {
	Send(frame []byte) error
}

type Scope int

const (
	ScopeRoom Scope = iota
	ScopeRoomExceptSender
	ScopeConnection
)

func (s Scope) String() string {
	switch s {
	case ScopeRoom:
		return "room"
	case ScopeRoomExceptSender:
		return "room-except-sender"
	case ScopeConnection:
		return "connection"
	}
	return "unknown"
}

// Event is one outbound delivery request. Body is either a json.RawMessage
// forwarded as is or a payload struct.
type Event struct {
	Name   protocol.EventName
	RoomID protocol.RoomID
	Sender protocol.ConnID
	Target protocol.ConnID
	Scope  Scope
	Body   any
}

type Relay struct {
	logger  *slog.Logger
	manager *room.Manager

	sinksMu sync.RWMutex
	sinks   map[protocol.ConnID]Sink

	parallel          executils.ParallelOption
	drawingEchoSender bool
}

func (r *Relay) Attach(connID protocol.ConnID, sink Sink) error {
	r.sinksMu.Lock()
	defer r.sinksMu.Unlock()

	if _, exist := r.sinks[connID]; exist {
		return fmt.Errorf("%s: %w", connID, ErrSinkAttached)
	}
	r.sinks[connID] = sink
	return nil
}

func (r *Relay) Detach(connID protocol.ConnID) {
	r.sinksMu.Lock()
	defer r.sinksMu.Unlock()
	delete(r.sinks, connID)
}

// Connect makes connID routable: it gets a sink and a registry entry.
func (r *Relay) Connect(connID protocol.ConnID, sink Sink) error {
	if err := r.Attach(connID, sink); err != nil {
		return err
	}
	if err := r.manager.Connect(connID); err != nil {
		r.Detach(connID)
		return err
	}
	return nil
}

// Disconnect leaves every room of connID, notifying the remaining members,
// then drops its sink. Safe to call twice.
func (r *Relay) Disconnect(connID protocol.ConnID) []room.Departure {
	departures := r.manager.Leave(connID)
	r.Detach(connID)
	return departures
}

func (r *Relay) Connections() int {
	r.sinksMu.RLock()
	defer r.sinksMu.RUnlock()
	return len(r.sinks)
}

// Handle routes one decoded inbound event of connID. Returned errors are
// either join failures, which the caller reports to the client, or routing
// errors, which the caller only logs.
func (r *Relay) Handle(connID protocol.ConnID, event protocol.Inbound) error {
	switch e := event.(type) {
	case protocol.JoinEvent:
		_, err := r.manager.Join(e.RoomID, connID, e.DisplayName)
		return err

	case protocol.LeaveEvent:
		r.manager.LeaveRooms(connID)
		return nil

	case protocol.CodeChangeEvent:
		roomID, err := r.resolveRoom(connID, e.RoomID)
		if err != nil {
			return err
		}
		r.manager.Touch(connID)
		return r.Dispatch(Event{
			Name:   protocol.EventCodeChange,
			RoomID: roomID,
			Sender: connID,
			Scope:  ScopeRoomExceptSender,
			Body:   e.Body,
		})

	case protocol.SyncCodeEvent:
		return r.Dispatch(Event{
			Name:   protocol.EventCodeChange,
			Sender: connID,
			Target: e.TargetID,
			Scope:  ScopeConnection,
			Body:   e.Body,
		})

	case protocol.DrawingEvent:
		roomID, err := r.resolveRoom(connID, e.RoomID)
		if err != nil {
			return err
		}
		scope := ScopeRoomExceptSender
		if r.drawingEchoSender {
			scope = ScopeRoom
		}
		return r.Dispatch(Event{
			Name:   protocol.EventDrawing,
			RoomID: roomID,
			Sender: connID,
			Scope:  scope,
			Body:   e.Body,
		})
	}

	return fmt.Errorf("%T: %w", event, protocol.ErrUnknownEvent)
}

func (r *Relay) resolveRoom(connID protocol.ConnID, roomID protocol.RoomID) (protocol.RoomID, error) {
	if roomID != "" {
		return roomID, nil
	}
	if current, ok := r.manager.RoomOf(connID); ok {
		return current, nil
	}
	return "", fmt.Errorf("%s not joined: %w", connID, ErrNoRoute)
}

// Dispatch resolves the target set of event and delivers it. A room scoped
// event is routed only when the sender, if any, is a member of the room.
func (r *Relay) Dispatch(event Event) error {
	var targets []protocol.ConnID

	switch event.Scope {
	case ScopeConnection:
		if event.Target == "" {
			return fmt.Errorf("empty target: %w", ErrNoRoute)
		}
		targets = []protocol.ConnID{event.Target}

	case ScopeRoom, ScopeRoomExceptSender:
		members := r.manager.MembersOf(event.RoomID)
		if len(members) == 0 {
			return fmt.Errorf("room %q: %w", event.RoomID, ErrNoRoute)
		}

		senderIn := false
		targets = make([]protocol.ConnID, 0, len(members))
		for _, m := range members {
			if m.SocketID == event.Sender {
				senderIn = true
				if event.Scope == ScopeRoomExceptSender {
					continue
				}
			}
			targets = append(targets, m.SocketID)
		}
		if event.Sender != "" && !senderIn {
			return fmt.Errorf("%s is not in room %q: %w", event.Sender, event.RoomID, ErrNoRoute)
		}

	default:
		return fmt.Errorf("%d: %w", event.Scope, ErrUnknownScope)
	}

	frame, err := protocol.Encode(event.Name, event.Body)
	if err != nil {
		return err
	}

	sinks := r.resolveSinks(targets)
	if event.Scope == ScopeConnection && len(sinks) == 0 {
		return fmt.Errorf("%s: %w", event.Target, ErrPeerGone)
	}

	r.deliver(event.Name, sinks, frame)
	return nil
}

type target struct {
	connID protocol.ConnID
	sink   Sink
}

func (r *Relay) resolveSinks(ids []protocol.ConnID) []target {
	r.sinksMu.RLock()
	defer r.sinksMu.RUnlock()

	result := make([]target, 0, len(ids))
	for _, id := range ids {
		if sink, exist := r.sinks[id]; exist {
			result = append(result, target{connID: id, sink: sink})
		}
	}
	return result
}

func (r *Relay) deliver(name protocol.EventName, targets []target, frame []byte) {
	executils.ParallelExec(targets, r.parallel, func(t target) {
		if err := t.sink.Send(frame); err != nil {
			r.logger.Debug("drop event",
				slog.String("event", string(name)),
				slog.String("connId", t.connID),
				slog.String("reason", err.Error()),
			)
		}
	})
}

// onMembershipChange runs under the room manager lock, which keeps the
// notifications of one room in mutation order.
func (r *Relay) onMembershipChange(change room.Change) {
	payload := protocol.MembershipPayload{
		Clients:  change.Members,
		Username: change.Subject.Username,
		SocketID: change.Subject.SocketID,
	}

	name := protocol.EventJoined
	if change.Kind == room.ChangeLeft {
		name = protocol.EventDisconnected
	}

	frame, err := protocol.Encode(name, payload)
	if err != nil {
		r.logger.Error("encode membership", slog.String("roomId", change.RoomID), slog.String("err", err.Error()))
		return
	}

	members := make([]protocol.ConnID, 0, len(change.Members))
	for _, m := range change.Members {
		members = append(members, m.SocketID)
	}
	r.deliver(name, r.resolveSinks(members), frame)

	if len(change.SyncPeers) == 0 {
		return
	}

	frame, err = protocol.Encode(protocol.EventSyncRequest, protocol.SyncRequestPayload{
		SocketID: change.Subject.SocketID,
	})
	if err != nil {
		return
	}
	// A peer that already left is skipped, the joiner then starts empty.
	r.deliver(protocol.EventSyncRequest, r.resolveSinks(change.SyncPeers), frame)
}

type NewRelayParams struct {
	fx.In

	Config  *variables.Config
	Logger  *slog.Logger
	Manager *room.Manager
}

func New(params NewRelayParams) *Relay {
	r := &Relay{
		logger:  params.Logger,
		manager: params.Manager,
		sinks:   make(map[protocol.ConnID]Sink),
		parallel: executils.ParallelOption{
			Threshold: params.Config.FanoutParallelThreshold,
			Step:      8,
		},
		drawingEchoSender: params.Config.DrawingEchoSender,
	}
	params.Manager.OnChange(r.onMembershipChange)
	return r
}
