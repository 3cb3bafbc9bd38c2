package protocol

import (
	"encoding/json"
)

type (
	RoomID = string
	ConnID = string
)

type EventName string

// Inbound events, client to relay.
const (
	EventJoin       EventName = "join"
	EventLeave      EventName = "leave"
	EventCodeChange EventName = "code-change"
	EventSyncCode   EventName = "sync-code"
	EventDrawing    EventName = "drawing"
)

// Outbound events, relay to client. code-change and drawing are reused as is.
const (
	EventJoined       EventName = "joined"
	EventDisconnected EventName = "disconnected"
	EventSyncRequest  EventName = "sync-request"
	EventError        EventName = "error"
	EventUpdateRooms  EventName = "update-rooms"
)

// Message is the envelope of every websocket text frame.
type Message struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type DrawingAction string

const (
	DrawingStart DrawingAction = "start"
	DrawingMove  DrawingAction = "move"
	DrawingEnd   DrawingAction = "end"
)

func (a DrawingAction) Valid() bool {
	switch a {
	case DrawingStart, DrawingMove, DrawingEnd:
		return true
	}
	return false
}

// Inbound is the closed set of events a client may send. Only types of this
// package implement it.
type Inbound interface {
	Name() EventName
	inbound()
}

type JoinEvent struct {
	RoomID      RoomID
	DisplayName string
}

type LeaveEvent struct{}

// CodeChangeEvent carries the editor buffer. Body is the payload with routing
// fields removed, forwarded to peers without further inspection.
type CodeChangeEvent struct {
	RoomID RoomID
	Code   string
	Body   json.RawMessage
}

// SyncCodeEvent is the catch-up reply addressed to a single connection.
type SyncCodeEvent struct {
	TargetID ConnID
	Code     string
	Body     json.RawMessage
}

type DrawingEvent struct {
	RoomID RoomID
	Action DrawingAction
	Body   json.RawMessage
}

func (JoinEvent) Name() EventName       { return EventJoin }
func (LeaveEvent) Name() EventName      { return EventLeave }
func (CodeChangeEvent) Name() EventName { return EventCodeChange }
func (SyncCodeEvent) Name() EventName   { return EventSyncCode }
func (DrawingEvent) Name() EventName    { return EventDrawing }

func (JoinEvent) inbound()       {}
func (LeaveEvent) inbound()      {}
func (CodeChangeEvent) inbound() {}
func (SyncCodeEvent) inbound()   {}
func (DrawingEvent) inbound()    {}

// Member is one entry of a membership snapshot.
type Member struct {
	SocketID ConnID `json:"socketId"`
	Username string `json:"username"`
}

type MembershipPayload struct {
	Clients  []Member `json:"clients"`
	Username string   `json:"username"`
	SocketID ConnID   `json:"socketId"`
}

type SyncRequestPayload struct {
	SocketID ConnID `json:"socketId"`
}

type ErrorPayload struct {
	Event   EventName `json:"event,omitempty"`
	Message string    `json:"message"`
}

type RoomInfo struct {
	RoomID       RoomID   `json:"roomId"`
	Participants []Member `json:"participants"`
}

type UpdateRoomsPayload struct {
	Rooms []RoomInfo `json:"rooms"`
}

// Encode builds a ready to send frame. Raw payloads are embedded without a
// second marshal.
func Encode(event EventName, data any) ([]byte, error) {
	msg := Message{Event: event}

	switch v := data.(type) {
	case nil:
	case json.RawMessage:
		msg.Data = v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}

	return json.Marshal(&msg)
}
