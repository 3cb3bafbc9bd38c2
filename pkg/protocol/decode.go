package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedEvent       = errors.New("malformed event")
	ErrUnknownEvent         = errors.New("unknown event")
	ErrMissingRoomID        = errors.New("missing room id")
	ErrMissingDisplayName   = errors.New("missing display name")
	ErrMissingTarget        = errors.New("missing target socket id")
	ErrInvalidDrawingAction = errors.New("invalid drawing action")
)

// Routing fields are consumed by the relay and never delivered to peers.
var routingFields = []string{"roomId", "socketId"}

type joinData struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
}

type codeData struct {
	RoomID   string `json:"roomId"`
	SocketID string `json:"socketId"`
	Code     string `json:"code"`
}

type drawingData struct {
	RoomID string        `json:"roomId"`
	Action DrawingAction `json:"action"`
}

// Decode parses one inbound frame. The returned error wraps one of the
// sentinel errors of this package.
func Decode(frame []byte) (Inbound, error) {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}
	return DecodeMessage(msg)
}

func DecodeMessage(msg Message) (Inbound, error) {
	switch msg.Event {
	case EventJoin:
		var data joinData
		if err := unmarshalData(msg, &data); err != nil {
			return nil, err
		}
		name := data.DisplayName
		if name == "" {
			name = data.Username
		}
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%s: %w", msg.Event, ErrMissingDisplayName)
		}
		return JoinEvent{RoomID: data.RoomID, DisplayName: name}, nil

	case EventLeave:
		return LeaveEvent{}, nil

	case EventCodeChange:
		var data codeData
		if err := unmarshalData(msg, &data); err != nil {
			return nil, err
		}
		body, err := stripRouting(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", msg.Event, errors.Join(ErrMalformedEvent, err))
		}
		return CodeChangeEvent{RoomID: data.RoomID, Code: data.Code, Body: body}, nil

	case EventSyncCode:
		var data codeData
		if err := unmarshalData(msg, &data); err != nil {
			return nil, err
		}
		if data.SocketID == "" {
			return nil, fmt.Errorf("%s: %w", msg.Event, ErrMissingTarget)
		}
		body, err := stripRouting(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", msg.Event, errors.Join(ErrMalformedEvent, err))
		}
		return SyncCodeEvent{TargetID: data.SocketID, Code: data.Code, Body: body}, nil

	case EventDrawing:
		var data drawingData
		if err := unmarshalData(msg, &data); err != nil {
			return nil, err
		}
		if !data.Action.Valid() {
			return nil, fmt.Errorf("%s %q: %w", msg.Event, data.Action, ErrInvalidDrawingAction)
		}
		body, err := stripRouting(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", msg.Event, errors.Join(ErrMalformedEvent, err))
		}
		return DrawingEvent{RoomID: data.RoomID, Action: data.Action, Body: body}, nil
	}

	return nil, fmt.Errorf("%q: %w", msg.Event, ErrUnknownEvent)
}

func unmarshalData(msg Message, dst any) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%s: empty data: %w", msg.Event, ErrMalformedEvent)
	}
	if err := json.Unmarshal(msg.Data, dst); err != nil {
		return fmt.Errorf("%s: %w", msg.Event, errors.Join(ErrMalformedEvent, err))
	}
	return nil
}

func stripRouting(data json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for _, name := range routingFields {
		delete(fields, name)
	}
	return json.Marshal(fields)
}
