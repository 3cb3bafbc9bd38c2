package room

import "errors"

var (
	ErrRoomIDIsEmpty     = errors.New("room id is empty")
	ErrConnIDIsEmpty     = errors.New("connection id is empty")
	ErrDisplayNameEmpty  = errors.New("display name is empty")
	ErrNotifierStopped   = errors.New("room notifier stopped")
	ErrListenerNotExists = errors.New("room listener not exists")
)
