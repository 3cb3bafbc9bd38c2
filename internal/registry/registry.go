package registry

import (
	"time"

	"github.com/romashorodok/collab-relay/pkg/protocol"
)

type Entry struct {
	DisplayName string
	// LastActive is the time of the last code activity, zero when none.
	LastActive time.Time
}

// Registry maps live connections to their display name. It is not safe for
// concurrent use, the room manager serializes every call.
type Registry struct {
	entries map[protocol.ConnID]*Entry
}

func (r *Registry) Set(connID protocol.ConnID, name string) {
	if entry, exist := r.entries[connID]; exist {
		entry.DisplayName = name
		return
	}
	r.entries[connID] = &Entry{DisplayName: name}
}

func (r *Registry) Get(connID protocol.ConnID) (string, bool) {
	entry, exist := r.entries[connID]
	if !exist {
		return "", false
	}
	return entry.DisplayName, true
}

func (r *Registry) Has(connID protocol.ConnID) bool {
	_, exist := r.entries[connID]
	return exist
}

// Touch records activity for a known connection.
func (r *Registry) Touch(connID protocol.ConnID, at time.Time) {
	if entry, exist := r.entries[connID]; exist {
		entry.LastActive = at
	}
}

func (r *Registry) LastActive(connID protocol.ConnID) time.Time {
	if entry, exist := r.entries[connID]; exist {
		return entry.LastActive
	}
	return time.Time{}
}

func (r *Registry) Remove(connID protocol.ConnID) {
	delete(r.entries, connID)
}

func (r *Registry) Len() int {
	return len(r.entries)
}

func New() *Registry {
	return &Registry{
		entries: make(map[protocol.ConnID]*Entry),
	}
}
