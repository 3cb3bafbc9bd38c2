package room

import (
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/romashorodok/collab-relay/internal/registry"
	"github.com/romashorodok/collab-relay/pkg/protocol"
	"github.com/romashorodok/collab-relay/pkg/variables"
	"go.uber.org/fx"
)

type ChangeKind int

const (
	ChangeJoined ChangeKind = iota
	ChangeLeft
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeJoined:
		return "joined"
	case ChangeLeft:
		return "left"
	}
	return "unknown"
}

// Change describes one membership mutation of one room.
type Change struct {
	Kind    ChangeKind
	RoomID  protocol.RoomID
	Subject protocol.Member
	// Members is the snapshot right after the mutation.
	Members []protocol.Member
	// Before is the snapshot right before the mutation.
	Before []protocol.Member
	// SyncPeers are asked to send their buffer to the subject. Set only for
	// a fresh join into a non empty room.
	SyncPeers []protocol.ConnID
	// RoomCreated and RoomDeleted report the room lifecycle.
	RoomCreated bool
	RoomDeleted bool
}

// Departure is what the relay needs to notify the peers left behind.
type Departure struct {
	RoomID      protocol.RoomID
	Before      []protocol.Member
	After       []protocol.Member
	DisplayName string
}

type roomState struct {
	// member id to join sequence, snapshots are ordered by it
	members map[protocol.ConnID]uint64
}

// Manager owns the room table and the connection registry. Both are guarded
// by one mutex, so a snapshot always matches the mutation that produced it.
//
// Observers registered with OnChange run while the mutex is held, in
// mutation order. They must not block and must not call back into Manager.
type Manager struct {
	sync.Mutex

	logger       *slog.Logger
	singleRoom   bool
	syncStrategy variables.SyncStrategy
	now          func() time.Time

	registry    *registry.Registry
	rooms       map[protocol.RoomID]*roomState
	memberships map[protocol.ConnID]map[protocol.RoomID]struct{}
	seq         uint64
	observers   []func(Change)
}

func (m *Manager) OnChange(fn func(Change)) {
	m.Lock()
	defer m.Unlock()
	m.observers = append(m.observers, fn)
}

// Connect registers a live connection that has not joined any room yet.
func (m *Manager) Connect(connID protocol.ConnID) error {
	if connID == "" {
		return ErrConnIDIsEmpty
	}

	m.Lock()
	defer m.Unlock()

	if !m.registry.Has(connID) {
		m.registry.Set(connID, "")
	}
	return nil
}

// Join adds connID to roomID and returns the resulting snapshot. Joining the
// same room again only refreshes the display name. With single room mode a
// join into another room leaves the previous one first.
func (m *Manager) Join(roomID protocol.RoomID, connID protocol.ConnID, name string) ([]protocol.Member, error) {
	switch {
	case roomID == "":
		return nil, ErrRoomIDIsEmpty
	case connID == "":
		return nil, ErrConnIDIsEmpty
	case strings.TrimSpace(name) == "":
		return nil, ErrDisplayNameEmpty
	}

	m.Lock()
	defer m.Unlock()

	if m.singleRoom {
		for _, joined := range m.roomsOfLocked(connID) {
			if joined != roomID {
				m.leaveRoomLocked(joined, connID)
			}
		}
	}

	m.registry.Set(connID, name)

	room, exist := m.rooms[roomID]
	if !exist {
		room = &roomState{members: make(map[protocol.ConnID]uint64)}
		m.rooms[roomID] = room
	}

	before := m.snapshotLocked(roomID)

	_, rejoin := room.members[connID]
	if !rejoin {
		m.seq++
		room.members[connID] = m.seq

		if m.memberships[connID] == nil {
			m.memberships[connID] = make(map[protocol.RoomID]struct{})
		}
		m.memberships[connID][roomID] = struct{}{}
	}

	snapshot := m.snapshotLocked(roomID)

	change := Change{
		Kind:        ChangeJoined,
		RoomID:      roomID,
		Subject:     protocol.Member{SocketID: connID, Username: name},
		Members:     snapshot,
		Before:      before,
		RoomCreated: !exist,
	}
	if !rejoin {
		change.SyncPeers = m.syncPeersLocked(roomID, connID)
	}

	m.logger.Debug("room join",
		slog.String("roomId", roomID),
		slog.String("connId", connID),
		slog.Int("members", len(snapshot)),
		slog.Bool("rejoin", rejoin),
	)
	m.emitLocked(change)

	return snapshot, nil
}

// Leave removes connID from every room and from the registry. Leaving again
// is a no-op.
func (m *Manager) Leave(connID protocol.ConnID) []Departure {
	m.Lock()
	defer m.Unlock()

	departures := m.leaveAllLocked(connID)
	m.registry.Remove(connID)
	return departures
}

// LeaveRooms removes connID from every room but keeps the connection
// registered, the client stays connected and unjoined.
func (m *Manager) LeaveRooms(connID protocol.ConnID) []Departure {
	m.Lock()
	defer m.Unlock()

	departures := m.leaveAllLocked(connID)
	if m.registry.Has(connID) {
		m.registry.Set(connID, "")
	}
	return departures
}

func (m *Manager) leaveAllLocked(connID protocol.ConnID) []Departure {
	var departures []Departure
	for _, roomID := range m.roomsOfLocked(connID) {
		if dep, ok := m.leaveRoomLocked(roomID, connID); ok {
			departures = append(departures, dep)
		}
	}
	return departures
}

func (m *Manager) leaveRoomLocked(roomID protocol.RoomID, connID protocol.ConnID) (Departure, bool) {
	room, exist := m.rooms[roomID]
	if !exist {
		return Departure{}, false
	}
	if _, member := room.members[connID]; !member {
		return Departure{}, false
	}

	name, _ := m.registry.Get(connID)
	before := m.snapshotLocked(roomID)

	delete(room.members, connID)
	if joined, ok := m.memberships[connID]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(m.memberships, connID)
		}
	}

	deleted := len(room.members) == 0
	if deleted {
		delete(m.rooms, roomID)
	}

	after := m.snapshotLocked(roomID)

	m.logger.Debug("room leave",
		slog.String("roomId", roomID),
		slog.String("connId", connID),
		slog.Int("members", len(after)),
		slog.Bool("roomDeleted", deleted),
	)
	m.emitLocked(Change{
		Kind:        ChangeLeft,
		RoomID:      roomID,
		Subject:     protocol.Member{SocketID: connID, Username: name},
		Members:     after,
		Before:      before,
		RoomDeleted: deleted,
	})

	return Departure{
		RoomID:      roomID,
		Before:      before,
		After:       after,
		DisplayName: name,
	}, true
}

// MembersOf returns the snapshot of roomID, empty when the room does not
// exist.
func (m *Manager) MembersOf(roomID protocol.RoomID) []protocol.Member {
	m.Lock()
	defer m.Unlock()
	return m.snapshotLocked(roomID)
}

// RoomOf returns the most recently joined room of connID.
func (m *Manager) RoomOf(connID protocol.ConnID) (protocol.RoomID, bool) {
	m.Lock()
	defer m.Unlock()

	var (
		latest protocol.RoomID
		seq    uint64
	)
	for roomID := range m.memberships[connID] {
		if s := m.rooms[roomID].members[connID]; s > seq {
			latest, seq = roomID, s
		}
	}
	return latest, seq > 0
}

// Touch marks code activity of connID, used to pick the catch-up peer.
func (m *Manager) Touch(connID protocol.ConnID) {
	m.Lock()
	defer m.Unlock()
	m.registry.Touch(connID, m.now())
}

func (m *Manager) ListRoom() []protocol.RoomInfo {
	m.Lock()
	defer m.Unlock()

	result := make([]protocol.RoomInfo, 0, len(m.rooms))
	for roomID := range m.rooms {
		result = append(result, protocol.RoomInfo{
			RoomID:       roomID,
			Participants: m.snapshotLocked(roomID),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RoomID < result[j].RoomID })
	return result
}

func (m *Manager) Stats() (rooms, connections int) {
	m.Lock()
	defer m.Unlock()
	return len(m.rooms), m.registry.Len()
}

func (m *Manager) roomsOfLocked(connID protocol.ConnID) []protocol.RoomID {
	result := make([]protocol.RoomID, 0, len(m.memberships[connID]))
	for roomID := range m.memberships[connID] {
		result = append(result, roomID)
	}
	slices.Sort(result)
	return result
}

func (m *Manager) snapshotLocked(roomID protocol.RoomID) []protocol.Member {
	room, exist := m.rooms[roomID]
	if !exist {
		return []protocol.Member{}
	}

	ids := make([]protocol.ConnID, 0, len(room.members))
	for id := range room.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return room.members[ids[i]] < room.members[ids[j]] })

	result := make([]protocol.Member, 0, len(ids))
	for _, id := range ids {
		name, _ := m.registry.Get(id)
		result = append(result, protocol.Member{SocketID: id, Username: name})
	}
	return result
}

func (m *Manager) syncPeersLocked(roomID protocol.RoomID, joiner protocol.ConnID) []protocol.ConnID {
	room := m.rooms[roomID]

	var peers []protocol.ConnID
	for id := range room.members {
		if id != joiner {
			peers = append(peers, id)
		}
	}
	if len(peers) == 0 {
		return nil
	}

	// most recent code activity first, earliest joiner on ties
	sort.Slice(peers, func(i, j int) bool {
		ai, aj := m.registry.LastActive(peers[i]), m.registry.LastActive(peers[j])
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return room.members[peers[i]] < room.members[peers[j]]
	})

	if m.syncStrategy == variables.SyncBroadcast {
		return peers
	}
	return peers[:1]
}

func (m *Manager) emitLocked(change Change) {
	for _, fn := range m.observers {
		fn(change)
	}
}

type NewManagerParams struct {
	fx.In

	Config *variables.Config
	Logger *slog.Logger
}

func NewManager(params NewManagerParams) *Manager {
	return &Manager{
		logger:       params.Logger,
		singleRoom:   params.Config.SingleRoom,
		syncStrategy: params.Config.SyncStrategy,
		now:          time.Now,
		registry:     registry.New(),
		rooms:        make(map[protocol.RoomID]*roomState),
		memberships:  make(map[protocol.ConnID]map[protocol.RoomID]struct{}),
	}
}
