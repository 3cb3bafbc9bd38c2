package room

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/romashorodok/collab-relay/pkg/protocol"
	"github.com/romashorodok/collab-relay/pkg/variables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, configure ...func(*variables.Config)) *Manager {
	t.Helper()
	cfg := variables.Default()
	for _, fn := range configure {
		fn(cfg)
	}
	return NewManager(NewManagerParams{Config: cfg, Logger: discardLogger()})
}

func multiRoom(cfg *variables.Config) { cfg.SingleRoom = false }

func ids(members []protocol.Member) []string {
	result := make([]string, 0, len(members))
	for _, m := range members {
		result = append(result, m.SocketID)
	}
	return result
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *changeRecorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) get() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func TestManager_JoinSnapshot(t *testing.T) {
	m := newTestManager(t)

	snapshot, err := m.Join("r1", "c1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, []protocol.Member{{SocketID: "c1", Username: "Alice"}}, snapshot)

	snapshot, err = m.Join("r1", "c2", "Bob")
	require.NoError(t, err)
	assert.Equal(t, []protocol.Member{
		{SocketID: "c1", Username: "Alice"},
		{SocketID: "c2", Username: "Bob"},
	}, snapshot)
	assert.Equal(t, snapshot, m.MembersOf("r1"))
}

func TestManager_JoinValidation(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		name                 string
		roomID, connID, user string
		wantErr              error
	}{
		{name: "empty room", connID: "c1", user: "Alice", wantErr: ErrRoomIDIsEmpty},
		{name: "empty conn", roomID: "r1", user: "Alice", wantErr: ErrConnIDIsEmpty},
		{name: "blank name", roomID: "r1", connID: "c1", user: "   ", wantErr: ErrDisplayNameEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Join(tt.roomID, tt.connID, tt.user)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	rooms, conns := m.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, conns)
}

func TestManager_RejoinIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	rec := &changeRecorder{}
	m.OnChange(rec.record)

	_, err := m.Join("r1", "c1", "Alice")
	require.NoError(t, err)
	_, err = m.Join("r1", "c2", "Bob")
	require.NoError(t, err)

	snapshot, err := m.Join("r1", "c1", "Alicia")
	require.NoError(t, err)
	assert.Equal(t, []protocol.Member{
		{SocketID: "c1", Username: "Alicia"},
		{SocketID: "c2", Username: "Bob"},
	}, snapshot, "join order is kept, name refreshed")

	changes := rec.get()
	require.Len(t, changes, 3)
	assert.Empty(t, changes[2].SyncPeers, "rejoin does not request a catch-up")
	assert.Equal(t, ChangeJoined, changes[2].Kind)
	assert.False(t, changes[2].RoomCreated)
}

func TestManager_LeaveUnknownIsNoop(t *testing.T) {
	m := newTestManager(t)

	assert.NotPanics(t, func() {
		assert.Empty(t, m.Leave("ghost"))
		assert.Empty(t, m.LeaveRooms("ghost"))
	})

	_, err := m.Join("r1", "c1", "Alice")
	require.NoError(t, err)
	require.Len(t, m.Leave("c1"), 1)
	assert.Empty(t, m.Leave("c1"))
}

func TestManager_LastLeaveDeletesRoom(t *testing.T) {
	m := newTestManager(t)
	rec := &changeRecorder{}
	m.OnChange(rec.record)

	_, err := m.Join("r1", "c1", "Alice")
	require.NoError(t, err)
	_, err = m.Join("r1", "c2", "Bob")
	require.NoError(t, err)

	deps := m.Leave("c1")
	require.Len(t, deps, 1)
	assert.Equal(t, []string{"c1", "c2"}, ids(deps[0].Before))
	assert.Equal(t, []string{"c2"}, ids(deps[0].After))
	assert.Equal(t, "Alice", deps[0].DisplayName)

	m.Leave("c2")
	assert.Empty(t, m.MembersOf("r1"))
	assert.NotNil(t, m.MembersOf("r1"))
	assert.Empty(t, m.ListRoom())

	rooms, conns := m.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, conns, "registry entries are removed on leave")

	changes := rec.get()
	require.Len(t, changes, 4)
	assert.True(t, changes[0].RoomCreated)
	assert.False(t, changes[2].RoomDeleted)
	assert.True(t, changes[3].RoomDeleted)
}

func TestManager_SingleRoomSwitch(t *testing.T) {
	m := newTestManager(t)
	rec := &changeRecorder{}

	_, err := m.Join("r1", "c1", "Alice")
	require.NoError(t, err)
	_, err = m.Join("r1", "c2", "Bob")
	require.NoError(t, err)

	m.OnChange(rec.record)
	snapshot, err := m.Join("r2", "c1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids(snapshot))

	changes := rec.get()
	require.Len(t, changes, 2)
	assert.Equal(t, ChangeLeft, changes[0].Kind)
	assert.Equal(t, "r1", changes[0].RoomID)
	assert.Equal(t, []string{"c2"}, ids(changes[0].Members))
	assert.Equal(t, ChangeJoined, changes[1].Kind)
	assert.Equal(t, "r2", changes[1].RoomID)

	roomID, ok := m.RoomOf("c1")
	assert.True(t, ok)
	assert.Equal(t, "r2", roomID)
	assert.Equal(t, []string{"c2"}, ids(m.MembersOf("r1")))
}

func TestManager_LeaveRoomsKeepsRegistry(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Connect("c1"))

	_, err := m.Join("r1", "c1", "Alice")
	require.NoError(t, err)

	deps := m.LeaveRooms("c1")
	require.Len(t, deps, 1)
	assert.Empty(t, deps[0].After)

	_, conns := m.Stats()
	assert.Equal(t, 1, conns)
	_, ok := m.RoomOf("c1")
	assert.False(t, ok)
}

func TestManager_DisconnectFromTwoRooms(t *testing.T) {
	m := newTestManager(t, multiRoom)
	rec := &changeRecorder{}

	for _, step := range []struct{ room, conn, name string }{
		{"A", "c1", "Alice"},
		{"A", "c2", "Bob"},
		{"B", "c1", "Alice"},
		{"B", "c3", "Carol"},
	} {
		_, err := m.Join(step.room, step.conn, step.name)
		require.NoError(t, err)
	}

	m.OnChange(rec.record)
	deps := m.Leave("c1")
	require.Len(t, deps, 2)

	changes := rec.get()
	require.Len(t, changes, 2)

	byRoom := map[string]Change{}
	for _, c := range changes {
		assert.Equal(t, ChangeLeft, c.Kind)
		byRoom[c.RoomID] = c
	}
	assert.Equal(t, []string{"c2"}, ids(byRoom["A"].Members))
	assert.Equal(t, []string{"c3"}, ids(byRoom["B"].Members))
}

func TestManager_SyncPeers(t *testing.T) {
	now := time.Unix(1000, 0)

	t.Run("empty room has no catch-up", func(t *testing.T) {
		m := newTestManager(t)
		rec := &changeRecorder{}
		m.OnChange(rec.record)

		_, err := m.Join("r1", "c1", "Alice")
		require.NoError(t, err)
		assert.Nil(t, rec.get()[0].SyncPeers)
	})

	t.Run("designated prefers recent activity", func(t *testing.T) {
		m := newTestManager(t)
		m.now = func() time.Time { return now }
		rec := &changeRecorder{}

		for _, id := range []string{"c1", "c2", "c3"} {
			_, err := m.Join("r1", id, id)
			require.NoError(t, err)
		}
		m.Touch("c2")

		m.OnChange(rec.record)
		_, err := m.Join("r1", "c4", "Dave")
		require.NoError(t, err)
		assert.Equal(t, []protocol.ConnID{"c2"}, rec.get()[0].SyncPeers)
	})

	t.Run("designated falls back to earliest joiner", func(t *testing.T) {
		m := newTestManager(t)
		rec := &changeRecorder{}

		_, err := m.Join("r1", "c1", "Alice")
		require.NoError(t, err)
		_, err = m.Join("r1", "c2", "Bob")
		require.NoError(t, err)

		m.OnChange(rec.record)
		_, err = m.Join("r1", "c3", "Carol")
		require.NoError(t, err)
		assert.Equal(t, []protocol.ConnID{"c1"}, rec.get()[0].SyncPeers)
	})

	t.Run("broadcast asks every other member", func(t *testing.T) {
		m := newTestManager(t, func(cfg *variables.Config) { cfg.SyncStrategy = variables.SyncBroadcast })
		rec := &changeRecorder{}

		_, err := m.Join("r1", "c1", "Alice")
		require.NoError(t, err)
		_, err = m.Join("r1", "c2", "Bob")
		require.NoError(t, err)

		m.OnChange(rec.record)
		_, err = m.Join("r1", "c3", "Carol")
		require.NoError(t, err)
		assert.ElementsMatch(t, []protocol.ConnID{"c1", "c2"}, rec.get()[0].SyncPeers)
	})
}

// Random join/leave sequences must leave exactly the joined-and-not-left set.
func TestManager_RandomSequences(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		m := newTestManager(t, multiRoom)
		want := map[string]map[string]bool{}

		for step := 0; step < 200; step++ {
			roomID := fmt.Sprintf("r%d", rnd.Intn(3))
			connID := fmt.Sprintf("c%d", rnd.Intn(8))

			if rnd.Intn(3) == 0 {
				m.Leave(connID)
				for _, members := range want {
					delete(members, connID)
				}
				continue
			}

			_, err := m.Join(roomID, connID, connID)
			require.NoError(t, err)
			if want[roomID] == nil {
				want[roomID] = map[string]bool{}
			}
			want[roomID][connID] = true
		}

		for roomID, members := range want {
			var expected []string
			for id := range members {
				expected = append(expected, id)
			}
			got := ids(m.MembersOf(roomID))
			assert.ElementsMatch(t, expected, got, "room %s", roomID)
			assert.Len(t, got, len(members), "no duplicates in %s", roomID)
		}
	}
}

// Observers see changes of one room in mutation order, so replaying them
// rebuilds the final roster.
func TestManager_ConcurrentJoinLeave(t *testing.T) {
	m := newTestManager(t)

	var (
		mu     sync.Mutex
		roster = map[string]bool{}
		broken []string
	)
	m.OnChange(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		switch c.Kind {
		case ChangeJoined:
			roster[c.Subject.SocketID] = true
		case ChangeLeft:
			delete(roster, c.Subject.SocketID)
		}
		if len(roster) != len(c.Members) {
			broken = append(broken, fmt.Sprintf("%s %s: roster %d snapshot %d", c.Kind, c.Subject.SocketID, len(roster), len(c.Members)))
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			for j := 0; j < 20; j++ {
				_, _ = m.Join("r1", id, id)
				if j%2 == 1 {
					m.Leave(id)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, broken)
	assert.Empty(t, m.MembersOf("r1"))
}
