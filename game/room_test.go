package game

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roomFixture struct {
	room   *Room
	store  *fakeStore
	clock  *fakeClock
	parent *stubParent
}

func startRoom(t *testing.T, store *fakeStore) roomFixture {
	t.Helper()
	f := roomFixture{store: store, clock: newFakeClock(), parent: &stubParent{}}
	f.room = NewRoom("counter", "ABCDEF", counterFactory{}, store, f.clock, f.parent)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go f.room.Run(ctx)
	return f
}

func (f roomFixture) connect(t *testing.T, id string, host bool, settings url.Values) *Client {
	t.Helper()
	c := NewClient(id, nil)
	require.NoError(t, f.room.RequestJoin(context.Background(), c, settings, host))
	require.Equal(t, "state", recv(t, c).Type())
	return c
}

// joinAs connects id and sends a join command; every earlier client sees the
// player-joined event.
func (f roomFixture) joinAs(t *testing.T, id, name string, host bool) *Client {
	t.Helper()
	c := f.connect(t, id, host, url.Values{})
	send(t, f.room, c, `{"type":"join","name":"`+name+`"}`)
	recvType(t, c, "player-joined")
	recvType(t, c, "state")
	return c
}

func stateOf(t *testing.T, p packet) (map[string]any, map[string]any) {
	t.Helper()
	require.Equal(t, "state", p.Type())
	return p["state"].(map[string]any), p["viewerFlags"].(map[string]any)
}

func roomClosed(r *Room) bool {
	select {
	case <-r.Done():
		return true
	case <-time.After(time.Second):
		return false
	}
}

func TestRoomHostBootstrapsState(t *testing.T) {
	f := startRoom(t, newFakeStore())

	host := NewClient("host", nil)
	require.NoError(t, f.room.RequestJoin(context.Background(), host, url.Values{}, true))

	state, flags := stateOf(t, recv(t, host))
	assert.Equal(t, true, flags["isHost"])
	assert.Equal(t, false, flags["joined"])
	assert.Equal(t, "host", flags["playerId"])
	assert.Equal(t, "s3cret", state["secret"])

	var persisted persistedState
	require.NoError(t, json.Unmarshal(f.store.blob("counter/ABCDEF"), &persisted))
	assert.Equal(t, "counter", persisted.Kind)
}

func TestRoomNonHostWithoutStateIsRejected(t *testing.T) {
	f := startRoom(t, newFakeStore())

	err := f.room.RequestJoin(context.Background(), NewClient("p1", nil), url.Values{}, false)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.True(t, roomClosed(f.room), "an empty room without state should be evicted")
	assert.Nil(t, f.store.blob("counter/ABCDEF"))
}

func TestRoomJoinBroadcastsToEveryone(t *testing.T) {
	f := startRoom(t, newFakeStore())
	host := f.joinAs(t, "host", "Alice", true)
	p2 := f.connect(t, "p2", false, nil)
	send(t, f.room, p2, `{"type":"join","name":"Bob"}`)

	joined := recvType(t, host, "player-joined")
	assert.Equal(t, "Bob", joined["player"].(map[string]any)["name"])

	hostState, _ := stateOf(t, recvType(t, host, "state"))
	p2State, p2Flags := stateOf(t, recvType(t, p2, "state"))

	members := hostState["header"].(map[string]any)["members"].([]any)
	assert.Len(t, members, 2)
	assert.Equal(t, "s3cret", hostState["secret"])
	assert.NotContains(t, p2State, "secret")
	assert.Equal(t, true, p2Flags["joined"])
	assert.Equal(t, false, p2Flags["isHost"])
}

func TestRoomRejectsInvalidJoins(t *testing.T) {
	store := newFakeStore()
	f := startRoom(t, store)
	host := NewClient("host", nil)
	require.NoError(t, f.room.RequestJoin(context.Background(), host, url.Values{"max": {"1"}}, true))
	recv(t, host)

	t.Run("empty name", func(t *testing.T) {
		send(t, f.room, host, `{"type":"join","name":"   "}`)
		p := recv(t, host)
		assert.Equal(t, "error", p.Type())
		assert.Equal(t, CodeInvalidPayload, p["code"])
	})

	t.Run("name too long", func(t *testing.T) {
		send(t, f.room, host, `{"type":"join","name":"abcdefghijklmnopqrstu"}`)
		assert.Equal(t, CodeInvalidPayload, recv(t, host)["code"])
	})

	send(t, f.room, host, `{"type":"join","name":"Alice"}`)
	recvType(t, host, "state")

	t.Run("duplicate", func(t *testing.T) {
		send(t, f.room, host, `{"type":"join","name":"Alice"}`)
		assert.Equal(t, CodeInvalidPhase, recv(t, host)["code"])
	})

	t.Run("full", func(t *testing.T) {
		p2 := f.connect(t, "p2", false, nil)
		send(t, f.room, p2, `{"type":"join","name":"Bob"}`)
		p := recv(t, p2)
		assert.Equal(t, CodeInvalidPhase, p["code"])
		assert.Equal(t, "room is full", p["message"])
		assertNoPacket(t, host)
	})
}

func TestRoomErrorsAreUnicast(t *testing.T) {
	f := startRoom(t, newFakeStore())
	host := f.joinAs(t, "host", "Alice", true)
	p2 := f.connect(t, "p2", false, nil)

	send(t, f.room, p2, `{"type":"inc"}`)
	assert.Equal(t, CodeUnauthorized, recv(t, p2)["code"])

	send(t, f.room, p2, `{"type":"restart"}`)
	assert.Equal(t, CodeUnauthorized, recv(t, p2)["code"])

	send(t, f.room, p2, `not json`)
	assert.Equal(t, CodeInvalidPayload, recv(t, p2)["code"])

	send(t, f.room, p2, `{"type":"nope"}`)
	assert.Equal(t, CodeInvalidPayload, recv(t, p2)["code"])

	assertNoPacket(t, host)
}

func TestRoomPing(t *testing.T) {
	f := startRoom(t, newFakeStore())
	host := f.connect(t, "host", true, nil)

	send(t, f.room, host, `{"type":"ping"}`)
	p := recv(t, host)
	assert.Equal(t, "pong", p.Type())
	assert.EqualValues(t, f.clock.Now().UnixMilli(), p["serverTime"])
}

func TestRoomRollsBackWhenPersistFails(t *testing.T) {
	f := startRoom(t, newFakeStore())
	host := f.joinAs(t, "host", "Alice", true)
	p2 := f.joinAs(t, "p2", "Bob", false)
	recvType(t, host, "state")

	f.store.setFailPut(true)
	send(t, f.room, host, `{"type":"inc"}`)
	p := recv(t, host)
	assert.Equal(t, "error", p.Type())
	assert.Equal(t, CodeUnavailable, p["code"])
	assertNoPacket(t, p2)

	f.store.setFailPut(false)
	send(t, f.room, host, `{"type":"inc"}`)
	state, _ := stateOf(t, recv(t, host))
	assert.EqualValues(t, 1, state["count"])
}

func TestRoomRetriesDeadlineWhenPersistFails(t *testing.T) {
	f := startRoom(t, newFakeStore())
	host := f.joinAs(t, "host", "Alice", true)
	key := f.room.Key()

	send(t, f.room, host, `{"type":"arm","inMs":3600000}`)
	recvType(t, host, "state")
	deadline := f.clock.Advance(time.Hour)

	f.store.setFailPut(true)
	f.room.alarms <- deadline
	retry := deadline.Add(alarmRetry)
	require.Eventually(t, func() bool {
		at, ok := f.store.alarm(key)
		return ok && at.Equal(retry)
	}, time.Second, 10*time.Millisecond, "the deadline must stay armed")
	assertNoPacket(t, host)

	f.store.setFailPut(false)
	f.room.alarms <- retry
	assert.Equal(t, "boom", recv(t, host).Type())
	state, _ := stateOf(t, recv(t, host))
	assert.EqualValues(t, 100, state["count"])
	require.Eventually(t, func() bool {
		_, ok := f.store.alarm(key)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestRoomQuietOutcomeSkipsState(t *testing.T) {
	f := startRoom(t, newFakeStore())
	host := f.joinAs(t, "host", "Alice", true)

	send(t, f.room, host, `{"type":"shout"}`)
	assert.Equal(t, "shout", recv(t, host).Type())
	assertNoPacket(t, host)
}

func TestRoomRestartKeepsMembers(t *testing.T) {
	f := startRoom(t, newFakeStore())
	host := f.joinAs(t, "host", "Alice", true)

	send(t, f.room, host, `{"type":"inc"}`)
	recvType(t, host, "state")
	send(t, f.room, host, `{"type":"restart"}`)
	state, flags := stateOf(t, recv(t, host))
	assert.EqualValues(t, 0, state["count"])
	assert.Equal(t, true, flags["joined"])
}

func TestRoomDeadlineLifecycle(t *testing.T) {
	f := startRoom(t, newFakeStore())
	host := f.joinAs(t, "host", "Alice", true)
	key := f.room.Key()

	send(t, f.room, host, `{"type":"arm","inMs":3600000}`)
	recvType(t, host, "state")
	deadline := f.clock.Now().Add(time.Hour)
	at, ok := f.store.alarm(key)
	require.True(t, ok)
	assert.True(t, deadline.Equal(at))

	t.Run("early fire re-arms", func(t *testing.T) {
		f.room.alarms <- f.clock.Now()
		assertNoPacket(t, host)
		at, ok := f.store.alarm(key)
		require.True(t, ok)
		assert.True(t, deadline.Equal(at))
	})

	t.Run("fire within tolerance applies", func(t *testing.T) {
		f.room.alarms <- deadline.Add(-400 * time.Millisecond)
		assert.Equal(t, "boom", recv(t, host).Type())
		state, _ := stateOf(t, recv(t, host))
		assert.EqualValues(t, 100, state["count"])
		_, ok := f.store.alarm(key)
		assert.False(t, ok)
	})

	t.Run("stale fire is silent", func(t *testing.T) {
		f.room.alarms <- deadline.Add(time.Second)
		assertNoPacket(t, host)
	})

	t.Run("disarm cancels", func(t *testing.T) {
		send(t, f.room, host, `{"type":"arm","inMs":60000}`)
		recvType(t, host, "state")
		_, ok := f.store.alarm(key)
		require.True(t, ok)

		send(t, f.room, host, `{"type":"disarm"}`)
		recvType(t, host, "state")
		_, ok = f.store.alarm(key)
		assert.False(t, ok)
	})
}

func TestRoomRestoresPersistedState(t *testing.T) {
	store := newFakeStore()
	deadline := newFakeClock().Now().Add(10 * time.Minute)
	saved := &counterMachine{
		Head:       Header{Status: StatusPlaying, HostID: "old", Members: []Member{{ID: "old", Name: "Olga"}}},
		Count:      7,
		DeadlineAt: deadline,
		Max:        4,
	}
	state, err := json.Marshal(saved)
	require.NoError(t, err)
	blob, err := json.Marshal(persistedState{Kind: "counter", Private: true, State: state})
	require.NoError(t, err)
	store.blobs["counter/ABCDEF"] = blob

	f := startRoom(t, store)
	c := NewClient("p1", nil)
	require.NoError(t, f.room.RequestJoin(context.Background(), c, url.Values{}, false))

	view, flags := stateOf(t, recv(t, c))
	assert.EqualValues(t, 7, view["count"])
	assert.Equal(t, false, flags["isHost"])

	at, ok := store.alarm("counter/ABCDEF")
	require.True(t, ok)
	assert.True(t, deadline.Equal(at))

	require.Eventually(t, func() bool {
		f.parent.mu.Lock()
		defer f.parent.mu.Unlock()
		return len(f.parent.descs) > 0
	}, time.Second, 10*time.Millisecond)
	f.parent.mu.Lock()
	assert.True(t, f.parent.descs[0].private)
	f.parent.mu.Unlock()
}

func TestRoomUnreadableStateIsUnavailable(t *testing.T) {
	store := newFakeStore()
	store.failGet = true
	f := startRoom(t, store)

	err := f.room.RequestJoin(context.Background(), NewClient("host", nil), url.Values{}, true)
	assert.Equal(t, CodeUnavailable, ErrorCode(err))
	assert.Nil(t, store.blob("counter/ABCDEF"))
}

func TestRoomHostMigratesOnDisconnect(t *testing.T) {
	f := startRoom(t, newFakeStore())
	host := f.joinAs(t, "host", "Alice", true)
	p2 := f.joinAs(t, "p2", "Bob", false)
	p3 := f.joinAs(t, "p3", "Cleo", false)
	recvType(t, p2, "state")

	f.room.RemoveMe(host)

	left := recvType(t, p3, "player-left")
	assert.Equal(t, "host", left["playerId"])
	assert.Equal(t, "p2", left["hostId"])

	state, flags := stateOf(t, recvType(t, p2, "state"))
	assert.Equal(t, true, flags["isHost"])
	assert.Len(t, state["header"].(map[string]any)["members"], 2)
	assert.Error(t, host.ctx.Err(), "the departed client is closed")
}

func TestRoomLeaveKeepsSpectatorConnected(t *testing.T) {
	f := startRoom(t, newFakeStore())
	host := f.joinAs(t, "host", "Alice", true)

	send(t, f.room, host, `{"type":"leave"}`)
	recvType(t, host, "player-left")
	_, flags := stateOf(t, recv(t, host))
	assert.Equal(t, false, flags["joined"])
	assert.Equal(t, true, flags["isHost"], "a connected host keeps the role with nobody else around")
	assert.NoError(t, host.ctx.Err())

	send(t, f.room, host, `{"type":"leave"}`)
	assert.Equal(t, CodeInvalidPhase, recv(t, host)["code"])
}

func TestRoomEvictionWaitsForDeadline(t *testing.T) {
	f := startRoom(t, newFakeStore())
	host := f.joinAs(t, "host", "Alice", true)
	send(t, f.room, host, `{"type":"arm","inMs":3600000}`)
	recvType(t, host, "state")

	f.room.RemoveMe(host)
	select {
	case <-f.room.Done():
		t.Fatal("room with a pending deadline must stay alive")
	case <-time.After(100 * time.Millisecond):
	}

	f.room.alarms <- f.clock.Advance(time.Hour)
	assert.True(t, roomClosed(f.room))
}
