package server

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hasRoom(h *Hub, name string) bool {
	for _, r := range h.ListRooms() {
		if r.Name == name {
			return true
		}
	}
	return false
}

// TestEvictionAfterLastMemberLeaves walks the sole member of "temp" out of
// the room and checks the room survives 59s and is gone at 61s.
func TestEvictionAfterLastMemberLeaves(t *testing.T) {
	h, sched := newTestHub(t)
	watcher := connectClient(t, h, "watcher")
	member := connectClient(t, h, "member")

	h.Dispatch(member, InboundMessage{Type: TypeCreateRoom, RoomName: "temp"})
	h.Dispatch(member, joinRequest("temp", "m", ""))
	h.Dispatch(member, InboundMessage{Type: TypeLeave})
	frames(t, watcher)

	before := testutil.ToFloat64(roomEvictions)

	sched.Advance(59 * time.Second)
	assert.True(t, hasRoom(h, "temp"))
	assert.Empty(t, frames(t, watcher))

	sched.Advance(2 * time.Second)
	assert.False(t, hasRoom(h, "temp"))
	assert.Equal(t, before+1, testutil.ToFloat64(roomEvictions))

	got := framesOfType(frames(t, watcher), TypeRoomList)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"general"}, roomNames(got[0]))
	assert.NotContains(t, got[0], "newRoom")

	// The name is free again.
	assert.NoError(t, h.CreateRoom("temp", true, "h"))
}

// TestJoinCancelsPendingEviction verifies that a join inside the delay keeps
// the room alive indefinitely.
func TestJoinCancelsPendingEviction(t *testing.T) {
	h, sched := newTestHub(t)
	a := connectClient(t, h, "a")
	b := connectClient(t, h, "b")

	require.NoError(t, h.CreateRoom("temp", false, ""))
	h.Dispatch(a, joinRequest("temp", "a", ""))
	h.Dispatch(a, InboundMessage{Type: TypeLeave})
	require.Equal(t, 1, sched.active())

	sched.Advance(30 * time.Second)
	h.Dispatch(b, joinRequest("temp", "b", ""))
	assert.Equal(t, 0, sched.active())

	sched.Advance(10 * time.Minute)
	assert.True(t, hasRoom(h, "temp"))
	assert.Equal(t, 1, h.CountOf("temp"))
}

// TestNewRoomIsEvictedIfNeverJoined verifies that creation starts the
// countdown for the empty room.
func TestNewRoomIsEvictedIfNeverJoined(t *testing.T) {
	h, sched := newTestHub(t)
	require.NoError(t, h.CreateRoom("ghost", false, ""))
	require.Equal(t, 1, sched.active())

	sched.Advance(60 * time.Second)
	assert.False(t, hasRoom(h, "ghost"))
}

// TestDefaultRoomNeverEvicted verifies that the default room stays listed no
// matter how long it is empty.
func TestDefaultRoomNeverEvicted(t *testing.T) {
	h, sched := newTestHub(t)
	c := connectClient(t, h, "c")

	h.Dispatch(c, joinRequest("general", "u", ""))
	h.Dispatch(c, InboundMessage{Type: TypeLeave})
	h.disconnect(c)

	assert.Equal(t, 0, sched.active())
	sched.Advance(24 * time.Hour)
	assert.True(t, hasRoom(h, "general"))
}

// TestRescheduleReplacesTimer verifies that at most one timer is live per
// room and that the replaced timer cannot evict.
func TestRescheduleReplacesTimer(t *testing.T) {
	h, sched := newTestHub(t)
	c := connectClient(t, h, "c")

	require.NoError(t, h.CreateRoom("temp", false, ""))
	sched.Advance(50 * time.Second)

	// join+leave restarts the countdown from now.
	h.Dispatch(c, joinRequest("temp", "u", ""))
	h.Dispatch(c, InboundMessage{Type: TypeLeave})
	assert.Equal(t, 1, sched.active())

	sched.Advance(20 * time.Second)
	assert.True(t, hasRoom(h, "temp"), "the original timer must not fire")

	sched.Advance(40 * time.Second)
	assert.False(t, hasRoom(h, "temp"))
}

// TestEvictionRevalidatesMembership simulates a join that raced ahead of a
// firing timer: the fire callback sees a member and leaves the room alone.
func TestEvictionRevalidatesMembership(t *testing.T) {
	h, sched := newTestHub(t)
	c := connectClient(t, h, "c")
	require.NoError(t, h.CreateRoom("temp", false, ""))

	h.mutex.Lock()
	p := h.evictions.pending["temp"]
	// Membership changes without going through the cancel path.
	h.members.join("temp", c)
	h.mutex.Unlock()
	require.NotNil(t, p)

	sched.Advance(time.Minute)
	assert.True(t, hasRoom(h, "temp"))

	h.mutex.Lock()
	_, stillPending := h.evictions.pending["temp"]
	h.mutex.Unlock()
	assert.False(t, stillPending)
}

// TestStaleEvictionIsIgnored verifies that a callback for a cancelled entry
// has no effect even if it runs.
func TestStaleEvictionIsIgnored(t *testing.T) {
	h, _ := newTestHub(t)
	require.NoError(t, h.CreateRoom("temp", false, ""))

	h.mutex.Lock()
	stale := h.evictions.pending["temp"]
	h.evictions.cancel("temp")
	h.mutex.Unlock()

	h.evict("temp", stale)
	assert.True(t, hasRoom(h, "temp"))
}

// TestShutdownStopsEvictionTimers verifies that pending evictions are
// cancelled when the hub stops.
func TestShutdownStopsEvictionTimers(t *testing.T) {
	h, sched := newTestHub(t)
	require.NoError(t, h.CreateRoom("one", false, ""))
	require.NoError(t, h.CreateRoom("two", false, ""))
	require.Equal(t, 2, sched.active())

	go h.Run()
	require.NoError(t, h.Shutdown(time.Second))
	assert.Equal(t, 0, sched.active())
}

// TestClockSchedulerFires exercises the real timer-backed scheduler.
func TestClockSchedulerFires(t *testing.T) {
	fired := make(chan struct{})
	timer := clockScheduler{}.AfterFunc(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.False(t, timer.Stop())

	cancelled := clockScheduler{}.AfterFunc(time.Hour, func() { t.Error("cancelled timer fired") })
	assert.True(t, cancelled.Stop())
}
