package server

import (
	"log/slog"
	"time"
)

// Timer is a pending single-shot task.
type Timer interface {
	// Stop cancels the task. It reports false if the task already fired or
	// was stopped before.
	Stop() bool
}

// Scheduler runs f once after d has elapsed.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// pendingEviction identifies one scheduled eviction. The fire callback
// compares pointers so a replaced or cancelled entry never evicts.
type pendingEviction struct {
	timer Timer
}

// evictionTimers holds at most one pending eviction per room name.
type evictionTimers struct {
	pending map[string]*pendingEviction
}

func newEvictionTimers() *evictionTimers {
	return &evictionTimers{pending: make(map[string]*pendingEviction)}
}

func (e *evictionTimers) cancel(roomName string) bool {
	p, ok := e.pending[roomName]
	if !ok {
		return false
	}
	delete(e.pending, roomName)
	p.timer.Stop()
	return true
}

func (e *evictionTimers) stopAll() {
	for name := range e.pending {
		e.cancel(name)
	}
}

// scheduleEvictionLocked starts (or restarts) the eviction countdown for an
// empty room. The default room is never scheduled. Caller holds h.mutex.
func (h *Hub) scheduleEvictionLocked(roomName string) {
	if roomName == h.defaultRoom {
		return
	}
	h.evictions.cancel(roomName)

	p := &pendingEviction{}
	p.timer = h.scheduler.AfterFunc(h.evictionDelay, func() {
		h.evict(roomName, p)
	})
	h.evictions.pending[roomName] = p
	h.log.Debug("room eviction scheduled", "room", roomName, "delay", h.evictionDelay)
}

// evict runs when an eviction timer fires. Membership is re-checked under
// the lock: a join that slipped in before the lock was taken wins.
func (h *Hub) evict(roomName string, p *pendingEviction) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.evictions.pending[roomName] != p {
		return
	}
	delete(h.evictions.pending, roomName)

	if h.members.countOf(roomName) > 0 {
		h.log.Debug("room eviction skipped, room is occupied", "room", roomName)
		return
	}

	h.directory.remove(roomName)
	h.members.drop(roomName)
	roomEvictions.Inc()
	h.updateGaugesLocked()
	h.log.Info("room evicted", slog.String("room", roomName), slog.Int("rooms", h.directory.len()))

	h.broadcastGlobalLocked(h.roomListLocked(""), nil)
}
