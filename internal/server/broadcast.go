package server

import "encoding/json"

// BroadcastGlobal delivers v to every open connection except exclude, which
// may be nil. Connections that cannot accept the frame are pruned.
func (h *Hub) BroadcastGlobal(v any, exclude *Client) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.broadcastGlobalLocked(v, exclude)
}

// BroadcastRoom delivers v to the members of roomName except exclude.
func (h *Hub) BroadcastRoom(roomName string, v any, exclude *Client) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.broadcastRoomLocked(roomName, v, exclude)
}

func (h *Hub) broadcastGlobalLocked(v any, exclude *Client) int {
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	return h.fanOutLocked(targets, v, exclude)
}

func (h *Hub) broadcastRoomLocked(roomName string, v any, exclude *Client) int {
	return h.fanOutLocked(h.members.members(roomName), v, exclude)
}

// fanOutLocked encodes v once and queues it for each target. Each send is
// independent; a full buffer only affects that recipient. It returns the
// number of clients the frame was queued for.
func (h *Hub) fanOutLocked(targets []*Client, v any, exclude *Client) int {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Error("failed to encode broadcast frame", "err", err)
		return 0
	}

	sent := 0
	var failed []*Client
	for _, c := range targets {
		if c == exclude {
			continue
		}
		if h.trySendLocked(c, payload) {
			sent++
			continue
		}
		failed = append(failed, c)
	}

	h.pruneLocked(failed)
	return sent
}
