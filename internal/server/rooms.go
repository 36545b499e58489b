package server

import "log/slog"

// CreateRoom registers a new room and broadcasts the updated room list to
// every connection, tagged with the new room's name. The room starts empty,
// so its eviction countdown starts immediately.
func (h *Hub) CreateRoom(name string, isPrivate bool, verifier string) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.createRoomLocked(name, isPrivate, verifier)
}

func (h *Hub) createRoomLocked(name string, isPrivate bool, verifier string) error {
	name, err := h.directory.create(name, isPrivate, verifier)
	if err != nil {
		return err
	}

	h.scheduleEvictionLocked(name)
	h.updateGaugesLocked()
	h.log.Info("room created", slog.String("room", name), slog.Bool("private", isPrivate))

	h.broadcastGlobalLocked(h.roomListLocked(name), nil)
	return nil
}

// ListRooms returns a snapshot of the directory in creation order.
func (h *Hub) ListRooms() []RoomSummary {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.directory.list()
}

// VerifyAccess reports whether a client holding verifier may join name.
func (h *Hub) VerifyAccess(name, verifier string) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.directory.verifyAccess(name, verifier)
}

// CountOf returns the number of connections joined to roomName.
func (h *Hub) CountOf(roomName string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.members.countOf(roomName)
}

// joinRoomLocked moves c into roomName. A client already in another room
// leaves it first; a join for the current room only refreshes the identity.
// Caller has verified access and holds h.mutex.
func (h *Hub) joinRoomLocked(c *Client, req InboundMessage) {
	if c.session.authenticated && c.session.room == req.Room {
		h.reauthenticateLocked(c, req)
		return
	}
	if c.session.authenticated {
		h.leaveRoomLocked(c)
	}

	c.session = session{
		identity:      append([]byte(nil), req.EncryptedUsername...),
		authenticated: true,
		room:          req.Room,
	}
	if h.evictions.cancel(req.Room) {
		h.log.Debug("room eviction cancelled", "room", req.Room)
	}
	count := h.members.join(req.Room, c)
	h.updateGaugesLocked()
	h.log.Info("client joined room", "conn", c.id, "room", req.Room, "members", count)

	h.sendLocked(c, AuthenticatedMessage{Type: TypeAuthenticated, Room: req.Room})
	if c.closed {
		// Pruned while confirming; the implicit leave already told the room.
		return
	}
	h.broadcastRoomLocked(req.Room, UserCountMessage{Type: TypeUserCount, Count: h.members.countOf(req.Room)}, nil)

	if !isBlank(req.JoinMessage) && !c.closed {
		h.broadcastRoomLocked(req.Room, SystemMessage{
			Type:             TypeSystem,
			EncryptedMessage: req.JoinMessage,
			Timestamp:        h.timestamp(),
		}, c)
	}
}

// reauthenticateLocked handles a join for the room c is already in. Other
// members see nothing; c gets a fresh confirmation and the current count.
func (h *Hub) reauthenticateLocked(c *Client, req InboundMessage) {
	c.session.identity = append([]byte(nil), req.EncryptedUsername...)
	h.log.Debug("client re-authenticated", "conn", c.id, "room", req.Room)

	h.sendLocked(c, AuthenticatedMessage{Type: TypeAuthenticated, Room: req.Room})
	if !c.closed {
		h.sendLocked(c, UserCountMessage{Type: TypeUserCount, Count: h.members.countOf(req.Room)})
	}
}

// leaveRoomLocked removes c from its room, resets it to unauthenticated and
// notifies the remaining members. An emptied room gets an eviction timer.
func (h *Hub) leaveRoomLocked(c *Client) {
	roomName := c.session.room
	identity := c.session.identity
	c.session = session{}

	count := h.members.leave(roomName, c)
	h.updateGaugesLocked()
	h.log.Info("client left room", "conn", c.id, "room", roomName, "members", count)

	if count == 0 {
		h.scheduleEvictionLocked(roomName)
		return
	}

	h.broadcastRoomLocked(roomName, UserCountMessage{Type: TypeUserCount, Count: count}, nil)
	h.broadcastRoomLocked(roomName, UserLeftMessage{
		Type:              TypeUserLeft,
		EncryptedUsername: rawOrNull(identity),
		Timestamp:         h.timestamp(),
	}, nil)
}
