package server

import (
	"fmt"
	"strings"
)

// session is the per-connection authentication state. It is owned by the
// Client but only read or written while holding the hub mutex.
type session struct {
	identity      []byte
	authenticated bool
	room          string
}

// Dispatch runs one decoded client request to completion. Rejected requests
// produce an error frame for c only and change no state.
func (h *Hub) Dispatch(c *Client, msg InboundMessage) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[c]; !ok || c.closed {
		return
	}

	if err := h.dispatchLocked(c, msg); err != nil {
		kind := errorKind(err)
		requestErrors.WithLabelValues(kind).Inc()
		h.log.Debug("request rejected", "conn", c.id, "type", msg.Type, "kind", kind, "err", err)
		h.sendLocked(c, ErrorMessage{Type: TypeError, Message: err.Error()})
	}
}

func (h *Hub) dispatchLocked(c *Client, msg InboundMessage) error {
	switch msg.Type {
	case TypeCreateRoom:
		return h.handleCreateRoom(msg)
	case TypeJoin:
		return h.handleJoin(c, msg)
	case TypeLeave, TypeMessage, TypeFile:
		if !c.session.authenticated {
			return ErrNotAuthenticated
		}
	case "":
		return fmt.Errorf("%w: missing type", ErrMalformedPayload)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedPayload, msg.Type)
	}

	switch msg.Type {
	case TypeLeave:
		h.leaveRoomLocked(c)
		return nil
	case TypeMessage:
		return h.handleMessage(c, msg)
	default:
		return h.handleFile(c, msg)
	}
}

func (h *Hub) handleCreateRoom(msg InboundMessage) error {
	if strings.TrimSpace(msg.RoomName) == "" {
		return ErrEmptyName
	}
	return h.createRoomLocked(msg.RoomName, msg.IsPrivate, msg.HashedPassword)
}

func (h *Hub) handleJoin(c *Client, msg InboundMessage) error {
	if msg.Room == "" {
		return fmt.Errorf("%w: missing room", ErrMalformedPayload)
	}
	if isBlank(msg.EncryptedUsername) {
		return fmt.Errorf("%w: missing encryptedUsername", ErrMalformedPayload)
	}
	if err := h.directory.verifyAccess(msg.Room, msg.HashedPassword); err != nil {
		return err
	}
	h.joinRoomLocked(c, msg)
	return nil
}

func (h *Hub) handleMessage(c *Client, msg InboundMessage) error {
	if isBlank(msg.EncryptedMessage) {
		return fmt.Errorf("%w: missing encryptedMessage", ErrMalformedPayload)
	}

	sent := h.broadcastRoomLocked(c.session.room, ChatMessage{
		Type:              TypeMessage,
		EncryptedMessage:  msg.EncryptedMessage,
		EncryptedUsername: c.session.identity,
		Timestamp:         h.timestamp(),
	}, c)
	relayedFrames.WithLabelValues(TypeMessage).Add(float64(sent))
	return nil
}

func (h *Hub) handleFile(c *Client, msg InboundMessage) error {
	if isBlank(msg.EncryptedFile) {
		return fmt.Errorf("%w: missing encryptedFile", ErrMalformedPayload)
	}

	sent := h.broadcastRoomLocked(c.session.room, FileMessage{
		Type:              TypeFile,
		EncryptedFile:     msg.EncryptedFile,
		EncryptedUsername: c.session.identity,
		FileName:          rawOrNull(msg.FileName),
		FileType:          rawOrNull(msg.FileType),
		FileSize:          rawOrNull(msg.FileSize),
		Timestamp:         h.timestamp(),
	}, c)
	relayedFrames.WithLabelValues(TypeFile).Add(float64(sent))
	return nil
}
