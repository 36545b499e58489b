// Package server defines the JSON wire protocol exchanged with clients and
// utility helpers that are reused across client and hub logic.
package server

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Message types accepted from clients.
const (
	TypeCreateRoom = "createRoom"
	TypeJoin       = "join"
	TypeLeave      = "leave"
	TypeMessage    = "message"
	TypeFile       = "file"
)

// Message types emitted by the server. TypeMessage and TypeFile are shared
// with the inbound set.
const (
	TypeRoomList      = "roomList"
	TypeUserCount     = "userCount"
	TypeAuthenticated = "authenticated"
	TypeSystem        = "system"
	TypeUserLeft      = "userLeft"
	TypeError         = "error"
)

// timestampLayout renders UTC instants with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// InboundMessage is the decoded form of every client frame. Only the fields
// relevant to Type are populated. Encrypted fields are kept as raw JSON and
// are never inspected.
type InboundMessage struct {
	Type string `json:"type"`

	RoomName       string `json:"roomName,omitempty"`
	IsPrivate      bool   `json:"isPrivate,omitempty"`
	HashedPassword string `json:"hashedPassword,omitempty"`

	EncryptedUsername json.RawMessage `json:"encryptedUsername,omitempty"`
	Room              string          `json:"room,omitempty"`
	JoinMessage       json.RawMessage `json:"joinMessage,omitempty"`

	EncryptedMessage json.RawMessage `json:"encryptedMessage,omitempty"`

	EncryptedFile json.RawMessage `json:"encryptedFile,omitempty"`
	FileName      json.RawMessage `json:"fileName,omitempty"`
	FileType      json.RawMessage `json:"fileType,omitempty"`
	FileSize      json.RawMessage `json:"fileSize,omitempty"`
}

// RoomSummary is the public view of a room in a roomList frame.
type RoomSummary struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
}

// RoomListMessage announces the current room directory. NewRoom is set when
// the list was triggered by a room creation.
type RoomListMessage struct {
	Type    string        `json:"type"`
	Rooms   []RoomSummary `json:"rooms"`
	NewRoom string        `json:"newRoom,omitempty"`
}

// UserCountMessage carries the member count of the recipient's room.
type UserCountMessage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// AuthenticatedMessage confirms a successful join.
type AuthenticatedMessage struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

// SystemMessage relays a join announcement supplied by the joining client.
type SystemMessage struct {
	Type             string          `json:"type"`
	EncryptedMessage json.RawMessage `json:"encryptedMessage"`
	Timestamp        string          `json:"timestamp"`
}

// ChatMessage is a relayed text message.
type ChatMessage struct {
	Type              string          `json:"type"`
	EncryptedMessage  json.RawMessage `json:"encryptedMessage"`
	EncryptedUsername json.RawMessage `json:"encryptedUsername"`
	Timestamp         string          `json:"timestamp"`
}

// FileMessage is a relayed file transfer.
type FileMessage struct {
	Type              string          `json:"type"`
	EncryptedFile     json.RawMessage `json:"encryptedFile"`
	EncryptedUsername json.RawMessage `json:"encryptedUsername"`
	FileName          json.RawMessage `json:"fileName"`
	FileType          json.RawMessage `json:"fileType"`
	FileSize          json.RawMessage `json:"fileSize"`
	Timestamp         string          `json:"timestamp"`
}

// UserLeftMessage tells remaining members that someone left the room.
type UserLeftMessage struct {
	Type              string          `json:"type"`
	EncryptedUsername json.RawMessage `json:"encryptedUsername"`
	Timestamp         string          `json:"timestamp"`
}

// ErrorMessage reports a rejected request to the originating connection.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// isBlank reports whether a raw JSON field is absent, null, or an empty string.
func isBlank(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 ||
		bytes.Equal(trimmed, []byte("null")) ||
		bytes.Equal(trimmed, []byte(`""`))
}

// rawOrNull substitutes JSON null for an absent optional field so outbound
// frames always carry every key.
func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
