package server

import (
	"crypto/subtle"
	"fmt"
	"slices"
	"strings"
)

// room is a directory entry. The verifier is an opaque client-side hash and
// is only ever compared, never interpreted.
type room struct {
	name      string
	isPrivate bool
	verifier  string
}

// roomDirectory maps room names to their privacy settings. It keeps
// insertion order for listing. Not safe for concurrent use; the Hub
// serializes access.
type roomDirectory struct {
	order []string
	rooms map[string]*room
}

func newRoomDirectory() *roomDirectory {
	return &roomDirectory{rooms: make(map[string]*room)}
}

// create registers a room. The name is trimmed before validation and storage.
// A verifier supplied for a public room is discarded.
func (d *roomDirectory) create(name string, isPrivate bool, verifier string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if _, exists := d.rooms[name]; exists {
		return "", fmt.Errorf("%w: %q", ErrAlreadyExists, name)
	}
	if isPrivate && verifier == "" {
		return "", ErrMissingPassword
	}
	if !isPrivate {
		verifier = ""
	}

	d.rooms[name] = &room{name: name, isPrivate: isPrivate, verifier: verifier}
	d.order = append(d.order, name)
	return name, nil
}

func (d *roomDirectory) exists(name string) bool {
	_, ok := d.rooms[name]
	return ok
}

// verifyAccess checks that the room exists and, when private, that the
// supplied verifier matches the stored one byte for byte.
func (d *roomDirectory) verifyAccess(name, verifier string) error {
	r, ok := d.rooms[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if !r.isPrivate {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(r.verifier), []byte(verifier)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

func (d *roomDirectory) remove(name string) bool {
	if _, ok := d.rooms[name]; !ok {
		return false
	}
	delete(d.rooms, name)
	if i := slices.Index(d.order, name); i >= 0 {
		d.order = slices.Delete(d.order, i, i+1)
	}
	return true
}

func (d *roomDirectory) list() []RoomSummary {
	out := make([]RoomSummary, 0, len(d.order))
	for _, name := range d.order {
		r := d.rooms[name]
		out = append(out, RoomSummary{Name: r.name, IsPrivate: r.isPrivate})
	}
	return out
}

func (d *roomDirectory) len() int {
	return len(d.rooms)
}
