// Package server implements the cipherrooms relay: a WebSocket server that
// keeps public and password-gated chat rooms in memory and relays
// end-to-end encrypted payloads between the members of each room.
//
// The Hub owns all shared state (room directory, membership, pending room
// evictions) behind one mutex. Each Client runs a read pump that decodes
// frames and dispatches them to the hub, and a write pump that drains the
// client's buffered send queue. The server never sees plaintext: usernames,
// messages, files and room passwords arrive already encrypted or hashed.
package server
