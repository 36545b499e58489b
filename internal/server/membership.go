package server

// membershipTracker maps room names to the set of clients joined to them.
// A client is tracked in at most one room; the Hub enforces that by leaving
// the old room before joining a new one.
type membershipTracker struct {
	rooms map[string]map[*Client]struct{}
	total int
}

func newMembershipTracker() *membershipTracker {
	return &membershipTracker{rooms: make(map[string]map[*Client]struct{})}
}

// join adds c to the room and returns the new member count.
func (m *membershipTracker) join(roomName string, c *Client) int {
	members, ok := m.rooms[roomName]
	if !ok {
		members = make(map[*Client]struct{})
		m.rooms[roomName] = members
	}
	if _, already := members[c]; !already {
		members[c] = struct{}{}
		m.total++
	}
	return len(members)
}

// leave removes c from the room and returns the remaining member count.
// An emptied set stays tracked until the room is dropped.
func (m *membershipTracker) leave(roomName string, c *Client) int {
	members, ok := m.rooms[roomName]
	if !ok {
		return 0
	}
	if _, present := members[c]; present {
		delete(members, c)
		m.total--
	}
	return len(members)
}

func (m *membershipTracker) countOf(roomName string) int {
	return len(m.rooms[roomName])
}

// members returns a snapshot of the clients in roomName.
func (m *membershipTracker) members(roomName string) []*Client {
	set := m.rooms[roomName]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func (m *membershipTracker) drop(roomName string) {
	m.total -= len(m.rooms[roomName])
	delete(m.rooms, roomName)
}
