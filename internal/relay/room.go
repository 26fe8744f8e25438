package relay

import "time"

// Room is one named collaboration session: its current members and the
// shared code buffer. Rooms are plain data; all access happens on the
// hub's run loop, so there is no lock here.
type Room struct {
	// Name is the client-supplied identifier the room is registered under.
	Name string

	// Clients maps session id to the live session.
	Clients map[string]*Session

	// Code is the shared text buffer. Each accepted update replaces it in
	// full; the value lives exactly as long as the room does.
	Code string

	// lastTS keeps stamped timestamps non-decreasing even if the wall
	// clock steps backwards.
	lastTS int64
}

func newRoom(name string) *Room {
	return &Room{
		Name:    name,
		Clients: make(map[string]*Session),
	}
}

// stamp returns the server receive time for a frame, in Unix
// milliseconds, monotonically non-decreasing within the room.
func (r *Room) stamp() int64 {
	ts := time.Now().UnixMilli()
	if ts < r.lastTS {
		ts = r.lastTS
	}
	r.lastTS = ts
	return ts
}

// peersExcept lists the ids of all members other than the given one.
func (r *Room) peersExcept(id string) []string {
	peers := make([]string, 0, len(r.Clients))
	for cid := range r.Clients {
		if cid != id {
			peers = append(peers, cid)
		}
	}
	return peers
}
