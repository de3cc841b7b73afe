package main

import (
	"crypto/rand"
	"time"
)

// roomRegistry owns the id→room table. It is plain state injected into the
// coordinator, which is its sole user; rooms with no pending deadline are
// kept alive indefinitely so a creator can idle on the lobby screen.
type roomRegistry struct {
	rooms map[string]*room
}

func newRoomRegistry() *roomRegistry {
	return &roomRegistry{rooms: make(map[string]*room)}
}

func (reg *roomRegistry) create(id, variant string) (*room, error) {
	if _, exists := reg.rooms[id]; exists {
		return nil, errRoomExists
	}
	r := newRoom(id, variant)
	reg.rooms[id] = r
	return r, nil
}

func (reg *roomRegistry) get(id string) (*room, bool) {
	r, ok := reg.rooms[id]
	return r, ok
}

func (reg *roomRegistry) remove(id string) {
	delete(reg.rooms, id)
}

// expired returns rooms whose grace deadline has passed.
func (reg *roomRegistry) expired(now time.Time) []*room {
	var out []*room
	for _, r := range reg.rooms {
		if !r.graceDeadline.IsZero() && !now.Before(r.graceDeadline) {
			out = append(out, r)
		}
	}
	return out
}

// newRoomID generates a short human-shareable code, retrying on the
// (unlikely) collision with a live room.
func (reg *roomRegistry) newRoomID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	for {
		buf := make([]byte, 6)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 6)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		if _, exists := reg.rooms[id]; !exists {
			return id
		}
	}
}
