package relay

import (
	"github.com/lox/crazyeights/internal/game"
	"github.com/lox/crazyeights/internal/protocol"
)

// room holds at most two seated connections. Seat 0 is Player 1.
type room struct {
	code  string
	seats [2]*Connection
}

func newRoom(code string) *room {
	return &room{code: code}
}

// seat places c in the first free seat and returns the player it was given,
// or NoPlayer when both seats are taken.
func (r *room) seat(c *Connection) game.Player {
	for i, occupant := range r.seats {
		if occupant == nil {
			r.seats[i] = c
			return game.Player(i + 1)
		}
	}
	return game.NoPlayer
}

func (r *room) remove(c *Connection) bool {
	for i, occupant := range r.seats {
		if occupant == c {
			r.seats[i] = nil
			return true
		}
	}
	return false
}

// peer returns the other seated connection, if any
func (r *room) peer(c *Connection) *Connection {
	switch c {
	case r.seats[0]:
		return r.seats[1]
	case r.seats[1]:
		return r.seats[0]
	}
	return nil
}

func (r *room) empty() bool {
	return r.seats[0] == nil && r.seats[1] == nil
}

func (r *room) members() []*Connection {
	var out []*Connection
	for _, c := range r.seats {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (r *room) data() protocol.RoomData {
	users := make([]protocol.User, 0, 2)
	for i, c := range r.seats {
		if c != nil {
			users = append(users, protocol.User{Name: c.Name(), Player: game.Player(i + 1)})
		}
	}
	return protocol.RoomData{Room: r.code, Users: users}
}
