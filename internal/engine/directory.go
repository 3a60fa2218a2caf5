package engine

import "github.com/vovakirdan/chatgate/internal/core"

// directory is the ordered list of joined rooms. The first entry is the
// routing context for whispers. Callers hold Engine.mu.
type directory struct {
	rooms []*core.Room
}

// add appends r unless a room with the same id is present.
func (d *directory) add(r *core.Room) bool {
	if d.byID(r.ID) != nil {
		return false
	}
	d.rooms = append(d.rooms, r)
	return true
}

func (d *directory) remove(id int) *core.Room {
	for i, r := range d.rooms {
		if r.ID == id {
			d.rooms = append(d.rooms[:i], d.rooms[i+1:]...)
			return r
		}
	}
	return nil
}

func (d *directory) byID(id int) *core.Room {
	for _, r := range d.rooms {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (d *directory) byName(name string) *core.Room {
	for _, r := range d.rooms {
		if r.Name() == name {
			return r
		}
	}
	return nil
}

func (d *directory) names() []string {
	out := make([]string, 0, len(d.rooms))
	for _, r := range d.rooms {
		out = append(out, r.Name())
	}
	return out
}

func (d *directory) first() *core.Room {
	if len(d.rooms) == 0 {
		return nil
	}
	return d.rooms[0]
}

func (d *directory) isFirst(r *core.Room) bool {
	f := d.first()
	return f != nil && f.ID == r.ID
}

// snapshot copies the room list so callers can iterate while rooms are removed.
func (d *directory) snapshot() []*core.Room {
	out := make([]*core.Room, len(d.rooms))
	copy(out, d.rooms)
	return out
}

// memberByNick searches the rosters of all joined rooms.
func (d *directory) memberByNick(nick string) *core.User {
	for _, r := range d.rooms {
		if u := r.MemberByNick(nick); u != nil {
			return u
		}
	}
	return nil
}

func (d *directory) clear() {
	d.rooms = nil
}
