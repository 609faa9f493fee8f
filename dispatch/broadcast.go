package dispatch

import (
	"encoding/json"
	"time"

	"github.com/ddnet/maproom/room"
	"github.com/ddnet/maproom/session"
)

// sender is the capability room.User deliberately withholds (it only
// exposes ID/Closed, to keep the room package decoupled from session).
// The dispatcher, which already imports the concrete session type to
// resolve bearer tokens, is the one place that bridges the two: it
// type-asserts up to this narrower interface at the point of sending
// rather than widening room.User itself.
type sender interface {
	Send([]byte) bool
}

func buildFrame(kind FrameKind, content interface{}) []byte {
	raw, err := json.Marshal(content)
	if err != nil {
		raw = json.RawMessage("null")
	}
	frame := Frame{
		Timestamp: uint64(time.Now().UnixMilli()),
		Kind:      kind,
		Content:   raw,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return nil
	}
	return data
}

// broadcastToRoom relays b to every user in r except originatorID.
// Caller holds at least the room reader.
func (d *Dispatcher) broadcastToRoom(r *room.Room, originatorID string, b Broadcast) {
	if d.Metrics != nil {
		d.Metrics.ObserveBroadcast(b.Kind)
	}
	frame := buildFrame(FrameBroadcast, b)
	if frame == nil {
		return
	}
	for _, u := range r.Users() {
		if u.ID() == originatorID {
			continue
		}
		if s, ok := u.(sender); ok {
			s.Send(frame)
		}
	}
}

// broadcastToLobby relays b to every live session except originatorID,
// regardless of room membership (CreateMap/DeleteMap use this).
func (d *Dispatcher) broadcastToLobby(sessions *session.Registry, originatorID string, b Broadcast) {
	if d.Metrics != nil {
		d.Metrics.ObserveBroadcast(b.Kind)
	}
	frame := buildFrame(FrameBroadcast, b)
	if frame == nil {
		return
	}
	for _, s := range sessions.Sessions() {
		if s.ID() == originatorID {
			continue
		}
		s.Send(frame)
	}
}
