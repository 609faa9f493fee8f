// Package session implements the per-connection Session/User: identity,
// bearer token, outbound frame queue, and the small bit of mutable state
// (joined room, last cursor) a session carries between requests.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ddnet/maproom/room"
)

// Cursor is an opaque, protocol-defined payload (spec.md §4.4 `Cursor`
// requests carry whatever shape the client-side editor wants); the server
// never interprets it beyond storing and relaying it.
type Cursor = json.RawMessage

// outboundBufferSize bounds each session's outbound channel (spec.md §5:
// "Each session has a bounded outbound channel"). A full channel means a
// slow consumer; sends are best-effort and never block the room.
const outboundBufferSize = 256

// Session is one live connection (websocket or, for the duration of a
// single call, an HTTP request authenticated by a prior Session's token).
// It implements room.User.
type Session struct {
	id         string
	token      string
	remoteAddr string
	createdAt  time.Time
	outbound   chan []byte

	// sendMu serializes Send against Close: both touch the outbound
	// channel's open/closed state, and a plain bool plus a bare channel
	// close would let a Send slip between a closed check and the
	// channel's actual close, panicking on a send to a closed channel.
	sendMu sync.Mutex
	closed bool

	mu        sync.RWMutex
	joinedRoom *room.Room
	joinedName string
	joinedAt   time.Time
	cursor     Cursor
}

func newSession(token, remoteAddr string) *Session {
	return &Session{
		id:         uuid.NewString(),
		token:      token,
		remoteAddr: remoteAddr,
		createdAt:  time.Now(),
		outbound:   make(chan []byte, outboundBufferSize),
	}
}

// ID satisfies room.User; it is the session's UUID, not its bearer token,
// so room membership never leaks the token into logs or broadcasts.
func (s *Session) ID() string { return s.id }

// Token is the bearer token the client must present on every request.
func (s *Session) Token() string { return s.token }

// RemoteAddr is recorded purely for logging/metrics, never authorization
// (SPEC_FULL.md §3).
func (s *Session) RemoteAddr() string { return s.remoteAddr }

// CreatedAt is when the session was registered.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Closed reports whether the session's connection has already torn down.
func (s *Session) Closed() bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.closed
}

// Close marks the session closed and closes its outbound channel so the
// transport's writer pump unblocks. Holding sendMu across the close
// excludes any Send in flight: either it already enqueued its frame and
// returned before this runs, or it observes closed and never touches the
// channel at all.
func (s *Session) Close() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.outbound)
}

// Outbound returns the channel the transport's writer pump drains.
func (s *Session) Outbound() <-chan []byte { return s.outbound }

// Send enqueues frame for delivery, best-effort: a full channel or an
// already-closed session silently drops the frame rather than blocking the
// caller or ever sending on a closed channel.
func (s *Session) Send(frame []byte) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.outbound <- frame:
		return true
	default:
		return false
	}
}

// Join records that the session is now a member of r, under name.
func (s *Session) Join(name string, r *room.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joinedRoom = r
	s.joinedName = name
	s.joinedAt = time.Now()
	s.cursor = nil
}

// Leave clears the session's room membership.
func (s *Session) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joinedRoom = nil
	s.joinedName = ""
	s.cursor = nil
}

// JoinedRoom returns the session's current room and its name, or
// (nil, "", false) if the session hasn't joined one.
func (s *Session) JoinedRoom() (*room.Room, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.joinedRoom == nil {
		return nil, "", false
	}
	return s.joinedRoom, s.joinedName, true
}

// JoinedAt is the time the session joined its current room; zero if not
// currently joined.
func (s *Session) JoinedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.joinedAt
}

// SetCursor records the session's latest cursor report.
func (s *Session) SetCursor(c Cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = c
}

// LastCursor returns the most recently recorded cursor, or nil.
func (s *Session) LastCursor() Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}
