package session

import (
	"sync"

	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/internal/util"
)

// Registry is the process-wide, token-keyed directory of live Sessions
// (spec.md §4.5). Like room.Registry, its own lock only ever guards O(1)
// lookups/inserts/removes.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	maxUsers int
}

// NewRegistry builds an empty registry capped at maxUsers concurrent
// sessions. maxUsers<=0 means unlimited.
func NewRegistry(maxUsers int) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		maxUsers: maxUsers,
	}
}

// Register generates a fresh bearer token and UUID, inserts a new Session
// under that token, and returns it. Returns MaxUsers if the cap would be
// exceeded.
func (reg *Registry) Register(remoteAddr string) (*Session, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.maxUsers > 0 && len(reg.sessions) >= reg.maxUsers {
		return nil, apierrors.New(apierrors.KindMaxUsers, "maximum number of concurrent sessions reached")
	}

	var token string
	for {
		t, err := util.GenerateToken()
		if err != nil {
			return nil, apierrors.Internal("generate session token: " + err.Error())
		}
		if _, exists := reg.sessions[t]; !exists {
			token = t
			break
		}
	}

	s := newSession(token, remoteAddr)
	reg.sessions[token] = s
	return s, nil
}

// Get looks up the session presenting token, the bearer credential on
// every request (spec.md §4.4 step 1).
func (reg *Registry) Get(token string) (*Session, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	s, ok := reg.sessions[token]
	return s, ok
}

// Remove discards the session under token, if present, closing it.
func (reg *Registry) Remove(token string) {
	reg.mu.Lock()
	s, ok := reg.sessions[token]
	delete(reg.sessions, token)
	reg.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Count returns the number of currently registered sessions.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.sessions)
}

// Sessions returns a snapshot of every currently registered session, used
// by the dispatcher's lobby-wide broadcasts (CreateMap/DeleteMap), safe
// to range over after the lock is released.
func (reg *Registry) Sessions() []*Session {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Session, 0, len(reg.sessions))
	for _, s := range reg.sessions {
		out = append(out, s)
	}
	return out
}
