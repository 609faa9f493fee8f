package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/automapper"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/room"
	"github.com/ddnet/maproom/session"
)

// Recorder is the narrow metrics interface the dispatcher reports through;
// left unset (nil) it is simply skipped. The concrete implementation lives
// in the metrics package, which the two transports wire in at startup.
type Recorder interface {
	ObserveRequest(op Op, ok bool)
	ObserveBroadcast(kind BroadcastKind)
}

// Dispatcher resolves a session, determines the target room, authorizes,
// invokes the mutation engine, and reports what (if anything) must be
// broadcast. Both transports share one Dispatcher instance.
type Dispatcher struct {
	Rooms    *room.Registry
	Sessions *session.Registry
	Runner   automapper.Runner
	Log      *logrus.Logger
	Metrics  Recorder

	// BaseDir is the directory new rooms are created under (CreateMap).
	BaseDir string
	// MaxMapBytes caps a saved/created map's serialized size; <=0 means
	// unlimited.
	MaxMapBytes int64
	// MaxUploadBytes caps CreateMap(Upload)'s payload size; <=0 means
	// unlimited.
	MaxUploadBytes int64
}

// Result is everything the transport needs to finish handling one inbound
// request: the reply to send back to the originator, an optional
// broadcast to relay to the rest of the room (or lobby), and whether the
// handler panicked — in which case the transport must drop the
// originating socket.
type Result struct {
	Response  Response
	Broadcast *Broadcast
	Panicked  bool
}

// Dispatch runs the full processing pipeline for one request from s;
// resolving the session from its bearer token is the transport's job
// before calling Dispatch, since the two transports authenticate
// differently enough (websocket upgrade vs. HTTP header) that it doesn't
// belong here. ctx is tied to the originating connection's lifetime; it
// cancels when the socket closes or the server shuts down, and is only
// consulted by ops that shell out (automapper).
//
// A panic anywhere in the handler is recovered here so one misbehaving
// request never takes down the dispatch loop for other sessions; the
// transport still must tear the *session* down and re-check the room
// (RecoverRoom) since the panic happened while potentially holding the
// room writer mid-mutation.
func (d *Dispatcher) Dispatch(ctx context.Context, s *session.Session, req Request) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			if d.Log != nil {
				d.Log.WithField("panic", rec).Error("recovered panic in request dispatch")
			}
			apiErr := apierrors.Internal(fmt.Sprintf("internal error: %v", rec))
			result = Result{Response: errorResponse(apiErr), Panicked: true}
		}
	}()

	reply, broadcast, err := d.dispatch(ctx, s, req)
	ok := err == nil
	if d.Metrics != nil {
		d.Metrics.ObserveRequest(req.Op, ok)
	}
	if err != nil {
		return Result{Response: errorResponse(apierrors.AsError(err))}
	}
	return Result{Response: Response{OK: true, Result: reply}, Broadcast: broadcast}
}

func errorResponse(err *apierrors.Error) Response {
	body := err.Body()
	return Response{OK: false, Error: &body}
}

// targetRoom resolves the operation's target map: an explicit name wins,
// else the session's currently joined room.
func (d *Dispatcher) targetRoom(s *session.Session, name string) (*room.Room, error) {
	if name != "" {
		r, ok := d.Rooms.Get(name)
		if !ok {
			return nil, apierrors.New(apierrors.KindNotFoundMap, "room not found: "+name)
		}
		return r, nil
	}
	r, _, joined := s.JoinedRoom()
	if !joined {
		return nil, apierrors.New(apierrors.KindNotFoundMap, "no room joined and no name given")
	}
	return r, nil
}

// authorize enforces that a password-protected room may only be read or
// written by a session currently joined to it.
func authorize(r *room.Room, s *session.Session) error {
	cfg := r.Config()
	if !cfg.HasPassword() {
		return nil
	}
	joinedRoom, _, joined := s.JoinedRoom()
	if joined && joinedRoom == r {
		return nil
	}
	return apierrors.New(apierrors.KindUnauthorized, "this room requires authorization")
}

// dispatch is Dispatch's panic-free body, split out so the deferred
// recover above wraps the whole thing including payload decoding.
func (d *Dispatcher) dispatch(ctx context.Context, s *session.Session, req Request) (json.RawMessage, *Broadcast, error) {
	switch req.Op {
	case OpJoin:
		return d.handleJoin(s, req)
	case OpLeave:
		return d.handleLeave(s, req)
	case OpListMaps:
		return d.handleListMaps(s, req)
	case OpGetMap:
		return d.handleGetMap(s, req)
	case OpCreateMap:
		return d.handleCreateMap(s, req)
	case OpDeleteMap:
		return d.handleDeleteMap(s, req)
	case OpSave:
		return d.handleSave(s, req)
	case OpCursor:
		return d.handleCursor(s, req)
	case OpGet, OpCreate, OpEdit, OpDelete, OpMove:
		return d.handleMutation(ctx, s, req)
	default:
		return nil, nil, apierrors.New(apierrors.KindInvalidField, "unknown op: "+string(req.Op))
	}
}

// RecoverRoom runs the post-panic room recheck once the transport has
// already dropped the panicking session's socket:
// prune any now-stale closed peers and re-check the map's structural
// validity, broadcasting (and returning, for callers that want to log or
// test it) a relay to the remaining peers if it no longer holds.
func (d *Dispatcher) RecoverRoom(r *room.Room) *Broadcast {
	r.Lock()
	r.RemoveClosedUsers()
	m, err := r.Map()
	if err != nil {
		r.Unlock()
		return nil
	}
	if err := mapmodel.MapCheck(m); err != nil {
		b := Broadcast{Kind: BroadcastRelay, Room: r.Name(), UserCount: r.UserCount()}
		r.Unlock()
		r.RLock()
		d.broadcastToRoom(r, "", b)
		r.RUnlock()
		return &b
	}
	r.Unlock()
	return nil
}

func marshalResult(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
