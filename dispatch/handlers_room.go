package dispatch

import (
	"encoding/base64"
	"encoding/json"

	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/mutation"
	"github.com/ddnet/maproom/room"
	"github.com/ddnet/maproom/session"
)

func (d *Dispatcher) handleJoin(s *session.Session, req Request) (json.RawMessage, *Broadcast, error) {
	r, ok := d.Rooms.Get(req.Name)
	if !ok {
		return nil, nil, apierrors.New(apierrors.KindNotFoundMap, "room not found: "+req.Name)
	}
	if _, _, joined := s.JoinedRoom(); joined {
		return nil, nil, apierrors.New(apierrors.KindAlreadyJoined, "session has already joined a room")
	}

	r.RLock()
	cfg := r.Config()
	r.RUnlock()
	if cfg.HasPassword() && !cfg.CheckPassword(req.Password) {
		return nil, nil, apierrors.New(apierrors.KindBadPassword, "incorrect room password")
	}

	r.Lock()
	r.AddUser(s)
	count := r.UserCount()
	r.Unlock()
	s.Join(req.Name, r)

	d.broadcastToRoom(r, s.ID(), Broadcast{Kind: BroadcastUsers, Room: req.Name, UserCount: count})
	return marshalResult(struct{}{}), nil, nil
}

func (d *Dispatcher) handleLeave(s *session.Session, req Request) (json.RawMessage, *Broadcast, error) {
	r, name, joined := s.JoinedRoom()
	if !joined {
		return nil, nil, apierrors.New(apierrors.KindNotJoined, "session has not joined a room")
	}
	r.Lock()
	r.RemoveUser(s.ID())
	count := r.UserCount()
	r.Unlock()
	s.Leave()

	d.broadcastToRoom(r, s.ID(), Broadcast{Kind: BroadcastUsers, Room: name, UserCount: count})
	return marshalResult(struct{}{}), nil, nil
}

func (d *Dispatcher) handleListMaps(s *session.Session, req Request) (json.RawMessage, *Broadcast, error) {
	names := d.Rooms.List()
	out := make([]MapSummary, 0, len(names))
	for _, name := range names {
		r, ok := d.Rooms.Get(name)
		if !ok {
			continue
		}
		r.RLock()
		cfg := r.Config()
		r.RUnlock()
		out = append(out, MapSummary{Name: name, Public: cfg.Public})
	}
	return marshalResult(out), nil, nil
}

func (d *Dispatcher) handleGetMap(s *session.Session, req Request) (json.RawMessage, *Broadcast, error) {
	r, err := d.targetRoom(s, req.Name)
	if err != nil {
		return nil, nil, err
	}
	if err := authorize(r, s); err != nil {
		return nil, nil, err
	}
	r.RLock()
	defer r.RUnlock()
	data, etag, err := mutation.GetMap(r)
	if err != nil {
		return nil, nil, err
	}
	return marshalResult(GetMapResult{Map: data, ETag: etag}), nil, nil
}

func (d *Dispatcher) handleCreateMap(s *session.Session, req Request) (json.RawMessage, *Broadcast, error) {
	var payload CreateMapPayload
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return nil, nil, apierrors.InvalidField("payload", "could not decode create_map payload")
		}
	}

	creation := room.Creation{MaxUploadLen: d.MaxUploadBytes}
	switch payload.Mode {
	case CreateMapClone:
		creation.Mode = room.CreationClone
		creation.SourceName = payload.SourceName
	case CreateMapUpload:
		creation.Mode = room.CreationUpload
		raw, err := base64.StdEncoding.DecodeString(payload.UploadBase64)
		if err != nil {
			return nil, nil, apierrors.InvalidField("upload_base64", "not valid base64")
		}
		creation.UploadBytes = raw
	default:
		creation.Mode = room.CreationBlank
		creation.Width, creation.Height = payload.Width, payload.Height
	}

	r, err := mutation.CreateMap(d.Rooms, d.BaseDir, req.Name, creation, d.MaxMapBytes)
	if err != nil {
		return nil, nil, err
	}

	d.broadcastToLobby(d.Sessions, s.ID(), Broadcast{Kind: BroadcastMapCreated, Room: r.Name()})
	return marshalResult(struct{}{}), nil, nil
}

func (d *Dispatcher) handleDeleteMap(s *session.Session, req Request) (json.RawMessage, *Broadcast, error) {
	r, err := d.targetRoom(s, req.Name)
	if err != nil {
		return nil, nil, err
	}
	if err := authorize(r, s); err != nil {
		return nil, nil, err
	}
	if err := mutation.DeleteMap(d.Rooms, req.Name); err != nil {
		return nil, nil, err
	}
	d.broadcastToLobby(d.Sessions, s.ID(), Broadcast{Kind: BroadcastMapDeleted, Room: req.Name})
	return marshalResult(struct{}{}), nil, nil
}

func (d *Dispatcher) handleSave(s *session.Session, req Request) (json.RawMessage, *Broadcast, error) {
	r, name, joined := s.JoinedRoom()
	if !joined {
		return nil, nil, apierrors.New(apierrors.KindNotJoined, "session has not joined a room")
	}
	r.Lock()
	defer r.Unlock()
	if err := mutation.SaveMap(r, d.MaxMapBytes); err != nil {
		return nil, nil, err
	}
	d.broadcastToRoom(r, s.ID(), Broadcast{Kind: BroadcastSaved, Room: name})
	return marshalResult(struct{}{}), nil, nil
}

func (d *Dispatcher) handleCursor(s *session.Session, req Request) (json.RawMessage, *Broadcast, error) {
	_, _, joined := s.JoinedRoom()
	if !joined {
		return nil, nil, apierrors.New(apierrors.KindNotJoined, "session has not joined a room")
	}
	var payload CursorPayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return nil, nil, apierrors.InvalidField("payload", "could not decode cursor payload")
	}
	s.SetCursor(payload.Cursor)
	// Cursor updates are per-client ephemera; nothing to relay.
	return marshalResult(struct{}{}), nil, nil
}
