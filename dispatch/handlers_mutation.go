package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/mutation"
	"github.com/ddnet/maproom/room"
	"github.com/ddnet/maproom/session"
)

// handleMutation routes Get/Create/Edit/Delete/Move(sub) over the
// mutation engine catalogue. These operations always target the
// session's currently joined room — the request taxonomy only carries
// an explicit name for Join/GetMap/CreateMap/DeleteMap.
func (d *Dispatcher) handleMutation(ctx context.Context, s *session.Session, req Request) (json.RawMessage, *Broadcast, error) {
	r, name, joined := s.JoinedRoom()
	if !joined {
		return nil, nil, apierrors.New(apierrors.KindNotJoined, "session has not joined a room")
	}
	if err := authorize(r, s); err != nil {
		return nil, nil, err
	}

	if req.Op == OpGet {
		r.RLock()
		defer r.RUnlock()
		result, err := d.runGet(ctx, r, req)
		if err != nil {
			return nil, nil, err
		}
		return result, nil, nil
	}

	// runWrite takes the room writer itself rather than it being held
	// here: most subs hold it for the whole call, but the automapper sub
	// needs to release it across an external process invocation, so the
	// locking has to live closer to that decision.
	result, err := d.runWrite(ctx, r, req)
	if err != nil {
		return nil, nil, err
	}

	reqCopy := req
	b := Broadcast{Kind: BroadcastRelay, Room: name, Request: &reqCopy}
	d.broadcastToRoom(r, s.ID(), b)
	return result, &b, nil
}

func (d *Dispatcher) runGet(ctx context.Context, r *room.Room, req Request) (json.RawMessage, error) {
	switch req.Sub {
	case SubConfig:
		return marshalResult(mutation.GetConfig(r)), nil
	case SubInfo:
		info, err := mutation.GetInfo(r)
		if err != nil {
			return nil, err
		}
		return marshalResult(info), nil
	case SubImage:
		var p imagePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Index == nil {
			list, err := mutation.ListImages(r)
			if err != nil {
				return nil, err
			}
			return marshalResult(list), nil
		}
		data, err := mutation.GetImage(r, *p.Index)
		if err != nil {
			return nil, err
		}
		return marshalResult(base64.StdEncoding.EncodeToString(data)), nil
	case SubEnvelope:
		var p envelopePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Index == nil {
			list, err := mutation.ListEnvelopes(r)
			if err != nil {
				return nil, err
			}
			return marshalResult(list), nil
		}
		e, err := mutation.GetEnvelope(r, *p.Index)
		if err != nil {
			return nil, err
		}
		return marshalResult(e), nil
	case SubGroup:
		var p groupPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Index == nil {
			list, err := mutation.ListGroups(r)
			if err != nil {
				return nil, err
			}
			return marshalResult(list), nil
		}
		g, err := mutation.GetGroup(r, *p.Index)
		if err != nil {
			return nil, err
		}
		return marshalResult(g), nil
	case SubLayer:
		var p layerPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Index == nil {
			list, err := mutation.ListLayers(r, p.GroupIndex)
			if err != nil {
				return nil, err
			}
			return marshalResult(list), nil
		}
		l, err := mutation.GetLayer(r, p.GroupIndex, *p.Index)
		if err != nil {
			return nil, err
		}
		return marshalResult(l), nil
	case SubTiles:
		var p tilesPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		data, w, h, err := mutation.GetTiles(r, p.GroupIndex, p.LayerIndex)
		if err != nil {
			return nil, err
		}
		return marshalResult(struct {
			Data          string `json:"data_base64"`
			Width, Height uint16
		}{Data: base64.StdEncoding.EncodeToString(data), Width: w, Height: h}), nil
	case SubQuad:
		var p quadPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Index == nil {
			list, err := mutation.GetQuads(r, p.GroupIndex, p.LayerIndex)
			if err != nil {
				return nil, err
			}
			return marshalResult(list), nil
		}
		q, err := mutation.GetQuad(r, p.GroupIndex, p.LayerIndex, *p.Index)
		if err != nil {
			return nil, err
		}
		return marshalResult(q), nil
	case SubAutomapper:
		var p automapperPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Name == "" {
			names, err := mutation.ListAutomappers(r)
			if err != nil {
				return nil, err
			}
			return marshalResult(names), nil
		}
		data, err := mutation.GetAutomapper(r, p.Name)
		if err != nil {
			return nil, err
		}
		return marshalResult(base64.StdEncoding.EncodeToString(data)), nil
	default:
		return nil, apierrors.New(apierrors.KindInvalidField, "unknown sub: "+string(req.Sub))
	}
}

func (d *Dispatcher) runWrite(ctx context.Context, r *room.Room, req Request) (json.RawMessage, error) {
	switch req.Op {
	case OpCreate:
		return d.runCreate(ctx, r, req)
	case OpEdit:
		return d.runEdit(ctx, r, req)
	case OpDelete:
		r.Lock()
		defer r.Unlock()
		return d.runDelete(r, req)
	case OpMove:
		r.Lock()
		defer r.Unlock()
		return d.runMove(r, req)
	default:
		return nil, apierrors.New(apierrors.KindInvalidField, "unknown op: "+string(req.Op))
	}
}

func (d *Dispatcher) runCreate(ctx context.Context, r *room.Room, req Request) (json.RawMessage, error) {
	if req.Sub == SubAutomapper {
		// PutAutomapper manages the room writer itself so it can
		// release it across the external compiler invocation.
		var p automapperPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		data, err := base64.StdEncoding.DecodeString(p.DataBase64)
		if err != nil {
			return nil, apierrors.InvalidField("data_base64", "not valid base64")
		}
		result, err := mutation.PutAutomapper(ctx, d.Runner, r, p.Name, data)
		if err != nil {
			return nil, err
		}
		return marshalResult(result), nil
	}

	r.Lock()
	defer r.Unlock()
	switch req.Sub {
	case SubImage:
		var p imagePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Kind == mapmodel.ImageExternal {
			idx, err := mutation.CreateExternalImage(r, p.Name)
			if err != nil {
				return nil, err
			}
			return marshalResult(idx), nil
		}
		png, err := base64.StdEncoding.DecodeString(p.PNGBase64)
		if err != nil {
			return nil, apierrors.InvalidField("png_base64", "not valid base64")
		}
		idx, err := mutation.CreateEmbeddedImage(r, p.Name, png)
		if err != nil {
			return nil, err
		}
		return marshalResult(idx), nil
	case SubEnvelope:
		var p envelopePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		idx, err := mutation.CreateEnvelope(r, p.Envelope)
		if err != nil {
			return nil, err
		}
		return marshalResult(idx), nil
	case SubGroup:
		var p groupPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		idx, err := mutation.CreateGroup(r, p.Params.toParams())
		if err != nil {
			return nil, err
		}
		return marshalResult(idx), nil
	case SubLayer:
		var p layerPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		idx, err := mutation.CreateLayer(r, p.GroupIndex, p.Kind, p.Name, p.Width, p.Height)
		if err != nil {
			return nil, err
		}
		return marshalResult(idx), nil
	case SubQuad:
		var p quadPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		idx, err := mutation.CreateQuad(r, p.GroupIndex, p.LayerIndex, p.Quad)
		if err != nil {
			return nil, err
		}
		return marshalResult(idx), nil
	default:
		return nil, apierrors.New(apierrors.KindInvalidField, "sub does not support create: "+string(req.Sub))
	}
}

func (p groupParamsPayload) toParams() mutation.GroupParams {
	return mutation.GroupParams{
		Name: p.Name, OffsetX: p.OffsetX, OffsetY: p.OffsetY,
		ParallaxX: p.ParallaxX, ParallaxY: p.ParallaxY,
		Clipping: p.Clipping, ClipX: p.ClipX, ClipY: p.ClipY, ClipW: p.ClipW, ClipH: p.ClipH,
	}
}

func (d *Dispatcher) runEdit(ctx context.Context, r *room.Room, req Request) (json.RawMessage, error) {
	if req.Sub == SubAutomapper {
		// ApplyAutomapper manages the room writer itself so it can
		// release it across the external rules engine invocation.
		var p automapperPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if !p.Apply {
			return nil, apierrors.New(apierrors.KindInvalidField, "edit(automapper) only supports apply")
		}
		if err := mutation.ApplyAutomapper(ctx, d.Runner, r, p.GroupIndex, p.LayerIndex, p.Seed); err != nil {
			return nil, err
		}
		return marshalResult(struct{}{}), nil
	}

	r.Lock()
	defer r.Unlock()
	switch req.Sub {
	case SubConfig:
		var edit mutation.ConfigEdit
		if err := decodePayload(req.Payload, &edit); err != nil {
			return nil, err
		}
		if err := mutation.EditConfig(r, edit); err != nil {
			return nil, err
		}
		return marshalResult(struct{}{}), nil
	case SubInfo:
		var edit mutation.InfoEdit
		if err := decodePayload(req.Payload, &edit); err != nil {
			return nil, err
		}
		if err := mutation.EditInfo(r, edit); err != nil {
			return nil, err
		}
		return marshalResult(struct{}{}), nil
	case SubEnvelope:
		var p envelopePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Index == nil {
			return nil, apierrors.InvalidField("index", "required")
		}
		if err := mutation.EditEnvelope(r, *p.Index, p.Envelope); err != nil {
			return nil, err
		}
		return marshalResult(struct{}{}), nil
	case SubGroup:
		var p struct {
			Index *int               `json:"index"`
			Edit  mutation.GroupEdit `json:"edit"`
		}
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Index == nil {
			return nil, apierrors.InvalidField("index", "required")
		}
		if err := mutation.EditGroup(r, *p.Index, p.Edit); err != nil {
			return nil, err
		}
		return marshalResult(struct{}{}), nil
	case SubLayer:
		var p struct {
			GroupIndex int                `json:"group_index"`
			Index      *int               `json:"index"`
			Edit       mutation.LayerEdit `json:"edit"`
		}
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Index == nil {
			return nil, apierrors.InvalidField("index", "required")
		}
		if err := mutation.EditLayer(r, p.GroupIndex, *p.Index, p.Edit); err != nil {
			return nil, err
		}
		return marshalResult(struct{}{}), nil
	case SubTiles:
		var p tilesPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if err := mutation.EditTiles(r, p.GroupIndex, p.LayerIndex, p.X, p.Y, p.W, p.H, p.PatchBase64); err != nil {
			return nil, err
		}
		return marshalResult(struct{}{}), nil
	case SubQuad:
		var p quadPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Index == nil {
			return nil, apierrors.InvalidField("index", "required")
		}
		if err := mutation.EditQuad(r, p.GroupIndex, p.LayerIndex, *p.Index, p.Quad); err != nil {
			return nil, err
		}
		return marshalResult(struct{}{}), nil
	default:
		return nil, apierrors.New(apierrors.KindInvalidField, "sub does not support edit: "+string(req.Sub))
	}
}

func (d *Dispatcher) runDelete(r *room.Room, req Request) (json.RawMessage, error) {
	switch req.Sub {
	case SubImage:
		var p imagePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Index == nil {
			return nil, apierrors.InvalidField("index", "required")
		}
		if err := mutation.DeleteImage(r, *p.Index); err != nil {
			return nil, err
		}
		return marshalResult(struct{}{}), nil
	case SubEnvelope:
		var p envelopePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Index == nil {
			return nil, apierrors.InvalidField("index", "required")
		}
		if err := mutation.DeleteEnvelope(r, *p.Index); err != nil {
			return nil, err
		}
		return marshalResult(struct{}{}), nil
	case SubGroup:
		var p groupPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Index == nil {
			return nil, apierrors.InvalidField("index", "required")
		}
		if err := mutation.DeleteGroup(r, *p.Index); err != nil {
			return nil, err
		}
		return marshalResult(struct{}{}), nil
	case SubLayer:
		var p layerPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Index == nil {
			return nil, apierrors.InvalidField("index", "required")
		}
		if err := mutation.DeleteLayer(r, p.GroupIndex, *p.Index); err != nil {
			return nil, err
		}
		return marshalResult(struct{}{}), nil
	case SubQuad:
		var p quadPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Index == nil {
			return nil, apierrors.InvalidField("index", "required")
		}
		if err := mutation.DeleteQuad(r, p.GroupIndex, p.LayerIndex, *p.Index); err != nil {
			return nil, err
		}
		return marshalResult(struct{}{}), nil
	case SubAutomapper:
		var p automapperPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if err := mutation.DeleteAutomapper(r, p.Name); err != nil {
			return nil, err
		}
		return marshalResult(struct{}{}), nil
	default:
		return nil, apierrors.New(apierrors.KindInvalidField, "sub does not support delete: "+string(req.Sub))
	}
}

func (d *Dispatcher) runMove(r *room.Room, req Request) (json.RawMessage, error) {
	var p MovePayload
	if err := decodePayload(req.Payload, &p); err != nil {
		return nil, err
	}
	var err error
	switch req.Sub {
	case SubImage:
		err = mutation.MoveImage(r, p.Index, p.TargetIndex)
	case SubEnvelope:
		err = mutation.MoveEnvelope(r, p.Index, p.TargetIndex)
	case SubGroup:
		err = mutation.MoveGroup(r, p.Index, p.TargetIndex)
	case SubLayer:
		err = mutation.MoveLayer(r, p.GroupIndex, p.Index, p.TargetGroupIndex, p.TargetIndex)
	case SubQuad:
		err = mutation.MoveQuad(r, p.GroupIndex, p.LayerIndex, p.Index, p.TargetIndex)
	default:
		return nil, apierrors.New(apierrors.KindInvalidField, "sub does not support move: "+string(req.Sub))
	}
	if err != nil {
		return nil, err
	}
	return marshalResult(struct{}{}), nil
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apierrors.InvalidField("payload", "could not decode request payload: "+err.Error())
	}
	return nil
}
