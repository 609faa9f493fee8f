// Package dispatch implements the request dispatcher: the wire frame
// shapes, the per-request processing pipeline (resolve session, resolve
// target map, authorize, invoke the mutation engine, reply, broadcast),
// and the broadcast policy. Both transports (websocket and HTTP) funnel
// every request through the same Dispatcher so the processing order and
// broadcast fan-out are identical regardless of how a client is
// connected.
package dispatch

import (
	"encoding/json"

	"github.com/ddnet/maproom/apierrors"
)

// FrameKind tags a Frame's Content as a request, response, or broadcast.
type FrameKind string

const (
	FrameRequest   FrameKind = "request"
	FrameResponse  FrameKind = "response"
	FrameBroadcast FrameKind = "broadcast"
)

// Frame is the single shape every websocket text frame (and every HTTP
// POST /http body) carries.
type Frame struct {
	Timestamp uint64          `json:"timestamp"`
	ID        *uint32         `json:"id,omitempty"`
	Kind      FrameKind       `json:"kind"`
	Content   json.RawMessage `json:"content"`
}

// Op is the stable, wire-level request discriminator.
type Op string

const (
	OpJoin       Op = "join"
	OpLeave      Op = "leave"
	OpListMaps   Op = "list_maps"
	OpGetMap     Op = "get_map"
	OpCreateMap  Op = "create_map"
	OpDeleteMap  Op = "delete_map"
	OpSave       Op = "save"
	OpCursor     Op = "cursor"
	OpGet        Op = "get"
	OpCreate     Op = "create"
	OpEdit       Op = "edit"
	OpDelete     Op = "delete"
	OpMove       Op = "move"
)

// Sub selects which mutation engine catalogue entry a Get/Create/Edit/
// Delete/Move request targets.
type Sub string

const (
	SubConfig     Sub = "config"
	SubInfo       Sub = "info"
	SubImage      Sub = "image"
	SubEnvelope   Sub = "envelope"
	SubGroup      Sub = "group"
	SubLayer      Sub = "layer"
	SubTiles      Sub = "tiles"
	SubQuad       Sub = "quad"
	SubAutomapper Sub = "automapper"
)

// Request is the single envelope every inbound Frame with Kind ==
// FrameRequest carries. Name selects the target map where the operation
// carries one explicitly; otherwise the session's currently joined room
// is used. Payload is the op/sub-specific body, decoded by the matching
// handler.
type Request struct {
	Op       Op              `json:"op"`
	Name     string          `json:"name,omitempty"`
	Password string          `json:"password,omitempty"`
	Sub      Sub             `json:"sub,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Response is the single reply envelope, correlated with its Request's
// frame id.
type Response struct {
	OK     bool                 `json:"ok"`
	Result json.RawMessage      `json:"result,omitempty"`
	Error  *apierrors.ErrorBody `json:"error,omitempty"`
}

// BroadcastKind distinguishes the handful of synthesized broadcast events
// from a verbatim request relay.
type BroadcastKind string

const (
	BroadcastUsers      BroadcastKind = "users"
	BroadcastMapCreated BroadcastKind = "map_created"
	BroadcastMapDeleted BroadcastKind = "map_deleted"
	BroadcastSaved      BroadcastKind = "saved"
	BroadcastRelay      BroadcastKind = "relay"
)

// Broadcast is the Content of every Frame with Kind == FrameBroadcast.
type Broadcast struct {
	Kind      BroadcastKind `json:"kind"`
	Room      string        `json:"room,omitempty"`
	UserCount int           `json:"user_count,omitempty"`
	Request   *Request      `json:"request,omitempty"`
}
