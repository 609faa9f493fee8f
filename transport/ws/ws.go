// Package ws is the websocket transport: one goroutine pair per
// connection, a dedicated writer pump draining the session's outbound
// channel, and a reader loop that feeds every inbound frame through the
// shared dispatch.Dispatcher. Grounded on the upgrade/read-loop/write-pump
// shape a gorilla/websocket server takes, generalized from a single
// global room map to maproom's session+room registries.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/dispatch"
	"github.com/ddnet/maproom/internal/httputil"
	ilog "github.com/ddnet/maproom/internal/log"
	"github.com/ddnet/maproom/session"
)

const (
	writeWait = 10 * time.Second
	// pongWait/pingPeriod keep idle connections from being dropped by
	// intermediate proxies while still detecting a genuinely dead peer.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The editor frontend is served from an origin the map server itself
	// doesn't know in advance (static hosting, local dev ports); origin
	// enforcement is the rate limiter/reverse proxy's job, not this
	// upgrade's.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades every request it serves to a websocket connection and
// runs that connection's full session lifecycle.
type Handler struct {
	Dispatcher *dispatch.Dispatcher
	Sessions   *session.Registry
	RateLimits *httputil.RateLimits
	Log        *logrus.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.RateLimits != nil {
		if resp := h.RateLimits.Limit(r); resp != nil {
			httputil.WriteJSONResponse(w, *resp)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.Log != nil {
			h.Log.WithError(err).Debug("websocket upgrade failed")
		}
		return
	}

	s, err := h.Sessions.Register(r.RemoteAddr)
	if err != nil {
		h.rejectAndClose(conn, err)
		return
	}
	if h.Log != nil {
		h.Log.WithFields(logrus.Fields{"session": s.ID(), "remote_addr": r.RemoteAddr}).Info("session connected")
	}

	done := make(chan struct{})
	go h.writePump(conn, s, done)

	s.Send(frameBytes(dispatch.FrameResponse, nil, dispatch.Response{
		OK:     true,
		Result: marshalOrNull(dispatch.TokenResult{Token: s.Token()}),
	}))

	h.readLoop(r.Context(), conn, s)

	h.teardown(s)
	<-done
}

// rejectAndClose handles the capacity-exceeded path: the connecting client
// is informed with a MaxUsers error before the socket closes, with no
// session ever entering the registry.
func (h *Handler) rejectAndClose(conn *websocket.Conn, regErr error) {
	body := apierrors.AsError(regErr).Body()
	_ = conn.WriteMessage(websocket.TextMessage, frameBytes(dispatch.FrameResponse, nil, dispatch.Response{OK: false, Error: &body}))
	_ = conn.Close()
}

// writePump owns the connection's write side exclusively, the way
// gorilla/websocket requires (concurrent writes on one *Conn are not
// supported) — every outbound frame, whether a reply to this session's own
// request or a broadcast relayed from elsewhere, flows through the
// session's single outbound channel into here.
func (h *Handler) writePump(conn *websocket.Conn, s *session.Session, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-s.Outbound():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				_ = conn.Close()
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// readLoop decodes and dispatches every inbound text frame until the
// connection errors, closes, or a handler panic forces it down early.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, s *session.Session) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		// Binary frames are ignored outright; the wire protocol is JSON text only.
		if msgType != websocket.TextMessage {
			continue
		}

		var frame dispatch.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame.Kind != dispatch.FrameRequest {
			continue
		}
		var req dispatch.Request
		if err := json.Unmarshal(frame.Content, &req); err != nil {
			apiErr := apierrors.InvalidField("content", "could not decode request")
			body := apiErr.Body()
			s.Send(frameBytes(dispatch.FrameResponse, frame.ID, dispatch.Response{OK: false, Error: &body}))
			continue
		}

		result := h.Dispatcher.Dispatch(ctx, s, req)
		s.Send(frameBytes(dispatch.FrameResponse, frame.ID, result.Response))

		if result.Panicked {
			if h.Log != nil {
				h.Log.WithField("session", s.ID()).Error("dropping session after recovered panic")
			}
			ilog.ReportPanic(result.Response.Error, "", string(req.Op))
			return
		}
	}
}

// teardown unwinds a connection's session state once the read loop exits
// for any reason: leave the joined room (if any) so peers see a fresh
// user-count broadcast, re-check the room for a panic's after-effects, and
// finally discard the session from the registry.
func (h *Handler) teardown(s *session.Session) {
	if r, _, joined := s.JoinedRoom(); joined {
		h.Dispatcher.Dispatch(context.Background(), s, dispatch.Request{Op: dispatch.OpLeave})
		h.Dispatcher.RecoverRoom(r)
	}
	h.Sessions.Remove(s.Token())
	if h.Log != nil {
		h.Log.WithField("session", s.ID()).Info("session disconnected")
	}
}

func frameBytes(kind dispatch.FrameKind, id *uint32, content interface{}) []byte {
	raw, err := json.Marshal(content)
	if err != nil {
		raw = json.RawMessage("null")
	}
	frame := dispatch.Frame{
		Timestamp: uint64(time.Now().UnixMilli()),
		ID:        id,
		Kind:      kind,
		Content:   raw,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return nil
	}
	return data
}

func marshalOrNull(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
