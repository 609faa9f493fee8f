// Package http is the REST transport running parallel to the websocket
// verbs: GET/PUT/POST/DELETE under
// /maps/{map}/... covering maps, config, info, images, envelopes, groups,
// layers, tiles, quads, and automappers, authorized by the same bearer
// token a session picked up over its websocket connection. Routing follows
// the same gorilla/mux PathPrefix/Handler shape the rest of this codebase
// builds its HTTP surfaces with, narrowed to this service's own route table.
package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"

	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/dispatch"
	"github.com/ddnet/maproom/internal/httputil"
	"github.com/ddnet/maproom/session"
)

// Handler builds and serves the HTTP surface over a shared Dispatcher.
type Handler struct {
	Dispatcher   *dispatch.Dispatcher
	Sessions     *session.Registry
	RateLimits   *httputil.RateLimits
	Log          *logrus.Logger
	MaxBodyBytes int64
}

// Router builds the full gorilla/mux route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter().SkipClean(true)
	r.Use(h.rateLimitMiddleware)

	r.HandleFunc("/maps", h.listMaps).Methods(http.MethodGet)
	r.HandleFunc("/maps/{map}", h.createMap).Methods(http.MethodPost)
	r.HandleFunc("/maps/{map}", h.getMap).Methods(http.MethodGet)
	r.HandleFunc("/maps/{map}", h.deleteMap).Methods(http.MethodDelete)
	r.HandleFunc("/maps/{map}/save", h.plain(dispatch.OpSave)).Methods(http.MethodPost)

	r.HandleFunc("/maps/{map}/config", h.mutate(dispatch.OpGet, dispatch.SubConfig)).Methods(http.MethodGet)
	r.HandleFunc("/maps/{map}/config", h.mutate(dispatch.OpEdit, dispatch.SubConfig)).Methods(http.MethodPut)

	r.HandleFunc("/maps/{map}/info", h.mutate(dispatch.OpGet, dispatch.SubInfo)).Methods(http.MethodGet)
	r.HandleFunc("/maps/{map}/info", h.mutate(dispatch.OpEdit, dispatch.SubInfo)).Methods(http.MethodPut)

	r.HandleFunc("/maps/{map}/images", h.mutate(dispatch.OpGet, dispatch.SubImage)).Methods(http.MethodGet)
	r.HandleFunc("/maps/{map}/images", h.mutate(dispatch.OpCreate, dispatch.SubImage)).Methods(http.MethodPost)
	r.HandleFunc("/maps/{map}/images/{index}", h.mutate(dispatch.OpGet, dispatch.SubImage)).Methods(http.MethodGet)
	r.HandleFunc("/maps/{map}/images/{index}", h.mutate(dispatch.OpDelete, dispatch.SubImage)).Methods(http.MethodDelete)

	r.HandleFunc("/maps/{map}/envelopes", h.mutate(dispatch.OpCreate, dispatch.SubEnvelope)).Methods(http.MethodPost)
	r.HandleFunc("/maps/{map}/envelopes/{index}", h.mutate(dispatch.OpGet, dispatch.SubEnvelope)).Methods(http.MethodGet)
	r.HandleFunc("/maps/{map}/envelopes/{index}", h.mutate(dispatch.OpEdit, dispatch.SubEnvelope)).Methods(http.MethodPut)
	r.HandleFunc("/maps/{map}/envelopes/{index}", h.mutate(dispatch.OpDelete, dispatch.SubEnvelope)).Methods(http.MethodDelete)

	r.HandleFunc("/maps/{map}/groups", h.mutate(dispatch.OpCreate, dispatch.SubGroup)).Methods(http.MethodPost)
	r.HandleFunc("/maps/{map}/groups/{group}", h.mutate(dispatch.OpGet, dispatch.SubGroup)).Methods(http.MethodGet)
	r.HandleFunc("/maps/{map}/groups/{group}", h.mutate(dispatch.OpEdit, dispatch.SubGroup)).Methods(http.MethodPut)
	r.HandleFunc("/maps/{map}/groups/{group}", h.mutate(dispatch.OpDelete, dispatch.SubGroup)).Methods(http.MethodDelete)
	r.HandleFunc("/maps/{map}/groups/{group}/move", h.mutate(dispatch.OpMove, dispatch.SubGroup)).Methods(http.MethodPost)

	r.HandleFunc("/maps/{map}/groups/{group}/layers", h.mutate(dispatch.OpCreate, dispatch.SubLayer)).Methods(http.MethodPost)
	r.HandleFunc("/maps/{map}/groups/{group}/layers/{layer}", h.mutate(dispatch.OpGet, dispatch.SubLayer)).Methods(http.MethodGet)
	r.HandleFunc("/maps/{map}/groups/{group}/layers/{layer}", h.mutate(dispatch.OpEdit, dispatch.SubLayer)).Methods(http.MethodPut)
	r.HandleFunc("/maps/{map}/groups/{group}/layers/{layer}", h.mutate(dispatch.OpDelete, dispatch.SubLayer)).Methods(http.MethodDelete)
	r.HandleFunc("/maps/{map}/groups/{group}/layers/{layer}/move", h.mutate(dispatch.OpMove, dispatch.SubLayer)).Methods(http.MethodPost)
	r.HandleFunc("/maps/{map}/groups/{group}/layers/{layer}/tiles", h.mutate(dispatch.OpEdit, dispatch.SubTiles)).Methods(http.MethodPut)

	r.HandleFunc("/maps/{map}/groups/{group}/layers/{layer}/quads", h.mutate(dispatch.OpCreate, dispatch.SubQuad)).Methods(http.MethodPost)
	r.HandleFunc("/maps/{map}/groups/{group}/layers/{layer}/quads/{index}", h.mutate(dispatch.OpGet, dispatch.SubQuad)).Methods(http.MethodGet)
	r.HandleFunc("/maps/{map}/groups/{group}/layers/{layer}/quads/{index}", h.mutate(dispatch.OpEdit, dispatch.SubQuad)).Methods(http.MethodPut)
	r.HandleFunc("/maps/{map}/groups/{group}/layers/{layer}/quads/{index}", h.mutate(dispatch.OpDelete, dispatch.SubQuad)).Methods(http.MethodDelete)
	r.HandleFunc("/maps/{map}/groups/{group}/layers/{layer}/quads/{index}/move", h.mutate(dispatch.OpMove, dispatch.SubQuad)).Methods(http.MethodPost)

	r.HandleFunc("/maps/{map}/automappers", h.mutate(dispatch.OpGet, dispatch.SubAutomapper)).Methods(http.MethodGet)
	r.HandleFunc("/maps/{map}/automappers", h.mutate(dispatch.OpCreate, dispatch.SubAutomapper)).Methods(http.MethodPost)
	r.HandleFunc("/maps/{map}/automappers/{name}", h.mutate(dispatch.OpDelete, dispatch.SubAutomapper)).Methods(http.MethodDelete)
	r.HandleFunc("/maps/{map}/automappers/{name}/apply", h.mutate(dispatch.OpEdit, dispatch.SubAutomapper)).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONResponse(w, httputil.ErrorResponse(apierrors.New(apierrors.KindNotFoundMap, "no such route")))
	})
	return r
}

func (h *Handler) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.RateLimits != nil {
			if resp := h.RateLimits.Limit(r); resp != nil {
				httputil.WriteJSONResponse(w, *resp)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the bearer token from the Authorization header
// against the live session registry. Writes a 401 and returns ok=false on
// failure.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	token := bearerToken(r)
	if token == "" {
		httputil.WriteJSONResponse(w, httputil.ErrorResponse(apierrors.New(apierrors.KindUnauthorized, "missing bearer token")))
		return nil, false
	}
	s, ok := h.Sessions.Get(token)
	if !ok {
		httputil.WriteJSONResponse(w, httputil.ErrorResponse(apierrors.New(apierrors.KindUnauthorized, "unknown or expired session")))
		return nil, false
	}
	return s, true
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if h.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteJSONResponse(w, httputil.ErrorResponse(apierrors.New(apierrors.KindInvalidField, "body too large or unreadable")))
		return nil, false
	}
	if len(body) == 0 {
		return []byte("{}"), true
	}
	return body, true
}

// spliceVars folds {group}/{layer}/{index} path variables into the JSON
// body as group_index/layer_index/index, the fields the payload structs in
// dispatch/payloads_mutation.go already expect — so HTTP callers supply
// these as path segments while websocket callers supply them inline, with
// the same Sub handler parsing either shape identically.
func spliceVars(body []byte, vars map[string]string) []byte {
	out := body
	if v, ok := vars["group"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			if updated, err := sjson.SetBytes(out, "group_index", n); err == nil {
				out = updated
			}
		}
	}
	if v, ok := vars["layer"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			if updated, err := sjson.SetBytes(out, "layer_index", n); err == nil {
				out = updated
			}
		}
	}
	if v, ok := vars["index"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			if updated, err := sjson.SetBytes(out, "index", n); err == nil {
				out = updated
			}
		}
	}
	if v, ok := vars["name"]; ok {
		if updated, err := sjson.SetBytes(out, "name", v); err == nil {
			out = updated
		}
	}
	return out
}

// mutate handles every Get/Create/Edit/Delete/Move(sub) route: authorize,
// splice path vars into the body, and forward it verbatim as the
// dispatcher's Payload.
func (h *Handler) mutate(op dispatch.Op, sub dispatch.Sub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.authenticate(w, r)
		if !ok {
			return
		}
		body, ok := h.readBody(w, r)
		if !ok {
			return
		}
		vars := mux.Vars(r)
		body = spliceVars(body, vars)
		if op == dispatch.OpEdit && sub == dispatch.SubAutomapper {
			if updated, err := sjson.SetBytes(body, "apply", true); err == nil {
				body = updated
			}
		}
		req := dispatch.Request{Op: op, Sub: sub, Name: vars["map"], Payload: body}
		h.respond(w, r, s, req)
	}
}

// plain handles the no-sub, no-payload room ops (currently just Save).
func (h *Handler) plain(op dispatch.Op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.authenticate(w, r)
		if !ok {
			return
		}
		vars := mux.Vars(r)
		h.respond(w, r, s, dispatch.Request{Op: op, Name: vars["map"]})
	}
}

func (h *Handler) listMaps(w http.ResponseWriter, r *http.Request) {
	s, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	h.respond(w, r, s, dispatch.Request{Op: dispatch.OpListMaps})
}

func (h *Handler) getMap(w http.ResponseWriter, r *http.Request) {
	s, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	h.respond(w, r, s, dispatch.Request{Op: dispatch.OpGetMap, Name: mux.Vars(r)["map"]})
}

func (h *Handler) deleteMap(w http.ResponseWriter, r *http.Request) {
	s, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	h.respond(w, r, s, dispatch.Request{Op: dispatch.OpDeleteMap, Name: mux.Vars(r)["map"]})
}

func (h *Handler) createMap(w http.ResponseWriter, r *http.Request) {
	s, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.respond(w, r, s, dispatch.Request{Op: dispatch.OpCreateMap, Name: mux.Vars(r)["map"], Payload: body})
}

// respond runs req through the shared Dispatcher and writes its Response
// as the HTTP reply, mapping apierrors kinds to status codes the way
// httputil.ErrorResponse already does for the rest of this package.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, s *session.Session, req dispatch.Request) {
	result := h.Dispatcher.Dispatch(r.Context(), s, req)
	if result.Panicked {
		if h.Log != nil {
			h.Log.WithField("session", s.ID()).Error("recovered panic handling HTTP request")
		}
		if rm, _, joined := s.JoinedRoom(); joined {
			h.Dispatcher.RecoverRoom(rm)
		}
	}
	if !result.Response.OK {
		body := result.Response.Error
		if body == nil {
			body = &apierrors.ErrorBody{Kind: apierrors.KindInternal, Message: "unknown error"}
		}
		httputil.WriteJSONResponse(w, httputil.JSONResponse{
			Code: apierrors.New(body.Kind, body.Message).StatusCode(),
			JSON: body,
		})
		return
	}
	httputil.WriteJSONResponse(w, httputil.JSONResponse{Code: http.StatusOK, JSON: rawOrEmpty(result.Response.Result)})
}

func rawOrEmpty(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return struct{}{}
	}
	return raw
}
