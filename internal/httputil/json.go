package httputil

import (
	"encoding/json"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/ddnet/maproom/apierrors"
)

// JSONResponse pairs a status code with a JSON-encodable body, the way a
// handler hands its result back up to a router-level writer.
type JSONResponse struct {
	Code int
	JSON interface{}
}

// WriteJSONResponse serializes r.JSON as the response body with r.Code as
// the status. A marshal failure degrades to a 500 with a terse body rather
// than panicking the handler.
func WriteJSONResponse(w http.ResponseWriter, r JSONResponse) {
	body, err := json.Marshal(r.JSON)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.Code)
	_, _ = w.Write(body)
}

// UnmarshalJSONRequest reads and decodes req's body into iface, consuming
// the body. Returns a populated JSONResponse describing the failure, or nil
// on success.
func UnmarshalJSONRequest(req *http.Request, iface interface{}) *JSONResponse {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return &JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: apierrors.Internal("failed to read request body").Body(),
		}
	}
	return UnmarshalJSON(body, iface)
}

// UnmarshalJSON decodes body into iface, rejecting non-UTF-8 payloads the
// way the wire protocol requires (frames are JSON text, never arbitrary
// bytes).
func UnmarshalJSON(body []byte, iface interface{}) *JSONResponse {
	if !utf8.Valid(body) {
		return &JSONResponse{
			Code: http.StatusBadRequest,
			JSON: apierrors.InvalidField("body", "request body is not valid UTF-8").Body(),
		}
	}
	if err := json.Unmarshal(body, iface); err != nil {
		return &JSONResponse{
			Code: http.StatusBadRequest,
			JSON: apierrors.InvalidField("body", "could not decode JSON: "+err.Error()).Body(),
		}
	}
	return nil
}

// ErrorResponse converts a typed API error into the JSONResponse the HTTP
// surface sends, mapping the error kind to a canonical status code per
// spec §6.
func ErrorResponse(err error) JSONResponse {
	apiErr := apierrors.AsError(err)
	return JSONResponse{Code: apiErr.StatusCode(), JSON: apiErr.Body()}
}
