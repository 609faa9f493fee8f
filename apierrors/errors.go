// Package apierrors defines the typed error taxonomy shared by the
// Mutation Engine, the Request Dispatcher, and both transports (websocket
// and HTTP). Every operation returns one of these instead of a bare error
// so the dispatcher never has to guess a status code or wire message.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error for status-code mapping and wire serialization.
// These are the kinds enumerated in spec.md §7; the string values are the
// stable wire identifiers clients switch on.
type Kind string

const (
	KindNotFoundMap         Kind = "map_not_found"
	KindNotFoundImage       Kind = "image_not_found"
	KindNotFoundEnvelope    Kind = "envelope_not_found"
	KindNotFoundGroup       Kind = "group_not_found"
	KindNotFoundLayer       Kind = "layer_not_found"
	KindNotFoundQuad        Kind = "quad_not_found"
	KindNotFoundAutomapper  Kind = "automapper_not_found"
	KindInvalidMapName      Kind = "invalid_map_name"
	KindInvalidFileName     Kind = "invalid_file_name"
	KindInvalidImage        Kind = "invalid_image"
	KindInvalidTiles        Kind = "invalid_tiles"
	KindInvalidClip         Kind = "invalid_clip"
	KindInvalidField        Kind = "invalid_field"
	KindFieldTooLong        Kind = "field_too_long"
	KindMaxMaps             Kind = "max_maps"
	KindMaxUsers            Kind = "max_users"
	KindMaxImages           Kind = "max_images"
	KindMaxEnvelopes        Kind = "max_envelopes"
	KindMaxGroups           Kind = "max_groups"
	KindMaxLayers           Kind = "max_layers"
	KindMaxQuads            Kind = "max_quads"
	KindMaxEnvPoints        Kind = "max_env_points"
	KindWrongEnvelopeType   Kind = "wrong_envelope_type"
	KindWrongLayerType      Kind = "wrong_layer_type"
	KindImageNotTilemap     Kind = "image_not_tilemap_suitable"
	KindEditPhysicsGroup    Kind = "edit_physics_group"
	KindDeletePhysicsGroup  Kind = "delete_physics_group"
	KindDeleteGameLayer     Kind = "delete_game_layer"
	KindCreateGameLayer     Kind = "create_game_layer"
	KindCreatePhysicsOutside Kind = "create_physics_layer_outside_physics_group"
	KindDuplicatePhysics    Kind = "duplicate_physics_layer"
	KindPhysicsChangeGroup  Kind = "physics_layer_change_group"
	KindImageInUse          Kind = "image_in_use"
	KindEnvelopeInUse       Kind = "envelope_in_use"
	KindMapNameTaken        Kind = "map_name_taken"
	KindUnsupportedVersion  Kind = "unsupported_map_version"
	KindMapTooBig           Kind = "map_too_big"
	KindAlreadyJoined       Kind = "already_joined"
	KindNotJoined           Kind = "not_joined"
	KindBadPassword         Kind = "bad_password"
	KindUnauthorized        Kind = "unauthorized"
	KindMapCodec            Kind = "map_codec_error"
	KindAutomapperError     Kind = "automapper_error"
	KindRateLimited         Kind = "rate_limited"
	KindInternal            Kind = "internal"
)

// Error is the single typed error every Mutation Engine operation and
// dispatcher step returns. Cause, when set, is the wrapped external error
// (map codec failure, automapper stderr) and remains reachable via
// errors.Unwrap/errors.Cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a plain typed error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a typed error around an externally reported cause (map codec
// or automapper preprocessor), keeping the original error recoverable.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Internal(message string) *Error { return New(KindInternal, message) }

func InvalidField(field, reason string) *Error {
	return New(KindInvalidField, fmt.Sprintf("%s: %s", field, reason))
}

func FieldTooLong(field string, max int) *Error {
	return New(KindFieldTooLong, fmt.Sprintf("%s exceeds maximum length of %d", field, max))
}

// AsError recovers a *Error from any error value, synthesizing an Internal
// one for anything the engine didn't already classify. Handlers call this
// exactly once, at the transport boundary, so every response (websocket or
// HTTP) goes through the same mapping.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err.Error())
}

// StatusCode maps an error Kind to the canonical HTTP status per spec §6.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindNotFoundMap, KindNotFoundImage, KindNotFoundEnvelope, KindNotFoundGroup,
		KindNotFoundLayer, KindNotFoundQuad, KindNotFoundAutomapper:
		return http.StatusNotFound
	case KindUnauthorized, KindBadPassword:
		return http.StatusUnauthorized
	case KindEditPhysicsGroup, KindDeletePhysicsGroup, KindDeleteGameLayer, KindCreateGameLayer,
		KindCreatePhysicsOutside, KindDuplicatePhysics, KindPhysicsChangeGroup,
		KindImageInUse, KindEnvelopeInUse, KindMapNameTaken, KindAlreadyJoined, KindNotJoined:
		return http.StatusForbidden
	case KindInternal, KindMapCodec:
		return http.StatusInternalServerError
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

// Body is the wire representation sent to clients, over both transports.
type ErrorBody struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Body() ErrorBody {
	return ErrorBody{Kind: e.Kind, Message: e.Message}
}
