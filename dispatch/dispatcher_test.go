package dispatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/room"
	"github.com/ddnet/maproom/session"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *session.Registry) {
	t.Helper()
	sessions := session.NewRegistry(0)
	rooms := room.NewRegistry(nil, 1, 0)
	d := &Dispatcher{
		Rooms:       rooms,
		Sessions:    sessions,
		BaseDir:     t.TempDir(),
		MaxMapBytes: 0,
	}
	return d, sessions
}

func mustRegister(t *testing.T, sessions *session.Registry) *session.Session {
	t.Helper()
	s, err := sessions.Register("127.0.0.1")
	require.NoError(t, err)
	return s
}

func payloadOf(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// recvFrame reads one queued outbound frame off s, failing the test if
// none arrives promptly; used to observe broadcasts sent to a peer rather
// than the originator.
func recvFrame(t *testing.T, s *session.Session) Frame {
	t.Helper()
	select {
	case raw := <-s.Outbound():
		var f Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(time.Second):
		t.Fatal("expected a queued outbound frame, got none")
		return Frame{}
	}
}

func assertNoFrame(t *testing.T, s *session.Session) {
	t.Helper()
	select {
	case raw := <-s.Outbound():
		t.Fatalf("expected no outbound frame, got %s", raw)
	default:
	}
}

func createBlankMap(t *testing.T, d *Dispatcher, s *session.Session, name string) {
	t.Helper()
	req := Request{
		Op:   OpCreateMap,
		Name: name,
		Payload: payloadOf(t, CreateMapPayload{
			Mode: CreateMapBlank, Width: 16, Height: 16,
		}),
	}
	result := d.Dispatch(context.Background(), s, req)
	require.True(t, result.Response.OK, "%+v", result.Response.Error)
}

func TestJoinThenLeaveBroadcastsUserCount(t *testing.T) {
	d, sessions := newTestDispatcher(t)
	owner := mustRegister(t, sessions)
	createBlankMap(t, d, owner, "town")

	s1 := mustRegister(t, sessions)
	result := d.Dispatch(context.Background(), s1, Request{Op: OpJoin, Name: "town"})
	require.True(t, result.Response.OK)

	s2 := mustRegister(t, sessions)
	result = d.Dispatch(context.Background(), s2, Request{Op: OpJoin, Name: "town"})
	require.True(t, result.Response.OK)

	frame := recvFrame(t, s1)
	assert.Equal(t, FrameBroadcast, frame.Kind)
	var b Broadcast
	require.NoError(t, json.Unmarshal(frame.Content, &b))
	assert.Equal(t, BroadcastUsers, b.Kind)
	assert.Equal(t, 2, b.UserCount)

	result = d.Dispatch(context.Background(), s2, Request{Op: OpLeave})
	require.True(t, result.Response.OK)
	frame = recvFrame(t, s1)
	require.NoError(t, json.Unmarshal(frame.Content, &b))
	assert.Equal(t, BroadcastUsers, b.Kind)
	assert.Equal(t, 1, b.UserCount)
}

func TestJoinRejectsAlreadyJoinedSession(t *testing.T) {
	d, sessions := newTestDispatcher(t)
	owner := mustRegister(t, sessions)
	createBlankMap(t, d, owner, "town")
	createBlankMap(t, d, owner, "other")

	s := mustRegister(t, sessions)
	require.True(t, d.Dispatch(context.Background(), s, Request{Op: OpJoin, Name: "town"}).Response.OK)

	result := d.Dispatch(context.Background(), s, Request{Op: OpJoin, Name: "other"})
	require.False(t, result.Response.OK)
	assert.Equal(t, apierrors.KindAlreadyJoined, result.Response.Error.Kind)
}

func TestGetMapRequiresAuthorizationOncePasswordIsSet(t *testing.T) {
	d, sessions := newTestDispatcher(t)
	owner := mustRegister(t, sessions)
	createBlankMap(t, d, owner, "secret")

	require.True(t, d.Dispatch(context.Background(), owner, Request{Op: OpJoin, Name: "secret"}).Response.OK)

	password := "p"
	editCfg := d.Dispatch(context.Background(), owner, Request{
		Op: OpEdit, Sub: SubConfig,
		Payload: payloadOf(t, struct{ Password *string }{&password}),
	})
	require.True(t, editCfg.Response.OK, "%+v", editCfg.Response.Error)

	outsider := mustRegister(t, sessions)
	result := d.Dispatch(context.Background(), outsider, Request{Op: OpGetMap, Name: "secret"})
	require.False(t, result.Response.OK)
	assert.Equal(t, apierrors.KindUnauthorized, result.Response.Error.Kind)

	result = d.Dispatch(context.Background(), outsider, Request{Op: OpJoin, Name: "secret", Password: "wrong"})
	require.False(t, result.Response.OK)
	assert.Equal(t, apierrors.KindBadPassword, result.Response.Error.Kind)

	result = d.Dispatch(context.Background(), outsider, Request{Op: OpJoin, Name: "secret", Password: "p"})
	require.True(t, result.Response.OK)

	result = d.Dispatch(context.Background(), outsider, Request{Op: OpGetMap, Name: "secret"})
	require.True(t, result.Response.OK)
}

func TestCreateMapBroadcastsToLobbyNotOriginator(t *testing.T) {
	d, sessions := newTestDispatcher(t)
	bystander := mustRegister(t, sessions)
	owner := mustRegister(t, sessions)

	createBlankMap(t, d, owner, "fresh")

	frame := recvFrame(t, bystander)
	var b Broadcast
	require.NoError(t, json.Unmarshal(frame.Content, &b))
	assert.Equal(t, BroadcastMapCreated, b.Kind)
	assert.Equal(t, "fresh", b.Room)

	assertNoFrame(t, owner)
}

func TestDeleteMapBroadcastsToLobby(t *testing.T) {
	d, sessions := newTestDispatcher(t)
	owner := mustRegister(t, sessions)
	createBlankMap(t, d, owner, "doomed")

	bystander := mustRegister(t, sessions)
	result := d.Dispatch(context.Background(), owner, Request{Op: OpDeleteMap, Name: "doomed"})
	require.True(t, result.Response.OK, "%+v", result.Response.Error)

	frame := recvFrame(t, bystander)
	var b Broadcast
	require.NoError(t, json.Unmarshal(frame.Content, &b))
	assert.Equal(t, BroadcastMapDeleted, b.Kind)
}

func TestCreateGroupRelaysVerbatimRequestToOtherRoomSessions(t *testing.T) {
	d, sessions := newTestDispatcher(t)
	owner := mustRegister(t, sessions)
	createBlankMap(t, d, owner, "town")
	require.True(t, d.Dispatch(context.Background(), owner, Request{Op: OpJoin, Name: "town"}).Response.OK)

	peer := mustRegister(t, sessions)
	require.True(t, d.Dispatch(context.Background(), peer, Request{Op: OpJoin, Name: "town"}).Response.OK)
	recvFrame(t, owner) // drain the join user-count broadcast

	req := Request{
		Op: OpCreate, Sub: SubGroup,
		Payload: payloadOf(t, groupPayload{Params: groupParamsPayload{Name: "deco"}}),
	}
	result := d.Dispatch(context.Background(), peer, req)
	require.True(t, result.Response.OK, "%+v", result.Response.Error)

	frame := recvFrame(t, owner)
	var b Broadcast
	require.NoError(t, json.Unmarshal(frame.Content, &b))
	assert.Equal(t, BroadcastRelay, b.Kind)
	require.NotNil(t, b.Request)
	assert.Equal(t, OpCreate, b.Request.Op)
	assert.Equal(t, SubGroup, b.Request.Sub)

	assertNoFrame(t, peer)
}

func TestGetCreateDeleteImageRoundTrip(t *testing.T) {
	d, sessions := newTestDispatcher(t)
	owner := mustRegister(t, sessions)
	createBlankMap(t, d, owner, "town")
	require.True(t, d.Dispatch(context.Background(), owner, Request{Op: OpJoin, Name: "town"}).Response.OK)

	create := d.Dispatch(context.Background(), owner, Request{
		Op: OpCreate, Sub: SubImage,
		Payload: payloadOf(t, imagePayload{Kind: mapmodel.ImageExternal, Name: "grass_main"}),
	})
	require.True(t, create.Response.OK, "%+v", create.Response.Error)
	var idx int
	require.NoError(t, json.Unmarshal(create.Response.Result, &idx))

	zero := 0
	get := d.Dispatch(context.Background(), owner, Request{
		Op: OpGet, Sub: SubImage,
		Payload: payloadOf(t, imagePayload{Index: &zero}),
	})
	require.True(t, get.Response.OK, "%+v", get.Response.Error)

	del := d.Dispatch(context.Background(), owner, Request{
		Op: OpDelete, Sub: SubImage,
		Payload: payloadOf(t, imagePayload{Index: &idx}),
	})
	require.True(t, del.Response.OK, "%+v", del.Response.Error)
}

func TestCursorNeverBroadcasts(t *testing.T) {
	d, sessions := newTestDispatcher(t)
	owner := mustRegister(t, sessions)
	createBlankMap(t, d, owner, "town")
	require.True(t, d.Dispatch(context.Background(), owner, Request{Op: OpJoin, Name: "town"}).Response.OK)

	peer := mustRegister(t, sessions)
	require.True(t, d.Dispatch(context.Background(), peer, Request{Op: OpJoin, Name: "town"}).Response.OK)
	recvFrame(t, owner) // drain the join user-count broadcast

	result := d.Dispatch(context.Background(), peer, Request{
		Op: OpCursor, Payload: payloadOf(t, CursorPayload{Cursor: payloadOf(t, map[string]int{"x": 1})}),
	})
	require.True(t, result.Response.OK)
	assert.Nil(t, result.Broadcast)
	assertNoFrame(t, owner)
}

func TestMutationOpsRequireJoinedRoom(t *testing.T) {
	d, sessions := newTestDispatcher(t)
	s := mustRegister(t, sessions)
	result := d.Dispatch(context.Background(), s, Request{Op: OpGet, Sub: SubConfig})
	require.False(t, result.Response.OK)
	assert.Equal(t, apierrors.KindNotJoined, result.Response.Error.Kind)
}

func TestDispatchRecoversPanicAndFlagsResult(t *testing.T) {
	d, _ := newTestDispatcher(t)
	result := d.Dispatch(context.Background(), nil, Request{Op: OpLeave})
	assert.True(t, result.Panicked)
	require.False(t, result.Response.OK)
	assert.Equal(t, apierrors.KindInternal, result.Response.Error.Kind)
}

func TestRecoverRoomDetectsInvalidMap(t *testing.T) {
	d, sessions := newTestDispatcher(t)
	owner := mustRegister(t, sessions)
	createBlankMap(t, d, owner, "town")
	r, ok := d.Rooms.Get("town")
	require.True(t, ok)

	assert.Nil(t, d.RecoverRoom(r))

	r.Lock()
	r.SetMap(&mapmodel.Map{})
	r.Unlock()

	b := d.RecoverRoom(r)
	require.NotNil(t, b)
	assert.Equal(t, BroadcastRelay, b.Kind)
}
