package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/room"
)

func TestRegisterGeneratesUniqueTokens(t *testing.T) {
	reg := NewRegistry(0)
	s1, err := reg.Register("203.0.113.1")
	require.NoError(t, err)
	s2, err := reg.Register("203.0.113.2")
	require.NoError(t, err)

	assert.Len(t, s1.Token(), 20)
	assert.NotEqual(t, s1.Token(), s2.Token())
	assert.NotEqual(t, s1.ID(), s2.ID())
}

func TestRegisterEnforcesMaxUsers(t *testing.T) {
	reg := NewRegistry(1)
	_, err := reg.Register("203.0.113.1")
	require.NoError(t, err)

	_, err = reg.Register("203.0.113.2")
	require.Error(t, err)
	assert.Equal(t, apierrors.KindMaxUsers, apierrors.AsError(err).Kind)
}

func TestGetAndRemove(t *testing.T) {
	reg := NewRegistry(0)
	s, err := reg.Register("203.0.113.1")
	require.NoError(t, err)

	got, ok := reg.Get(s.Token())
	require.True(t, ok)
	assert.Same(t, s, got)

	reg.Remove(s.Token())
	_, ok = reg.Get(s.Token())
	assert.False(t, ok)
	assert.True(t, s.Closed())
}

func TestSendDropsOnFullChannelOrClosed(t *testing.T) {
	reg := NewRegistry(0)
	s, err := reg.Register("203.0.113.1")
	require.NoError(t, err)

	for i := 0; i < outboundBufferSize; i++ {
		require.True(t, s.Send([]byte("x")))
	}
	assert.False(t, s.Send([]byte("overflow")))

	s.Close()
	assert.False(t, s.Send([]byte("after close")))
}

func TestJoinAndLeaveTracksRoom(t *testing.T) {
	reg := NewRegistry(0)
	s, err := reg.Register("203.0.113.1")
	require.NoError(t, err)

	dir := t.TempDir()
	r := room.New(room.Params{
		Name:    "alpha",
		Layout:  room.LayoutDirectory,
		MapPath: filepath.Join(dir, "map.map"),
	})
	r.SetMap(mapmodel.Blank(10, 10))

	_, _, ok := s.JoinedRoom()
	assert.False(t, ok)

	s.Join("alpha", r)
	joined, name, ok := s.JoinedRoom()
	require.True(t, ok)
	assert.Equal(t, "alpha", name)
	assert.Same(t, r, joined)

	s.SetCursor(Cursor(`{"x":1,"y":2}`))
	assert.JSONEq(t, `{"x":1,"y":2}`, string(s.LastCursor()))

	s.Leave()
	_, _, ok = s.JoinedRoom()
	assert.False(t, ok)
	assert.Nil(t, s.LastCursor())
}
