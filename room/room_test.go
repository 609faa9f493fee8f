package room

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/internal/caching"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/roomconfig"
)

type fakeUser struct {
	id     string
	closed bool
}

func (u *fakeUser) ID() string   { return u.id }
func (u *fakeUser) Closed() bool { return u.closed }

func newTestRoom(t *testing.T) (*Room, string) {
	t.Helper()
	dir := t.TempDir()
	r := New(Params{
		Name:       "alpha",
		Layout:     LayoutDirectory,
		MapPath:    filepath.Join(dir, "map.map"),
		ConfigPath: filepath.Join(dir, "config.json"),
		Config:     roomconfig.Config{Name: "alpha", Public: true, Version: mapmodel.FormatDDNet06},
	})
	r.SetMap(mapmodel.Blank(16, 16))
	return r, dir
}

func TestRoomSaveThenLoadRoundTrips(t *testing.T) {
	r, dir := newTestRoom(t)
	require.NoError(t, r.Save(0))

	loaded := New(Params{
		Name:    "alpha",
		Layout:  LayoutDirectory,
		MapPath: filepath.Join(dir, "map.map"),
	})
	m, err := loaded.Map()
	require.NoError(t, err)
	assert.Equal(t, uint16(16), m.Groups[0].Layers[0].Width)
}

func TestRoomSaveRejectsOversized(t *testing.T) {
	r, _ := newTestRoom(t)
	err := r.Save(1)
	require.Error(t, err)
	apiErr := apierrors.AsError(err)
	assert.Equal(t, apierrors.KindMapTooBig, apiErr.Kind)
}

func TestRoomAddRemoveUserUnloadsToCache(t *testing.T) {
	cache, err := caching.NewMapCache(1024 * 1024)
	require.NoError(t, err)
	defer cache.Close()

	dir := t.TempDir()
	r := New(Params{
		Name:    "alpha",
		Layout:  LayoutDirectory,
		MapPath: filepath.Join(dir, "map.map"),
		Cache:   cache,
	})
	r.SetMap(mapmodel.Blank(8, 8))
	require.NoError(t, r.Save(0))

	u := &fakeUser{id: "u1"}
	r.AddUser(u)
	assert.Equal(t, 1, r.UserCount())

	r.RemoveUser("u1")
	assert.Equal(t, 0, r.UserCount())
	assert.Nil(t, r.loaded)

	m, err := r.Map()
	require.NoError(t, err)
	assert.Equal(t, uint16(8), m.Groups[0].Layers[0].Width)
}

func TestRoomRemoveClosedUsers(t *testing.T) {
	r, _ := newTestRoom(t)
	r.AddUser(&fakeUser{id: "live"})
	r.AddUser(&fakeUser{id: "dead", closed: true})
	r.RemoveClosedUsers()
	assert.Equal(t, 1, r.UserCount())
	assert.Len(t, r.Users(), 1)
}

func TestRoomDeleteDirectoryLayout(t *testing.T) {
	r, dir := newTestRoom(t)
	require.NoError(t, r.Save(0))
	require.NoError(t, r.SaveConfig())

	require.NoError(t, r.Delete())
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestRoomEtagChangesAfterInvalidate(t *testing.T) {
	r, _ := newTestRoom(t)
	first, err := r.Etag()
	require.NoError(t, err)
	require.NotEmpty(t, first)

	r.InvalidateEtag()
	r.SetMap(mapmodel.Blank(32, 32))
	second, err := r.Etag()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
