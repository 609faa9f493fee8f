package mutation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/automapper"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/room"
)

func newTestRoomWithAutomapperDir(t *testing.T, w, h uint16) *room.Room {
	t.Helper()
	dir := t.TempDir()
	amDir := filepath.Join(dir, "automappers")
	require.NoError(t, os.MkdirAll(amDir, 0o755))
	r := room.New(room.Params{
		Name:          "test",
		Layout:        room.LayoutDirectory,
		MapPath:       filepath.Join(dir, "map.map"),
		AutomapperDir: amDir,
	})
	r.SetMap(mapmodel.Blank(w, h))
	return r
}

func TestPutAndListAutomapper(t *testing.T) {
	r := newTestRoomWithAutomapperDir(t, 16, 16)
	var rn automapper.Runner

	_, err := PutAutomapper(context.Background(), rn, r, "grass.rules", []byte("NewRun\n"))
	require.NoError(t, err)

	names, err := ListAutomappers(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"grass.rules"}, names)
}

func TestApplyAutomapperRejectsNonTilesLayer(t *testing.T) {
	r := newTestRoomWithAutomapperDir(t, 16, 16)
	var rn automapper.Runner
	err := ApplyAutomapper(context.Background(), rn, r, 0, 0, 0)
	assert.Equal(t, apierrors.KindWrongLayerType, kindOf(t, err))
}

func TestApplyAutomapperRejectsLayerWithoutImage(t *testing.T) {
	r := newTestRoomWithAutomapperDir(t, 16, 16)
	layerIdx, err := CreateLayer(r, 0, mapmodel.LayerTiles, "deco", 16, 16)
	require.NoError(t, err)

	var rn automapper.Runner
	err = ApplyAutomapper(context.Background(), rn, r, 0, layerIdx, 0)
	assert.Equal(t, apierrors.KindNotFoundAutomapper, kindOf(t, err))
}
