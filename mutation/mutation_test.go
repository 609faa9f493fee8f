package mutation

import (
	"encoding/base64"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/room"
)

func newTestRoom(t *testing.T, w, h uint16) *room.Room {
	t.Helper()
	dir := t.TempDir()
	r := room.New(room.Params{
		Name:    "test",
		Layout:  room.LayoutDirectory,
		MapPath: filepath.Join(dir, "map.map"),
	})
	r.SetMap(mapmodel.Blank(w, h))
	return r
}

func kindOf(t *testing.T, err error) apierrors.Kind {
	t.Helper()
	require.Error(t, err)
	return apierrors.AsError(err).Kind
}

func TestEditInfoPartialUpdate(t *testing.T) {
	r := newTestRoom(t, 16, 16)
	author := "alice"
	require.NoError(t, EditInfo(r, InfoEdit{Author: &author}))

	info, err := GetInfo(r)
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Author)
	assert.Equal(t, "", info.Version)
}

func TestCreateImageThenGetRoundTrips(t *testing.T) {
	r := newTestRoom(t, 16, 16)
	png := smallestPNG(t)

	idx, err := CreateEmbeddedImage(r, "foo", png)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	got, err := GetImage(r, idx)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestDeleteImageInUseRejected(t *testing.T) {
	r := newTestRoom(t, 16, 16)
	png := smallestPNG(t)
	imgIdx, err := CreateEmbeddedImage(r, "tiles", png)
	require.NoError(t, err)

	layerIdx, err := CreateLayer(r, 0, mapmodel.LayerTiles, "deco", 16, 16)
	require.NoError(t, err)

	ref := imgIdx
	refPtr := &ref
	require.NoError(t, EditLayer(r, 0, layerIdx, LayerEdit{Image: &refPtr}))

	err = DeleteImage(r, imgIdx)
	assert.Equal(t, apierrors.KindImageInUse, kindOf(t, err))
}

func TestMoveImageRemapsReferences(t *testing.T) {
	r := newTestRoom(t, 16, 16)
	png := smallestPNG(t)
	_, err := CreateEmbeddedImage(r, "a", png)
	require.NoError(t, err)
	bIdx, err := CreateEmbeddedImage(r, "b", png)
	require.NoError(t, err)

	layerIdx, err := CreateLayer(r, 0, mapmodel.LayerTiles, "deco", 16, 16)
	require.NoError(t, err)
	ref := bIdx
	refPtr := &ref
	require.NoError(t, EditLayer(r, 0, layerIdx, LayerEdit{Image: &refPtr}))

	require.NoError(t, MoveImage(r, 1, 0))

	m, err := r.Map()
	require.NoError(t, err)
	require.NotNil(t, m.Groups[0].Layers[layerIdx].Image)
	assert.Equal(t, 0, *m.Groups[0].Layers[layerIdx].Image)
}

func TestCreateGameLayerForbidden(t *testing.T) {
	r := newTestRoom(t, 16, 16)
	_, err := CreateLayer(r, 0, mapmodel.LayerGame, "Game", 16, 16)
	assert.Equal(t, apierrors.KindCreateGameLayer, kindOf(t, err))
}

func TestCreatePhysicsLayerOutsidePhysicsGroupForbidden(t *testing.T) {
	r := newTestRoom(t, 16, 16)
	otherGroup, err := CreateGroup(r, GroupParams{Name: "deco"})
	require.NoError(t, err)
	_, err = CreateLayer(r, otherGroup, mapmodel.LayerFront, "Front", 16, 16)
	assert.Equal(t, apierrors.KindCreatePhysicsOutside, kindOf(t, err))
}

func TestCreateDuplicatePhysicsLayerForbidden(t *testing.T) {
	r := newTestRoom(t, 16, 16)
	_, err := CreateLayer(r, 0, mapmodel.LayerFront, "Front", 16, 16)
	require.NoError(t, err)
	_, err = CreateLayer(r, 0, mapmodel.LayerFront, "Front2", 16, 16)
	assert.Equal(t, apierrors.KindDuplicatePhysics, kindOf(t, err))
}

func TestDeleteGameLayerForbidden(t *testing.T) {
	r := newTestRoom(t, 16, 16)
	err := DeleteLayer(r, 0, 0)
	assert.Equal(t, apierrors.KindDeleteGameLayer, kindOf(t, err))
}

func TestEditPhysicsGroupForbidden(t *testing.T) {
	r := newTestRoom(t, 16, 16)
	name := "nope"
	err := EditGroup(r, 0, GroupEdit{Name: &name})
	assert.Equal(t, apierrors.KindEditPhysicsGroup, kindOf(t, err))
}

func TestDeletePhysicsGroupForbidden(t *testing.T) {
	r := newTestRoom(t, 16, 16)
	err := DeleteGroup(r, 0)
	assert.Equal(t, apierrors.KindDeletePhysicsGroup, kindOf(t, err))
}

func TestEditLayerResizesPhysicsGroupUniformly(t *testing.T) {
	r := newTestRoom(t, 16, 16)
	_, err := CreateLayer(r, 0, mapmodel.LayerFront, "Front", 16, 16)
	require.NoError(t, err)

	newW, newH := uint16(32), uint16(20)
	require.NoError(t, EditLayer(r, 0, 0, LayerEdit{Width: &newW, Height: &newH}))

	m, err := r.Map()
	require.NoError(t, err)
	for _, l := range m.Groups[0].Layers {
		assert.Equal(t, newW, l.Width)
		assert.Equal(t, newH, l.Height)
		assert.Len(t, l.Tiles, int(newW)*int(newH)*l.Kind.CellSize())
	}
}

func TestMoveLayerAcrossGroupsForbiddenForPhysics(t *testing.T) {
	r := newTestRoom(t, 16, 16)
	otherGroup, err := CreateGroup(r, GroupParams{Name: "deco"})
	require.NoError(t, err)
	err = MoveLayer(r, 0, 0, otherGroup, 0)
	assert.Equal(t, apierrors.KindPhysicsChangeGroup, kindOf(t, err))
}

func TestGetTilesEditTilesRoundTrip(t *testing.T) {
	r := newTestRoom(t, 4, 4)
	data, w, h, err := GetTiles(r, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(4), w)
	assert.Equal(t, uint16(4), h)
	assert.Len(t, data, 4*4*4)

	patch := make([]byte, 2*2*4)
	for i := range patch {
		patch[i] = 0xAB
	}
	encoded := base64.StdEncoding.EncodeToString(patch)
	require.NoError(t, EditTiles(r, 0, 0, 1, 1, 2, 2, encoded))

	data, _, _, err = GetTiles(r, 0, 0)
	require.NoError(t, err)
	// row 1, col 1 (the patch's top-left cell) should now be 0xAB.
	cellOff := (1*4 + 1) * 4
	assert.Equal(t, []byte{0xAB, 0xAB, 0xAB, 0xAB}, data[cellOff:cellOff+4])
}

func TestEditTilesRejectsOutOfBounds(t *testing.T) {
	r := newTestRoom(t, 4, 4)
	patch := base64.StdEncoding.EncodeToString(make([]byte, 4*4*4))
	err := EditTiles(r, 0, 0, 3, 3, 4, 4, patch)
	assert.Equal(t, apierrors.KindInvalidTiles, kindOf(t, err))
}

func TestMoveQuadUsesQuadIndexNotGroupIndex(t *testing.T) {
	r := newTestRoom(t, 16, 16)
	// An extra leading group pushes decoGroup's own index away from 1, so a
	// regression that removes-by-group-index instead of quad-index would
	// visibly target the wrong quad.
	_, err := CreateGroup(r, GroupParams{Name: "filler"})
	require.NoError(t, err)
	decoGroup, err := CreateGroup(r, GroupParams{Name: "deco"})
	require.NoError(t, err)
	layerIdx, err := CreateLayer(r, decoGroup, mapmodel.LayerQuads, "quads", 0, 0)
	require.NoError(t, err)

	q0idx, err := CreateQuad(r, decoGroup, layerIdx, mapmodel.Quad{})
	require.NoError(t, err)
	q1 := mapmodel.Quad{Points: [5]mapmodel.Point{{X: 1}}}
	q1idx, err := CreateQuad(r, decoGroup, layerIdx, q1)
	require.NoError(t, err)

	// Move the second quad (index 1, not the group's own index 1) to the front.
	require.NoError(t, MoveQuad(r, decoGroup, layerIdx, q1idx, 0))

	quads, err := GetQuads(r, decoGroup, layerIdx)
	require.NoError(t, err)
	require.Len(t, quads, 2)
	assert.Equal(t, int32(1), quads[0].Points[0].X)
	_ = q0idx
}

// smallestPNG returns a minimal valid 1x1 PNG's bytes, used purely as
// CreateEmbeddedImage input across tests.
func smallestPNG(t *testing.T) []byte {
	t.Helper()
	data, err := mapmodel.EncodeEmbeddedPNG(1, 1, []byte{0, 0, 0, 255})
	require.NoError(t, err)
	return data
}
