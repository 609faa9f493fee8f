package room

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/mapmodel"
)

func writeBlankRoom(t *testing.T, root, name string, w, h uint16) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := mapmodel.JSONCodec{}.Encode(mapmodel.Blank(w, h))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, mapFileName), data, 0o644))
}

func TestScanDirectoriesFindsDirectoryLayoutRooms(t *testing.T) {
	root := t.TempDir()
	writeBlankRoom(t, root, "alpha", 10, 10)
	writeBlankRoom(t, root, "beta", 20, 20)

	reg := NewRegistry(nil, 4, 0)
	require.NoError(t, reg.ScanDirectories(context.Background(), []string{root}))

	assert.ElementsMatch(t, []string{"alpha", "beta"}, reg.List())
}

func TestScanDirectoriesFindsFlatLayoutRooms(t *testing.T) {
	root := t.TempDir()
	data, err := mapmodel.JSONCodec{}.Encode(mapmodel.Blank(10, 10))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "gamma.map"), data, 0o644))

	reg := NewRegistry(nil, 4, 0)
	require.NoError(t, reg.ScanDirectories(context.Background(), []string{root}))

	r, ok := reg.Get("gamma")
	require.True(t, ok)
	assert.Equal(t, LayoutSingleFile, r.layout)
}

func TestScanDirectoriesSkipsNonRoomEntries(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty-dir"), 0o755))

	reg := NewRegistry(nil, 4, 0)
	require.NoError(t, reg.ScanDirectories(context.Background(), []string{root}))
	assert.Empty(t, reg.List())
}

func TestCreateBlankRoomEnforcesNameGrammarAndCap(t *testing.T) {
	root := t.TempDir()
	reg := NewRegistry(nil, 4, 1)

	r, err := reg.Create(root, "alpha", Creation{Mode: CreationBlank, Width: 20, Height: 20})
	require.NoError(t, err)
	assert.Equal(t, "alpha", r.Name())

	_, err = reg.Create(root, "beta", Creation{Mode: CreationBlank, Width: 20, Height: 20})
	require.Error(t, err)
	assert.Equal(t, apierrors.KindMaxMaps, apierrors.AsError(err).Kind)

	reg2 := NewRegistry(nil, 4, 0)
	_, err = reg2.Create(root, "../escape", Creation{Mode: CreationBlank, Width: 20, Height: 20})
	require.Error(t, err)
	assert.Equal(t, apierrors.KindInvalidMapName, apierrors.AsError(err).Kind)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	root := t.TempDir()
	reg := NewRegistry(nil, 4, 0)
	_, err := reg.Create(root, "alpha", Creation{Mode: CreationBlank, Width: 20, Height: 20})
	require.NoError(t, err)

	_, err = reg.Create(root, "alpha", Creation{Mode: CreationBlank, Width: 20, Height: 20})
	require.Error(t, err)
	assert.Equal(t, apierrors.KindMapNameTaken, apierrors.AsError(err).Kind)
}

func TestCreateCloneCopiesSourceMap(t *testing.T) {
	root := t.TempDir()
	reg := NewRegistry(nil, 4, 0)
	src, err := reg.Create(root, "alpha", Creation{Mode: CreationBlank, Width: 30, Height: 40})
	require.NoError(t, err)
	srcMap, err := src.Map()
	require.NoError(t, err)

	clone, err := reg.Create(root, "beta", Creation{Mode: CreationClone, SourceName: "alpha"})
	require.NoError(t, err)
	cloneMap, err := clone.Map()
	require.NoError(t, err)

	assert.Equal(t, srcMap.Groups[0].Layers[0].Width, cloneMap.Groups[0].Layers[0].Width)
	cloneMap.Groups[0].Layers[0].Name = "mutated"
	assert.NotEqual(t, srcMap.Groups[0].Layers[0].Name, cloneMap.Groups[0].Layers[0].Name)
}

func TestDeleteRemovesFromRegistryAndDisk(t *testing.T) {
	root := t.TempDir()
	reg := NewRegistry(nil, 4, 0)
	_, err := reg.Create(root, "alpha", Creation{Mode: CreationBlank, Width: 20, Height: 20})
	require.NoError(t, err)

	require.NoError(t, reg.Delete("alpha"))
	_, ok := reg.Get("alpha")
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(root, "alpha"))
	assert.True(t, os.IsNotExist(err))
}
