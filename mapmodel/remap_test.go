package mapmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClearOrShiftDeleted(t *testing.T) {
	newRef, ok := ClearOrShiftDeleted(2, 2)
	assert.False(t, ok)
	assert.Zero(t, newRef)

	newRef, ok = ClearOrShiftDeleted(5, 2)
	assert.True(t, ok)
	assert.Equal(t, 4, newRef)

	newRef, ok = ClearOrShiftDeleted(1, 2)
	assert.True(t, ok)
	assert.Equal(t, 1, newRef)
}

func TestRemapMoved(t *testing.T) {
	// Move 1 -> 3.
	assert.Equal(t, 3, RemapMoved(1, 1, 3))
	assert.Equal(t, 1, RemapMoved(2, 1, 3))
	assert.Equal(t, 2, RemapMoved(3, 1, 3))
	assert.Equal(t, 0, RemapMoved(0, 1, 3))
	assert.Equal(t, 4, RemapMoved(4, 1, 3))

	// Move 3 -> 1 (backward move).
	assert.Equal(t, 1, RemapMoved(3, 3, 1))
	assert.Equal(t, 2, RemapMoved(1, 3, 1))
	assert.Equal(t, 3, RemapMoved(2, 3, 1))
}

func TestRemapImageRefsDelete(t *testing.T) {
	m := Blank(10, 10)
	img0, img1 := 0, 1
	m.Images = []Image{{Name: "a"}, {Name: "b"}}
	m.Groups = append(m.Groups, Group{Layers: []Layer{
		{Kind: LayerTiles, Name: "l0", Image: &img0},
		{Kind: LayerTiles, Name: "l1", Image: &img1},
	}})

	RemapImageRefs(m, func(ref int) (int, bool) { return ClearOrShiftDeleted(ref, 0) })

	l := m.Groups[len(m.Groups)-1].Layers
	assert.Nil(t, l[0].Image)
	assert.Equal(t, 0, *l[1].Image)
}

func TestRemapEnvelopeRefsMove(t *testing.T) {
	m := Blank(10, 10)
	env2 := 2
	m.Envelopes = make([]Envelope, 4)
	quadsLayer := Layer{Kind: LayerQuads, Name: "q", Quads: []Quad{{PosEnv: &env2}}}
	m.Groups = append(m.Groups, Group{Layers: []Layer{quadsLayer}})

	RemapEnvelopeRefs(m, func(ref int) (int, bool) { return RemapMoved(ref, 0, 3), true })

	got := m.Groups[len(m.Groups)-1].Layers[0].Quads[0].PosEnv
	assert.Equal(t, 1, *got)
}
