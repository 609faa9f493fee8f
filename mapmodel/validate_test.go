package mapmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
	}{
		{"alpha", false},
		{"", true},
		{".hidden", true},
		{"sub/dir", true},
		{"back\\slash", true},
	}
	for _, c := range cases {
		err := ValidateName(c.name)
		if c.wantErr {
			assert.Error(t, err, c.name)
		} else {
			assert.NoError(t, err, c.name)
		}
	}
}

func TestMapCheckBlankMapPasses(t *testing.T) {
	m := Blank(50, 30)
	require.NoError(t, MapCheck(m))
}

func TestMapCheckRejectsMissingGameLayer(t *testing.T) {
	m := &Map{Groups: []Group{{Name: "empty"}}}
	err := MapCheck(m)
	require.Error(t, err)
}

func TestMapCheckRejectsDuplicatePhysicsLayer(t *testing.T) {
	m := Blank(10, 10)
	gi := m.PhysicsGroupIndex()
	m.Groups[gi].Layers = append(m.Groups[gi].Layers, Layer{
		Kind: LayerGame, Name: "Game2", Width: 10, Height: 10,
		Tiles: make([]byte, 10*10*LayerGame.CellSize()),
	})
	require.Error(t, MapCheck(m))
}

func TestMapCheckRejectsShapeMismatch(t *testing.T) {
	m := Blank(10, 10)
	gi := m.PhysicsGroupIndex()
	m.Groups[gi].Layers = append(m.Groups[gi].Layers, Layer{
		Kind: LayerTele, Name: "Tele", Width: 5, Height: 5,
		Tiles: make([]byte, 5*5*LayerTele.CellSize()),
	})
	require.Error(t, MapCheck(m))
}

func TestMapCheckResolvesImageAndEnvRefs(t *testing.T) {
	m := Blank(10, 10)
	m.Images = []Image{{Kind: ImageEmbedded, Name: "grass", Width: 16, Height: 16, Data: make([]byte, 16*16*4)}}
	m.Envelopes = []Envelope{{Kind: EnvelopeColor, Name: "fade"}}
	imgIdx := 0
	envIdx := 0
	tiles := Layer{Kind: LayerTiles, Name: "bg", Width: 10, Height: 10,
		Tiles: make([]byte, 10*10*LayerTiles.CellSize()), Image: &imgIdx, ColorEnv: &envIdx}
	m.Groups = append(m.Groups, Group{Name: "bg", Layers: []Layer{tiles}})
	require.NoError(t, MapCheck(m))
}

func TestMapCheckRejectsWrongEnvelopeType(t *testing.T) {
	m := Blank(10, 10)
	m.Envelopes = []Envelope{{Kind: EnvelopePosition, Name: "move"}}
	envIdx := 0
	tiles := Layer{Kind: LayerTiles, Name: "bg", Width: 10, Height: 10,
		Tiles: make([]byte, 10*10*LayerTiles.CellSize()), ColorEnv: &envIdx}
	m.Groups = append(m.Groups, Group{Name: "bg", Layers: []Layer{tiles}})
	err := MapCheck(m)
	require.Error(t, err)
}

func TestImageTilemapSuitable(t *testing.T) {
	assert.True(t, Image{Width: 1024, Height: 1024}.TilemapSuitable())
	assert.False(t, Image{Width: 1023, Height: 1024}.TilemapSuitable())
	assert.False(t, Image{Width: 0, Height: 0}.TilemapSuitable())
}
