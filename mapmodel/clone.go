package mapmodel

// Clone returns a deep copy, used both by the Clone map-creation mode and by
// the recently-unloaded map cache, which must never hand out a snapshot an
// editor could mutate through a shared slice header.
func (m *Map) Clone() *Map {
	out := &Map{
		Info: Info{
			Author:  m.Info.Author,
			Version: m.Info.Version,
			Credits: m.Info.Credits,
			License: m.Info.License,
		},
	}
	out.Info.Settings = append([]string(nil), m.Info.Settings...)

	out.Groups = make([]Group, len(m.Groups))
	for i, g := range m.Groups {
		out.Groups[i] = g.clone()
	}

	out.Envelopes = make([]Envelope, len(m.Envelopes))
	for i, e := range m.Envelopes {
		out.Envelopes[i] = e.clone()
	}

	out.Images = make([]Image, len(m.Images))
	for i, img := range m.Images {
		out.Images[i] = img.clone()
	}

	return out
}

// Clone returns a deep copy of one group, used by mutation operations that
// need to roll back a failed edit (e.g. a physics-group resize that fails
// the post-apply map check).
func (g Group) Clone() Group { return g.clone() }

func (g Group) clone() Group {
	out := g
	out.Layers = make([]Layer, len(g.Layers))
	for i, l := range g.Layers {
		out.Layers[i] = l.clone()
	}
	return out
}

func (l Layer) clone() Layer {
	out := l
	out.Tiles = append([]byte(nil), l.Tiles...)
	if l.Image != nil {
		v := *l.Image
		out.Image = &v
	}
	if l.ColorEnv != nil {
		v := *l.ColorEnv
		out.ColorEnv = &v
	}
	if l.QuadsImage != nil {
		v := *l.QuadsImage
		out.QuadsImage = &v
	}
	out.Quads = make([]Quad, len(l.Quads))
	for i, q := range l.Quads {
		out.Quads[i] = q.clone()
	}
	return out
}

func (q Quad) clone() Quad {
	out := q
	if q.PosEnv != nil {
		v := *q.PosEnv
		out.PosEnv = &v
	}
	if q.ColorEnv != nil {
		v := *q.ColorEnv
		out.ColorEnv = &v
	}
	return out
}

func (e Envelope) clone() Envelope {
	out := e
	out.Points = append([]EnvPoint(nil), e.Points...)
	return out
}

func (img Image) clone() Image {
	out := img
	out.Data = append([]byte(nil), img.Data...)
	return out
}

// BlankPhysicsGroup builds the physics group every new map is created with:
// a single Game layer of the given shape, filled with empty (air) tiles.
func BlankPhysicsGroup(width, height uint16) Group {
	return Group{
		Name: "Game",
		Layers: []Layer{
			{
				Kind:   LayerGame,
				Name:   "Game",
				Width:  width,
				Height: height,
				Tiles:  make([]byte, int(width)*int(height)*LayerGame.CellSize()),
			},
		},
	}
}

// Blank builds an empty map of the given shape: info defaults, one physics
// group containing a Game layer, no other groups/layers/envelopes/images
// (spec.md §4.3 "Blank" creation mode).
func Blank(width, height uint16) *Map {
	return &Map{
		Groups: []Group{BlankPhysicsGroup(width, height)},
	}
}
