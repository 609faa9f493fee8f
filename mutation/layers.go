package mutation

import (
	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/room"
)

// LayerSummary is the shallow list/get response for a layer: for tile-
// backed kinds, Tiles is replaced by a same-shape blank array (spec.md
// §4.3: "get (shallow for tilemap/physics — tiles replaced by a blank
// array of same shape)"); Quads layers return their quads in full, since
// there is no bulky buffer to elide.
type LayerSummary struct {
	Index         int
	Kind          mapmodel.LayerKind
	Name          string
	Width, Height uint16
	Tiles         []byte // blank (zeroed), same length as the real buffer
	Image         *int
	ColorEnv      *int
	ColorEnvOffset int32
	QuadsImage    *int
	Quads         []mapmodel.Quad
}

func summarizeLayer(i int, l mapmodel.Layer) LayerSummary {
	out := LayerSummary{
		Index: i, Kind: l.Kind, Name: l.Name,
		Width: l.Width, Height: l.Height,
		Image: l.Image, ColorEnv: l.ColorEnv, ColorEnvOffset: l.ColorEnvOffset,
		QuadsImage: l.QuadsImage,
	}
	if l.Kind == mapmodel.LayerQuads {
		out.Quads = append([]mapmodel.Quad(nil), l.Quads...)
	} else {
		out.Tiles = make([]byte, len(l.Tiles))
	}
	return out
}

// ListLayers returns every layer in groupIndex, shallow.
func ListLayers(r *room.Room, groupIndex int) ([]LayerSummary, error) {
	m, err := r.Map()
	if err != nil {
		return nil, err
	}
	if err := checkIndex(len(m.Groups), groupIndex, apierrors.KindNotFoundGroup, "group"); err != nil {
		return nil, err
	}
	layers := m.Groups[groupIndex].Layers
	out := make([]LayerSummary, len(layers))
	for i, l := range layers {
		out[i] = summarizeLayer(i, l)
	}
	return out, nil
}

// GetLayer returns one layer, shallow.
func GetLayer(r *room.Room, groupIndex, layerIndex int) (LayerSummary, error) {
	m, err := r.Map()
	if err != nil {
		return LayerSummary{}, err
	}
	l, err := resolveLayer(m, groupIndex, layerIndex)
	if err != nil {
		return LayerSummary{}, err
	}
	return summarizeLayer(layerIndex, *l), nil
}

func resolveLayer(m *mapmodel.Map, groupIndex, layerIndex int) (*mapmodel.Layer, error) {
	if err := checkIndex(len(m.Groups), groupIndex, apierrors.KindNotFoundGroup, "group"); err != nil {
		return nil, err
	}
	g := &m.Groups[groupIndex]
	if err := checkIndex(len(g.Layers), layerIndex, apierrors.KindNotFoundLayer, "layer"); err != nil {
		return nil, err
	}
	return &g.Layers[layerIndex], nil
}

// CreateLayer appends a new layer of kind to groupIndex. Game can never be
// created (it exists exactly once, from map creation); any other physics
// kind must target the physics group and be unique there (spec.md §4.3).
// Non-physics layers (Tiles/Quads) may go in any group, including the
// physics group, at the requested shape.
func CreateLayer(r *room.Room, groupIndex int, kind mapmodel.LayerKind, name string, width, height uint16) (layerIndex int, err error) {
	if kind == mapmodel.LayerGame {
		return 0, apierrors.New(apierrors.KindCreateGameLayer, "the Game layer cannot be created")
	}
	if err := mapmodel.ValidateName(name); err != nil && name != "" {
		return 0, err
	}

	m, err := r.Map()
	if err != nil {
		return 0, err
	}
	if err := checkIndex(len(m.Groups), groupIndex, apierrors.KindNotFoundGroup, "group"); err != nil {
		return 0, err
	}
	physicsGI := m.PhysicsGroupIndex()
	g := &m.Groups[groupIndex]

	l := mapmodel.Layer{Kind: kind, Name: name}
	if kind.IsPhysics() {
		if groupIndex != physicsGI {
			return 0, apierrors.New(apierrors.KindCreatePhysicsOutside, "physics layers must live in the physics group")
		}
		for _, existing := range g.Layers {
			if existing.Kind == kind {
				return 0, apierrors.New(apierrors.KindDuplicatePhysics, "a layer of this physics kind already exists")
			}
		}
		// Physics layers always share the Game layer's shape.
		_, gli := m.GameLayerIndex()
		if gli >= 0 {
			game := g.Layers[gli]
			width, height = game.Width, game.Height
		}
		l.Width, l.Height = width, height
		l.Tiles = make([]byte, int(width)*int(height)*kind.CellSize())
	} else if kind == mapmodel.LayerTiles {
		if err := mapmodel.SelfCheckDimensions(width, height); err != nil {
			return 0, err
		}
		l.Width, l.Height = width, height
		l.Tiles = make([]byte, int(width)*int(height)*kind.CellSize())
	}
	// LayerQuads carries no Width/Height/Tiles.

	if len(g.Layers) >= mapmodel.MaxLayersPerMap {
		return 0, apierrors.New(apierrors.KindMaxLayers, "maximum layer count reached")
	}
	g.Layers = append(g.Layers, l)
	if err := commit(r, m); err != nil {
		g.Layers = g.Layers[:len(g.Layers)-1]
		return 0, err
	}
	return len(g.Layers) - 1, nil
}

// LayerEdit is a partial update over a layer's fields. A non-nil Width/
// Height on a physics layer resizes the *entire* physics group uniformly
// (spec.md §4.3).
type LayerEdit struct {
	Name           *string
	Width, Height  *uint16
	Image          **int // double pointer: nil means "unchanged", pointing at nil clears it
	ColorEnv       **int
	ColorEnvOffset *int32
	QuadsImage     **int
}

// EditLayer applies a partial update to the layer at (groupIndex,
// layerIndex).
func EditLayer(r *room.Room, groupIndex, layerIndex int, edit LayerEdit) error {
	m, err := r.Map()
	if err != nil {
		return err
	}
	l, err := resolveLayer(m, groupIndex, layerIndex)
	if err != nil {
		return err
	}
	prevGroup := m.Groups[groupIndex].Clone()

	if edit.Name != nil {
		l.Name = *edit.Name
	}
	if edit.Image != nil {
		l.Image = *edit.Image
	}
	if edit.ColorEnv != nil {
		l.ColorEnv = *edit.ColorEnv
	}
	if edit.ColorEnvOffset != nil {
		l.ColorEnvOffset = *edit.ColorEnvOffset
	}
	if edit.QuadsImage != nil {
		l.QuadsImage = *edit.QuadsImage
	}

	if edit.Width != nil || edit.Height != nil {
		newW, newH := l.Width, l.Height
		if edit.Width != nil {
			newW = *edit.Width
		}
		if edit.Height != nil {
			newH = *edit.Height
		}
		if err := mapmodel.SelfCheckDimensions(newW, newH); err != nil {
			m.Groups[groupIndex] = prevGroup
			return err
		}
		if l.Kind.IsPhysics() {
			resizePhysicsGroup(&m.Groups[groupIndex], newW, newH)
		} else {
			l.Width, l.Height = newW, newH
			l.Tiles = make([]byte, int(newW)*int(newH)*l.Kind.CellSize())
		}
	}

	if err := commit(r, m); err != nil {
		m.Groups[groupIndex] = prevGroup
		return err
	}
	return nil
}

// resizePhysicsGroup resizes every physics layer in g to newW x newH and
// translates every Quads layer in g by the same origin shift (spec.md
// §4.3: "any positional reference is translated accordingly"). The anchor
// is always top-left: physics maps grow/shrink from the bottom-right.
func resizePhysicsGroup(g *mapmodel.Group, newW, newH uint16) {
	anchor := mapmodel.ResizeAnchor{Left: true, Top: true}
	var dx, dy int32
	for li := range g.Layers {
		l := &g.Layers[li]
		if !l.Kind.IsPhysics() {
			continue
		}
		resized, ddx, ddy := mapmodel.ResizeTiles(l.Tiles, l.Width, l.Height, newW, newH, l.Kind.CellSize(), anchor)
		l.Tiles = resized
		l.Width, l.Height = newW, newH
		dx, dy = ddx, ddy
	}
	if dx != 0 || dy != 0 {
		for li := range g.Layers {
			if g.Layers[li].Kind == mapmodel.LayerQuads {
				mapmodel.TranslateQuads(g.Layers[li].Quads, dx, dy)
			}
		}
	}
}

// DeleteLayer removes the layer at (groupIndex, layerIndex). The Game
// layer can never be deleted (spec.md §4.3).
func DeleteLayer(r *room.Room, groupIndex, layerIndex int) error {
	m, err := r.Map()
	if err != nil {
		return err
	}
	l, err := resolveLayer(m, groupIndex, layerIndex)
	if err != nil {
		return err
	}
	if l.Kind == mapmodel.LayerGame {
		return apierrors.New(apierrors.KindDeleteGameLayer, "the Game layer cannot be deleted")
	}
	g := &m.Groups[groupIndex]
	removed := g.Layers[layerIndex]
	g.Layers = append(g.Layers[:layerIndex:layerIndex], g.Layers[layerIndex+1:]...)
	if err := commit(r, m); err != nil {
		g.Layers = append(g.Layers[:layerIndex:layerIndex], append([]mapmodel.Layer{removed}, g.Layers[layerIndex:]...)...)
		return err
	}
	return nil
}

// MoveLayer reorders a layer within or across groups. A physics layer can
// never cross groups (spec.md §4.3: PhysicsLayerChangeGroup).
func MoveLayer(r *room.Room, srcGroup, srcLayer, tgtGroup, tgtLayer int) error {
	m, err := r.Map()
	if err != nil {
		return err
	}
	l, err := resolveLayer(m, srcGroup, srcLayer)
	if err != nil {
		return err
	}
	if err := checkIndex(len(m.Groups), tgtGroup, apierrors.KindNotFoundGroup, "group"); err != nil {
		return err
	}
	if l.Kind.IsPhysics() && tgtGroup != srcGroup {
		return apierrors.New(apierrors.KindPhysicsChangeGroup, "a physics layer cannot change groups")
	}

	if srcGroup == tgtGroup {
		g := &m.Groups[srcGroup]
		if err := checkMoveTarget(len(g.Layers), tgtLayer, apierrors.KindNotFoundLayer, "layer"); err != nil {
			return err
		}
		tgtLayer = clampMoveTarget(len(g.Layers), tgtLayer)
		moveLayerSlice(g.Layers, srcLayer, tgtLayer)
		return commit(r, m)
	}

	tg := &m.Groups[tgtGroup]
	if err := checkMoveTarget(len(tg.Layers)+1, tgtLayer, apierrors.KindNotFoundLayer, "layer"); err != nil {
		return err
	}
	sg := &m.Groups[srcGroup]
	moved := sg.Layers[srcLayer]
	sg.Layers = append(sg.Layers[:srcLayer:srcLayer], sg.Layers[srcLayer+1:]...)
	if tgtLayer > len(tg.Layers) {
		tgtLayer = len(tg.Layers)
	}
	tg.Layers = append(tg.Layers[:tgtLayer:tgtLayer], append([]mapmodel.Layer{moved}, tg.Layers[tgtLayer:]...)...)
	return commit(r, m)
}

func moveLayerSlice(s []mapmodel.Layer, src, tgt int) {
	v := s[src]
	if tgt > src {
		copy(s[src:tgt], s[src+1:tgt+1])
		s[tgt] = v
	} else {
		copy(s[tgt+1:src+1], s[tgt:src])
		s[tgt] = v
	}
}
