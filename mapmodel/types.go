// Package mapmodel is the in-memory data model for one DDNet-style tile
// map: the structural aggregate (info, groups, layers, envelopes, images)
// and the invariants that must hold after every accepted mutation. It
// stands in for the binary map codec's output structure; spec.md §1 treats
// the actual on-disk binary format as an external, out-of-scope collaborator
// — this package only needs to be something that library would load into
// and save back out of.
package mapmodel

// Point is a fixed-point 2D coordinate, matching the quad/vertex precision
// the format uses (1/1000 of a tile).
type Point struct {
	X, Y int32
}

// Color is a straight RGBA color, 0-255 per channel.
type Color struct {
	R, G, B, A uint8
}

// EnvelopeKind tags which channel layout an Envelope's points carry.
type EnvelopeKind string

const (
	EnvelopePosition EnvelopeKind = "position"
	EnvelopeColor    EnvelopeKind = "color"
	EnvelopeSound    EnvelopeKind = "sound"
)

// CurveKind is the interpolation applied between two consecutive EnvPoints.
type CurveKind string

const (
	CurveStep   CurveKind = "step"
	CurveLinear CurveKind = "linear"
	CurveSlow   CurveKind = "slow"
	CurveFast   CurveKind = "fast"
	CurveSmooth CurveKind = "smooth"
	CurveBezier CurveKind = "bezier"
)

// EnvPoint is one keyframe of an envelope's animation curve. Values holds up
// to 4 channels; Position envelopes use [x,y,rotation], Color uses
// [r,g,b,a], Sound uses [volume].
type EnvPoint struct {
	Time   int32 // milliseconds, non-negative, time-ordered within an envelope
	Curve  CurveKind
	Values [4]int32
}

// Envelope is a time-keyed animation curve referenced by layers and quads.
type Envelope struct {
	Kind          EnvelopeKind
	Name          string
	Synchronized  bool
	Points        []EnvPoint
}

// ImageKind distinguishes a reference to a known built-in image from one
// whose pixel data is embedded in the map file.
type ImageKind string

const (
	ImageExternal ImageKind = "external"
	ImageEmbedded ImageKind = "embedded"
)

// Image is either an External reference (resolved against BuiltinDimensions)
// or an Embedded image carrying its own decoded RGBA pixel data.
type Image struct {
	Kind   ImageKind
	Name   string
	Width  int
	Height int
	// Data holds straight RGBA8 pixels, row-major, len == Width*Height*4.
	// Only populated (and only meaningful) for Embedded images.
	Data []byte
}

// TilemapSuitable reports whether this image may back a Tiles layer: its
// dimensions must be a multiple of 16 in each axis (the 16x16 tileset grid)
// and square-ish enough to divide evenly, mirroring the original
// twmap_map_checks.rs tileset suitability check.
func (img Image) TilemapSuitable() bool {
	if img.Width <= 0 || img.Height <= 0 {
		return false
	}
	return img.Width%16 == 0 && img.Height%16 == 0
}

// LayerKind is the tag of the Layer variant union. Game/Front/Tele/Speedup/
// Switch/Tune are the physics-layer kinds (spec.md glossary).
type LayerKind string

const (
	LayerGame    LayerKind = "game"
	LayerTiles   LayerKind = "tiles"
	LayerQuads   LayerKind = "quads"
	LayerFront   LayerKind = "front"
	LayerTele    LayerKind = "tele"
	LayerSpeedup LayerKind = "speedup"
	LayerSwitch  LayerKind = "switch"
	LayerTune    LayerKind = "tune"
)

// IsPhysics reports whether a layer kind must live in the physics group.
func (k LayerKind) IsPhysics() bool {
	switch k {
	case LayerGame, LayerFront, LayerTele, LayerSpeedup, LayerSwitch, LayerTune:
		return true
	default:
		return false
	}
}

// CellSize is the per-tile record size backing a layer's raw Data buffer,
// in bytes. get_tiles/edit_tiles operate on this buffer directly (spec.md
// §4.3): the codec's exact per-kind tile struct is out of scope, but the
// record size must be consistent so sub-rect patches land on tile
// boundaries.
func (k LayerKind) CellSize() int {
	switch k {
	case LayerTele:
		return 2
	case LayerSpeedup:
		return 6
	case LayerSwitch:
		return 4
	case LayerTune:
		return 1
	default:
		// Game, Front, Tiles all use the standard 4-byte tile record.
		return 4
	}
}

// Layer is the tagged variant every Mutation Engine operation pattern
// matches over (spec.md §9 "Dynamic dispatch over layer/envelope variants").
// Quads and Tiles layers carry extra fields beyond the embedded common
// fields; callers type-switch on Kind to reach them.
type Layer struct {
	Kind LayerKind
	Name string

	// Tile-backed layers (Game, Tiles, Front, Tele, Speedup, Switch, Tune).
	Width, Height uint16
	Tiles         []byte // len == int(Width)*int(Height)*Kind.CellSize()

	// Tiles layer only.
	Image        *int // index into Map.Images, nil == none
	ColorEnv     *int // index into Map.Envelopes, must be EnvelopeColor
	ColorEnvOffset int32

	// Quads layer only.
	QuadsImage *int
	Quads      []Quad
}

// Quad is a four-vertex textured polygon in a Quads layer.
type Quad struct {
	Points     [5]Point // 4 corners + pivot, pivot last
	TexCoords  [4]Point
	Colors     [4]Color
	PosEnv     *int
	PosEnvOffset int32
	ColorEnv     *int
	ColorEnvOffset int32
}

// Group is a named collection of layers sharing an offset/parallax and an
// optional clip rectangle. Exactly one Group in a Map is the physics group.
type Group struct {
	Name       string
	OffsetX, OffsetY     int32
	ParallaxX, ParallaxY int32
	Clipping   bool
	ClipX, ClipY, ClipW, ClipH int32
	Layers     []Layer
}

// Info is the map's metadata block; every field is length-bounded by
// self-check (spec.md §4.1).
type Info struct {
	Author   string
	Version  string
	Credits  string
	License  string
	Settings []string
}

// FormatVersion is the closed set of on-disk map format revisions this
// server understands (spec.md §6 config JSON schema).
type FormatVersion string

const (
	FormatDDNet06 FormatVersion = "DDNet06"
	FormatTeeworlds06 FormatVersion = "Teeworlds06"
)

// Map is the full mutable aggregate a Room owns (spec.md §3).
type Map struct {
	Info      Info
	Groups    []Group
	Envelopes []Envelope
	Images    []Image
}

// PhysicsGroupIndex returns the index of the map's unique physics group, or
// -1 if none exists (which self-check/invariant 1 never permits to persist
// past a successful mutation, but is reachable mid-construction).
func (m *Map) PhysicsGroupIndex() int {
	for i := range m.Groups {
		if m.Groups[i].isPhysicsGroup() {
			return i
		}
	}
	return -1
}

// isPhysicsGroup reports whether g contains at least one physics layer.
// Invariant 1/2 guarantee at most one such group exists in a valid map.
func (g *Group) isPhysicsGroup() bool {
	for i := range g.Layers {
		if g.Layers[i].Kind.IsPhysics() {
			return true
		}
	}
	return false
}

// GameLayerIndex returns the (group, layer) index of the Game layer inside
// the physics group, or (-1,-1) if absent.
func (m *Map) GameLayerIndex() (int, int) {
	gi := m.PhysicsGroupIndex()
	if gi < 0 {
		return -1, -1
	}
	for li := range m.Groups[gi].Layers {
		if m.Groups[gi].Layers[li].Kind == LayerGame {
			return gi, li
		}
	}
	return -1, -1
}
