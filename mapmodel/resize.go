package mapmodel

// TileUnitsPerTile is the fixed-point scale of a Quad Point: DDNet quad
// coordinates are stored in 1/1000ths, and one tile is 32 of those units *
// 1000 worth of world space in this model's simplified coordinate space.
// Only used to translate quad positions when a physics-group resize shifts
// the tile origin (spec.md §4.3 resize semantics).
const TileUnitsPerTile = 32 * 1000

// ResizeAnchor picks which edges stay fixed when a layer's shape changes.
// Growing pads the opposite edge(s); shrinking crops from the opposite
// edge(s) too, so the anchored corner's content never moves.
type ResizeAnchor struct {
	Left bool // true: fixed edge is the left column; changes land on the right
	Top  bool // true: fixed edge is the top row; changes land on the bottom
}

// ResizeTiles grows or shrinks a tile buffer in place to newW x newH,
// keeping the anchored edge(s) fixed. Growing replicates the outermost
// row/column into the new area (corners replicated from the nearest corner
// tile); shrinking crops. Returns the new buffer and the (dx,dy) by which
// the anchored-to-origin offset moved — used to translate quad references
// in the same group.
func ResizeTiles(data []byte, oldW, oldH, newW, newH uint16, cellSize int, anchor ResizeAnchor) (out []byte, dx, dy int32) {
	out = make([]byte, int(newW)*int(newH)*cellSize)

	// Offset of the old top-left corner within the new buffer's coordinate
	// space.
	var offX, offY int
	if anchor.Left {
		offX = 0
	} else {
		offX = int(newW) - int(oldW)
	}
	if anchor.Top {
		offY = 0
	} else {
		offY = int(newH) - int(oldH)
	}

	cellAt := func(x, y int) []byte {
		// Clamp into the old buffer's bounds, replicating the edge tile for
		// any coordinate outside it (the edge-extension rule).
		cx := clampInt(x, 0, int(oldW)-1)
		cy := clampInt(y, 0, int(oldH)-1)
		i := (cy*int(oldW) + cx) * cellSize
		return data[i : i+cellSize]
	}

	for ny := 0; ny < int(newH); ny++ {
		for nx := 0; nx < int(newW); nx++ {
			oldX := nx - offX
			oldY := ny - offY
			src := cellAt(oldX, oldY)
			dstI := (ny*int(newW) + nx) * cellSize
			copy(out[dstI:dstI+cellSize], src)
		}
	}

	return out, int32(offX), int32(offY)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TranslateQuads shifts every quad/vertex position in-place by (dx,dy) tile
// units — applied to Quads layers sharing a physics group that was resized,
// so decorative quads keep their position relative to the tiles around
// them (spec.md §4.3: "any positional reference is translated accordingly").
func TranslateQuads(quads []Quad, dx, dy int32) {
	shiftX := dx * TileUnitsPerTile
	shiftY := dy * TileUnitsPerTile
	for qi := range quads {
		for pi := range quads[qi].Points {
			quads[qi].Points[pi].X += shiftX
			quads[qi].Points[pi].Y += shiftY
		}
	}
}
