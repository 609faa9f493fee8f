package mapmodel

// ClearOrShiftDeleted returns the new value for an optional index reference
// after deleting deletedIdx, and whether the reference survives at all.
func ClearOrShiftDeleted(ref int, deletedIdx int) (newRef int, ok bool) {
	switch {
	case ref == deletedIdx:
		return 0, false
	case ref > deletedIdx:
		return ref - 1, true
	default:
		return ref, true
	}
}

// RemapMoved returns the new value of a reference after moving src->tgt
// (spec.md §4.3): i==src moves to tgt; src<i<=tgt shifts down by one;
// tgt<=i<src shifts up by one; otherwise unchanged.
func RemapMoved(i, src, tgt int) int {
	switch {
	case i == src:
		return tgt
	case src < i && i <= tgt:
		return i - 1
	case tgt <= i && i < src:
		return i + 1
	default:
		return i
	}
}

// RemapImageRefs walks every image reference in the map and applies fn to
// each optional index, used for both delete (erase-or-shift) and move
// (reindex) passes over Tiles/Quads layer image references.
func RemapImageRefs(m *Map, fn func(ref int) (newRef int, keep bool)) {
	for gi := range m.Groups {
		for li := range m.Groups[gi].Layers {
			l := &m.Groups[gi].Layers[li]
			if l.Image != nil {
				applyRefUpdate(&l.Image, fn)
			}
			if l.QuadsImage != nil {
				applyRefUpdate(&l.QuadsImage, fn)
			}
		}
	}
}

// RemapEnvelopeRefs walks every envelope reference (Tiles.ColorEnv,
// Quad.PosEnv, Quad.ColorEnv) and applies fn to each. All three fields index
// into the same Map.Envelopes slice regardless of the expected kind of
// envelope they point to, so deleting or moving any one envelope shifts
// every reference's raw index the same way, independent of which field it
// lives in.
func RemapEnvelopeRefs(m *Map, fn func(ref int) (newRef int, keep bool)) {
	for gi := range m.Groups {
		for li := range m.Groups[gi].Layers {
			l := &m.Groups[gi].Layers[li]
			if l.Kind == LayerTiles && l.ColorEnv != nil {
				applyRefUpdate(&l.ColorEnv, fn)
			}
			if l.Kind == LayerQuads {
				for qi := range l.Quads {
					q := &l.Quads[qi]
					if q.PosEnv != nil {
						applyRefUpdate(&q.PosEnv, fn)
					}
					if q.ColorEnv != nil {
						applyRefUpdate(&q.ColorEnv, fn)
					}
				}
			}
		}
	}
}

func applyRefUpdate(ref **int, fn func(int) (int, bool)) {
	newRef, keep := fn(**ref)
	if !keep {
		*ref = nil
		return
	}
	**ref = newRef
}
