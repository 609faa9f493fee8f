package mutation

import (
	"encoding/base64"

	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/room"
)

// GetTiles returns a tile-backed layer's entire raw tile buffer, plus its
// shape (spec.md §4.3: "get_tiles returns the whole layer as raw bytes").
func GetTiles(r *room.Room, groupIndex, layerIndex int) (data []byte, width, height uint16, err error) {
	m, err := r.Map()
	if err != nil {
		return nil, 0, 0, err
	}
	l, err := resolveLayer(m, groupIndex, layerIndex)
	if err != nil {
		return nil, 0, 0, err
	}
	if l.Kind == mapmodel.LayerQuads {
		return nil, 0, 0, apierrors.New(apierrors.KindWrongLayerType, "quads layers have no tile buffer")
	}
	return append([]byte(nil), l.Tiles...), l.Width, l.Height, nil
}

// EditTiles writes a base64-encoded (x,y,w,h) sub-rect patch into a
// tile-backed layer's buffer, rejecting out-of-bounds or mis-sized input
// (spec.md §4.3).
func EditTiles(r *room.Room, groupIndex, layerIndex int, x, y, w, h uint16, patchBase64 string) error {
	m, err := r.Map()
	if err != nil {
		return err
	}
	l, err := resolveLayer(m, groupIndex, layerIndex)
	if err != nil {
		return err
	}
	if l.Kind == mapmodel.LayerQuads {
		return apierrors.New(apierrors.KindWrongLayerType, "quads layers have no tile buffer")
	}
	if int(x)+int(w) > int(l.Width) || int(y)+int(h) > int(l.Height) {
		return apierrors.New(apierrors.KindInvalidTiles, "patch rectangle exceeds layer bounds")
	}

	patch, err := base64.StdEncoding.DecodeString(patchBase64)
	if err != nil {
		return apierrors.Wrap(apierrors.KindInvalidTiles, "patch is not valid base64", err)
	}
	cellSize := l.Kind.CellSize()
	if len(patch) != int(w)*int(h)*cellSize {
		return apierrors.New(apierrors.KindInvalidTiles, "patch size does not match the declared rectangle")
	}

	rowBytes := int(w) * cellSize
	stride := int(l.Width) * cellSize
	for row := 0; row < int(h); row++ {
		dstOff := (int(y)+row)*stride + int(x)*cellSize
		srcOff := row * rowBytes
		copy(l.Tiles[dstOff:dstOff+rowBytes], patch[srcOff:srcOff+rowBytes])
	}
	return commit(r, m)
}
