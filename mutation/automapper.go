package mutation

import (
	"context"

	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/automapper"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/room"
)

// ListAutomappers scans the room's automapper directory. Caller holds the
// reader: this is pure file I/O, not a map mutation.
func ListAutomappers(r *room.Room) ([]string, error) {
	return automapper.List(r.AutomapperDir())
}

// GetAutomapper returns one automapper file's raw text.
func GetAutomapper(r *room.Room, name string) ([]byte, error) {
	return automapper.Get(r.AutomapperDir(), name)
}

// DeleteAutomapper removes one automapper file.
func DeleteAutomapper(r *room.Room, name string) error {
	return automapper.Delete(r.AutomapperDir(), name)
}

// PutAutomapperResult reports whether a compiled artifact was produced
// (preprocessor sources only), for the caller to decide whether to
// broadcast it (spec.md §4.3).
type PutAutomapperResult struct {
	Compiled    []byte
	Diagnostics []automapper.Diagnostic
}

// PutAutomapper writes an automapper file, compiling it first if it is a
// preprocessor source. Unlike the rest of the mutation catalogue, this
// function manages the room writer itself rather than expecting the caller
// to hold it across the whole call: the writer is held only while writing
// the source file and, on a successful compile, while writing the compiled
// artifact, and is released across the external compiler invocation so a
// slow or hung preprocessor doesn't stall every other editor of the room.
func PutAutomapper(ctx context.Context, rn automapper.Runner, r *room.Room, name string, data []byte) (PutAutomapperResult, error) {
	r.Lock()
	path, err := rn.WriteSource(r.AutomapperDir(), name, data)
	r.Unlock()
	if err != nil {
		return PutAutomapperResult{}, err
	}

	if !automapper.NeedsCompile(name) {
		return PutAutomapperResult{}, nil
	}

	compiled, diags, err := rn.Compile(ctx, path)
	if err != nil {
		return PutAutomapperResult{Diagnostics: diags}, err
	}

	r.Lock()
	err = rn.WriteCompiledArtifact(path, compiled)
	r.Unlock()
	if err != nil {
		return PutAutomapperResult{Diagnostics: diags}, err
	}
	return PutAutomapperResult{Compiled: compiled, Diagnostics: diags}, nil
}

// ApplyAutomapper runs the rules engine over the Tiles layer at
// (groupIndex, layerIndex), deriving the rules file from the layer's image
// name, and writes the repainted tiles back. Like PutAutomapper, this
// function manages the room writer itself: it is held only to snapshot the
// layer beforehand and to re-validate and commit the result afterward, and
// is released across the rules engine's external process so one room's
// automapper run never blocks every other editor of that room for the
// duration of the external exec.
func ApplyAutomapper(ctx context.Context, rn automapper.Runner, r *room.Room, groupIndex, layerIndex int, seed int64) error {
	if err := mapmodel.SelfCheckAutomapperSeed(seed); err != nil {
		return err
	}

	r.Lock()
	imageName, tiles, width, height, err := snapshotAutomapperLayer(r, groupIndex, layerIndex)
	r.Unlock()
	if err != nil {
		return err
	}

	newTiles, err := rn.Apply(ctx, r.AutomapperDir(), imageName, tiles, width, height, seed)
	if err != nil {
		return err
	}
	if len(newTiles) != len(tiles) {
		return apierrors.New(apierrors.KindAutomapperError, "automapper engine returned a mismatched tile buffer size")
	}

	r.Lock()
	defer r.Unlock()
	m, err := r.Map()
	if err != nil {
		return err
	}
	l, err := resolveLayer(m, groupIndex, layerIndex)
	if err != nil {
		return err
	}
	if l.Kind != mapmodel.LayerTiles || len(l.Tiles) != len(newTiles) {
		return apierrors.New(apierrors.KindAutomapperError, "tile layer changed shape while the automapper was running")
	}
	prev := l.Tiles
	l.Tiles = newTiles
	if err := commit(r, m); err != nil {
		l.Tiles = prev
		return err
	}
	return nil
}

// snapshotAutomapperLayer resolves and copies out the state Apply needs
// from (groupIndex, layerIndex) before the room writer is released.
func snapshotAutomapperLayer(r *room.Room, groupIndex, layerIndex int) (imageName string, tiles []byte, width, height uint16, err error) {
	m, err := r.Map()
	if err != nil {
		return "", nil, 0, 0, err
	}
	l, err := resolveLayer(m, groupIndex, layerIndex)
	if err != nil {
		return "", nil, 0, 0, err
	}
	if l.Kind != mapmodel.LayerTiles {
		return "", nil, 0, 0, apierrors.New(apierrors.KindWrongLayerType, "apply_automapper targets a Tiles layer")
	}
	if l.Image == nil {
		return "", nil, 0, 0, apierrors.New(apierrors.KindNotFoundAutomapper, "layer has no image to derive a rules file from")
	}
	tiles = append([]byte(nil), l.Tiles...)
	return m.Images[*l.Image].Name, tiles, l.Width, l.Height, nil
}
