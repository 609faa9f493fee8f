// Package mutation implements the full operation catalogue spec.md §4.3
// describes as the "Mutation Engine": every map-level, image, envelope,
// group, layer, tile, quad, and automapper operation a joined session may
// invoke. Every exported function here assumes the caller (the request
// dispatcher) already holds the target room's writer (mutating calls) or
// reader (list/get calls) — these functions never lock or unlock a Room
// themselves, the same division of responsibility dendrite's roomserver API
// draws between its HTTP layer and the room state it touches under lock.
//
// Every mutating operation follows the same three-step discipline from
// spec.md §4.1: self-check the input in isolation, map-check it against the
// room's current map, apply, then map-check again as a full re-assertion.
package mutation

import (
	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/room"
)

// checkIndex bounds-checks i against a collection of length n, returning a
// not-found error of the given kind otherwise. Every get/edit/delete/move
// by numeric index runs through this first.
func checkIndex(n, i int, kind apierrors.Kind, label string) error {
	if i < 0 || i >= n {
		return apierrors.New(kind, label+" index out of range")
	}
	return nil
}

// checkMoveTarget bounds-checks a move target against [0, n] inclusive —
// spec.md §9 Open Question 3: tgt==n means "append at the end".
func checkMoveTarget(n, tgt int, kind apierrors.Kind, label string) error {
	if tgt < 0 || tgt > n {
		return apierrors.New(kind, label+" move target out of range")
	}
	return nil
}

// clampMoveTarget translates a caller-supplied move target in [0, n]
// (spec.md §9 Open Question 3, where n means "append at the end") into the
// actual resting index [0, n-1] the moved element lands on once it's
// spliced out of its old position.
func clampMoveTarget(n, tgt int) int {
	if tgt >= n {
		return n - 1
	}
	return tgt
}

// commit re-asserts full structural validity after an in-place edit and,
// only if it holds, invalidates the room's cached etag so the next get_map
// recomputes it (spec.md §4.1: "After apply, the structural invariants are
// re-asserted via a full map check before success").
func commit(r *room.Room, m *mapmodel.Map) error {
	if err := mapmodel.MapCheck(m); err != nil {
		return err
	}
	r.InvalidateEtag()
	return nil
}
