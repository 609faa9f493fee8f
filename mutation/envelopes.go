package mutation

import (
	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/room"
)

// ListEnvelopes returns every envelope. Caller holds the reader.
func ListEnvelopes(r *room.Room) ([]mapmodel.Envelope, error) {
	m, err := r.Map()
	if err != nil {
		return nil, err
	}
	return append([]mapmodel.Envelope(nil), m.Envelopes...), nil
}

// GetEnvelope returns one envelope by index.
func GetEnvelope(r *room.Room, index int) (mapmodel.Envelope, error) {
	m, err := r.Map()
	if err != nil {
		return mapmodel.Envelope{}, err
	}
	if err := checkIndex(len(m.Envelopes), index, apierrors.KindNotFoundEnvelope, "envelope"); err != nil {
		return mapmodel.Envelope{}, err
	}
	return m.Envelopes[index], nil
}

// CreateEnvelope self-checks and appends a new envelope of any of the
// three kinds (Position/Color/Sound).
func CreateEnvelope(r *room.Room, e mapmodel.Envelope) (index int, err error) {
	if err := mapmodel.SelfCheckEnvelope(e); err != nil {
		return 0, err
	}
	m, err := r.Map()
	if err != nil {
		return 0, err
	}
	if len(m.Envelopes) >= mapmodel.MaxEnvelopes {
		return 0, apierrors.New(apierrors.KindMaxEnvelopes, "maximum envelope count reached")
	}
	m.Envelopes = append(m.Envelopes, e)
	if err := commit(r, m); err != nil {
		m.Envelopes = m.Envelopes[:len(m.Envelopes)-1]
		return 0, err
	}
	return len(m.Envelopes) - 1, nil
}

// EditEnvelope replaces the envelope at index, rejecting a variant change
// (spec.md §4.3: "edit (variant must match existing)").
func EditEnvelope(r *room.Room, index int, e mapmodel.Envelope) error {
	if err := mapmodel.SelfCheckEnvelope(e); err != nil {
		return err
	}
	m, err := r.Map()
	if err != nil {
		return err
	}
	if err := checkIndex(len(m.Envelopes), index, apierrors.KindNotFoundEnvelope, "envelope"); err != nil {
		return err
	}
	if m.Envelopes[index].Kind != e.Kind {
		return apierrors.New(apierrors.KindWrongEnvelopeType, "cannot change an envelope's kind via edit")
	}
	prev := m.Envelopes[index]
	m.Envelopes[index] = e
	if err := commit(r, m); err != nil {
		m.Envelopes[index] = prev
		return err
	}
	return nil
}

func envelopeReferenced(m *mapmodel.Map, idx int) bool {
	referenced := false
	mapmodel.RemapEnvelopeRefs(m, func(ref int) (int, bool) {
		if ref == idx {
			referenced = true
		}
		return ref, true
	})
	return referenced
}

// DeleteEnvelope removes the envelope at index, failing with
// EnvelopeInUse if any layer or quad still references it.
func DeleteEnvelope(r *room.Room, index int) error {
	m, err := r.Map()
	if err != nil {
		return err
	}
	if err := checkIndex(len(m.Envelopes), index, apierrors.KindNotFoundEnvelope, "envelope"); err != nil {
		return err
	}
	if envelopeReferenced(m, index) {
		return apierrors.New(apierrors.KindEnvelopeInUse, "envelope is still referenced")
	}
	removed := m.Envelopes[index]
	m.Envelopes = append(m.Envelopes[:index:index], m.Envelopes[index+1:]...)
	if err := commit(r, m); err != nil {
		m.Envelopes = append(m.Envelopes[:index:index], append([]mapmodel.Envelope{removed}, m.Envelopes[index:]...)...)
		return err
	}
	return nil
}

// MoveEnvelope reorders the envelope at src to tgt, remapping every
// reference accordingly.
func MoveEnvelope(r *room.Room, src, tgt int) error {
	m, err := r.Map()
	if err != nil {
		return err
	}
	if err := checkIndex(len(m.Envelopes), src, apierrors.KindNotFoundEnvelope, "envelope"); err != nil {
		return err
	}
	if err := checkMoveTarget(len(m.Envelopes), tgt, apierrors.KindNotFoundEnvelope, "envelope"); err != nil {
		return err
	}
	tgt = clampMoveTarget(len(m.Envelopes), tgt)
	moveEnvelopeSlice(m.Envelopes, src, tgt)
	mapmodel.RemapEnvelopeRefs(m, func(ref int) (int, bool) {
		return mapmodel.RemapMoved(ref, src, tgt), true
	})
	return commit(r, m)
}

func moveEnvelopeSlice(s []mapmodel.Envelope, src, tgt int) {
	v := s[src]
	if tgt > src {
		copy(s[src:tgt], s[src+1:tgt+1])
		s[tgt] = v
	} else {
		copy(s[tgt+1:src+1], s[tgt:src])
		s[tgt] = v
	}
}
