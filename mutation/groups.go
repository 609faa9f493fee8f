package mutation

import (
	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/room"
)

// GroupSummary is the shallow list/get response for a group: every field
// except the layer bodies (spec.md §4.3: "get (shallow; layers replaced by
// empty)").
type GroupSummary struct {
	Index                int
	Name                 string
	OffsetX, OffsetY     int32
	ParallaxX, ParallaxY int32
	Clipping             bool
	ClipX, ClipY, ClipW, ClipH int32
	LayerCount           int
	IsPhysicsGroup       bool
}

func summarizeGroup(m *mapmodel.Map, i int, g mapmodel.Group) GroupSummary {
	return GroupSummary{
		Index: i, Name: g.Name,
		OffsetX: g.OffsetX, OffsetY: g.OffsetY,
		ParallaxX: g.ParallaxX, ParallaxY: g.ParallaxY,
		Clipping: g.Clipping,
		ClipX: g.ClipX, ClipY: g.ClipY, ClipW: g.ClipW, ClipH: g.ClipH,
		LayerCount:     len(g.Layers),
		IsPhysicsGroup: i == m.PhysicsGroupIndex(),
	}
}

// ListGroups returns every group's shallow summary.
func ListGroups(r *room.Room) ([]GroupSummary, error) {
	m, err := r.Map()
	if err != nil {
		return nil, err
	}
	out := make([]GroupSummary, len(m.Groups))
	for i, g := range m.Groups {
		out[i] = summarizeGroup(m, i, g)
	}
	return out, nil
}

// GetGroup returns one group's shallow summary.
func GetGroup(r *room.Room, index int) (GroupSummary, error) {
	m, err := r.Map()
	if err != nil {
		return GroupSummary{}, err
	}
	if err := checkIndex(len(m.Groups), index, apierrors.KindNotFoundGroup, "group"); err != nil {
		return GroupSummary{}, err
	}
	return summarizeGroup(m, index, m.Groups[index]), nil
}

// GroupParams is a new group's fixed creation parameters. A freshly
// created group always starts with no layers; only the physics group
// (created once, at map-creation time, never via this operation) may ever
// contain physics layers at birth.
type GroupParams struct {
	Name                 string
	OffsetX, OffsetY     int32
	ParallaxX, ParallaxY int32
	Clipping             bool
	ClipX, ClipY, ClipW, ClipH int32
}

// CreateGroup appends a new, empty group.
func CreateGroup(r *room.Room, p GroupParams) (index int, err error) {
	if err := mapmodel.ValidateName(p.Name); err != nil && p.Name != "" {
		return 0, err
	}
	if err := mapmodel.SelfCheckClip(p.ClipW, p.ClipH); err != nil {
		return 0, err
	}
	m, err := r.Map()
	if err != nil {
		return 0, err
	}
	if len(m.Groups) >= mapmodel.MaxGroups {
		return 0, apierrors.New(apierrors.KindMaxGroups, "maximum group count reached")
	}
	g := mapmodel.Group{
		Name: p.Name, OffsetX: p.OffsetX, OffsetY: p.OffsetY,
		ParallaxX: p.ParallaxX, ParallaxY: p.ParallaxY,
		Clipping: p.Clipping, ClipX: p.ClipX, ClipY: p.ClipY, ClipW: p.ClipW, ClipH: p.ClipH,
	}
	m.Groups = append(m.Groups, g)
	if err := commit(r, m); err != nil {
		m.Groups = m.Groups[:len(m.Groups)-1]
		return 0, err
	}
	return len(m.Groups) - 1, nil
}

// GroupEdit is a partial update over a group's non-layer fields.
type GroupEdit struct {
	Name                 *string
	OffsetX, OffsetY     *int32
	ParallaxX, ParallaxY *int32
	Clipping             *bool
	ClipX, ClipY, ClipW, ClipH *int32
}

// EditGroup applies a partial update to the group's offset/parallax/clip
// fields. Forbidden on the physics group (spec.md §4.3).
func EditGroup(r *room.Room, index int, edit GroupEdit) error {
	m, err := r.Map()
	if err != nil {
		return err
	}
	if err := checkIndex(len(m.Groups), index, apierrors.KindNotFoundGroup, "group"); err != nil {
		return err
	}
	if index == m.PhysicsGroupIndex() {
		return apierrors.New(apierrors.KindEditPhysicsGroup, "the physics group cannot be edited")
	}
	g := &m.Groups[index]
	prev := *g
	if edit.Name != nil {
		g.Name = *edit.Name
	}
	if edit.OffsetX != nil {
		g.OffsetX = *edit.OffsetX
	}
	if edit.OffsetY != nil {
		g.OffsetY = *edit.OffsetY
	}
	if edit.ParallaxX != nil {
		g.ParallaxX = *edit.ParallaxX
	}
	if edit.ParallaxY != nil {
		g.ParallaxY = *edit.ParallaxY
	}
	if edit.Clipping != nil {
		g.Clipping = *edit.Clipping
	}
	if edit.ClipX != nil {
		g.ClipX = *edit.ClipX
	}
	if edit.ClipY != nil {
		g.ClipY = *edit.ClipY
	}
	if edit.ClipW != nil {
		g.ClipW = *edit.ClipW
	}
	if edit.ClipH != nil {
		g.ClipH = *edit.ClipH
	}
	if err := mapmodel.SelfCheckClip(g.ClipW, g.ClipH); err != nil {
		m.Groups[index] = prev
		return err
	}
	if err := commit(r, m); err != nil {
		m.Groups[index] = prev
		return err
	}
	return nil
}

// DeleteGroup removes the group at index and every layer/quad it carried.
// Forbidden on the physics group (spec.md §4.3). No index-remap is needed:
// nothing in the map references a group by index.
func DeleteGroup(r *room.Room, index int) error {
	m, err := r.Map()
	if err != nil {
		return err
	}
	if err := checkIndex(len(m.Groups), index, apierrors.KindNotFoundGroup, "group"); err != nil {
		return err
	}
	if index == m.PhysicsGroupIndex() {
		return apierrors.New(apierrors.KindDeletePhysicsGroup, "the physics group cannot be deleted")
	}
	removed := m.Groups[index]
	m.Groups = append(m.Groups[:index:index], m.Groups[index+1:]...)
	if err := commit(r, m); err != nil {
		m.Groups = append(m.Groups[:index:index], append([]mapmodel.Group{removed}, m.Groups[index:]...)...)
		return err
	}
	return nil
}

// MoveGroup reorders the group at src to tgt. The physics group may move
// freely among groups (only a physics *layer* is barred from crossing
// group boundaries).
func MoveGroup(r *room.Room, src, tgt int) error {
	m, err := r.Map()
	if err != nil {
		return err
	}
	if err := checkIndex(len(m.Groups), src, apierrors.KindNotFoundGroup, "group"); err != nil {
		return err
	}
	if err := checkMoveTarget(len(m.Groups), tgt, apierrors.KindNotFoundGroup, "group"); err != nil {
		return err
	}
	tgt = clampMoveTarget(len(m.Groups), tgt)
	moveGroupSlice(m.Groups, src, tgt)
	return commit(r, m)
}

func moveGroupSlice(s []mapmodel.Group, src, tgt int) {
	v := s[src]
	if tgt > src {
		copy(s[src:tgt], s[src+1:tgt+1])
		s[tgt] = v
	} else {
		copy(s[tgt+1:src+1], s[tgt:src])
		s[tgt] = v
	}
}
