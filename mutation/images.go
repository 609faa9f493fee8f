package mutation

import (
	"github.com/ddnet/maproom/apierrors"
	"github.com/ddnet/maproom/mapmodel"
	"github.com/ddnet/maproom/room"
)

// ImageSummary is the list/get response shape for one image.
type ImageSummary struct {
	Index  int
	Kind   mapmodel.ImageKind
	Name   string
	Width  int
	Height int
}

func summarizeImage(i int, img mapmodel.Image) ImageSummary {
	return ImageSummary{Index: i, Kind: img.Kind, Name: img.Name, Width: img.Width, Height: img.Height}
}

// ListImages returns every image's summary. Caller holds the reader.
func ListImages(r *room.Room) ([]ImageSummary, error) {
	m, err := r.Map()
	if err != nil {
		return nil, err
	}
	out := make([]ImageSummary, len(m.Images))
	for i, img := range m.Images {
		out[i] = summarizeImage(i, img)
	}
	return out, nil
}

// GetImage returns the PNG-encoded pixel data for an embedded image.
// External images have no pixel data to hand back and are rejected
// (spec.md §4.3: "external rejected with Internal").
func GetImage(r *room.Room, index int) ([]byte, error) {
	m, err := r.Map()
	if err != nil {
		return nil, err
	}
	if err := checkIndex(len(m.Images), index, apierrors.KindNotFoundImage, "image"); err != nil {
		return nil, err
	}
	img := m.Images[index]
	if img.Kind != mapmodel.ImageEmbedded {
		return nil, apierrors.New(apierrors.KindInternal, "external images carry no pixel data to retrieve")
	}
	data, err := mapmodel.EncodeEmbeddedPNG(img.Width, img.Height, img.Data)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "encode image PNG", err)
	}
	return data, nil
}

// CreateExternalImage registers a reference to a known built-in image by
// name, resolving its dimensions from the built-in table.
func CreateExternalImage(r *room.Room, name string) (index int, err error) {
	if err := mapmodel.ValidateName(name); err != nil {
		return 0, err
	}
	w, h, ok := mapmodel.ResolveBuiltin(name)
	if !ok {
		return 0, apierrors.New(apierrors.KindInvalidImage, "unknown built-in image: "+name)
	}
	img := mapmodel.Image{Kind: mapmodel.ImageExternal, Name: name, Width: w, Height: h}
	return appendImage(r, img)
}

// CreateEmbeddedImage decodes pngData and registers it as a new embedded
// image named name.
func CreateEmbeddedImage(r *room.Room, name string, pngData []byte) (index int, err error) {
	if err := mapmodel.ValidateName(name); err != nil {
		return 0, err
	}
	w, h, pixels, err := mapmodel.DecodeEmbeddedPNG(pngData)
	if err != nil {
		return 0, apierrors.Wrap(apierrors.KindInvalidImage, "decode embedded image", err)
	}
	img := mapmodel.Image{Kind: mapmodel.ImageEmbedded, Name: name, Width: w, Height: h, Data: pixels}
	return appendImage(r, img)
}

func appendImage(r *room.Room, img mapmodel.Image) (int, error) {
	m, err := r.Map()
	if err != nil {
		return 0, err
	}
	if len(m.Images) >= mapmodel.MaxImages {
		return 0, apierrors.New(apierrors.KindMaxImages, "maximum image count reached")
	}
	m.Images = append(m.Images, img)
	if err := commit(r, m); err != nil {
		m.Images = m.Images[:len(m.Images)-1]
		return 0, err
	}
	return len(m.Images) - 1, nil
}

func imageReferenced(m *mapmodel.Map, idx int) bool {
	referenced := false
	mapmodel.RemapImageRefs(m, func(ref int) (int, bool) {
		if ref == idx {
			referenced = true
		}
		return ref, true
	})
	return referenced
}

// DeleteImage removes the image at index, failing with ImageInUse if any
// layer still references it (spec.md §4.3). Surviving references above
// index shift down per the index-remap law (P2).
func DeleteImage(r *room.Room, index int) error {
	m, err := r.Map()
	if err != nil {
		return err
	}
	if err := checkIndex(len(m.Images), index, apierrors.KindNotFoundImage, "image"); err != nil {
		return err
	}
	if imageReferenced(m, index) {
		return apierrors.New(apierrors.KindImageInUse, "image is still referenced by a layer")
	}
	removed := m.Images[index]
	m.Images = append(m.Images[:index:index], m.Images[index+1:]...)
	if err := commit(r, m); err != nil {
		m.Images = append(m.Images[:index:index], append([]mapmodel.Image{removed}, m.Images[index:]...)...)
		return err
	}
	return nil
}

// MoveImage reorders the image at src to tgt, remapping every reference to
// any image accordingly (P2).
func MoveImage(r *room.Room, src, tgt int) error {
	m, err := r.Map()
	if err != nil {
		return err
	}
	if err := checkIndex(len(m.Images), src, apierrors.KindNotFoundImage, "image"); err != nil {
		return err
	}
	if err := checkMoveTarget(len(m.Images), tgt, apierrors.KindNotFoundImage, "image"); err != nil {
		return err
	}
	tgt = clampMoveTarget(len(m.Images), tgt)
	moveImageSlice(m.Images, src, tgt)
	mapmodel.RemapImageRefs(m, func(ref int) (int, bool) {
		return mapmodel.RemapMoved(ref, src, tgt), true
	})
	return commit(r, m)
}

func moveImageSlice(s []mapmodel.Image, src, tgt int) {
	v := s[src]
	if tgt > src {
		copy(s[src:tgt], s[src+1:tgt+1])
		s[tgt] = v
	} else {
		copy(s[tgt+1:src+1], s[tgt:src])
		s[tgt] = v
	}
}
