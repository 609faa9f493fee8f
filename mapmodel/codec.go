package mapmodel

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"

	"github.com/pkg/errors"
)

// Codec loads and saves a Map to/from its on-disk representation. spec.md
// §1 treats the actual DDNet binary map format as an external, out-of-scope
// collaborator ("assumed as a library that loads/saves a map structure and
// computes invariants"); Codec is that collaborator's interface, fixed here
// so the rest of the core never depends on a concrete wire format.
type Codec interface {
	Decode(data []byte) (*Map, error)
	Encode(m *Map) ([]byte, error)
}

// JSONCodec is the default Codec: a self-describing JSON document. It
// fulfills the Codec contract (round-trips a Map exactly, per P6) without
// reimplementing the real DDNet binary grammar, which is explicitly out of
// this core's scope.
type JSONCodec struct{}

func (JSONCodec) Decode(data []byte) (*Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "decode map")
	}
	return &m, nil
}

func (JSONCodec) Encode(m *Map) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "encode map")
	}
	return data, nil
}

// DecodeEmbeddedPNG decodes PNG bytes into a straight RGBA8 pixel buffer
// ready to back an Image{Kind: ImageEmbedded}.
func DecodeEmbeddedPNG(data []byte) (width, height int, pixels []byte, err error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, nil, errors.Wrap(err, "decode PNG")
	}
	bounds := img.Bounds()
	width, height = bounds.Dx(), bounds.Dy()
	pixels = make([]byte, width*height*4)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			pixels[i] = byte(r >> 8)
			pixels[i+1] = byte(g >> 8)
			pixels[i+2] = byte(b >> 8)
			pixels[i+3] = byte(a >> 8)
			i += 4
		}
	}
	return width, height, pixels, nil
}

// EncodeEmbeddedPNG encodes a straight RGBA8 pixel buffer back to PNG bytes
// for the get-image response.
func EncodeEmbeddedPNG(width, height int, pixels []byte) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, pixels)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "encode PNG")
	}
	return buf.Bytes(), nil
}
