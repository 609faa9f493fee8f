package dispatch

import "github.com/ddnet/maproom/mapmodel"

// Payload shapes for the Get/Create/Edit/Delete/Move(sub) catalogue.
// Each mirrors the corresponding mutation package function's parameters
// one-for-one; a nil Index means "list everything" where the sub
// supports a bare Get.

type imagePayload struct {
	Index     *int              `json:"index,omitempty"`
	Kind      mapmodel.ImageKind `json:"kind,omitempty"`
	Name      string            `json:"name,omitempty"`
	PNGBase64 string            `json:"png_base64,omitempty"`
}

type envelopePayload struct {
	Index    *int             `json:"index,omitempty"`
	Envelope mapmodel.Envelope `json:"envelope,omitempty"`
}

type groupPayload struct {
	Index  *int                `json:"index,omitempty"`
	Params groupParamsPayload  `json:"params,omitempty"`
}

type groupParamsPayload struct {
	Name                       string `json:"name,omitempty"`
	OffsetX, OffsetY           int32  `json:"offset_x,omitempty"`
	ParallaxX, ParallaxY       int32  `json:"parallax_x,omitempty"`
	Clipping                   bool   `json:"clipping,omitempty"`
	ClipX, ClipY, ClipW, ClipH int32  `json:"clip_x,omitempty"`
}

type layerPayload struct {
	GroupIndex int             `json:"group_index"`
	Index      *int            `json:"index,omitempty"`
	Kind       mapmodel.LayerKind `json:"kind,omitempty"`
	Name       string          `json:"name,omitempty"`
	Width      uint16          `json:"width,omitempty"`
	Height     uint16          `json:"height,omitempty"`
}

type tilesPayload struct {
	GroupIndex int    `json:"group_index"`
	LayerIndex int    `json:"layer_index"`
	X, Y       uint16 `json:"x,omitempty"`
	W, H       uint16 `json:"w,omitempty"`
	PatchBase64 string `json:"patch_base64,omitempty"`
}

type quadPayload struct {
	GroupIndex int            `json:"group_index"`
	LayerIndex int            `json:"layer_index"`
	Index      *int           `json:"index,omitempty"`
	Quad       mapmodel.Quad  `json:"quad,omitempty"`
}

type automapperPayload struct {
	Name       string `json:"name,omitempty"`
	DataBase64 string `json:"data_base64,omitempty"`
	Apply      bool   `json:"apply,omitempty"`
	GroupIndex int    `json:"group_index,omitempty"`
	LayerIndex int    `json:"layer_index,omitempty"`
	Seed       int64  `json:"seed,omitempty"`
}
