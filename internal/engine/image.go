package engine

import "encoding/json"

// Image is a handle to a server-side image expression: a source asset id
// plus an ordered list of operations the platform applies when the
// expression is evaluated. Handles are immutable, every method returns a
// new handle and pixel data never leaves the platform until a reduction
// or a download is requested.
type Image struct {
	source string
	ops    []imageOp
}

type imageOp struct {
	Name    string   `json:"name"`
	Band    string   `json:"band,omitempty"`
	Value   float64  `json:"value,omitempty"`
	From    []int    `json:"from,omitempty"`
	To      []int    `json:"to,omitempty"`
	Default *float64 `json:"default,omitempty"`
	Arg     *Image   `json:"arg,omitempty"`
	Reducer string   `json:"reducer,omitempty"`
	Index   string   `json:"index,omitempty"`
}

func NewImage(assetID string) *Image {
	return &Image{source: assetID}
}

func (img *Image) AssetID() string {
	return img.source
}

func (img *Image) with(op imageOp) *Image {
	ops := make([]imageOp, len(img.ops), len(img.ops)+1)
	copy(ops, img.ops)
	return &Image{source: img.source, ops: append(ops, op)}
}

// Select keeps a single band of the image.
func (img *Image) Select(band string) *Image {
	return img.with(imageOp{Name: "select", Band: band})
}

func (img *Image) BitwiseAnd(value int) *Image {
	return img.with(imageOp{Name: "bitwiseAnd", Value: float64(value)})
}

func (img *Image) Eq(value float64) *Image {
	return img.with(imageOp{Name: "eq", Value: value})
}

func (img *Image) Lt(value float64) *Image {
	return img.with(imageOp{Name: "lt", Value: value})
}

// Remap replaces the pixel values listed in from with the matching entry
// of to; every other value becomes defaultValue.
func (img *Image) Remap(from, to []int, defaultValue float64) *Image {
	d := defaultValue
	return img.with(imageOp{Name: "remap", From: from, To: to, Default: &d})
}

// UpdateMask invalidates every pixel where mask evaluates to zero. Pixel
// values are untouched, only validity changes.
func (img *Image) UpdateMask(mask *Image) *Image {
	return img.with(imageOp{Name: "updateMask", Arg: mask})
}

// Mask returns the validity raster of the image: one band per source band,
// 1 where the pixel is valid and 0 where it is masked.
func (img *Image) Mask() *Image {
	return img.with(imageOp{Name: "mask"})
}

// ReduceBands collapses all bands into one using the named reducer.
func (img *Image) ReduceBands(reducer string) *Image {
	return img.with(imageOp{Name: "reduceBands", Reducer: reducer})
}

func (img *Image) Rename(band string) *Image {
	return img.with(imageOp{Name: "rename", Band: band})
}

// SpectralIndex asks the platform to append the named spectral index
// (NDVI, NDWI, NDMI, ...) as a new band computed from the sensor's own
// band set.
func (img *Image) SpectralIndex(name string) *Image {
	return img.with(imageOp{Name: "spectralIndex", Index: name})
}

// Ops lists the operation names in application order.
func (img *Image) Ops() []string {
	names := make([]string, len(img.ops))
	for i, op := range img.ops {
		names[i] = op.Name
	}
	return names
}

func (img *Image) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Source string    `json:"source"`
		Ops    []imageOp `json:"ops,omitempty"`
	}{Source: img.source, Ops: img.ops})
}
