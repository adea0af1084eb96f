package model

// Normalization names the pixel normalization the backbone was trained with.
// Applying the wrong one degrades accuracy silently, so it is explicit
// metadata rather than something inferred from the model file.
type Normalization string

const (
	// NormScale maps pixels into [0, 1].
	NormScale Normalization = "scale"
	// NormCentered maps pixels into [-1, 1] (MobileNet-style preprocessing).
	NormCentered Normalization = "centered"
)

// Metadata is the JSON sidecar shipped next to the ONNX model file.
type Metadata struct {
	InputShape    []int64       `json:"input_shape"`
	OutputShape   []int64       `json:"output_shape"`
	ImageSize     int           `json:"image_size"`
	Normalization Normalization `json:"normalization"`
}
