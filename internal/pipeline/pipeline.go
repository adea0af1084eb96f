// Package pipeline turns raw uploaded image bytes into a labeled,
// confidence-scored prediction: decode, normalize, forward pass, arg-max,
// index-to-name resolution.
package pipeline

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"

	"github.com/hellzang/foodvision-api/internal/logging"
	"github.com/hellzang/foodvision-api/internal/model"
)

// UnknownFood is returned whenever the pipeline cannot name a food: decode or
// inference failure, or a class index outside the label table.
const UnknownFood = "Unknown"

// Result is the outcome of one classification. Confidence is always in
// [0, 1]; zero confidence together with UnknownFood signals a failed run,
// not just an unsure model.
type Result struct {
	Food       string  `json:"food"`
	Confidence float32 `json:"confidence"`
}

// Classifier is the forward-pass contract the pipeline drives. Satisfied by
// *model.Classifier; tests substitute stubs.
type Classifier interface {
	Predict(input []float32) ([]float32, error)
	ImageSize() int
	Normalization() model.Normalization
}

// LabelTable resolves a class index to a food name.
type LabelTable interface {
	NameAt(i int) (string, bool)
}

type Pipeline struct {
	classifier Classifier
	labels     LabelTable
}

func New(classifier Classifier, labels LabelTable) *Pipeline {
	return &Pipeline{classifier: classifier, labels: labels}
}

// Classify never fails: any internal error is logged and collapsed into the
// Unknown sentinel with zero confidence, so the request always gets an
// answer. An out-of-range class index keeps the raw model confidence.
func (p *Pipeline) Classify(imageBytes []byte) Result {
	res, err := p.infer(imageBytes)
	if err != nil {
		logging.Warn().Err(err).Int("image_bytes", len(imageBytes)).
			Msg("classification failed, returning sentinel result")
		return Result{Food: UnknownFood, Confidence: 0}
	}
	return res
}

func (p *Pipeline) infer(imageBytes []byte) (Result, error) {
	if len(imageBytes) == 0 {
		return Result{}, fmt.Errorf("empty image data")
	}

	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}

	input := Preprocess(img, p.classifier.ImageSize(), p.classifier.Normalization())

	probs, err := p.classifier.Predict(input)
	if err != nil {
		return Result{}, fmt.Errorf("predict: %w", err)
	}
	if len(probs) == 0 {
		return Result{}, fmt.Errorf("model returned empty probability vector")
	}

	idx, confidence := argmax(probs)

	name, ok := p.labels.NameAt(idx)
	if !ok {
		// Label table and model output have diverged. Still answer, but
		// make the gap visible in the logs.
		logging.Warn().Int("class_index", idx).
			Msg("predicted class index outside label table")
		return Result{Food: UnknownFood, Confidence: clamp01(confidence)}, nil
	}

	return Result{Food: name, Confidence: clamp01(confidence)}, nil
}

// argmax picks the highest probability; strict > keeps the lowest index on
// ties, which makes selection deterministic.
func argmax(probs []float32) (int, float32) {
	maxIdx := 0
	maxVal := probs[0]
	for i, v := range probs {
		if v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}
	return maxIdx, maxVal
}

func clamp01(v float32) float32 {
	switch {
	case v != v || v < 0: // NaN or negative
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Preprocess converts a decoded image into the flat CHW float32 tensor the
// backbone expects: Lanczos resize to size x size (interpolated, not
// cropped), forced 3-channel RGB, then the given pixel normalization.
func Preprocess(img image.Image, size int, norm model.Normalization) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	input := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			// RGBA() premultiplies alpha away, so transparent sources
			// land on the same 3-channel representation.
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			i := y*width + x
			input[i] = normalize(r, norm)
			input[plane+i] = normalize(g, norm)
			input[2*plane+i] = normalize(b, norm)
		}
	}
	return input
}

func normalize(v uint32, norm model.Normalization) float32 {
	scaled := float32(v) / 65535.0
	if norm == model.NormCentered {
		return scaled*2 - 1
	}
	return scaled
}
