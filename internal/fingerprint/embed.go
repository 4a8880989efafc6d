package fingerprint

import (
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/hupe1980/vecgo/distance"
	"github.com/tphakala/go-tflite"

	"critterlens/internal/model"
)

// Per-channel statistics the feature extractor was trained with.
var (
	embedMean = [3]float32{0.485, 0.456, 0.406}
	embedStd  = [3]float32{0.229, 0.224, 0.225}
)

// Embed is the dense-embedding strategy: images are resized to the model's
// input resolution, run through a pretrained TFLite feature extractor, and
// the L2-normalized output vectors are compared by cosine similarity.
type Embed struct {
	interpreter *tflite.Interpreter
	inputW      int
	inputH      int
	dim         int
	threshold   float64

	// tflite interpreters are not safe for concurrent Invoke
	mu sync.Mutex
}

// NewEmbed loads the TFLite model at modelPath and prepares an interpreter.
// threshold is the minimum cosine similarity counted as a match.
func NewEmbed(modelPath string, threshold float64) (*Embed, error) {
	m := tflite.NewModelFromFile(modelPath)
	if m == nil {
		return nil, fmt.Errorf("embed: cannot load model from %s", modelPath)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(runtime.NumCPU())

	interpreter := tflite.NewInterpreter(m, options)
	if interpreter == nil {
		return nil, errors.New("embed: cannot create interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		return nil, errors.New("embed: tensor allocation failed")
	}

	input := interpreter.GetInputTensor(0)
	if input == nil || input.NumDims() != 4 {
		return nil, errors.New("embed: model input is not an NHWC image tensor")
	}
	inputH := input.Dim(1)
	inputW := input.Dim(2)
	if input.Dim(3) != 3 {
		return nil, fmt.Errorf("embed: model wants %d channels, need 3", input.Dim(3))
	}

	output := interpreter.GetOutputTensor(0)
	if output == nil {
		return nil, errors.New("embed: cannot get output tensor")
	}
	dim := output.Dim(output.NumDims() - 1)

	return &Embed{
		interpreter: interpreter,
		inputW:      inputW,
		inputH:      inputH,
		dim:         dim,
		threshold:   threshold,
	}, nil
}

func (e *Embed) Name() string { return "embed" }

func (e *Embed) Extract(img image.Image) (model.Fingerprint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	input := e.interpreter.GetInputTensor(0)
	resampleRGB(img, e.inputW, e.inputH, embedMean, embedStd, input.Float32s())

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return model.Fingerprint{}, errors.New("embed: tensor invoke failed")
	}

	output := e.interpreter.GetOutputTensor(0)
	vec := make([]float32, e.dim)
	copy(vec, output.Float32s())

	if !distance.NormalizeL2InPlace(vec) {
		return model.Fingerprint{}, errors.New("embed: zero-norm embedding")
	}
	return model.Fingerprint{Vector: vec}, nil
}

// Score returns the cosine similarity of two normalized vectors (their dot
// product). Higher is better.
func (e *Embed) Score(query, candidate model.Fingerprint) (float64, error) {
	return CosineScore(query, candidate)
}

func (e *Embed) Better(a, b float64) bool { return a > b }

func (e *Embed) Accepts(score float64) bool { return score >= e.threshold }

func (e *Embed) Describe(score float64) string {
	return fmt.Sprintf("%.1f%% sure", score*100)
}

// CosineScore is the embedding comparator, split out so it can be used
// without a loaded model.
func CosineScore(query, candidate model.Fingerprint) (float64, error) {
	if len(query.Vector) == 0 || len(candidate.Vector) == 0 {
		return 0, errors.New("embed: fingerprint has no vector")
	}
	if len(query.Vector) != len(candidate.Vector) {
		return 0, fmt.Errorf("embed: vector length mismatch: %d vs %d", len(query.Vector), len(candidate.Vector))
	}
	return float64(distance.Dot(query.Vector, candidate.Vector)), nil
}
