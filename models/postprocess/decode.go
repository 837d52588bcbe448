package postprocess

import (
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-yolov5/models/model"
	"github.com/nvr-ai/go-yolov5/models/model/preprocess"
	"github.com/nvr-ai/go-yolov5/tensor"
)

// Decoder turns raw (batch, rows, classes+5) model output into detections.
type Decoder struct {
	output model.OutputSpec
	params model.Parameters
}

// NewDecoder creates a decoder for the given model output.
//
// Arguments:
//   - output: The parsed model output.
//   - params: The detection parameters; ConfidenceThreshold, DropDegenerate and Workers are used.
//
// Returns:
//   - *Decoder: The decoder.
func NewDecoder(output model.OutputSpec, params model.Parameters) *Decoder {
	return &Decoder{output: output, params: params}
}

// Decode scans every row of the first batch entry and returns the rows whose confidence is
// strictly above the threshold, mapped back through lb and clamped to the source image.
//
// Rows are decoded in parallel bands; the result keeps row order.
//
// Arguments:
//   - raw: The model output.
//   - lb: The transform that produced the model input.
//
// Returns:
//   - []Detection: The candidates.
//   - error: A *model.InferenceError if raw does not match the declared output.
func (d *Decoder) Decode(raw *tensor.Dense, lb preprocess.Letterbox) ([]Detection, error) {
	if raw == nil {
		return nil, model.NewInferenceError(errors.New("engine returned no output"))
	}
	shape := raw.Shape()
	if shape.Dims() != 3 || shape[0] < 1 || shape[2] != d.output.RowWidth() {
		return nil, model.NewInferenceError(errors.Errorf("output shape %v, want (batch, rows, %d)", shape, d.output.RowWidth()))
	}

	rows := shape[1]
	if rows == 0 {
		return []Detection{}, nil
	}
	workers := max(1, min(d.params.WorkerCount(), rows))
	band := (rows + workers - 1) / workers
	parts := make([][]Detection, (rows+band-1)/band)

	var g errgroup.Group
	for i := range parts {
		i := i
		start := i * band
		end := min(start+band, rows)
		g.Go(func() error {
			parts[i] = d.decodeRows(raw, lb, start, end)
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]Detection, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

func (d *Decoder) decodeRows(raw *tensor.Dense, lb preprocess.Letterbox, start, end int) []Detection {
	var local []Detection
	for i := start; i < end; i++ {
		det, ok := d.decodeRow(raw.Row(0, i), lb)
		if ok {
			local = append(local, det)
		}
	}
	return local
}

func (d *Decoder) decodeRow(row []float32, lb preprocess.Letterbox) (Detection, bool) {
	objectness := row[4]

	best := float32(0)
	classID := 0
	for j, score := range row[model.RowPrefix:] {
		if s := score * objectness; s > best {
			best = s
			classID = j
		}
	}
	if best <= d.params.ConfidenceThreshold {
		return Detection{}, false
	}

	cx, cy, w, h := row[0], row[1], row[2], row[3]
	x1, y1 := lb.Inverse(cx-w/2, cy-h/2)
	x2, y2 := lb.Inverse(cx+w/2, cy+h/2)

	xMin := clamp(int(x1), lb.SrcWidth)
	yMin := clamp(int(y1), lb.SrcHeight)
	xMax := clamp(int(x2), lb.SrcWidth)
	yMax := clamp(int(y2), lb.SrcHeight)

	det := Detection{
		ClassID:    classID,
		Confidence: best,
		Left:       xMin,
		Top:        yMin,
		Width:      xMax - xMin,
		Height:     yMax - yMin,
	}
	if d.params.DropDegenerate && det.Degenerate() {
		return Detection{}, false
	}
	return det, true
}

// clamp limits v to [0, limit].
func clamp(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
