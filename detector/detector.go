// Package detector - Runs images through letterboxing, inference, decoding and suppression.
package detector

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-yolov5/inference"
	"github.com/nvr-ai/go-yolov5/metrics"
	"github.com/nvr-ai/go-yolov5/models/model"
	"github.com/nvr-ai/go-yolov5/models/model/preprocess"
	"github.com/nvr-ai/go-yolov5/models/postprocess"
)

// Detector owns a loaded engine, its parsed input/output contract and the detection parameters.
//
// A Detector is safe for concurrent use. Whether concurrent Run calls reach the engine at the
// same time is decided by Parameters.SerializeInference.
type Detector struct {
	engine  inference.Engine
	input   model.InputSpec
	output  model.OutputSpec
	params  model.Parameters
	packer  *preprocess.Packer
	decoder *postprocess.Decoder
	nms     postprocess.NMSConfig
	invoker invoker
	log     logrus.FieldLogger
}

// Option customises a Detector.
type Option func(*Detector)

// WithLogger sets the logger. The default is logrus.StandardLogger().
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Detector) { d.log = log }
}

// WithClassAwareNMS restricts suppression to boxes of the same class.
func WithClassAwareNMS() Option {
	return func(d *Detector) { d.nms.ClassAware = true }
}

// New validates params, reads the engine's first input and output declarations and prepares the
// pipeline stages.
//
// Arguments:
//   - engine: The loaded model runtime.
//   - params: The detection parameters.
//   - opts: Optional settings.
//
// Returns:
//   - *Detector: The detector.
//   - error: An error matching model.ErrConfiguration if params or the model shapes are unusable.
func New(engine inference.Engine, params model.Parameters, opts ...Option) (*Detector, error) {
	if engine == nil {
		return nil, model.Configurationf("engine is nil")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	inputs, outputs := engine.Inputs(), engine.Outputs()
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, model.Configurationf("engine declares %d inputs and %d outputs", len(inputs), len(outputs))
	}
	input, err := model.ParseInputSpec(inputs[0])
	if err != nil {
		return nil, err
	}
	output, err := model.ParseOutputSpec(outputs[0])
	if err != nil {
		return nil, err
	}

	d := &Detector{
		engine:  engine,
		input:   input,
		output:  output,
		params:  params,
		packer:  preprocess.NewPacker(input, params),
		decoder: postprocess.NewDecoder(output, params),
		nms:     postprocess.NMSConfig{IoUThreshold: params.IoUThreshold},
		invoker: newInvoker(params.SerializeInference),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.log.WithFields(logrus.Fields{
		"input":     input.Name,
		"width":     input.Width,
		"height":    input.Height,
		"classes":   output.Classes,
		"serialize": params.SerializeInference,
	}).Info("detector initialized")
	return d, nil
}

// InputSpec returns the parsed model input.
func (d *Detector) InputSpec() model.InputSpec { return d.input }

// OutputSpec returns the parsed model output.
func (d *Detector) OutputSpec() model.OutputSpec { return d.output }

// Parameters returns the detection parameters.
func (d *Detector) Parameters() model.Parameters { return d.params }

// Engine returns the underlying engine.
func (d *Detector) Engine() inference.Engine { return d.engine }

// Run detects objects in img.
//
// Arguments:
//   - ctx: Passed to the engine.
//   - img: The image; it is only read.
//
// Returns:
//   - []postprocess.Detection: The suppressed detections in descending confidence order. Empty
//     when nothing passes the thresholds.
//   - error: model.ErrInvalidInput for an empty image, or a *model.InferenceError wrapping the
//     engine's failure.
func (d *Detector) Run(ctx context.Context, img image.Image) ([]postprocess.Detection, error) {
	start := time.Now()

	t, lb, err := d.packer.Pack(img)
	if err != nil {
		metrics.RecordRun(statusOf(err))
		return nil, err
	}
	metrics.RecordStage(metrics.StagePreprocess, time.Since(start))

	mark := time.Now()
	raw, err := d.invoker.invoke(ctx, d.engine, t, d.input.Name)
	if err != nil {
		metrics.RecordRun(metrics.StatusInference)
		return nil, model.NewInferenceError(err)
	}
	metrics.RecordStage(metrics.StageInference, time.Since(mark))

	mark = time.Now()
	candidates, err := d.decoder.Decode(raw, lb)
	if err != nil {
		metrics.RecordRun(statusOf(err))
		return nil, err
	}
	metrics.RecordStage(metrics.StageDecode, time.Since(mark))

	mark = time.Now()
	kept := postprocess.ApplyGreedyNMS(candidates, d.nms)
	if kept == nil {
		kept = []postprocess.Detection{}
	}
	metrics.RecordStage(metrics.StageSuppress, time.Since(mark))

	metrics.RecordDetections(len(candidates), len(kept))
	metrics.RecordRun(metrics.StatusOK)

	d.log.WithFields(logrus.Fields{
		"width":      lb.SrcWidth,
		"height":     lb.SrcHeight,
		"candidates": len(candidates),
		"detections": len(kept),
		"elapsed":    time.Since(start),
	}).Debug("detection run finished")
	return kept, nil
}

// Close releases the engine.
func (d *Detector) Close() error {
	return errors.Wrap(d.engine.Close(), "failed to close engine")
}

func statusOf(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return metrics.StatusInvalidInput
	case errors.Is(err, model.ErrInference):
		return metrics.StatusInference
	default:
		return metrics.StatusError
	}
}
