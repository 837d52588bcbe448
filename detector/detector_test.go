package detector

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-yolov5/inference"
	"github.com/nvr-ai/go-yolov5/metrics"
	"github.com/nvr-ai/go-yolov5/models/model"
	"github.com/nvr-ai/go-yolov5/models/postprocess"
	"github.com/nvr-ai/go-yolov5/tensor"
	"github.com/nvr-ai/go-yolov5/test"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newDetector(t *testing.T, engine inference.Engine, params model.Parameters) *Detector {
	t.Helper()
	d, err := New(engine, params, WithLogger(quietLogger()))
	require.NoError(t, err)
	return d
}

func TestRun_LetterboxedDetection(t *testing.T) {
	engine := test.NewMockEngine(640, 640, 3)
	engine.Rows = [][]float32{test.Row(320, 400, 100, 100, 0.9, 0.1, 0.2, 0.8)}
	d := newDetector(t, engine, model.DefaultParameters())

	dets, err := d.Run(context.Background(), test.NewMockFrameGenerator(640, 480).GenerateStaticFrame())
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, 2, dets[0].ClassID)
	assert.InDelta(t, 0.72, dets[0].Confidence, 1e-6)
	assert.Equal(t, postprocess.Detection{ClassID: 2, Confidence: dets[0].Confidence, Left: 270, Top: 270, Width: 100, Height: 100}, dets[0])

	in := engine.LastInput()
	require.NotNil(t, in)
	assert.Equal(t, tensor.Shape{1, 3, 640, 640}, in.Shape())
	assert.Zero(t, in.At(0, 0, 79, 0), "letterbox padding")
	assert.InDelta(t, 128.0/255.0, in.At(0, 0, 80, 0), 1e-6)
}

func TestRun_SuppressesDuplicates(t *testing.T) {
	engine := test.NewMockEngine(640, 640, 1)
	engine.Rows = [][]float32{
		test.Row(40, 40, 50, 50, 0.8, 1), // (15,15,50,50) @ 0.8
		test.Row(35, 35, 50, 50, 0.9, 1), // (10,10,50,50) @ 0.9
	}
	d := newDetector(t, engine, model.DefaultParameters())

	dets, err := d.Run(context.Background(), test.NewMockFrameGenerator(640, 640).GenerateStaticFrame())
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, 10, dets[0].Left)
	assert.Equal(t, 10, dets[0].Top)
	assert.InDelta(t, 0.9, dets[0].Confidence, 1e-6)
}

func TestRun_ClassAwareNMS(t *testing.T) {
	engine := test.NewMockEngine(640, 640, 2)
	engine.Rows = [][]float32{
		test.Row(35, 35, 50, 50, 0.9, 1, 0),
		test.Row(40, 40, 50, 50, 0.8, 0, 1),
	}
	d, err := New(engine, model.DefaultParameters(), WithLogger(quietLogger()), WithClassAwareNMS())
	require.NoError(t, err)

	dets, err := d.Run(context.Background(), test.NewMockFrameGenerator(640, 640).GenerateStaticFrame())
	require.NoError(t, err)
	assert.Len(t, dets, 2)
}

func TestRun_NoDetections(t *testing.T) {
	engine := test.NewMockEngine(320, 320, 80)
	d := newDetector(t, engine, model.DefaultParameters())

	dets, err := d.Run(context.Background(), test.NewMockFrameGenerator(100, 50).GenerateStaticFrame())
	require.NoError(t, err)
	assert.NotNil(t, dets)
	assert.Empty(t, dets)
}

func TestRun_InvalidInput(t *testing.T) {
	engine := test.NewMockEngine(640, 640, 3)
	d := newDetector(t, engine, model.DefaultParameters())
	before := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(metrics.StatusInvalidInput))

	_, err := d.Run(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 480)))
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	_, err = d.Run(context.Background(), nil)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	assert.Zero(t, engine.Calls(), "engine is not reached")
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(metrics.StatusInvalidInput)))
}

func TestRun_InferenceErrorKeepsCause(t *testing.T) {
	cause := errors.New("CUDA out of memory")
	engine := test.NewMockEngine(640, 640, 3)
	engine.Err = cause
	d := newDetector(t, engine, model.DefaultParameters())

	_, err := d.Run(context.Background(), test.NewMockFrameGenerator(64, 64).GenerateStaticFrame())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInference))
	assert.True(t, errors.Is(err, cause))

	var ie *model.InferenceError
	require.True(t, errors.As(err, &ie))
	assert.Same(t, cause, ie.Err)
}

func TestRun_OutputShapeMismatch(t *testing.T) {
	engine := test.NewMockEngine(640, 640, 3)
	engine.RunFunc = func(context.Context, *tensor.Dense) (*tensor.Dense, error) {
		return tensor.New(1, 10, 7)
	}
	d := newDetector(t, engine, model.DefaultParameters())

	_, err := d.Run(context.Background(), test.NewMockFrameGenerator(64, 64).GenerateStaticFrame())
	assert.True(t, errors.Is(err, model.ErrInference))
}

func TestRun_PassesContextToEngine(t *testing.T) {
	engine := test.NewMockEngine(640, 640, 3)
	engine.RunFunc = func(ctx context.Context, _ *tensor.Dense) (*tensor.Dense, error) {
		return nil, ctx.Err()
	}
	d := newDetector(t, engine, model.DefaultParameters())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Run(ctx, test.NewMockFrameGenerator(64, 64).GenerateStaticFrame())
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(err, model.ErrInference))
}

func TestNew_ConfigurationErrors(t *testing.T) {
	_, err := New(nil, model.DefaultParameters())
	assert.True(t, errors.Is(err, model.ErrConfiguration))

	bad := model.DefaultParameters()
	bad.ConfidenceThreshold = 1.2
	_, err = New(test.NewMockEngine(640, 640, 3), bad)
	assert.True(t, errors.Is(err, model.ErrConfiguration))

	bad = model.DefaultParameters()
	bad.IoUThreshold = -0.5
	_, err = New(test.NewMockEngine(640, 640, 3), bad)
	assert.True(t, errors.Is(err, model.ErrConfiguration))

	engine := test.NewMockEngine(640, 640, 3)
	engine.InputNode.Shape = []int64{3, 640, 640}
	_, err = New(engine, model.DefaultParameters())
	assert.True(t, errors.Is(err, model.ErrConfiguration))

	engine = test.NewMockEngine(640, 640, 3)
	engine.OutputNode.Shape = []int64{1, 25200, 5}
	_, err = New(engine, model.DefaultParameters())
	assert.True(t, errors.Is(err, model.ErrConfiguration))

	engine = test.NewMockEngine(640, 640, 3)
	engine.OutputNode.Shape = []int64{25200, 8}
	_, err = New(engine, model.DefaultParameters())
	assert.True(t, errors.Is(err, model.ErrConfiguration))
}

func TestNew_ParsesSpecs(t *testing.T) {
	d := newDetector(t, test.NewMockEngine(416, 320, 80), model.DefaultParameters())
	assert.Equal(t, model.InputSpec{Name: "images", Batch: 1, Channels: 3, Width: 416, Height: 320}, d.InputSpec())
	assert.Equal(t, 80, d.OutputSpec().Classes)
	assert.Equal(t, model.DefaultParameters(), d.Parameters())
}

func runConcurrently(t *testing.T, d *Detector, n int) {
	t.Helper()
	img := test.NewMockFrameGenerator(32, 32).GenerateStaticFrame()
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = d.Run(context.Background(), img)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestRun_SerializeInference(t *testing.T) {
	engine := test.NewMockEngine(32, 32, 1)
	engine.Delay = 10 * time.Millisecond
	params := model.DefaultParameters()
	params.SerializeInference = true
	d := newDetector(t, engine, params)

	runConcurrently(t, d, 8)
	assert.Equal(t, 8, engine.Calls())
	assert.Equal(t, 1, engine.MaxConcurrent())
}

func TestRun_ParallelInference(t *testing.T) {
	engine := test.NewMockEngine(32, 32, 1)
	engine.Delay = 10 * time.Millisecond
	d := newDetector(t, engine, model.DefaultParameters())

	runConcurrently(t, d, 8)
	assert.Equal(t, 8, engine.Calls())
	assert.GreaterOrEqual(t, engine.MaxConcurrent(), 1)
}

func TestClose(t *testing.T) {
	engine := test.NewMockEngine(32, 32, 1)
	d := newDetector(t, engine, model.DefaultParameters())
	require.NoError(t, d.Close())
	assert.True(t, engine.Closed())
}
