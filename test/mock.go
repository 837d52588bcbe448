// Package test - Fakes and fixtures shared by package tests.
package test

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvr-ai/go-yolov5/inference"
	"github.com/nvr-ai/go-yolov5/tensor"
)

// MockEngine is an in-memory inference.Engine.
//
// Rows are returned as the (1, len(Rows), rowWidth) output of every Run unless RunFunc is set.
// The engine records how many calls were made and the peak number of overlapping calls.
//
// @example
// engine := NewMockEngine(640, 640, 80)
// engine.Rows = [][]float32{{320, 320, 50, 50, 0.9, ...}}
type MockEngine struct {
	InputNode  inference.NodeInfo
	OutputNode inference.NodeInfo
	Rows       [][]float32
	// Err, when set, is returned from every Run.
	Err error
	// Delay is slept inside Run to widen the window for overlapping calls.
	Delay time.Duration
	// RunFunc replaces the default behaviour when set.
	RunFunc func(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error)
	// Meta is returned from Metadata.
	Meta inference.ModelMetadata

	calls     atomic.Int64
	inFlight  atomic.Int64
	maxFlight atomic.Int64
	closed    atomic.Bool
	mu        sync.Mutex
	lastInput *tensor.Dense
}

// NewMockEngine declares a (1, 3, height, width) input named "images" and a (1, -1, classes+5)
// output named "output0".
func NewMockEngine(width, height, classes int) *MockEngine {
	return &MockEngine{
		InputNode:  inference.NodeInfo{Name: "images", Shape: []int64{1, 3, int64(height), int64(width)}},
		OutputNode: inference.NodeInfo{Name: "output0", Shape: []int64{1, -1, int64(classes + 5)}},
	}
}

// Inputs implements inference.Engine.
func (m *MockEngine) Inputs() []inference.NodeInfo { return []inference.NodeInfo{m.InputNode} }

// Outputs implements inference.Engine.
func (m *MockEngine) Outputs() []inference.NodeInfo { return []inference.NodeInfo{m.OutputNode} }

// Run implements inference.Engine.
func (m *MockEngine) Run(ctx context.Context, input *tensor.Dense, inputName string) (*tensor.Dense, error) {
	m.calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.maxFlight.Load()
		if n <= peak || m.maxFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	m.mu.Lock()
	m.lastInput = input
	m.mu.Unlock()

	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.RunFunc != nil {
		return m.RunFunc(ctx, input)
	}
	return m.output()
}

func (m *MockEngine) output() (*tensor.Dense, error) {
	width := int(m.OutputNode.Shape[2])
	rows := len(m.Rows)
	if rows == 0 {
		// A single row with zero objectness never passes any threshold.
		return tensor.New(1, 1, width)
	}
	data := make([]float32, 0, rows*width)
	for _, r := range m.Rows {
		data = append(data, r...)
	}
	return tensor.FromData(data, 1, rows, width)
}

// Metadata implements inference.MetadataSource.
func (m *MockEngine) Metadata() (inference.ModelMetadata, error) { return m.Meta, nil }

// Close implements inference.Engine.
func (m *MockEngine) Close() error {
	m.closed.Store(true)
	return nil
}

// Calls returns the number of Run calls.
func (m *MockEngine) Calls() int { return int(m.calls.Load()) }

// MaxConcurrent returns the largest number of Run calls that overlapped.
func (m *MockEngine) MaxConcurrent() int { return int(m.maxFlight.Load()) }

// Closed reports whether Close was called.
func (m *MockEngine) Closed() bool { return m.closed.Load() }

// LastInput returns the tensor passed to the most recent Run.
func (m *MockEngine) LastInput() *tensor.Dense {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastInput
}

// Row builds an output row from a box, an objectness score and class scores.
func Row(cx, cy, w, h, objectness float32, scores ...float32) []float32 {
	return append([]float32{cx, cy, w, h, objectness}, scores...)
}

// MockFrameGenerator creates deterministic test frames.
//
// @example
// gen := NewMockFrameGenerator(640, 480)
// frame := gen.GenerateStaticFrame()
type MockFrameGenerator struct {
	width  int
	height int
}

// NewMockFrameGenerator creates a new frame generator with specified dimensions.
func NewMockFrameGenerator(width, height int) *MockFrameGenerator {
	return &MockFrameGenerator{width: width, height: height}
}

// GenerateStaticFrame creates a mid-gray frame.
func (g *MockFrameGenerator) GenerateStaticFrame() *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, g.width, g.height))
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			frame.SetRGBA(x, y, gray)
		}
	}
	return frame
}

// GenerateObjectFrame draws a filled square of the given colour on a static frame.
func (g *MockFrameGenerator) GenerateObjectFrame(x, y, size int, c color.RGBA) *image.RGBA {
	frame := g.GenerateStaticFrame()
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			px, py := x+dx, y+dy
			if px < g.width && py < g.height {
				frame.SetRGBA(px, py, c)
			}
		}
	}
	return frame
}
