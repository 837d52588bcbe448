package detector

import (
	"context"
	"sync"

	"github.com/nvr-ai/go-yolov5/inference"
	"github.com/nvr-ai/go-yolov5/metrics"
	"github.com/nvr-ai/go-yolov5/tensor"
)

// invoker is the strategy for reaching the engine.
type invoker interface {
	invoke(ctx context.Context, engine inference.Engine, input *tensor.Dense, name string) (*tensor.Dense, error)
}

func newInvoker(serialize bool) invoker {
	if serialize {
		return &serialInvoker{}
	}
	return directInvoker{}
}

// directInvoker lets concurrent runs call the engine at the same time.
type directInvoker struct{}

func (directInvoker) invoke(ctx context.Context, engine inference.Engine, input *tensor.Dense, name string) (*tensor.Dense, error) {
	defer metrics.TrackInference()()
	return engine.Run(ctx, input, name)
}

// serialInvoker admits one engine call at a time.
type serialInvoker struct {
	mu sync.Mutex
}

func (s *serialInvoker) invoke(ctx context.Context, engine inference.Engine, input *tensor.Dense, name string) (*tensor.Dense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer metrics.TrackInference()()
	return engine.Run(ctx, input, name)
}
