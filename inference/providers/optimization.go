package providers

import (
	"runtime"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// OptimizationConfig contains the ONNX Runtime session tuning knobs.
type OptimizationConfig struct {
	// GraphOptimizationLevel controls the level of graph optimization.
	GraphOptimizationLevel ort.GraphOptimizationLevel `json:"graph_optimization_level" yaml:"graph_optimization_level"`
	// ExecutionMode controls sequential vs parallel execution of graph nodes.
	ExecutionMode ort.ExecutionMode `json:"execution_mode" yaml:"execution_mode"`
	// IntraOpNumThreads sets threads for parallelizing ops. Zero lets ONNX Runtime decide.
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`
	// InterOpNumThreads sets threads for parallelizing independent ops. Zero lets ONNX Runtime decide.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`
}

// DefaultOptimizationConfig returns extended graph optimization with threads sized to the host.
func DefaultOptimizationConfig() OptimizationConfig {
	numCPU := runtime.NumCPU()
	return OptimizationConfig{
		GraphOptimizationLevel: ort.GraphOptimizationLevelEnableExtended,
		ExecutionMode:          ort.ExecutionModeSequential,
		IntraOpNumThreads:      max(1, numCPU/2),
		InterOpNumThreads:      1,
	}
}

// SessionOptions creates session options with the optimization settings applied and the
// provider appended. The caller owns the returned options and must Destroy them.
//
// Arguments:
//   - config: Optimization configuration to apply.
//   - provider: The execution provider to register.
//
// Returns:
//   - *ort.SessionOptions: Configured session options.
//   - error: Configuration error if any.
func SessionOptions(config OptimizationConfig, provider ExecutionProvider) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"graph optimization level", func() error { return options.SetGraphOptimizationLevel(config.GraphOptimizationLevel) }},
		{"execution mode", func() error { return options.SetExecutionMode(config.ExecutionMode) }},
		{"intra-op threads", func() error { return options.SetIntraOpNumThreads(config.IntraOpNumThreads) }},
		{"inter-op threads", func() error { return options.SetInterOpNumThreads(config.InterOpNumThreads) }},
		{"execution provider", func() error { return provider.Append(options) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			options.Destroy()
			return nil, errors.Wrapf(err, "error setting %s", s.name)
		}
	}
	return options, nil
}
