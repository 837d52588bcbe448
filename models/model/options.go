package model

import (
	"runtime"
)

// Parameters are the per-detector thresholds and execution switches.
type Parameters struct {
	// ConfidenceThreshold discards rows whose objectness*class score is not strictly above it.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	// IoUThreshold suppresses a box whose overlap with an accepted box is strictly above it.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold" mapstructure:"iou_threshold"`
	// KeepAspectRatio letterboxes with a uniform scale; otherwise each axis is stretched.
	KeepAspectRatio bool `json:"keep_aspect_ratio" yaml:"keep_aspect_ratio" mapstructure:"keep_aspect_ratio"`
	// SerializeInference routes every engine call through a mutex.
	SerializeInference bool `json:"serialize_inference" yaml:"serialize_inference" mapstructure:"serialize_inference"`
	// DropDegenerate discards decoded boxes with zero width or height.
	DropDegenerate bool `json:"drop_degenerate" yaml:"drop_degenerate" mapstructure:"drop_degenerate"`
	// Workers bounds the goroutines used by packing and decoding. Zero or less means runtime.NumCPU().
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// DefaultParameters returns {0.5, 0.3, keep aspect ratio, unserialized}.
func DefaultParameters() Parameters {
	return Parameters{
		ConfidenceThreshold: 0.5,
		IoUThreshold:        0.3,
		KeepAspectRatio:     true,
		SerializeInference:  false,
		DropDegenerate:      false,
		Workers:             runtime.NumCPU(),
	}
}

// Validate checks that both thresholds lie in [0, 1].
func (p Parameters) Validate() error {
	if !(p.ConfidenceThreshold >= 0 && p.ConfidenceThreshold <= 1) {
		return Configurationf("confidence threshold %v outside [0, 1]", p.ConfidenceThreshold)
	}
	if !(p.IoUThreshold >= 0 && p.IoUThreshold <= 1) {
		return Configurationf("iou threshold %v outside [0, 1]", p.IoUThreshold)
	}
	return nil
}

// WorkerCount resolves Workers to a positive goroutine count.
func (p Parameters) WorkerCount() int {
	if p.Workers <= 0 {
		return runtime.NumCPU()
	}
	return p.Workers
}
