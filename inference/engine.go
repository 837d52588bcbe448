// Package inference - Boundary between the detection pipeline and a model runtime.
package inference

import (
	"context"

	"github.com/nvr-ai/go-yolov5/tensor"
)

// NodeInfo describes one declared input or output of a loaded model.
type NodeInfo struct {
	// Name is the node name used when feeding or fetching the tensor.
	Name string `json:"name" yaml:"name"`
	// Shape is the declared shape. Dynamic axes are reported as -1.
	Shape []int64 `json:"shape" yaml:"shape"`
}

// ModelMetadata is the descriptive metadata embedded in a model file.
type ModelMetadata struct {
	Producer    string            `json:"producer" yaml:"producer"`
	Graph       string            `json:"graph" yaml:"graph"`
	Domain      string            `json:"domain" yaml:"domain"`
	Description string            `json:"description" yaml:"description"`
	Version     int64             `json:"version" yaml:"version"`
	Custom      map[string]string `json:"custom" yaml:"custom"`
}

// Engine executes a loaded model.
//
// Run receives a (batch, channel, height, width) tensor bound to inputName and returns the first
// declared output. Implementations must not mutate the input tensor.
type Engine interface {
	Inputs() []NodeInfo
	Outputs() []NodeInfo
	Run(ctx context.Context, input *tensor.Dense, inputName string) (*tensor.Dense, error)
	Close() error
}

// MetadataSource is implemented by engines that can report the metadata of their model.
type MetadataSource interface {
	Metadata() (ModelMetadata, error)
}
