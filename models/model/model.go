// Package model - Model input/output contracts and detection parameters.
package model

import (
	"github.com/nvr-ai/go-yolov5/inference"
)

// RowPrefix is the number of leading values in each output row: cx, cy, w, h, objectness.
const RowPrefix = 5

// InputSpec is the parsed input contract of a detection model.
type InputSpec struct {
	Name     string `json:"name" yaml:"name"`
	Batch    int    `json:"batch" yaml:"batch"`
	Channels int    `json:"channels" yaml:"channels"`
	Width    int    `json:"width" yaml:"width"`
	Height   int    `json:"height" yaml:"height"`
}

// OutputSpec is the parsed output contract of a detection model.
type OutputSpec struct {
	Name    string `json:"name" yaml:"name"`
	Batch   int    `json:"batch" yaml:"batch"`
	Classes int    `json:"classes" yaml:"classes"`
	// Rows is the number of candidate rows, or 0 when the model declares it dynamic.
	Rows int `json:"rows" yaml:"rows"`
}

// RowWidth returns Classes + RowPrefix.
func (o OutputSpec) RowWidth() int { return o.Classes + RowPrefix }

// ParseInputSpec reads a (batch, channels, height, width) input declaration.
//
// A dynamic batch axis is read as 1. Spatial axes must be fixed.
//
// Arguments:
//   - info: The declared input node.
//
// Returns:
//   - InputSpec: The parsed contract.
//   - error: An error matching ErrConfiguration if the declaration is unusable.
func ParseInputSpec(info inference.NodeInfo) (InputSpec, error) {
	if len(info.Shape) != 4 {
		return InputSpec{}, Configurationf("input %q has %d dimensions, want 4 (batch, channels, height, width)", info.Name, len(info.Shape))
	}
	spec := InputSpec{
		Name:     info.Name,
		Batch:    int(info.Shape[0]),
		Channels: int(info.Shape[1]),
		Height:   int(info.Shape[2]),
		Width:    int(info.Shape[3]),
	}
	if spec.Batch <= 0 {
		spec.Batch = 1
	}
	if spec.Channels != 3 {
		return InputSpec{}, Configurationf("input %q has %d channels, want 3", info.Name, spec.Channels)
	}
	if spec.Width <= 0 || spec.Height <= 0 {
		return InputSpec{}, Configurationf("input %q has non-positive spatial size %dx%d", info.Name, spec.Width, spec.Height)
	}
	return spec, nil
}

// ParseOutputSpec reads a (batch, rows, classes+5) output declaration.
func ParseOutputSpec(info inference.NodeInfo) (OutputSpec, error) {
	if len(info.Shape) != 3 {
		return OutputSpec{}, Configurationf("output %q has %d dimensions, want 3 (batch, rows, row width)", info.Name, len(info.Shape))
	}
	width := int(info.Shape[2])
	if width <= RowPrefix {
		return OutputSpec{}, Configurationf("output %q has row width %d, want more than %d", info.Name, width, RowPrefix)
	}
	spec := OutputSpec{
		Name:    info.Name,
		Batch:   int(info.Shape[0]),
		Rows:    int(info.Shape[1]),
		Classes: width - RowPrefix,
	}
	if spec.Batch <= 0 {
		spec.Batch = 1
	}
	if spec.Rows < 0 {
		spec.Rows = 0
	}
	return spec, nil
}
