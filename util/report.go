package util

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-yolov5/models/postprocess"
)

// Report formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// LabeledDetection is a detection with its class name, when the model declares one.
type LabeledDetection struct {
	postprocess.Detection `yaml:",inline"`
	Label                 string `json:"label,omitempty" yaml:"label,omitempty"`
}

// ImageResult holds the detections of one image.
type ImageResult struct {
	Path       string             `json:"path" yaml:"path"`
	Width      int                `json:"width" yaml:"width"`
	Height     int                `json:"height" yaml:"height"`
	Detections []LabeledDetection `json:"detections" yaml:"detections"`
	Error      string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the output of a batch detection run.
type Report struct {
	Model  string        `json:"model" yaml:"model"`
	Device string        `json:"device" yaml:"device"`
	Images []ImageResult `json:"images" yaml:"images"`
}

// Label attaches class names to detections. A nil names function leaves every label empty.
func Label(detections []postprocess.Detection, names func(int) string) []LabeledDetection {
	out := make([]LabeledDetection, len(detections))
	for i, d := range detections {
		out[i] = LabeledDetection{Detection: d}
		if names != nil {
			out[i].Label = names(d.ClassID)
		}
	}
	return out
}

// WriteReport encodes report to w as "json" or "yaml".
func WriteReport(w io.Writer, format string, report Report) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(report), "failed to encode json report")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return errors.Wrap(err, "failed to encode yaml report")
		}
		return errors.Wrap(enc.Close(), "failed to flush yaml report")
	default:
		return errors.Errorf("unsupported report format %q", format)
	}
}
