// Package postprocess - Decoding and suppression of raw detection model output.
package postprocess

import (
	"github.com/nvr-ai/go-yolov5/images"
)

// Detection is one detected object in original image pixel coordinates.
type Detection struct {
	// ClassID is the index of the best scoring class.
	ClassID int `json:"class_id" yaml:"class_id"`
	// Confidence is objectness multiplied by the best class score.
	Confidence float32 `json:"confidence" yaml:"confidence"`
	Left       int     `json:"left" yaml:"left"`
	Top        int     `json:"top" yaml:"top"`
	Width      int     `json:"width" yaml:"width"`
	Height     int     `json:"height" yaml:"height"`
}

// Rect returns the detection box as an images.Rect.
func (d Detection) Rect() images.Rect {
	return images.RectFromXYWH(d.Left, d.Top, d.Width, d.Height)
}

// Degenerate reports whether the box has no area.
func (d Detection) Degenerate() bool { return d.Width <= 0 || d.Height <= 0 }
