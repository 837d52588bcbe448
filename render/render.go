// Package render draws detections onto images with OpenCV.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolov5/models/postprocess"
)

// palette holds the box colours, indexed by class id modulo its length.
var palette = []color.RGBA{
	{255, 56, 56, 255}, {255, 157, 151, 255}, {255, 112, 31, 255}, {255, 178, 29, 255},
	{207, 210, 49, 255}, {72, 249, 10, 255}, {146, 204, 23, 255}, {61, 219, 134, 255},
	{26, 147, 52, 255}, {0, 212, 187, 255}, {44, 153, 168, 255}, {0, 194, 255, 255},
	{52, 69, 147, 255}, {100, 115, 255, 255}, {0, 24, 236, 255}, {132, 56, 255, 255},
	{82, 0, 133, 255}, {203, 56, 255, 255}, {255, 149, 200, 255}, {255, 55, 199, 255},
}

// Options control the drawing.
type Options struct {
	Thickness int
	FontScale float64
	// Names maps a class id to its label; nil or an empty result falls back to the id.
	Names func(int) string
}

// DefaultOptions returns a 2px outline with a small label.
func DefaultOptions() Options {
	return Options{Thickness: 2, FontScale: 0.6}
}

// Color returns the colour used for classID.
func Color(classID int) color.RGBA {
	if classID < 0 {
		classID = -classID
	}
	return palette[classID%len(palette)]
}

// Label returns the caption drawn above a detection.
func Label(d postprocess.Detection, names func(int) string) string {
	name := ""
	if names != nil {
		name = names(d.ClassID)
	}
	if name == "" {
		name = fmt.Sprintf("class %d", d.ClassID)
	}
	return fmt.Sprintf("%s %.2f", name, d.Confidence)
}

// Annotate copies img into a BGR Mat and draws every detection on it. The caller owns the Mat.
func Annotate(img image.Image, detections []postprocess.Detection, opts Options) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "failed to convert image")
	}
	if opts.Thickness <= 0 {
		opts.Thickness = 1
	}
	if opts.FontScale <= 0 {
		opts.FontScale = 0.5
	}

	for _, d := range detections {
		c := Color(d.ClassID)
		box := image.Rect(d.Left, d.Top, d.Left+d.Width, d.Top+d.Height)
		gocv.Rectangle(&mat, box, c, opts.Thickness)

		text := Label(d, opts.Names)
		size := gocv.GetTextSize(text, gocv.FontHersheySimplex, opts.FontScale, 1)
		y := d.Top - 4
		if y < size.Y {
			y = d.Top + size.Y + 4
		}
		gocv.PutText(&mat, text, image.Pt(d.Left, y), gocv.FontHersheySimplex, opts.FontScale, c, 1)
	}
	return mat, nil
}

// WriteAnnotated draws detections on img and writes the result to path. The encoding follows
// the file extension.
func WriteAnnotated(path string, img image.Image, detections []postprocess.Detection, opts Options) error {
	mat, err := Annotate(img, detections, opts)
	if err != nil {
		return err
	}
	defer mat.Close()

	if !gocv.IMWrite(path, mat) {
		return errors.Errorf("failed to write %s", path)
	}
	return nil
}
