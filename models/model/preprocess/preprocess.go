// Package preprocess - Letterboxing and tensor packing for detection models.
package preprocess

import (
	"image"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-yolov5/images"
	"github.com/nvr-ai/go-yolov5/models/model"
	"github.com/nvr-ai/go-yolov5/tensor"
)

// Packer turns images into normalized (1, 3, H, W) tensors for one model input.
type Packer struct {
	input  model.InputSpec
	params model.Parameters
}

// NewPacker creates a packer for the given model input.
//
// Arguments:
//   - input: The parsed model input.
//   - params: The detection parameters; KeepAspectRatio and Workers are used.
//
// Returns:
//   - *Packer: The packer.
//
// @example
//
//	packer := NewPacker(model.InputSpec{Channels: 3, Width: 640, Height: 640}, model.DefaultParameters())
//	t, lb, err := packer.Pack(img)
func NewPacker(input model.InputSpec, params model.Parameters) *Packer {
	return &Packer{input: input, params: params}
}

// Pack resizes img per the letterbox transform and writes R/255, G/255, B/255 into channel
// planes 0, 1 and 2. Padding cells stay zero.
//
// Arguments:
//   - img: The source image.
//
// Returns:
//   - *tensor.Dense: The (1, 3, H, W) tensor.
//   - Letterbox: The transform used, for mapping detections back.
//   - error: An error matching model.ErrInvalidInput for a nil or empty image.
func (p *Packer) Pack(img image.Image) (*tensor.Dense, Letterbox, error) {
	if img == nil {
		return nil, Letterbox{}, model.InvalidInputf("image is nil")
	}
	b := img.Bounds()
	lb, err := NewLetterbox(b.Dx(), b.Dy(), p.input.Width, p.input.Height, p.params.KeepAspectRatio)
	if err != nil {
		return nil, Letterbox{}, err
	}

	w, h := lb.ResizedSize()
	resized, err := images.Resize(img, w, h)
	if err != nil {
		return nil, Letterbox{}, errors.Wrap(err, "failed to resize image")
	}

	t, err := tensor.New(1, 3, p.input.Height, p.input.Width)
	if err != nil {
		return nil, Letterbox{}, model.Configurationf("%v", err)
	}

	p.write(t, resized, lb)
	return t, lb, nil
}

// write fills the tensor with one goroutine per band of rows. Bands never share a cell.
func (p *Packer) write(t *tensor.Dense, img image.Image, lb Letterbox) {
	bounds := img.Bounds()
	height := bounds.Dy()
	workers := min(p.params.WorkerCount(), height)
	band := (height + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < height; start += band {
		start := start
		end := min(start+band, height)
		g.Go(func() error {
			writeRows(t, img, lb, start, end)
			return nil
		})
	}
	_ = g.Wait()
}

func writeRows(t *tensor.Dense, img image.Image, lb Letterbox, start, end int) {
	data := t.Data()
	bounds := img.Bounds()
	width := bounds.Dx()
	green := t.Offset(0, 1, 0, 0)
	blue := t.Offset(0, 2, 0, 0)

	rgba, isRGBA := img.(*image.RGBA)
	for y := start; y < end; y++ {
		base := t.Offset(0, 0, y+lb.PadY, lb.PadX)
		sy := bounds.Min.Y + y
		for x := 0; x < width; x++ {
			var r, g, b uint8
			if isRGBA {
				i := rgba.PixOffset(bounds.Min.X+x, sy)
				r, g, b = rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2]
			} else {
				r32, g32, b32, _ := img.At(bounds.Min.X+x, sy).RGBA()
				r, g, b = uint8(r32>>8), uint8(g32>>8), uint8(b32>>8)
			}
			data[base+x] = float32(r) / 255
			data[green+base+x] = float32(g) / 255
			data[blue+base+x] = float32(b) / 255
		}
	}
}
