package preprocess

import (
	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-yolov5/models/model"
)

// Letterbox maps between source image coordinates and model input coordinates.
//
// With KeepAspectRatio the source is scaled uniformly by min(Wt/Wo, Ht/Ho) and centred, leaving
// PadX/PadY columns/rows of padding on the leading edges. Without it each axis is stretched to the
// target size independently and no padding is applied.
type Letterbox struct {
	SrcWidth, SrcHeight int
	DstWidth, DstHeight int
	ScaleX, ScaleY      float32
	PadX, PadY          int
	KeepAspectRatio     bool

	// Inverse ratios. With KeepAspectRatio both hold max(Wo/Wt, Ho/Ht).
	invX, invY float32
}

// NewLetterbox computes the transform from a srcW x srcH image to a dstW x dstH model input.
//
// Arguments:
//   - srcW, srcH: The source image size.
//   - dstW, dstH: The model input size.
//   - keepAspectRatio: Whether to scale uniformly and pad.
//
// Returns:
//   - Letterbox: The transform.
//   - error: An error matching model.ErrInvalidInput if the source has a zero dimension, or
//     model.ErrConfiguration if the target does.
func NewLetterbox(srcW, srcH, dstW, dstH int, keepAspectRatio bool) (Letterbox, error) {
	if srcW <= 0 || srcH <= 0 {
		return Letterbox{}, model.InvalidInputf("image size %dx%d", srcW, srcH)
	}
	if dstW <= 0 || dstH <= 0 {
		return Letterbox{}, model.Configurationf("model input size %dx%d", dstW, dstH)
	}

	wo, ho := float32(srcW), float32(srcH)
	wt, ht := float32(dstW), float32(dstH)

	lb := Letterbox{
		SrcWidth:        srcW,
		SrcHeight:       srcH,
		DstWidth:        dstW,
		DstHeight:       dstH,
		KeepAspectRatio: keepAspectRatio,
	}

	if !keepAspectRatio {
		lb.ScaleX, lb.ScaleY = wt/wo, ht/ho
		lb.invX, lb.invY = wo/wt, ho/ht
		return lb, nil
	}

	scale := math32.Min(wt/wo, ht/ho)
	lb.ScaleX, lb.ScaleY = scale, scale
	lb.PadX = int((wt - wo*scale) / 2)
	lb.PadY = int((ht - ho*scale) / 2)
	inv := math32.Max(wo/wt, ho/ht)
	lb.invX, lb.invY = inv, inv
	return lb, nil
}

// ResizedSize returns the size the source is resampled to before it is placed at (PadX, PadY).
func (l Letterbox) ResizedSize() (int, int) {
	if !l.KeepAspectRatio {
		return l.DstWidth, l.DstHeight
	}
	w := clampInt(int(math32.Round(float32(l.SrcWidth)*l.ScaleX)), 1, l.DstWidth-l.PadX)
	h := clampInt(int(math32.Round(float32(l.SrcHeight)*l.ScaleY)), 1, l.DstHeight-l.PadY)
	return w, h
}

// Forward maps a source point into model input coordinates.
func (l Letterbox) Forward(x, y float32) (float32, float32) {
	return x*l.ScaleX + float32(l.PadX), y*l.ScaleY + float32(l.PadY)
}

// Inverse maps a model input point back to source coordinates.
func (l Letterbox) Inverse(tx, ty float32) (float32, float32) {
	return (tx - float32(l.PadX)) * l.invX, (ty - float32(l.PadY)) * l.invY
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
