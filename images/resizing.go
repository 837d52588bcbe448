package images

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Resize scales img to exactly width x height with bilinear interpolation.
//
// An image that already has the requested size is returned unchanged so that pixel values
// survive an identity resize bit-for-bit.
//
// Arguments:
//   - img: The source image.
//   - width: The target width in pixels.
//   - height: The target height in pixels.
//
// Returns:
//   - image.Image: The resized image.
//   - error: An error if the target dimensions are not positive.
func Resize(img image.Image, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img, nil
	}
	return resize.Resize(uint(width), uint(height), img, resize.Bilinear), nil
}
