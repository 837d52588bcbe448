// Package images - Image loading, resizing and box geometry for detection.
package images

// Rect is a lightweight bounding box in integer pixel coordinates.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// RectFromXYWH builds a Rect from its top-left corner and extent.
func RectFromXYWH(x, y, w, h int) Rect {
	return Rect{X1: x, Y1: y, X2: x + w, Y2: y + h}
}

// Width returns X2-X1, which is negative for an inverted box.
func (r Rect) Width() int { return r.X2 - r.X1 }

// Height returns Y2-Y1, which is negative for an inverted box.
func (r Rect) Height() int { return r.Y2 - r.Y1 }

// Area returns Width*Height. Degenerate and inverted boxes have an area of zero or less.
func (r Rect) Area() int { return r.Width() * r.Height() }

// Empty reports whether the box covers no pixels.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// CalculateIoU returns the Intersection over Union of two boxes:
//
//	IoU = Area(r ∩ o) / (Area(r) + Area(o) - Area(r ∩ o))
//
// The result is 1.0 for identical boxes, 0.0 for disjoint or merely touching boxes, and is
// symmetric in its arguments. A box whose own area is zero or negative never overlaps anything,
// so the IoU is 0.0 whenever either input is degenerate; this also keeps the union away from zero.
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: A value in [0, 1].
//
// Example Usage:
// ```go
//
//	a := Rect{X1: 10, Y1: 10, X2: 60, Y2: 60}
//	b := Rect{X1: 15, Y1: 15, X2: 65, Y2: 65}
//	iou := CalculateIoU(a, b) // 2025 / 2975 = 0.68
//
// ```
func CalculateIoU(r, o Rect) float32 {
	areaR := r.Area()
	areaO := o.Area()
	if r.Empty() || o.Empty() || areaR <= 0 || areaO <= 0 {
		return 0
	}

	interW := min(r.X2, o.X2) - max(r.X1, o.X1)
	interH := min(r.Y2, o.Y2) - max(r.Y1, o.Y1)
	if interW <= 0 || interH <= 0 {
		return 0
	}
	inter := interW * interH

	return float32(inter) / float32(areaR+areaO-inter)
}
