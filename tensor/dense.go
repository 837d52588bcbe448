// Package tensor - Flat float32 buffers addressed through per-axis strides.
package tensor

import (
	"fmt"

	"github.com/pkg/errors"
)

// Shape is the extent of each axis of a Dense buffer.
type Shape []int

// Size returns the number of elements a buffer of this shape holds.
func (s Shape) Size() int {
	if len(s) == 0 {
		return 0
	}
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Dims returns the number of axes.
func (s Shape) Dims() int { return len(s) }

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

func (s Shape) String() string { return fmt.Sprintf("%v", []int(s)) }

// Dense is a row-major float32 buffer with a fixed shape.
//
// Element (i0, i1, ..., iN) lives at data[i0*strides[0] + i1*strides[1] + ... + iN*strides[N]].
// Builds with the tensordebug tag check every index against its axis extent; regular builds only
// rely on the slice bounds check of the flat buffer.
type Dense struct {
	shape   Shape
	strides []int
	data    []float32
}

// New allocates a zero-filled buffer with the given shape.
//
// Arguments:
//   - shape: The extent of each axis. Every extent must be positive.
//
// Returns:
//   - *Dense: The buffer.
//   - error: An error if the shape is empty or has a non-positive extent.
func New(shape ...int) (*Dense, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	s := Shape(shape).Clone()
	return &Dense{
		shape:   s,
		strides: rowMajorStrides(s),
		data:    make([]float32, s.Size()),
	}, nil
}

// FromData wraps an existing flat slice without copying it.
func FromData(data []float32, shape ...int) (*Dense, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	s := Shape(shape).Clone()
	if len(data) != s.Size() {
		return nil, errors.Errorf("tensor: data length %d does not match shape %v (%d elements)", len(data), s, s.Size())
	}
	return &Dense{shape: s, strides: rowMajorStrides(s), data: data}, nil
}

func validateShape(shape []int) error {
	if len(shape) == 0 {
		return errors.New("tensor: shape must have at least one axis")
	}
	for i, d := range shape {
		if d <= 0 {
			return errors.Errorf("tensor: axis %d has non-positive extent %d", i, d)
		}
	}
	return nil
}

func rowMajorStrides(s Shape) []int {
	strides := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= s[i]
	}
	return strides
}

// Shape returns a copy of the buffer's shape.
func (t *Dense) Shape() Shape { return t.shape.Clone() }

// Strides returns a copy of the per-axis strides.
func (t *Dense) Strides() []int {
	out := make([]int, len(t.strides))
	copy(out, t.strides)
	return out
}

// Dims returns the number of axes.
func (t *Dense) Dims() int { return len(t.shape) }

// Len returns the number of elements.
func (t *Dense) Len() int { return len(t.data) }

// Data exposes the backing slice. Writes through it are visible to the buffer.
func (t *Dense) Data() []float32 { return t.data }

// Offset maps a multi-axis index to its position in the flat buffer.
func (t *Dense) Offset(idx ...int) int {
	checkIndex(t.shape, idx)
	off := 0
	for i, v := range idx {
		off += v * t.strides[i]
	}
	return off
}

// At returns the element at idx.
func (t *Dense) At(idx ...int) float32 { return t.data[t.Offset(idx...)] }

// Set stores v at idx.
func (t *Dense) Set(v float32, idx ...int) { t.data[t.Offset(idx...)] = v }

// Row returns the contiguous innermost-axis slice selected by the leading indices.
// The returned slice aliases the buffer.
func (t *Dense) Row(lead ...int) []float32 {
	if len(lead) != len(t.shape)-1 {
		panic(fmt.Sprintf("tensor: Row needs %d leading indices, got %d", len(t.shape)-1, len(lead)))
	}
	checkIndex(t.shape[:len(lead)], lead)
	off := 0
	for i, v := range lead {
		off += v * t.strides[i]
	}
	n := t.shape[len(t.shape)-1]
	return t.data[off : off+n : off+n]
}
