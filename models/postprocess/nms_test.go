package postprocess

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-yolov5/images"
)

func det(class int, conf float32, x, y, w, h int) Detection {
	return Detection{ClassID: class, Confidence: conf, Left: x, Top: y, Width: w, Height: h}
}

func TestApplyGreedyNMS_SuppressesOverlap(t *testing.T) {
	a := det(0, 0.9, 10, 10, 50, 50)
	b := det(0, 0.8, 15, 15, 50, 50)

	out := ApplyGreedyNMS([]Detection{b, a}, NMSConfig{IoUThreshold: 0.3})
	assert.Equal(t, []Detection{a}, out)
}

func TestApplyGreedyNMS_Empty(t *testing.T) {
	assert.Nil(t, ApplyGreedyNMS(nil, NMSConfig{IoUThreshold: 0.3}))
	assert.Nil(t, ApplyGreedyNMS([]Detection{}, NMSConfig{IoUThreshold: 0.3}))
}

func TestApplyGreedyNMS_KeepsDisjointInConfidenceOrder(t *testing.T) {
	in := []Detection{
		det(1, 0.6, 0, 0, 10, 10),
		det(2, 0.9, 100, 100, 10, 10),
		det(3, 0.7, 200, 200, 10, 10),
	}
	out := ApplyGreedyNMS(in, NMSConfig{IoUThreshold: 0.3})
	require.Len(t, out, 3)
	assert.Equal(t, []int{2, 3, 1}, []int{out[0].ClassID, out[1].ClassID, out[2].ClassID})
	assert.Equal(t, float32(0.6), in[0].Confidence, "input is not reordered")
	assert.Equal(t, 1, in[0].ClassID)
}

func TestApplyGreedyNMS_StableOnEqualConfidence(t *testing.T) {
	first := det(7, 0.8, 0, 0, 40, 40)
	second := det(8, 0.8, 2, 2, 40, 40)
	out := ApplyGreedyNMS([]Detection{first, second}, NMSConfig{IoUThreshold: 0.3})
	assert.Equal(t, []Detection{first}, out)

	out = ApplyGreedyNMS([]Detection{second, first}, NMSConfig{IoUThreshold: 0.3})
	assert.Equal(t, []Detection{second}, out)
}

func TestApplyGreedyNMS_ThresholdIsStrict(t *testing.T) {
	// IoU of these two is exactly 1/3.
	a := det(0, 0.9, 0, 0, 20, 10)
	b := det(0, 0.8, 10, 0, 20, 10)
	require.InDelta(t, 1.0/3.0, images.CalculateIoU(a.Rect(), b.Rect()), 1e-6)

	assert.Len(t, ApplyGreedyNMS([]Detection{a, b}, NMSConfig{IoUThreshold: 0.5}), 2)
	assert.Len(t, ApplyGreedyNMS([]Detection{a, b}, NMSConfig{IoUThreshold: 0.3}), 1)
	assert.Len(t, ApplyGreedyNMS([]Detection{a, b}, NMSConfig{IoUThreshold: 1}), 2)
}

func TestApplyGreedyNMS_SuppressedBoxDoesNotSuppress(t *testing.T) {
	// b overlaps both a and c, c does not overlap a. Once a suppresses b, c must survive.
	a := det(0, 0.9, 0, 0, 20, 20)
	b := det(0, 0.8, 10, 0, 20, 20)
	c := det(0, 0.7, 22, 0, 20, 20)
	out := ApplyGreedyNMS([]Detection{c, b, a}, NMSConfig{IoUThreshold: 0.3})
	assert.Equal(t, []Detection{a, c}, out)
}

func TestApplyGreedyNMS_ClassAware(t *testing.T) {
	a := det(0, 0.9, 10, 10, 50, 50)
	b := det(1, 0.8, 15, 15, 50, 50)
	assert.Len(t, ApplyGreedyNMS([]Detection{a, b}, NMSConfig{IoUThreshold: 0.3}), 1)
	assert.Len(t, ApplyGreedyNMS([]Detection{a, b}, NMSConfig{IoUThreshold: 0.3, ClassAware: true}), 2)
}

func TestApplyGreedyNMS_DegenerateBoxesNeverOverlap(t *testing.T) {
	a := det(0, 0.9, 10, 10, 0, 50)
	b := det(0, 0.8, 10, 10, 0, 50)
	c := det(0, 0.7, 10, 10, 50, 50)
	assert.Len(t, ApplyGreedyNMS([]Detection{a, b, c}, NMSConfig{IoUThreshold: 0}), 3)
}

func TestApplyGreedyNMS_RandomisedProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		n := 1 + rng.Intn(60)
		in := make([]Detection, n)
		top := 0
		for i := range in {
			in[i] = det(rng.Intn(3), rng.Float32(), rng.Intn(200), rng.Intn(200), 1+rng.Intn(80), 1+rng.Intn(80))
			if in[i].Confidence > in[top].Confidence {
				top = i
			}
		}
		threshold := rng.Float32()
		out := ApplyGreedyNMS(in, NMSConfig{IoUThreshold: threshold})

		require.NotEmpty(t, out)
		assert.Equal(t, in[top], out[0], "highest confidence candidate is always accepted")
		for i := range out {
			if i > 0 {
				assert.GreaterOrEqual(t, out[i-1].Confidence, out[i].Confidence)
			}
			for j := i + 1; j < len(out); j++ {
				assert.LessOrEqual(t, images.CalculateIoU(out[i].Rect(), out[j].Rect()), threshold)
			}
		}
	}
}
