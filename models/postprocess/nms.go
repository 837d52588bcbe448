package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-yolov5/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float32 // Overlap strictly above this suppresses the lower scoring box.
	ClassAware   bool    // If true, suppress only within the same class.
}

// ApplyGreedyNMS performs greedy Non-Maximum Suppression.
//
// Candidates are stable-sorted by descending confidence, so equal scores keep their input order.
// Each surviving candidate is accepted in turn and deactivates every later candidate whose IoU
// with it exceeds the threshold. The input slice is not modified.
//
// Arguments:
//   - detections: The candidates, in any order.
//   - config: NMS configuration.
//
// Returns:
//   - The accepted detections in selection order. If no detections are provided, returns nil.
func ApplyGreedyNMS(detections []Detection, config NMSConfig) []Detection {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sorted := make([]Detection, n)
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	boxes := make([]images.Rect, n)
	for i, d := range sorted {
		boxes[i] = d.Rect()
	}

	active := make([]bool, n)
	for i := range active {
		active[i] = true
	}
	// Candidates neither accepted nor suppressed yet.
	live := n

	filtered := make([]Detection, 0, n)
	for i := 0; i < n && live > 0; i++ {
		if !active[i] {
			continue
		}
		active[i] = false
		live--
		filtered = append(filtered, sorted[i])

		for j := i + 1; j < n && live > 0; j++ {
			if !active[j] {
				continue
			}
			if config.ClassAware && sorted[i].ClassID != sorted[j].ClassID {
				continue
			}
			if images.CalculateIoU(boxes[i], boxes[j]) > config.IoUThreshold {
				active[j] = false
				live--
			}
		}
	}

	return filtered
}
