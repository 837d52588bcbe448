//go:build tensordebug

package tensor

import "fmt"

func checkIndex(shape Shape, idx []int) {
	if len(idx) != len(shape) {
		panic(fmt.Sprintf("tensor: index %v has %d axes, shape %v has %d", idx, len(idx), shape, len(shape)))
	}
	for i, v := range idx {
		if v < 0 || v >= shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range [0,%d) on axis %d", v, shape[i], i))
		}
	}
}
