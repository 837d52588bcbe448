//go:build !tensordebug

package tensor

func checkIndex(Shape, []int) {}
