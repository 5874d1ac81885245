package connect

import (
	"fmt"
	"strconv"
	"strings"

	"pulsenet/internal/model"
)

// Shape is the tensor shape of a population. Units are laid out row-major,
// so the last axis varies fastest.
type Shape []int

// Size is the number of units. A rank-0 shape holds a single unit.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

func (s Shape) Rank() int {
	return len(s)
}

func (s Shape) Validate() error {
	for i, d := range s {
		if d <= 0 {
			return fmt.Errorf("%w: shape %s has non-positive extent on axis %d", model.ErrAssembly, s, i)
		}
	}
	return nil
}

func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s Shape) Unravel(index int) []int {
	coord := make([]int, len(s))
	for axis := len(s) - 1; axis >= 0; axis-- {
		coord[axis] = index % s[axis]
		index /= s[axis]
	}
	return coord
}

func (s Shape) Ravel(coord []int) int {
	index := 0
	for axis, c := range coord {
		index = index*s[axis] + c
	}
	return index
}

func (s Shape) Without(axis int) Shape {
	out := make(Shape, 0, len(s)-1)
	out = append(out, s[:axis]...)
	return append(out, s[axis+1:]...)
}

func (s Shape) Clone() Shape {
	return append(Shape(nil), s...)
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func checkAxis(s Shape, axis int, role string) error {
	if axis < 0 || axis >= len(s) {
		return fmt.Errorf("%w: %s axis %d out of range for shape %s", model.ErrAssembly, role, axis, s)
	}
	return nil
}
