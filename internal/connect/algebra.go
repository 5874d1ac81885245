// Package connect builds connection masks between shaped populations.
//
// Every builder maps flat unit indices through their tensor coordinates, so
// the same rules hold for populations of any rank.
package connect

import (
	"fmt"

	"pulsenet/internal/model"
)

func OneToOne(src, dst Shape) (*Mask, error) {
	if err := validatePair(src, dst); err != nil {
		return nil, err
	}
	if src.Size() != dst.Size() {
		return nil, fmt.Errorf("%w: one-to-one needs equal unit counts, got %s and %s", model.ErrAssembly, src, dst)
	}
	m := NewMask(src.Size(), dst.Size())
	for i := 0; i < src.Size(); i++ {
		m.Set(i, i)
	}
	return m, nil
}

func Full(src, dst Shape) (*Mask, error) {
	if err := validatePair(src, dst); err != nil {
		return nil, err
	}
	m := NewMask(src.Size(), dst.Size())
	for i := range m.bits {
		m.bits[i] = true
	}
	return m, nil
}

// DenseAlongAxis links every source unit to every target unit that shares
// its coordinate on the chosen axes.
func DenseAlongAxis(src Shape, srcAxis int, dst Shape, dstAxis int) (*Mask, error) {
	if err := validatePair(src, dst); err != nil {
		return nil, err
	}
	if err := checkAxis(src, srcAxis, "source"); err != nil {
		return nil, err
	}
	if err := checkAxis(dst, dstAxis, "target"); err != nil {
		return nil, err
	}
	if src[srcAxis] != dst[dstAxis] {
		return nil, fmt.Errorf("%w: axis length mismatch %s[%d] vs %s[%d]", model.ErrAssembly, src, srcAxis, dst, dstAxis)
	}

	// bucket targets by their coordinate on the shared axis
	slices := make([][]int, dst[dstAxis])
	for t := 0; t < dst.Size(); t++ {
		k := dst.Unravel(t)[dstAxis]
		slices[k] = append(slices[k], t)
	}

	m := NewMask(src.Size(), dst.Size())
	for s := 0; s < src.Size(); s++ {
		for _, t := range slices[src.Unravel(s)[srcAxis]] {
			m.Set(s, t)
		}
	}
	return m, nil
}

// ProjectAlongAxis collapses one source axis: each source unit feeds the
// target unit holding its remaining coordinates. dst must equal src with
// that axis removed.
func ProjectAlongAxis(src Shape, axis int, dst Shape) (*Mask, error) {
	if err := validatePair(src, dst); err != nil {
		return nil, err
	}
	if err := checkAxis(src, axis, "projection"); err != nil {
		return nil, err
	}
	if want := src.Without(axis); !want.Equal(dst) {
		return nil, fmt.Errorf("%w: projecting %s along axis %d gives %s, target is %s", model.ErrAssembly, src, axis, want, dst)
	}
	m := NewMask(src.Size(), dst.Size())
	for s := 0; s < src.Size(); s++ {
		m.Set(s, projectIndex(src, axis, dst, s))
	}
	return m, nil
}

// ExpandAlongAxis is the inverse of ProjectAlongAxis: each source unit feeds
// every target unit sharing its coordinates once the target axis is removed.
func ExpandAlongAxis(src Shape, dst Shape, axis int) (*Mask, error) {
	if err := validatePair(src, dst); err != nil {
		return nil, err
	}
	if err := checkAxis(dst, axis, "expansion"); err != nil {
		return nil, err
	}
	if want := dst.Without(axis); !want.Equal(src) {
		return nil, fmt.Errorf("%w: target %s without axis %d is %s, source is %s", model.ErrAssembly, dst, axis, want, src)
	}
	m := NewMask(src.Size(), dst.Size())
	for t := 0; t < dst.Size(); t++ {
		m.Set(projectIndex(dst, axis, src, t), t)
	}
	return m, nil
}

// Ring links unit i to unit (i+1) mod n within one population.
func Ring(size int) (*Mask, error) {
	if size < 2 {
		return nil, fmt.Errorf("%w: ring needs at least 2 units, got %d", model.ErrAssembly, size)
	}
	m := NewMask(size, size)
	for i := 0; i < size; i++ {
		m.Set(i, (i+1)%size)
	}
	return m, nil
}

// projectIndex drops one axis from the coordinate of index in full and ravels
// the rest into reduced.
func projectIndex(full Shape, axis int, reduced Shape, index int) int {
	coord := full.Unravel(index)
	rest := make([]int, 0, len(coord)-1)
	rest = append(rest, coord[:axis]...)
	rest = append(rest, coord[axis+1:]...)
	return reduced.Ravel(rest)
}

func validatePair(src, dst Shape) error {
	if err := src.Validate(); err != nil {
		return err
	}
	return dst.Validate()
}
