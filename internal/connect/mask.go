package connect

import (
	"fmt"

	"pulsenet/internal/model"
)

// Mask is a boolean adjacency matrix with one row per source unit and one
// column per target unit.
type Mask struct {
	rows int
	cols int
	bits []bool
}

func NewMask(rows, cols int) *Mask {
	return &Mask{rows: rows, cols: cols, bits: make([]bool, rows*cols)}
}

func (m *Mask) Rows() int { return m.rows }

func (m *Mask) Cols() int { return m.cols }

func (m *Mask) Set(src, dst int) {
	m.bits[src*m.cols+dst] = true
}

func (m *Mask) At(src, dst int) bool {
	return m.bits[src*m.cols+dst]
}

// Targets lists the target units a source unit reaches, in ascending order.
func (m *Mask) Targets(src int) []int {
	var out []int
	row := m.bits[src*m.cols : (src+1)*m.cols]
	for dst, on := range row {
		if on {
			out = append(out, dst)
		}
	}
	return out
}

func (m *Mask) FanOut(src int) int {
	n := 0
	for _, on := range m.bits[src*m.cols : (src+1)*m.cols] {
		if on {
			n++
		}
	}
	return n
}

func (m *Mask) FanIn(dst int) int {
	n := 0
	for src := 0; src < m.rows; src++ {
		if m.bits[src*m.cols+dst] {
			n++
		}
	}
	return n
}

func (m *Mask) Count() int {
	n := 0
	for _, on := range m.bits {
		if on {
			n++
		}
	}
	return n
}

// Compose chains two masks: src reaches dst when some middle unit links them.
func Compose(first, second *Mask) (*Mask, error) {
	if first.cols != second.rows {
		return nil, fmt.Errorf("%w: cannot compose %dx%d with %dx%d mask", model.ErrAssembly, first.rows, first.cols, second.rows, second.cols)
	}
	out := NewMask(first.rows, second.cols)
	for src := 0; src < first.rows; src++ {
		for _, mid := range first.Targets(src) {
			for _, dst := range second.Targets(mid) {
				out.Set(src, dst)
			}
		}
	}
	return out, nil
}

// Apply propagates per-source values through the mask and sums them per
// target.
func (m *Mask) Apply(values []int) []int {
	out := make([]int, m.cols)
	for src := 0; src < m.rows; src++ {
		for dst := 0; dst < m.cols; dst++ {
			if m.bits[src*m.cols+dst] {
				out[dst] += values[src]
			}
		}
	}
	return out
}
