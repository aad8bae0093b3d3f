// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tof

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Cell glyphs of the printed grid.
const (
	GlyphUnselected = "."
	GlyphInvalid    = "-"
)

// Mask returns, per zone, whether it belongs to any group (with defaults
// applied to empty groups). It is rebuilt on every call.
func (g *Grid) Mask() []bool {
	for i := range g.mask {
		g.mask[i] = false
	}
	for _, grp := range Groups {
		for _, z := range g.Members(grp) {
			g.mask[z] = true
		}
	}
	out := make([]bool, g.res.Zones())
	copy(out, g.mask[:])
	return out
}

// Rows renders the grid top row first, left to right, one string per cell.
func (g *Grid) Rows() [][]string {
	mask := g.Mask()
	w := g.res.Width()
	h := g.res.Zones() / w
	rows := make([][]string, h)
	for r := 0; r < h; r++ {
		rows[r] = make([]string, w)
		for c := 0; c < w; c++ {
			idx := r*w + (w - 1 - c)
			switch v := g.dist[idx]; {
			case !mask[idx]:
				rows[r][c] = GlyphUnselected
			case v <= 0:
				rows[r][c] = GlyphInvalid
			default:
				rows[r][c] = strconv.Itoa(int(v))
			}
		}
	}
	return rows
}

// PrintZones writes the grid as tab separated rows followed by a blank line.
func (g *Grid) PrintZones(w io.Writer) error {
	var b strings.Builder
	for _, row := range g.Rows() {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// PrintAverages writes the three group averages on one line.
func (g *Grid) PrintAverages(w io.Writer) error {
	a := g.Averages()
	_, err := fmt.Fprintf(w, "L Avg: %d | M Avg: %d | R Avg: %d\n", a.Left.Value, a.Middle.Value, a.Right.Value)
	return err
}
