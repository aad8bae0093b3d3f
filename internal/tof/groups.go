// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tof

import (
	"fmt"
	"strings"
)

// Group is a named logical region of the grid.
type Group uint8

const (
	Left Group = iota
	Middle
	Right
	numGroups
)

// Groups lists every group in print order.
var Groups = []Group{Left, Middle, Right}

func (grp Group) String() string {
	switch grp {
	case Left:
		return "left"
	case Middle:
		return "middle"
	case Right:
		return "right"
	}
	return fmt.Sprintf("group(%d)", uint8(grp))
}

// ParseGroup accepts left, middle or right.
func ParseGroup(v string) (Group, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "left", "l":
		return Left, nil
	case "middle", "mid", "m":
		return Middle, nil
	case "right", "r":
		return Right, nil
	}
	return 0, fmt.Errorf("unknown ToF group %q", v)
}

// MaxGroupSize caps the members of a group.
const MaxGroupSize = MaxZones

// SetGroup replaces the members of grp. Out-of-range and repeated indices
// are dropped, the rest keep their order, capped at MaxGroupSize. An empty
// list selects the physical default. A list with no valid index leaves the
// group empty, which reads as its default.
func (g *Grid) SetGroup(grp Group, zones []int) {
	if grp >= numGroups {
		return
	}
	if len(zones) == 0 {
		g.SetDefault(grp)
		return
	}
	n := g.res.Zones()
	var seen [MaxZones]bool
	members := make([]int, 0, len(zones))
	for _, z := range zones {
		if z < 0 || z >= n || seen[z] {
			continue
		}
		if len(members) == MaxGroupSize {
			break
		}
		seen[z] = true
		members = append(members, z)
	}
	g.groups[grp] = members
}

// SetDefault restores the physical default of grp.
func (g *Grid) SetDefault(grp Group) {
	if grp >= numGroups {
		return
	}
	g.groups[grp] = defaultMembers(g.res, grp)
}

func (g *Grid) setDefaults() {
	for _, grp := range Groups {
		g.SetDefault(grp)
	}
}

// Members returns the zones of grp, falling back to the default when the
// group is empty.
func (g *Grid) Members(grp Group) []int {
	if grp >= numGroups {
		return nil
	}
	if len(g.groups[grp]) == 0 {
		return defaultMembers(g.res, grp)
	}
	out := make([]int, len(g.groups[grp]))
	copy(out, g.groups[grp])
	return out
}

// defaultMembers maps the logical groups to physical columns of the stored
// (display oriented) buffer. Column 0 is the rightmost printed column.
//
//	4x4: left = col 3, middle = cols 1-2, right = col 0
//	8x8: left = cols 7,6, middle = cols 2-5, right = cols 0,1
func defaultMembers(res Resolution, grp Group) []int {
	var cols []int
	if res == Res8x8 {
		switch grp {
		case Left:
			cols = []int{7, 6}
		case Middle:
			cols = []int{2, 3, 4, 5}
		case Right:
			cols = []int{0, 1}
		}
	} else {
		switch grp {
		case Left:
			cols = []int{3}
		case Middle:
			cols = []int{1, 2}
		case Right:
			cols = []int{0}
		}
	}
	w := res.Width()
	out := make([]int, 0, w*len(cols))
	for row := 0; row < w; row++ {
		for _, c := range cols {
			out = append(out, row*w+c)
		}
	}
	return out
}
