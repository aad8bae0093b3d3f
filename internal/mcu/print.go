// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mcu

import (
	"fmt"
	"io"
	"strings"
)

// PrintIMU writes the rotation and gyro channels requested this tick, in
// request order, followed by a tap banner if a tap was read this tick.
// Nothing is written when nothing was requested.
func (c *Controller) PrintIMU(w io.Writer, labels bool) error {
	var lines []string

	if s := c.formatGroup(GroupRotation, "Rot   > ", labels); s != "" {
		lines = append(lines, s)
	}
	if s := c.formatGroup(GroupGyro, "Gyro  > ", labels); s != "" {
		lines = append(lines, s)
	}
	if c.sel.TapShown() {
		lines = append(lines, "((( Tap )))")
	}
	if len(lines) == 0 {
		return nil
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

// PrintLight writes the light channels requested this tick.
func (c *Controller) PrintLight(w io.Writer, labels bool) error {
	s := c.formatGroup(GroupLight, "Light > ", labels)
	if s == "" {
		return nil
	}
	_, err := fmt.Fprintln(w, s)
	return err
}

func (c *Controller) formatGroup(g Group, prefix string, labels bool) string {
	chs := c.sel.Channels(g)
	if len(chs) == 0 {
		return ""
	}
	var b strings.Builder
	if labels {
		b.WriteString(prefix)
	}
	for i, ch := range chs {
		if i > 0 {
			b.WriteString("   ")
		}
		if labels {
			b.WriteString(ch.Label())
			b.WriteString(": ")
		}
		if g == GroupLight {
			fmt.Fprintf(&b, "%d", uint16(c.value(ch)))
		} else {
			fmt.Fprintf(&b, "%.1f", c.value(ch))
		}
	}
	return b.String()
}
