// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"
)

// Ranger is a simulated ToF sensor. With Obstacle set it renders a wall
// with an obstacle sweeping across the field of view; otherwise it returns
// the frame given to SetFrame.
type Ranger struct {
	clk     clock.Clock
	start   time.Time
	zones   int
	hz      int
	running bool
	frame   []int16
	fresh   bool

	Obstacle bool
}

// NewRanger returns a stopped 4x4 ranger.
func NewRanger(clk clock.Clock) *Ranger {
	if clk == nil {
		clk = clock.New()
	}
	return &Ranger{clk: clk, start: clk.Now(), zones: 16, hz: 1, frame: make([]int16, 64)}
}

func (r *Ranger) SetResolution(zones int) error {
	if zones != 16 && zones != 64 {
		return fmt.Errorf("sim: bad resolution %d", zones)
	}
	r.zones = zones
	return nil
}

func (r *Ranger) SetRangingFrequency(hz int) error {
	if hz < 1 {
		return fmt.Errorf("sim: bad frequency %d", hz)
	}
	r.hz = hz
	return nil
}

func (r *Ranger) StartRanging() error {
	r.running = true
	return nil
}

// Frequency returns the last applied ranging frequency.
func (r *Ranger) Frequency() int { return r.hz }

// SetFrame sets the native frame returned by the next Frame call.
func (r *Ranger) SetFrame(native []int16) {
	copy(r.frame, native)
	r.fresh = true
}

func (r *Ranger) DataReady() bool {
	return r.running && (r.Obstacle || r.fresh)
}

func (r *Ranger) Frame(dst []int16) error {
	if !r.running {
		return fmt.Errorf("sim: not ranging")
	}
	if r.Obstacle {
		r.render()
	}
	copy(dst, r.frame[:r.zones])
	r.fresh = false
	return nil
}

func (r *Ranger) render() {
	w := int(math.Sqrt(float64(r.zones)))
	t := r.clk.Now().Sub(r.start).Seconds()
	// obstacle column drifts across the view every 8 s
	col := int(math.Mod(t/8*float64(w), float64(w)))
	for row := 0; row < w; row++ {
		for c := 0; c < w; c++ {
			d := int16(1500 + 40*row)
			if c == col {
				d = 250
			}
			if row == 0 && c == 0 {
				d = -1
			}
			r.frame[row*w+c] = d
		}
	}
}
