// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tap detects taps as short spikes of acceleration magnitude above
// an exponential moving average of that magnitude.
package tap

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"
)

// Gravity seeds the moving average; the robot is assumed to start at rest.
const Gravity = 9.8

// Sensitivity is a named preset fixing smoothing, threshold and refractory
// period together.
type Sensitivity uint8

const (
	Low Sensitivity = iota + 1
	Medium
	High
)

// Preset holds the parameters of one sensitivity level.
type Preset struct {
	Alpha      float64       // EMA smoothing factor
	Threshold  float64       // spike above EMA, m/s²
	Refractory time.Duration // minimum time between accepted taps
}

var presets = map[Sensitivity]Preset{
	Low:    {Alpha: 0.18, Threshold: 1.00, Refractory: 180 * time.Millisecond},
	Medium: {Alpha: 0.25, Threshold: 0.60, Refractory: 120 * time.Millisecond},
	High:   {Alpha: 0.30, Threshold: 0.35, Refractory: 80 * time.Millisecond},
}

// Preset returns the parameters for s. Out-of-range levels clamp to Low or High.
func (s Sensitivity) Preset() Preset {
	return presets[s.clamp()]
}

func (s Sensitivity) clamp() Sensitivity {
	switch {
	case s < Low:
		return Low
	case s > High:
		return High
	}
	return s
}

func (s Sensitivity) String() string {
	switch s.clamp() {
	case Low:
		return "low"
	case High:
		return "high"
	default:
		return "medium"
	}
}

// ParseSensitivity accepts "low", "medium", "high" or "1".."3".
func ParseSensitivity(v string) (Sensitivity, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "low", "1":
		return Low, nil
	case "medium", "med", "2":
		return Medium, nil
	case "high", "3":
		return High, nil
	}
	return 0, fmt.Errorf("unknown tap sensitivity %q (want low, medium or high)", v)
}

// Detector keeps the moving-average baseline and the one-shot tap flag.
//
// The flag may be raised from an interrupt context through Signal while the
// tick path runs; it is the only field shared across contexts.
type Detector struct {
	preset  Preset
	ema     float64
	lastTap time.Time
	flag    atomic.Bool
}

// NewDetector returns a detector at the given sensitivity with a resting baseline.
func NewDetector(s Sensitivity) *Detector {
	d := &Detector{}
	d.SetSensitivity(s)
	d.Reset()
	return d
}

// SetSensitivity switches preset without touching the baseline.
func (d *Detector) SetSensitivity(s Sensitivity) {
	d.preset = s.Preset()
}

// Reset reseeds the baseline with gravity and clears the flag and the
// last accepted tap time.
func (d *Detector) Reset() {
	d.ema = Gravity
	d.lastTap = time.Time{}
	d.flag.Store(false)
}

// Process feeds one accelerometer sample in m/s² and reports whether it
// was accepted as a tap. The baseline is updated on every sample.
func (d *Detector) Process(ax, ay, az float64, now time.Time) bool {
	mag := math.Sqrt(ax*ax + ay*ay + az*az)
	d.ema = (1-d.preset.Alpha)*d.ema + d.preset.Alpha*mag
	spike := mag - d.ema

	if spike > d.preset.Threshold && now.Sub(d.lastTap) > d.preset.Refractory {
		d.lastTap = now
		d.flag.Store(true)
		return true
	}
	return false
}

// Signal raises the flag directly, for hardware tap reports.
func (d *Detector) Signal() {
	d.flag.Store(true)
}

// Read returns the flag and clears it.
func (d *Detector) Read() bool {
	return d.flag.Swap(false)
}

// Pending reports the flag without clearing it.
func (d *Detector) Pending() bool {
	return d.flag.Load()
}

// Baseline returns the current moving average of |a|.
func (d *Detector) Baseline() float64 { return d.ema }

// Params returns the active preset.
func (d *Detector) Params() Preset { return d.preset }
