// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tof keeps the latest time-of-flight depth frame in display
// orientation and reduces it to left/middle/right distances and a
// steering error.
//
// Zone 0 is the top-right cell of the printed grid; rows read top to
// bottom and the physical left of the robot is the left of the print.
package tof

import (
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"
)

// Resolution is the number of zones in a frame.
type Resolution int

const (
	Res4x4 Resolution = 16
	Res8x8 Resolution = 64
)

// MaxZones is the capacity of every frame buffer.
const MaxZones = 64

// ParseResolution accepts 16 or 64.
func ParseResolution(zones int) (Resolution, error) {
	switch Resolution(zones) {
	case Res4x4, Res8x8:
		return Resolution(zones), nil
	}
	return 0, fmt.Errorf("unsupported ToF resolution %d (want 16 or 64)", zones)
}

// Zones returns the zone count.
func (r Resolution) Zones() int { return int(r) }

// Width returns the grid width (and height).
func (r Resolution) Width() int {
	if r == Res8x8 {
		return 8
	}
	return 4
}

// MaxHz is the fastest ranging frequency the sensor supports at r.
func (r Resolution) MaxHz() int {
	if r == Res8x8 {
		return 15
	}
	return 60
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width(), r.Width())
}

// Sentinels kept at the boundary for callers that only look at Value.
const (
	NoDistance = -1
	NoSteering = math.MinInt32
)

// Status qualifies a Reading.
type Status uint8

const (
	// StatusNotReady: the sensor never delivered a frame.
	StatusNotReady Status = iota
	// StatusNoData: frames arrived but no member zone had a valid reading.
	StatusNoData
	StatusValid
)

func (s Status) String() string {
	switch s {
	case StatusNoData:
		return "no_data"
	case StatusValid:
		return "valid"
	}
	return "not_ready"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "valid":
		*s = StatusValid
	case "no_data":
		*s = StatusNoData
	case "not_ready":
		*s = StatusNotReady
	default:
		return fmt.Errorf("unknown ToF status %q", b)
	}
	return nil
}

// Reading is a derived distance in millimeters. Value holds the sentinel
// when Status is not StatusValid.
type Reading struct {
	Value  int    `json:"value"`
	Status Status `json:"status"`
}

// Valid reports whether Value is a real measurement.
func (r Reading) Valid() bool { return r.Status == StatusValid }

// Ranger is the boundary with the ToF ranging driver.
type Ranger interface {
	SetResolution(zones int) error
	SetRangingFrequency(hz int) error
	StartRanging() error
	DataReady() bool
	// Frame fills dst with one distance per native zone index, in mm.
	Frame(dst []int16) error
}

// Grid is the ToF zone grid. It is not safe for concurrent use.
type Grid struct {
	clk    clock.Clock
	ranger Ranger

	res      Resolution
	ok       bool
	loopHz   int
	rangeHz  int
	lastPoll time.Time
	frames   uint64
	misses   uint64

	dist   [MaxZones]int16
	native [MaxZones]int16

	groups [numGroups][]int
	mask   [MaxZones]bool
}

// New returns a 4x4 grid with every zone invalid. Call Init before Poll.
func New(r Ranger, clk clock.Clock) *Grid {
	if clk == nil {
		clk = clock.New()
	}
	g := &Grid{clk: clk, ranger: r, res: Res4x4, loopHz: 10}
	for i := range g.dist {
		g.dist[i] = NoDistance
	}
	g.setDefaults()
	return g
}

// Init configures the sensor for res, starts ranging and restores the
// default groups. On error the grid stays inert and every Reading is
// StatusNotReady.
func (g *Grid) Init(res Resolution) error {
	g.ok = false
	if _, err := ParseResolution(int(res)); err != nil {
		return err
	}
	g.res = res
	g.setDefaults()
	if g.ranger == nil {
		return fmt.Errorf("tof: no ranging driver")
	}
	if err := g.ranger.SetResolution(res.Zones()); err != nil {
		return fmt.Errorf("tof: set resolution %s: %w", res, err)
	}
	g.rangeHz = g.clampRange(g.loopHz)
	if err := g.ranger.SetRangingFrequency(g.rangeHz); err != nil {
		return fmt.Errorf("tof: set ranging frequency %d Hz: %w", g.rangeHz, err)
	}
	if err := g.ranger.StartRanging(); err != nil {
		return fmt.Errorf("tof: start ranging: %w", err)
	}
	g.lastPoll = g.clk.Now()
	g.ok = true
	return nil
}

// Ready reports whether Init succeeded.
func (g *Grid) Ready() bool { return g.ok }

// Resolution returns the configured resolution.
func (g *Grid) Resolution() Resolution { return g.res }

func (g *Grid) clampRange(hz int) int {
	if hz > g.res.MaxHz() {
		return g.res.MaxHz()
	}
	return hz
}

// SetRate sets the poll rate, clamped to [1, 100] Hz. The sensor ranging
// frequency follows it, up to the resolution maximum.
func (g *Grid) SetRate(hz int) {
	if hz < 1 {
		hz = 1
	}
	if hz > 100 {
		hz = 100
	}
	g.loopHz = hz
	if !g.ok {
		return
	}
	if want := g.clampRange(hz); want != g.rangeHz {
		if err := g.ranger.SetRangingFrequency(want); err == nil {
			g.rangeHz = want
		}
	}
}

// Rate returns the poll rate.
func (g *Grid) Rate() int { return g.loopHz }

// RangingHz returns the frequency last applied to the sensor.
func (g *Grid) RangingHz() int { return g.rangeHz }

// Poll fetches one frame when the poll period has elapsed and the sensor
// has data. The native frame is flipped in both axes so the stored buffer
// is already in display orientation. It reports whether a frame was stored.
func (g *Grid) Poll() bool {
	if !g.ok {
		return false
	}
	now := g.clk.Now()
	if now.Sub(g.lastPoll) < time.Second/time.Duration(g.loopHz) {
		return false
	}
	g.lastPoll = now

	if !g.ranger.DataReady() {
		return false
	}
	n := g.res.Zones()
	if err := g.ranger.Frame(g.native[:n]); err != nil {
		g.misses++
		return false
	}
	g.store(g.native[:n])
	g.frames++
	return true
}

func (g *Grid) store(native []int16) {
	w := g.res.Width()
	h := len(native) / w
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			g.dist[r*w+c] = native[(h-1-r)*w+(w-1-c)]
		}
	}
}

// Frames counts stored frames.
func (g *Grid) Frames() uint64 { return g.frames }

// Misses counts frame fetches that failed.
func (g *Grid) Misses() uint64 { return g.misses }

// ZoneValue returns the stored distance of zone i, or NoDistance when i is
// out of range.
func (g *Grid) ZoneValue(i int) int {
	if i < 0 || i >= g.res.Zones() {
		return NoDistance
	}
	return int(g.dist[i])
}

// Distances returns a copy of the stored frame.
func (g *Grid) Distances() []int16 {
	out := make([]int16, g.res.Zones())
	copy(out, g.dist[:])
	return out
}

// GroupAverage is the mean of the valid (> 0) readings of the group's zones,
// truncated to whole millimeters.
func (g *Grid) GroupAverage(grp Group) Reading {
	if g.frames == 0 {
		return Reading{Value: NoDistance, Status: StatusNotReady}
	}
	members := g.Members(grp)
	if len(members) == 0 {
		return Reading{Value: NoDistance, Status: StatusNoData}
	}
	var sum, valid int
	for _, z := range members {
		if d := g.dist[z]; d > 0 {
			sum += int(d)
			valid++
		}
	}
	if valid == 0 {
		return Reading{Value: NoDistance, Status: StatusNoData}
	}
	return Reading{Value: sum / valid, Status: StatusValid}
}

// SteeringError is left average minus right average. Without data on
// either side it carries NoSteering, never zero.
func (g *Grid) SteeringError() Reading {
	l := g.GroupAverage(Left)
	r := g.GroupAverage(Right)
	if l.Valid() && r.Valid() {
		return Reading{Value: l.Value - r.Value, Status: StatusValid}
	}
	st := StatusNoData
	if l.Status == StatusNotReady || r.Status == StatusNotReady {
		st = StatusNotReady
	}
	return Reading{Value: NoSteering, Status: st}
}

// Averages bundles the three group averages and the steering error.
type Averages struct {
	Left     Reading `json:"left"`
	Middle   Reading `json:"middle"`
	Right    Reading `json:"right"`
	Steering Reading `json:"steering"`
}

// Averages computes all group averages at once.
func (g *Grid) Averages() Averages {
	return Averages{
		Left:     g.GroupAverage(Left),
		Middle:   g.GroupAverage(Middle),
		Right:    g.GroupAverage(Right),
		Steering: g.SteeringError(),
	}
}
