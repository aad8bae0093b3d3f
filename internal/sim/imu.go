// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim provides simulated drivers for running the robot stack
// without hardware.
package sim

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/loka_sensors/internal/imu"
)

// IMU is a simulated IMU event source. Queued events are delivered first;
// when Motion is set and the queue is empty it synthesizes a slow wobble
// with a tap spike every TapEvery.
type IMU struct {
	clk      clock.Clock
	start    time.Time
	last     time.Time
	queue    []imu.Event
	reports  imu.Reports
	BeginErr error

	// Motion enables synthesized samples at Interval.
	Motion   bool
	Interval time.Duration
	TapEvery time.Duration
}

// NewIMU returns a simulated IMU with an empty queue.
func NewIMU(clk clock.Clock) *IMU {
	if clk == nil {
		clk = clock.New()
	}
	now := clk.Now()
	return &IMU{clk: clk, start: now, last: now, Interval: 10 * time.Millisecond, TapEvery: 3 * time.Second}
}

// Begin records the requested reports and returns BeginErr.
func (s *IMU) Begin(reports imu.Reports) error {
	if s.BeginErr != nil {
		return s.BeginErr
	}
	s.reports = reports
	return nil
}

// Reports returns what Begin enabled.
func (s *IMU) Reports() imu.Reports { return s.reports }

// Push queues events for NextEvent.
func (s *IMU) Push(evs ...imu.Event) {
	s.queue = append(s.queue, evs...)
}

// Pending returns the number of queued events.
func (s *IMU) Pending() int { return len(s.queue) }

// NextEvent pops the next queued or synthesized event.
func (s *IMU) NextEvent() (imu.Event, bool) {
	if len(s.queue) == 0 && s.Motion {
		s.synthesize()
	}
	if len(s.queue) == 0 {
		return imu.Event{}, false
	}
	ev := s.queue[0]
	s.queue = s.queue[1:]
	return ev, true
}

func (s *IMU) synthesize() {
	now := s.clk.Now()
	if now.Sub(s.last) < s.Interval {
		return
	}
	s.last = now
	t := now.Sub(s.start).Seconds()

	roll := 20 * math.Sin(t) * math.Pi / 180
	pitch := 15 * math.Cos(t*0.7) * math.Pi / 180
	yaw := math.Mod(t*30, 360) * math.Pi / 180

	if s.reports.Rotation {
		s.queue = append(s.queue, rotationFromEuler(roll, pitch, yaw))
	}
	if s.reports.Gyro {
		s.queue = append(s.queue, imu.Gyro(
			20*math.Cos(t)*math.Pi/180,
			-15*0.7*math.Sin(t*0.7)*math.Pi/180,
			30*math.Pi/180,
		))
	}
	if s.reports.Accel {
		g := 9.8
		if s.TapEvery > 0 && math.Mod(t, s.TapEvery.Seconds()) < s.Interval.Seconds() {
			g += 4
		}
		s.queue = append(s.queue, imu.Accel(0, 0, g))
	}
}

// rotationFromEuler builds the ZYX quaternion for roll, pitch, yaw in radians.
func rotationFromEuler(roll, pitch, yaw float64) imu.Event {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)
	return imu.Rotation(
		cr*cp*cy+sr*sp*sy,
		sr*cp*cy-cr*sp*sy,
		cr*sp*cy+sr*cp*sy,
		cr*cp*sy-sr*sp*cy,
	)
}
