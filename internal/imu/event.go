// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "fmt"

// Kind tags the payload carried by an Event.
type Kind uint8

const (
	KindNone     Kind = iota
	KindRotation      // game rotation vector, unit quaternion
	KindGyro          // calibrated gyroscope, rad/s
	KindAccel         // accelerometer, m/s²
	KindTap           // hardware tap detector, no payload
)

func (k Kind) String() string {
	switch k {
	case KindRotation:
		return "rotation"
	case KindGyro:
		return "gyro"
	case KindAccel:
		return "accel"
	case KindTap:
		return "tap"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Event is a single report drained from the IMU driver.
type Event struct {
	Kind Kind `json:"kind"`

	// Rotation (W is the real part).
	W float64 `json:"w,omitempty"`
	X float64 `json:"x,omitempty"` // also gyro/accel X
	Y float64 `json:"y,omitempty"` // also gyro/accel Y
	Z float64 `json:"z,omitempty"` // also gyro/accel Z
}

// Rotation builds a rotation-vector event.
func Rotation(w, x, y, z float64) Event {
	return Event{Kind: KindRotation, W: w, X: x, Y: y, Z: z}
}

// Gyro builds a calibrated gyroscope event (rad/s).
func Gyro(x, y, z float64) Event {
	return Event{Kind: KindGyro, X: x, Y: y, Z: z}
}

// Accel builds an accelerometer event (m/s²).
func Accel(x, y, z float64) Event {
	return Event{Kind: KindAccel, X: x, Y: y, Z: z}
}

// Tap builds a hardware tap event.
func Tap() Event {
	return Event{Kind: KindTap}
}

// Reports selects which reports the driver should enable.
type Reports struct {
	Rotation bool
	Gyro     bool
	Accel    bool
	Tap      bool
}

// Any reports whether at least one report is requested.
func (r Reports) Any() bool {
	return r.Rotation || r.Gyro || r.Accel || r.Tap
}

// EventSource is the boundary with the IMU firmware driver.
// Begin performs the handshake and enables the requested reports.
// NextEvent returns the next pending event, or false when none is queued.
type EventSource interface {
	Begin(reports Reports) error
	NextEvent() (Event, bool)
}
