// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Pose is the canonical representation of orientation for the robot, in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Quaternion is a rotation with W as the scalar part.
type Quaternion struct {
	W, X, Y, Z float64
}

// Identity is the zero rotation.
var Identity = Quaternion{W: 1}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{W: n.Real, X: n.Imag, Y: n.Jmag, Z: n.Kmag}
}

// Mul returns the Hamilton product q ⊗ r. Order matters.
func Mul(q, r Quaternion) Quaternion {
	return fromNumber(quat.Mul(q.number(), r.number()))
}

// Conjugate negates the vector part. For a unit quaternion this is the inverse.
func Conjugate(q Quaternion) Quaternion {
	return fromNumber(quat.Conj(q.number()))
}

const radToDeg = 180.0 / math.Pi

// ToEuler converts q to roll/pitch/yaw in degrees (aerospace ZYX convention).
// Pitch is clamped to ±90 when |sin(pitch)| reaches 1.
func ToEuler(q Quaternion) Pose {
	w, x, y, z := q.W, q.X, q.Y, q.Z

	sinrCosp := 2 * (w*x + y*z)
	cosrCosp := 1 - 2*(x*x+y*y)
	roll := math.Atan2(sinrCosp, cosrCosp) * radToDeg

	var pitch float64
	sinp := 2 * (w*y - z*x)
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(90, sinp)
	} else {
		pitch = math.Asin(sinp) * radToDeg
	}

	sinyCosp := 2 * (w*z + x*y)
	cosyCosp := 1 - 2*(y*y+z*z)
	yaw := math.Atan2(sinyCosp, cosyCosp) * radToDeg

	return Pose{Roll: roll, Pitch: pitch, Yaw: yaw}
}

// Engine turns raw rotation-vector samples into a pose relative to a tare
// reference captured from the first sample after Reset.
type Engine struct {
	tare   Quaternion
	tared  bool
	sample Quaternion
	pose   Pose
}

// NewEngine returns an engine waiting for its tare sample.
func NewEngine() *Engine {
	return &Engine{tare: Identity, sample: Identity}
}

// Process feeds one rotation sample. The first sample after Reset becomes
// the reference, so it always yields a zero pose.
func (e *Engine) Process(w, x, y, z float64) Pose {
	q := Quaternion{W: w, X: x, Y: y, Z: z}
	if !e.tared {
		e.tare = Conjugate(q)
		e.tared = true
	}
	e.sample = q
	e.pose = ToEuler(Mul(q, e.tare))
	return e.pose
}

// Reset drops the tare reference and zeroes the cached pose.
func (e *Engine) Reset() {
	e.tared = false
	e.tare = Identity
	e.sample = Identity
	e.pose = Pose{}
}

// Tared reports whether a reference has been captured.
func (e *Engine) Tared() bool { return e.tared }

// Pose returns the last computed pose.
func (e *Engine) Pose() Pose { return e.pose }

// Sample returns the last raw quaternion.
func (e *Engine) Sample() Quaternion { return e.sample }

// Reference returns the stored tare (the conjugate of the reference sample).
func (e *Engine) Reference() Quaternion { return e.tare }
