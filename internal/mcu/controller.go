// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mcu owns the fixed-rate tick loop of the robot's main board: it
// drains IMU events into the orientation engine and tap detector, caches
// gyro rates, and polls the light sensor on its own slower cadence.
package mcu

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/loka_sensors/internal/imu"
	"github.com/relabs-tech/loka_sensors/internal/light"
	"github.com/relabs-tech/loka_sensors/internal/orientation"
	"github.com/relabs-tech/loka_sensors/internal/tap"
)

const (
	// MaxEventsPerTick bounds how long a tick can spend draining the IMU.
	MaxEventsPerTick = 6

	DefaultHz = 10
	MinHz     = 1
	MaxHz     = 100
)

// Vec3 is a cached three-axis value.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// State is the lifecycle of the IMU path.
type State uint8

const (
	Uninitialized State = iota
	Ready
	// Inert means the IMU handshake failed; the controller never polls it.
	Inert
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Inert:
		return "inert"
	}
	return "uninitialized"
}

// Options wires the controller to its drivers. IMU and Light may be nil
// when the corresponding features are not used.
type Options struct {
	Clock       clock.Clock
	IMU         imu.EventSource
	Light       *light.Monitor
	Sensitivity tap.Sensitivity
	Hz          int
}

// Controller is the motion poller. It is not safe for concurrent use except
// for the tap flag, which may be raised through SignalTap from any goroutine.
type Controller struct {
	clk    clock.Clock
	imu    imu.EventSource
	light  *light.Monitor
	engine *orientation.Engine
	taps   *tap.Detector

	features Features
	state    State
	imuErr   error
	lightOK  bool

	hz       int
	lastTick time.Time
	ticks    uint64

	gyro  Vec3 // deg/s
	accel Vec3 // m/s²
	power PowerState

	sel SelectionLog
}

// New builds a controller; call Init before ticking.
func New(opts Options) *Controller {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	sens := opts.Sensitivity
	if sens == 0 {
		sens = tap.Medium
	}
	c := &Controller{
		clk:    clk,
		imu:    opts.IMU,
		light:  opts.Light,
		engine: orientation.NewEngine(),
		taps:   tap.NewDetector(sens),
	}
	c.SetRate(opts.Hz)
	return c
}

// Init enables the given features and performs the driver handshakes.
// It reports whether the IMU is available; a failed IMU leaves the rest
// of the controller working.
func (c *Controller) Init(features Features) bool {
	c.features = features
	c.state = Uninitialized
	c.imuErr = nil

	if features.imu() {
		c.imuErr = c.beginIMU()
		if c.imuErr != nil {
			c.state = Inert
			log.Printf("mcu: IMU unavailable, motion features disabled: %v", c.imuErr)
		} else {
			c.state = Ready
			c.resetMotion()
			log.Printf("mcu: IMU ready (features=%s)", features)
		}
	}

	c.lightOK = false
	if features.Has(Light) {
		if c.light == nil {
			log.Printf("mcu: light feature enabled without a light sensor")
		} else if err := c.light.Init(c.clk.Now()); err != nil {
			log.Printf("mcu: light sensor unavailable: %v", err)
		} else {
			c.lightOK = true
		}
	}

	if features.Has(RGB) {
		c.power = PowerBatRun
	}

	c.lastTick = c.clk.Now()
	return c.state == Ready
}

func (c *Controller) beginIMU() error {
	if c.imu == nil {
		return errors.New("no IMU driver")
	}
	return c.imu.Begin(imu.Reports{
		Rotation: c.features.Has(Rotation),
		Gyro:     c.features.Has(Gyro),
		Accel:    c.features.Has(Tap),
		Tap:      c.features.Has(Tap),
	})
}

// resetMotion clears the tare, cached rates and the tap baseline.
func (c *Controller) resetMotion() {
	c.engine.Reset()
	c.gyro = Vec3{}
	c.accel = Vec3{}
	c.taps.Reset()
}

// SetRate sets the tick rate, clamped to [MinHz, MaxHz]. Zero selects DefaultHz.
func (c *Controller) SetRate(hz int) {
	switch {
	case hz == 0:
		hz = DefaultHz
	case hz < MinHz:
		hz = MinHz
	case hz > MaxHz:
		hz = MaxHz
	}
	c.hz = hz
}

// Rate returns the clamped tick rate.
func (c *Controller) Rate() int { return c.hz }

// Period is the minimum time between two ticks.
func (c *Controller) Period() time.Duration {
	return time.Second / time.Duration(c.hz)
}

// SetTapSensitivity switches the tap preset.
func (c *Controller) SetTapSensitivity(s tap.Sensitivity) {
	c.taps.SetSensitivity(s)
}

// Tick runs one poll cycle if the tick period has elapsed and reports
// whether it ran. A skipped tick changes no state.
func (c *Controller) Tick() bool {
	now := c.clk.Now()
	if now.Sub(c.lastTick) < c.Period() {
		return false
	}
	c.lastTick = now
	c.ticks++

	c.sel.Reset()

	if c.state == Ready {
		c.pollIMU(now)
	}
	if c.lightOK {
		c.light.Poll(now)
	}
	return true
}

// Run ticks until ctx is done, sleeping on the clock between ticks.
// onTick, if set, is called after every tick that ran.
func (c *Controller) Run(ctx context.Context, onTick func()) error {
	for {
		if c.Tick() && onTick != nil {
			onTick()
		}
		timer := c.clk.Timer(c.lastTick.Add(c.Period()).Sub(c.clk.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Controller) pollIMU(now time.Time) {
	for i := 0; i < MaxEventsPerTick; i++ {
		ev, ok := c.imu.NextEvent()
		if !ok {
			return
		}
		c.dispatch(ev, now)
	}
}

func (c *Controller) dispatch(ev imu.Event, now time.Time) {
	switch ev.Kind {
	case imu.KindRotation:
		c.engine.Process(ev.W, ev.X, ev.Y, ev.Z)
	case imu.KindGyro:
		c.gyro = Vec3{X: ev.X * radToDeg, Y: ev.Y * radToDeg, Z: ev.Z * radToDeg}
	case imu.KindAccel:
		if c.features.Has(Tap) {
			c.accel = Vec3{X: ev.X, Y: ev.Y, Z: ev.Z}
			c.taps.Process(ev.X, ev.Y, ev.Z, now)
		}
	case imu.KindTap:
		if c.features.Has(Tap) {
			c.taps.Signal()
		}
	}
}

const radToDeg = 180 / math.Pi

// Retare makes the next rotation sample the new reference and zeroes the
// cached pose, gyro rates and acceleration.
func (c *Controller) Retare() {
	c.engine.Reset()
	c.gyro = Vec3{}
	c.accel = Vec3{}
}

// Query returns the cached value of each channel in the order given and
// records them in this tick's selection log.
func (c *Controller) Query(chs ...Channel) []float64 {
	out := make([]float64, len(chs))
	for i, ch := range chs {
		out[i] = c.value(ch)
		c.sel.Add(ch)
	}
	return out
}

// Rotation returns roll, pitch and yaw in degrees and logs all three.
func (c *Controller) Rotation() orientation.Pose {
	c.Query(Roll, Pitch, Yaw)
	return c.engine.Pose()
}

// Gyro returns the cached rates in deg/s and logs all three axes.
func (c *Controller) Gyro() Vec3 {
	c.Query(GyroX, GyroY, GyroZ)
	return c.gyro
}

// Light returns the cached light channels and logs ambient then proximity.
func (c *Controller) Light() light.Reading {
	c.Query(Ambient, Proximity)
	return c.lightReading()
}

// ReadTap returns the tap flag and clears it.
func (c *Controller) ReadTap() bool {
	t := c.taps.Read()
	c.sel.addTap(t)
	return t
}

// SignalTap raises the tap flag, for use from an interrupt handler.
func (c *Controller) SignalTap() { c.taps.Signal() }

func (c *Controller) value(ch Channel) float64 {
	p := c.engine.Pose()
	switch ch {
	case Roll:
		return p.Roll
	case Pitch:
		return p.Pitch
	case Yaw:
		return p.Yaw
	case GyroX:
		return c.gyro.X
	case GyroY:
		return c.gyro.Y
	case GyroZ:
		return c.gyro.Z
	case Ambient:
		return float64(c.lightReading().Ambient)
	case Proximity:
		return float64(c.lightReading().Proximity)
	}
	return 0
}

func (c *Controller) lightReading() light.Reading {
	if c.light == nil {
		return light.Reading{}
	}
	return c.light.Reading()
}

// ConfigureHeadlight installs the automatic headlight. The Headlight and
// Light features must both be enabled.
func (c *Controller) ConfigureHeadlight(h light.Headlight) error {
	if !c.features.Has(Headlight | Light) {
		return fmt.Errorf("mcu: headlight needs features %s", Headlight|Light)
	}
	if c.light == nil {
		return errors.New("mcu: no light sensor")
	}
	return c.light.ConfigureHeadlight(h)
}

// Headlight forces the headlight on or off.
func (c *Controller) Headlight(on bool) error {
	if c.light == nil {
		return nil
	}
	return c.light.Headlight(on)
}

// HeadlightOn reports the last level driven on the headlight.
func (c *Controller) HeadlightOn() bool {
	return c.light != nil && c.light.HeadlightOn()
}

// SetPowerState records the state shown by the RGB LED.
func (c *Controller) SetPowerState(s PowerState) { c.power = s }

// PowerState returns the last recorded power state.
func (c *Controller) PowerState() PowerState { return c.power }

// Selection returns this tick's selection log.
func (c *Controller) Selection() *SelectionLog { return &c.sel }

// State returns the IMU lifecycle state.
func (c *Controller) State() State { return c.state }

// IMUErr returns the handshake error when State is Inert.
func (c *Controller) IMUErr() error { return c.imuErr }

// LightReady reports whether the light sensor answered at Init.
func (c *Controller) LightReady() bool { return c.lightOK }

// Features returns the mask passed to Init.
func (c *Controller) Features() Features { return c.features }

// Ticks counts ticks that ran.
func (c *Controller) Ticks() uint64 { return c.ticks }

// Pose returns the cached pose without touching the selection log.
func (c *Controller) Pose() orientation.Pose { return c.engine.Pose() }

// GyroRates returns the cached gyro rates without touching the selection log.
func (c *Controller) GyroRates() Vec3 { return c.gyro }

// Accel returns the last accelerometer sample used for tap detection.
func (c *Controller) Accel() Vec3 { return c.accel }

// TapPending reports the tap flag without clearing it.
func (c *Controller) TapPending() bool { return c.taps.Pending() }
