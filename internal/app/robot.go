// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/loka_sensors/internal/config"
	"github.com/relabs-tech/loka_sensors/internal/light"
	"github.com/relabs-tech/loka_sensors/internal/mcu"
	"github.com/relabs-tech/loka_sensors/internal/orientation"
	"github.com/relabs-tech/loka_sensors/internal/telemetry"
	"github.com/relabs-tech/loka_sensors/internal/tof"
)

// statusEvery is how many ticks pass between status publishes.
const statusEvery = 50

// publisher is the subset of telemetry.Publisher the robot loop uses.
type publisher interface {
	PublishPose(orientation.Pose) error
	PublishGyro(mcu.Vec3) error
	PublishTap(time.Time) error
	PublishLight(telemetry.LightState) error
	PublishToF(telemetry.ToFState) error
	PublishStatus(telemetry.Status) error
}

// Robot ties the motion poller and the ToF grid to telemetry and the
// debug printer. Everything runs on the goroutine that calls Step or Run;
// commands arrive through a channel.
type Robot struct {
	clk  clock.Clock
	cfg  *config.Config
	ctrl *mcu.Controller
	grid *tof.Grid
	pub  publisher
	out  io.Writer
	cmds chan telemetry.Command
}

// NewRobot initializes the controller and the grid on top of d. pub and
// out may be nil.
func NewRobot(cfg *config.Config, d *drivers, clk clock.Clock, pub publisher, out io.Writer) *Robot {
	ctrl := mcu.New(mcu.Options{
		Clock:       clk,
		IMU:         d.imu,
		Light:       d.light,
		Sensitivity: cfg.TapSensitivity,
		Hz:          cfg.TickHz,
	})
	ctrl.Init(cfg.Features)

	if d.headlight != nil && ctrl.LightReady() {
		err := ctrl.ConfigureHeadlight(light.Headlight{
			Pin:        d.headlight,
			Threshold:  cfg.HeadlightThreshold,
			ActiveHigh: cfg.HeadlightActiveHigh,
			Source:     cfg.HeadlightSource,
		})
		if err != nil {
			log.Printf("robot: headlight: %v", err)
		}
	}

	grid := tof.New(d.ranger, clk)
	grid.SetRate(cfg.ToFHz)
	if d.ranger != nil {
		if err := grid.Init(cfg.ToFResolution); err != nil {
			log.Printf("robot: ToF unavailable: %v", err)
		} else {
			log.Printf("robot: ToF ranging %s at %d Hz", grid.Resolution(), grid.RangingHz())
		}
	}
	for g, zones := range map[tof.Group][]int{tof.Left: cfg.ToFLeft, tof.Middle: cfg.ToFMiddle, tof.Right: cfg.ToFRight} {
		if zones != nil {
			grid.SetGroup(g, zones)
		}
	}

	return &Robot{
		clk:  clk,
		cfg:  cfg,
		ctrl: ctrl,
		grid: grid,
		pub:  pub,
		out:  out,
		cmds: make(chan telemetry.Command, 16),
	}
}

// Controller returns the motion poller.
func (r *Robot) Controller() *mcu.Controller { return r.ctrl }

// Grid returns the ToF grid.
func (r *Robot) Grid() *tof.Grid { return r.grid }

// Enqueue hands a command to the loop; it is dropped when the queue is full.
func (r *Robot) Enqueue(c telemetry.Command) {
	select {
	case r.cmds <- c:
	default:
		log.Printf("robot: command queue full, dropping %q", c.Action)
	}
}

// Run ticks the controller until ctx is done.
func (r *Robot) Run(ctx context.Context) error {
	err := r.ctrl.Run(ctx, r.Step)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Step is the work done after every controller tick: apply pending
// commands, poll the grid, publish and print.
func (r *Robot) Step() {
	r.applyCommands()
	newFrame := r.grid.Poll()

	f := r.cfg.Features
	var (
		pose   orientation.Pose
		gyro   mcu.Vec3
		lr     light.Reading
		tapped bool
	)
	if f.Has(mcu.Rotation) {
		pose = r.ctrl.Rotation()
	}
	if f.Has(mcu.Gyro) {
		gyro = r.ctrl.Gyro()
	}
	if f.Has(mcu.Tap) {
		tapped = r.ctrl.ReadTap()
	}
	if f.Has(mcu.Light) {
		lr = r.ctrl.Light()
	}

	if r.pub != nil {
		r.publish(pose, gyro, lr, tapped, newFrame)
	}
	if r.out != nil && r.cfg.PrintDebug {
		r.print(newFrame)
	}
}

func (r *Robot) applyCommands() {
	for {
		select {
		case c := <-r.cmds:
			if err := c.Apply(telemetry.Target{Controller: r.ctrl, Grid: r.grid}); err != nil {
				log.Printf("robot: command %q: %v", c.Action, err)
			} else {
				log.Printf("robot: applied command %q", c.Action)
			}
		default:
			return
		}
	}
}

func (r *Robot) publish(pose orientation.Pose, gyro mcu.Vec3, lr light.Reading, tapped, newFrame bool) {
	f := r.cfg.Features
	var errs []error
	if f.Has(mcu.Rotation) {
		errs = append(errs, r.pub.PublishPose(pose))
	}
	if f.Has(mcu.Gyro) {
		errs = append(errs, r.pub.PublishGyro(gyro))
	}
	if tapped {
		errs = append(errs, r.pub.PublishTap(r.clk.Now()))
	}
	if f.Has(mcu.Light) && r.ctrl.LightReady() {
		errs = append(errs, r.pub.PublishLight(telemetry.LightState{Reading: lr, Headlight: r.ctrl.HeadlightOn()}))
	}
	if newFrame {
		errs = append(errs, r.pub.PublishToF(r.ToFState()))
	}
	if r.ctrl.Ticks()%statusEvery == 1 {
		errs = append(errs, r.pub.PublishStatus(r.Status()))
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("robot: %v", err)
	}
}

func (r *Robot) print(newFrame bool) {
	labels := r.cfg.PrintLabels
	if err := r.ctrl.PrintIMU(r.out, labels); err != nil {
		log.Printf("robot: print: %v", err)
	}
	if err := r.ctrl.PrintLight(r.out, labels); err != nil {
		log.Printf("robot: print: %v", err)
	}
	if newFrame {
		if err := r.grid.PrintZones(r.out); err != nil {
			log.Printf("robot: print: %v", err)
		}
		if err := r.grid.PrintAverages(r.out); err != nil {
			log.Printf("robot: print: %v", err)
		}
	}
}

// ToFState snapshots the grid for telemetry.
func (r *Robot) ToFState() telemetry.ToFState {
	return telemetry.ToFState{
		Resolution: r.grid.Resolution().Zones(),
		Zones:      r.grid.Distances(),
		Averages:   r.grid.Averages(),
		Frames:     r.grid.Frames(),
	}
}

// Status summarizes subsystem health.
func (r *Robot) Status() telemetry.Status {
	return telemetry.Status{
		Features: r.ctrl.Features().String(),
		IMU:      r.ctrl.State().String(),
		Light:    r.ctrl.LightReady(),
		ToF:      r.grid.Ready(),
		Power:    r.ctrl.PowerState().String(),
		Ticks:    r.ctrl.Ticks(),
		Time:     r.clk.Now().Format(time.RFC3339),
	}
}

// RunRobot reads the global configuration, opens the sensors and runs the
// robot loop until interrupted.
func RunRobot() error {
	cfg := config.Get()
	clk := clock.New()

	d := openDrivers(cfg, clk)
	defer d.Close()

	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDRobot)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	topics := telemetry.TopicsFromConfig(cfg)
	var out io.Writer
	if cfg.PrintDebug {
		out = os.Stdout
	}
	robot := NewRobot(cfg, d, clk, telemetry.NewPublisher(client, topics), out)

	if topics.Command != "" {
		if err := telemetry.Subscribe(client, topics.Command, robot.Enqueue); err != nil {
			return fmt.Errorf("robot: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("robot: running at %d Hz (features=%s)", robot.ctrl.Rate(), cfg.Features)
	err = robot.Run(ctx)
	log.Println("robot: shutting down")
	return err
}
