// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/loka_sensors/internal/config"
	"github.com/relabs-tech/loka_sensors/internal/mcu"
	"github.com/relabs-tech/loka_sensors/internal/orientation"
	"github.com/relabs-tech/loka_sensors/internal/telemetry"
)

func formatPose(p orientation.Pose) string {
	return fmt.Sprintf("[POSE]  ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f", p.Roll, p.Pitch, p.Yaw)
}

func formatGyro(g mcu.Vec3) string {
	return fmt.Sprintf("[GYRO]  X=%7.2f  Y=%7.2f  Z=%7.2f deg/s", g.X, g.Y, g.Z)
}

func formatLight(s telemetry.LightState) string {
	head := "off"
	if s.Headlight {
		head = "on"
	}
	return fmt.Sprintf("[LIGHT] AMB=%5d  WHITE=%5d  PROX=%5d  headlight=%s", s.Ambient, s.White, s.Proximity, head)
}

func formatToF(s telemetry.ToFState) string {
	a := s.Averages
	steer := "-"
	if a.Steering.Valid() {
		steer = fmt.Sprint(a.Steering.Value)
	}
	return fmt.Sprintf("[TOF]   %dz  L=%d  M=%d  R=%d  steer=%s  frame=%d",
		s.Resolution, a.Left.Value, a.Middle.Value, a.Right.Value, steer, s.Frames)
}

func formatStatus(s telemetry.Status) string {
	return fmt.Sprintf("[STAT]  features=%s imu=%s light=%t tof=%t power=%s ticks=%d",
		s.Features, s.IMU, s.Light, s.ToF, s.Power, s.Ticks)
}

// RunConsoleMQTT prints every telemetry topic until interrupted.
func RunConsoleMQTT() error {
	cfg := config.Get()
	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	t := telemetry.TopicsFromConfig(cfg)
	var out io.Writer = os.Stdout
	line := func(s string) { fmt.Fprintln(out, s) }

	subs := []error{
		telemetry.Subscribe(client, t.Pose, func(p orientation.Pose) { line(formatPose(p)) }),
		telemetry.Subscribe(client, t.Gyro, func(g mcu.Vec3) { line(formatGyro(g)) }),
		telemetry.Subscribe(client, t.Tap, func(e telemetry.TapEvent) { line("[TAP]   ((( Tap ))) " + e.Time) }),
		telemetry.Subscribe(client, t.Light, func(s telemetry.LightState) { line(formatLight(s)) }),
		telemetry.Subscribe(client, t.ToF, func(s telemetry.ToFState) { line(formatToF(s)) }),
		telemetry.Subscribe(client, t.Status, func(s telemetry.Status) { line(formatStatus(s)) }),
	}
	for _, err := range subs {
		if err != nil {
			return err
		}
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	return nil
}
