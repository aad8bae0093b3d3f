// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"tinygo.org/x/drivers/bno08x"

	"github.com/relabs-tech/loka_sensors/internal/imu"
)

// hubReports maps each IMU report the poller can request to the hub
// sensor that produces it, in enable order.
var hubReports = []struct {
	id   bno08x.SensorID
	name string
	want func(imu.Reports) bool
}{
	{bno08x.SensorGameRotationVector, "game rotation vector", func(r imu.Reports) bool { return r.Rotation }},
	{bno08x.SensorGyroscope, "gyroscope", func(r imu.Reports) bool { return r.Gyro }},
	{bno08x.SensorAccelerometer, "accelerometer", func(r imu.Reports) bool { return r.Accel }},
	{bno08x.SensorTapDetector, "tap detector", func(r imu.Reports) bool { return r.Tap }},
}

// enabledReports lists the hub sensors needed for r.
func enabledReports(r imu.Reports) []bno08x.SensorID {
	var ids []bno08x.SensorID
	for _, h := range hubReports {
		if h.want(r) {
			ids = append(ids, h.id)
		}
	}
	return ids
}

// ReportName labels a hub sensor ID.
func ReportName(id bno08x.SensorID) string {
	for _, h := range hubReports {
		if h.id == id {
			return h.name
		}
	}
	return fmt.Sprintf("sensor 0x%02X", uint8(id))
}

// toEvent converts a hub report. Reports the poller never asks for, and
// tap reports with no flag set, yield no event.
func toEvent(v bno08x.SensorValue) (imu.Event, bool) {
	switch v.ID() {
	case bno08x.SensorGameRotationVector:
		q := v.Quaternion()
		return imu.Rotation(float64(q.Real), float64(q.I), float64(q.J), float64(q.K)), true
	case bno08x.SensorGyroscope:
		g := v.Gyroscope()
		return imu.Gyro(float64(g.X), float64(g.Y), float64(g.Z)), true
	case bno08x.SensorAccelerometer:
		a := v.Accelerometer()
		return imu.Accel(float64(a.X), float64(a.Y), float64(a.Z)), true
	case bno08x.SensorTapDetector:
		if v.TapDetector().Flags != 0 {
			return imu.Tap(), true
		}
	}
	return imu.Event{}, false
}
