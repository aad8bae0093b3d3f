// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"io"
	"log"

	"github.com/benbjohnson/clock"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/relabs-tech/loka_sensors/internal/config"
	"github.com/relabs-tech/loka_sensors/internal/imu"
	"github.com/relabs-tech/loka_sensors/internal/light"
	"github.com/relabs-tech/loka_sensors/internal/mcu"
	"github.com/relabs-tech/loka_sensors/internal/sensors"
	"github.com/relabs-tech/loka_sensors/internal/sim"
	"github.com/relabs-tech/loka_sensors/internal/tof"
)

// drivers is the hardware (or simulated hardware) behind the controller
// and the ToF grid. Nil fields mean the device is not present.
type drivers struct {
	imu       imu.EventSource
	light     *light.Monitor
	headlight gpio.PinOut
	ranger    tof.Ranger
	closers   []io.Closer
}

func (d *drivers) Close() error {
	var errs []error
	for _, c := range d.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// openDrivers opens every device the configuration asks for. A device
// that fails to open is logged and left out; the controller then treats
// its feature as unavailable.
func openDrivers(cfg *config.Config, clk clock.Clock) *drivers {
	if cfg.Simulate {
		return simDrivers(clk)
	}
	d := &drivers{}
	buses := &sensors.Buses{}
	d.closers = append(d.closers, buses)

	if cfg.Features&(mcu.Rotation|mcu.Gyro|mcu.Tap) != 0 {
		if dev, err := sensors.OpenIMU(buses, cfg.IMUI2CBus, cfg.IMUI2CAddr); err != nil {
			log.Printf("robot: %v", err)
		} else {
			d.imu = dev
		}
	}
	if cfg.Features.Has(mcu.Light) {
		if mon, err := sensors.OpenLight(buses, cfg.LightI2CBus); err != nil {
			log.Printf("robot: %v", err)
		} else {
			d.light = mon
		}
	}
	if cfg.Features.Has(mcu.Headlight) && cfg.HeadlightPin != "" {
		if pin, err := sensors.OpenHeadlight(cfg.HeadlightPin); err != nil {
			log.Printf("robot: %v", err)
		} else {
			d.headlight = pin
		}
	}
	if cfg.ToFSerialPort != "" {
		if bridge, err := sensors.OpenToFBridge(cfg.ToFSerialPort, cfg.ToFBaudRate); err != nil {
			log.Printf("robot: %v", err)
		} else {
			d.ranger = bridge
			d.closers = append(d.closers, bridge)
		}
	}
	return d
}

// simDrivers returns a moving IMU, a light sensor in a dim room and a ToF
// sensor watching an obstacle sweep past.
func simDrivers(clk clock.Clock) *drivers {
	s := sim.NewIMU(clk)
	s.Motion = true

	ls := sim.NewLightSensor()
	ls.SetChannels(light.Reading{Proximity: 12, Ambient: 80, White: 140})

	r := sim.NewRanger(clk)
	r.Obstacle = true

	log.Println("robot: using simulated sensors")
	return &drivers{
		imu:       s,
		light:     light.NewMonitor(ls),
		headlight: &gpiotest.Pin{N: "SIM_HEADLIGHT"},
		ranger:    r,
	}
}
