// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/loka_sensors/internal/light"
)

var (
	hostOnce sync.Once
	hostErr  error
)

// initHost loads the periph host drivers once per process.
func initHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return hostErr
}

// Buses opens each named I2C bus once so that devices on the same bus
// share it. The zero value is ready to use.
type Buses struct {
	mu   sync.Mutex
	open map[string]i2c.BusCloser
}

// Open returns the bus called name; an empty name selects the first bus.
func (b *Buses) Open(name string) (i2c.Bus, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if bus, ok := b.open[name]; ok {
		return bus, nil
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c bus %q: %w", name, err)
	}
	if b.open == nil {
		b.open = map[string]i2c.BusCloser{}
	}
	b.open[name] = bus
	log.Printf("sensors: opened i2c bus %s", bus)
	return bus, nil
}

// Close closes every bus opened so far.
func (b *Buses) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for name, bus := range b.open {
		if err := bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("i2c bus %q: %w", name, err))
		}
	}
	b.open = nil
	return errors.Join(errs...)
}

// OpenIMU returns the BNO08x on busName at addr. The handshake happens in
// Begin, called by the motion poller.
func OpenIMU(b *Buses, busName string, addr uint16) (*BNO08x, error) {
	bus, err := b.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("IMU: %w", err)
	}
	log.Printf("IMU: BNO08x at 0x%02X on %s", addr, bus)
	return NewBNO08x(bus, addr), nil
}

// OpenLight returns a monitor for the VCNL4040 on busName.
func OpenLight(b *Buses, busName string) (*light.Monitor, error) {
	bus, err := b.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("light: %w", err)
	}
	return light.NewMonitor(&i2c.Dev{Bus: bus, Addr: light.Addr}), nil
}

// OpenHeadlight looks up the headlight GPIO by name.
func OpenHeadlight(name string) (gpio.PinIO, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("headlight: pin %q not found", name)
	}
	return pin, nil
}
