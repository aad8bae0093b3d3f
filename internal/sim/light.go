// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3"

	"github.com/relabs-tech/loka_sensors/internal/light"
)

// ErrNack is returned for registers marked as failing.
var ErrNack = errors.New("sim: i2c nack")

// LightSensor is a VCNL4040 register file implementing conn.Conn.
type LightSensor struct {
	mu   sync.Mutex
	regs map[byte]uint16
	fail map[byte]bool
	txs  int
}

// NewLightSensor returns a sensor that answers the ID probe.
func NewLightSensor() *LightSensor {
	return &LightSensor{
		regs: map[byte]uint16{light.RegID: light.DeviceID},
		fail: map[byte]bool{},
	}
}

func (l *LightSensor) String() string      { return "sim-vcnl4040" }
func (l *LightSensor) Duplex() conn.Duplex { return conn.Half }

// Tx implements a register write ([reg, lo, hi]) or read ([reg] + 2 bytes).
func (l *LightSensor) Tx(w, r []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs++
	if len(w) == 0 {
		return fmt.Errorf("sim: empty register address")
	}
	reg := w[0]
	if l.fail[reg] {
		return ErrNack
	}
	switch {
	case len(r) == 2:
		v := l.regs[reg]
		r[0], r[1] = byte(v), byte(v>>8)
	case len(w) == 3:
		l.regs[reg] = uint16(w[1]) | uint16(w[2])<<8
	default:
		return fmt.Errorf("sim: unsupported transfer w=%d r=%d", len(w), len(r))
	}
	return nil
}

// Set stores a register value.
func (l *LightSensor) Set(reg byte, v uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.regs[reg] = v
}

// Register returns a register value.
func (l *LightSensor) Register(reg byte) uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.regs[reg]
}

// SetChannels sets the three measurement registers.
func (l *LightSensor) SetChannels(r light.Reading) {
	l.Set(light.RegProximity, r.Proximity)
	l.Set(light.RegAmbient, r.Ambient)
	l.Set(light.RegWhite, r.White)
}

// Fail makes every transfer on reg fail until cleared.
func (l *LightSensor) Fail(reg byte, fail bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail[reg] = fail
}

// Transfers counts Tx calls.
func (l *LightSensor) Transfers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.txs
}
