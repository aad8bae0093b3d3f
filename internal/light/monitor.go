// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package light polls the VCNL4040 proximity/ambient/white channels and
// drives the automatic headlight.
package light

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

// PollInterval is the light cadence, independent of the main tick rate.
const PollInterval = 50 * time.Millisecond

// Source selects the channel compared against the headlight threshold.
type Source uint8

const (
	SourceAmbient Source = iota
	SourceWhite
)

func (s Source) String() string {
	if s == SourceWhite {
		return "white"
	}
	return "ambient"
}

// ParseSource accepts "ambient"/"amb" or "white".
func ParseSource(v string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "ambient", "amb", "":
		return SourceAmbient, nil
	case "white":
		return SourceWhite, nil
	}
	return 0, fmt.Errorf("unknown light source %q (want ambient or white)", v)
}

// Reading is one snapshot of the three channels.
type Reading struct {
	Proximity uint16 `json:"proximity"`
	Ambient   uint16 `json:"ambient"`
	White     uint16 `json:"white"`
}

// Headlight configures the automatic headlight.
type Headlight struct {
	Pin        gpio.PinOut
	Threshold  uint16 // 0 disables the headlight entirely
	ActiveHigh bool
	Source     Source
}

// Monitor caches the last successful reading of each channel.
type Monitor struct {
	dev      conn.Conn
	ok       bool
	lastPoll time.Time
	reading  Reading
	misses   int

	head    Headlight
	headOn  bool
	headSet bool
}

// NewMonitor wraps a register-level connection to the sensor.
func NewMonitor(dev conn.Conn) *Monitor {
	return &Monitor{dev: dev}
}

// Init probes the sensor and writes the sensing configuration. On failure
// the monitor stays inert and Poll never touches the bus.
func (m *Monitor) Init(now time.Time) error {
	m.ok = false
	m.lastPoll = now
	if m.dev == nil {
		return fmt.Errorf("light: no device")
	}
	id, err := m.read(RegID)
	if err != nil {
		return fmt.Errorf("light: probe: %w", err)
	}
	if id&0x0FFF != DeviceID {
		return fmt.Errorf("light: unexpected device id 0x%04X", id)
	}
	for _, w := range initSequence {
		if err := m.write(w.reg, w.val); err != nil {
			return fmt.Errorf("light: write reg 0x%02X: %w", w.reg, err)
		}
	}
	m.ok = true
	return nil
}

// Ready reports whether Init succeeded.
func (m *Monitor) Ready() bool { return m.ok }

// Poll reads the three channels when PollInterval has elapsed since the
// previous poll, then updates the headlight. A failed register read keeps
// the previous value of that channel. It reports whether a poll happened.
func (m *Monitor) Poll(now time.Time) bool {
	if !m.ok || now.Sub(m.lastPoll) < PollInterval {
		return false
	}
	m.lastPoll = now

	if v, err := m.read(RegProximity); err == nil {
		m.reading.Proximity = v
	} else {
		m.misses++
	}
	if v, err := m.read(RegAmbient); err == nil {
		m.reading.Ambient = v
	} else {
		m.misses++
	}
	if v, err := m.read(RegWhite); err == nil {
		m.reading.White = v
	} else {
		m.misses++
	}

	if m.headSet {
		sense := m.reading.Ambient
		if m.head.Source == SourceWhite {
			sense = m.reading.White
		}
		m.drive(sense < m.head.Threshold)
	}
	return true
}

// Reading returns the cached channels.
func (m *Monitor) Reading() Reading { return m.reading }

// Misses counts register reads that failed since construction.
func (m *Monitor) Misses() int { return m.misses }

// ConfigureHeadlight installs the headlight and switches it off.
// A zero threshold leaves the headlight unconfigured.
func (m *Monitor) ConfigureHeadlight(h Headlight) error {
	m.head = h
	m.headSet = h.Threshold > 0 && h.Pin != nil
	if h.Pin == nil {
		return nil
	}
	return m.drive(false)
}

// HeadlightConfigured reports whether a pin and non-zero threshold are set.
func (m *Monitor) HeadlightConfigured() bool { return m.headSet }

// Headlight forces the headlight on or off. It is ignored when the
// headlight is not configured; the next poll may override it.
func (m *Monitor) Headlight(on bool) error {
	if !m.headSet {
		return nil
	}
	return m.drive(on)
}

// HeadlightOn reports the last level driven.
func (m *Monitor) HeadlightOn() bool { return m.headOn }

func (m *Monitor) drive(on bool) error {
	level := gpio.Level(on == m.head.ActiveHigh)
	if err := m.head.Pin.Out(level); err != nil {
		return fmt.Errorf("light: headlight %s: %w", m.head.Pin, err)
	}
	m.headOn = on
	return nil
}

func (m *Monitor) read(reg byte) (uint16, error) {
	var r [2]byte
	if err := m.dev.Tx([]byte{reg}, r[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(r[:]), nil
}

func (m *Monitor) write(reg byte, val uint16) error {
	w := []byte{reg, 0, 0}
	binary.LittleEndian.PutUint16(w[1:], val)
	return m.dev.Tx(w, nil)
}
