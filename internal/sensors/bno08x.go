// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/bno08x"

	"github.com/relabs-tech/loka_sensors/internal/imu"
)

// DefaultBNOAddr is the BNO08x address with SA0 low.
const DefaultBNOAddr = bno08x.DefaultAddress

// skipLimit bounds how many unused hub reports NextEvent discards per call.
const skipLimit = 16

// BNO08x adapts the SH-2 hub driver to imu.EventSource.
type BNO08x struct {
	dev  *bno08x.Device
	addr uint16

	// Interval is the requested report period.
	Interval time.Duration
}

// NewBNO08x returns the hub at addr on bus. periph's i2c.Bus satisfies
// drivers.I2C.
func NewBNO08x(bus drivers.I2C, addr uint16) *BNO08x {
	if addr == 0 {
		addr = DefaultBNOAddr
	}
	return &BNO08x{
		dev:      bno08x.NewI2C(bus),
		addr:     addr,
		Interval: 10 * time.Millisecond,
	}
}

// Begin resets the hub, waits for its product ID and enables the
// requested reports.
func (b *BNO08x) Begin(r imu.Reports) error {
	if err := b.dev.Configure(bno08x.Config{Address: b.addr}); err != nil {
		return fmt.Errorf("bno08x: configure at 0x%02X: %w", b.addr, err)
	}
	if ids := b.dev.ProductIDs(); ids.NumEntries > 0 {
		p := ids.Entries[0]
		log.Printf("bno08x: part %d sw %d.%d.%d", p.PartNumber, p.VersionMajor, p.VersionMinor, p.VersionPatch)
	}

	interval := uint32(b.Interval / time.Microsecond)
	for _, id := range enabledReports(r) {
		if err := b.dev.EnableReport(id, interval); err != nil {
			return fmt.Errorf("bno08x: enable %s: %w", ReportName(id), err)
		}
	}
	return nil
}

// NextEvent returns the next report the poller understands. Bus errors
// read as "no event".
func (b *BNO08x) NextEvent() (imu.Event, bool) {
	for i := 0; i < skipLimit; i++ {
		v, ok := b.dev.GetSensorEvent()
		if !ok {
			return imu.Event{}, false
		}
		if ev, ok := toEvent(v); ok {
			return ev, true
		}
	}
	return imu.Event{}, false
}
