// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package light

// VCNL4040 proximity / ambient light sensor registers.
const (
	Addr = 0x60 // fixed 7-bit I2C address

	RegALSConf    = 0x00
	RegPSConf1_2  = 0x03
	RegPSConf3_MS = 0x04
	RegProximity  = 0x08
	RegAmbient    = 0x09
	RegWhite      = 0x0A
	RegID         = 0x0C

	// DeviceID is the low 12 bits expected in RegID.
	DeviceID = 0x186
)

// initSequence configures continuous ALS + proximity sensing.
var initSequence = []struct {
	reg byte
	val uint16
}{
	{RegALSConf, 0x0000},    // ALS on, 80 ms integration
	{RegPSConf1_2, 0x080E},  // PS on, 1/40 duty, 16-bit output
	{RegPSConf3_MS, 0x4710}, // smart persistence, 200 mA LED
}
