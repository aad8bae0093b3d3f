// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mcu

import (
	"fmt"
	"strings"
)

// Features is the bitmask of subsystems enabled at Init.
type Features uint16

const (
	Light     Features = 0x0001
	RGB       Features = 0x0002
	Rotation  Features = 0x0004
	Gyro      Features = 0x0008
	Tap       Features = 0x0010
	Headlight Features = 0x0020
)

var featureNames = []struct {
	f    Features
	name string
}{
	{Light, "light"},
	{RGB, "rgb"},
	{Rotation, "rot"},
	{Gyro, "gyro"},
	{Tap, "tap"},
	{Headlight, "headlight"},
}

// Has reports whether every bit of f is set.
func (fs Features) Has(f Features) bool { return fs&f == f }

func (fs Features) imu() bool { return fs&(Rotation|Gyro|Tap) != 0 }

func (fs Features) String() string {
	var parts []string
	for _, n := range featureNames {
		if fs.Has(n.f) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// ParseFeatures reads a comma separated list such as "rot,gyro,tap,light".
func ParseFeatures(v string) (Features, error) {
	var fs Features
	for _, p := range strings.Split(v, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		found := false
		for _, n := range featureNames {
			if p == n.name || (p == "rotation" && n.f == Rotation) {
				fs |= n.f
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown feature %q", p)
		}
	}
	return fs, nil
}

// PowerState is shown on the RGB status LED.
type PowerState uint8

const (
	PowerBatRun PowerState = iota
	PowerUSB
	PowerInit
	PowerBatLow
	PowerBatFull
	PowerBatCharging
)

func (s PowerState) String() string {
	switch s {
	case PowerBatRun:
		return "bat_run"
	case PowerUSB:
		return "usb"
	case PowerInit:
		return "init"
	case PowerBatLow:
		return "bat_low"
	case PowerBatFull:
		return "bat_full"
	case PowerBatCharging:
		return "bat_charging"
	}
	return fmt.Sprintf("power(%d)", uint8(s))
}
