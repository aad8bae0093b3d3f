// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"fmt"

	"github.com/relabs-tech/loka_sensors/internal/mcu"
	"github.com/relabs-tech/loka_sensors/internal/tap"
	"github.com/relabs-tech/loka_sensors/internal/tof"
)

// Command actions.
const (
	ActionRetare         = "retare"
	ActionHeadlight      = "headlight"
	ActionTapSensitivity = "tap_sensitivity"
	ActionGroup          = "group"
	ActionRate           = "rate"
)

// Command is a control request sent to the robot.
type Command struct {
	Action string `json:"action"`
	On     bool   `json:"on,omitempty"`
	Level  string `json:"level,omitempty"`
	Group  string `json:"group,omitempty"`
	Zones  []int  `json:"zones,omitempty"`
	Hz     int    `json:"hz,omitempty"`
}

// Target is what a command acts on.
type Target struct {
	Controller *mcu.Controller
	Grid       *tof.Grid
}

// Apply executes c. It must run on the goroutine that owns the controller
// and the grid.
func (c Command) Apply(t Target) error {
	switch c.Action {
	case ActionRetare:
		t.Controller.Retare()
	case ActionHeadlight:
		return t.Controller.Headlight(c.On)
	case ActionTapSensitivity:
		s, err := tap.ParseSensitivity(c.Level)
		if err != nil {
			return err
		}
		t.Controller.SetTapSensitivity(s)
	case ActionGroup:
		if t.Grid == nil {
			return fmt.Errorf("no ToF grid")
		}
		g, err := tof.ParseGroup(c.Group)
		if err != nil {
			return err
		}
		if len(c.Zones) == 0 {
			t.Grid.SetDefault(g)
		} else {
			t.Grid.SetGroup(g, c.Zones)
		}
	case ActionRate:
		if c.Hz <= 0 {
			return fmt.Errorf("rate command needs hz > 0")
		}
		t.Controller.SetRate(c.Hz)
		if t.Grid != nil {
			t.Grid.SetRate(c.Hz)
		}
	default:
		return fmt.Errorf("unknown command %q", c.Action)
	}
	return nil
}
