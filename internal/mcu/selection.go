// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mcu

// Channel names one cached value that can be queried and printed.
type Channel uint8

const (
	Roll Channel = iota
	Pitch
	Yaw
	GyroX
	GyroY
	GyroZ
	Ambient
	Proximity
)

// Group is the printer section a channel belongs to.
type Group uint8

const (
	GroupRotation Group = iota
	GroupGyro
	GroupLight
	numGroups
)

func (c Channel) Group() Group {
	switch c {
	case Roll, Pitch, Yaw:
		return GroupRotation
	case GyroX, GyroY, GyroZ:
		return GroupGyro
	default:
		return GroupLight
	}
}

// Label is the printer prefix of c.
func (c Channel) Label() string {
	switch c {
	case Roll:
		return "Roll"
	case Pitch:
		return "Pitch"
	case Yaw:
		return "Yaw"
	case GyroX:
		return "X"
	case GyroY:
		return "Y"
	case GyroZ:
		return "Z"
	case Ambient:
		return "AMB"
	case Proximity:
		return "PROX"
	}
	return "?"
}

var groupCap = [numGroups]int{GroupRotation: 3, GroupGyro: 3, GroupLight: 2}

// SelectionLog records, per tick, which channels were requested and in
// which order. Duplicates are ignored and the first request wins.
type SelectionLog struct {
	order [numGroups][]Channel

	tapQueried bool
	tapSeen    bool
}

// Reset empties the log.
func (l *SelectionLog) Reset() {
	for g := range l.order {
		l.order[g] = l.order[g][:0]
	}
	l.tapQueried = false
	l.tapSeen = false
}

// Add records c unless already present or its group is full.
func (l *SelectionLog) Add(c Channel) {
	g := c.Group()
	for _, have := range l.order[g] {
		if have == c {
			return
		}
	}
	if len(l.order[g]) < groupCap[g] {
		l.order[g] = append(l.order[g], c)
	}
}

// Channels returns the requested channels of g in request order.
func (l *SelectionLog) Channels(g Group) []Channel {
	return l.order[g]
}

// Empty reports whether nothing was requested.
func (l *SelectionLog) Empty() bool {
	for _, o := range l.order {
		if len(o) > 0 {
			return false
		}
	}
	return !l.tapQueried
}

func (l *SelectionLog) addTap(tapped bool) {
	l.tapQueried = true
	if tapped {
		l.tapSeen = true
	}
}

// TapShown reports whether the tap flag was read true this tick.
func (l *SelectionLog) TapShown() bool {
	return l.tapQueried && l.tapSeen
}
