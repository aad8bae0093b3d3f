package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/loka_sensors/internal/orientation"
	"github.com/relabs-tech/loka_sensors/internal/telemetry"
	"github.com/relabs-tech/loka_sensors/internal/tof"
)

func lit(pix []byte) int {
	n := 0
	for _, b := range pix {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}

func TestZoneText(t *testing.T) {
	assert.Equal(t, "412", zoneText(tof.Reading{Value: 412, Status: tof.StatusValid}))
	assert.Equal(t, "-12", zoneText(tof.Reading{Value: -12, Status: tof.StatusValid}))
	assert.Equal(t, "--", zoneText(tof.Reading{Value: tof.NoDistance, Status: tof.StatusNoData}))
}

func TestRenderDisplay(t *testing.T) {
	blank, _ := newCanvas()
	assert.Zero(t, lit(blank.Pix))

	data := &DisplayData{}
	waiting := renderDisplay(data)
	assert.NotZero(t, lit(waiting.Pix))

	data.setPose(orientation.Pose{Roll: 12.5, Pitch: -3, Yaw: 181})
	withPose := renderDisplay(data)
	assert.NotEqual(t, waiting.Pix, withPose.Pix)

	data.setToF(telemetry.ToFState{Averages: tof.Averages{
		Left:     tof.Reading{Value: 300, Status: tof.StatusValid},
		Middle:   tof.Reading{Value: 900, Status: tof.StatusValid},
		Right:    tof.Reading{Value: 1200, Status: tof.StatusValid},
		Steering: tof.Reading{Value: 900, Status: tof.StatusValid},
	}})
	full := renderDisplay(data)
	assert.NotEqual(t, withPose.Pix, full.Pix)
	assert.Equal(t, 128*64/8, len(full.Pix))
}

func TestSplashImage(t *testing.T) {
	assert.NotZero(t, lit(splashImage().Pix))
}
