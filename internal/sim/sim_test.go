package sim

import (
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/loka_sensors/internal/imu"
	"github.com/relabs-tech/loka_sensors/internal/light"
	"github.com/relabs-tech/loka_sensors/internal/orientation"
)

func TestIMUQueueFirst(t *testing.T) {
	s := NewIMU(clock.NewMock())
	require.NoError(t, s.Begin(imu.Reports{Gyro: true}))

	_, ok := s.NextEvent()
	assert.False(t, ok)

	s.Push(imu.Tap(), imu.Gyro(1, 2, 3))
	ev, ok := s.NextEvent()
	require.True(t, ok)
	assert.Equal(t, imu.KindTap, ev.Kind)
	ev, _ = s.NextEvent()
	assert.Equal(t, imu.Gyro(1, 2, 3), ev)
	assert.Zero(t, s.Pending())
}

func TestIMUSynthesizesEnabledReports(t *testing.T) {
	clk := clock.NewMock()
	s := NewIMU(clk)
	s.Motion = true
	require.NoError(t, s.Begin(imu.Reports{Rotation: true, Accel: true}))

	_, ok := s.NextEvent()
	assert.False(t, ok, "nothing before the first interval")

	clk.Add(500 * time.Millisecond)
	var kinds []imu.Kind
	for {
		ev, ok := s.NextEvent()
		if !ok {
			break
		}
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []imu.Kind{imu.KindRotation, imu.KindAccel}, kinds)
}

func TestRotationFromEuler(t *testing.T) {
	ev := rotationFromEuler(0.3, -0.2, 1.1)
	q := orientation.Quaternion{W: ev.W, X: ev.X, Y: ev.Y, Z: ev.Z}
	p := orientation.ToEuler(q)
	assert.InDelta(t, 0.3*180/math.Pi, p.Roll, 1e-9)
	assert.InDelta(t, -0.2*180/math.Pi, p.Pitch, 1e-9)
	assert.InDelta(t, 1.1*180/math.Pi, p.Yaw, 1e-9)
}

func TestLightSensorRegisters(t *testing.T) {
	l := NewLightSensor()
	m := light.NewMonitor(l)
	require.NoError(t, m.Init(time.Unix(0, 0)))
	assert.Equal(t, uint16(0x080E), l.Register(light.RegPSConf1_2))

	l.SetChannels(light.Reading{Proximity: 3, Ambient: 400, White: 500})
	require.True(t, m.Poll(time.Unix(1, 0)))
	assert.Equal(t, light.Reading{Proximity: 3, Ambient: 400, White: 500}, m.Reading())

	l.Fail(light.RegWhite, true)
	require.True(t, m.Poll(time.Unix(2, 0)))
	assert.Equal(t, 1, m.Misses())
	assert.Error(t, l.Tx(nil, nil))
}

func TestRangerObstacle(t *testing.T) {
	clk := clock.NewMock()
	r := NewRanger(clk)
	require.NoError(t, r.SetResolution(16))
	assert.Error(t, r.SetResolution(20))
	assert.False(t, r.DataReady())

	r.Obstacle = true
	require.NoError(t, r.StartRanging())
	assert.True(t, r.DataReady())

	dst := make([]int16, 16)
	require.NoError(t, r.Frame(dst))
	assert.Equal(t, int16(-1), dst[0])
	assert.Equal(t, int16(250), dst[4], "obstacle starts in column 0")
	assert.Equal(t, int16(1540), dst[5])

	clk.Add(2 * time.Second)
	require.NoError(t, r.Frame(dst))
	assert.Equal(t, int16(250), dst[5])
}

func TestRangerFixedFrame(t *testing.T) {
	r := NewRanger(clock.NewMock())
	require.NoError(t, r.StartRanging())
	assert.False(t, r.DataReady())

	frame := make([]int16, 16)
	frame[3] = 700
	r.SetFrame(frame)
	require.True(t, r.DataReady())

	dst := make([]int16, 16)
	require.NoError(t, r.Frame(dst))
	assert.Equal(t, int16(700), dst[3])
	assert.False(t, r.DataReady())
}
