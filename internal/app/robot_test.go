package app

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/loka_sensors/internal/config"
	"github.com/relabs-tech/loka_sensors/internal/imu"
	"github.com/relabs-tech/loka_sensors/internal/mcu"
	"github.com/relabs-tech/loka_sensors/internal/orientation"
	"github.com/relabs-tech/loka_sensors/internal/sim"
	"github.com/relabs-tech/loka_sensors/internal/telemetry"
	"github.com/relabs-tech/loka_sensors/internal/tof"
)

type fakePublisher struct {
	poses    []orientation.Pose
	gyros    []mcu.Vec3
	taps     []time.Time
	lights   []telemetry.LightState
	tofs     []telemetry.ToFState
	statuses []telemetry.Status
	err      error
}

func (p *fakePublisher) PublishPose(v orientation.Pose) error {
	p.poses = append(p.poses, v)
	return p.err
}

func (p *fakePublisher) PublishGyro(v mcu.Vec3) error {
	p.gyros = append(p.gyros, v)
	return p.err
}

func (p *fakePublisher) PublishTap(v time.Time) error {
	p.taps = append(p.taps, v)
	return p.err
}

func (p *fakePublisher) PublishLight(v telemetry.LightState) error {
	p.lights = append(p.lights, v)
	return p.err
}

func (p *fakePublisher) PublishToF(v telemetry.ToFState) error {
	p.tofs = append(p.tofs, v)
	return p.err
}

func (p *fakePublisher) PublishStatus(v telemetry.Status) error {
	p.statuses = append(p.statuses, v)
	return p.err
}

type robotRig struct {
	clk *clock.Mock
	imu *sim.IMU
	pub *fakePublisher
	out *bytes.Buffer
	r   *Robot
}

func newRobotRig(t *testing.T, mutate func(*config.Config)) *robotRig {
	t.Helper()
	cfg := config.Default()
	cfg.Simulate = true
	cfg.TickHz = 10
	cfg.ToFHz = 10
	cfg.Features |= mcu.Headlight
	cfg.HeadlightThreshold = 100
	if mutate != nil {
		mutate(cfg)
	}

	clk := clock.NewMock()
	d := simDrivers(clk)
	rig := &robotRig{
		clk: clk,
		imu: d.imu.(*sim.IMU),
		pub: &fakePublisher{},
		out: &bytes.Buffer{},
	}
	rig.r = NewRobot(cfg, d, clk, rig.pub, rig.out)
	return rig
}

func (rig *robotRig) step(t *testing.T) {
	t.Helper()
	rig.clk.Add(100 * time.Millisecond)
	require.True(t, rig.r.Controller().Tick())
	rig.r.Step()
}

func TestRobotStepPublishesEveryFeature(t *testing.T) {
	rig := newRobotRig(t, nil)
	require.Equal(t, mcu.Ready, rig.r.Controller().State())
	require.True(t, rig.r.Grid().Ready())

	rig.step(t)

	p := rig.pub
	require.Len(t, p.poses, 1)
	assert.InDelta(t, 0, p.poses[0].Roll, 1e-6, "first sample is the tare reference")
	assert.InDelta(t, 0, p.poses[0].Yaw, 1e-6)
	require.Len(t, p.gyros, 1)
	assert.InDelta(t, 30, p.gyros[0].Z, 1e-6)
	assert.Empty(t, p.taps)

	require.Len(t, p.lights, 1)
	assert.Equal(t, uint16(80), p.lights[0].Ambient)
	assert.True(t, p.lights[0].Headlight, "ambient below threshold")

	require.Len(t, p.tofs, 1)
	f := p.tofs[0]
	assert.Equal(t, 16, f.Resolution)
	assert.Equal(t, uint64(1), f.Frames)
	require.Len(t, f.Zones, 16)
	assert.Equal(t, int16(250), f.Zones[3], "obstacle column lands on the right after the flip")
	assert.Equal(t, int16(-1), f.Zones[15])

	require.Len(t, p.statuses, 1)
	assert.Equal(t, "ready", p.statuses[0].IMU)
	assert.True(t, p.statuses[0].Light)
	assert.True(t, p.statuses[0].ToF)
	assert.Equal(t, uint64(1), p.statuses[0].Ticks)

	rig.step(t)
	assert.Len(t, p.poses, 2)
	assert.Len(t, p.statuses, 1, "status only every few ticks")
}

func TestRobotPublishesTap(t *testing.T) {
	rig := newRobotRig(t, nil)
	rig.imu.Push(imu.Tap())

	rig.step(t)
	require.Len(t, rig.pub.taps, 1)
	assert.Equal(t, rig.clk.Now(), rig.pub.taps[0])

	rig.step(t)
	assert.Len(t, rig.pub.taps, 1, "tap flag is cleared on read")
}

func TestRobotRespectsFeatures(t *testing.T) {
	rig := newRobotRig(t, func(c *config.Config) {
		c.Features = mcu.Rotation
	})
	rig.step(t)

	assert.Len(t, rig.pub.poses, 1)
	assert.Empty(t, rig.pub.gyros)
	assert.Empty(t, rig.pub.lights)
	assert.Equal(t, "rot", rig.r.Status().Features)
}

func TestRobotAppliesCommandsOnTick(t *testing.T) {
	rig := newRobotRig(t, nil)
	rig.step(t)
	require.True(t, rig.r.Controller().HeadlightOn())

	rig.r.Enqueue(telemetry.Command{Action: telemetry.ActionHeadlight, On: false})
	rig.r.Enqueue(telemetry.Command{Action: telemetry.ActionRate, Hz: 20})
	rig.r.Enqueue(telemetry.Command{Action: telemetry.ActionGroup, Group: "left", Zones: []int{0, 1}})
	rig.r.Enqueue(telemetry.Command{Action: "warp"})
	assert.Equal(t, 10, rig.r.Controller().Rate(), "commands wait for the loop")

	rig.step(t)
	assert.Equal(t, 20, rig.r.Controller().Rate())
	assert.Equal(t, 20, rig.r.Grid().Rate())
	assert.Equal(t, []int{0, 1}, rig.r.Grid().Members(tof.Left))
	require.Len(t, rig.pub.lights, 2)
	assert.False(t, rig.pub.lights[1].Headlight)
}

func TestRobotEnqueueDropsWhenFull(t *testing.T) {
	rig := newRobotRig(t, nil)
	for i := 0; i < 20; i++ {
		rig.r.Enqueue(telemetry.Command{Action: telemetry.ActionRetare})
	}
	assert.Len(t, rig.r.cmds, cap(rig.r.cmds))
}

func TestRobotPublishErrorsDoNotStopLoop(t *testing.T) {
	rig := newRobotRig(t, nil)
	rig.pub.err = errors.New("broker gone")
	rig.step(t)
	rig.step(t)
	assert.Len(t, rig.pub.poses, 2)
}

func TestRobotPrintsDebugOutput(t *testing.T) {
	rig := newRobotRig(t, func(c *config.Config) {
		c.PrintDebug = true
	})
	rig.step(t)

	out := rig.out.String()
	assert.Contains(t, out, "Rot   > ")
	assert.Contains(t, out, "Light > AMB: 80   PROX: 12")

	quiet := newRobotRig(t, nil)
	quiet.step(t)
	assert.Empty(t, quiet.out.String())
}

func TestRobotWithoutDevices(t *testing.T) {
	cfg := config.Default()
	clk := clock.NewMock()
	r := NewRobot(cfg, &drivers{}, clk, nil, nil)

	assert.Equal(t, mcu.Inert, r.Controller().State())
	assert.False(t, r.Grid().Ready())

	clk.Add(time.Second)
	require.True(t, r.Controller().Tick())
	r.Step()

	s := r.Status()
	assert.Equal(t, "inert", s.IMU)
	assert.False(t, s.Light)
	assert.False(t, s.ToF)
	assert.Equal(t, tof.StatusNotReady, r.ToFState().Averages.Steering.Status)
}

func TestRobotRunStopsOnCancel(t *testing.T) {
	rig := newRobotRig(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, rig.r.Run(ctx))
}
