package tof

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRanger struct {
	zones    int
	hz       []int
	started  bool
	ready    bool
	frame    []int16
	frameErr error
	resErr   error
	fetches  int
}

func (f *fakeRanger) SetResolution(zones int) error {
	if f.resErr != nil {
		return f.resErr
	}
	f.zones = zones
	return nil
}

func (f *fakeRanger) SetRangingFrequency(hz int) error {
	f.hz = append(f.hz, hz)
	return nil
}

func (f *fakeRanger) StartRanging() error {
	f.started = true
	return nil
}

func (f *fakeRanger) DataReady() bool { return f.ready }

func (f *fakeRanger) Frame(dst []int16) error {
	f.fetches++
	if f.frameErr != nil {
		return f.frameErr
	}
	copy(dst, f.frame)
	return nil
}

// nativeOf returns the native index that lands on stored zone i.
func nativeOf(res Resolution, i int) int {
	return res.Zones() - 1 - i
}

func newGrid(t *testing.T, res Resolution) (*Grid, *fakeRanger, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	r := &fakeRanger{ready: true, frame: make([]int16, res.Zones())}
	for i := range r.frame {
		r.frame[i] = NoDistance
	}
	g := New(r, clk)
	require.NoError(t, g.Init(res))
	return g, r, clk
}

// feed stores one frame given in display (stored) order.
func feed(t *testing.T, g *Grid, r *fakeRanger, clk *clock.Mock, stored []int16) {
	t.Helper()
	for i, v := range stored {
		r.frame[nativeOf(g.Resolution(), i)] = v
	}
	clk.Add(time.Second)
	require.True(t, g.Poll())
}

func fill(n int, v int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestInitConfiguresSensor(t *testing.T) {
	g, r, _ := newGrid(t, Res8x8)
	assert.True(t, g.Ready())
	assert.Equal(t, 64, r.zones)
	assert.True(t, r.started)
	assert.Equal(t, []int{10}, r.hz)
	assert.Equal(t, 15, Res8x8.MaxHz())
}

func TestInitFailureIsInert(t *testing.T) {
	clk := clock.NewMock()
	r := &fakeRanger{ready: true, resErr: errors.New("i2c timeout")}
	g := New(r, clk)
	require.Error(t, g.Init(Res4x4))
	assert.False(t, g.Ready())

	clk.Add(time.Second)
	assert.False(t, g.Poll())
	assert.Equal(t, 0, r.fetches)
	assert.Equal(t, StatusNotReady, g.GroupAverage(Left).Status)
	assert.Equal(t, NoDistance, g.GroupAverage(Left).Value)

	assert.Error(t, New(nil, clk).Init(Res4x4))
	assert.Error(t, New(r, clk).Init(Resolution(32)))
}

func TestRangingFrequencyFollowsRate(t *testing.T) {
	g, r, _ := newGrid(t, Res8x8)
	g.SetRate(50)
	assert.Equal(t, 50, g.Rate())
	assert.Equal(t, 15, g.RangingHz())

	g.SetRate(5)
	assert.Equal(t, 5, g.RangingHz())
	assert.Equal(t, []int{10, 15, 5}, r.hz)

	g.SetRate(0)
	assert.Equal(t, 1, g.Rate())
	g.SetRate(1000)
	assert.Equal(t, 100, g.Rate())
}

func TestPollIsRateLimited(t *testing.T) {
	g, r, clk := newGrid(t, Res4x4)
	g.SetRate(10)

	clk.Add(50 * time.Millisecond)
	assert.False(t, g.Poll())
	clk.Add(50 * time.Millisecond)
	assert.True(t, g.Poll())
	assert.False(t, g.Poll())

	clk.Add(100 * time.Millisecond)
	r.ready = false
	assert.False(t, g.Poll())
	assert.Equal(t, 1, r.fetches)
	assert.EqualValues(t, 1, g.Frames())
}

func TestPollFailureKeepsPreviousFrame(t *testing.T) {
	g, r, clk := newGrid(t, Res4x4)
	feed(t, g, r, clk, fill(16, 300))

	r.frameErr = errors.New("crc")
	r.frame[0] = 999
	clk.Add(time.Second)
	assert.False(t, g.Poll())
	assert.EqualValues(t, 1, g.Misses())
	assert.Equal(t, 300, g.ZoneValue(15))
}

func TestPollFlipsRowsAndColumns(t *testing.T) {
	g, r, clk := newGrid(t, Res4x4)
	for i := range r.frame {
		r.frame[i] = int16(100 + i)
	}
	clk.Add(time.Second)
	require.True(t, g.Poll())

	// native (row 3, col 3) lands on stored zone 0, native zone 0 on stored 15.
	assert.Equal(t, 115, g.ZoneValue(0))
	assert.Equal(t, 100, g.ZoneValue(15))
	// native (row 1, col 2) -> stored (row 2, col 1).
	assert.Equal(t, 100+1*4+2, g.ZoneValue(2*4+1))
}

func TestZoneValueOutOfRange(t *testing.T) {
	g, _, _ := newGrid(t, Res4x4)
	assert.Equal(t, NoDistance, g.ZoneValue(-1))
	assert.Equal(t, NoDistance, g.ZoneValue(16))
	assert.Equal(t, NoDistance, g.ZoneValue(0))
}

func TestDefaultGroups(t *testing.T) {
	g, _, _ := newGrid(t, Res4x4)
	assert.Equal(t, []int{3, 7, 11, 15}, g.Members(Left))
	assert.Equal(t, []int{1, 2, 5, 6, 9, 10, 13, 14}, g.Members(Middle))
	assert.Equal(t, []int{0, 4, 8, 12}, g.Members(Right))

	g, _, _ = newGrid(t, Res8x8)
	left := g.Members(Left)
	assert.Len(t, left, 16)
	assert.Equal(t, []int{7, 6, 15, 14}, left[:4])
	assert.Len(t, g.Members(Middle), 32)
	assert.Equal(t, []int{0, 1, 8, 9}, g.Members(Right)[:4])
}

func TestSetGroup(t *testing.T) {
	g, _, _ := newGrid(t, Res4x4)

	g.SetGroup(Left, []int{7, 3, 20, -1, 7, 11})
	assert.Equal(t, []int{7, 3, 11}, g.Members(Left))

	g.SetGroup(Left, []int{20})
	assert.Equal(t, []int{3, 7, 11, 15}, g.Members(Left), "empty group reads as default")

	g.SetGroup(Right, []int{1})
	g.SetGroup(Right, nil)
	assert.Equal(t, []int{0, 4, 8, 12}, g.Members(Right))

	g.SetGroup(Group(9), []int{1})
	assert.Nil(t, g.Members(Group(9)))
}

func TestSetGroupCapsMembers(t *testing.T) {
	g, _, _ := newGrid(t, Res8x8)
	zones := make([]int, 0, 80)
	for i := 0; i < 80; i++ {
		zones = append(zones, i%64)
	}
	g.SetGroup(Middle, zones)
	assert.Len(t, g.Members(Middle), MaxGroupSize)
}

func TestGroupAverage(t *testing.T) {
	g, r, clk := newGrid(t, Res4x4)
	assert.Equal(t, Reading{Value: NoDistance, Status: StatusNotReady}, g.GroupAverage(Left))

	g.SetGroup(Middle, []int{1, 2, 5})
	stored := fill(16, NoDistance)
	feed(t, g, r, clk, stored)
	assert.Equal(t, Reading{Value: NoDistance, Status: StatusNoData}, g.GroupAverage(Middle))

	stored[2] = 500
	feed(t, g, r, clk, stored)
	assert.Equal(t, Reading{Value: 500, Status: StatusValid}, g.GroupAverage(Middle))

	stored[1] = 0 // zero is not a valid reading
	stored[5] = 301
	feed(t, g, r, clk, stored)
	assert.Equal(t, 400, g.GroupAverage(Middle).Value)
}

func TestSteeringError(t *testing.T) {
	g, r, clk := newGrid(t, Res4x4)
	assert.Equal(t, Reading{Value: NoSteering, Status: StatusNotReady}, g.SteeringError())

	stored := fill(16, NoDistance)
	for _, z := range g.Members(Left) {
		stored[z] = 300
	}
	feed(t, g, r, clk, stored)
	e := g.SteeringError()
	assert.Equal(t, StatusNoData, e.Status)
	assert.Equal(t, NoSteering, e.Value)
	assert.NotEqual(t, 0, e.Value)

	for _, z := range g.Members(Right) {
		stored[z] = 450
	}
	feed(t, g, r, clk, stored)
	assert.Equal(t, Reading{Value: -150, Status: StatusValid}, g.SteeringError())

	for _, z := range g.Members(Right) {
		stored[z] = 300
	}
	feed(t, g, r, clk, stored)
	assert.Equal(t, Reading{Value: 0, Status: StatusValid}, g.SteeringError())
}

func TestDefaultGroupsScenario(t *testing.T) {
	g, r, clk := newGrid(t, Res4x4)

	// Physical left column 200 mm, right column 800 mm, middle invalid.
	stored := fill(16, NoDistance)
	for row := 0; row < 4; row++ {
		stored[row*4+3] = 200
		stored[row*4+0] = 800
	}
	feed(t, g, r, clk, stored)

	a := g.Averages()
	assert.Equal(t, 200, a.Left.Value)
	assert.Equal(t, 800, a.Right.Value)
	assert.Equal(t, StatusNoData, a.Middle.Status)
	assert.Equal(t, -600, a.Steering.Value)

	// Native column 0 ends up in the printed left column.
	var buf bytes.Buffer
	require.NoError(t, g.PrintZones(&buf))
	assert.Equal(t,
		"200\t-\t-\t800\n200\t-\t-\t800\n200\t-\t-\t800\n200\t-\t-\t800\n\n",
		buf.String())
}

func TestPrintMaskAndGlyphs(t *testing.T) {
	g, r, clk := newGrid(t, Res4x4)
	g.SetGroup(Left, []int{3})
	g.SetGroup(Middle, []int{6})
	g.SetGroup(Right, []int{0})

	stored := fill(16, 100)
	stored[6] = 0
	feed(t, g, r, clk, stored)

	var buf bytes.Buffer
	require.NoError(t, g.PrintZones(&buf))
	assert.Equal(t,
		"100\t.\t.\t100\n.\t-\t.\t.\n.\t.\t.\t.\n.\t.\t.\t.\n\n",
		buf.String())

	mask := g.Mask()
	assert.True(t, mask[0])
	assert.True(t, mask[6])
	assert.False(t, mask[1])

	buf.Reset()
	require.NoError(t, g.PrintAverages(&buf))
	assert.Equal(t, "L Avg: 100 | M Avg: -1 | R Avg: 100\n", buf.String())
}

func TestPrintAppliesDefaultsToEmptyGroups(t *testing.T) {
	g, r, clk := newGrid(t, Res4x4)
	g.SetGroup(Middle, []int{99})
	feed(t, g, r, clk, fill(16, 50))

	for _, m := range g.Mask() {
		assert.True(t, m)
	}
}

func TestParseHelpers(t *testing.T) {
	res, err := ParseResolution(64)
	require.NoError(t, err)
	assert.Equal(t, Res8x8, res)
	assert.Equal(t, "8x8", res.String())
	_, err = ParseResolution(32)
	assert.Error(t, err)

	grp, err := ParseGroup("Mid")
	require.NoError(t, err)
	assert.Equal(t, Middle, grp)
	_, err = ParseGroup("up")
	assert.Error(t, err)
}

func TestReadingJSON(t *testing.T) {
	b, err := json.Marshal(Reading{Value: NoDistance, Status: StatusNotReady})
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":-1,"status":"not_ready"}`, string(b))

	var r Reading
	require.NoError(t, json.Unmarshal([]byte(`{"value":420,"status":"valid"}`), &r))
	assert.Equal(t, Reading{Value: 420, Status: StatusValid}, r)
	assert.Error(t, json.Unmarshal([]byte(`{"status":"maybe"}`), &r))
}
