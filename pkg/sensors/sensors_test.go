package sensors

import (
	"context"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/rover/pkg/motion"
	"github.com/gwillem/rover/pkg/robot"
)

func TestParseFrame(t *testing.T) {
	line := `{"dist":{"33":0.41,"90":1.2,"0":null,"-33":0.8,"-90":2.5,"180":0.3},"color":[12,40,33]}`
	f, err := ParseFrame([]byte(line))
	require.NoError(t, err)

	want := []float64{0.41, 1.2, math.NaN(), 0.8, 2.5, 0.3}
	for i, rd := range f.Ranging {
		assert.Equal(t, motion.Angles()[i], rd.Angle)
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(rd.Distance), "sensor %d", i)
			continue
		}
		assert.Equal(t, want[i], rd.Distance, "sensor %d", i)
	}
	assert.Equal(t, [3]int{12, 40, 33}, f.Color)

	// The decision engine sees sentinels for the error and the far reading.
	fv := f.Ranging.Features().Sanitized()
	assert.Equal(t, motion.MaxDistance, fv[2])
	assert.Equal(t, motion.MaxDistance, fv[4])
}

func TestParseFrameMissingSensors(t *testing.T) {
	f, err := ParseFrame([]byte(`{"dist":{"0":0.5}}`))
	require.NoError(t, err)

	for i, rd := range f.Ranging {
		if rd.Angle == 0 {
			assert.Equal(t, 0.5, rd.Distance)
			continue
		}
		assert.True(t, math.IsNaN(rd.Distance), "sensor %d", i)
	}
	assert.Equal(t, [3]int{}, f.Color)
}

func TestParseFrameRejectsGarbage(t *testing.T) {
	for _, line := range []string{"", "hello", `{"color":[1,2,3]}`, `{"dist":[1,2]}`} {
		_, err := ParseFrame([]byte(line))
		assert.Error(t, err, "line %q", line)
	}
}

type readCloser struct {
	io.Reader
	closed bool
}

func (r *readCloser) Close() error {
	r.closed = true
	return nil
}

func TestRangerRun(t *testing.T) {
	input := strings.Join([]string{
		`{"dist":{"33":0.1,"90":0.2,"0":0.3,"-33":0.4,"-90":0.5,"180":0.6}}`,
		`garbage`,
		`{"dist":{"33":1.1,"90":1.2,"0":1.3,"-33":1.4,"-90":1.5,"180":1.6},"color":[1,2,3]}`,
	}, "\n")
	rc := &readCloser{Reader: strings.NewReader(input)}
	r := NewRanger(rc, zerolog.Nop())

	err := r.Run(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, rc.closed)

	n, at := r.Frames()
	assert.Equal(t, uint64(2), n)
	assert.WithinDuration(t, time.Now(), at, time.Second)
}

func TestRangerDisconnectDropsLastFrame(t *testing.T) {
	pr, pw := io.Pipe()
	r := NewRanger(pr, zerolog.Nop())

	errc := make(chan error, 1)
	go func() { errc <- r.Run(context.Background()) }()

	_, err := io.WriteString(pw, `{"dist":{"33":1.1,"90":1.2,"0":0.3,"-33":1.4,"-90":1.5,"180":1.6},"color":[1,2,3]}`+"\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		n, _ := r.Frames()
		return n == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, motion.FeatureVector{1.1, 1.2, 0.3, 1.4, 1.5, 1.6}, r.Distances().Features())
	assert.Equal(t, [3]int{1, 2, 3}, r.Color())

	// Board unplugged.
	require.NoError(t, pw.Close())
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after disconnect")
	}

	assert.True(t, math.IsNaN(r.Distances()[2].Distance))
	assert.Equal(t, motion.SentinelFeatures(), r.Distances().Features().Sanitized())
	assert.Equal(t, [3]int{}, r.Color())
}

func TestRangerStaleFrame(t *testing.T) {
	pr, pw := io.Pipe()
	r := NewRanger(pr, zerolog.Nop())
	r.staleAfter = 100 * time.Millisecond

	go r.Run(context.Background())
	defer pw.Close()

	_, err := io.WriteString(pw, `{"dist":{"33":0.4,"90":0.4,"0":0.4,"-33":0.4,"-90":0.4,"180":0.4}}`+"\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return r.Distances()[0].Distance == 0.4
	}, 2*time.Second, 5*time.Millisecond)

	// No further frames: the reading expires.
	require.Eventually(t, func() bool {
		return math.IsNaN(r.Distances()[0].Distance)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRangerBeforeFirstFrame(t *testing.T) {
	r := NewRanger(&readCloser{Reader: strings.NewReader("")}, zerolog.Nop())
	assert.Equal(t, motion.SentinelFeatures(), r.Distances().Features().Sanitized())
}

type blockingPort struct {
	closed chan struct{}
}

func (b *blockingPort) Read([]byte) (int, error) {
	<-b.closed
	return 0, io.ErrClosedPipe
}

func (b *blockingPort) Close() error {
	select {
	case <-b.closed:
	default:
		close(b.closed)
	}
	return nil
}

func TestRangerRunStopsOnCancel(t *testing.T) {
	port := &blockingPort{closed: make(chan struct{})}
	r := NewRanger(port, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCalibrated(t *testing.T) {
	st := NewStatic(1.0)
	st.Set(2, math.NaN())

	cal := robot.DefaultDistanceCalibration()
	cal.Factor[0] = 0.5
	cal.Bias[1] = 0.25

	c := NewCalibrated(st, cal)
	fv := c.Distances().Features()
	assert.Equal(t, 0.5, fv[0])
	assert.Equal(t, 1.25, fv[1])
	assert.Equal(t, motion.MaxDistance, fv[2], "sensor error")
	assert.Equal(t, 1.0, fv[5])
}

func TestCalibratedCutoffBeforeCorrection(t *testing.T) {
	st := NewStatic(1.0)
	st.Set(0, 2.5)  // beyond range
	st.Set(1, 0.02) // obstacle almost touching
	st.Set(2, 2.0)  // at the cutoff
	st.Set(3, -0.1) // sensor error

	cal := robot.DefaultDistanceCalibration()
	cal.Factor[0] = 0.7
	cal.Factor[2] = 0.7
	cal.Bias[1] = -0.05

	fv := NewCalibrated(st, cal).Distances().Features()
	assert.Equal(t, motion.MaxDistance, fv[0], "far reading must not be scaled into range")
	assert.Equal(t, 0.0, fv[1], "near reading must stay near")
	assert.Equal(t, motion.MaxDistance, fv[2])
	assert.Equal(t, motion.MaxDistance, fv[3])

	// What the decision engine sees.
	assert.Equal(t, motion.FeatureVector{2, 0, 2, 2, 1, 1}, fv.Sanitized())
}

func TestStatic(t *testing.T) {
	st := NewStatic(0.7)
	st.Set(-1, 0)
	st.Set(motion.NumFeatures, 0)
	st.Set(3, 0.2)

	fv := st.Distances().Features()
	assert.Equal(t, motion.FeatureVector{0.7, 0.7, 0.7, 0.2, 0.7, 0.7}, fv)
	assert.Equal(t, 180, st.Distances()[5].Angle)
}
