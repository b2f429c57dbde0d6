package pinwrappers

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/roverworks/navcore/components/board"
	"github.com/roverworks/navcore/logging"
)

type testAnalog struct {
	mu   sync.Mutex
	n    int64
	lim  int64
	stop bool
}

func (t *testAnalog) Read(ctx context.Context) (board.AnalogValue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop || t.n >= t.lim {
		return board.AnalogValue{}, errStopReading
	}
	t.n++
	// alternate between 1000 and 1010 so the average is stable
	v := 1000
	if t.n%2 == 0 {
		v = 1010
	}
	return board.AnalogValue{Value: v, Min: 0, Max: 5, StepSize: 5.0 / 32768}, nil
}

func TestAnalogSmoother(t *testing.T) {
	testReader := testAnalog{lim: 200}
	defer func() {
		testReader.mu.Lock()
		defer testReader.mu.Unlock()
		testReader.stop = true
	}()

	logger := logging.NewTestLogger(t)
	as := SmoothAnalogReader(&testReader, board.AnalogConfig{
		AverageOverMillis: 10,
		SamplesPerSecond:  10000,
	}, logger)

	testutils.WaitForAssertionWithSleep(t, 10*time.Millisecond, 200, func(tb testing.TB) {
		tb.Helper()
		v, err := as.Read(context.Background())
		test.That(tb, err, test.ShouldEqual, errStopReading)
		test.That(tb, v.Value, test.ShouldEqual, 1005)
		test.That(tb, v.Max, test.ShouldEqual, float32(5))

		testReader.mu.Lock()
		defer testReader.mu.Unlock()
		test.That(tb, testReader.n, test.ShouldEqual, testReader.lim)
	})

	test.That(t, as.Close(context.Background()), test.ShouldBeNil)
}

func TestAnalogSmootherRawPassthrough(t *testing.T) {
	testReader := testAnalog{lim: 5}
	logger := logging.NewTestLogger(t)
	as := SmoothAnalogReader(&testReader, board.AnalogConfig{}, logger)
	defer as.Close(context.Background())

	v, _ := as.Read(context.Background())
	test.That(t, v.Value == 1000 || v.Value == 1010, test.ShouldBeTrue)
}
