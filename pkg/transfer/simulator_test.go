package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropdeck/dropdeck/pkg/types"
)

func fastSimulator(strategy func() Strategy) *Simulator {
	return NewSimulator(Config{
		TickInterval: time.Millisecond,
		NewStrategy:  strategy,
	})
}

func TestSimulatorScriptedProgress(t *testing.T) {
	sim := fastSimulator(func() Strategy {
		return &ScriptedStrategy{Increments: []float64{30, 30, 30, 30}}
	})

	var calls []float64
	result, err := sim.Run(context.Background(), types.FileMeta{Name: "a.txt", SizeBytes: 100},
		func(p float64) { calls = append(calls, p) })

	require.NoError(t, err)
	assert.Equal(t, []float64{30, 60, 90, 100}, calls)
	assert.Equal(t, "https://example.com/files/a.txt", result.RemoteURL)
	assert.False(t, result.CompletedAt.IsZero())
}

func TestSimulatorFinalCallIsExactlyOneHundred(t *testing.T) {
	// A single oversized increment still reports exactly 100, never more,
	// and onProgress fires at least once.
	sim := fastSimulator(func() Strategy {
		return &ScriptedStrategy{Increments: []float64{250}}
	})

	var calls []float64
	_, err := sim.Run(context.Background(), types.FileMeta{Name: "big.bin", SizeBytes: 1},
		func(p float64) { calls = append(calls, p) })

	require.NoError(t, err)
	assert.Equal(t, []float64{100}, calls)
}

func TestSimulatorInjectedFailure(t *testing.T) {
	network := errors.New("network error")
	sim := fastSimulator(func() Strategy {
		return &ScriptedStrategy{
			Increments: []float64{20, 20, 20},
			FailAfter:  2,
			FailErr:    network,
		}
	})

	var calls []float64
	_, err := sim.Run(context.Background(), types.FileMeta{Name: "a.txt", SizeBytes: 100},
		func(p float64) { calls = append(calls, p) })

	require.Error(t, err)
	assert.ErrorIs(t, err, network)

	var transferErr *Error
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, "a.txt", transferErr.File)

	// No progress callback after the failing tick.
	assert.Equal(t, []float64{20, 40}, calls)
}

func TestSimulatorCancellation(t *testing.T) {
	sim := fastSimulator(func() Strategy {
		return &ScriptedStrategy{Increments: []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := sim.Run(ctx, types.FileMeta{Name: "slow.bin", SizeBytes: 100},
			func(float64) {})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("simulator did not honor cancellation")
	}
}

func TestSimulatorMonotonicProgress(t *testing.T) {
	sim := NewSimulator(Config{TickInterval: time.Millisecond, MaxIncrement: 40})

	var last float64
	_, err := sim.Run(context.Background(), types.FileMeta{Name: "r.bin", SizeBytes: 100},
		func(p float64) {
			assert.GreaterOrEqual(t, p, last)
			assert.LessOrEqual(t, p, 100.0)
			last = p
		})

	require.NoError(t, err)
	assert.Equal(t, 100.0, last)
}

func TestSimulatorRemoteURLEscapesName(t *testing.T) {
	sim := fastSimulator(func() Strategy {
		return &ScriptedStrategy{Increments: []float64{100}}
	})

	result, err := sim.Run(context.Background(),
		types.FileMeta{Name: "my report.pdf", SizeBytes: 1}, func(float64) {})

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/files/my%20report.pdf", result.RemoteURL)
}

func TestRandomStrategyBounds(t *testing.T) {
	strategy := NewRandomStrategy(15)
	for i := 0; i < 1000; i++ {
		inc, err := strategy.NextIncrement()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, inc, 0.0)
		assert.Less(t, inc, 15.0)
	}
}
