package transfer

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/dropdeck/dropdeck/pkg/types"
)

// Result describes a successfully finished transfer
type Result struct {
	RemoteURL   string
	CompletedAt time.Time
}

// Error wraps a per-file transfer failure
type Error struct {
	File string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transfer of %q failed: %v", e.File, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Strategy decides how much progress one tick contributes, in percentage
// points. Returning an error fails the transfer at that tick; no further
// progress is reported after a failure.
type Strategy interface {
	NextIncrement() (float64, error)
}

// RandomStrategy advances by a uniformly random amount per tick, bounded
// by MaxIncrement
type RandomStrategy struct {
	MaxIncrement float64
	rng          *rand.Rand
}

// NewRandomStrategy creates a strategy with its own random source
func NewRandomStrategy(maxIncrement float64) *RandomStrategy {
	return &RandomStrategy{
		MaxIncrement: maxIncrement,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *RandomStrategy) NextIncrement() (float64, error) {
	return s.rng.Float64() * s.MaxIncrement, nil
}

// ScriptedStrategy replays a fixed increment sequence. Tests use it to
// drive the simulator through exact progress values. If FailAfter ticks
// have been consumed, the next call fails with FailErr.
type ScriptedStrategy struct {
	Increments []float64
	FailAfter  int
	FailErr    error

	step int
}

func (s *ScriptedStrategy) NextIncrement() (float64, error) {
	if s.FailErr != nil && s.step >= s.FailAfter {
		return 0, s.FailErr
	}
	if s.step >= len(s.Increments) {
		return 100, nil
	}
	inc := s.Increments[s.step]
	s.step++
	return inc, nil
}

// Config controls the simulated transfer engine
type Config struct {
	// TickInterval is the delay between progress advances.
	TickInterval time.Duration
	// MaxIncrement caps the per-tick progress gain, in percentage points.
	MaxIncrement float64
	// BaseURL is the prefix of the remote URL minted on completion.
	BaseURL string
	// NewStrategy builds one Strategy per transfer. Leave nil to use
	// NewRandomStrategy(MaxIncrement).
	NewStrategy func() Strategy
}

// DefaultConfig returns the simulation parameters of the original service:
// up to 15 points of progress every 200ms.
func DefaultConfig() Config {
	return Config{
		TickInterval: 200 * time.Millisecond,
		MaxIncrement: 15,
		BaseURL:      "https://example.com/files",
	}
}

// Simulator drives a single file's progress from 0 to 100 over time.
// It has no shared state; its only side effect is invoking the progress
// callback.
type Simulator struct {
	config Config
}

// NewSimulator creates a simulator from the given config, filling in
// defaults for zero values
func NewSimulator(config Config) *Simulator {
	defaults := DefaultConfig()
	if config.TickInterval <= 0 {
		config.TickInterval = defaults.TickInterval
	}
	if config.MaxIncrement <= 0 {
		config.MaxIncrement = defaults.MaxIncrement
	}
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	return &Simulator{config: config}
}

// Run simulates the transfer of one file. Progress advances on each tick
// until it reaches 100; the final callback always reports exactly 100.
// onProgress is called at least once before completion and never after a
// failure. Cancellation is honored at every tick boundary.
func (s *Simulator) Run(ctx context.Context, meta types.FileMeta, onProgress func(float64)) (Result, error) {
	strategy := s.newStrategy()

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	progress := 0.0
	for {
		select {
		case <-ctx.Done():
			return Result{}, &Error{File: meta.Name, Err: ctx.Err()}
		case <-ticker.C:
			increment, err := strategy.NextIncrement()
			if err != nil {
				return Result{}, &Error{File: meta.Name, Err: err}
			}

			progress += increment
			if progress >= 100 {
				onProgress(100)
				return Result{
					RemoteURL:   s.remoteURL(meta.Name),
					CompletedAt: time.Now(),
				}, nil
			}
			onProgress(progress)
		}
	}
}

func (s *Simulator) newStrategy() Strategy {
	if s.config.NewStrategy != nil {
		return s.config.NewStrategy()
	}
	return NewRandomStrategy(s.config.MaxIncrement)
}

func (s *Simulator) remoteURL(name string) string {
	return strings.TrimRight(s.config.BaseURL, "/") + "/" + url.PathEscape(name)
}
