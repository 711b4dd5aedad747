// Package mictest records a short sample from the capture device and reports
// its level, so users can check their microphone before a call.
package mictest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/yok-tottii/EzCall/internal/audio"
	"github.com/yok-tottii/EzCall/internal/logger"
)

var (
	// ErrMuted is returned when the microphone is muted
	ErrMuted = errors.New("microphone is muted")
	// ErrBusy is returned when a test is already running
	ErrBusy = errors.New("microphone test already running")
)

// State represents the current test state
type State int

const (
	// Idle means no test is running
	Idle State = iota
	// Recording means audio is being captured
	Recording
	// Analyzing means the captured audio is being measured
	Analyzing
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Recording:
		return "Recording"
	case Analyzing:
		return "Analyzing"
	default:
		return "Unknown"
	}
}

// Result is the outcome of one test
type Result struct {
	Bytes    int           `json:"bytes"`
	Samples  int           `json:"samples"`
	Duration time.Duration `json:"duration"`
	// Peak and RMS are normalized to 0..1 of full scale
	Peak float64 `json:"peak"`
	RMS  float64 `json:"rms"`
}

// Silent reports whether nothing above the noise floor was captured
func (r Result) Silent() bool {
	return r.Peak < 0.001
}

// PeakDBFS returns the peak in dB relative to full scale
func (r Result) PeakDBFS() float64 {
	if r.Peak <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(r.Peak)
}

// Config holds configuration for the tester
type Config struct {
	MaxDuration time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		MaxDuration: 10 * time.Second,
	}
}

// Tester runs microphone tests against an audio driver
type Tester struct {
	audio   audio.AudioDriver
	muted   func() bool
	config  Config
	log     *logger.Logger
	mu      sync.Mutex
	state   State
	started time.Time
}

// New creates a tester. muted reports the current microphone mute state;
// nil means never muted.
func New(ad audio.AudioDriver, muted func() bool, config Config, log *logger.Logger) *Tester {
	if config.MaxDuration <= 0 {
		config.MaxDuration = DefaultConfig().MaxDuration
	}
	return &Tester{
		audio:  ad,
		muted:  muted,
		config: config,
		log:    log.Component("mictest"),
		state:  Idle,
	}
}

// State returns the current test state
func (t *Tester) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Run records for d (capped at the configured maximum) and measures the sample.
// Cancelling ctx ends the recording early; the partial sample is still measured.
func (t *Tester) Run(ctx context.Context, d time.Duration) (Result, error) {
	if d <= 0 || d > t.config.MaxDuration {
		d = t.config.MaxDuration
	}

	if err := t.start(); err != nil {
		return Result{}, err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		t.log.Debug("test cancelled: %v", ctx.Err())
	}

	return t.stop()
}

func (t *Tester) start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Idle {
		return fmt.Errorf("%w (current state: %s)", ErrBusy, t.state)
	}
	if t.muted != nil && t.muted() {
		return ErrMuted
	}

	if err := t.audio.StartRecording(); err != nil {
		return fmt.Errorf("failed to start audio recording: %w", err)
	}
	t.state = Recording
	t.started = time.Now()
	t.log.Info("microphone test started")
	return nil
}

func (t *Tester) stop() (Result, error) {
	t.mu.Lock()
	t.state = Analyzing
	started := t.started
	t.mu.Unlock()

	data, err := t.audio.StopRecording()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Idle
	if err != nil {
		return Result{}, fmt.Errorf("failed to stop audio recording: %w", err)
	}

	res := Measure(data)
	res.Duration = time.Since(started)
	t.log.Info("microphone test finished: %d samples, peak %.1f dBFS, rms %.3f",
		res.Samples, res.PeakDBFS(), res.RMS)
	return res, nil
}

// Measure computes peak and RMS of 16-bit little-endian PCM
func Measure(pcm []byte) Result {
	n := len(pcm) / 2
	res := Result{Bytes: len(pcm), Samples: n}
	if n == 0 {
		return res
	}

	var peak, sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
		v := math.Abs(s) / 32768
		if v > peak {
			peak = v
		}
		sum += v * v
	}
	res.Peak = peak
	res.RMS = math.Sqrt(sum / float64(n))
	return res
}
