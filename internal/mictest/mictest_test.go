package mictest

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yok-tottii/EzCall/internal/audio"
)

type fakeDriver struct {
	mu        sync.Mutex
	recording bool
	pcm       []byte
	startErr  error
}

func (d *fakeDriver) ListDevices() ([]audio.Device, error) { return nil, nil }
func (d *fakeDriver) Initialize(audio.Config) error        { return nil }
func (d *fakeDriver) SetInputMuted(bool)                   {}
func (d *fakeDriver) Close() error                         { return nil }

func (d *fakeDriver) StartRecording() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.recording = true
	return nil
}

func (d *fakeDriver) StopRecording() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.recording {
		return nil, errors.New("not recording")
	}
	d.recording = false
	return d.pcm, nil
}

func (d *fakeDriver) IsRecording() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recording
}

func pcm(samples ...int16) []byte {
	b := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	return b
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Idle", Idle.String())
	assert.Equal(t, "Recording", Recording.String())
	assert.Equal(t, "Analyzing", Analyzing.String())
	assert.Equal(t, "Unknown", State(9).String())
}

func TestMeasure(t *testing.T) {
	res := Measure(pcm(16384, -16384, 16384, -16384))
	assert.Equal(t, 8, res.Bytes)
	assert.Equal(t, 4, res.Samples)
	assert.InDelta(t, 0.5, res.Peak, 1e-9)
	assert.InDelta(t, 0.5, res.RMS, 1e-9)
	assert.InDelta(t, -6.02, res.PeakDBFS(), 0.01)
	assert.False(t, res.Silent())

	res = Measure(pcm(-32768))
	assert.InDelta(t, 1.0, res.Peak, 1e-9)

	res = Measure(nil)
	assert.Zero(t, res.Samples)
	assert.True(t, res.Silent())
	assert.True(t, res.PeakDBFS() < -1000)

	// A trailing odd byte is ignored.
	res = Measure(append(pcm(100), 0x7f))
	assert.Equal(t, 1, res.Samples)
}

func TestRun(t *testing.T) {
	d := &fakeDriver{pcm: pcm(0, 3276, -3276, 0)}
	tester := New(d, nil, DefaultConfig(), nil)

	res, err := tester.Run(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Samples)
	assert.InDelta(t, 0.1, res.Peak, 0.001)
	assert.GreaterOrEqual(t, res.Duration, 10*time.Millisecond)
	assert.Equal(t, Idle, tester.State())
	assert.False(t, d.IsRecording())
}

func TestRunRefusesWhileMuted(t *testing.T) {
	d := &fakeDriver{}
	tester := New(d, func() bool { return true }, DefaultConfig(), nil)

	_, err := tester.Run(context.Background(), time.Millisecond)
	assert.ErrorIs(t, err, ErrMuted)
	assert.False(t, d.IsRecording())
}

func TestRunRefusesWhileBusy(t *testing.T) {
	d := &fakeDriver{}
	tester := New(d, nil, DefaultConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := tester.Run(ctx, time.Minute)
		done <- err
	}()
	require.Eventually(t, func() bool { return tester.State() == Recording }, time.Second, time.Millisecond)

	_, err := tester.Run(context.Background(), time.Millisecond)
	assert.ErrorIs(t, err, ErrBusy)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, Idle, tester.State())
}

func TestRunStartFailure(t *testing.T) {
	d := &fakeDriver{startErr: errors.New("device busy")}
	tester := New(d, nil, Config{}, nil)

	_, err := tester.Run(context.Background(), time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
	assert.Equal(t, Idle, tester.State())
}
