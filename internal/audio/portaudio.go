package audio

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioDriver implements AudioDriver using PortAudio
type PortAudioDriver struct {
	config      Config
	stream      *portaudio.Stream
	buffer      []int16
	mu          sync.Mutex
	recording   bool
	muted       bool
	initialized bool
}

// NewPortAudioDriver creates a new PortAudio driver
func NewPortAudioDriver() (*PortAudioDriver, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	return &PortAudioDriver{
		buffer: make([]int16, 0, 48000*10), // 10 seconds at 48kHz
	}, nil
}

// ListDevices returns every input and output device with its kind
func (d *PortAudioDriver) ListDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	// Missing defaults are not fatal; nothing is marked default then.
	defaultInput, _ := portaudio.DefaultInputDevice()
	defaultOutput, _ := portaudio.DefaultOutputDevice()

	result := make([]Device, 0, len(devices))
	for i, dev := range devices {
		hostAPI := ""
		if dev.HostApi != nil {
			hostAPI = dev.HostApi.Name
		}
		result = append(result, Device{
			ID:                i,
			Name:              dev.Name,
			HostAPI:           hostAPI,
			Kind:              ClassifyDevice(dev.Name),
			MaxInputChannels:  dev.MaxInputChannels,
			MaxOutputChannels: dev.MaxOutputChannels,
			IsDefaultInput:    defaultInput != nil && dev.Name == defaultInput.Name,
			IsDefaultOutput:   defaultOutput != nil && dev.Name == defaultOutput.Name,
		})
	}

	return result, nil
}

// Initialize opens the capture stream with the given configuration
func (d *PortAudioDriver) Initialize(config Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.recording {
		return fmt.Errorf("cannot initialize while recording")
	}

	if d.stream != nil {
		if err := d.stream.Close(); err != nil {
			return fmt.Errorf("failed to close existing stream: %w", err)
		}
		d.stream = nil
	}

	device, err := inputDevice(config.InputDeviceID)
	if err != nil {
		return err
	}

	latency := device.DefaultHighInputLatency
	if config.Latency == LowLatency {
		latency = device.DefaultLowInputLatency
	}

	streamParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: config.Channels,
			Latency:  latency,
		},
		SampleRate:      float64(config.SampleRate),
		FramesPerBuffer: 960, // 20ms at 48kHz, one Opus frame
	}

	stream, err := portaudio.OpenStream(streamParams, d.callback)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}

	d.stream = stream
	d.config = config
	d.initialized = true

	return nil
}

// inputDevice resolves a configured device index; -1 is the system default
func inputDevice(id int) (*portaudio.DeviceInfo, error) {
	var device *portaudio.DeviceInfo
	if id == -1 {
		def, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		device = def
	} else {
		devices, err := portaudio.Devices()
		if err != nil {
			return nil, fmt.Errorf("failed to list devices: %w", err)
		}
		if id < 0 || id >= len(devices) {
			return nil, fmt.Errorf("invalid device ID: %d", id)
		}
		device = devices[id]
	}

	if device.MaxInputChannels <= 0 {
		return nil, fmt.Errorf("device %q (ID %d) is output-only", device.Name, id)
	}
	return device, nil
}

// callback is called by PortAudio when audio data is available
func (d *PortAudioDriver) callback(in []int16) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.recording {
		return
	}
	if d.muted {
		d.buffer = append(d.buffer, make([]int16, len(in))...)
		return
	}
	d.buffer = append(d.buffer, in...)
}

// SetInputMuted makes the capture callback record silence
func (d *PortAudioDriver) SetInputMuted(muted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.muted = muted
}

// StartRecording starts recording audio
func (d *PortAudioDriver) StartRecording() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return fmt.Errorf("driver not initialized")
	}

	if d.recording {
		return fmt.Errorf("already recording")
	}

	d.buffer = d.buffer[:0]

	if err := d.stream.Start(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}

	d.recording = true
	return nil
}

// StopRecording stops recording and returns the recorded audio data
func (d *PortAudioDriver) StopRecording() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.recording {
		return nil, fmt.Errorf("not recording")
	}

	if err := d.stream.Stop(); err != nil {
		return nil, fmt.Errorf("failed to stop stream: %w", err)
	}

	d.recording = false

	return samplesToBytes(d.buffer), nil
}

// samplesToBytes converts int16 samples to little-endian PCM bytes
func samplesToBytes(samples []int16) []byte {
	data := make([]byte, 0, len(samples)*2)
	for _, sample := range samples {
		data = binary.LittleEndian.AppendUint16(data, uint16(sample))
	}
	return data
}

// IsRecording returns whether recording is currently active
func (d *PortAudioDriver) IsRecording() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recording
}

// Close releases all resources
func (d *PortAudioDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.recording {
		if err := d.stream.Stop(); err != nil {
			return fmt.Errorf("failed to stop stream: %w", err)
		}
		d.recording = false
	}

	if d.stream != nil {
		if err := d.stream.Close(); err != nil {
			return fmt.Errorf("failed to close stream: %w", err)
		}
		d.stream = nil
	}

	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}

	d.initialized = false
	return nil
}
