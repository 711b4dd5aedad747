package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/yok-tottii/EzCall/internal/audio"
	"github.com/yok-tottii/EzCall/internal/route"
)

func TestRenderDevices(t *testing.T) {
	devices := []audio.Device{
		{ID: 0, Name: "Built-in Microphone", Kind: audio.KindBuiltinMicrophone, MaxInputChannels: 1, IsDefaultInput: true},
		{ID: 3, Name: "USB Headset", Kind: audio.KindUSB, MaxInputChannels: 1, MaxOutputChannels: 2, IsDefaultOutput: true},
	}

	var out bytes.Buffer
	table := renderDevices(&out, devices)
	for _, want := range []string{"Built-in Microphone", "USB Headset", audio.KindUSB.String(), "in", "out"} {
		requireContains(t, table, want)
	}
	// Not a terminal: the plain style has no rounded corners
	if strings.Contains(table, "╭") {
		t.Errorf("expected the plain style for a buffer, got:\n%s", table)
	}

	if got := renderDevices(&out, nil); got != "No audio devices found" {
		t.Errorf("unexpected empty rendering %q", got)
	}
}

func TestDefaultMarker(t *testing.T) {
	tests := []struct {
		device audio.Device
		want   string
	}{
		{audio.Device{IsDefaultInput: true, IsDefaultOutput: true}, "in/out"},
		{audio.Device{IsDefaultInput: true}, "in"},
		{audio.Device{IsDefaultOutput: true}, "out"},
		{audio.Device{}, ""},
	}
	for _, tt := range tests {
		if got := defaultMarker(tt.device); got != tt.want {
			t.Errorf("defaultMarker(%+v) = %q, want %q", tt.device, got, tt.want)
		}
	}
}

func TestRenderRoute(t *testing.T) {
	s := route.Snapshot{Default: route.Earpiece, HasEarpiece: true}
	table := renderRoute(&bytes.Buffer{}, s)
	requireContains(t, table, "earpiece")
	requireContains(t, table, "Would select")

	if got := predictedDevice(s); got != route.Earpiece {
		t.Errorf("expected earpiece, got %s", got)
	}
	s.HasWiredHeadset = true
	if got := predictedDevice(s); got != route.WiredHeadset {
		t.Errorf("expected wired headset, got %s", got)
	}
}
