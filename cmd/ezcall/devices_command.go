package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yok-tottii/EzCall/internal/audio"
	"github.com/yok-tottii/EzCall/internal/logger"
	"github.com/yok-tottii/EzCall/internal/route"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio devices and the route they resolve to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			policy, err := audio.ParseEarpiecePolicy(cfg.Earpiece)
			if err != nil {
				return err
			}

			driver, err := audio.NewPortAudioDriver()
			if err != nil {
				return err
			}
			defer driver.Close()

			system := audio.NewSystem(driver, audio.SystemOptions{
				Earpiece: policy,
				Logger:   logger.Discard(),
			})
			devices, err := system.Devices()
			if err != nil {
				return fmt.Errorf("list devices: %w", err)
			}

			manager := route.New(system, route.Config{
				DefaultDevice: cfg.DefaultOutput(),
				Logger:        logger.Discard(),
			})
			snapshot := manager.Snapshot()
			snapshot.HasWiredHeadset = system.HasWiredHeadset()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderDevices(out, devices))
			fmt.Fprintln(out, renderRoute(out, snapshot))
			return nil
		},
	}
}

func renderDevices(out io.Writer, devices []audio.Device) string {
	if len(devices) == 0 {
		return "No audio devices found"
	}
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{
			strconv.Itoa(d.ID),
			d.Name,
			d.Kind.String(),
			strconv.Itoa(d.MaxInputChannels),
			strconv.Itoa(d.MaxOutputChannels),
			defaultMarker(d),
		})
	}
	return renderTable(out,
		[]string{"ID", "Name", "Kind", "In", "Out", "Default"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func defaultMarker(d audio.Device) string {
	switch {
	case d.IsDefaultInput && d.IsDefaultOutput:
		return "in/out"
	case d.IsDefaultInput:
		return "in"
	case d.IsDefaultOutput:
		return "out"
	}
	return ""
}

func renderRoute(out io.Writer, s route.Snapshot) string {
	rows := [][]string{
		{"Default route", s.Default.String()},
		{"Earpiece", yesNo(s.HasEarpiece)},
		{"Wired headset", yesNo(s.HasWiredHeadset)},
		{"Would select", predictedDevice(s).String()},
	}
	return renderTable(out, []string{"Route", "Value"}, rows, nil)
}

// predictedDevice is the device a call would start on
func predictedDevice(s route.Snapshot) route.AudioDevice {
	if s.HasWiredHeadset {
		return route.WiredHeadset
	}
	return s.Default
}
