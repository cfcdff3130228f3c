package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/smazurov/camfeed/pkg/linuxav/v4l2"
	"github.com/spf13/cobra"
)

// deviceReport describes one capture device and what it can produce.
type deviceReport struct {
	v4l2.DeviceInfo
	Formats []formatReport `json:"formats"`
}

type formatReport struct {
	v4l2.FormatInfo
	Modes []modeReport `json:"modes"`
}

type modeReport struct {
	Width  uint32    `json:"width"`
	Height uint32    `json:"height"`
	FPS    []float64 `json:"fps"`
}

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List V4L2 capture devices",
		Long:  `Lists video capture devices with their pixel formats, resolutions and framerates.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := v4l2.FindDevices()
			if err != nil {
				return fmt.Errorf("find devices: %w", err)
			}

			reports := make([]deviceReport, 0, len(devices))
			for _, dev := range devices {
				if !dev.IsCapture() {
					continue
				}
				reports = append(reports, describeDevice(dev))
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			writeDeviceReports(cmd.OutOrStdout(), reports)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print devices as JSON")
	return cmd
}

// describeDevice queries formats and modes. Query failures leave the
// corresponding list empty; some drivers reject enumeration on busy devices.
func describeDevice(dev v4l2.DeviceInfo) deviceReport {
	report := deviceReport{DeviceInfo: dev, Formats: []formatReport{}}

	formats, err := v4l2.GetFormats(dev.DevicePath)
	if err != nil {
		return report
	}
	for _, f := range formats {
		fr := formatReport{FormatInfo: f, Modes: []modeReport{}}
		resolutions, _ := v4l2.GetResolutions(dev.DevicePath, f.PixelFormat)
		for _, r := range resolutions {
			mode := modeReport{Width: r.Width, Height: r.Height, FPS: []float64{}}
			rates, _ := v4l2.GetFramerates(dev.DevicePath, f.PixelFormat, r.Width, r.Height)
			for _, rate := range rates {
				mode.FPS = append(mode.FPS, rate.FPS())
			}
			fr.Modes = append(fr.Modes, mode)
		}
		report.Formats = append(report.Formats, fr)
	}
	return report
}

func writeDeviceReports(w io.Writer, reports []deviceReport) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No capture devices found")
		return
	}
	for _, r := range reports {
		fmt.Fprintf(w, "%s: %s (%s, %s)\n", r.DevicePath, r.DeviceName, r.Driver, r.BusInfo)
		for _, f := range r.Formats {
			name := f.FormatName
			if f.Emulated {
				name += " [emulated]"
			}
			fmt.Fprintf(w, "  %s %s\n", f.FourCC, name)
			for _, m := range f.Modes {
				fmt.Fprintf(w, "    %dx%d", m.Width, m.Height)
				for _, fps := range m.FPS {
					fmt.Fprintf(w, " %gfps", fps)
				}
				fmt.Fprintln(w)
			}
		}
	}
}
