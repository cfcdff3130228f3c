package camera

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/camfeed/internal/ffmpeg"
)

// Default settings.
const (
	DefaultDevice       = "/dev/video0"
	DefaultResolution   = "640x480"
	DefaultFramerate    = 30
	DefaultQuality      = 5
	DefaultStallTimeout = 10 * time.Second
)

// Settings describes what to capture and how to encode it.
type Settings struct {
	Device       string
	Width        int
	Height       int
	Framerate    int
	Saturation   string // empty leaves colours untouched
	Quality      int
	TestPattern  bool
	FFmpegPath   string
	StallTimeout time.Duration
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Device:       DefaultDevice,
		Width:        640,
		Height:       480,
		Framerate:    DefaultFramerate,
		Quality:      DefaultQuality,
		FFmpegPath:   "ffmpeg",
		StallTimeout: DefaultStallTimeout,
	}
}

// ParseResolution sets Width and Height from "WxH".
func (s *Settings) ParseResolution(resolution string) error {
	w, h, err := ffmpeg.ParseResolution(resolution)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	s.Width, s.Height = w, h
	return nil
}

// Resolution formats the frame size as "WxH".
func (s Settings) Resolution() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	if !s.TestPattern && s.Device == "" {
		return fmt.Errorf("%w: device is required", ErrInvalidSettings)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: resolution %s", ErrInvalidSettings, s.Resolution())
	}
	if s.Framerate < 0 || s.Framerate > 240 {
		return fmt.Errorf("%w: framerate %d out of range 0-240", ErrInvalidSettings, s.Framerate)
	}
	if s.Quality != 0 && (s.Quality < 2 || s.Quality > 31) {
		return fmt.Errorf("%w: quality %d out of range 2-31", ErrInvalidSettings, s.Quality)
	}
	if s.Saturation != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(s.Saturation), 64)
		if err != nil || v < 0 || v > 3 {
			return fmt.Errorf("%w: saturation %q must be a number between 0 and 3", ErrInvalidSettings, s.Saturation)
		}
	}
	if s.StallTimeout < 0 {
		return fmt.Errorf("%w: negative stall timeout", ErrInvalidSettings)
	}
	return nil
}

// Diff lists the config keys whose values differ between s and other.
func (s Settings) Diff(other Settings) []string {
	var changed []string
	if s.Device != other.Device {
		changed = append(changed, "camera.device")
	}
	if s.Width != other.Width || s.Height != other.Height {
		changed = append(changed, "camera.resolution")
	}
	if s.Framerate != other.Framerate {
		changed = append(changed, "camera.framerate")
	}
	if s.Saturation != other.Saturation {
		changed = append(changed, "camera.saturation")
	}
	if s.Quality != other.Quality {
		changed = append(changed, "camera.quality")
	}
	if s.TestPattern != other.TestPattern {
		changed = append(changed, "camera.test_pattern")
	}
	if s.FFmpegPath != other.FFmpegPath {
		changed = append(changed, "camera.ffmpeg_path")
	}
	if s.StallTimeout != other.StallTimeout {
		changed = append(changed, "camera.stall_timeout")
	}
	return changed
}

func (s Settings) params(inputFormat string) *ffmpeg.Params {
	return &ffmpeg.Params{
		Binary:       s.FFmpegPath,
		DevicePath:   s.Device,
		InputFormat:  inputFormat,
		Width:        s.Width,
		Height:       s.Height,
		FPS:          s.Framerate,
		IsTestSource: s.TestPattern,
		Saturation:   strings.TrimSpace(s.Saturation),
		Quality:      s.Quality,
	}
}
