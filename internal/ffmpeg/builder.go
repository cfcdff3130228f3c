package ffmpeg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultLogLevel keeps ffmpeg quiet unless something goes wrong.
const DefaultLogLevel = "warning"

// ErrInvalidResolution is returned by ParseResolution for malformed input.
var ErrInvalidResolution = errors.New("invalid resolution")

// BuildArgs builds the argv for an ffmpeg process that writes a
// concatenated JPEG stream to stdout.
func BuildArgs(p *Params) []string {
	binary := p.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	logLevel := p.LogLevel
	if logLevel == "" {
		logLevel = DefaultLogLevel
	}

	args := []string{binary, "-hide_banner", "-nostdin", "-nostats", "-loglevel", "level+" + logLevel}

	size := ""
	if p.Width > 0 && p.Height > 0 {
		size = fmt.Sprintf("%dx%d", p.Width, p.Height)
	}

	if p.IsTestSource {
		testSrc := "testsrc2=size=" + orDefault(size, "640x480") + ":rate=" + orDefault(itoa(p.FPS), "30")
		// -re keeps the generator at the nominal frame rate
		args = append(args, "-re", "-f", "lavfi", "-i", testSrc)
	} else {
		args = append(args, "-f", "v4l2")
		if p.InputFormat != "" {
			args = append(args, "-input_format", p.InputFormat)
		}
		if size != "" {
			args = append(args, "-video_size", size)
		}
		if p.FPS > 0 {
			args = append(args, "-framerate", itoa(p.FPS))
		}
		args = append(args, "-i", p.DevicePath)
	}

	if p.Saturation != "" {
		args = append(args, "-vf", "eq=saturation="+p.Saturation)
	}

	args = append(args, "-an", "-c:v", "mjpeg")
	if p.Quality > 0 {
		args = append(args, "-q:v", itoa(p.Quality))
	}
	args = append(args, "-flush_packets", "1", "-f", "mjpeg", "pipe:1")

	return args
}

// BuildCommand renders the argv as a single shell-like string for logs.
func BuildCommand(p *Params) string {
	args := BuildArgs(p)
	for i, arg := range args {
		if strings.ContainsAny(arg, " \t\"'") {
			args[i] = strconv.Quote(arg)
		}
	}
	return strings.Join(args, " ")
}

// ParseResolution parses "WIDTHxHEIGHT".
func ParseResolution(s string) (width, height int, err error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	return width, height, nil
}

func itoa(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
