package ffmpeg

// Input formats accepted by the v4l2 demuxer.
const (
	InputFormatMJPEG = "mjpeg"
	InputFormatYUYV  = "yuyv422"
)

// Params holds everything needed to generate an MJPEG capture command.
type Params struct {
	// Binary is the ffmpeg executable. Empty means "ffmpeg" on PATH.
	Binary string

	// Input configuration
	DevicePath   string
	InputFormat  string // mjpeg, yuyv422; empty lets the driver choose
	Width        int
	Height       int
	FPS          int
	IsTestSource bool // testsrc2 pattern instead of the device

	// Encoder configuration
	Saturation string // eq filter saturation, 0.0-3.0; empty leaves colours untouched
	Quality    int    // mjpeg -q:v, 2 (best) to 31 (worst); 0 uses the encoder default

	LogLevel string // ffmpeg -loglevel value without the level+ prefix
}
