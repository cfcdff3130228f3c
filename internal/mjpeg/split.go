package mjpeg

import (
	"bufio"
	"bytes"
	"io"
)

// MaxFrameSize bounds a single JPEG read from a capture stream.
const MaxFrameSize = 8 << 20

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// SplitJPEG is a bufio.SplitFunc that yields one complete JPEG (SOI through
// EOI) per token from a concatenated MJPEG stream. Bytes outside an image
// are discarded and a truncated image at EOF is dropped, so every token is
// a whole frame.
//
//	scanner := bufio.NewScanner(stdout)
//	scanner.Split(mjpeg.SplitJPEG)
func SplitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF, it may be the first half of an SOI.
		if len(data) > 1 {
			return len(data) - 1, nil, nil
		}
		return 0, nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		if start > 0 {
			return start, nil, nil
		}
		return 0, nil, nil
	}

	stop := start + len(jpegSOI) + end + len(jpegEOI)
	return stop, data[start:stop], nil
}

// NewFrameScanner returns a scanner that yields whole JPEG frames from r.
// Tokens alias the scanner's buffer and must be copied before they are kept.
func NewFrameScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256<<10), MaxFrameSize)
	scanner.Split(SplitJPEG)
	return scanner
}
