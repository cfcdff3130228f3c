// Package mjpeg turns broadcast frames into a multipart/x-mixed-replace
// stream and splits raw MJPEG byte streams back into whole JPEG images.
package mjpeg

import (
	"io"
)

// Boundary is the multipart boundary used on every stream.
const Boundary = "frame"

// ContentType is the response content type for an MJPEG stream.
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

var (
	partHeader  = []byte("--" + Boundary + "\r\nContent-Type: image/jpeg\r\n\r\n")
	partTrailer = []byte("\r\n")
)

// WritePart writes one JPEG as a multipart chunk:
//
//	--frame\r\n
//	Content-Type: image/jpeg\r\n
//	\r\n
//	<jpeg>\r\n
//
// It returns the number of bytes written.
func WritePart(w io.Writer, jpeg []byte) (int, error) {
	total := 0
	for _, chunk := range [][]byte{partHeader, jpeg, partTrailer} {
		n, err := w.Write(chunk)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// PartSize returns the number of bytes WritePart emits for a JPEG of size n.
func PartSize(n int) int {
	return len(partHeader) + n + len(partTrailer)
}
