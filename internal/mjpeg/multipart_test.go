package mjpeg

import (
	"bytes"
	"errors"
	"testing"
)

func TestWritePartFraming(t *testing.T) {
	var buf bytes.Buffer
	jpeg := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}

	n, err := WritePart(&buf, jpeg)
	if err != nil {
		t.Fatalf("WritePart: %v", err)
	}

	want := append([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n"), jpeg...)
	want = append(want, '\r', '\n')
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("WritePart wrote %q, want %q", buf.Bytes(), want)
	}
	if n != len(want) {
		t.Errorf("WritePart returned %d, want %d", n, len(want))
	}
	if PartSize(len(jpeg)) != len(want) {
		t.Errorf("PartSize = %d, want %d", PartSize(len(jpeg)), len(want))
	}
}

func TestContentType(t *testing.T) {
	if ContentType != "multipart/x-mixed-replace; boundary=frame" {
		t.Errorf("ContentType = %q", ContentType)
	}
}

type failingWriter struct {
	after int
	n     int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n >= w.after {
		return 0, errors.New("broken pipe")
	}
	w.n++
	return len(p), nil
}

func TestWritePartStopsOnError(t *testing.T) {
	w := &failingWriter{after: 1}
	n, err := WritePart(w, []byte{0xFF, 0xD8, 0xFF, 0xD9})
	if err == nil {
		t.Fatal("expected error from failing writer")
	}
	if n != len(partHeader) {
		t.Errorf("expected %d bytes before failure, got %d", len(partHeader), n)
	}
}
