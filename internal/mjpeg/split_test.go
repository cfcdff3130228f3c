package mjpeg

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"
)

func jpeg(payload ...byte) []byte {
	out := []byte{0xFF, 0xD8}
	out = append(out, payload...)
	return append(out, 0xFF, 0xD9)
}

func scanAll(t *testing.T, r io.Reader) [][]byte {
	t.Helper()
	scanner := NewFrameScanner(r)
	var frames [][]byte
	for scanner.Scan() {
		frames = append(frames, bytes.Clone(scanner.Bytes()))
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanner error: %v", err)
	}
	return frames
}

func TestSplitJPEG(t *testing.T) {
	a := jpeg(0x01, 0x02, 0x03)
	b := jpeg(0xFF, 0x00, 0x10) // stuffed 0xFF inside entropy data
	c := jpeg()

	tests := []struct {
		name  string
		input []byte
		want  [][]byte
	}{
		{
			name:  "back to back frames",
			input: bytes.Join([][]byte{a, b, c}, nil),
			want:  [][]byte{a, b, c},
		},
		{
			name:  "garbage between frames",
			input: bytes.Join([][]byte{{0x00, 0x11}, a, {0x22, 0x33, 0x44}, b}, nil),
			want:  [][]byte{a, b},
		},
		{
			name:  "truncated last frame dropped",
			input: append(bytes.Clone(a), 0xFF, 0xD8, 0x01, 0x02),
			want:  [][]byte{a},
		},
		{
			name:  "no frames",
			input: []byte{0x01, 0x02, 0x03},
			want:  nil,
		},
		{
			name:  "empty",
			input: nil,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scanAll(t, bytes.NewReader(tt.input))
			if len(got) != len(tt.want) {
				t.Fatalf("got %d frames, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if !bytes.Equal(got[i], tt.want[i]) {
					t.Errorf("frame %d = %x, want %x", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitJPEGByteAtATime(t *testing.T) {
	a := jpeg(0x10, 0x20)
	b := jpeg(0x30, 0xFF, 0x00, 0x40)
	input := bytes.Join([][]byte{{0xAA}, a, b}, nil)

	got := scanAll(t, iotest.OneByteReader(bytes.NewReader(input)))
	if len(got) != 2 || !bytes.Equal(got[0], a) || !bytes.Equal(got[1], b) {
		t.Errorf("got %x, want [%x %x]", got, a, b)
	}
}
