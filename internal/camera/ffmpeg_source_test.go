package camera

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camfeed/internal/broadcast"
	"github.com/smazurov/camfeed/internal/process"
)

const (
	frameA = `\377\330\001\002\377\331`
	frameB = `\377\330\003\377\331`
)

// fakeFFmpeg writes an executable shell script that stands in for ffmpeg.
// It appends its arguments to $CAMFEED_FAKE_ARGS when set.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\n" +
		`[ -n "$CAMFEED_FAKE_ARGS" ] && echo "$*" >> "$CAMFEED_FAKE_ARGS"` + "\n" +
		body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func testSettings(ffmpegPath string) Settings {
	s := DefaultSettings()
	s.TestPattern = true
	s.FFmpegPath = ffmpegPath
	s.StallTimeout = 0
	return s
}

func newTestSource(t *testing.T, settings Settings, opts ...Option) *FFmpegSource {
	t.Helper()
	opts = append([]Option{WithShutdownTimeouts(500*time.Millisecond, 500*time.Millisecond)}, opts...)
	src, err := NewFFmpegSource(settings, opts...)
	if err != nil {
		t.Fatalf("NewFFmpegSource: %v", err)
	}
	return src
}

type recordingPublisher struct {
	mu     sync.Mutex
	frames [][]byte
}

func (p *recordingPublisher) Publish(frame []byte) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, frame)
	return uint64(len(p.frames))
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

func (p *recordingPublisher) all() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.frames...)
}

func runSource(ctx context.Context, src Source, pub Publisher) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, pub)
	}()
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("source did not stop")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSourcePublishesFramesInOrder(t *testing.T) {
	script := fakeFFmpeg(t, "printf '"+frameA+frameB+frameA+"'\nexec sleep 10")
	src := newTestSource(t, testSettings(script))
	pub := &recordingPublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	done := runSource(ctx, src, pub)
	waitFor(t, "three frames", func() bool { return pub.count() == 3 })

	cancel()
	if err := waitErr(t, done); err != nil {
		t.Fatalf("Run after cancel = %v, want nil", err)
	}

	a := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}
	b := []byte{0xFF, 0xD8, 0x03, 0xFF, 0xD9}
	frames := pub.all()
	for i, want := range [][]byte{a, b, a} {
		if !bytes.Equal(frames[i], want) {
			t.Errorf("frame %d = %x, want %x", i, frames[i], want)
		}
	}
	if src.LastFrameAt().IsZero() {
		t.Error("LastFrameAt not recorded")
	}
}

func TestSourceFeedsBroadcaster(t *testing.T) {
	script := fakeFFmpeg(t, "while :; do printf '"+frameA+"'; sleep 0.01; done")

	var mu sync.Mutex
	var seqs []uint64
	src := newTestSource(t, testSettings(script), WithFrameObserver(func(seq uint64, size int) {
		mu.Lock()
		seqs = append(seqs, seq)
		mu.Unlock()
		if size != 6 {
			t.Errorf("frame size = %d, want 6", size)
		}
	}))
	b := broadcast.New()

	ctx, cancel := context.WithCancel(context.Background())
	done := runSource(ctx, src, b)

	frame, err := b.WaitForNext(ctx, 5)
	if err != nil {
		t.Fatalf("WaitForNext: %v", err)
	}
	if frame.Seq <= 5 || !bytes.Equal(frame.Data, []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}) {
		t.Errorf("unexpected frame %d %x", frame.Seq, frame.Data)
	}

	cancel()
	if err := waitErr(t, done); err != nil {
		t.Fatalf("Run = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seqs); i++ {
		if seqs[i] != seqs[i-1]+1 {
			t.Fatalf("observer saw non-consecutive generations %v", seqs)
		}
	}
}

func TestSourceProducerExited(t *testing.T) {
	script := fakeFFmpeg(t, "printf '"+frameA+"'\nexit 1")
	src := newTestSource(t, testSettings(script))

	err := waitErr(t, runSource(context.Background(), src, &recordingPublisher{}))
	if !errors.Is(err, ErrProducerExited) {
		t.Errorf("expected ErrProducerExited, got %v", err)
	}
	if state := src.Info().State; state != process.StateError {
		t.Errorf("state = %s, want error", state)
	}
}

func TestSourceStalled(t *testing.T) {
	script := fakeFFmpeg(t, "printf '"+frameA+"'\nexec sleep 10")
	settings := testSettings(script)
	settings.StallTimeout = 150 * time.Millisecond
	src := newTestSource(t, settings)
	pub := &recordingPublisher{}

	start := time.Now()
	err := waitErr(t, runSource(context.Background(), src, pub))
	if !errors.Is(err, ErrStalled) {
		t.Fatalf("expected ErrStalled, got %v", err)
	}
	if time.Since(start) < settings.StallTimeout {
		t.Error("stall reported before the timeout elapsed")
	}
	if pub.count() != 1 {
		t.Errorf("published %d frames, want 1", pub.count())
	}
}

func TestSourceMissingBinary(t *testing.T) {
	src := newTestSource(t, testSettings(filepath.Join(t.TempDir(), "no-ffmpeg")))
	err := waitErr(t, runSource(context.Background(), src, &recordingPublisher{}))
	if !errors.Is(err, ErrProducerExited) {
		t.Errorf("expected ErrProducerExited, got %v", err)
	}
}

func TestSourceProbeFailure(t *testing.T) {
	settings := testSettings("ffmpeg")
	settings.TestPattern = false
	settings.Device = "/dev/video9"

	src := newTestSource(t, settings, WithProbe(func(device string) (string, error) {
		return "", ErrDeviceNotFound
	}))
	err := waitErr(t, runSource(context.Background(), src, &recordingPublisher{}))
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestSourceUsesProbedInputFormat(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	t.Setenv("CAMFEED_FAKE_ARGS", argsFile)

	settings := testSettings(fakeFFmpeg(t, "printf '"+frameA+"'\nexec sleep 10"))
	settings.TestPattern = false
	settings.Device = "/dev/video7"

	var probed string
	src := newTestSource(t, settings, WithProbe(func(device string) (string, error) {
		probed = device
		return "mjpeg", nil
	}))
	pub := &recordingPublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	done := runSource(ctx, src, pub)
	waitFor(t, "first frame", func() bool { return pub.count() == 1 })
	cancel()
	waitErr(t, done)

	if probed != "/dev/video7" {
		t.Errorf("probed %q", probed)
	}
	data, _ := os.ReadFile(argsFile)
	if !strings.Contains(string(data), "-f v4l2 -input_format mjpeg -video_size 640x480 -framerate 30 -i /dev/video7") {
		t.Errorf("unexpected args %s", data)
	}
	if src.Name() != "v4l2:/dev/video7" {
		t.Errorf("Name = %q", src.Name())
	}
}

func TestReconfigureRestartsCapture(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	t.Setenv("CAMFEED_FAKE_ARGS", argsFile)

	settings := testSettings(fakeFFmpeg(t, "while :; do printf '"+frameA+"'; sleep 0.01; done"))
	var mu sync.Mutex
	var states []process.State
	src := newTestSource(t, settings, WithStateObserver(func(_ string, _, newState process.State) {
		mu.Lock()
		states = append(states, newState)
		mu.Unlock()
	}))
	pub := &recordingPublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runSource(ctx, src, pub)
	waitFor(t, "frames", func() bool { return pub.count() > 0 })

	updated := settings
	updated.Quality = 10
	updated.Saturation = "1.5"
	restarted, err := src.Reconfigure(updated)
	if err != nil || !restarted {
		t.Fatalf("Reconfigure = %v, %v", restarted, err)
	}

	waitFor(t, "second launch", func() bool {
		data, _ := os.ReadFile(argsFile)
		return strings.Count(string(data), "\n") >= 2
	})
	before := pub.count()
	waitFor(t, "frames after restart", func() bool { return pub.count() > before })

	data, _ := os.ReadFile(argsFile)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if !strings.Contains(lines[1], "-vf eq=saturation=1.5") || !strings.Contains(lines[1], "-q:v 10") {
		t.Errorf("restart args = %s", lines[1])
	}
	if src.Settings().Quality != 10 || src.Info().RestartCount != 1 {
		t.Errorf("settings %+v info %+v", src.Settings(), src.Info())
	}

	cancel()
	if err := waitErr(t, done); err != nil {
		t.Fatalf("Run = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	running := 0
	for _, s := range states {
		if s == process.StateRunning {
			running++
		}
	}
	if running != 2 {
		t.Errorf("states = %v, want two running transitions", states)
	}
}

func TestReconfigureWithoutChanges(t *testing.T) {
	src := newTestSource(t, testSettings("ffmpeg"))
	restarted, err := src.Reconfigure(src.Settings())
	if err != nil || restarted {
		t.Errorf("Reconfigure(same) = %v, %v", restarted, err)
	}
}

func TestReconfigureBeforeRunStoresSettings(t *testing.T) {
	src := newTestSource(t, testSettings("ffmpeg"))
	updated := src.Settings()
	updated.Framerate = 15
	restarted, err := src.Reconfigure(updated)
	if err != nil || restarted {
		t.Errorf("Reconfigure = %v, %v", restarted, err)
	}
	if src.Settings().Framerate != 15 {
		t.Errorf("Framerate = %d, want 15", src.Settings().Framerate)
	}
}

func TestReconfigureRejectsInvalid(t *testing.T) {
	src := newTestSource(t, testSettings("ffmpeg"))
	bad := src.Settings()
	bad.Quality = 99
	if _, err := src.Reconfigure(bad); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("expected ErrInvalidSettings, got %v", err)
	}
	if src.Settings().Quality != DefaultQuality {
		t.Error("invalid settings were applied")
	}
}

func TestRestartRelaunchesWithSameArgs(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	t.Setenv("CAMFEED_FAKE_ARGS", argsFile)

	src := newTestSource(t, testSettings(fakeFFmpeg(t, "while :; do printf '"+frameB+"'; sleep 0.01; done")))
	if src.Restart("test") {
		t.Error("Restart before Run should report false")
	}

	pub := &recordingPublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runSource(ctx, src, pub)
	waitFor(t, "frames", func() bool { return pub.count() > 0 })

	if !src.Restart("test") {
		t.Fatal("Restart while running should report true")
	}
	waitFor(t, "second launch", func() bool {
		data, _ := os.ReadFile(argsFile)
		return strings.Count(string(data), "\n") >= 2
	})

	data, _ := os.ReadFile(argsFile)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != lines[1] {
		t.Errorf("restart changed args:\n%s\n%s", lines[0], lines[1])
	}

	cancel()
	if err := waitErr(t, done); err != nil {
		t.Fatalf("Run = %v", err)
	}
}

func TestReloadedStallTimeoutApplies(t *testing.T) {
	script := fakeFFmpeg(t, "printf '"+frameA+"'\nexec sleep 10")
	src := newTestSource(t, testSettings(script))
	pub := &recordingPublisher{}

	done := runSource(context.Background(), src, pub)
	waitFor(t, "first frame", func() bool { return pub.count() == 1 })

	updated := src.Settings()
	updated.StallTimeout = 150 * time.Millisecond
	restarted, err := src.Reconfigure(updated)
	if err != nil || restarted {
		t.Fatalf("Reconfigure = %v, %v; want no restart", restarted, err)
	}

	if err := waitErr(t, done); !errors.Is(err, ErrStalled) {
		t.Fatalf("expected ErrStalled after enabling the stall timeout, got %v", err)
	}
}

// unpluggableFFmpeg exits after its first frame on the first run and keeps
// streaming on later runs, like a camera that was pulled and replugged.
func unpluggableFFmpeg(t *testing.T) string {
	t.Helper()
	marker := filepath.Join(t.TempDir(), "started")
	return fakeFFmpeg(t, "if [ -f '"+marker+"' ]; then printf '"+frameB+"'; exec sleep 10; fi\n"+
		"touch '"+marker+"'\nprintf '"+frameA+"'\nexit 1")
}

func deviceSettings(ffmpegPath string) Settings {
	settings := testSettings(ffmpegPath)
	settings.TestPattern = false
	settings.Device = "/dev/video0"
	return settings
}

func mjpegProbe(string) (string, error) { return "mjpeg", nil }

func TestSourceWaitsForUnpluggedDevice(t *testing.T) {
	src := newTestSource(t, deviceSettings(unpluggableFFmpeg(t)), WithProbe(mjpegProbe))
	pub := &recordingPublisher{}

	src.DeviceRemoved("/dev/video0")
	ctx, cancel := context.WithCancel(context.Background())
	done := runSource(ctx, src, pub)

	waitFor(t, "capture to park", func() bool {
		return pub.count() == 1 && src.Info().State == process.StateError
	})
	select {
	case err := <-done:
		t.Fatalf("Run returned %v while the device was unplugged", err)
	case <-time.After(100 * time.Millisecond):
	}
	if !src.DeviceMissing() {
		t.Error("DeviceMissing = false while unplugged")
	}

	if !src.DeviceAdded("/dev/video0") {
		t.Fatal("DeviceAdded did not resume capture")
	}
	waitFor(t, "frame after replug", func() bool { return pub.count() == 2 })
	if src.DeviceMissing() {
		t.Error("DeviceMissing = true after replug")
	}

	cancel()
	if err := waitErr(t, done); err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
	if frames := pub.all(); !bytes.Equal(frames[1], []byte{0xFF, 0xD8, 0x03, 0xFF, 0xD9}) {
		t.Errorf("second frame = %x", frames[1])
	}
}

func TestSourceUnplugReportedAfterExit(t *testing.T) {
	src := newTestSource(t, deviceSettings(unpluggableFFmpeg(t)),
		WithProbe(mjpegProbe), WithRemovalGrace(2*time.Second))
	pub := &recordingPublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runSource(ctx, src, pub)

	waitFor(t, "capture exit", func() bool {
		return pub.count() == 1 && src.Info().State == process.StateError
	})
	src.DeviceRemoved("/dev/video0")
	src.DeviceAdded("/dev/video0")
	waitFor(t, "frame after replug", func() bool { return pub.count() == 2 })

	cancel()
	if err := waitErr(t, done); err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
}

func TestSourceExitWithDevicePresentFails(t *testing.T) {
	src := newTestSource(t, deviceSettings(unpluggableFFmpeg(t)),
		WithProbe(mjpegProbe), WithRemovalGrace(20*time.Millisecond))

	err := waitErr(t, runSource(context.Background(), src, &recordingPublisher{}))
	if !errors.Is(err, ErrProducerExited) {
		t.Errorf("expected ErrProducerExited, got %v", err)
	}
	if src.DeviceAdded("/dev/video0") {
		t.Error("DeviceAdded resumed capture that was never unplugged")
	}
}
