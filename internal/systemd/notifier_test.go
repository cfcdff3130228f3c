package systemd

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// listenNotify points NOTIFY_SOCKET at a fresh datagram socket.
func listenNotify(t *testing.T) *net.UnixConn {
	t.Helper()
	dir, err := os.MkdirTemp("", "sdn")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	t.Setenv("NOTIFY_SOCKET", path)
	return conn
}

func readMessage(t *testing.T, conn *net.UnixConn) string {
	t.Helper()
	buf := make([]byte, 256)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read notify socket: %v", err)
	}
	return string(buf[:n])
}

func TestNotifierSendsStates(t *testing.T) {
	conn := listenNotify(t)
	n := NewNotifier(testLogger())

	n.Ready()
	if msg := readMessage(t, conn); msg != "READY=1" {
		t.Errorf("got %q, want READY=1", msg)
	}
	n.Status("streaming 640x480")
	if msg := readMessage(t, conn); msg != "STATUS=streaming 640x480" {
		t.Errorf("got %q", msg)
	}
	n.Reloading()
	if msg := readMessage(t, conn); msg != "RELOADING=1" {
		t.Errorf("got %q, want RELOADING=1", msg)
	}
	n.Stopping()
	if msg := readMessage(t, conn); msg != "STOPPING=1" {
		t.Errorf("got %q, want STOPPING=1", msg)
	}
}

func TestNotifierWithoutSocketIsNoop(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	n := NewNotifier(testLogger())
	n.Ready()
	n.Stopping()
}

func TestRunWatchdogDisabled(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	n := NewNotifier(testLogger())

	done := make(chan struct{})
	go func() {
		n.RunWatchdog(context.Background(), nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunWatchdog should return when the watchdog is disabled")
	}
}

func TestWatchdogSkipsWhenUnhealthy(t *testing.T) {
	var mu sync.Mutex
	var states []string
	n := &Notifier{
		logger: testLogger(),
		notify: func(state string) (bool, error) {
			mu.Lock()
			states = append(states, state)
			mu.Unlock()
			return true, nil
		},
	}

	var healthy sync.Map
	healthy.Store("ok", true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.runWatchdog(ctx, 10*time.Millisecond, func() bool {
			v, _ := healthy.Load("ok")
			return v.(bool)
		})
		close(done)
	}()

	time.Sleep(55 * time.Millisecond)
	healthy.Store("ok", false)
	mu.Lock()
	pings := len(states)
	mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if pings == 0 {
		t.Fatal("expected watchdog pings while healthy")
	}
	// At most one ping can race with the health flip.
	if len(states) > pings+1 {
		t.Errorf("watchdog kept pinging while unhealthy: %d -> %d", pings, len(states))
	}
	for _, s := range states {
		if s != "WATCHDOG=1" {
			t.Errorf("unexpected state %q", s)
		}
	}
}
