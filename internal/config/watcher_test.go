package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type testConfig struct {
	Name  string `toml:"name"`
	Value int    `toml:"value"`
}

func loadTestConfig(path string) (testConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return testConfig{}, err
	}
	var cfg testConfig
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startWatcher(t *testing.T, path string, opts ...WatcherOption[testConfig]) *Watcher[testConfig] {
	t.Helper()
	opts = append([]WatcherOption[testConfig]{WithDebounce[testConfig](30 * time.Millisecond)}, opts...)
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(), opts...)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	return w
}

func receive(t *testing.T, ch <-chan testConfig) testConfig {
	t.Helper()
	select {
	case cfg := <-ch:
		return cfg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
		return testConfig{}
	}
}

func TestConfigWatcher_BasicReload(t *testing.T) {
	path := writeConfig(t, "name = \"initial\"\nvalue = 1\n")
	w := startWatcher(t, path)

	received := make(chan testConfig, 4)
	w.OnReload(func(cfg testConfig) { received <- cfg })

	if err := os.WriteFile(path, []byte("name = \"updated\"\nvalue = 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := receive(t, received)
	if cfg.Name != "updated" || cfg.Value != 2 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestConfigWatcher_RenameReplace(t *testing.T) {
	path := writeConfig(t, "name = \"initial\"\n")
	w := startWatcher(t, path)

	received := make(chan testConfig, 4)
	w.OnReload(func(cfg testConfig) { received <- cfg })

	tmp := filepath.Join(filepath.Dir(path), "camfeed.toml.tmp")
	if err := os.WriteFile(tmp, []byte("name = \"swapped\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	if cfg := receive(t, received); cfg.Name != "swapped" {
		t.Errorf("Name = %q, want swapped", cfg.Name)
	}
}

func TestConfigWatcher_IgnoresSiblingFiles(t *testing.T) {
	path := writeConfig(t, "name = \"initial\"\n")
	w := startWatcher(t, path)

	var calls atomic.Int32
	w.OnReload(func(testConfig) { calls.Add(1) })

	sibling := filepath.Join(filepath.Dir(path), "other.toml")
	if err := os.WriteFile(sibling, []byte("name = \"x\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("handler called %d times for unrelated file", n)
	}
}

func TestConfigWatcher_MultipleHandlersAndUnsubscribe(t *testing.T) {
	path := writeConfig(t, "value = 0\n")
	w := startWatcher(t, path)

	first := make(chan testConfig, 4)
	second := make(chan testConfig, 4)
	unsubscribe := w.OnReload(func(cfg testConfig) { first <- cfg })
	w.OnReload(func(cfg testConfig) { second <- cfg })

	os.WriteFile(path, []byte("value = 1\n"), 0o600)
	if receive(t, first).Value != 1 || receive(t, second).Value != 1 {
		t.Fatal("both handlers should see value 1")
	}

	unsubscribe()
	os.WriteFile(path, []byte("value = 2\n"), 0o600)
	if receive(t, second).Value != 2 {
		t.Fatal("second handler should see value 2")
	}
	select {
	case cfg := <-first:
		t.Errorf("unsubscribed handler received %+v", cfg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	path := writeConfig(t, "value = 0\n")
	errs := make(chan error, 4)
	w := startWatcher(t, path, WithErrorHandler[testConfig](func(err error) { errs <- err }))

	var calls atomic.Int32
	w.OnReload(func(testConfig) { calls.Add(1) })

	os.WriteFile(path, []byte("value = \n"), 0o600)
	select {
	case err := <-errs:
		if err == nil {
			t.Error("expected non-nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error handler not called")
	}
	if calls.Load() != 0 {
		t.Error("handler should not run on load error")
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	path := writeConfig(t, "value = 0\n")
	w := startWatcher(t, path, WithDebounce[testConfig](100*time.Millisecond))

	received := make(chan testConfig, 16)
	w.OnReload(func(cfg testConfig) { received <- cfg })

	for i := 1; i <= 5; i++ {
		os.WriteFile(path, []byte(fmt.Sprintf("value = %d\n", i)), 0o600)
		time.Sleep(10 * time.Millisecond)
	}

	if cfg := receive(t, received); cfg.Value != 5 {
		t.Errorf("Value = %d, want 5", cfg.Value)
	}
	select {
	case cfg := <-received:
		t.Errorf("burst produced extra reload %+v", cfg)
	case <-time.After(250 * time.Millisecond):
	}
}

func TestConfigWatcher_StopIdempotentBeforeStart(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "x.toml"), loadTestConfig, newTestLogger())
	if err := w.Stop(); err != nil {
		t.Errorf("Stop before Start: %v", err)
	}
}

func TestConfigWatcher_StartMissingDirectory(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "nope", "x.toml"), loadTestConfig, newTestLogger())
	err := w.Start(context.Background())
	if err == nil {
		w.Stop()
		t.Fatal("expected error for missing directory")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Logf("start error: %v", err)
	}
}
