package watch

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDeliversFITSEvents(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{dir}, slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "field.fits")
	if err := os.WriteFile(path, []byte("SIMPLE"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case ev := <-w.Events:
		if ev.Path != path {
			t.Errorf("event path = %s, want %s", ev.Path, path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event for the new FITS file")
	}
}

func TestWatcherIgnoresNonFITS(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{dir}, slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	select {
	case ev := <-w.Events:
		t.Errorf("unexpected event for %s", ev.Path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStopClosesEvents(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{dir}, slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Keep the loop busy while shutting down; sends must never race the
	// channel close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			os.WriteFile(filepath.Join(dir, "burst.fits"), []byte("SIMPLE"), 0644)
		}
	}()
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	<-done

	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-w.Events:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("Events channel did not close after Stop")
		}
	}
}
