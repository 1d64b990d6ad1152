package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcherCoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	var rebuilds atomic.Int32
	done := make(chan struct{}, 4)

	w, err := New([]string{dir}, 100*time.Millisecond, func(context.Context) {
		rebuilds.Add(1)
		done <- struct{}{}
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// A burst of writes inside the debounce window yields one rebuild.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(filepath.Join(dir, "book.tex"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("rebuild never triggered")
	}
	// Let any spurious second rebuild surface before counting.
	time.Sleep(300 * time.Millisecond)
	if got := rebuilds.Load(); got != 1 {
		t.Fatalf("expected 1 coalesced rebuild, got %d", got)
	}
}

func TestWatcherIgnoresIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	var rebuilds atomic.Int32

	w, err := New([]string{dir}, 50*time.Millisecond, func(context.Context) {
		rebuilds.Add(1)
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "scratch.log"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)
	if got := rebuilds.Load(); got != 0 {
		t.Fatalf("irrelevant file triggered %d rebuilds", got)
	}
}

func TestWatcherNoDirectoriesFails(t *testing.T) {
	w, err := New([]string{"", filepath.Join(os.TempDir(), "does-not-exist-texweb")}, time.Second, func(context.Context) {}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if err := w.Start(context.Background()); err == nil {
		t.Fatalf("expected error when nothing is watchable")
	}
}
