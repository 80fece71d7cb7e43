package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/fakeyudi/tomato/internal/store"
	"github.com/fakeyudi/tomato/internal/timer"
)

// generateState produces an arbitrary, invariant-respecting timer.State.
// Timestamps are whole milliseconds in UTC to compare cleanly after a JSON
// round-trip.
func generateState(t *rapid.T) timer.State {
	st := timer.State{
		IsRunning:     rapid.Bool().Draw(t, "is_running"),
		TimeLeft:      rapid.IntRange(0, 10_000).Draw(t, "time_left"),
		WorkDuration:  rapid.IntRange(1, 10_000).Draw(t, "work"),
		BreakDuration: rapid.IntRange(1, 10_000).Draw(t, "break"),
		Mode:          rapid.SampledFrom([]timer.Mode{timer.ModeWork, timer.ModeBreak}).Draw(t, "mode"),
	}
	if st.IsRunning {
		ms := rapid.Int64Range(0, 1_900_000_000_000).Draw(t, "last_tick_ms")
		last := time.UnixMilli(ms).UTC()
		st.LastTick = &last
	}
	return st
}

func openBackends(t *testing.T) map[string]store.Store {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	backends := map[string]store.Store{}
	for _, name := range []string{store.BackendFile, store.BackendSQLite, store.BackendMemory} {
		s, err := store.Open(ctx, name, filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("Open(%s): %v", name, err)
		}
		t.Cleanup(func() { _ = s.Close() })
		backends[name] = s
	}
	return backends
}

// Feature: tomato, Property 4: timer state persistence round-trip
func TestTimerStateRoundTrip(t *testing.T) {
	for name, kv := range openBackends(t) {
		repo := store.NewTimerRepository(kv)
		t.Run(name, func(t *testing.T) {
			rapid.Check(t, func(rt *rapid.T) {
				original := generateState(rt)
				ctx := context.Background()

				if err := repo.Save(ctx, original); err != nil {
					rt.Fatalf("Save: %v", err)
				}
				loaded, err := repo.Load(ctx)
				if err != nil {
					rt.Fatalf("Load: %v", err)
				}

				if loaded.IsRunning != original.IsRunning ||
					loaded.TimeLeft != original.TimeLeft ||
					loaded.WorkDuration != original.WorkDuration ||
					loaded.BreakDuration != original.BreakDuration ||
					loaded.Mode != original.Mode {
					rt.Fatalf("loaded %+v, want %+v", loaded, original)
				}
				if (loaded.LastTick == nil) != (original.LastTick == nil) {
					rt.Fatalf("LastTick nil mismatch: got %v, want %v", loaded.LastTick, original.LastTick)
				}
				if loaded.LastTick != nil && !loaded.LastTick.Equal(*original.LastTick) {
					rt.Fatalf("LastTick = %v, want %v", *loaded.LastTick, *original.LastTick)
				}
			})
		})
	}
}

func TestLoadBeforeSaveReturnsErrNoState(t *testing.T) {
	for name, kv := range openBackends(t) {
		_, err := store.NewTimerRepository(kv).Load(context.Background())
		if !errors.Is(err, timer.ErrNoState) {
			t.Errorf("%s: Load = %v, want ErrNoState", name, err)
		}
		var v int
		if err := kv.Get(context.Background(), "missing", &v); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("%s: Get(missing) = %v, want ErrNotFound", name, err)
		}
	}
}

func TestEnsureDefaultsWritesOnce(t *testing.T) {
	ctx := context.Background()
	for name, kv := range openBackends(t) {
		repo := store.NewTimerRepository(kv)

		work, brk, err := repo.EnsureDefaults(ctx, 1500, 300)
		if err != nil {
			t.Fatalf("%s: EnsureDefaults: %v", name, err)
		}
		if work != 1500 || brk != 300 {
			t.Errorf("%s: first EnsureDefaults = %d/%d, want 1500/300", name, work, brk)
		}

		work, brk, err = repo.EnsureDefaults(ctx, 60, 30)
		if err != nil {
			t.Fatalf("%s: EnsureDefaults: %v", name, err)
		}
		if work != 1500 || brk != 300 {
			t.Errorf("%s: second EnsureDefaults overwrote keys: %d/%d", name, work, brk)
		}
	}
}

func TestFileStoreKeepsKeysIndependent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tomato", "state.json")
	fs, err := store.NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := fs.Set(ctx, "a", 1); err != nil {
		t.Fatal(err)
	}
	if err := fs.Set(ctx, "b", "two"); err != nil {
		t.Fatal(err)
	}

	// A second store over the same file sees both keys, as after a restart.
	reopened, err := store.NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	var a int
	var b string
	if err := reopened.Get(ctx, "a", &a); err != nil || a != 1 {
		t.Errorf("a = %d, %v", a, err)
	}
	if err := reopened.Get(ctx, "b", &b); err != nil || b != "two" {
		t.Errorf("b = %q, %v", b, err)
	}

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs, err := store.NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	var v int
	err = fs.Get(context.Background(), store.KeyTimerState, &v)
	if !errors.Is(err, store.ErrCorrupt) {
		t.Errorf("Get on corrupt file = %v, want ErrCorrupt", err)
	}
}

func TestFileStoreSetReplacesCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs, err := store.NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	repo := store.NewTimerRepository(fs)

	if _, err := repo.Load(ctx); !errors.Is(err, store.ErrCorrupt) {
		t.Fatalf("Load on corrupt file = %v, want ErrCorrupt", err)
	}
	want := timer.DefaultState(1500, 300)
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save over corrupt file: %v", err)
	}
	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if got.TimeLeft != want.TimeLeft || got.Mode != want.Mode || got.IsRunning {
		t.Errorf("Load = %+v, want %+v", got, want)
	}

	// Later writes go through the normal read-modify-write path.
	if err := fs.Set(ctx, store.KeyDefaultWorkSeconds, 1500); err != nil {
		t.Fatalf("Set after recovery: %v", err)
	}
	if _, err := repo.Load(ctx); err != nil {
		t.Errorf("timer state lost after second key: %v", err)
	}
}

func TestEnsureDefaultsRepairsCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs, err := store.NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	repo := store.NewTimerRepository(fs)

	work, brk, err := repo.EnsureDefaults(ctx, 3000, 600)
	if err != nil {
		t.Fatalf("EnsureDefaults on corrupt file: %v", err)
	}
	if work != 3000 || brk != 600 {
		t.Errorf("EnsureDefaults = %d/%d, want 3000/600", work, brk)
	}
	if _, err := repo.Load(ctx); !errors.Is(err, timer.ErrNoState) {
		t.Errorf("Load after repair = %v, want ErrNoState", err)
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	first, err := store.NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := first.Set(ctx, store.KeyDefaultWorkSeconds, 900); err != nil {
		t.Fatal(err)
	}
	if err := first.Set(ctx, store.KeyDefaultWorkSeconds, 1200); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := store.NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	var got int
	if err := second.Get(ctx, store.KeyDefaultWorkSeconds, &got); err != nil || got != 1200 {
		t.Errorf("got %d, %v; want 1200", got, err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := store.Open(context.Background(), "etcd", t.TempDir()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNewFileStoreUnwritableDirectory(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root; permission checks are ineffective")
	}

	tmp := t.TempDir()
	if err := os.Chmod(tmp, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(tmp, 0o755) })

	if _, err := store.NewFileStore(filepath.Join(tmp, "tomato", "state.json")); err == nil {
		t.Fatal("expected error creating store in unwritable directory, got nil")
	}
}
