package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"), testLogger())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorageTasks(t *testing.T) {
	s := newTestStorage(t)

	id, err := s.SaveTask("https://youtu.be/a", ModeAudio)
	if err != nil {
		t.Fatalf("save task: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero task id")
	}
	if status, err := s.TaskStatus(id); err != nil || status != StatusPending {
		t.Fatalf("expected pending, got %q (%v)", status, err)
	}

	if err := s.UpdateTaskStatus(id, StatusCompleted, "tg_1.mp3"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if status, _ := s.TaskStatus(id); status != StatusCompleted {
		t.Errorf("expected completed, got %q", status)
	}
}

func TestSQLiteStorageFileCache(t *testing.T) {
	s := newTestStorage(t)
	url := "https://youtu.be/a"

	if _, ok, err := s.GetCachedFile(url, ModeVideo); err != nil || ok {
		t.Fatalf("expected cache miss, got ok=%v err=%v", ok, err)
	}

	if err := s.StoreCachedFile(url, ModeVideo, CachedFile{FileID: "first", Kind: KindVideo}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := s.StoreCachedFile(url, ModeVideo, CachedFile{FileID: "second", Kind: KindDocument}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, ok, err := s.GetCachedFile(url, ModeVideo)
	if err != nil || !ok {
		t.Fatalf("expected cache hit, got ok=%v err=%v", ok, err)
	}
	if got.FileID != "second" || got.Kind != KindDocument {
		t.Errorf("expected upserted entry, got %+v", got)
	}

	if _, ok, _ := s.GetCachedFile(url, ModeAudio); ok {
		t.Error("audio mode must not share the video cache entry")
	}

	if err := s.DeleteCachedFile(url, ModeVideo); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.GetCachedFile(url, ModeVideo); ok {
		t.Error("expected entry to be deleted")
	}
}

func TestSweepTempFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	write := func(name string, age time.Duration) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		mtime := now.Add(-age)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
		return path
	}
	oldOwned := write("tg_old.mp4", 2*time.Hour)
	freshOwned := write("tg_fresh.mp4", time.Minute)
	oldForeign := write("other.mp4", 2*time.Hour)

	if n := sweepTempFiles(dir, tempFilePrefix, now, time.Hour, testLogger()); n != 1 {
		t.Fatalf("expected 1 file removed, got %d", n)
	}
	if _, err := os.Stat(oldOwned); !os.IsNotExist(err) {
		t.Error("old tg_ file should be removed")
	}
	for _, p := range []string{freshOwned, oldForeign} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should be kept: %v", p, err)
		}
	}
}

func TestSQLiteStorageCleanup(t *testing.T) {
	s := newTestStorage(t)
	dir := t.TempDir()

	tracked := filepath.Join(dir, "tracked.mp4")
	if err := os.WriteFile(tracked, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	s.StoreFileRecord(tracked)

	forgotten := filepath.Join(dir, "forgotten.mp4")
	if err := os.WriteFile(forgotten, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	s.StoreFileRecord(forgotten)
	s.ForgetFileRecord(forgotten)

	s.cleanup(time.Now().Add(2*time.Hour), time.Hour, []string{dir})

	if _, err := os.Stat(tracked); !os.IsNotExist(err) {
		t.Error("expired tracked file should be removed")
	}
	if _, err := os.Stat(forgotten); err != nil {
		t.Errorf("forgotten record must not be touched by cleanup: %v", err)
	}
}
