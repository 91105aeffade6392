package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRotatingWriter_SwapsPastCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scanner.log")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}

	rw := &RotatingWriter{file: f, path: path, size: maxLogBytes}
	defer rw.Close()

	if _, err := rw.Write([]byte("one more line\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := rw.Write([]byte("fresh file line\n")); err != nil {
		t.Fatalf("write after swap: %v", err)
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected a .1 backup after rotation: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read current log: %v", err)
	}
	if string(data) != "fresh file line\n" {
		t.Fatalf("current log should hold only post-swap writes, got %q", string(data))
	}
}

func TestRotatingWriter_SmallWritesStay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scanner.log")

	rw, err := Setup(path)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer rw.Close()

	if _, err := rw.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Fatalf("no rotation expected below the cap")
	}
}
