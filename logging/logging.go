package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

// Scan output is chatty (one line per render step); cap the file so a
// long-running daemon cannot fill the disk.
const maxLogBytes = 8 << 20

// RotatingWriter appends to a log file and swaps it for a fresh one once it
// passes maxLogBytes, keeping a single .1 backup.
type RotatingWriter struct {
	mu   sync.Mutex
	file *os.File
	path string
	size int64
}

// Setup sends the stdlib logger to stdout and a rotating file at logPath.
func Setup(logPath string) (*RotatingWriter, error) {
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	rw := &RotatingWriter{file: f, path: logPath, size: size}
	if size > maxLogBytes {
		rw.swap()
	}

	log.SetOutput(io.MultiWriter(os.Stdout, rw))
	return rw, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	w.size += int64(n)
	if w.size > maxLogBytes {
		w.swap()
	}
	return n, err
}

// swap retires the current file to <path>.1 and starts a new one. On failure
// the old handle stays in place so logging never goes dark mid-run.
func (w *RotatingWriter) swap() {
	f, err := os.OpenFile(w.path+".tmp", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}

	w.file.Close()
	os.Rename(w.path, w.path+".1")
	os.Rename(w.path+".tmp", w.path)

	w.file = f
	w.size = 0
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
