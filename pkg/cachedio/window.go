package cachedio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// readable reports whether the byte under the cursor is held in the window.
func (f *File) readable() bool {
	return f.pos >= f.start && f.pos < f.start+int64(f.valid)
}

// writable reports whether a byte can be stored at the cursor without
// leaving a gap in the window or running past its capacity.
func (f *File) writable() bool {
	return f.pos >= f.start &&
		f.pos <= f.start+int64(f.valid) &&
		f.pos < f.start+int64(len(f.cache))
}

// refill loads the window from the cursor with one positioned read and
// returns the number of bytes loaded. A window must be clean before it is
// replaced.
//
// On failure the window is emptied in place: start is kept so the cursor
// stays in step, and the next access misses and reloads.
func (f *File) refill() (int, error) {
	if f.dirty {
		panic("cachedio: refill over dirty window")
	}

	n, err := f.file.ReadAt(f.cache, f.pos)
	f.stats.ReadCalls++

	if err != nil && !errors.Is(err, io.EOF) {
		f.valid = 0

		return 0, fmt.Errorf("read %s at %d: %w", f.path, f.pos, err)
	}

	f.start = f.pos
	f.off = 0
	f.valid = n

	f.logWindow("refill")

	return n, nil
}

// flush writes a dirty window back to its file offset with one positioned
// write. A clean window is a no-op returning 0. The window stays dirty when
// the write fails or comes up short.
func (f *File) flush() (int, error) {
	if !f.dirty {
		return 0, nil
	}

	n, err := f.file.WriteAt(f.cache[:f.valid], f.start)
	f.stats.WriteCalls++

	if err != nil {
		return n, fmt.Errorf("write %s at %d: %w", f.path, f.start, err)
	}

	if n < f.valid {
		return n, fmt.Errorf("write %s at %d: %w", f.path, f.start, io.ErrShortWrite)
	}

	f.dirty = false

	f.logWindow("flush", "bytes", n)

	return n, nil
}

// reload handles a miss: persist the current window, then load a new one at
// the cursor.
func (f *File) reload() (int, error) {
	if _, err := f.flush(); err != nil {
		return 0, err
	}

	return f.refill()
}

// Flush writes the window back to the file if it is dirty and returns the
// number of bytes written. Flushing a clean window writes nothing and
// returns 0.
//
// A short write returns an error wrapping [io.ErrShortWrite]; the window
// stays dirty so a later Flush retries it.
func (f *File) Flush() (int, error) {
	f.checkInvariants()

	return f.flush()
}

func (f *File) logWindow(msg string, attrs ...any) {
	if !f.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs = append(attrs, slog.Group("window",
		"pos", f.pos,
		"off", f.off,
		"start", f.start,
		"valid", f.valid,
		"dirty", f.dirty,
	))

	f.logger.Debug(msg, attrs...)
}
