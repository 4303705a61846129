package cachedio

import (
	"errors"
	"fmt"
	"io"
)

// ReadByte reads the byte under the cursor and advances the cursor by one.
//
// At or past the end of the file it persists a dirty window and returns
// [io.EOF]. A cursor outside the window reloads the window at the cursor.
func (f *File) ReadByte() (byte, error) {
	f.checkInvariants()

	if err := f.prepareRead(); err != nil {
		return 0, err
	}

	c := f.cache[f.off]
	f.pos++
	f.off++

	return c, nil
}

// Read reads up to len(p) bytes from the cursor into p.
//
// A request that fits in the bytes left in the window is copied from the
// cache. A larger request persists a dirty window, reads directly into p
// with one positioned read and reloads the window at the new cursor.
//
// Read returns (0, [io.EOF]) at the end of the file and never returns a
// partial count together with io.EOF.
func (f *File) Read(p []byte) (int, error) {
	f.checkInvariants()

	if len(p) == 0 {
		return 0, nil
	}

	if err := f.prepareRead(); err != nil {
		return 0, err
	}

	if avail := f.valid - int(f.off); len(p) <= avail {
		n := copy(p, f.cache[f.off:f.valid])
		f.pos += int64(n)
		f.off += int64(n)

		return n, nil
	}

	return f.readDirect(p)
}

// prepareRead makes the byte under the cursor readable from the window, or
// returns io.EOF.
func (f *File) prepareRead() error {
	if f.pos >= f.size {
		if _, err := f.flush(); err != nil {
			return err
		}

		return io.EOF
	}

	if f.readable() {
		return nil
	}

	n, err := f.reload()
	if err != nil {
		return err
	}

	if n == 0 {
		return io.EOF
	}

	return nil
}

func (f *File) readDirect(p []byte) (int, error) {
	if _, err := f.flush(); err != nil {
		return 0, err
	}

	f.logWindow("bypass read", "bytes", len(p))

	n, err := f.file.ReadAt(p, f.pos)
	f.stats.ReadCalls++

	f.pos += int64(n)
	f.off += int64(n)

	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("read %s at %d: %w", f.path, f.pos-int64(n), err)
	}

	if n == 0 {
		return 0, io.EOF
	}

	if _, err := f.refill(); err != nil {
		return n, err
	}

	return n, nil
}
