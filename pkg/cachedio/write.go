package cachedio

import (
	"fmt"
	"io"
)

// WriteByte stores c at the cursor and advances the cursor by one.
//
// The byte lands in the window and reaches the file on the next flush. A
// cursor the window cannot hold reloads the window at the cursor first.
// Writing at or past the end grows the file.
func (f *File) WriteByte(c byte) error {
	f.checkInvariants()

	if err := f.prepareWrite(); err != nil {
		return err
	}

	f.cache[f.off] = c
	if int(f.off) == f.valid {
		f.valid++
	}

	f.dirty = true
	f.pos++
	f.off++
	f.grow()

	return nil
}

// Write writes p at the cursor and advances the cursor by the bytes written.
//
// A write that fits in the window's remaining capacity is copied into the
// cache. A larger write persists a dirty window, writes p directly with one
// positioned write and drops the window, since its bytes may now be stale.
//
// A short direct write returns the count written and an error wrapping
// [io.ErrShortWrite].
func (f *File) Write(p []byte) (int, error) {
	f.checkInvariants()

	if len(p) == 0 {
		return 0, nil
	}

	if err := f.prepareWrite(); err != nil {
		return 0, err
	}

	if len(p) > len(f.cache)-int(f.off) {
		return f.writeDirect(p)
	}

	n := copy(f.cache[f.off:], p)
	if end := int(f.off) + n; end > f.valid {
		f.valid = end
	}

	f.dirty = true
	f.pos += int64(n)
	f.off += int64(n)
	f.grow()

	return n, nil
}

// WriteString is like Write with the bytes of s.
func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (f *File) prepareWrite() error {
	if f.writable() {
		return nil
	}

	_, err := f.reload()

	return err
}

func (f *File) writeDirect(p []byte) (int, error) {
	if _, err := f.flush(); err != nil {
		return 0, err
	}

	f.logWindow("bypass write", "bytes", len(p))

	at := f.pos

	n, err := f.file.WriteAt(p, at)
	f.stats.WriteCalls++

	f.pos += int64(n)
	f.off += int64(n)
	f.valid = 0
	f.grow()

	if err != nil {
		return n, fmt.Errorf("write %s at %d: %w", f.path, at, err)
	}

	if n < len(p) {
		return n, fmt.Errorf("write %s at %d: %w", f.path, at, io.ErrShortWrite)
	}

	return n, nil
}

// grow extends the handle's view of the file size to cover the cursor.
func (f *File) grow() {
	if f.pos > f.size {
		f.size = f.pos
	}
}

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.ByteReader      = (*File)(nil)
	_ io.ByteWriter      = (*File)(nil)
	_ io.StringWriter    = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)
