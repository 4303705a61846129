package cachedio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/afiaakosah/caching-i-o/pkg/fs"
)

// File is a buffered handle over one open descriptor.
//
// The handle keeps a window of the file in memory: cache[0:valid] mirrors
// the file bytes [start, start+valid). The cursor pos is the logical file
// position, and off is the cursor's offset relative to start. A window whose
// bytes differ from disk is dirty until it is flushed.
type File struct {
	file fs.File
	path string

	cache []byte
	pos   int64
	off   int64
	start int64
	valid int
	dirty bool
	size  int64

	label  string
	logger *slog.Logger
	stats  Stats
}

// Open opens path for reading and writing, creating it if absent, and loads
// the first window from offset 0.
//
// The label identifies the handle in log records. On any failure the
// descriptor is closed before Open returns.
//
// Possible errors:
//   - [ErrInvalidInput]: path is empty or the capacity is outside
//     [MinCapacity, MaxCapacity]
//   - [ErrNotRegular]: path does not name a regular file. Such paths are
//     refused rather than opened with an unknown size.
//   - open or read errors from fsys, wrapped
func Open(fsys fs.FS, path, label string, opts ...Option) (*File, error) {
	if fsys == nil {
		panic("cachedio: fsys is nil")
	}

	if path == "" {
		return nil, fmt.Errorf("path is required: %w", ErrInvalidInput)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.capacity < MinCapacity || o.capacity > MaxCapacity {
		return nil, fmt.Errorf("capacity must be in [%d, %d], got %d: %w", MinCapacity, MaxCapacity, o.capacity, ErrInvalidInput)
	}

	// The cache is allocated before the descriptor exists so nothing is
	// left open if the allocation fails.
	cache := make([]byte, o.capacity)

	file, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE, o.perm)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	f := &File{
		file:   file,
		path:   path,
		cache:  cache,
		label:  label,
		logger: o.logger.With("label", label),
	}

	if _, err := f.refill(); err != nil {
		_ = file.Close()

		return nil, err
	}

	size, err := f.Size()
	if err != nil {
		_ = file.Close()

		return nil, err
	}

	f.size = size

	f.logger.Debug("open", "path", path, "capacity", o.capacity, "size", size)

	return f, nil
}

// Close persists a dirty window and releases the descriptor and the cache.
//
// Resources are released even when the flush or the close fails; both
// errors are reported. Closing an already closed File returns [ErrClosed].
func (f *File) Close() error {
	if f.file == nil {
		return ErrClosed
	}

	f.checkInvariants()

	_, flushErr := f.flush()

	closeErr := f.file.Close()
	if closeErr != nil {
		closeErr = fmt.Errorf("close %s: %w", f.path, closeErr)
	}

	f.logger.Debug("close",
		"read_calls", f.stats.ReadCalls,
		"write_calls", f.stats.WriteCalls,
		"seeks", f.stats.Seeks,
	)

	f.file = nil
	f.cache = nil
	f.valid = 0
	f.dirty = false

	return errors.Join(flushErr, closeErr)
}

// Seek sets the cursor for the next read or write and returns the new
// absolute position.
//
// whence is one of [io.SeekStart], [io.SeekCurrent] or [io.SeekEnd]; the end
// is the handle's view of the file size, including unflushed bytes. The
// descriptor is repositioned first, so a failed seek leaves the cursor and
// window unchanged. The window is kept: a cursor that lands inside it is
// served without a reload.
//
// Possible errors:
//   - [ErrNegativeOffset]: the target is before the start of the file
//   - [ErrInvalidInput]: whence is unknown
//   - seek errors from the descriptor, wrapped
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.checkInvariants()

	var target int64

	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = f.pos + offset
	case io.SeekEnd:
		target = f.size + offset
	default:
		return f.pos, fmt.Errorf("seek %s: whence %d: %w", f.path, whence, ErrInvalidInput)
	}

	if target < 0 {
		return f.pos, fmt.Errorf("seek %s: offset %d: %w", f.path, target, ErrNegativeOffset)
	}

	got, err := f.file.Seek(target, io.SeekStart)
	if err != nil {
		return f.pos, fmt.Errorf("seek %s: %w", f.path, err)
	}

	f.off += got - f.pos
	f.pos = got
	f.stats.Seeks++

	f.logWindow("seek")

	return got, nil
}

// Size queries the descriptor for the file's current on-disk size.
//
// Unflushed bytes are not included. Returns [ErrNotRegular] when the
// descriptor does not refer to a regular file.
func (f *File) Size() (int64, error) {
	f.checkInvariants()

	info, err := f.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", f.path, err)
	}

	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("stat %s: %w", f.path, ErrNotRegular)
	}

	return info.Size(), nil
}

// Sync flushes a dirty window and commits the file to stable storage.
func (f *File) Sync() error {
	f.checkInvariants()

	if _, err := f.flush(); err != nil {
		return err
	}

	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", f.path, err)
	}

	return nil
}

// Pos returns the cursor position.
func (f *File) Pos() int64 {
	f.checkInvariants()

	return f.pos
}

// Label returns the label given at [Open].
func (f *File) Label() string {
	return f.label
}

// Capacity returns the cache capacity in bytes.
func (f *File) Capacity() int {
	f.checkInvariants()

	return len(f.cache)
}

// checkInvariants panics when the handle's state is inconsistent. A broken
// invariant means a bug in this package or use after Close, and continuing
// would corrupt the file.
func (f *File) checkInvariants() {
	switch {
	case f == nil:
		panic("cachedio: nil File")
	case f.file == nil:
		panic("cachedio: use of closed File")
	case len(f.cache) < MinCapacity:
		panic(fmt.Sprintf("cachedio: cache capacity %d below minimum", len(f.cache)))
	case f.valid < 0 || f.valid > len(f.cache):
		panic(fmt.Sprintf("cachedio: valid=%d outside [0, %d]", f.valid, len(f.cache)))
	case f.pos < 0:
		panic(fmt.Sprintf("cachedio: negative cursor %d", f.pos))
	case f.off != f.pos-f.start:
		panic(fmt.Sprintf("cachedio: off=%d out of step with pos=%d start=%d", f.off, f.pos, f.start))
	}
}
