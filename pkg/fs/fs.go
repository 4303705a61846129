// Package fs provides the filesystem abstraction that cached file handles
// open their descriptors through.
//
// The main types are:
//   - [FS]: interface for the filesystem operations the handles need
//   - [File]: interface for an open descriptor (satisfied by [os.File])
//   - [Real]: production implementation using [os] package
//   - [Chaos]: testing implementation that injects random failures
//   - [Crash]: testing implementation that drops unsynced writes on a simulated crash
//
// Example usage:
//
//	fsys := fs.NewReal()
//	f, err := fsys.OpenFile("data.bin", os.O_RDWR|os.O_CREATE, 0o600)
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	// Positioned I/O does not move the descriptor offset:
//	buf := make([]byte, 4096)
//	n, err := f.ReadAt(buf, 0)
package fs

import (
	"io"
	"os"
)

// File represents an OS-backed open file descriptor.
//
// This interface is satisfied by [os.File]. On top of the streaming
// [io.Reader]/[io.Writer]/[io.Seeker] surface it requires positioned I/O
// ([io.ReaderAt], [io.WriterAt]): a positioned transfer names its offset
// explicitly and does not disturb the descriptor's own seek position.
//
// Implementations must follow the io contracts exactly. In particular
// ReadAt returns a non-nil error whenever n < len(p), and WriteAt returns a
// non-nil error whenever n < len(p).
type File interface {
	io.ReadWriteCloser
	io.Seeker
	io.ReaderAt
	io.WriterAt

	// Fd returns the file descriptor. See [os.File.Fd].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error
}

// FS defines the filesystem operations used by this module.
//
// All methods mirror their [os] package equivalents but can be intercepted
// for testing with fault injection.
//
// Paths use OS semantics (like the os package and path/filepath), not the
// slash-separated paths used by the standard library io/fs package.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// Open opens a file for reading. See [os.Open].
	Open(path string) (File, error)

	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// Stat returns file info. See [os.Stat].
	// Returns [os.ErrNotExist] if file doesn't exist.
	Stat(path string) (os.FileInfo, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
