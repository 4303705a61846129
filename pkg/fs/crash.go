package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrCrashed is returned by descriptors that were open when
// [Crash.SimulateCrash] ran.
var ErrCrashed = errors.New("crashfs: descriptor lost in crash")

// Crash is a test filesystem wrapper that models which file contents survive
// a process crash or power loss.
//
// Durability model (strict, pessimistic):
//   - A file's contents become durable only when [File.Sync] succeeds on a
//     handle for that file. Writes that reached the OS but were never synced
//     are lost.
//   - A file that existed before Crash first opened it is durable with the
//     contents it had at that moment.
//   - A file created through Crash and never synced does not survive.
//   - [Crash.Remove] is durable immediately.
//
// Typical usage:
//
//	crash := fs.NewCrash(fs.NewReal())
//	// Run code under test using crash as an fs.FS.
//	_ = crash.SimulateCrash()
//	// Assert on the post-crash files.
//
// Crash is not meant for production use.
type Crash struct {
	fs FS

	mu      sync.Mutex
	durable map[string][]byte // nil value: path has no durable contents
	open    map[*crashFile]struct{}
}

// NewCrash wraps underlying with crash simulation.
//
// Panics if underlying is nil.
func NewCrash(underlying FS) *Crash {
	if underlying == nil {
		panic("crashfs: underlying is nil")
	}

	return &Crash{
		fs:      underlying,
		durable: make(map[string][]byte),
		open:    make(map[*crashFile]struct{}),
	}
}

// Open opens path read-only. See [os.Open].
func (c *Crash) Open(path string) (File, error) {
	return c.OpenFile(path, os.O_RDONLY, 0)
}

// OpenFile opens path and tracks the handle. See [os.OpenFile].
func (c *Crash) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, tracked := c.durable[path]; !tracked {
		data, err := c.fs.ReadFile(path)

		switch {
		case err == nil:
			c.durable[path] = data
		case errors.Is(err, os.ErrNotExist):
			c.durable[path] = nil
		default:
			return nil, fmt.Errorf("crashfs: snapshot %s: %w", path, err)
		}
	}

	f, err := c.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	cf := &crashFile{File: f, crash: c, path: path}
	c.open[cf] = struct{}{}

	return cf, nil
}

// ReadFile passes through to the live view.
func (c *Crash) ReadFile(path string) ([]byte, error) {
	return c.fs.ReadFile(path)
}

// Stat passes through to the live view.
func (c *Crash) Stat(path string) (os.FileInfo, error) {
	return c.fs.Stat(path)
}

// Remove deletes path and its durable contents.
func (c *Crash) Remove(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fs.Remove(path); err != nil {
		return err
	}

	c.durable[path] = nil

	return nil
}

// SimulateCrash drops every unsynced change.
//
// Open descriptors are closed and return [ErrCrashed] from then on. Each
// tracked path is reset to its durable contents, or removed if it has none.
func (c *Crash) SimulateCrash() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error

	for cf := range c.open {
		cf.crashed = true
		_ = cf.File.Close()
	}

	clear(c.open)

	for path, data := range c.durable {
		if data == nil {
			if err := c.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}

			continue
		}

		if err := c.restore(path, data); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (c *Crash) restore(path string, data []byte) error {
	f, err := c.fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("crashfs: restore %s: %w", path, err)
	}

	_, err = f.WriteAt(data, 0)

	return errors.Join(err, f.Close())
}

// synced records the file's current contents as durable.
func (c *Crash) synced(cf *crashFile) error {
	info, err := cf.File.Stat()
	if err != nil {
		return err
	}

	data := make([]byte, info.Size())

	n, err := cf.File.ReadAt(data, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("crashfs: snapshot %s: %w", cf.path, err)
	}

	c.mu.Lock()
	c.durable[cf.path] = data[:n:n]
	c.mu.Unlock()

	return nil
}

func (c *Crash) closed(cf *crashFile) {
	c.mu.Lock()
	delete(c.open, cf)
	c.mu.Unlock()
}

// crashFile embeds the live descriptor and intercepts Sync and Close.
type crashFile struct {
	File

	crash   *Crash
	path    string
	crashed bool
}

func (cf *crashFile) ReadAt(p []byte, off int64) (int, error) {
	if cf.crashed {
		return 0, ErrCrashed
	}

	return cf.File.ReadAt(p, off)
}

func (cf *crashFile) WriteAt(p []byte, off int64) (int, error) {
	if cf.crashed {
		return 0, ErrCrashed
	}

	return cf.File.WriteAt(p, off)
}

func (cf *crashFile) Sync() error {
	if cf.crashed {
		return ErrCrashed
	}

	if err := cf.File.Sync(); err != nil {
		return err
	}

	return cf.crash.synced(cf)
}

func (cf *crashFile) Close() error {
	if cf.crashed {
		return ErrCrashed
	}

	cf.crash.closed(cf)

	return cf.File.Close()
}

var (
	_ FS   = (*Crash)(nil)
	_ File = (*crashFile)(nil)
)
