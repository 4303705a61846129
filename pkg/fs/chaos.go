package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection. Unset fields default to 0.0.
type ChaosConfig struct {
	// OpenFailRate controls how often FS.Open and FS.OpenFile fail.
	// Read-only opens: EACCES, EIO, EMFILE, ENFILE, ENOTDIR.
	// Write opens (O_WRONLY, O_RDWR, O_CREATE, ...) add ENOSPC, EDQUOT, EROFS.
	OpenFailRate float64

	// ReadFailRate controls how often File.Read, File.ReadAt and FS.ReadFile
	// fail entirely, returning zero bytes and EIO.
	ReadFailRate float64

	// PartialReadRate controls how often File.ReadAt transfers only a prefix.
	// The prefix is real data and the error is EIO, as io.ReaderAt requires a
	// non-nil error for short positioned reads. File.Read instead returns a
	// short count with a nil error, which is legal io.Reader behavior.
	PartialReadRate float64

	// WriteFailRate controls how often File.Write and File.WriteAt fail
	// entirely, writing zero bytes (EIO, ENOSPC, EDQUOT or EROFS).
	WriteFailRate float64

	// PartialWriteRate controls how often File.Write and File.WriteAt write
	// only some bytes before failing. Returns n > 0 with an error whose type
	// is controlled by ShortWriteRate.
	PartialWriteRate float64

	// ShortWriteRate is the fraction of partial writes that return
	// io.ErrShortWrite instead of an errno-carrying *fs.PathError.
	ShortWriteRate float64

	// SeekFailRate controls how often File.Seek fails, returning 0 and EIO.
	SeekFailRate float64

	// FileStatFailRate controls how often File.Stat fails with EIO.
	FileStatFailRate float64

	// SyncFailRate controls how often File.Sync fails (EIO, ENOSPC, EDQUOT, EROFS).
	SyncFailRate float64

	// CloseFailRate controls how often File.Close reports EIO. The underlying
	// descriptor is always closed, even when an error is reported.
	CloseFailRate float64

	// StatFailRate controls how often FS.Stat fails on a path (EACCES, EIO).
	StatFailRate float64

	// RemoveFailRate controls how often FS.Remove fails
	// (EACCES, EPERM, EBUSY, EIO, EROFS).
	RemoveFailRate float64

	// TraceCapacity is the max number of operations kept in the trace log.
	// Zero disables tracing.
	TraceCapacity int
}

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault-rate injection.
	// This is the default mode for a new [Chaos].
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	ChaosModeNoOp
)

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	OpenFails     int64
	ReadFails     int64
	PartialReads  int64
	WriteFails    int64
	PartialWrites int64
	SeekFails     int64
	FileStatFails int64
	SyncFails     int64
	CloseFails    int64
	StatFails     int64
	RemoveFails   int64
}

// Total returns the sum of all counters.
func (s ChaosStats) Total() int64 {
	return s.OpenFails + s.ReadFails + s.PartialReads + s.WriteFails + s.PartialWrites +
		s.SeekFails + s.FileStatFails + s.SyncFails + s.CloseFails + s.StatFails + s.RemoveFails
}

// chaosError marks an error as intentionally injected by [Chaos].
// It wraps the underlying error so errors.Is/As continue to work.
type chaosError struct {
	Err error
}

func (e *chaosError) Error() string {
	return "chaos: " + e.Err.Error()
}

func (e *chaosError) Unwrap() error {
	return e.Err
}

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
// Returns false if err is nil.
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and injects random failures for testing.
//
// Injected errors are [*fs.PathError] values carrying a real [syscall.Errno],
// wrapped so [IsChaosErr] can tell them apart from genuine OS errors. Chaos
// never injects ENOENT (missing paths come from the wrapped FS) and never
// manufactures EOF: end-of-file always comes from the wrapped file.
//
// Return shapes follow [os.File]:
//   - Read/ReadAt failures return n==0 with an error.
//   - ReadAt partial transfers return a real prefix and EIO.
//   - Write/WriteAt may return n>0 with an error.
//   - Seek failures return 0 and leave the descriptor offset untouched.
//   - Close always closes the wrapped file, even when reporting an error.
type Chaos struct {
	fs     FS
	rng    *rand.Rand
	config ChaosConfig
	mode   atomic.Uint32
	trace  *chaosTrace

	rngMu sync.Mutex

	openFails     atomic.Int64
	readFails     atomic.Int64
	partialReads  atomic.Int64
	writeFails    atomic.Int64
	partialWrites atomic.Int64
	seekFails     atomic.Int64
	fileStatFails atomic.Int64
	syncFails     atomic.Int64
	closeFails    atomic.Int64
	statFails     atomic.Int64
	removeFails   atomic.Int64
}

// NewChaos creates a new [Chaos] filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
// Panics if underlying is nil.
func NewChaos(underlying FS, seed int64, config ChaosConfig) *Chaos {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	return &Chaos{
		fs:     underlying,
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
		config: config,
		trace:  newChaosTrace(config.TraceCapacity),
	}
}

// SetMode switches between injecting ([ChaosModeActive]) and passing
// through ([ChaosModeNoOp]). Safe to call concurrently with operations.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// Trace returns a formatted string of recent operations, one per line.
// Returns an empty string if tracing is disabled.
func (c *Chaos) Trace() string {
	return c.trace.String()
}

// TraceEvents returns a snapshot of the trace buffer.
// Returns nil if tracing is disabled.
func (c *Chaos) TraceEvents() []TraceEvent {
	return c.trace.snapshot()
}

// Stats returns the current fault injection counts.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:     c.openFails.Load(),
		ReadFails:     c.readFails.Load(),
		PartialReads:  c.partialReads.Load(),
		WriteFails:    c.writeFails.Load(),
		PartialWrites: c.partialWrites.Load(),
		SeekFails:     c.seekFails.Load(),
		FileStatFails: c.fileStatFails.Load(),
		SyncFails:     c.syncFails.Load(),
		CloseFails:    c.closeFails.Load(),
		StatFails:     c.statFails.Load(),
		RemoveFails:   c.removeFails.Load(),
	}
}

// Open opens a file for reading with fault injection.
func (c *Chaos) Open(path string) (File, error) {
	return c.open(path, opOpen, func() (File, error) {
		return c.fs.Open(path)
	})
}

// OpenFile opens a file with the given flags and permissions with fault injection.
func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	op := opOpen
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		op = opCreate
	}

	return c.open(path, op, func() (File, error) {
		return c.fs.OpenFile(path, flag, perm)
	})
}

// ReadFile reads a whole file with fault injection.
func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if c.should(c.config.ReadFailRate) {
		c.readFails.Add(1)
		err := pathError("read", path, syscall.EIO)
		c.trace.add("readfile", path, "fail", err, true)

		return nil, err
	}

	data, err := c.fs.ReadFile(path)

	c.trace.add("readfile", path, okKind(err), err, false,
		TraceAttr{"n", strconv.Itoa(len(data))})

	return data, err
}

// Stat returns file info with fault injection.
func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	if c.should(c.config.StatFailRate) {
		c.statFails.Add(1)
		errno := c.pick([]syscall.Errno{syscall.EACCES, syscall.EIO})
		err := pathError("stat", path, errno)
		c.trace.add("stat", path, "fail", err, true, TraceAttr{"errno", errno.Error()})

		return nil, err
	}

	info, err := c.fs.Stat(path)

	c.trace.add("stat", path, okKind(err), err, false)

	return info, err
}

// Remove removes a file with fault injection.
func (c *Chaos) Remove(path string) error {
	if c.should(c.config.RemoveFailRate) {
		c.removeFails.Add(1)
		errno := c.pick([]syscall.Errno{syscall.EACCES, syscall.EPERM, syscall.EBUSY, syscall.EIO, syscall.EROFS})
		err := pathError("remove", path, errno)
		c.trace.add("remove", path, "fail", err, true, TraceAttr{"errno", errno.Error()})

		return err
	}

	err := c.fs.Remove(path)

	c.trace.add("remove", path, okKind(err), err, false)

	return err
}

const (
	opOpen   = "open"
	opCreate = "create"
)

func (c *Chaos) open(path, op string, openFn func() (File, error)) (File, error) {
	if c.should(c.config.OpenFailRate) {
		c.openFails.Add(1)

		errnos := []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.EMFILE, syscall.ENFILE, syscall.ENOTDIR}
		if op == opCreate {
			errnos = append(errnos, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS)
		}

		errno := c.pick(errnos)
		err := pathError("open", path, errno)
		c.trace.add(op, path, "fail", err, true, TraceAttr{"errno", errno.Error()})

		return nil, err
	}

	file, err := openFn()

	c.trace.add(op, path, okKind(err), err, false)

	if err != nil {
		return nil, err
	}

	return &chaosFile{f: file, chaos: c, path: path}, nil
}

func (c *Chaos) getMode() ChaosMode {
	if c.mode.Load() == uint32(ChaosModeNoOp) {
		return ChaosModeNoOp
	}

	return ChaosModeActive
}

// should returns true with the given probability when chaos is injecting.
func (c *Chaos) should(rate float64) bool {
	if rate <= 0 || c.getMode() != ChaosModeActive {
		return false
	}

	return c.randFloat() < rate
}

func (c *Chaos) randFloat() float64 {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.Float64()
}

// randIntn returns a random int in [0, n).
func (c *Chaos) randIntn(n int) int {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.IntN(n)
}

func (c *Chaos) pick(errnos []syscall.Errno) syscall.Errno {
	return errnos[c.randIntn(len(errnos))]
}

// writeErrnos are the failures a write on an already-open descriptor can see.
var writeErrnos = []syscall.Errno{syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS}

// pathError creates an injected [*fs.PathError] wrapped in [chaosError].
func pathError(op, path string, errno syscall.Errno) error {
	return &chaosError{Err: &fs.PathError{Op: op, Path: path, Err: errno}}
}

// chaosFile wraps a [File] and injects faults on descriptor operations.
type chaosFile struct {
	f     File
	chaos *Chaos
	path  string
}

var _ File = (*chaosFile)(nil)

func (cf *chaosFile) Read(buf []byte) (int, error) {
	c := cf.chaos

	if c.should(c.config.ReadFailRate) {
		c.readFails.Add(1)
		err := pathError("read", cf.path, syscall.EIO)
		c.trace.add("file.read", cf.path, "fail", err, true)

		return 0, err
	}

	// Short read must limit the underlying read, otherwise the descriptor
	// offset advances past bytes the caller never saw.
	if len(buf) > 1 && c.should(c.config.PartialReadRate) {
		c.partialReads.Add(1)
		cutoff := c.randIntn(len(buf)-1) + 1

		n, err := cf.f.Read(buf[:cutoff])

		c.trace.add("file.read", cf.path, "short_read", err, true,
			TraceAttr{"n", strconv.Itoa(n)},
			TraceAttr{"requested", strconv.Itoa(len(buf))})

		return n, err
	}

	n, err := cf.f.Read(buf)

	c.trace.add("file.read", cf.path, okKind(err), err, false, TraceAttr{"n", strconv.Itoa(n)})

	return n, err
}

func (cf *chaosFile) ReadAt(buf []byte, off int64) (int, error) {
	c := cf.chaos
	offAttr := TraceAttr{"off", strconv.FormatInt(off, 10)}

	if c.should(c.config.ReadFailRate) {
		c.readFails.Add(1)
		err := pathError("read", cf.path, syscall.EIO)
		c.trace.add("file.readat", cf.path, "fail", err, true, offAttr)

		return 0, err
	}

	if len(buf) > 1 && c.should(c.config.PartialReadRate) {
		c.partialReads.Add(1)
		cutoff := c.randIntn(len(buf)-1) + 1

		n, err := cf.f.ReadAt(buf[:cutoff], off)
		if err == nil {
			err = pathError("read", cf.path, syscall.EIO)
		}

		c.trace.add("file.readat", cf.path, "partial_read", err, true, offAttr,
			TraceAttr{"n", strconv.Itoa(n)},
			TraceAttr{"requested", strconv.Itoa(len(buf))})

		return n, err
	}

	n, err := cf.f.ReadAt(buf, off)

	c.trace.add("file.readat", cf.path, okKind(err), err, false, offAttr, TraceAttr{"n", strconv.Itoa(n)})

	return n, err
}

func (cf *chaosFile) Write(data []byte) (int, error) {
	return cf.write("file.write", data, cf.f.Write)
}

func (cf *chaosFile) WriteAt(data []byte, off int64) (int, error) {
	return cf.write("file.writeat", data, func(p []byte) (int, error) {
		return cf.f.WriteAt(p, off)
	})
}

// write applies the shared write fault model to Write and WriteAt.
func (cf *chaosFile) write(op string, data []byte, writeFn func([]byte) (int, error)) (int, error) {
	c := cf.chaos

	if c.should(c.config.WriteFailRate) {
		c.writeFails.Add(1)
		errno := c.pick(writeErrnos)
		err := pathError("write", cf.path, errno)
		c.trace.add(op, cf.path, "fail", err, true, TraceAttr{"errno", errno.Error()})

		return 0, err
	}

	if len(data) > 1 && c.should(c.config.PartialWriteRate) {
		c.partialWrites.Add(1)
		cutoff := c.randIntn(len(data)-1) + 1

		wrote, err := writeFn(data[:cutoff])
		if err != nil {
			c.trace.add(op, cf.path, "fail", err, false, TraceAttr{"n", strconv.Itoa(wrote)})

			return wrote, err
		}

		if c.randFloat() < c.config.ShortWriteRate {
			err = &chaosError{Err: io.ErrShortWrite}
		} else {
			err = pathError("write", cf.path, c.pick(writeErrnos))
		}

		c.trace.add(op, cf.path, "partial_write", err, true,
			TraceAttr{"n", strconv.Itoa(wrote)},
			TraceAttr{"requested", strconv.Itoa(len(data))})

		return wrote, err
	}

	n, err := writeFn(data)

	c.trace.add(op, cf.path, okKind(err), err, false, TraceAttr{"n", strconv.Itoa(n)})

	return n, err
}

func (cf *chaosFile) Seek(offset int64, whence int) (int64, error) {
	c := cf.chaos

	if c.should(c.config.SeekFailRate) {
		c.seekFails.Add(1)
		err := pathError("seek", cf.path, syscall.EIO)
		c.trace.add("file.seek", cf.path, "fail", err, true)

		return 0, err
	}

	pos, err := cf.f.Seek(offset, whence)

	c.trace.add("file.seek", cf.path, okKind(err), err, false,
		TraceAttr{"offset", strconv.FormatInt(offset, 10)},
		TraceAttr{"whence", strconv.Itoa(whence)},
		TraceAttr{"pos", strconv.FormatInt(pos, 10)})

	return pos, err
}

func (cf *chaosFile) Fd() uintptr {
	return cf.f.Fd()
}

func (cf *chaosFile) Stat() (os.FileInfo, error) {
	c := cf.chaos

	if c.should(c.config.FileStatFailRate) {
		c.fileStatFails.Add(1)
		err := pathError("stat", cf.path, syscall.EIO)
		c.trace.add("file.stat", cf.path, "fail", err, true)

		return nil, err
	}

	info, err := cf.f.Stat()

	c.trace.add("file.stat", cf.path, okKind(err), err, false)

	return info, err
}

func (cf *chaosFile) Sync() error {
	c := cf.chaos

	if c.should(c.config.SyncFailRate) {
		c.syncFails.Add(1)
		errno := c.pick(writeErrnos)
		err := pathError("sync", cf.path, errno)
		c.trace.add("file.sync", cf.path, "fail", err, true, TraceAttr{"errno", errno.Error()})

		return err
	}

	err := cf.f.Sync()

	c.trace.add("file.sync", cf.path, okKind(err), err, false)

	return err
}

func (cf *chaosFile) Close() error {
	c := cf.chaos
	inject := c.should(c.config.CloseFailRate)

	err := cf.f.Close()
	if err != nil {
		c.trace.add("file.close", cf.path, "fail", err, false)

		return err
	}

	if inject {
		c.closeFails.Add(1)
		err = pathError("close", cf.path, syscall.EIO)
		c.trace.add("file.close", cf.path, "fail", err, true)

		return err
	}

	c.trace.add("file.close", cf.path, "ok", nil, false)

	return nil
}

var _ FS = (*Chaos)(nil)

// TraceEvent records a single Chaos operation with injection details.
//
// Unlike external tracing, TraceEvent also captures operations that Chaos
// altered but returned successfully, such as short streaming reads.
type TraceEvent struct {
	// Seq is the monotonically increasing sequence number.
	Seq uint64
	// Op is the operation name (e.g., "open", "file.readat").
	Op string
	// Path is the filesystem path involved.
	Path string
	// Err is the error returned by the operation (nil for success).
	Err error
	// Injected is true if Chaos modified the operation's behavior.
	Injected bool
	// Kind is a short label: "ok", "fail", "short_read", "partial_write", ...
	Kind string
	// Attrs contains additional key-value details.
	Attrs []TraceAttr
}

// TraceAttr is a key-value pair for trace event context.
type TraceAttr struct {
	Key   string
	Value string
}

func (e TraceEvent) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "#%d", e.Seq)

	if e.Injected {
		fmt.Fprintf(&sb, " [CHAOS:%s]", e.Kind)
	}

	fmt.Fprintf(&sb, " %s", e.Op)

	if e.Path != "" {
		fmt.Fprintf(&sb, " path=%q", e.Path)
	}

	for _, a := range e.Attrs {
		fmt.Fprintf(&sb, " %s=%s", a.Key, a.Value)
	}

	if !e.Injected {
		sb.WriteString(" " + e.Kind)
	}

	if e.Err != nil {
		fmt.Fprintf(&sb, " err=%v", e.Err)
	}

	return sb.String()
}

// chaosTrace is a bounded circular buffer of [TraceEvent].
type chaosTrace struct {
	mu       sync.Mutex
	capacity int
	events   []TraceEvent
	next     int
	full     bool
	seq      uint64
}

func newChaosTrace(capacity int) *chaosTrace {
	if capacity <= 0 {
		return nil
	}

	return &chaosTrace{
		capacity: capacity,
		events:   make([]TraceEvent, 0, capacity),
	}
}

func (t *chaosTrace) String() string {
	events := t.snapshot()

	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = e.String()
	}

	return strings.Join(lines, "\n")
}

func (t *chaosTrace) add(op, path, kind string, err error, injected bool, attrs ...TraceAttr) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++

	event := TraceEvent{
		Seq:      t.seq,
		Op:       op,
		Path:     path,
		Err:      err,
		Injected: injected,
		Kind:     kind,
		Attrs:    attrs,
	}

	if len(t.events) < t.capacity {
		t.events = append(t.events, event)

		return
	}

	t.events[t.next] = event
	t.next = (t.next + 1) % t.capacity
	t.full = true
}

func (t *chaosTrace) snapshot() []TraceEvent {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.full {
		return append([]TraceEvent(nil), t.events...)
	}

	out := make([]TraceEvent, 0, len(t.events))
	out = append(out, t.events[t.next:]...)
	out = append(out, t.events[:t.next]...)

	return out
}

func okKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, io.EOF):
		return "eof"
	default:
		return "fail"
	}
}
