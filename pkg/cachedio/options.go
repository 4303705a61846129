package cachedio

import (
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// Capacity bounds accepted by [Open].
const (
	MinCapacity = 4
	MaxCapacity = 1 << 30
)

// Option configures a [File] at [Open].
type Option func(*options)

type options struct {
	capacity int
	perm     os.FileMode
	logger   *slog.Logger
}

func defaultOptions() options {
	return options{
		capacity: DefaultCapacity(),
		perm:     0o600,
		logger:   slog.New(slog.DiscardHandler),
	}
}

// DefaultCapacity returns the cache capacity used when [WithCapacity] is not
// given: the OS page size.
func DefaultCapacity() int {
	return unix.Getpagesize()
}

// WithCapacity sets the cache capacity in bytes. Values outside
// [MinCapacity, MaxCapacity] make [Open] fail with [ErrInvalidInput].
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithPerm sets the permission bits used when [Open] creates the file.
// Default: 0o600.
func WithPerm(perm os.FileMode) Option {
	return func(o *options) { o.perm = perm }
}

// WithLogger sets the logger that receives debug records for window
// transitions and a statistics record on close. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
