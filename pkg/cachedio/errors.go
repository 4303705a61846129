package cachedio

import "errors"

// Sentinel errors returned by cachedio operations.
//
// Callers should use [errors.Is] to check error types.
var (
	// ErrInvalidInput indicates invalid arguments were provided: an empty
	// path, a capacity outside [MinCapacity, MaxCapacity], or an unknown seek whence.
	//
	// This is a programming error.
	ErrInvalidInput = errors.New("cachedio: invalid input")

	// ErrNegativeOffset indicates a seek resolved to a position before the
	// start of the file. The cursor is left unchanged.
	ErrNegativeOffset = errors.New("cachedio: negative offset")

	// ErrNotRegular indicates the descriptor does not refer to a regular
	// file, so its size is unknown.
	ErrNotRegular = errors.New("cachedio: not a regular file")

	// ErrClosed is returned by [File.Close] on a handle that was already
	// closed. Every other method panics on a closed handle.
	ErrClosed = errors.New("cachedio: closed")
)
