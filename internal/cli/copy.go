package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/afiaakosah/caching-i-o/pkg/cachedio"
)

const (
	defaultBlockSize = 512
	defaultStride    = 8
)

// Copy modes.
const (
	modeByte    = "byte"
	modeBlock   = "block"
	modeReverse = "reverse"
	modeStride  = "stride"
)

// CopyCmd returns the copy command.
func CopyCmd(a *app) *Command {
	flags := flag.NewFlagSet("copy", flag.ContinueOnError)
	mode := flags.StringP("mode", "m", modeByte, "Access pattern: byte, block, reverse, stride")
	block := flags.IntP("block", "b", defaultBlockSize, "Block size in bytes for block and stride modes")
	stride := flags.Int("stride", defaultStride, "Distance between visited blocks, in blocks, for stride mode")
	showStats := flags.Bool("stats", false, "Print syscall counters for both handles")

	return &Command{
		Flags: flags,
		Usage: "copy <src> <dst> [flags]",
		Short: "Copy a file through cached handles",
		Long: `Copy src to dst through two cached handles using one access pattern.

Modes:
  byte     read and write one byte at a time
  block    read and write --block sized chunks
  reverse  copy one byte at a time from the last offset to the first
  stride   visit blocks 0, s, 2s, ... then 1, 1+s, ... writing each at its own offset

dst is replaced.`,
		Args: 2,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if *block < 1 {
				return fmt.Errorf("%w: --block must be positive, got %d", ErrInvalidFlag, *block)
			}

			if *stride < 1 {
				return fmt.Errorf("%w: --stride must be positive, got %d", ErrInvalidFlag, *stride)
			}

			return execCopy(ctx, o, a, args[0], args[1], copyOptions{
				mode:   *mode,
				block:  *block,
				stride: *stride,
				stats:  *showStats,
			})
		},
	}
}

type copyOptions struct {
	mode   string
	block  int
	stride int
	stats  bool
}

func execCopy(ctx context.Context, o *IO, a *app, srcPath, dstPath string, opts copyOptions) (err error) {
	copyFn, ok := map[string]func(context.Context, *cachedio.File, *cachedio.File, copyOptions) (int64, error){
		modeByte:    copyBytes,
		modeBlock:   copyBlocks,
		modeReverse: copyReverse,
		modeStride:  copyStride,
	}[opts.mode]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, opts.mode)
	}

	src, err := a.openExisting(srcPath)
	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, src.Close()) }()

	if rmErr := a.fsys.Remove(a.abs(dstPath)); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return fmt.Errorf("replace destination: %w", rmErr)
	}

	dst, err := a.open(dstPath)
	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, dst.Close()) }()

	n, err := copyFn(ctx, src, dst, opts)
	if err != nil {
		return fmt.Errorf("copy %s: %w", opts.mode, err)
	}

	if _, err := dst.Flush(); err != nil {
		return err
	}

	o.Printf("copied %d bytes (%s)\n", n, opts.mode)

	if opts.stats {
		printStats(o, "src", src)
		printStats(o, "dst", dst)
	}

	return nil
}

func copyBytes(ctx context.Context, src, dst *cachedio.File, _ copyOptions) (int64, error) {
	var n int64

	for {
		if n%4096 == 0 && ctx.Err() != nil {
			return n, ctx.Err()
		}

		c, err := src.ReadByte()
		if errors.Is(err, io.EOF) {
			return n, nil
		}

		if err != nil {
			return n, err
		}

		if err := dst.WriteByte(c); err != nil {
			return n, err
		}

		n++
	}
}

func copyBlocks(ctx context.Context, src, dst *cachedio.File, opts copyOptions) (int64, error) {
	buf := make([]byte, opts.block)

	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := src.Read(buf)
		if errors.Is(err, io.EOF) {
			return total, nil
		}

		if err != nil {
			return total, err
		}

		if _, err := dst.Write(buf[:n]); err != nil {
			return total, err
		}

		total += int64(n)
	}
}

func copyReverse(ctx context.Context, src, dst *cachedio.File, _ copyOptions) (int64, error) {
	size, err := src.Size()
	if err != nil {
		return 0, err
	}

	for pos := size - 1; pos >= 0; pos-- {
		if pos%4096 == 0 && ctx.Err() != nil {
			return size - 1 - pos, ctx.Err()
		}

		if _, err := src.Seek(pos, io.SeekStart); err != nil {
			return size - 1 - pos, err
		}

		c, err := src.ReadByte()
		if err != nil {
			return size - 1 - pos, err
		}

		if _, err := dst.Seek(pos, io.SeekStart); err != nil {
			return size - 1 - pos, err
		}

		if err := dst.WriteByte(c); err != nil {
			return size - 1 - pos, err
		}
	}

	return size, nil
}

func copyStride(ctx context.Context, src, dst *cachedio.File, opts copyOptions) (int64, error) {
	size, err := src.Size()
	if err != nil {
		return 0, err
	}

	block := int64(opts.block)
	blocks := (size + block - 1) / block
	stride := int64(opts.stride)
	buf := make([]byte, block)

	var total int64

	for phase := range min(stride, blocks) {
		for k := phase; k < blocks; k += stride {
			if err := ctx.Err(); err != nil {
				return total, err
			}

			at := k * block

			if _, err := src.Seek(at, io.SeekStart); err != nil {
				return total, err
			}

			n, err := io.ReadFull(src, buf[:min(block, size-at)])
			if err != nil {
				return total, err
			}

			if _, err := dst.Seek(at, io.SeekStart); err != nil {
				return total, err
			}

			if _, err := dst.Write(buf[:n]); err != nil {
				return total, err
			}

			total += int64(n)
		}
	}

	return total, nil
}

func printStats(o *IO, name string, f *cachedio.File) {
	s := f.Stats()
	o.Printf("%s: read_calls=%d write_calls=%d seeks=%d capacity=%d\n",
		name, s.ReadCalls, s.WriteCalls, s.Seeks, f.Capacity())
}
