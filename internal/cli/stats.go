package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

// StatsCmd returns the stats command.
func StatsCmd(a *app) *Command {
	flags := flag.NewFlagSet("stats", flag.ContinueOnError)
	mode := flags.StringP("mode", "m", modeByte, "Read pattern: byte or block")
	block := flags.IntP("block", "b", defaultBlockSize, "Read size in bytes for block mode")

	return &Command{
		Flags: flags,
		Usage: "stats <file> [flags]",
		Short: "Read a file end to end and report syscall counts",
		Long: `Read a file end to end through a cached handle and report how many
positioned reads, writes and seeks the handle issued.`,
		Args: 1,
		Exec: func(ctx context.Context, o *IO, args []string) (err error) {
			if *mode != modeByte && *mode != modeBlock {
				return fmt.Errorf("%w: %q", ErrUnknownMode, *mode)
			}

			if *block < 1 {
				return fmt.Errorf("%w: --block must be positive, got %d", ErrInvalidFlag, *block)
			}

			f, err := a.openExisting(args[0])
			if err != nil {
				return err
			}

			defer func() { err = errors.Join(err, f.Close()) }()

			buf := make([]byte, *block)

			var total int64

			for {
				if err := ctx.Err(); err != nil {
					return err
				}

				var n int
				if *mode == modeByte {
					_, err = f.ReadByte()
					n = 1
				} else {
					n, err = f.Read(buf)
				}

				if errors.Is(err, io.EOF) {
					break
				}

				if err != nil {
					return err
				}

				total += int64(n)
			}

			o.Printf("bytes=%d\n", total)
			printStats(o, "file", f)

			return nil
		},
	}
}
