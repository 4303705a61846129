package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

// CatCmd returns the cat command.
func CatCmd(a *app) *Command {
	flags := flag.NewFlagSet("cat", flag.ContinueOnError)
	block := flags.IntP("block", "b", defaultBlockSize, "Read size in bytes")

	return &Command{
		Flags: flags,
		Usage: "cat <file> [flags]",
		Short: "Print a file through a cached handle",
		Args:  1,
		Exec: func(ctx context.Context, o *IO, args []string) (err error) {
			if *block < 1 {
				return fmt.Errorf("%w: --block must be positive, got %d", ErrInvalidFlag, *block)
			}

			f, err := a.openExisting(args[0])
			if err != nil {
				return err
			}

			defer func() { err = errors.Join(err, f.Close()) }()

			buf := make([]byte, *block)

			for {
				if err := ctx.Err(); err != nil {
					return err
				}

				n, err := f.Read(buf)
				if errors.Is(err, io.EOF) {
					return nil
				}

				if err != nil {
					return err
				}

				if _, err := o.Write(buf[:n]); err != nil {
					return fmt.Errorf("write stdout: %w", err)
				}
			}
		},
	}
}
