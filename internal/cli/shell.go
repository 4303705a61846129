package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/afiaakosah/caching-i-o/pkg/cachedio"
	"github.com/afiaakosah/caching-i-o/pkg/fs"
)

// ShellCmd returns the shell command.
func ShellCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell <file>",
		Short: "Interactive session on a cached handle",
		Long: `Open file (creating it if missing) and run commands against the handle.

Type 'help' at the prompt for the command list. Input is read line by line
when stdin is not a terminal.`,
		Args: 1,
		Exec: func(ctx context.Context, o *IO, args []string) (err error) {
			f, err := a.open(args[0])
			if err != nil {
				return err
			}

			defer func() { err = errors.Join(err, f.Close()) }()

			sh := &shell{f: f, o: o}

			if in, ok := a.in.(*os.File); ok && in == os.Stdin {
				return runLiner(ctx, sh, a.local, historyFile(a.env))
			}

			if a.in == nil {
				return nil
			}

			return runLines(ctx, sh, scanPrompter{bufio.NewScanner(a.in)}, nil)
		},
	}
}

// historyFile returns the path to the history file.
func historyFile(env map[string]string) string {
	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".cio_history")
	}

	return ""
}

// prompter yields one input line per call and io.EOF when input ends.
type prompter interface {
	Prompt(prompt string) (string, error)
}

type scanPrompter struct {
	s *bufio.Scanner
}

func (p scanPrompter) Prompt(string) (string, error) {
	if p.s.Scan() {
		return p.s.Text(), nil
	}

	if err := p.s.Err(); err != nil {
		return "", err
	}

	return "", io.EOF
}

func runLiner(ctx context.Context, sh *shell, local *fs.Real, history string) error {
	state := liner.NewLiner()
	defer state.Close()

	state.SetCtrlCAborts(true)
	state.SetCompleter(sh.complete)

	if history != "" {
		if f, err := os.Open(history); err == nil {
			_, _ = state.ReadHistory(f)
			_ = f.Close()
		}
	}

	sh.o.Printf("cio shell on %s (capacity=%d)\n", sh.f.Label(), sh.f.Capacity())
	sh.o.Println("Type 'help' for available commands.")

	err := runLines(ctx, sh, state, func(line string) { state.AppendHistory(line) })

	if history != "" {
		var buf bytes.Buffer
		if _, werr := state.WriteHistory(&buf); werr == nil {
			_ = local.WriteFileAtomic(history, buf.Bytes(), 0o600)
		}
	}

	return err
}

func runLines(ctx context.Context, sh *shell, p prompter, onLine func(string)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := p.Prompt("cio> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		// Only leading blanks are dropped: trailing ones are write payload.
		line = strings.TrimLeft(strings.TrimRight(line, "\r\n"), " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if onLine != nil {
			onLine(line)
		}

		if sh.exec(line) {
			return nil
		}
	}
}

// shell executes REPL commands against one handle.
type shell struct {
	f *cachedio.File
	o *IO
}

var shellCommands = []string{
	"readc", "writec", "read", "write", "seek",
	"flush", "size", "pos", "stats", "help", "exit", "quit", "q",
}

// complete provides tab completion for commands.
func (s *shell) complete(line string) []string {
	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range shellCommands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

// exec runs one command line and reports whether the session should end.
func (s *shell) exec(line string) bool {
	name, rest := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		name, rest = line[:i], line[i+1:]
	}

	var err error

	switch strings.ToLower(name) {
	case "exit", "quit", "q":
		return true
	case "help", "?":
		s.help()
	case "readc":
		err = s.readc()
	case "writec":
		err = s.writec(rest)
	case "read":
		err = s.read(rest)
	case "write":
		err = s.write(rest)
	case "seek":
		err = s.seek(rest)
	case "flush":
		var n int
		if n, err = s.f.Flush(); err == nil {
			s.o.Printf("flushed %d\n", n)
		}
	case "size":
		var size int64
		if size, err = s.f.Size(); err == nil {
			s.o.Printf("%d\n", size)
		}
	case "pos":
		s.o.Printf("%d\n", s.f.Pos())
	case "stats":
		printStats(s.o, "file", s.f)
	default:
		s.o.ErrPrintln("unknown command:", name, "(type 'help' for commands)")
	}

	if err != nil {
		s.o.ErrPrintln("error:", err)
	}

	return false
}

func (s *shell) help() {
	s.o.Println(`Commands:
  readc                   read one byte at the cursor
  writec <c>              write one byte at the cursor
  read <n>                read up to n bytes
  write <text>            write text at the cursor
  seek <off> [start|cur|end]
                          move the cursor (default: start)
  flush                   write the dirty window back
  size                    on-disk file size
  pos                     cursor position
  stats                   syscall counters
  help                    show this help
  exit                    leave (flushes on close)`)
}

func (s *shell) readc() error {
	c, err := s.f.ReadByte()
	if errors.Is(err, io.EOF) {
		s.o.Println("EOF")
		return nil
	}

	if err != nil {
		return err
	}

	s.o.Printf("%q\n", c)

	return nil
}

func (s *shell) writec(arg string) error {
	if len(arg) != 1 {
		return fmt.Errorf("%w: writec takes one byte, got %q", ErrArgCount, arg)
	}

	if err := s.f.WriteByte(arg[0]); err != nil {
		return err
	}

	s.o.Println("ok")

	return nil
}

func (s *shell) read(arg string) error {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 {
		return fmt.Errorf("%w: read takes a positive count, got %q", ErrArgCount, arg)
	}

	buf := make([]byte, n)

	got, err := s.f.Read(buf)
	if errors.Is(err, io.EOF) {
		s.o.Println("EOF")
		return nil
	}

	if err != nil {
		return err
	}

	s.o.Printf("%d %q\n", got, buf[:got])

	return nil
}

func (s *shell) write(text string) error {
	if text == "" {
		return fmt.Errorf("%w: write takes text", ErrArgCount)
	}

	n, err := s.f.Write([]byte(text))
	if err != nil {
		return err
	}

	s.o.Printf("wrote %d\n", n)

	return nil
}

func (s *shell) seek(arg string) error {
	fields := strings.Fields(arg)
	if len(fields) == 0 || len(fields) > 2 {
		return fmt.Errorf("%w: seek <off> [start|cur|end]", ErrArgCount)
	}

	off, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: offset %q", ErrArgCount, fields[0])
	}

	whence := io.SeekStart

	if len(fields) == 2 {
		switch fields[1] {
		case "start":
			whence = io.SeekStart
		case "cur":
			whence = io.SeekCurrent
		case "end":
			whence = io.SeekEnd
		default:
			return fmt.Errorf("%w: whence %q", ErrArgCount, fields[1])
		}
	}

	pos, err := s.f.Seek(off, whence)
	if err != nil {
		return err
	}

	s.o.Printf("%d\n", pos)

	return nil
}
