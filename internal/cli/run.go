// Package cli implements the cio command line: global flags, configuration
// loading and the commands that drive cached file handles.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/afiaakosah/caching-i-o/internal/config"
	"github.com/afiaakosah/caching-i-o/pkg/cachedio"
	"github.com/afiaakosah/caching-i-o/pkg/fs"
)

// CLI errors.
var (
	ErrArgCount       = errors.New("wrong number of arguments")
	ErrUnknownCommand = errors.New("unknown command")
	ErrUnknownMode    = errors.New("unknown mode")
	ErrInvalidFlag    = errors.New("invalid flag value")
)

// app is the state shared by all commands of one invocation.
type app struct {
	cfg     config.Config
	workDir string
	env     map[string]string
	in      io.Reader
	fsys    fs.FS
	local   *fs.Real
	logger  *slog.Logger
}

// abs resolves path against the working directory.
func (a *app) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(a.workDir, path)
}

// open opens path as a cached handle with the configured capacity.
func (a *app) open(path string) (*cachedio.File, error) {
	return cachedio.Open(a.fsys, a.abs(path), a.cfg.Label+":"+filepath.Base(path),
		cachedio.WithCapacity(a.cfg.Capacity),
		cachedio.WithLogger(a.logger),
	)
}

// openExisting is open for paths that must already exist; open alone would
// create them.
func (a *app) openExisting(path string) (*cachedio.File, error) {
	if _, err := a.fsys.Stat(a.abs(path)); err != nil {
		return nil, err
	}

	return a.open(path)
}

// commands returns every command in help order.
func commands(a *app) []*Command {
	return []*Command{
		CopyCmd(a),
		CatCmd(a),
		StatsCmd(a),
		ShellCmd(a),
		PrintConfigCmd(a),
		InitConfigCmd(a),
	}
}

type globalFlags struct {
	set        *flag.FlagSet
	workDir    string
	configPath string
	capacity   int
	label      string
	logLevel   string
}

func newGlobalFlags() *globalFlags {
	g := &globalFlags{set: flag.NewFlagSet("cio", flag.ContinueOnError)}

	g.set.SetInterspersed(false)
	g.set.SetOutput(&strings.Builder{})
	g.set.StringVarP(&g.workDir, "cwd", "C", "", "Run as if started in `dir`")
	g.set.StringVarP(&g.configPath, "config", "c", "", "Use specified config `file`")
	g.set.IntVar(&g.capacity, "capacity", 0, "Cache capacity in `bytes` (default: page size)")
	g.set.StringVar(&g.label, "label", "", "Label prefix for log records")
	g.set.StringVar(&g.logLevel, "log-level", "", "Log `level`: debug, info, warn, error")
	g.set.BoolP("help", "h", false, "Show help")

	return g
}

// Run is the main entry point. Returns exit code.
//
// sigCh cancels the running command when it delivers a signal; it may be nil.
func Run(in io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	o := NewIO(out, errOut)
	globals := newGlobalFlags()

	if len(args) > 0 {
		args = args[1:]
	}

	if err := globals.set.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(o.Println, globals)
			return 0
		}

		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		printUsage(o.ErrPrintln, globals)

		return 1
	}

	rest := globals.set.Args()
	if len(rest) == 0 {
		printUsage(o.Println, globals)
		return 0
	}

	a, err := newApp(in, errOut, env, globals)
	if err != nil {
		o.ErrPrintln("error:", err)
		return 1
	}

	name := rest[0]

	var cmd *Command

	for _, c := range commands(a) {
		if c.Name() == name {
			cmd = c
			break
		}
	}

	if cmd == nil {
		o.ErrPrintln("error:", fmt.Errorf("%w: %s", ErrUnknownCommand, name))
		o.ErrPrintln()
		printUsage(o.ErrPrintln, globals)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	return cmd.Run(ctx, o, rest[1:])
}

func newApp(in io.Reader, errOut io.Writer, env map[string]string, g *globalFlags) (*app, error) {
	workDir := g.workDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("cannot get working directory: %w", err)
		}

		workDir = wd
	}

	if g.set.Changed("capacity") && (g.capacity < cachedio.MinCapacity || g.capacity > cachedio.MaxCapacity) {
		return nil, fmt.Errorf("%w: --capacity=%d (want %d..%d)", config.ErrCapacity, g.capacity, cachedio.MinCapacity, cachedio.MaxCapacity)
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDir:    workDir,
		ConfigPath: g.configPath,
		Env:        env,
		Overrides: config.Config{
			Capacity: g.capacity,
			Label:    g.label,
			LogLevel: g.logLevel,
		},
	})
	if err != nil {
		return nil, err
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	local := fs.NewReal()

	return &app{
		cfg:     cfg,
		workDir: workDir,
		env:     env,
		in:      in,
		fsys:    local,
		local:   local,
		logger:  slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level})),
	}, nil
}

func printUsage(printLine func(...any), g *globalFlags) {
	printLine("cio - cached file I/O tool")
	printLine()
	printLine("Usage: cio [global flags] <command> [args]")
	printLine()
	printLine("Global flags:")

	var buf strings.Builder
	g.set.SetOutput(&buf)
	g.set.PrintDefaults()
	g.set.SetOutput(&strings.Builder{})
	printLine(strings.TrimRight(buf.String(), "\n"))

	printLine()
	printLine("Commands:")

	for _, c := range commands(&app{}) {
		printLine(c.HelpLine())
	}
}
