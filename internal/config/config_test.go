package config_test

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/afiaakosah/caching-i-o/internal/config"
	"github.com/afiaakosah/caching-i-o/pkg/cachedio"
	"github.com/afiaakosah/caching-i-o/pkg/fs"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func Test_Load_Returns_Defaults_When_No_Files_Exist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := config.Load(config.LoadInput{WorkDir: dir, Env: map[string]string{"HOME": dir}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if diff := cmp.Diff(config.Default(), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func Test_Load_Applies_Precedence_When_All_Sources_Set(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	xdg := filepath.Join(dir, "xdg")

	writeFile(t, filepath.Join(xdg, "cio", "config.json"), `{"capacity": 64, "label": "global", "log_level": "info"}`)
	writeFile(t, filepath.Join(dir, config.FileName), `{
		// project wins over global
		"label": "project",
		"log_level": "debug",
	}`)

	cfg, err := config.Load(config.LoadInput{
		WorkDir:   dir,
		Env:       map[string]string{"XDG_CONFIG_HOME": xdg},
		Overrides: config.Config{LogLevel: "error"},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := config.Config{
		Capacity: 64,
		Label:    "project",
		LogLevel: "error",
		Sources: config.Sources{
			Global:  filepath.Join(xdg, "cio", "config.json"),
			Project: filepath.Join(dir, config.FileName),
		},
	}

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func Test_Load_Uses_Explicit_File_Instead_Of_Project_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), `{"label": "project"}`)
	writeFile(t, filepath.Join(dir, "custom.json"), `{"label": "custom"}`)

	cfg, err := config.Load(config.LoadInput{WorkDir: dir, ConfigPath: "custom.json"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got, want := cfg.Label, "custom"; got != want {
		t.Fatalf("label=%q, want=%q", got, want)
	}

	if got, want := cfg.Sources.Project, filepath.Join(dir, "custom.json"); got != want {
		t.Fatalf("project source=%q, want=%q", got, want)
	}
}

func Test_Load_Returns_ErrFileNotFound_When_Explicit_File_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.Load(config.LoadInput{WorkDir: t.TempDir(), ConfigPath: "missing.json"})
	if !errors.Is(err, config.ErrFileNotFound) {
		t.Fatalf("err=%v, want ErrFileNotFound", err)
	}
}

func Test_Load_Returns_ErrInvalid_When_File_Malformed(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"syntax":      `{invalid json}`,
		"unknown key": `{"capacty": 16}`,
		"wrong type":  `{"capacity": "big"}`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, config.FileName), content)

			_, err := config.Load(config.LoadInput{WorkDir: dir})
			if !errors.Is(err, config.ErrInvalid) {
				t.Fatalf("err=%v, want ErrInvalid", err)
			}
		})
	}
}

func Test_Load_Returns_ErrCapacity_When_Capacity_Below_Minimum(t *testing.T) {
	t.Parallel()

	_, err := config.Load(config.LoadInput{
		WorkDir:   t.TempDir(),
		Overrides: config.Config{Capacity: cachedio.MinCapacity - 1},
	})
	if !errors.Is(err, config.ErrCapacity) {
		t.Fatalf("err=%v, want ErrCapacity", err)
	}
}

func Test_Load_Returns_ErrCapacity_When_Capacity_Above_Maximum(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	body := fmt.Sprintf(`{"capacity": %d}`, cachedio.MaxCapacity+1)

	writeFile(t, filepath.Join(dir, config.FileName), body)

	_, err := config.Load(config.LoadInput{WorkDir: dir, Env: map[string]string{"HOME": dir}})
	if !errors.Is(err, config.ErrCapacity) {
		t.Fatalf("err=%v, want ErrCapacity", err)
	}
}

func Test_Load_Returns_ErrLogLevel_When_Level_Unknown(t *testing.T) {
	t.Parallel()

	_, err := config.Load(config.LoadInput{
		WorkDir:   t.TempDir(),
		Overrides: config.Config{LogLevel: "loud"},
	})
	if !errors.Is(err, config.ErrLogLevel) {
		t.Fatalf("err=%v, want ErrLogLevel", err)
	}
}

func Test_ParseLevel_Accepts_Slog_Names(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}

	for in, want := range tests {
		got, err := config.ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}

		if got != want {
			t.Fatalf("ParseLevel(%q)=%v, want=%v", in, got, want)
		}
	}
}

func Test_WriteDefault_Writes_Loadable_File_And_Refuses_Overwrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	fsys := fs.NewReal()

	if err := config.WriteDefault(fsys, path, false); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	cfg, err := config.Load(config.LoadInput{WorkDir: dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if diff := cmp.Diff(config.Default(), cfg, cmpopts.IgnoreFields(config.Config{}, "Sources")); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}

	if err := config.WriteDefault(fsys, path, false); !errors.Is(err, config.ErrExists) {
		t.Fatalf("second WriteDefault err=%v, want ErrExists", err)
	}

	if err := config.WriteDefault(fsys, path, true); err != nil {
		t.Fatalf("forced WriteDefault: %v", err)
	}
}
