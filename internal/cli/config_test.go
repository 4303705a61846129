package cli_test

import (
	"path/filepath"
	"testing"

	"github.com/afiaakosah/caching-i-o/internal/cli"
)

// Tests for print-config command.

func Test_Print_Config_Defaults_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, `"label": "cio"`)
	cli.AssertContains(t, stdout, `"log_level": "warn"`)
	cli.AssertContains(t, stdout, "(defaults only)")
}

func Test_Print_Config_From_Config_File_With_Comments_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".cio.json", `{
		// small windows for testing
		"capacity": 16,
		"label": "proj",
	}`)

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, `"capacity": 16`)
	cli.AssertContains(t, stdout, `"label": "proj"`)
	cli.AssertContains(t, stdout, "project_config="+filepath.Join(c.Dir, ".cio.json"))
}

func Test_Print_Config_Flag_Overrides_File_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".cio.json", `{"capacity": 16}`)

	stdout := c.MustRun("--capacity", "32", "print-config")

	cli.AssertContains(t, stdout, `"capacity": 32`)
}

func Test_Print_Config_Explicit_Config_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("custom.json", `{"label": "custom"}`)

	stdout := c.MustRun("-c", "custom.json", "print-config")

	cli.AssertContains(t, stdout, `"label": "custom"`)
}

func Test_Print_Config_Global_Config_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.Env["XDG_CONFIG_HOME"] = filepath.Join(c.Dir, "xdg")
	c.WriteFile(filepath.Join("xdg", "cio", "config.json"), `{"log_level": "error"}`)

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, `"log_level": "error"`)
	cli.AssertContains(t, stdout, "global_config="+filepath.Join(c.Dir, "xdg", "cio", "config.json"))
}

// Tests for config errors.

func Test_Config_Explicit_Config_Not_Found_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("-c", "nonexistent.json", "print-config")

	cli.AssertContains(t, stderr, "config file not found")
}

func Test_Config_Invalid_JSON_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".cio.json", `{invalid json}`)

	stderr := c.MustFail("print-config")

	cli.AssertContains(t, stderr, "invalid config file")
}

func Test_Flags_Config_Requires_Argument_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("-c")

	cli.AssertContains(t, stderr, "flag needs an argument")
}

// Tests for init-config command.

func Test_Init_Config_Writes_Loadable_File_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("init-config")

	cli.AssertContains(t, stdout, "wrote "+filepath.Join(c.Dir, ".cio.json"))
	cli.AssertContains(t, c.ReadFile(".cio.json"), `"label": "cio"`)

	// The written file must load cleanly.
	printed := c.MustRun("print-config")
	cli.AssertContains(t, printed, "project_config=")
}

func Test_Init_Config_Refuses_Overwrite_Without_Force_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".cio.json", `{"label": "mine"}`)

	stderr := c.MustFail("init-config")
	cli.AssertContains(t, stderr, "config file already exists")

	if got, want := c.ReadFile(".cio.json"), `{"label": "mine"}`; got != want {
		t.Fatalf("file=%q, want=%q", got, want)
	}

	c.MustRun("init-config", "--force")
	cli.AssertContains(t, c.ReadFile(".cio.json"), `"label": "cio"`)
}

func Test_Init_Config_Global_Writes_Under_XDG_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.Env["XDG_CONFIG_HOME"] = filepath.Join(c.Dir, "xdg")

	c.MustRun("init-config", "--global")

	cli.AssertContains(t, c.ReadFile(filepath.Join("xdg", "cio", "config.json")), `"capacity"`)
}
