package cli

import (
	"context"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/afiaakosah/caching-i-o/internal/config"
)

// InitConfigCmd returns the init-config command.
func InitConfigCmd(a *app) *Command {
	flags := flag.NewFlagSet("init-config", flag.ContinueOnError)
	global := flags.Bool("global", false, "Write the global config instead of "+config.FileName)
	force := flags.BoolP("force", "f", false, "Overwrite an existing file")

	return &Command{
		Flags: flags,
		Usage: "init-config [flags]",
		Short: "Write a default config file",
		Long:  "Write the default configuration to " + config.FileName + " in the working directory, or to the global config path with --global.",
		Args:  0,
		Exec: func(_ context.Context, o *IO, _ []string) error {
			path := filepath.Join(a.workDir, config.FileName)
			if *global {
				path = config.GlobalPath(a.env)
				if path == "" {
					return config.ErrFileNotFound
				}
			}

			if err := config.WriteDefault(a.local, path, *force); err != nil {
				return err
			}

			o.Println("wrote " + path)

			return nil
		},
	}
}
