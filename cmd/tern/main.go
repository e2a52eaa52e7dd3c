// Command tern runs a tern server from a tern.yaml file.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	terrors "github.com/tern-dev/tern/internal/errors"
)

// Version information set at build time.
var (
	commit = "none"
	date   = "unknown"
)

func main() {
	if err := rootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		terrors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		configPath string
		noColor    bool
	)

	root := &cobra.Command{
		Use:   "tern",
		Short: "A multi-worker HTTP and WebSocket server",
		Long: `Tern serves HTTP routes and WebSocket endpoints from a pool of workers
sharing one listening socket.

Configuration is read from tern.yaml in the working directory, the file
named by --config or TERN_CONFIG, and TERN_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				terrors.DisableColors()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to tern.yaml")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored error output")

	root.AddCommand(
		serveCmd(&configPath),
		configCmd(&configPath),
		versionCmd(),
	)
	return root
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}
