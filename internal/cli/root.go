// Package cli holds the cobra commands of the cactus binaries.
package cli

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hailam/cactus/internal/config"
)

// Version is printed by --version.
var Version = "v0.1.0"

// SetupLogging configures the standard logger the way every cactus binary
// uses it. Standard output is left to the protocol.
func SetupLogging(w io.Writer) {
	logrus.SetOutput(w)
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		PadLevelText:     true,
	})
	logrus.SetLevel(logrus.InfoLevel)
}

func addLogFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolP("trace", "t", false, "Show Trace Information")
	cmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error)")
}

func applyLogFlags(cmd *cobra.Command) error {
	if cmd.Flag("log-level").Changed {
		name, _ := cmd.Flags().GetString("log-level")
		level, err := logrus.ParseLevel(name)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
	}
	// If --trace flag is provided, set logging level to Trace.
	if cmd.Flag("trace").Changed {
		logrus.SetLevel(logrus.TraceLevel)
	}
	return nil
}

// Root is the cactus command.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:   "cactus",
		Short: "Chess engine, engine driver and match runner",
		Args:  cobra.NoArgs,

		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applyLogFlags(cmd)
		},
	}

	addLogFlags(root)
	root.PersistentFlags().StringP("config", "c", "", fmt.Sprintf("Config file (default %s)", config.DefaultPath()))

	root.Version = Version
	root.SetVersionTemplate(Version + "\n")

	root.AddCommand(UCI())
	root.AddCommand(Perft())
	root.AddCommand(BestMove())
	root.AddCommand(Match())
	root.AddCommand(Serve())
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
