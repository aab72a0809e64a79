package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hailam/cactus/internal/engine"
	"github.com/hailam/cactus/internal/uci"
)

const uciLong = `
	Runs the engine on standard input and output using the Universal Chess
	Interface, for use from a chess GUI or another driver. Logs go to
	standard error.

	A CPU profile of the whole session is written to cpu.pprof in the
	directory given by --cpuprofile, or by CPUPROFILE in the environment.`

func addUCIFlags(cmd *cobra.Command) {
	cmd.Flags().Int("hash", engine.DefaultHashMB, "Transposition table size in MiB")
	cmd.Flags().String("cpuprofile", "", "Write cpu.pprof into this directory")
}

func runUCIFlags(cmd *cobra.Command) error {
	hash, _ := cmd.Flags().GetInt("hash")
	dir, _ := cmd.Flags().GetString("cpuprofile")
	if dir == "" {
		dir = os.Getenv("CPUPROFILE")
	}
	return RunUCI(cmd.Context(), os.Stdin, os.Stdout, hash, dir)
}

// UCI is the "cactus uci" subcommand.
func UCI() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uci",
		Short: "Run the engine over UCI on stdin and stdout",
		Long:  heredoc.Doc(uciLong),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUCIFlags(cmd)
		},
	}
	addUCIFlags(cmd)
	return cmd
}

// UCIRoot is the root command of the standalone cactus-uci binary.
func UCIRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cactus-uci",
		Short: "Cactus chess engine (UCI)",
		Long:  heredoc.Doc(uciLong),
		Args:  cobra.NoArgs,

		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applyLogFlags(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUCIFlags(cmd)
		},
	}
	addLogFlags(cmd)
	addUCIFlags(cmd)
	cmd.Version = Version
	return cmd
}

// RunUCI serves the protocol on in and out until quit, end of input or
// cancellation.
func RunUCI(ctx context.Context, in io.Reader, out io.Writer, hashMB int, profileDir string) error {
	if profileDir != "" {
		if err := os.MkdirAll(profileDir, 0o755); err != nil {
			return fmt.Errorf("could not create profile directory: %w", err)
		}
		defer profile.Start(
			profile.CPUProfile,
			profile.ProfilePath(profileDir),
			profile.NoShutdownHook,
			profile.Quiet,
		).Stop()
		logrus.WithField("file", filepath.Join(profileDir, "cpu.pprof")).Info("CPU profiling enabled")
	}

	eng := engine.New(hashMB)
	eng.SetLogger(logrus.WithField("component", "engine"))
	h := uci.New(eng, in, out)
	h.SetLogger(logrus.WithField("component", "uci"))

	err := h.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
