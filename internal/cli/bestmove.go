package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hailam/cactus/internal/board"
	"github.com/hailam/cactus/internal/coupler"
	"github.com/hailam/cactus/internal/storage"
)

func BestMove() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bestmove",
		Short: "Ask an engine for its move in a position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			fen, _ := cmd.Flags().GetString("fen")
			moves, _ := cmd.Flags().GetStringSlice("moves")
			depth, _ := cmd.Flags().GetInt("depth")

			pos, err := board.ParseFEN(fen)
			if err != nil {
				return err
			}
			if err := pos.ApplyUCI(moves...); err != nil {
				return err
			}

			// Preferences fill in what the flags leave out and remember
			// what they set.
			store, err := openStore(cfg)
			if err != nil {
				logrus.WithError(err).Warn("preferences unavailable")
			} else {
				defer store.Close()
			}
			prefs := storage.DefaultPreferences()
			if store != nil {
				if p, err := store.LoadPreferences(); err == nil {
					prefs = p
				}
			}
			if cmd.Flag("engine").Changed {
				prefs.Engine, _ = cmd.Flags().GetString("engine")
			}
			if cmd.Flag("movetime").Changed {
				prefs.MoveTime, _ = cmd.Flags().GetInt("movetime")
			}

			ctx := cmd.Context()
			h, cl, err := openEngine(ctx, cfg, prefs.Engine)
			if err != nil {
				return err
			}
			defer cl.Close()
			defer h.Shutdown(context.Background())

			b := coupler.Budget{Depth: depth}
			if depth == 0 {
				b.MoveTime = time.Duration(prefs.MoveTime) * time.Millisecond
			}
			m, err := h.RequestMoveFunc(ctx, fen, moves, b, func(info coupler.Info) {
				logrus.Debug(info.Raw)
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			san := m.BestMove
			if mv, err := pos.ParseMove(m.BestMove); err == nil {
				san = pos.SAN(mv)
			}
			fmt.Fprintf(out, "bestmove %s (%s)\n", m.BestMove, san)
			if m.Info.HasScore {
				fmt.Fprintf(out, "score %s depth %d nodes %d time %v\n", m.Info.Score, m.Info.Depth, m.Info.Nodes, m.Elapsed.Round(time.Millisecond))
			}
			if len(m.Info.PV) > 0 {
				fmt.Fprintf(out, "pv %s\n", strings.Join(m.Info.PV, " "))
			}

			if store != nil {
				if err := store.SavePreferences(prefs); err != nil {
					logrus.WithError(err).Warn("saving preferences")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringP("engine", "e", "", "Engine name from the config (default: last used)")
	cmd.Flags().String("fen", board.StartFEN, "Position")
	cmd.Flags().StringSlice("moves", nil, "Moves played from the position, in UCI notation")
	cmd.Flags().Int("movetime", 1000, "Milliseconds to think (default: last used)")
	cmd.Flags().Int("depth", 0, "Search depth instead of a time limit")
	return cmd
}
