package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/briandowns/spinner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hailam/cactus/internal/config"
	"github.com/hailam/cactus/internal/coupler"
	"github.com/hailam/cactus/internal/match"
	"github.com/hailam/cactus/internal/storage"
	"github.com/hailam/cactus/internal/tablebase"
)

const spinnerCharset = 14

func Match() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match engine1 engine2",
		Short: "Play a match between two engines",
		Long: heredoc.Doc(`match plays games between two engines from the config file,
			in pairs from the same opening with colors reversed. The name
			"builtin" always refers to the engine inside this binary.

			Defaults for the number of games, concurrency, time control
			and openings come from the match section of the config. A time
			control is written as [moves/]seconds[+increment], for example
			10+0.1 or 40/60.

			Finished games are archived in the data directory and can be
			appended to a PGN file with --pgn.`),
		Example: heredoc.Doc(`
			$ cactus match builtin stockfish --games 20 --tc 5+0.05
			$ cactus match builtin builtin --depth 6 --pgn selfplay.pgn`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			mc := cfg.Match
			flags := cmd.Flags()
			if flags.Changed("games") {
				mc.Games, _ = flags.GetInt("games")
			}
			if flags.Changed("concurrency") {
				mc.Concurrency, _ = flags.GetInt("concurrency")
			}
			if flags.Changed("tc") {
				mc.TC, _ = flags.GetString("tc")
			}
			if flags.Changed("depth") {
				mc.Depth, _ = flags.GetInt("depth")
				mc.TC = ""
			}
			if flags.Changed("max-plies") {
				mc.MaxPlies, _ = flags.GetInt("max-plies")
			}
			pgnPath, _ := flags.GetString("pgn")
			useTB, _ := flags.GetBool("tablebase")

			var cl closers
			defer cl.Close()
			var engines [2]coupler.Config
			for i, name := range args {
				if engines[i], err = engineConfig(cfg, name, &cl); err != nil {
					return err
				}
			}
			if engines[0].Name == engines[1].Name {
				engines[1].Name += "-2"
			}

			opts := match.Options{
				Event:    fmt.Sprintf("%s vs %s", engines[0].Name, engines[1].Name),
				Depth:    mc.Depth,
				Nodes:    mc.Nodes,
				MaxPlies: mc.MaxPlies,
			}
			if mc.TC != "" {
				tc, err := config.ParseTimeControl(mc.TC)
				if err != nil {
					return err
				}
				opts.Base, opts.Inc, opts.MovesPerSession = tc.Base, tc.Inc, tc.MovesPerSession
				opts.TC = tc.String()
			}
			if useTB {
				opts.Tablebase = tablebase.NewCachedLichessProber()
			}

			store, err := openStore(cfg)
			if err != nil {
				logrus.WithError(err).Warn("games will not be archived")
			} else {
				defer store.Close()
			}
			var pgn *os.File
			if pgnPath != "" {
				if pgn, err = os.OpenFile(pgnPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
					return err
				}
				defer pgn.Close()
			}

			s := spinner.New(spinner.CharSets[spinnerCharset], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			s.Suffix = fmt.Sprintf(" playing %d games", mc.Games)
			s.Start()
			defer s.Stop()

			tour := &match.Tournament{
				Engines:     engines,
				Games:       mc.Games,
				Concurrency: mc.Concurrency,
				Openings:    mc.FENs,
				Options:     opts,
				OnGame: func(g *match.Game, score match.Score) {
					s.Lock()
					s.Suffix = fmt.Sprintf(" %d/%d games, %s", score.Games(), mc.Games, score)
					s.Unlock()
					logrus.WithFields(logrus.Fields{
						"round":  g.Round,
						"white":  g.White,
						"black":  g.Black,
						"result": g.Outcome,
					}).Info(g.Reason())
					record(g, store, pgn)
				},
			}
			_, score, err := tour.Run(cmd.Context())
			s.Stop()

			fmt.Fprintf(cmd.OutOrStdout(), "%s vs %s: %s (%.1f/%d)\n",
				engines[0].Name, engines[1].Name, score, score.Points(), score.Games())
			return err
		},
	}
	cmd.Flags().IntP("games", "n", 2, "Number of games")
	cmd.Flags().IntP("concurrency", "j", 1, "Games played at once")
	cmd.Flags().String("tc", "", "Time control, [moves/]seconds[+increment]")
	cmd.Flags().Int("depth", 0, "Fixed search depth instead of a clock")
	cmd.Flags().Int("max-plies", 0, "Adjudicate a draw after this many plies")
	cmd.Flags().String("pgn", "", "Append finished games to this PGN file")
	cmd.Flags().Bool("tablebase", false, "Adjudicate endgames with the lichess tablebase")
	return cmd
}

// record archives a finished game. Failures are logged, not fatal.
func record(g *match.Game, store *storage.Store, pgn *os.File) {
	text, err := g.PGN()
	if err != nil {
		logrus.WithError(err).Warn("pgn export")
		return
	}
	if pgn != nil {
		if _, err := fmt.Fprintf(pgn, "%s\n\n", text); err != nil {
			logrus.WithError(err).Warn("writing pgn")
		}
	}
	if store != nil {
		_, err := store.SaveGame(storage.GameRecord{
			Played: g.Started,
			White:  g.White,
			Black:  g.Black,
			Result: g.Outcome.String(),
			Reason: g.Reason(),
			PGN:    text,
		})
		if err != nil {
			logrus.WithError(err).Warn("archiving game")
		}
	}
}

