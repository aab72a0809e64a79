package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hailam/cactus/internal/board"
)

func Perft() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perft depth",
		Short: "Count leaf nodes of the move tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			depth, err := strconv.Atoi(args[0])
			if err != nil || depth < 1 {
				return fmt.Errorf("bad depth %q", args[0])
			}
			fen, _ := cmd.Flags().GetString("fen")
			divide, _ := cmd.Flags().GetBool("divide")

			pos, err := board.ParseFEN(fen)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			start := time.Now()
			var nodes uint64
			if divide {
				for _, e := range pos.Divide(depth) {
					fmt.Fprintf(out, "%s: %d\n", e.Move, e.Nodes)
					nodes += e.Nodes
				}
				fmt.Fprintln(out)
			} else {
				nodes = pos.Perft(depth)
			}
			elapsed := time.Since(start)

			fmt.Fprintf(out, "Nodes searched: %d\n", nodes)
			fmt.Fprintf(out, "Time: %v (%.0f nps)\n", elapsed.Round(time.Millisecond), float64(nodes)/max(elapsed.Seconds(), 1e-9))
			return nil
		},
	}
	cmd.Flags().String("fen", board.StartFEN, "Position to count from")
	cmd.Flags().Bool("divide", false, "Print the count below each root move")
	return cmd
}
