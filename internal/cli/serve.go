package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/hailam/cactus/internal/coupler"
	"github.com/hailam/cactus/internal/server"
)

func Serve() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analysis over HTTP and WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sc := cfg.Server
			if cmd.Flag("addr").Changed {
				sc.Addr, _ = cmd.Flags().GetString("addr")
			}
			if cmd.Flag("engine").Changed {
				sc.Engine, _ = cmd.Flags().GetString("engine")
			}
			if cmd.Flag("instances").Changed {
				sc.Instances, _ = cmd.Flags().GetInt("instances")
			}

			var cl closers
			defer cl.Close()
			ec, err := engineConfig(cfg, sc.Engine, &cl)
			if err != nil {
				return err
			}
			cfgs := make([]coupler.Config, max(sc.Instances, 1))
			for i := range cfgs {
				cfgs[i] = ec
			}
			pool, err := coupler.NewPool(cmd.Context(), cfgs...)
			if err != nil {
				return err
			}
			defer pool.Close(context.Background())

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			srv := server.New(pool, store, server.Options{
				MoveTime: time.Duration(sc.MoveTime) * time.Millisecond,
			})
			return srv.ListenAndServe(cmd.Context(), sc.Addr)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from config)")
	cmd.Flags().StringP("engine", "e", "", "Engine name from the config")
	cmd.Flags().Int("instances", 0, "Engine processes to run")
	return cmd
}
