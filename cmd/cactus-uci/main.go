package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/hailam/cactus/internal/cli"
)

func main() {
	cli.SetupLogging(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.UCIRoot().ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
	}
}
