package main

import (
	"context"
	"log"
	"os"

	"github.com/teamvault/sharecore/internal/client/cli"
	"github.com/teamvault/sharecore/internal/client/config"
	"github.com/teamvault/sharecore/internal/flagx"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// Configuration flags are consumed by LoadConfig; the command tree gets
	// the rest.
	args := flagx.ExcludeArgs(os.Args[1:], []string{"-s", "-d", "-v", "-c", "-config"})
	err = app.Run(ctx, args)
	_ = app.Close()
	if err != nil {
		os.Exit(1)
	}
}
