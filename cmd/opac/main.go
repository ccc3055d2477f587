package main

import (
	"context"

	"opacbridge/cmd/opac/commands"
	"opacbridge/lib/util/serviceutil"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	ctx, cancel := serviceutil.SignalContext(context.Background())
	defer cancel()
	commands.ExecuteContext(ctx)
}
