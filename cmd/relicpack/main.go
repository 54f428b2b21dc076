package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/relicrush/relicpack/internal/cmd"
	apperr "github.com/relicrush/relicpack/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(apperr.ExitCodeOf(err))
	}
}
