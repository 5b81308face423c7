// Package main is the entry point for the calcifer CLI.
//
// calcifer bootstraps kubeadm Kubernetes clusters over SSH and connects
// them to Azure Arc. Work is organised in goals (INIT, ARC, STATUS); each
// goal runs an ordered task chain per inventory group.
//
// For detailed usage information, run:
//
//	calcifer --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/calcifer/cmd/calcifer/commands"
	"github.com/imamik/calcifer/cmd/calcifer/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(handlers.ExitCode(err))
	}
}
