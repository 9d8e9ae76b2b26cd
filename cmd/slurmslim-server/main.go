// slurmslim-server is the stdio tool server the estimator spawns. It
// answers get_script_contents and get_file_size requests until stdin
// closes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JianYang-Lab/SlurmSlim/internal/toolserver"
)

// Version metadata injected via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("slurmslim-server %s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stdin closing or a shutdown signal are both normal ends of life.
	err := toolserver.New(version).Serve(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "slurmslim-server: %v\n", err)
		os.Exit(1)
	}
}
