// knxhost is the KNX building-automation bus host described in
// SPEC_FULL.md: a protocol stack (transceiver through binding) with two
// subcommands — check, which weaves the configured group objects and
// prints the resulting table without opening the bus, and run, which
// weaves and enters the main loop until an interrupt or runtime failure.
//
// Exit codes: 0 clean stop, 1 configuration error, 2 runtime failure.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	exitOK         = 0
	exitConfigErr  = 1
	exitRuntimeErr = 2
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	if len(args) == 0 {
		usage()
		return exitConfigErr
	}

	subcommand, rest := args[0], args[1:]

	switch subcommand {
	case "check":
		return runCheck(rest)
	case "run":
		return runRun(rest)
	case "-h", "--help", "help":
		usage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "knxhost: unknown subcommand %q\n", subcommand)
		usage()
		return exitConfigErr
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "knxhost %s (%s) built %s\n\n", version, commit, date)
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  knxhost check --config <path>")
	fmt.Fprintln(os.Stderr, "  knxhost run --config <path> [--daemon]")
}

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "./config.yaml", "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return exitConfigErr
	}

	if err := checkCommand(*configPath, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "knxhost: %v\n", err)
		return exitConfigErr
	}
	return exitOK
}

func runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "./config.yaml", "path to the YAML configuration file")
	daemon := fs.Bool("daemon", false, "suppress the interactive startup banner")
	if err := fs.Parse(args); err != nil {
		return exitConfigErr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !*daemon {
		fmt.Printf("knxhost %s (%s) built %s\n", version, commit, date)
	}

	exitCode, err := runCommand(ctx, *configPath, *daemon)
	if err != nil {
		fmt.Fprintf(os.Stderr, "knxhost: %v\n", err)
	}
	return exitCode
}
