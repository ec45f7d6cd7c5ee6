package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/nerrad567/knxhost/internal/binding"
	"github.com/nerrad567/knxhost/internal/device"
	"github.com/nerrad567/knxhost/internal/infrastructure/config"
	"github.com/nerrad567/knxhost/internal/infrastructure/logging"
	"github.com/nerrad567/knxhost/internal/monitor"
	"github.com/nerrad567/knxhost/internal/telemetry"
)

// checkCommand loads configuration, assembles the stack, weaves the
// configured group objects, and prints the resulting table to w — the
// same binding.Entry data the monitor API's /groupobjects endpoint
// renders, so the two never drift. It never opens the bus socket for
// sending; the transceiver is closed immediately after weave.
func checkCommand(configPath string, w io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	reg, err := device.New(cfg)
	if err != nil {
		return fmt.Errorf("assembling stack: %w", err)
	}
	defer reg.Stop()

	if err := registerFunctionalBlocks(reg, cfg); err != nil {
		return err
	}

	if err := reg.Device().Weave(); err != nil {
		return fmt.Errorf("weaving group objects: %w", err)
	}

	printGroupObjects(w, reg.Binding().Entries())
	return nil
}

// registerFunctionalBlocks loads the declarative functional-block file
// named in configuration and registers each block with the device. The
// CLI has no other way to populate the binding table, so the path is
// required here even though a library embedder calling Registry directly
// may register blocks in Go code instead and leave it unset.
func registerFunctionalBlocks(reg *device.Registry, cfg *config.Config) error {
	if cfg.Bindings.FunctionBlocksPath == "" {
		return fmt.Errorf("bindings.function_blocks_path is required")
	}

	blocks, err := binding.LoadFunctionalBlocks(cfg.Bindings.FunctionBlocksPath)
	if err != nil {
		return fmt.Errorf("loading functional blocks: %w", err)
	}

	for _, fb := range blocks {
		if err := reg.Device().Register(fb); err != nil {
			return fmt.Errorf("registering block %q: %w", fb.Name, err)
		}
	}
	return nil
}

// printGroupObjects renders the woven binding table as an aligned text
// table — the same binding.Entry data monitor's /groupobjects endpoint
// serves as JSON.
func printGroupObjects(w io.Writer, entries []binding.Entry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush() //nolint:errcheck // best-effort on a CLI output stream

	fmt.Fprintln(tw, "FUNCTIONAL BLOCK\tDATAPOINT\tGROUP ADDRESSES\tFLAGS\tPRIORITY\tVALUE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%v\n",
			e.FBName, e.DPName, strings.Join(e.GADs, ", "), e.Flags.String(), e.Priority.String(), e.Value)
	}
}

// runCommand loads configuration, assembles the stack, wires the optional
// telemetry/history sinks and monitor API, weaves, and runs until ctx is
// cancelled or a worker fails. daemon only suppresses interactive log
// lines; it does not fork — process supervision (systemd, etc.) owns
// backgrounding.
func runCommand(ctx context.Context, configPath string, daemon bool) (int, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return exitConfigErr, fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.New(cfg.Logging, version)

	reg, err := device.New(cfg)
	if err != nil {
		return exitConfigErr, fmt.Errorf("assembling stack: %w", err)
	}
	reg.SetLogger(logger)

	var sink *telemetry.Sink
	if cfg.Telemetry.Enabled || cfg.History.Enabled {
		sink, err = telemetry.New(ctx, cfg)
		if err != nil {
			reg.Stop()
			return exitConfigErr, fmt.Errorf("connecting telemetry sinks: %w", err)
		}
		sink.SetLogger(logger)
		defer sink.Close()
	}

	var monitorServer *monitor.Server
	if cfg.Monitor.Enabled {
		monitorServer, err = monitor.New(monitor.Deps{
			Config:  cfg.Monitor,
			Logger:  logger,
			Device:  reg.Device(),
			Link:    reg.Link(),
			Binding: reg.Binding(),
			Version: version,
		})
		if err != nil {
			reg.Stop()
			return exitConfigErr, fmt.Errorf("constructing monitor server: %w", err)
		}
		reg.AddWorker(func(ctx context.Context) error {
			if err := monitorServer.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return monitorServer.Close()
		})
	}

	if err := registerFunctionalBlocks(reg, cfg); err != nil {
		reg.Stop()
		return exitConfigErr, err
	}

	if err := reg.Device().Weave(); err != nil {
		reg.Stop()
		return exitConfigErr, fmt.Errorf("weaving group objects: %w", err)
	}

	if sink != nil {
		sink.RegisterAll(reg.Device().Notifier(), reg.Binding())
	}

	if !daemon {
		fmt.Println("Stack assembled. Entering main loop...")
	}

	if err := reg.Run(ctx); err != nil {
		return exitRuntimeErr, fmt.Errorf("running: %w", err)
	}

	if !daemon {
		fmt.Println("Stopped cleanly.")
	}
	return exitOK, nil
}
