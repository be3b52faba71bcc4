// Command heapdump inspects script heap save files and writes demo saves.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/script-heap/dynobj"
	"github.com/wippyai/script-heap/pool"
	"github.com/wippyai/script-heap/runtime"
	"github.com/wippyai/script-heap/savegame"
)

type globalConfig struct {
	configPaths []string
	debug       bool
	log         *zap.Logger
}

func main() {
	rootCommand := &cobra.Command{
		Use:           "heapdump",
		Short:         "inspect script heap saves",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	g := new(globalConfig)
	rootCommand.PersistentFlags().StringArrayVar(&g.configPaths, "config", nil, "HuJSON runtime options `file` (repeatable)")
	rootCommand.PersistentFlags().BoolVar(&g.debug, "debug", false, "show debugging output")
	rootCommand.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return g.initLogging()
	}

	rootCommand.AddCommand(
		newDumpCommand(g),
		newInspectCommand(g),
		newDemoCommand(g),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCommand.ExecuteContext(ctx)
	cancel()
	if g.log != nil {
		_ = g.log.Sync()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "heapdump: %v\n", err)
		os.Exit(1)
	}
}

func (g *globalConfig) initLogging() error {
	if !g.debug {
		g.log = zap.NewNop()
		return nil
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	g.log = log
	pool.SetLogger(log.Named("pool"))
	dynobj.SetLogger(log.Named("dynobj"))
	savegame.SetLogger(log.Named("savegame"))
	runtime.SetLogger(log.Named("runtime"))
	return nil
}

func (g *globalConfig) runtimeOptions() (runtime.Options, error) {
	opts, err := runtime.LoadOptions(g.configPaths...)
	if err != nil {
		return runtime.Options{}, err
	}
	opts.Logger = g.log
	return opts, nil
}
