// Command workerd runs one worker driver against a coordinator: claim,
// fetch, probe/filter, transcode, upload, in a loop until the queue drains
// (spec.md §4.4).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"distrip/internal/config"
	"distrip/internal/probe"
	"distrip/internal/transcode"
	"distrip/internal/workerclient"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "workerd",
		Short: "Claim and process transcoding jobs from a coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", ".", "directory to search for worker.json")

	if err := root.Execute(); err != nil {
		log.Fatalf("workerd: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadWorkerConfig(configPath)
	if err != nil {
		return err
	}

	logger := log.New(os.Stdout, "workerd: ", log.LstdFlags)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := workerclient.New(cfg.CoordinatorURL)

	driver := workerclient.NewDriver(
		client,
		probe.ExecRunner{BinPath: cfg.ProbeBin},
		transcode.ExecRunner{BinPath: cfg.TranscoderBin},
		cfg.TempDir,
		cfg.HeartbeatInterval,
		logger,
	)

	if err := driver.CheckVersion(ctx); err != nil {
		return err
	}

	return driver.Run(ctx)
}
