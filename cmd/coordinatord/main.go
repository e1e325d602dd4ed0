// Command coordinatord runs the job-dispatch coordinator (spec.md §4.1-4.3,
// §4.5): it scans an input directory for source images, serves the worker
// dispatch API, and reclaims jobs from workers that stop heartbeating.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"distrip/internal/config"
	"distrip/internal/coordinator"
	"distrip/internal/jobspec"
	"distrip/internal/queue"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "coordinatord",
		Short: "Dispatch transcoding jobs to workers over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", ".", "directory to search for coordinator.json")

	if err := root.Execute(); err != nil {
		log.Fatalf("coordinatord: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadCoordinatorConfig(configPath)
	if err != nil {
		return err
	}

	logger := log.New(os.Stdout, "coordinatord: ", log.LstdFlags)

	jobs, err := scanInputDir(cfg.InPath, cfg.TempDir, cfg.RipConfig, cfg.HBConfig, cfg.Fixes)
	if err != nil {
		return err
	}
	logger.Printf("found %d source image(s) in %s", len(jobs), cfg.InPath)

	manager := queue.NewManager(jobs)
	server := coordinator.NewServer(manager, cfg.OutPath, cfg.ListenAddr, logger)
	monitor := coordinator.NewMonitor(manager, cfg.ScanInterval, cfg.JobTimeout, server.ShutdownURL(), logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go monitor.Run(ctx)

	logger.Printf("listening on %s", cfg.ListenAddr)
	return server.Run(ctx)
}

// scanInputDir builds one Job per regular file found directly under inPath,
// matching the original drm.py entry point's directory scan.
func scanInputDir(inPath, tempRoot string, rip jobspec.RipConfig, hb jobspec.HandbrakeConfig, fixes jobspec.FixSet) ([]jobspec.Job, error) {
	entries, err := os.ReadDir(inPath)
	if err != nil {
		return nil, err
	}

	var jobs []jobspec.Job
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		sourcePath := filepath.Join(inPath, entry.Name())
		jobs = append(jobs, jobspec.NewJob(sourcePath, entry.Name(), tempRoot, rip, hb, fixes))
	}
	return jobs, nil
}
