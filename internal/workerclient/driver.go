package workerclient

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"distrip/internal/coordinator"
	"distrip/internal/jobspec"
	"distrip/internal/probe"
	"distrip/internal/transcode"
)

// MinDiskSpaceLeft is the free-space floor checked before fetching a job's
// source image (spec.md §4.4). Falling below it is a warning, not a fatal
// condition — the worker proceeds anyway.
const MinDiskSpaceLeft = 15 << 30 // 15 GiB

// Driver runs the worker's claim -> fetch -> probe/filter -> transcode ->
// upload -> cleanup loop (spec.md §4.4), the Go analogue of the original
// slave.py main loop.
type Driver struct {
	Client            *Client
	ProbeRunner       probe.Runner
	TranscodeRunner   transcode.Runner
	TempRoot          string
	HeartbeatInterval time.Duration
	Logger            *log.Logger
}

// NewDriver builds a Driver. heartbeatInterval of zero falls back to
// DefaultHeartbeatInterval.
func NewDriver(client *Client, probeRunner probe.Runner, transcodeRunner transcode.Runner, tempRoot string, heartbeatInterval time.Duration, logger *log.Logger) *Driver {
	if heartbeatInterval <= 0 {
		heartbeatInterval = DefaultHeartbeatInterval
	}
	return &Driver{
		Client:            client,
		ProbeRunner:       probeRunner,
		TranscodeRunner:   transcodeRunner,
		TempRoot:          tempRoot,
		HeartbeatInterval: heartbeatInterval,
		Logger:            logger,
	}
}

// CheckVersion GETs /version and compares it against the worker's own
// compiled-in version, per spec.md §4.4's startup check.
func (d *Driver) CheckVersion(ctx context.Context) error {
	remote, err := d.Client.Version(ctx)
	if err != nil {
		return fmt.Errorf("coordinator unreachable: %w", err)
	}
	if remote != coordinator.Version {
		return fmt.Errorf("version mismatch: coordinator=%s worker=%s", remote, coordinator.Version)
	}
	return nil
}

// Run drives the claim loop until the queue is exhausted or the coordinator
// becomes unreachable.
func (d *Driver) Run(ctx context.Context) error {
	for {
		descriptor, err := d.Client.Claim(ctx)
		if err != nil {
			return fmt.Errorf("claim: %w", err)
		}
		if descriptor == nil {
			d.Logger.Printf("no jobs remaining, exiting")
			return nil
		}

		if err := d.runOne(ctx, *descriptor); err != nil {
			d.Logger.Printf("job %s failed: %v", descriptor.Name, err)
		}
	}
}

func (d *Driver) runOne(ctx context.Context, descriptor jobspec.Descriptor) error {
	jobID := descriptor.Name

	hb := StartHeartbeat(d.Client, jobID, d.HeartbeatInterval, d.Logger)
	defer hb.Stop()

	scratch := filepath.Join(d.TempRoot, jobID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	if free, err := freeDiskSpace(scratch); err == nil && free < MinDiskSpaceLeft {
		d.Logger.Printf("warning: free disk space %d below MIN_DISK_SPACE_LEFT for job %s", free, jobID)
	}

	if hb.Failed() {
		return fmt.Errorf("abandoning job %s: heartbeat failed before fetch", jobID)
	}

	inputName, contentLength, err := d.Client.FetchInput(ctx, jobID, scratch)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	inputPath := filepath.Join(scratch, inputName)
	if info, statErr := os.Stat(inputPath); statErr != nil || info.Size() != contentLength {
		return fmt.Errorf("size mismatch fetching job %s", jobID)
	}

	if hb.Failed() {
		return fmt.Errorf("abandoning job %s: heartbeat failed before probe", jobID)
	}

	titles, err := probe.Scan(ctx, d.ProbeRunner, inputPath, descriptor.Fixes.UseLibdvdread)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	titles = probe.Filter(titles, descriptor.RipConfig.MinMinutes, descriptor.RipConfig.MaxMinutes, descriptor.RipConfig.AudioLangs, descriptor.RipConfig.SubtitleLangs)
	if descriptor.Fixes.RemoveDuplicateTracks {
		titles = probe.RemoveDuplicateTracks(titles)
	}

	if hb.Failed() {
		return fmt.Errorf("abandoning job %s: heartbeat failed before transcode", jobID)
	}

	outputs, err := transcode.EncodeTitles(ctx, d.TranscodeRunner, descriptor.HBConfig, descriptor.Fixes, titles, inputPath, scratch, func(title, chapters string, err error) {
		d.Logger.Printf("job %s: transcode invocation failed (title %s, chapters %s): %v", jobID, title, chapters, err)
	})
	if err != nil {
		return fmt.Errorf("transcode: %w", err)
	}

	if hb.Failed() {
		return fmt.Errorf("abandoning job %s: heartbeat failed before upload", jobID)
	}

	var paths []string
	for _, name := range outputs {
		path := filepath.Join(scratch, name)
		if _, statErr := os.Stat(path); statErr != nil {
			d.Logger.Printf("job %s: output %s was not produced, skipping", jobID, name)
			continue
		}
		paths = append(paths, path)
	}

	if err := d.Client.Upload(ctx, jobID, StateDone, paths); err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	d.Logger.Printf("job %s complete, %d output(s) uploaded", jobID, len(paths))
	return nil
}

func freeDiskSpace(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}
