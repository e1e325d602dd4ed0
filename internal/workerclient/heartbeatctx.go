package workerclient

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// DefaultHeartbeatInterval matches the original HeartbeatContextManager's
// 5-second pulse.
const DefaultHeartbeatInterval = 5 * time.Second

// HeartbeatContext runs a background pulse against one claimed job for the
// duration of its processing, the Go analogue of the original
// HeartbeatContextManager: entering it starts the ticker, leaving it stops
// the ticker, and in between the driver can cheaply check whether the last
// pulse failed (spec.md §4.6).
type HeartbeatContext struct {
	client   *Client
	jobID    string
	interval time.Duration
	logger   *log.Logger

	cancel context.CancelFunc
	done   chan struct{}
	failed atomic.Bool
}

// StartHeartbeat begins posting state=WORKING for jobID every interval,
// until Stop is called. The driver is expected to call Stop once the job's
// processing steps are complete, regardless of outcome.
func StartHeartbeat(client *Client, jobID string, interval time.Duration, logger *log.Logger) *HeartbeatContext {
	ctx, cancel := context.WithCancel(context.Background())
	h := &HeartbeatContext{
		client:   client,
		jobID:    jobID,
		interval: interval,
		logger:   logger,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go h.run(ctx)
	return h
}

func (h *HeartbeatContext) run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.client.Upload(ctx, h.jobID, StateWorking, nil); err != nil {
				h.logger.Printf("heartbeat for job %s failed: %v", h.jobID, err)
				h.failed.Store(true)
				continue
			}
			h.failed.Store(false)
		}
	}
}

// Failed reports whether the most recent pulse failed. The driver samples
// this at step boundaries (spec.md §4.6) rather than treating every failure
// as fatal mid-step.
func (h *HeartbeatContext) Failed() bool {
	return h.failed.Load()
}

// Stop ends the background pulse and waits for it to exit.
func (h *HeartbeatContext) Stop() {
	h.cancel()
	<-h.done
}
