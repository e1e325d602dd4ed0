package coordinator

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"distrip/internal/queue"
)

// Default timing constants, grounded on drm/master.py's heartbeat_thread:
// it scans every 10 seconds and reclaims jobs whose last pulse is older
// than 30 seconds.
const (
	DefaultScanInterval = 10 * time.Second
	DefaultJobTimeout   = 30 * time.Second
)

// Monitor periodically reclaims jobs whose worker has stopped heartbeating,
// and shuts the coordinator down once the queue has fully drained (spec.md
// §4.3). It is the Go analogue of master.py's background heartbeat_thread.
type Monitor struct {
	manager      *queue.Manager
	scanInterval time.Duration
	jobTimeout   time.Duration
	shutdownURL  string
	logger       interface{ Printf(string, ...any) }
}

// NewMonitor builds a Monitor. shutdownURL is posted to once Drained()
// reports Waiting and Working both empty, matching master.py's
// self-shutdown behavior.
func NewMonitor(manager *queue.Manager, scanInterval, jobTimeout time.Duration, shutdownURL string, logger interface{ Printf(string, ...any) }) *Monitor {
	return &Monitor{
		manager:      manager,
		scanInterval: scanInterval,
		jobTimeout:   jobTimeout,
		shutdownURL:  shutdownURL,
		logger:       logger,
	}
}

// Run scans for timed-out jobs every scanInterval until ctx is canceled.
// Every tick, if Waiting and Working are both empty, it posts /shutdown and
// returns — unconditionally, matching master.py's heartbeat_thread, which
// checks `len(working_queue) == 0 and len(job_queue) == 0` on every tick
// with no prior-work guard (spec.md §4.3).
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed := m.manager.ScanTimeouts(time.Now(), m.jobTimeout)
			for _, id := range reclaimed {
				m.logger.Printf("job %s timed out, requeued", id)
			}

			if m.manager.Drained() {
				m.logger.Printf("queue drained, requesting shutdown")
				m.postShutdown(ctx)
				return
			}
		}
	}
}

func (m *Monitor) postShutdown(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.shutdownURL, bytes.NewReader(nil))
	if err != nil {
		m.logger.Printf("build shutdown request: %v", err)
		return
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		m.logger.Printf("post shutdown: %v", err)
		return
	}
	resp.Body.Close()
}
