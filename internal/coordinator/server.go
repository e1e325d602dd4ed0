// Package coordinator implements the HTTP Dispatch API (spec.md §4.2), the
// result intake that moves finished artifacts into the output directory
// (§4.5), and the heartbeat monitor that reclaims timed-out jobs (§4.3).
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"distrip/internal/jobspec"
	"distrip/internal/queue"
)

// Server is the coordinator's worker-facing HTTP service.
type Server struct {
	manager *queue.Manager
	outPath string
	logger  *log.Logger

	mux        *http.ServeMux
	httpServer *http.Server
	shutdownCh chan struct{}
}

// Mux exposes the server's routes for use with httptest.NewServer.
func (s *Server) Mux() http.Handler {
	return s.mux
}

// NewServer builds a Server bound to manager and outPath. listenAddr is the
// host:port the HTTP service listens on.
func NewServer(manager *queue.Manager, outPath, listenAddr string, logger *log.Logger) *Server {
	s := &Server{
		manager:    manager,
		outPath:    outPath,
		logger:     logger,
		shutdownCh: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("GET /jobs/", s.handleClaim)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /jobs/{id}", s.handlePostJob)
	mux.HandleFunc("POST /shutdown", s.handleShutdown)

	s.mux = mux
	s.httpServer = &http.Server{
		Addr:    listenAddr,
		Handler: mux,
	}
	return s
}

// Run starts the HTTP service and blocks until it is shut down, either via
// POST /shutdown or ctx cancellation.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case <-s.shutdownCh:
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// ShutdownURL reports the loopback URL the heartbeat monitor posts to when
// the queue drains.
func (s *Server) ShutdownURL() string {
	return "http://" + s.httpServer.Addr + "/shutdown"
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, Version)
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	s.logger.Printf("shutdown requested")
	close(s.shutdownCh)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	address := peerAddress(r)

	job, ok := s.manager.Claim(address, time.Now())
	if !ok {
		writeJSON(w, nil)
		return
	}

	s.logger.Printf("job %s assigned to %s", job.ID, address)
	writeJSON(w, jobspec.DescriptorFor(job))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	job, _, ok := s.manager.WorkingJob(id)
	if !ok {
		s.logger.Printf("job %s not found", id)
		w.WriteHeader(http.StatusOK)
		return
	}

	f, err := os.Open(job.SourcePath)
	if err != nil {
		s.logger.Printf("open source for job %s: %v", id, err)
		w.WriteHeader(http.StatusOK)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.logger.Printf("stat source for job %s: %v", id, err)
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, job.SourceName))

	_, _ = io.Copy(w, f)
}

func (s *Server) handlePostJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	job, assignment, ok := s.manager.WorkingJob(id)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	address := peerAddress(r)

	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expected multipart form", http.StatusBadRequest)
		return
	}

	var state string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.logger.Printf("read multipart part for job %s: %v", id, err)
			break
		}

		if part.FormName() == "state" {
			buf := make([]byte, 0, 16)
			b, _ := io.ReadAll(part)
			buf = append(buf, b...)
			state = string(buf)
			part.Close()
			continue
		}

		// A file part: its field name is a bare filename, saved into the
		// job's temp_path and appended to received_files (spec.md §4.2).
		name := filepath.Base(part.FormName())
		dest := filepath.Join(job.TempPath, name)

		if err := saveStreamed(dest, part); err != nil {
			s.logger.Printf("save upload %s for job %s: %v", name, id, err)
			part.Close()
			continue
		}
		s.manager.AppendReceivedFile(id, dest)
		part.Close()
	}

	switch state {
	case "WORKING":
		if assignment.WorkerAddress != address {
			s.logger.Printf("job %s WORKING POST from unknown host %s (expected %s)", id, address, assignment.WorkerAddress)
			s.manager.Requeue(id)
			w.WriteHeader(http.StatusOK)
			return
		}
		s.manager.Touch(id, address, time.Now())

	case "DONE":
		// Re-fetch: the multipart loop above may have appended files this
		// request uploaded onto the manager's copy of the job.
		current, _, ok := s.manager.WorkingJob(id)
		if !ok {
			break
		}
		if err := s.finishJob(id, current); err != nil {
			s.logger.Printf("finish job %s: %v", id, err)
		}
	}

	w.WriteHeader(http.StatusOK)
}

func saveStreamed(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, r) // bounded: io.Copy streams in 32KiB chunks
	return err
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// peerAddress resolves the worker's host identity: X-Forwarded-For if
// present, otherwise the TCP peer address (spec.md §4.2).
func peerAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
