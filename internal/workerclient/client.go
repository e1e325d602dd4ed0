// Package workerclient is the worker's HTTP client for the coordinator's
// dispatch API (spec.md §4.2, §6), grounded on the teacher's retryablehttp-
// based OrchestratorClient.
package workerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"distrip/internal/jobspec"
)

// Client talks to one coordinator over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a Client with retry behavior matching the teacher's
// OrchestratorClient: bounded retries with a short backoff window, since the
// coordinator is a single process and a prolonged outage should surface to
// the driver rather than be retried forever.
func New(baseURL string) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	return &Client{
		baseURL:    baseURL,
		httpClient: retryClient.StandardClient(),
	}
}

// Version fetches the coordinator's protocol version (spec.md §4.4).
func (c *Client) Version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/version", nil)
	if err != nil {
		return "", fmt.Errorf("build version request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("version request: %w", err)
	}
	defer resp.Body.Close()

	var version string
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return "", fmt.Errorf("decode version response: %w", err)
	}
	return version, nil
}

// Claim requests the next job. A nil Descriptor means the queue is
// currently empty (spec.md §4.2) — not an error.
func (c *Client) Claim(ctx context.Context) (*jobspec.Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/", nil)
	if err != nil {
		return nil, fmt.Errorf("build claim request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("claim request: %w", err)
	}
	defer resp.Body.Close()

	var descriptor *jobspec.Descriptor
	if err := json.NewDecoder(resp.Body).Decode(&descriptor); err != nil {
		return nil, fmt.Errorf("decode claim response: %w", err)
	}
	return descriptor, nil
}

// FetchInput streams the source image for jobID into destPath, returning the
// filename the coordinator presented via Content-Disposition and the
// Content-Length it declared, for the caller to verify against the bytes
// actually written to disk (spec.md §4.4).
func (c *Client) FetchInput(ctx context.Context, jobID, destPath string) (name string, contentLength int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build fetch request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("fetch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.ContentLength == 0 {
		return "", 0, fmt.Errorf("job %s has no input available", jobID)
	}

	name = contentDispositionFilename(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = jobID
	}

	if err := os.MkdirAll(destPath, 0o755); err != nil {
		return "", 0, fmt.Errorf("create dest dir: %w", err)
	}

	out, err := os.Create(filepath.Join(destPath, name))
	if err != nil {
		return "", 0, fmt.Errorf("create input file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", 0, fmt.Errorf("stream input file: %w", err)
	}

	return name, resp.ContentLength, nil
}

// UploadState reports the state field posted alongside an upload (spec.md
// §4.2).
type UploadState string

const (
	StateWorking UploadState = "WORKING"
	StateDone    UploadState = "DONE"
)

// Upload posts state and the given files (by local path) as a multipart
// form to the job's endpoint. Each file part streams directly from disk;
// the whole body is never buffered in memory.
func (c *Client) Upload(ctx context.Context, jobID string, state UploadState, files []string) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		defer mw.Close()

		if err := mw.WriteField("state", string(state)); err != nil {
			pw.CloseWithError(err)
			return
		}

		for _, path := range files {
			if err := writeFilePart(mw, path); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs/"+jobID, pr)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("upload rejected: status %d", resp.StatusCode)
	}
	return nil
}

func writeFilePart(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile(filepath.Base(path), filepath.Base(path))
	if err != nil {
		return err
	}

	_, err = io.Copy(part, f)
	return err
}

// contentDispositionFilename extracts the filename parameter from a
// Content-Disposition header value. The coordinator only ever emits the one
// quoted form it writes itself, so a simple split is enough.
func contentDispositionFilename(header string) string {
	const marker = `filename="`
	i := strings.Index(header, marker)
	if i < 0 {
		return ""
	}
	rest := header[i+len(marker):]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return ""
	}
	return rest[:end]
}
