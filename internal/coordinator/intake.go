package coordinator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"distrip/internal/jobspec"
)

// finishJob implements Result Intake (spec.md §4.5): every received output
// file and the source image itself are moved into out_path, the job's
// temp_path is removed, and only then is the job marked Done. A filename
// collision in out_path is skipped and logged rather than overwriting
// existing output.
func (s *Server) finishJob(id uuid.UUID, job jobspec.Job) error {
	for _, src := range job.ReceivedFiles {
		if err := s.moveIntoOutPath(src); err != nil {
			s.logger.Printf("job %s: %v", id, err)
		}
	}

	if err := s.moveIntoOutPath(job.SourcePath); err != nil {
		s.logger.Printf("job %s: %v", id, err)
	}

	if err := os.RemoveAll(job.TempPath); err != nil {
		s.logger.Printf("job %s: remove temp_path %s: %v", id, job.TempPath, err)
	}

	_, err := s.manager.Complete(id)
	return err
}

// moveIntoOutPath moves src into the server's out_path, preserving its
// basename. If a file with that name already exists, the move is skipped
// and logged rather than overwriting (spec.md §4.5).
func (s *Server) moveIntoOutPath(src string) error {
	dest := filepath.Join(s.outPath, filepath.Base(src))

	if _, err := os.Stat(dest); err == nil {
		s.logger.Printf("skip %s: %s already exists in out_path", src, filepath.Base(src))
		return nil
	}

	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	// Rename fails across filesystem boundaries; fall back to copy+remove.
	return copyThenRemove(src, dest)
}

func copyThenRemove(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dest, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove %s after copy: %w", src, err)
	}
	return nil
}
