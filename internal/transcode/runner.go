// Package transcode builds the external transcoder's command line and drives
// title/chapter-chunk encoding, per spec.md §4.8.
package transcode

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"distrip/internal/jobspec"
	"distrip/internal/probe"
)

// Runner invokes the external transcoder binary. Like probe.Runner, this is
// the seam across the out-of-scope transcoder collaborator (spec.md §1).
type Runner interface {
	Run(ctx context.Context, args []string) error
}

// ExecRunner shells out to the configured transcoder binary.
type ExecRunner struct {
	BinPath string
}

// Run implements Runner. A non-zero exit is logged by the caller but does
// not itself abort the job (spec.md §4.8, §7) — the caller decides whether
// the output file actually exists.
func (r ExecRunner) Run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, r.BinPath, args...)
	return cmd.Run()
}

// chapterRange is an inclusive [start, end] chapter range, or nil for an
// unsplit title.
type chapterRange struct {
	start, end int
}

// EncodeTitles transcodes every selected title into outDir, applying the
// split_every_chapters fix when active. It returns the output filenames it
// expects the transcoder to have produced; invocation failures are logged by
// the caller but do not remove a name from the list — the coordinator
// accepts whatever the transcoder actually produced (spec.md §4.8).
func EncodeTitles(ctx context.Context, runner Runner, hb jobspec.HandbrakeConfig, fixes jobspec.FixSet, titles []probe.Title, inPath, outDir string, onInvocationError func(title, chapters string, err error)) ([]string, error) {
	var outputs []string

	for _, title := range titles {
		ranges, err := splitRanges(fixes.SplitEveryChapters, len(title.Chapters))
		if err != nil {
			return nil, err
		}

		if ranges == nil {
			name := outputName(inPath, title.Index, nil)
			args := buildArgs(hb, fixes, inPath, filepath.Join(outDir, name), title, nil)
			if err := runner.Run(ctx, args); err != nil && onInvocationError != nil {
				onInvocationError(strconv.Itoa(title.Index), "", err)
			}
			outputs = append(outputs, name)
			continue
		}

		for _, r := range ranges {
			name := outputName(inPath, title.Index, &r)
			args := buildArgs(hb, fixes, inPath, filepath.Join(outDir, name), title, &r)
			if err := runner.Run(ctx, args); err != nil && onInvocationError != nil {
				onInvocationError(strconv.Itoa(title.Index), fmt.Sprintf("%d-%d", r.start, r.end), err)
			}
			outputs = append(outputs, name)
		}
	}

	return outputs, nil
}

// splitRanges computes the chapter ranges for a title under the
// split_every_chapters fix. Returns nil ranges (not an error) when the fix
// is inactive, meaning the title is emitted whole.
//
// Grounded on drm/handbrake.py's encode_titles: the fixed-size branch walks
// range(1, no_chapters+1, split_step) and does not clamp the final chunk's
// upper bound to the chapter count — the transcoder itself clamps an
// out-of-range chapter end. We preserve that pass-through behavior rather
// than rejecting or clamping in-process (see DESIGN.md for the Open
// Question decision); the sequence branch is rejected instead when its sum
// does not match the chapter count, since silently encoding the wrong
// chapters there has no natural clamp to fall back on.
func splitRanges(split *jobspec.ChapterSplit, chapterCount int) ([]chapterRange, error) {
	if split == nil {
		return nil, nil
	}

	if split.Sequence != nil {
		sum := 0
		for _, n := range split.Sequence {
			sum += n
		}
		if sum != chapterCount {
			return nil, fmt.Errorf("split_every_chapters sequence sums to %d, title has %d chapters", sum, chapterCount)
		}

		var ranges []chapterRange
		start := 1
		for _, n := range split.Sequence {
			ranges = append(ranges, chapterRange{start: start, end: start + n - 1})
			start += n
		}
		return ranges, nil
	}

	step := split.FixedSize
	if step <= 0 {
		return nil, fmt.Errorf("split_every_chapters fixed size must be positive, got %d", step)
	}

	var ranges []chapterRange
	for i := 1; i <= chapterCount; i += step {
		ranges = append(ranges, chapterRange{start: i, end: i + step - 1})
	}
	return ranges, nil
}

// outputName builds the output filename for a title or chapter chunk
// (spec.md §4.8): "{source_basename}.{title_index}.mkv" for a whole title,
// "{source_basename}.{title_index}.{c}.mkv" for a chunk starting at chapter c.
func outputName(inPath string, titleIndex int, r *chapterRange) string {
	base := filepath.Base(inPath)
	if r == nil {
		return fmt.Sprintf("%s.%d.mkv", base, titleIndex)
	}
	return fmt.Sprintf("%s.%d.%d.mkv", base, titleIndex, r.start)
}

// buildArgs constructs the transcoder command line, generalizing
// drm/handbrake.py's _build_cmd_line to spec.md §4.8's field list.
func buildArgs(hb jobspec.HandbrakeConfig, fixes jobspec.FixSet, inPath, outPath string, title probe.Title, r *chapterRange) []string {
	args := []string{
		"-i", inPath,
		"-o", outPath,
		"-t", strconv.Itoa(title.Index),
		"-a", tracksToCSL(title.AudioTracks),
		"-s", tracksToCSL(title.SubtitleTracks),
	}

	if r != nil {
		args = append(args, "-c", fmt.Sprintf("%d-%d", r.start, r.end))
	}
	if hb.Preset != "" {
		args = append(args, "-Z", hb.Preset)
	}

	args = append(args,
		"-f", "mkv",
		"-m",
		"-e", "x264",
		"-q", formatQuality(hb.Quality),
	)

	if fixes.ReencodeAudio {
		args = append(args, "-E", "mp3")
	} else {
		args = append(args, "-E", "copy")
	}

	args = append(args,
		"--audio-fallback", "ffac3",
		"--loose-anamorphic",
		"--modulus", "2",
		"--decomb",
		"--x264-preset", hb.X264Preset,
		"--x264-profile", hb.X264Profile,
		"--h264-level", hb.H264Level,
	)

	if fixes.UseLibdvdread {
		args = append(args, "--no-dvdnav")
	}

	return args
}

func tracksToCSL(tracks []probe.Track) string {
	indices := make([]string, len(tracks))
	for i, tr := range tracks {
		indices[i] = strconv.Itoa(tr.Index)
	}
	return strings.Join(indices, ",")
}

func formatQuality(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
