// Package jobspec defines the job descriptor, its configuration types, and
// the wire DTOs shared by the coordinator and the worker.
package jobspec

import (
	"time"

	"github.com/google/uuid"
)

// Job is the coordinator-side, immutable-plus-append-only descriptor for one
// source disc image to be transcoded end to end. Job itself never records
// which queue it lives in; the Queue Manager owns that.
type Job struct {
	ID         uuid.UUID
	SourcePath string // coordinator-local path to the source image
	SourceName string // leaf name presented to workers

	RipConfig RipConfig
	HBConfig  HandbrakeConfig
	Fixes     FixSet

	TempPath      string   // coordinator-side staging dir for uploads
	ReceivedFiles []string // append-only while Working; discarded on requeue
}

// NewJob creates a job for a source image found during the input-directory
// scan. tempRoot is the coordinator's process-wide temp root; the per-job
// staging directory is derived from the job's ID.
func NewJob(sourcePath, sourceName, tempRoot string, rip RipConfig, hb HandbrakeConfig, fixes FixSet) Job {
	id := uuid.New()
	return Job{
		ID:         id,
		SourcePath: sourcePath,
		SourceName: sourceName,
		RipConfig:  rip,
		HBConfig:   hb,
		Fixes:      fixes,
		TempPath:   tempRoot + "/" + id.String(),
	}
}

// Assignment is the mutable pair bound to a Working job.
type Assignment struct {
	WorkerAddress string
	LastHeartbeat time.Time
}

// RipConfig is the language filter and duration range applied during
// probing/filtering.
type RipConfig struct {
	AudioLangs     []string
	SubtitleLangs  []string
	MinMinutes     int
	MaxMinutes     int
}

// HandbrakeConfig carries the transcoder's quality/preset/profile/level.
type HandbrakeConfig struct {
	Preset      string // optional built-in preset name, may be empty
	Quality     float64
	X264Preset  string
	X264Profile string
	H264Level   string
}

var allowedX264Presets = map[string]bool{
	"ultrafast": true, "superfast": true, "veryfast": true, "faster": true,
	"fast": true, "medium": true, "slow": true, "slower": true,
	"veryslow": true, "placebo": true,
}

var allowedX264Profiles = map[string]bool{
	"baseline": true, "main": true, "high": true,
	"high10": true, "high422": true, "high444": true,
}

// Validate checks the enumerated fields against the allowed value sets.
func (c HandbrakeConfig) Validate() error {
	if !allowedX264Presets[c.X264Preset] {
		return &InvalidConfigError{Field: "x264_preset", Value: c.X264Preset}
	}
	if !allowedX264Profiles[c.X264Profile] {
		return &InvalidConfigError{Field: "x264_profile", Value: c.X264Profile}
	}
	return nil
}

// InvalidConfigError reports a config field holding a value outside its
// allowed set.
type InvalidConfigError struct {
	Field string
	Value string
}

func (e *InvalidConfigError) Error() string {
	return "invalid " + e.Field + ": " + e.Value
}
