package jobspec_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distrip/internal/jobspec"
)

func TestRipConfigWireFieldNames(t *testing.T) {
	rip := jobspec.RipConfig{
		AudioLangs:    []string{"eng"},
		SubtitleLangs: []string{"eng", "fra"},
		MinMinutes:    40,
		MaxMinutes:    90,
	}

	data, err := json.Marshal(rip)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a_lang":["eng"],"s_lang":["eng","fra"],"len_range":[40,90]}`, string(data))

	var out jobspec.RipConfig
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, rip, out)
}

func TestHandbrakeConfigWireFieldNames(t *testing.T) {
	hb := jobspec.HandbrakeConfig{
		Quality:     20.0,
		X264Preset:  "medium",
		X264Profile: "high",
		H264Level:   "4.1",
	}

	data, err := json.Marshal(hb)
	require.NoError(t, err)
	assert.JSONEq(t, `{"quality":20,"h264_preset":"medium","h264_profile":"high","h264_level":"4.1"}`, string(data))

	var out jobspec.HandbrakeConfig
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, hb, out)
}

func TestDescriptorForOmitsSourcePath(t *testing.T) {
	job := jobspec.NewJob("/coordinator/only/path.iso", "disc.iso", "/tmp", jobspec.RipConfig{}, jobspec.HandbrakeConfig{}, jobspec.FixSet{})
	descriptor := jobspec.DescriptorFor(job)

	data, err := json.Marshal(descriptor)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "/coordinator/only/path.iso")
	assert.Equal(t, job.ID.String(), descriptor.Name)
}

func TestHandbrakeConfigValidateRejectsUnknownPreset(t *testing.T) {
	hb := jobspec.HandbrakeConfig{X264Preset: "turbo", X264Profile: "high"}
	err := hb.Validate()

	var invalid *jobspec.InvalidConfigError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "x264_preset", invalid.Field)
}
