package jobspec_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distrip/internal/jobspec"
)

func TestFixSetRoundTripWireForm(t *testing.T) {
	in := jobspec.FixSet{
		RemoveDuplicateTracks: true,
		UseLibdvdread:         true,
		SplitEveryChapters:    &jobspec.ChapterSplit{FixedSize: 4},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out jobspec.FixSet
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestFixSetRoundTripSequenceForm(t *testing.T) {
	in := jobspec.FixSet{SplitEveryChapters: &jobspec.ChapterSplit{Sequence: []int{2, 3, 5}}}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out jobspec.FixSet
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestFixSetUnmarshalUnknownNameRejected(t *testing.T) {
	var out jobspec.FixSet
	err := json.Unmarshal([]byte(`[{"name":"not_a_real_fix","value":true}]`), &out)
	var unknown *jobspec.UnknownFixError
	assert.ErrorAs(t, err, &unknown)
}

func TestFixSetEmptyMarshalsToEmptyList(t *testing.T) {
	data, err := json.Marshal(jobspec.FixSet{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestParseConfigFixesMapForm(t *testing.T) {
	raw := map[string]json.RawMessage{
		"reencode_audio":       json.RawMessage("true"),
		"split_every_chapters": json.RawMessage("[1,2,3]"),
	}

	fixes, err := jobspec.ParseConfigFixes(raw)
	require.NoError(t, err)
	assert.True(t, fixes.ReencodeAudio)
	require.NotNil(t, fixes.SplitEveryChapters)
	assert.Equal(t, []int{1, 2, 3}, fixes.SplitEveryChapters.Sequence)
}

func TestParseConfigFixesUnknownNameRejected(t *testing.T) {
	raw := map[string]json.RawMessage{"bogus": json.RawMessage("true")}
	_, err := jobspec.ParseConfigFixes(raw)
	assert.Error(t, err)
}
