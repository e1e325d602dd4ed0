package probe_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distrip/internal/probe"
)

type fakeRunner struct {
	output []byte
	delay  time.Duration
}

func (f fakeRunner) Run(ctx context.Context, args []string) ([]byte, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	return f.output, nil
}

const sampleDump = `JSON Title Set: {"TitleList":[{"Index":1,"Duration":{"Hours":1,"Minutes":25,"Seconds":0},"AudioList":[{"TrackNumber":1,"LanguageCode":"eng"},{"TrackNumber":2,"LanguageCode":"deu"}],"SubtitleList":[{"TrackNumber":1,"LanguageCode":"eng"}],"ChapterList":[{"Duration":"00:10:00"},{"Duration":"00:08:30"}]}]}`

func TestScanParsesTitleSet(t *testing.T) {
	titles, err := probe.Scan(context.Background(), fakeRunner{output: []byte(sampleDump)}, "/tmp/disc.iso", false)
	require.NoError(t, err)
	require.Len(t, titles, 1)

	title := titles[0]
	assert.Equal(t, 1, title.Index)
	assert.Equal(t, 1*time.Hour+25*time.Minute, title.Duration)
	assert.Len(t, title.AudioTracks, 2)
	assert.Equal(t, "eng", title.AudioTracks[0].Lang)
	require.Len(t, title.Chapters, 2)
	assert.Equal(t, 600, title.Chapters[0].LengthSeconds)
	assert.Equal(t, 2, title.Chapters[1].Number)
}

func TestScanNoMarkerReturnsEmpty(t *testing.T) {
	titles, err := probe.Scan(context.Background(), fakeRunner{output: []byte("no json here")}, "/tmp/disc.iso", false)
	require.NoError(t, err)
	assert.Empty(t, titles)
}

func TestScanTimeoutReturnsEmpty(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	titles, err := probe.Scan(ctx, fakeRunner{delay: time.Second}, "/tmp/disc.iso", false)
	require.NoError(t, err)
	assert.Empty(t, titles)
}
