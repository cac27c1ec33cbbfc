package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapline/internal/domain"
)

type fakeClient struct {
	text   string
	err    error
	prompt string
}

func (f *fakeClient) Complete(_ context.Context, req Request) (*Response, error) {
	f.prompt = req.Prompt
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Text: f.text}, nil
}

var fixedNow = func() time.Time { return time.Date(2025, 5, 16, 9, 30, 0, 0, time.UTC) }

func TestSnapshotGenerator_NormalizesOutput(t *testing.T) {
	client := &fakeClient{text: "```json\n" + `[
  {"visualDescription":" forest loop ","caption":"hi","platform":"TikTok","contentType":"reel","timing":"Tuesday 2pm","order":2},
  {"visualDescription":"studio still","platform":"myspace","contentType":"gif"}
]` + "\n```"}
	gen := &SnapshotGenerator{Client: client, Now: fixedNow}

	got, err := gen.GenerateSnapshots(context.Background(), SnapshotBrief{WorldID: "w1", WorldName: "Forest", ReleaseDate: "2025-06-15", Color: "#2f6b3a"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "forest loop", got[0].VisualDescription)
	assert.Equal(t, domain.PlatformTikTok, got[0].Platform)
	assert.Equal(t, domain.ContentReel, got[0].ContentType)
	assert.Equal(t, 2, got[0].Order)
	assert.Equal(t, "w1", got[0].WorldID)

	assert.Equal(t, domain.PlatformInstagram, got[1].Platform)
	assert.Equal(t, domain.ContentPhoto, got[1].ContentType)
	assert.Equal(t, 2, got[1].Order, "missing order falls back to position")
	assert.Empty(t, got[1].PostingDate)

	assert.Contains(t, client.prompt, `"Forest"`)
	assert.Contains(t, client.prompt, "2025-06-15 (30 days from now)")
	assert.Contains(t, client.prompt, "Primary Color: #2f6b3a")
}

func TestSnapshotGenerator_EmptyListIsInvalid(t *testing.T) {
	gen := &SnapshotGenerator{Client: &fakeClient{text: "[]"}, Now: fixedNow}
	_, err := gen.GenerateSnapshots(context.Background(), SnapshotBrief{WorldName: "W", ReleaseDate: "2025-06-15"})
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestSnapshotGenerator_PropagatesClientErrors(t *testing.T) {
	gen := &SnapshotGenerator{Client: &fakeClient{err: ErrRateLimited}, Now: fixedNow}
	_, err := gen.GenerateSnapshots(context.Background(), SnapshotBrief{WorldName: "W", ReleaseDate: "2025-06-15"})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestSnapshotGenerator_NoClient(t *testing.T) {
	_, err := (&SnapshotGenerator{}).GenerateSnapshots(context.Background(), SnapshotBrief{WorldName: "W", ReleaseDate: "2025-06-15"})
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestBuildSnapshotPrompt(t *testing.T) {
	p, err := BuildSnapshotPrompt(SnapshotBrief{
		WorldName:        "Night Drive",
		ReleaseDate:      "2025-05-10",
		VisualReferences: []string{"a.jpg", "b.jpg"},
		ColorPalette:     []string{"#000", "#f0f"},
	}, fixedNow())
	require.NoError(t, err)
	assert.Contains(t, p, "(-6 days from now)")
	assert.Contains(t, p, "Visual References: 2 images selected")
	assert.Contains(t, p, "Color Palette: #000, #f0f")
	assert.NotContains(t, p, "{{world}}")

	_, err = BuildSnapshotPrompt(SnapshotBrief{WorldName: "x", ReleaseDate: "soon"}, fixedNow())
	assert.Error(t, err)
	_, err = BuildSnapshotPrompt(SnapshotBrief{ReleaseDate: "2025-05-10"}, fixedNow())
	assert.Error(t, err)
}
