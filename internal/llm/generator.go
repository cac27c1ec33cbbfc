package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"snapline/internal/domain"
	"snapline/internal/schedule"
)

// SnapshotBrief describes the world a strategy is generated for.
type SnapshotBrief struct {
	WorldID          string
	WorldName        string
	ReleaseDate      string
	Color            string
	VisualReferences []string
	ColorPalette     []string
}

// generatedSnapshot is the per-item shape the model is asked to return.
type generatedSnapshot struct {
	VisualDescription string `json:"visualDescription"`
	Caption           string `json:"caption"`
	Platform          string `json:"platform"`
	ContentType       string `json:"contentType"`
	Timing            string `json:"timing"`
	Order             *int   `json:"order"`
}

// SnapshotGenerator asks the model for a snapshot list. Scheduling fields are
// left empty; the timeline pipeline fills them in.
type SnapshotGenerator struct {
	Client Client
	Now    func() time.Time
}

func NewSnapshotGenerator(c Client) *SnapshotGenerator {
	return &SnapshotGenerator{Client: c, Now: time.Now}
}

func (g *SnapshotGenerator) GenerateSnapshots(ctx context.Context, brief SnapshotBrief) ([]domain.Snapshot, error) {
	if g.Client == nil {
		return nil, &ConfigurationError{Field: "client", Msg: "is not configured"}
	}
	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}
	prompt, err := BuildSnapshotPrompt(brief, now)
	if err != nil {
		return nil, err
	}
	resp, err := g.Client.Complete(ctx, Request{Prompt: prompt})
	if err != nil {
		return nil, err
	}
	raw, err := ExtractJSONArray[generatedSnapshot](resp.Text, func(items []generatedSnapshot) error {
		if len(items) == 0 {
			return errors.New("expected a non-empty array")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return normalize(raw, brief.WorldID), nil
}

func normalize(raw []generatedSnapshot, worldID string) []domain.Snapshot {
	out := make([]domain.Snapshot, len(raw))
	for i, r := range raw {
		platform := domain.Platform(strings.ToLower(strings.TrimSpace(r.Platform)))
		if !platform.Valid() {
			platform = domain.PlatformInstagram
		}
		ct := domain.ContentType(strings.ToLower(strings.TrimSpace(r.ContentType)))
		if !ct.Valid() {
			ct = domain.ContentPhoto
		}
		order := i + 1
		if r.Order != nil {
			order = *r.Order
		}
		out[i] = domain.Snapshot{
			WorldID:           worldID,
			VisualDescription: strings.TrimSpace(r.VisualDescription),
			Caption:           strings.TrimSpace(r.Caption),
			Platform:          platform,
			ContentType:       ct,
			Timing:            strings.TrimSpace(r.Timing),
			Order:             order,
		}
	}
	return out
}

// BuildSnapshotPrompt renders the creative-director prompt for a world.
func BuildSnapshotPrompt(brief SnapshotBrief, now time.Time) (string, error) {
	if strings.TrimSpace(brief.WorldName) == "" {
		return "", errors.New("world name is required")
	}
	days, err := schedule.DaysUntil(brief.ReleaseDate, now)
	if err != nil {
		return "", err
	}

	var world strings.Builder
	fmt.Fprintf(&world, "- World Name (Song Title): %q\n", brief.WorldName)
	fmt.Fprintf(&world, "- Release Date: %s (%d days from now)", brief.ReleaseDate, days)
	if brief.Color != "" {
		fmt.Fprintf(&world, "\n- Primary Color: %s", brief.Color)
	}
	if n := len(brief.VisualReferences); n > 0 {
		fmt.Fprintf(&world, "\n- Visual References: %d images selected", n)
	}
	if len(brief.ColorPalette) > 0 {
		fmt.Fprintf(&world, "\n- Color Palette: %s", strings.Join(brief.ColorPalette, ", "))
	}
	return strings.Replace(snapshotPrompt, "{{world}}", world.String(), 1), nil
}

const snapshotPrompt = `You are a creative director specializing in visual storytelling for music releases.

Generate a snapshot strategy (social media content plan) for this world (song release):

WORLD INFORMATION:
{{world}}

SNAPSHOT REQUIREMENTS:
Each snapshot is a visual, imagery-rich description of what one piece of social media content will look like. Think of snapshots as moments that happen in this world.

For each snapshot, provide:
1. Visual Description: the scene, mood, colors, movement and composition. Be specific about visual elements and include a duration for videos (10-15 second loops work well).
2. Platform and Content Type: Instagram (reels, stories, posts, carousels), TikTok (short videos, trends) or Twitter (visual posts with text).
3. Timing: when it should be posted (day of week + time).
4. Caption: optional, matching the visual.

SNAPSHOT DISTRIBUTION:
- 2 weeks before release: teaser and anticipation snapshots
- 1 week before release: countdown and pre-save snapshots
- Release week: launch snapshots
- 1-8 weeks after: post-release engagement snapshots
The system calculates posting dates from the release date and the order number.

VISUAL COHERENCE:
All snapshots should feel part of the same visual universe and use the color palette and references above.

Return a JSON array with this exact structure:
[
  {
    "visualDescription": "A 15-second loop of the artist running through a lush forest, color-graded with deep greens and warm light.",
    "caption": "Will I find you in the forest?",
    "platform": "instagram",
    "contentType": "reel",
    "timing": "Tuesday 2pm",
    "order": 1
  }
]

Do NOT include "postingDate" or "suggestedFilmingDate".
Platform options: "instagram" | "tiktok" | "twitter"
Content type options: "photo" | "video" | "story" | "reel" | "carousel"
Order: number indicating sequence in the release cycle (1, 2, 3, ...)

Generate 6-10 snapshots.`
