package schedule

import (
	"fmt"
	"math"
	"sort"
	"time"

	"snapline/internal/domain"
)

const (
	// DaysBeforeRelease and DaysAfterRelease bound the posting window.
	DaysBeforeRelease = 14
	DaysAfterRelease  = 56

	ReleaseDayLabel = "Release Day"
	UnassignedLabel = "Unassigned"
)

// Distribute assigns a posting date and week label to every snapshot,
// spreading them by order across the window from 14 days before release to
// 56 days after. The result has the caller's order, not the order-field order.
func Distribute(items []domain.Snapshot, release time.Time) []domain.Snapshot {
	out := make([]domain.Snapshot, len(items))
	copy(out, items)
	if len(items) == 0 {
		return out
	}
	release = civil(release)

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return items[idx[a]].Order < items[idx[b]].Order
	})

	for pos, orig := range idx {
		offset := OffsetForPosition(pos, len(items))
		out[orig].PostingDate = FormatDate(AdjustPostingWeekday(AddDays(release, offset)))
		out[orig].WeekLabel = WeekLabel(offset)
	}
	return out
}

// OffsetForPosition maps the i-th of n sorted items to a day offset from
// release. The first half of the items covers -14..0, the second half 0..+56.
// A lone item is posted on release day.
func OffsetForPosition(i, n int) int {
	if n == 1 {
		return 0
	}
	p := float64(i) / float64(max(n-1, 1))
	if p <= 0.5 {
		return -DaysBeforeRelease + int(math.Round(p*2*DaysBeforeRelease))
	}
	return int(math.Round((p - 0.5) * 2 * DaysAfterRelease))
}

// WeekLabel buckets a signed day offset from release.
// The label is taken from the offset before any weekday adjustment.
func WeekLabel(offset int) string {
	switch {
	case offset < -7:
		return fmt.Sprintf("Week -%d", ceilDiv(-offset, 7))
	case offset < 0:
		return "Week -1"
	case offset == 0:
		return ReleaseDayLabel
	case offset <= 7:
		return "Week +1"
	default:
		return fmt.Sprintf("Week +%d", ceilDiv(offset, 7))
	}
}

// WeekGroup is a timeline bucket of snapshots sharing a week label.
type WeekGroup struct {
	Label     string            `json:"label"`
	Snapshots []domain.Snapshot `json:"snapshots"`
}

// GroupByWeek buckets snapshots by week label. Buckets run from the earliest
// pre-release week to the latest post-release week; snapshots without a label
// land in a trailing "Unassigned" bucket. Within a bucket input order is kept.
func GroupByWeek(items []domain.Snapshot) []WeekGroup {
	var groups []WeekGroup
	pos := map[string]int{}
	for _, s := range items {
		label := s.WeekLabel
		if label == "" {
			label = UnassignedLabel
		}
		i, ok := pos[label]
		if !ok {
			i = len(groups)
			pos[label] = i
			groups = append(groups, WeekGroup{Label: label})
		}
		groups[i].Snapshots = append(groups[i].Snapshots, s)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return labelRank(groups[a].Label) < labelRank(groups[b].Label)
	})
	return groups
}

// labelRank orders labels on the release timeline. Unknown labels sort last.
func labelRank(label string) int {
	if label == ReleaseDayLabel {
		return 0
	}
	var sign rune
	var n int
	if _, err := fmt.Sscanf(label, "Week %c%d", &sign, &n); err == nil && n > 0 {
		switch sign {
		case '-':
			return -n
		case '+':
			return n
		}
	}
	return math.MaxInt32
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

var postingTimes = map[domain.Platform]string{
	domain.PlatformInstagram: "14:00",
	domain.PlatformTikTok:    "18:00",
	domain.PlatformTwitter:   "12:00",
}

// DefaultPostingTime is used for platforms without a known best time.
const DefaultPostingTime = "14:00"

// OptimalPostingTime returns the HH:MM posting time for a platform.
func OptimalPostingTime(p domain.Platform) string {
	if t, ok := postingTimes[p]; ok {
		return t
	}
	return DefaultPostingTime
}
