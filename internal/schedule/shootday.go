package schedule

import (
	"fmt"
	"sort"
	"time"

	"snapline/internal/domain"
)

const (
	// FilmingLeadDays is how long before posting a snapshot is filmed.
	FilmingLeadDays = 7
	// MaxRescheduleAttempts caps the forward search for a free shoot day.
	MaxRescheduleAttempts = 14
)

// DeriveFilmingDates sets SuggestedFilmingDate to exactly seven calendar days
// before PostingDate. Snapshots without a parseable posting date are returned
// unchanged.
func DeriveFilmingDates(items []domain.Snapshot) []domain.Snapshot {
	out := make([]domain.Snapshot, len(items))
	for i, s := range items {
		out[i] = s
		if s.PostingDate == "" {
			continue
		}
		posting, err := ParseDate(s.PostingDate)
		if err != nil {
			continue
		}
		out[i].SuggestedFilmingDate = FormatDate(AddDays(posting, -FilmingLeadDays))
	}
	return out
}

// GroupIntoShootDays clusters snapshots sharing a filming date into shoot
// days sorted by date. Snapshots without a filming date are left out.
func GroupIntoShootDays(items []domain.Snapshot, worldID string) []domain.ShootDay {
	var days []domain.ShootDay
	byDate := map[string]int{}
	for _, s := range items {
		date := s.SuggestedFilmingDate
		if date == "" {
			continue
		}
		i, ok := byDate[date]
		if !ok {
			i = len(days)
			byDate[date] = i
			days = append(days, domain.ShootDay{
				ID:            fmt.Sprintf("shoot-day-%s-%d", worldID, i+1),
				WorldID:       worldID,
				Date:          date,
				SuggestedDate: date,
				Status:        domain.ShootDaySuggested,
			})
		}
		days[i].SnapshotIDs = append(days[i].SnapshotIDs, s.ID)
	}
	sort.SliceStable(days, func(a, b int) bool {
		return days[a].Date < days[b].Date
	})
	return days
}

// DateSet is a set of YYYY-MM-DD strings compared by exact value.
type DateSet map[string]struct{}

func NewDateSet(dates ...string) DateSet {
	set := make(DateSet, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

func (s DateSet) Has(date string) bool {
	_, ok := s[date]
	return ok
}

// Sorted returns the dates in ascending order.
func (s DateSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// RescheduleAroundBlackouts moves the suggested date of every shoot day that
// falls on a blackout date to the next weekday that is not blacked out,
// looking at most 14 days ahead. When nothing qualifies the last day checked
// is suggested. Date is never changed; units off the blackout list get
// SuggestedDate = Date.
func RescheduleAroundBlackouts(units []domain.ShootDay, blackouts DateSet) []domain.ShootDay {
	out := make([]domain.ShootDay, len(units))
	for i, u := range units {
		out[i] = u
		out[i].SnapshotIDs = append([]string(nil), u.SnapshotIDs...)
		out[i].SuggestedDate = u.Date
		if !blackouts.Has(u.Date) {
			continue
		}
		date, err := ParseDate(u.Date)
		if err != nil {
			continue
		}
		out[i].SuggestedDate = FormatDate(nextOpenDay(date, blackouts))
	}
	return out
}

func nextOpenDay(from time.Time, blackouts DateSet) time.Time {
	check := from
	for attempt := 0; attempt < MaxRescheduleAttempts; attempt++ {
		check = AddDays(check, 1)
		if !IsWeekend(check) && !blackouts.Has(FormatDate(check)) {
			break
		}
	}
	return check
}
