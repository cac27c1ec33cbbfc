package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapline/internal/domain"
)

func TestDeriveFilmingDates(t *testing.T) {
	in := []domain.Snapshot{
		{ID: "a", PostingDate: "2025-06-20"},
		{ID: "b"},
		{ID: "c", PostingDate: "2025-03-05"},
	}
	got := DeriveFilmingDates(in)

	require.Len(t, got, 3)
	assert.Equal(t, "2025-06-13", got[0].SuggestedFilmingDate)
	assert.Empty(t, got[1].SuggestedFilmingDate)
	assert.Equal(t, "2025-02-26", got[2].SuggestedFilmingDate)
	assert.Empty(t, in[0].SuggestedFilmingDate, "input must not be modified")
}

func TestDeriveFilmingDates_OverwritesExisting(t *testing.T) {
	got := DeriveFilmingDates([]domain.Snapshot{{ID: "a", PostingDate: "2025-06-20", SuggestedFilmingDate: "2025-01-01"}})
	assert.Equal(t, "2025-06-13", got[0].SuggestedFilmingDate)
}

func TestDeriveFilmingDates_UnparseablePostingDatePassesThrough(t *testing.T) {
	in := []domain.Snapshot{{ID: "a", PostingDate: "20/06/2025", SuggestedFilmingDate: "2025-06-01"}}
	got := DeriveFilmingDates(in)
	assert.Equal(t, in, got)
}

func TestGroupIntoShootDays(t *testing.T) {
	in := []domain.Snapshot{
		{ID: "s3", PostingDate: "2025-06-27", SuggestedFilmingDate: "2025-06-20"},
		{ID: "s1", PostingDate: "2025-06-20", SuggestedFilmingDate: "2025-06-13"},
		{ID: "s2", PostingDate: "2025-06-20", SuggestedFilmingDate: "2025-06-13"},
	}
	days := GroupIntoShootDays(in, "world-1")

	require.Len(t, days, 2)
	assert.Equal(t, "2025-06-13", days[0].Date)
	assert.Equal(t, "2025-06-13", days[0].SuggestedDate)
	assert.Equal(t, []string{"s1", "s2"}, days[0].SnapshotIDs)
	assert.Equal(t, domain.ShootDaySuggested, days[0].Status)
	assert.Equal(t, "world-1", days[0].WorldID)
	assert.Equal(t, "shoot-day-world-1-2", days[0].ID)

	assert.Equal(t, "2025-06-20", days[1].Date)
	assert.Equal(t, []string{"s3"}, days[1].SnapshotIDs)
	assert.Equal(t, "shoot-day-world-1-1", days[1].ID)
}

func TestGroupIntoShootDays_SkipsUndatedSnapshots(t *testing.T) {
	in := []domain.Snapshot{
		{ID: "a"},
		{ID: "b", PostingDate: "2025-06-20"},
	}
	assert.Empty(t, GroupIntoShootDays(in, "w"))
}

func TestRescheduleAroundBlackouts_SkipsWeekendAndBlackouts(t *testing.T) {
	units := []domain.ShootDay{{ID: "u1", Date: "2025-07-05", SuggestedDate: "2025-07-05", SnapshotIDs: []string{"a"}}}
	blackouts := NewDateSet("2025-07-05", "2025-07-06", "2025-07-07")

	got := RescheduleAroundBlackouts(units, blackouts)

	require.Len(t, got, 1)
	assert.Equal(t, "2025-07-05", got[0].Date)
	assert.Equal(t, "2025-07-08", got[0].SuggestedDate)
}

func TestRescheduleAroundBlackouts_UnaffectedUnitsKeepDate(t *testing.T) {
	units := []domain.ShootDay{{ID: "u1", Date: "2025-07-09", SuggestedDate: "2025-07-20"}}
	got := RescheduleAroundBlackouts(units, NewDateSet("2025-07-05"))
	assert.Equal(t, "2025-07-09", got[0].SuggestedDate)
}

func TestRescheduleAroundBlackouts_FridayBlackoutMovesToMonday(t *testing.T) {
	units := []domain.ShootDay{{ID: "u1", Date: "2025-07-04"}}
	got := RescheduleAroundBlackouts(units, NewDateSet("2025-07-04"))
	assert.Equal(t, "2025-07-07", got[0].SuggestedDate)
}

func TestRescheduleAroundBlackouts_GivesUpAfterCap(t *testing.T) {
	start := MustParseDate("2025-07-07")
	dates := []string{FormatDate(start)}
	for i := 1; i <= 20; i++ {
		dates = append(dates, FormatDate(AddDays(start, i)))
	}
	got := RescheduleAroundBlackouts([]domain.ShootDay{{ID: "u1", Date: "2025-07-07"}}, NewDateSet(dates...))

	assert.Equal(t, "2025-07-21", got[0].SuggestedDate)
	assert.Equal(t, MaxRescheduleAttempts, DaysBetween(start, MustParseDate(got[0].SuggestedDate)))
}

func TestRescheduleAroundBlackouts_DoesNotAliasInput(t *testing.T) {
	units := []domain.ShootDay{{ID: "u1", Date: "2025-07-05", SnapshotIDs: []string{"a"}}}
	got := RescheduleAroundBlackouts(units, NewDateSet("2025-07-05"))
	got[0].SnapshotIDs[0] = "changed"
	assert.Equal(t, "a", units[0].SnapshotIDs[0])
	assert.Empty(t, units[0].SuggestedDate)
}

func TestDateSetSorted(t *testing.T) {
	set := NewDateSet("2025-07-07", "2025-07-05", "2025-07-06", "2025-07-05")
	assert.Equal(t, []string{"2025-07-05", "2025-07-06", "2025-07-07"}, set.Sorted())
}
