package calendar

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monthcal/internal/model"
)

func classifyKST(records []model.Record, groups ...string) ClassifyResult {
	return Classify(records, NewGroupSet(groups...), ClassifyOptions{Location: kst})
}

func TestClassify_FiltersInactiveGroups(t *testing.T) {
	records := []model.Record{
		dayRecord("a", at(2024, 3, 5, 9, 0), "work"),
		dayRecord("b", at(2024, 3, 5, 10, 0), "home"),
		dayRecord("c", at(2024, 3, 5, 11, 0), ""),
	}

	res := classifyKST(records, "work")
	assert.Equal(t, []string{"a"}, sourceIDs(res.Events))
	assert.Empty(t, res.Dropped)

	assert.Empty(t, Classify(records, nil, ClassifyOptions{Location: kst}).Events)
}

func TestClassify_StableSortByStart(t *testing.T) {
	same := at(2024, 3, 5, 9, 0)
	records := []model.Record{
		dayRecord("late", at(2024, 3, 6, 9, 0), "g"),
		dayRecord("tie-1", same, "g"),
		dayRecord("early", at(2024, 3, 1, 9, 0), "g"),
		dayRecord("tie-2", same, "g"),
	}

	res := classifyKST(records, "g")
	assert.Equal(t, []string{"early", "tie-1", "tie-2", "late"}, sourceIDs(res.Events))
}

func TestClassify_SortKeepsMillisecondFraction(t *testing.T) {
	later := dayRecord("later", at(2024, 3, 5, 9, 0), "g")
	later.StartedAt += 0.7
	earlier := dayRecord("earlier", at(2024, 3, 5, 9, 0), "g")
	earlier.StartedAt += 0.2

	res := classifyKST([]model.Record{later, earlier}, "g")
	assert.Equal(t, []string{"earlier", "later"}, sourceIDs(res.Events))
}

func TestClassify_DropsDatesOutsideFourDigitYears(t *testing.T) {
	// 9999-12-31 23:00 UTC is already year 10000 in Seoul.
	edge := dayRecord("edge", at(2024, 3, 5, 9, 0), "g")
	edge.StartedAt = model.MillisOf(time.Date(9999, 12, 31, 23, 0, 0, 0, time.UTC))
	edge.EndedAt = edge.StartedAt

	res := classifyKST([]model.Record{edge}, "g")
	assert.Empty(t, res.Events)
	assert.Equal(t, []string{"edge"}, res.Dropped)
}

func TestClassify_DropsBadTimestamps(t *testing.T) {
	bad := dayRecord("nan", at(2024, 3, 5, 9, 0), "g")
	bad.StartedAt = model.Timestamp(math.NaN())
	inf := dayRecord("inf", at(2024, 3, 5, 9, 0), "g")
	inf.EndedAt = model.Timestamp(math.Inf(1))
	hidden := dayRecord("hidden-nan", at(2024, 3, 5, 9, 0), "other")
	hidden.StartedAt = model.Timestamp(math.NaN())

	records := []model.Record{bad, dayRecord("ok", at(2024, 3, 5, 9, 0), "g"), inf, hidden}
	res := classifyKST(records, "g")

	assert.Equal(t, []string{"ok"}, sourceIDs(res.Events))
	// filtered-out records are not reported as dropped
	assert.Equal(t, []string{"nan", "inf"}, res.Dropped)
}

func TestClassify_TextAndDates(t *testing.T) {
	timed := record("timed", model.KindTimed, at(2024, 3, 5, 14, 30), at(2024, 3, 5, 15, 0), "g")
	timed.Title = "Standup"
	day := dayRecord("day", at(2024, 3, 6, 0, 0), "g")
	day.Title = "Holiday"
	multi := record("multi", model.KindMultiDay, at(2024, 3, 7, 0, 0), at(2024, 3, 9, 23, 0), "g")
	multi.Title = "Trip"

	res := classifyKST([]model.Record{timed, day, multi}, "g")
	require.Len(t, res.Events, 3)

	assert.Equal(t, "14:30", res.Events[0].TimeText)
	assert.Equal(t, "14:30 Standup", res.Events[0].DisplayText)
	assert.False(t, res.Events[0].IsMultiDay)

	assert.Empty(t, res.Events[1].TimeText)
	assert.Equal(t, "Holiday", res.Events[1].DisplayText)

	assert.Empty(t, res.Events[2].TimeText)
	assert.Equal(t, "Trip", res.Events[2].DisplayText)
	assert.True(t, res.Events[2].IsMultiDay)
	assert.Equal(t, CivilDate("20240307"), res.Events[2].StartDate)
	assert.Equal(t, CivilDate("20240309"), res.Events[2].EndDate)
}

func TestClassify_MultiDayFlagFollowsDates(t *testing.T) {
	// A MULTI_DAY record that stays inside one date is not multi-day, and a
	// TIMED record that crosses midnight is.
	sameDay := record("same", model.KindMultiDay, at(2024, 3, 5, 9, 0), at(2024, 3, 5, 18, 0), "g")
	overnight := record("night", model.KindTimed, at(2024, 3, 5, 22, 0), at(2024, 3, 6, 2, 0), "g")

	res := classifyKST([]model.Record{sameDay, overnight}, "g")
	require.Len(t, res.Events, 2)
	assert.False(t, res.Events[0].IsMultiDay)
	assert.True(t, res.Events[1].IsMultiDay)
	assert.Equal(t, "22:00", res.Events[1].TimeText)
}

func TestClassify_ResolvesInConfiguredZone(t *testing.T) {
	// 2024-03-31 15:30 UTC is already April 1st in Seoul.
	start := time.Date(2024, 3, 31, 15, 30, 0, 0, time.UTC)
	r := record("tz", model.KindTimed, start, start.Add(time.Hour), "g")

	res := classifyKST([]model.Record{r}, "g")
	require.Len(t, res.Events, 1)
	assert.Equal(t, CivilDate("20240401"), res.Events[0].StartDate)
	assert.Equal(t, "00:30", res.Events[0].TimeText)

	utc := Classify([]model.Record{r}, NewGroupSet("g"), ClassifyOptions{Location: time.UTC})
	assert.Equal(t, CivilDate("20240331"), utc.Events[0].StartDate)
}

func TestClassify_EndBeforeStartIsClamped(t *testing.T) {
	r := record("backwards", model.KindMultiDay, at(2024, 3, 10, 9, 0), at(2024, 3, 8, 9, 0), "g")
	res := classifyKST([]model.Record{r}, "g")
	require.Len(t, res.Events, 1)
	assert.Equal(t, res.Events[0].StartDate, res.Events[0].EndDate)
	assert.False(t, res.Events[0].IsMultiDay)
}

func TestClassify_Deterministic(t *testing.T) {
	records := randomRecords(7, 60)
	a := classifyKST(records, "g0", "g1", "g2")
	b := classifyKST(records, "g0", "g1", "g2")
	assert.Equal(t, a, b)

	la := AssignLines(a.Events, LineOptions{})
	lb := AssignLines(b.Events, LineOptions{})
	assert.Equal(t, la, lb)
}
