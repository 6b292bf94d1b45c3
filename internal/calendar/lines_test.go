package calendar

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monthcal/internal/model"
)

// randomRecords spreads n records over late Feb .. early Apr 2024 across four
// groups, roughly a third of them multi-day.
func randomRecords(seed int64, n int) []model.Record {
	rng := rand.New(rand.NewSource(seed))
	base := at(2024, 2, 20, 0, 0)
	out := make([]model.Record, 0, n)
	for i := 0; i < n; i++ {
		start := base.Add(time.Duration(rng.Intn(45*24)) * time.Hour).Add(time.Duration(rng.Intn(60)) * time.Minute)
		kind := model.Kind(rng.Intn(3))
		var end time.Time
		switch kind {
		case model.KindMultiDay:
			end = start.Add(time.Duration(24+rng.Intn(24*12)) * time.Hour)
		default:
			end = start.Add(time.Duration(rng.Intn(60)) * time.Minute)
		}
		out = append(out, record(fmt.Sprintf("r%03d", i), kind, start, end, fmt.Sprintf("g%d", rng.Intn(4))))
	}
	return out
}

func linesByID(events []Event) map[string]int {
	out := make(map[string]int, len(events))
	for _, e := range events {
		out[e.SourceID] = e.LinePosition
	}
	return out
}

func TestAssignLines_SameDateSingles(t *testing.T) {
	records := []model.Record{
		dayRecord("third", at(2024, 3, 12, 15, 0), "g"),
		dayRecord("first", at(2024, 3, 12, 9, 0), "g"),
		dayRecord("second", at(2024, 3, 12, 11, 0), "g"),
	}
	events := classifyKST(records, "g").Events
	res := AssignLines(events, LineOptions{})

	require.Equal(t, []string{"first", "second", "third"}, sourceIDs(res.Events))
	for i, e := range res.Events {
		assert.Equal(t, i, e.LinePosition)
	}
	assert.Empty(t, res.Overflow)
}

func TestAssignLines_ReserveKeepsBarLevel(t *testing.T) {
	records := []model.Record{
		dayRecord("before", at(2024, 3, 4, 8, 0), "g"),
		record("bar", model.KindMultiDay, at(2024, 3, 4, 9, 0), at(2024, 3, 6, 18, 0), "g"),
		dayRecord("inside", at(2024, 3, 5, 10, 0), "g"),
		dayRecord("after", at(2024, 3, 7, 10, 0), "g"),
	}
	events := classifyKST(records, "g").Events

	reserve := linesByID(AssignLines(events, LineOptions{Policy: PolicyReserve}).Events)
	assert.Equal(t, 0, reserve["before"])
	assert.Equal(t, 1, reserve["bar"])
	// Mar 5 only holds the bar, yet the reserved slot pushes this one to 2.
	assert.Equal(t, 2, reserve["inside"])
	assert.Equal(t, 0, reserve["after"])

	firstFit := linesByID(AssignLines(events, LineOptions{Policy: PolicyFirstFit}).Events)
	assert.Equal(t, 0, firstFit["before"])
	assert.Equal(t, 1, firstFit["bar"])
	assert.Equal(t, 0, firstFit["inside"])
	assert.Equal(t, 0, firstFit["after"])
}

func TestAssignLines_MultiDayTakesHighestLineInSpan(t *testing.T) {
	records := []model.Record{
		dayRecord("a", at(2024, 3, 6, 8, 0), "g"),
		dayRecord("b", at(2024, 3, 6, 8, 30), "g"),
		record("bar", model.KindMultiDay, at(2024, 3, 6, 9, 0), at(2024, 3, 8, 9, 0), "g"),
		dayRecord("c", at(2024, 3, 8, 10, 0), "g"),
	}
	res := linesByID(AssignLines(classifyKST(records, "g").Events, LineOptions{}).Events)
	assert.Equal(t, 2, res["bar"])
	assert.Equal(t, 3, res["c"])
}

func TestAssignLines_DoesNotMutateInput(t *testing.T) {
	events := classifyKST([]model.Record{
		dayRecord("a", at(2024, 3, 6, 8, 0), "g"),
		dayRecord("b", at(2024, 3, 6, 9, 0), "g"),
	}, "g").Events

	_ = AssignLines(events, LineOptions{MaxVisible: 1})
	for _, e := range events {
		assert.Zero(t, e.LinePosition)
		assert.False(t, e.Hidden)
	}
}

func TestAssignLines_OverflowCap(t *testing.T) {
	records := []model.Record{
		dayRecord("a", at(2024, 3, 12, 9, 0), "g"),
		dayRecord("b", at(2024, 3, 12, 10, 0), "g"),
		dayRecord("c", at(2024, 3, 12, 11, 0), "g"),
		record("bar", model.KindMultiDay, at(2024, 3, 12, 12, 0), at(2024, 3, 13, 9, 0), "g"),
	}
	res := AssignLines(classifyKST(records, "g").Events, LineOptions{Policy: PolicyFirstFit, MaxVisible: 2})

	hidden := map[string]bool{}
	for _, e := range res.Events {
		hidden[e.SourceID] = e.Hidden
	}
	assert.False(t, hidden["a"])
	assert.False(t, hidden["b"])
	assert.True(t, hidden["c"])
	assert.True(t, hidden["bar"])
	assert.Equal(t, 2, res.Overflow["20240312"])
	assert.Equal(t, 1, res.Overflow["20240313"])
}

func TestAssignLines_CenturiesLongBarKeepsItsLine(t *testing.T) {
	records := []model.Record{
		record("old", model.KindMultiDay, at(1600, 1, 1, 9, 0), at(2024, 3, 12, 18, 0), "g"),
		dayRecord("x", at(2024, 3, 12, 10, 0), "g"),
		dayRecord("next", at(2024, 3, 13, 10, 0), "g"),
	}
	events := classifyKST(records, "g").Events

	for _, policy := range []LinePolicy{PolicyReserve, PolicyFirstFit} {
		lines := linesByID(AssignLines(events, LineOptions{Policy: policy}).Events)
		assert.Equal(t, 0, lines["old"], "policy %s", policy)
		assert.Equal(t, 1, lines["x"], "policy %s", policy)
		assert.Equal(t, 0, lines["next"], "policy %s", policy)
	}

	res := AssignLines(events, LineOptions{MaxVisible: 1})
	assert.Equal(t, 1, res.Overflow["20240312"])
	assert.Zero(t, res.Overflow["20240313"])
}

// naiveReserve walks every date of every span.
func naiveReserve(events []Event) map[string]int {
	next := map[CivilDate]int{}
	out := map[string]int{}
	for _, ev := range events {
		maxLine := 0
		for _, d := range ev.Dates() {
			maxLine = max(maxLine, next[d])
		}
		out[ev.SourceID] = maxLine
		for _, d := range ev.Dates() {
			next[d] = maxLine + 1
		}
	}
	return out
}

func TestAssignLines_ReserveMatchesPerDateWalk(t *testing.T) {
	for trial := 0; trial < 100; trial++ {
		events := classifyKST(randomRecords(int64(trial), 40), "g0", "g1", "g2", "g3").Events
		got := linesByID(AssignLines(events, LineOptions{Policy: PolicyReserve}).Events)
		require.Equal(t, naiveReserve(events), got, "trial %d", trial)
	}
}

func TestParseLinePolicy(t *testing.T) {
	p, err := ParseLinePolicy("first-fit")
	require.NoError(t, err)
	assert.Equal(t, PolicyFirstFit, p)

	p, err = ParseLinePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyReserve, p)

	_, err = ParseLinePolicy("tetris")
	assert.Error(t, err)
}

// Invariants over random inputs: no two events covering the same date share a
// line (which covers single-day uniqueness), and every event has one
// non-negative line.
func TestAssignLines_Invariants(t *testing.T) {
	for _, policy := range []LinePolicy{PolicyReserve, PolicyFirstFit} {
		for trial := 0; trial < 100; trial++ {
			records := randomRecords(int64(trial), 40)
			events := classifyKST(records, "g0", "g1", "g2", "g3").Events
			res := AssignLines(events, LineOptions{Policy: policy})

			byDate := map[CivilDate]map[int]string{}
			for _, e := range res.Events {
				require.GreaterOrEqual(t, e.LinePosition, 0)
				for _, d := range e.Dates() {
					if byDate[d] == nil {
						byDate[d] = map[int]string{}
					}
					other, taken := byDate[d][e.LinePosition]
					require.False(t, taken,
						"policy %s trial %d: %s and %s share line %d on %s", policy, trial, other, e.SourceID, e.LinePosition, d)
					byDate[d][e.LinePosition] = e.SourceID
				}
			}
		}
	}
}
