package model

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_AcceptsNumbersAndNumericStrings(t *testing.T) {
	var recs []Record
	payload := `[
		{"id":"a","startedAt":1711584000000,"endedAt":"1711587600000","kind":"TIMED","title":"x","groupId":"g"},
		{"id":"b","startedAt":"not-a-number","endedAt":0,"kind":"DAY","title":"y","groupId":"g"}
	]`
	require.NoError(t, json.Unmarshal([]byte(payload), &recs))
	require.Len(t, recs, 2)

	assert.Equal(t, Timestamp(1711584000000), recs[0].StartedAt)
	assert.Equal(t, Timestamp(1711587600000), recs[0].EndedAt)
	assert.Equal(t, KindTimed, recs[0].Kind)

	assert.True(t, math.IsNaN(float64(recs[1].StartedAt)))
	assert.False(t, recs[1].StartedAt.Valid())
	assert.True(t, recs[1].EndedAt.Valid())
}

func TestTimestamp_Validity(t *testing.T) {
	assert.False(t, Timestamp(math.Inf(1)).Valid())
	assert.False(t, Timestamp(math.Inf(-1)).Valid())
	assert.False(t, Timestamp(1e300).Valid())
	assert.True(t, Timestamp(0).Valid())

	_, ok := Timestamp(math.NaN()).Time(time.UTC)
	assert.False(t, ok)

	tm, ok := Timestamp(0).Time(nil)
	require.True(t, ok)
	assert.Equal(t, 1970, tm.Year())
}

func TestKind_RejectsUnknown(t *testing.T) {
	var k Kind
	err := json.Unmarshal([]byte(`"WEEKLY"`), &k)
	assert.Error(t, err)

	require.NoError(t, json.Unmarshal([]byte(`"multi_day"`), &k))
	assert.Equal(t, KindMultiDay, k)

	out, err := json.Marshal(KindDay)
	require.NoError(t, err)
	assert.JSONEq(t, `"DAY"`, string(out))
}
