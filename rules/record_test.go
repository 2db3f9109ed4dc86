package rules

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordKeepsOrder(t *testing.T) {
	rec := NewRecord(3)
	rec.Set("b", 1)
	rec.Set("a", 2)
	rec.Set("b", 3)

	assert.Equal(t, []string{"b", "a"}, rec.Keys())
	assert.Equal(t, 2, rec.Len())
	assert.Equal(t, map[string]any{"b": 3, "a": 2}, rec.Map())
}

func TestRecordZeroValueSet(t *testing.T) {
	var rec Record
	rec.Set("k", "v")
	v, ok := rec.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestRecordMarshalJSON(t *testing.T) {
	rec := NewRecord(5)
	rec.Set("Name", "Test Value")
	rec.Set("Count", int64(3))
	rec.Set("Total", 12246.0)
	rec.Set("Date", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	rec.Set("Failed", "")

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"Name":"Test Value","Count":3,"Total":12246.0,"Date":"2020-01-01","Failed":""}`, string(data))
}

func TestRecordMarshalNaN(t *testing.T) {
	rec := NewRecord(1)
	rec.Set("x", math.NaN())

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"x":"NaN"}`, string(data))
}

// TestRecordJSONRoundTrip verifies values survive a JSON round trip, dates coming back as YYYY-MM-DD
func TestRecordJSONRoundTrip(t *testing.T) {
	rec := NewRecord(4)
	rec.Set("s", "text")
	rec.Set("i", int64(-12))
	rec.Set("f", 6123.0)
	rec.Set("d", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))

	data, err := json.Marshal([]Record{rec})
	require.NoError(t, err)

	var back []Record
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, 1)

	assert.Equal(t, rec.Keys(), back[0].Keys())
	for _, k := range []string{"s", "i", "f"} {
		want, _ := rec.Get(k)
		got, _ := back[0].Get(k)
		assert.Equal(t, want, got, k)
	}
	got, _ := back[0].Get("d")
	assert.Equal(t, "2020-01-01", got)
}

func TestRecordUnmarshalRejectsArrays(t *testing.T) {
	var rec Record
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &rec))
}
