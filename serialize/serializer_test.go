package serialize

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/liamcoop/csvetl/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(kv ...any) rules.Record {
	rec := rules.NewRecord(len(kv) / 2)
	for i := 0; i < len(kv); i += 2 {
		rec.Set(kv[i].(string), kv[i+1])
	}
	return rec
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"csv", "json", "jsonl"}, Available())

	s, err := Get("json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", s.ContentType())

	_, err = Get("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
	assert.Contains(t, err.Error(), "csv")
}

func TestJSON(t *testing.T) {
	records := []rules.Record{
		record("TestTarget", "Test Value"),
	}

	out, err := JSON{}.Serialize([]string{"TestTarget"}, records)
	require.NoError(t, err)
	assert.Equal(t, "[\n    {\n        \"TestTarget\": \"Test Value\"\n    }\n]", string(out))
}

func TestJSONEmpty(t *testing.T) {
	out, err := JSON{}.Serialize(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}

func TestJSONDate(t *testing.T) {
	records := []rules.Record{
		record("date", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	out, err := JSON{}.Serialize(nil, records)
	require.NoError(t, err)

	var back []map[string]any
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, "2020-01-01", back[0]["date"])
}

func TestCSV(t *testing.T) {
	targets := []string{"Name", "Total", "Date", "Note"}
	records := []rules.Record{
		record("Note", "has, comma", "Name", "a", "Total", 12246.0, "Date", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
		record("Name", "b", "Total", "", "Date", "", "Note", `say "hi"`),
	}

	out, err := CSV{}.Serialize(targets, records)
	require.NoError(t, err)
	assert.Equal(t,
		"Name,Total,Date,Note\n"+
			"a,12246.0,2020-01-01,\"has, comma\"\n"+
			"b,,,\"say \"\"hi\"\"\"\n",
		string(out))
}

func TestCSVHeaderOnly(t *testing.T) {
	out, err := CSV{}.Serialize([]string{"A", "B"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "A,B\n", string(out))
}

func TestJSONLines(t *testing.T) {
	records := []rules.Record{
		record("Name", "a \"quoted\" name", "Count", int64(3), "Total", 500.0, "Date", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), "Ok", true),
		record("Name", "", "Count", "", "Total", 1.5, "Date", "", "Ok", false),
	}

	out, err := JSONLines{}.Serialize(nil, records)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"Name":"a \"quoted\" name","Count":3,"Total":500.0,"Date":"2020-01-01","Ok":true}`, lines[0])

	var back rules.Record
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &back))
	assert.Equal(t, map[string]any{"Name": "", "Count": "", "Total": 1.5, "Date": "", "Ok": false}, back.Map())
}

func TestJSONLinesEmpty(t *testing.T) {
	out, err := JSONLines{}.Serialize(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
