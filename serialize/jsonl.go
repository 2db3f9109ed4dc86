package serialize

import (
	"bytes"
	"fmt"

	"github.com/francoispqt/gojay"
	"github.com/liamcoop/csvetl/rules"
)

func init() {
	Register(JSONLines{})
}

// JSONLines renders one compact JSON object per record, newline terminated.
type JSONLines struct{}

func (JSONLines) Name() string { return "jsonl" }

func (JSONLines) ContentType() string { return "application/x-ndjson" }

func (JSONLines) Serialize(_ []string, records []rules.Record) ([]byte, error) {
	var buf bytes.Buffer
	for i, rec := range records {
		line, err := gojay.MarshalJSONObject(lineRecord{rec})
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// lineRecord streams a record through gojay without reflection
type lineRecord struct {
	rules.Record
}

func (r lineRecord) MarshalJSONObject(enc *gojay.Encoder) {
	for _, key := range r.Keys() {
		v, _ := r.Get(key)
		switch val := v.(type) {
		case string:
			enc.StringKey(key, val)
		case int64:
			enc.Int64Key(key, val)
		case bool:
			enc.BoolKey(key, val)
		default:
			raw, err := rules.MarshalValue(val)
			if err != nil {
				raw, _ = rules.MarshalValue(rules.FormatValue(val))
			}
			embedded := gojay.EmbeddedJSON(raw)
			enc.AddEmbeddedJSONKey(key, &embedded)
		}
	}
}

func (r lineRecord) IsNil() bool { return false }
