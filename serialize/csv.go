package serialize

import (
	"bytes"
	"encoding/csv"

	"github.com/liamcoop/csvetl/rules"
)

func init() {
	Register(CSV{})
}

// CSV renders a header of rule-set targets followed by one line per record.
type CSV struct{}

func (CSV) Name() string { return "csv" }

func (CSV) ContentType() string { return "text/csv" }

func (CSV) Serialize(targets []string, records []rules.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(targets); err != nil {
		return nil, err
	}

	line := make([]string, len(targets))
	for _, rec := range records {
		for i, target := range targets {
			v, _ := rec.Get(target)
			line[i] = rules.FormatValue(v)
		}
		if err := w.Write(line); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
