package serialize

import (
	"encoding/json"

	"github.com/liamcoop/csvetl/rules"
)

// JSONIndent is the indentation used for JSON output
const JSONIndent = "    "

func init() {
	Register(JSON{})
}

// JSON renders records as a pretty-printed array of objects.
// Dates are written as YYYY-MM-DD.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) ContentType() string { return "application/json" }

func (JSON) Serialize(_ []string, records []rules.Record) ([]byte, error) {
	if records == nil {
		records = []rules.Record{}
	}
	return json.MarshalIndent(records, "", JSONIndent)
}
