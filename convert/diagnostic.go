package convert

import (
	"fmt"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/liamcoop/csvetl/internal/logger"
	"github.com/liamcoop/csvetl/rules"
)

// snapshot prints rows and rule descriptions with sorted keys so diagnostics are stable
var snapshot = spew.ConfigState{
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Diagnostic describes one rule that failed on one row. The field it would
// have produced is written as "" instead.
type Diagnostic struct {
	RunID  uuid.UUID      `json:"run_id"`
	Row    int            `json:"row"` // 1-based, header excluded
	Target string         `json:"target"`
	Rule   map[string]any `json:"rule"`
	Data   rules.Row      `json:"data"`
	Err    error          `json:"-"`
}

// Message returns the error detail
func (d Diagnostic) Message() string {
	if d.Err == nil {
		return ""
	}
	return d.Err.Error()
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("Error executing:\n    Rule: %s\nOn:\n    Data: %s\nError details:\n    %s\n",
		snapshot.Sprintf("%v", d.Rule),
		snapshot.Sprintf("%v", d.Data),
		d.Message(),
	)
}

// Reporter receives diagnostics as they happen
type Reporter interface {
	Report(d Diagnostic)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(d Diagnostic)

func (f ReporterFunc) Report(d Diagnostic) { f(d) }

// LogReporter writes diagnostics to the process logger at warning level
type LogReporter struct{}

func (LogReporter) Report(d Diagnostic) {
	logger.Diagnostic("Error executing rule",
		"run_id", d.RunID.String(),
		"row", d.Row,
		"target", d.Target,
		"rule", snapshot.Sprintf("%v", d.Rule),
		"data", snapshot.Sprintf("%v", d.Data),
		"error", d.Message(),
	)
}

// Collector keeps every diagnostic it receives. Safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, d)
}

// Diagnostics returns a copy of the collected diagnostics
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.diags))
	copy(out, c.diags)
	return out
}

// Len returns the number of collected diagnostics
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.diags)
}

// multiReporter fans a diagnostic out to several reporters
type multiReporter []Reporter

func (m multiReporter) Report(d Diagnostic) {
	for _, r := range m {
		r.Report(d)
	}
}
