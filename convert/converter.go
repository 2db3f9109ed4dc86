// Package convert applies a rule set to every row of a source and
// serializes the result.
package convert

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/liamcoop/csvetl/csvsource"
	"github.com/liamcoop/csvetl/internal/logger"
	"github.com/liamcoop/csvetl/rules"
	"github.com/liamcoop/csvetl/serialize"
)

// RowSource yields header-keyed rows until io.EOF
type RowSource interface {
	Read() (rules.Row, error)
}

// Options selects the output of a conversion
type Options struct {
	Format  string // serializer tag; empty returns native records only
	Outfile string // when set, the result is written through the Sink
	Comma   rune   // field delimiter for ConvertFile; ',' when zero
}

// Stats summarizes one conversion run
type Stats struct {
	RunID    uuid.UUID `json:"run_id"`
	Rows     int       `json:"rows"`
	Failures int       `json:"failures"`
}

// Output is the result of Convert
type Output struct {
	Records []rules.Record
	Encoded []byte // nil when no format was requested
	Format  string
	Stats   Stats
}

// Converter runs a rule set over rows. A Converter may be shared; each call
// runs its own sequential pass.
type Converter struct {
	ruleSet  *rules.RuleSet
	reporter Reporter
	sink     Sink
}

// Option configures a Converter
type Option func(*Converter)

// WithReporter sends diagnostics to r instead of the logger
func WithReporter(r Reporter) Option {
	return func(c *Converter) {
		c.reporter = r
	}
}

// WithSink replaces the default FileSink
func WithSink(s Sink) Option {
	return func(c *Converter) {
		c.sink = s
	}
}

// New returns a Converter for rs
func New(rs *rules.RuleSet, opts ...Option) *Converter {
	c := &Converter{
		ruleSet:  rs,
		reporter: LogReporter{},
		sink:     FileSink{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RuleSet returns the rule set the converter applies
func (c *Converter) RuleSet() *rules.RuleSet {
	return c.ruleSet
}

// ConvertRows produces one record per row, in order. Rule failures are
// reported and leave "" in the field; only source errors abort.
func (c *Converter) ConvertRows(src RowSource) ([]rules.Record, error) {
	records, _, err := c.convertRows(src, c.reporter)
	return records, err
}

func (c *Converter) convertRows(src RowSource, reporter Reporter) ([]rules.Record, Stats, error) {
	stats := Stats{RunID: uuid.New()}
	ruleList := c.ruleSet.Rules()
	records := []rules.Record{}

	for {
		row, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("failed to read row %d: %w", stats.Rows+1, err)
		}
		stats.Rows++

		rec := rules.NewRecord(len(ruleList))
		for _, rule := range ruleList {
			res := rule.Execute(row)
			if res.OK() {
				rec.Set(res.Target, res.Value)
				continue
			}

			stats.Failures++
			reporter.Report(Diagnostic{
				RunID:  stats.RunID,
				Row:    stats.Rows,
				Target: rule.Target(),
				Rule:   rule.AsMap(),
				Data:   row,
				Err:    res.Err,
			})
			rec.Set(rule.Target(), "")
		}
		records = append(records, rec)
	}

	return records, stats, nil
}

// Convert runs ConvertRows, then serializes and persists as opts asks.
// Without a format, an outfile receives the records as JSON.
func (c *Converter) Convert(src RowSource, opts Options) (*Output, error) {
	return c.convert(src, opts, c.reporter)
}

func (c *Converter) convert(src RowSource, opts Options, reporter Reporter) (*Output, error) {
	var ser serialize.Serializer
	if opts.Format != "" {
		var err error
		if ser, err = serialize.Get(opts.Format); err != nil {
			return nil, err
		}
	}

	records, stats, err := c.convertRows(src, reporter)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Records: records,
		Format:  opts.Format,
		Stats:   stats,
	}

	if ser != nil {
		out.Encoded, err = ser.Serialize(c.ruleSet.Targets(), records)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", opts.Format, err)
		}
	}

	if opts.Outfile != "" {
		data := out.Encoded
		if ser == nil {
			if data, err = (serialize.JSON{}).Serialize(nil, records); err != nil {
				return nil, fmt.Errorf("failed to encode records: %w", err)
			}
		}
		if err := c.sink.Write(opts.Outfile, data); err != nil {
			return nil, err
		}
	}

	logger.Debug("conversion finished",
		"run_id", stats.RunID.String(),
		"rows", stats.Rows,
		"failures", stats.Failures,
		"format", opts.Format,
	)

	return out, nil
}

// ConvertWith is Convert with an additional reporter for this run only
func (c *Converter) ConvertWith(src RowSource, opts Options, r Reporter) (*Output, error) {
	return c.convert(src, opts, multiReporter{c.reporter, r})
}

// ConvertFile opens the CSV file at path and converts it
func (c *Converter) ConvertFile(path string, opts Options) (*Output, error) {
	var readerOpts []csvsource.Option
	if opts.Comma != 0 {
		readerOpts = append(readerOpts, csvsource.WithComma(opts.Comma))
	}

	f, err := csvsource.Open(path, readerOpts...)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return c.Convert(f, opts)
}
