package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the textual form of Date values
const DateLayout = "2006-01-02"

// Cast coerces value to t.
// String always succeeds. Integer and Decimal strip thousands separators from
// text before parsing and return a *ConversionError when parsing fails.
// Date values are returned unchanged; they are built by the expression chain.
func Cast(value any, t ValueType) (any, error) {
	switch t {
	case String:
		return FormatValue(value), nil
	case Integer:
		return castInteger(value)
	case Decimal:
		return castDecimal(value)
	case Date:
		return value, nil
	default:
		return value, nil
	}
}

// FormatValue renders a value the way a String cast does
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return formatFloat(v)
	case bool:
		if v {
			return "True"
		}
		return "False"
	case time.Time:
		return v.Format(DateLayout)
	case []any:
		return formatList(v)
	default:
		return fmt.Sprint(v)
	}
}

// formatList renders a list as [a, b] with quoted strings, e.g. ['x', 2.0, None]
func formatList(items []any) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		switch v := item.(type) {
		case nil:
			b.WriteString("None")
		case string:
			b.WriteString(quoteString(v))
		default:
			b.WriteString(FormatValue(v))
		}
	}
	b.WriteByte(']')
	return b.String()
}

// quoteString prefers single quotes and switches to double quotes when only
// the single quote appears in s
func quoteString(s string) string {
	quote := "'"
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		quote = `"`
	}
	r := strings.NewReplacer(`\`, `\\`, quote, `\`+quote, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return quote + r.Replace(s) + quote
}

// formatFloat keeps a decimal point on integral values so Decimal output stays distinguishable from Integer
func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	s := decimal.NewFromFloat(v).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func numericText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
}

func castInteger(value any) (any, error) {
	switch v := value.(type) {
	case string:
		n, err := strconv.ParseInt(numericText(v), 10, 64)
		if err != nil {
			return nil, &ConversionError{Value: v, Target: Integer, Err: numErr(err)}
		}
		return n, nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, &ConversionError{Value: v, Target: Integer, Err: strconv.ErrRange}
		}
		return int64(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &ConversionError{Value: v, Target: Integer, Err: strconv.ErrSyntax}
		}
		// 2^63 is exact as a float64; int64(v) is undefined at or beyond it
		if v < -(1<<63) || v >= 1<<63 {
			return nil, &ConversionError{Value: v, Target: Integer, Err: strconv.ErrRange}
		}
		return int64(v), nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, &ConversionError{Value: value, Target: Integer}
	}
}

func castDecimal(value any) (any, error) {
	switch v := value.(type) {
	case string:
		f, err := strconv.ParseFloat(numericText(v), 64)
		if err != nil {
			return nil, &ConversionError{Value: v, Target: Decimal, Err: numErr(err)}
		}
		return f, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case float64:
		return v, nil
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	default:
		return nil, &ConversionError{Value: value, Target: Decimal}
	}
}

// numErr drops the strconv prefix that repeats the value
func numErr(err error) error {
	if ne, ok := err.(*strconv.NumError); ok {
		return ne.Err
	}
	return err
}
