package expr

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DateFunction is the name the date constructor is bound under
const DateFunction = "datetime"

func stringFunctions() []cel.EnvOption {
	return []cel.EnvOption{
		stringMember("title", title),
		// a Caser keeps state between calls, so it is never shared
		stringMember("upper", func(s string) string { return cases.Upper(language.Und).String(s) }),
		stringMember("lower", func(s string) string { return cases.Lower(language.Und).String(s) }),
		stringMember("strip", strings.TrimSpace),
	}
}

// title upper-cases every letter that follows a non-letter and lower-cases the
// rest, so "o'neil 3rd" becomes "O'Neil 3Rd"
func title(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevCased := false
	for _, r := range s {
		if prevCased {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToTitle(r))
		}
		prevCased = unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
	}
	return b.String()
}

func stringMember(name string, fn func(string) string) cel.EnvOption {
	return cel.Function(name,
		cel.MemberOverload("string_"+name, []*cel.Type{cel.StringType}, cel.StringType,
			cel.UnaryBinding(func(v ref.Val) ref.Val {
				s, ok := v.(types.String)
				if !ok {
					return types.MaybeNoSuchOverloadErr(v)
				}
				return types.String(fn(string(s)))
			}),
		),
	)
}

func dateFunctions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function(DateFunction,
			cel.Overload("datetime_int_int_int",
				[]*cel.Type{cel.IntType, cel.IntType, cel.IntType}, cel.TimestampType,
				cel.FunctionBinding(newDateTime),
			),
			cel.Overload("datetime_int_int_int_int_int_int",
				[]*cel.Type{cel.IntType, cel.IntType, cel.IntType, cel.IntType, cel.IntType, cel.IntType}, cel.TimestampType,
				cel.FunctionBinding(newDateTime),
			),
		),
	}
}

// newDateTime builds a UTC timestamp and rejects components time.Date would normalize
func newDateTime(args ...ref.Val) ref.Val {
	parts := make([]int, 6)
	for i, arg := range args {
		n, ok := arg.(types.Int)
		if !ok {
			return types.MaybeNoSuchOverloadErr(arg)
		}
		parts[i] = int(n)
	}
	year, month, day, hour, minute, second := parts[0], parts[1], parts[2], parts[3], parts[4], parts[5]

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != second {
		return types.NewErr("%s: %04d-%02d-%02d %02d:%02d:%02d is not a valid date", DateFunction, year, month, day, hour, minute, second)
	}
	if year < 1 || year > 9999 {
		return types.NewErr("%s: year %d is out of range", DateFunction, year)
	}
	return types.Timestamp{Time: t}
}
