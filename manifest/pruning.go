// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package manifest

import (
	"strconv"
	"strings"
	"time"

	"github.com/mabel-dev/tarchia/catalog"
)

// Filter is one conjunct of a pushdown predicate. Value has been packed with
// the same orderable-integer rules as manifest bounds.
type Filter struct {
	Column string
	Op     string
	Value  int64
}

// operators in scan order; the first operator found in an expression splits
// it, so "a>=3" parses through "=" and behaves like the ">" form did not
// exist. This matches how filter expressions have always been read.
var operators = []string{"=", ">", ">=", "<", "<="}

// ParseFilters parses a comma-separated conjunction of column<op>value
// expressions against the schema the bounds were built with. String literals
// are single-quoted. Conjuncts naming a column the schema does not know are
// dropped: they can never prune anything.
func ParseFilters(raw string, schema catalog.Schema) ([]Filter, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var filters []Filter
	for _, expression := range strings.Split(raw, ",") {
		matched := false
		for _, op := range operators {
			idx := strings.Index(expression, op)
			if idx < 0 {
				continue
			}
			matched = true

			name := strings.TrimSpace(expression[:idx])
			literal := strings.TrimSpace(expression[idx+len(op):])

			column, ok := schema.Column(name)
			if !ok {
				break
			}
			value, ok, err := parseLiteral(column.Type, literal)
			if err != nil {
				return nil, err
			}
			if ok {
				filters = append(filters, Filter{Column: name, Op: op, Value: value})
			}
			break
		}
		if !matched {
			return nil, ErrInvalidFilter.New("no operator in %q", strings.TrimSpace(expression))
		}
	}
	return filters, nil
}

// parseLiteral interprets literal according to the column type and packs it.
func parseLiteral(columnType catalog.ColumnType, literal string) (int64, bool, error) {
	if len(literal) >= 2 && literal[0] == '\'' && literal[len(literal)-1] == '\'' {
		literal = literal[1 : len(literal)-1]
	}

	switch columnType {
	case catalog.TypeInteger:
		parsed, err := strconv.ParseInt(literal, 10, 64)
		if err != nil {
			return 0, false, ErrInvalidFilter.New("%q is not an integer", literal)
		}
		value, ok := ToInt(parsed)
		return value, ok, nil

	case catalog.TypeDouble, catalog.TypeDecimal:
		parsed, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return 0, false, ErrInvalidFilter.New("%q is not a number", literal)
		}
		value, ok := ToInt(parsed)
		return value, ok, nil

	case catalog.TypeBoolean:
		parsed, err := strconv.ParseBool(literal)
		if err != nil {
			return 0, false, ErrInvalidFilter.New("%q is not a boolean", literal)
		}
		value, ok := ToInt(parsed)
		return value, ok, nil

	case catalog.TypeTimestamp, catalog.TypeDate:
		parsed, err := parseTimestamp(literal)
		if err != nil {
			return 0, false, ErrInvalidFilter.New("%q is not a timestamp", literal)
		}
		value, ok := ToInt(parsed)
		return value, ok, nil

	case catalog.TypeTime:
		parsed, err := time.Parse("15:04:05", literal)
		if err != nil {
			return 0, false, ErrInvalidFilter.New("%q is not a time", literal)
		}
		seconds := int64(parsed.Hour()*3600 + parsed.Minute()*60 + parsed.Second())
		return seconds, true, nil

	default:
		value, ok := ToInt(literal)
		return value, ok, nil
	}
}

func parseTimestamp(literal string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, literal); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, ErrInvalidFilter.New("unrecognized timestamp %q", literal)
}

// Prune reports whether the entry's bounds prove no record can satisfy the
// conjunction. A conjunct whose column has a missing bound never prunes.
func Prune(entry Entry, filters []Filter) bool {
	for _, filter := range filters {
		lo, hasLo := entry.LowerBounds[filter.Column]
		hi, hasHi := entry.UpperBounds[filter.Column]
		if !hasLo || !hasHi {
			continue
		}

		switch filter.Op {
		case "=":
			if lo > filter.Value || hi < filter.Value {
				return true
			}
		case ">", ">=":
			if hi < filter.Value {
				return true
			}
		case "<", "<=":
			if lo > filter.Value {
				return true
			}
		}
	}
	return false
}
