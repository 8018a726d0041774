// Package validate is a small table-driven validation engine.
//
// A Table is an ordered list of Rules, each naming one field and a chain of
// Checks. Apply evaluates the requested fields and returns an Errors set
// holding the first failing message per field.
package validate

import (
	"maps"
	"slices"
	"sort"
	"time"
)

// Errors maps a field name to a human-readable message.
// An empty set means the validated fields are valid.
type Errors map[string]string

// Empty reports whether there are no errors.
func (e Errors) Empty() bool {
	return len(e) == 0
}

// Fields returns the field names in sorted order.
func (e Errors) Fields() []string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Only returns the subset of e restricted to fields.
func (e Errors) Only(fields ...string) Errors {
	out := Errors{}
	for _, f := range fields {
		if msg, ok := e[f]; ok {
			out[f] = msg
		}
	}
	return out
}

// Merge returns a new set with the entries of e overlaid by other.
func (e Errors) Merge(other Errors) Errors {
	out := maps.Clone(e)
	if out == nil {
		out = Errors{}
	}
	maps.Copy(out, other)
	return out
}

// Check inspects v at time now and returns "" when satisfied,
// otherwise the message to report.
type Check[T any] func(v T, now time.Time) string

// Rule binds a field name to its checks. The first failing check wins.
type Rule[T any] struct {
	Field  string
	Checks []Check[T]
}

// Table is an ordered set of rules.
type Table[T any] []Rule[T]

// Apply runs the rules for the named fields against v.
// With no fields, every rule runs. Unknown field names are ignored.
func (t Table[T]) Apply(v T, now time.Time, fields ...string) Errors {
	errs := Errors{}
	for _, rule := range t {
		if len(fields) > 0 && !slices.Contains(fields, rule.Field) {
			continue
		}
		for _, check := range rule.Checks {
			if msg := check(v, now); msg != "" {
				errs[rule.Field] = msg
				break
			}
		}
	}
	return errs
}

// Fields returns the field names covered by the table, in rule order.
func (t Table[T]) Fields() []string {
	out := make([]string, 0, len(t))
	for _, rule := range t {
		out = append(out, rule.Field)
	}
	return out
}
