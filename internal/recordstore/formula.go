package recordstore

import (
	"strconv"
	"strings"
	"time"
)

// Formula is a filter expression evaluated by the record store. Values are
// only ever interpolated through Quote, so callers never splice raw input.
type Formula string

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)

// Quote renders s as a single-quoted string literal.
func Quote(s string) string {
	return "'" + quoteEscaper.Replace(s) + "'"
}

// Field renders a field reference.
func Field(name string) string {
	return "{" + strings.NewReplacer("{", "", "}", "").Replace(name) + "}"
}

func And(parts ...Formula) Formula {
	return join("AND", parts)
}

func Or(parts ...Formula) Formula {
	return join("OR", parts)
}

func Not(f Formula) Formula {
	return Formula("NOT(" + string(f) + ")")
}

func Eq(field, value string) Formula {
	return Formula(Field(field) + "=" + Quote(value))
}

func EqNumber(field string, value int) Formula {
	return Formula(Field(field) + "=" + strconv.Itoa(value))
}

// Truthy matches records whose field is set (checkbox ticked, text non-empty).
func Truthy(field string) Formula {
	return Formula(Field(field))
}

// Contains matches records whose field (or joined linked-record field)
// contains value.
func Contains(field, value string) Formula {
	return Formula("SEARCH(" + Quote(value) + ",ARRAYJOIN(" + Field(field) + "))")
}

func Before(field string, t time.Time) Formula {
	return Formula("IS_BEFORE(" + Field(field) + "," + Quote(t.UTC().Format(time.RFC3339)) + ")")
}

func After(field string, t time.Time) Formula {
	return Formula("IS_AFTER(" + Field(field) + "," + Quote(t.UTC().Format(time.RFC3339)) + ")")
}

// OnOrBefore is the negation of After, so it also matches equal instants.
func OnOrBefore(field string, t time.Time) Formula {
	return Not(After(field, t))
}

// OnOrAfter is the negation of Before, so it also matches equal instants.
func OnOrAfter(field string, t time.Time) Formula {
	return Not(Before(field, t))
}

func join(op string, parts []Formula) Formula {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, string(p))
		}
	}
	switch len(kept) {
	case 0:
		return ""
	case 1:
		return Formula(kept[0])
	}
	return Formula(op + "(" + strings.Join(kept, ",") + ")")
}
