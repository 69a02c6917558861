package dataset

import (
	"regexp"
	"strings"
)

// Status is the state of one coded condition for a visit. The source table
// spreads it over five binary flag columns; a Record holds exactly one Status.
type Status uint8

const (
	Absent Status = iota
	Current
	Historic
	Negated
	Uncertain
	Surgical
)

var statusNames = [...]string{"absent", "current", "historic", "negated", "uncertain", "surgical"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// FlagStatuses lists the statuses that have a flag column, in suffix order.
var FlagStatuses = []Status{Current, Historic, Negated, Uncertain, Surgical}

// statusPrecedence decides which status wins when several flags of one code
// are set on the same record.
var statusPrecedence = []Status{Current, Surgical, Historic, Uncertain, Negated}

var flagColumn = regexp.MustCompile(`(?i)^(.+?)[_\-.](current|historic|negated|uncertain|surgical)$`)

// ParseFlagColumn splits a header such as "M84_historic" into its condition
// code and status.
func ParseFlagColumn(header string) (code string, status Status, ok bool) {
	m := flagColumn.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return "", Absent, false
	}
	suffix := strings.ToLower(m[2])
	for _, st := range FlagStatuses {
		if st.String() == suffix {
			return strings.ToLower(m[1]), st, true
		}
	}
	return "", Absent, false
}

// ResolveStatus collapses a set of raised flags into one status. It returns
// whether more than one flag was raised.
func ResolveStatus(raised map[Status]bool) (Status, bool) {
	n := 0
	for _, v := range raised {
		if v {
			n++
		}
	}
	for _, st := range statusPrecedence {
		if raised[st] {
			return st, n > 1
		}
	}
	return Absent, false
}
