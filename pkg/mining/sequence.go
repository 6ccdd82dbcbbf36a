// Package mining implements the event-log analysis passes: bottleneck timing,
// loop detection, variant mining and compliance checking.
//
// Every pass is a pure function over a validated *model.EventLog. None of them
// mutate the log, so the passes can run concurrently against one snapshot.
package mining

import (
	"sort"
	"strconv"
	"strings"

	"github.com/logflow/pmdash/internal/model"
)

// Sequence is an ordered tuple of activity names.
type Sequence []string

// Key returns a grouping key that is unique per distinct sequence.
// Each activity is length-prefixed so no activity name can collide with a
// separator.
func (s Sequence) Key() string {
	var sb strings.Builder
	for _, a := range s {
		sb.WriteString(strconv.Itoa(len(a)))
		sb.WriteByte(':')
		sb.WriteString(a)
	}
	return sb.String()
}

// Equal reports whether both sequences have the same activities in the same order.
func (s Sequence) Equal(other Sequence) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the sequence as "A → B → C".
func (s Sequence) String() string {
	return strings.Join(s, " → ")
}

// ParseSequence splits a comma-separated list of activities.
// Empty items are dropped.
func ParseSequence(s string) Sequence {
	var seq Sequence
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			seq = append(seq, p)
		}
	}
	return seq
}

// CaseSequences maps each case to its ordered activity sequence.
type CaseSequences struct {
	// Order lists case ids in the order they first appear in the log.
	Order []string

	byCase map[string]Sequence
}

// Get returns the sequence for a case, or nil if the case is unknown.
func (c *CaseSequences) Get(caseID string) Sequence {
	return c.byCase[caseID]
}

// Len returns the number of cases.
func (c *CaseSequences) Len() int {
	return len(c.Order)
}

// Map returns a copy of the case → sequence mapping.
func (c *CaseSequences) Map() map[string]Sequence {
	m := make(map[string]Sequence, len(c.byCase))
	for k, v := range c.byCase {
		m[k] = v
	}
	return m
}

// ExtractSequences groups events by case and orders each case by timestamp.
// Ties keep input order.
func ExtractSequences(log *model.EventLog) *CaseSequences {
	cases := groupCases(log)

	out := &CaseSequences{
		Order:  cases.order,
		byCase: make(map[string]Sequence, len(cases.order)),
	}
	for _, id := range cases.order {
		events := cases.events[id]
		seq := make(Sequence, len(events))
		for i, ev := range events {
			seq[i] = ev.Activity
		}
		out.byCase[id] = seq
	}
	return out
}

// caseGroups is the explicit group-by-case view shared by the passes.
type caseGroups struct {
	order  []string
	events map[string][]model.Event
}

// groupCases partitions events by case id in first-appearance order and
// stable-sorts each case by timestamp. The log itself is not touched.
func groupCases(log *model.EventLog) caseGroups {
	g := caseGroups{events: make(map[string][]model.Event)}
	if log == nil {
		return g
	}

	for _, ev := range log.Events {
		if _, seen := g.events[ev.CaseID]; !seen {
			g.order = append(g.order, ev.CaseID)
		}
		g.events[ev.CaseID] = append(g.events[ev.CaseID], ev)
	}

	for _, id := range g.order {
		events := g.events[id]
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Timestamp.Before(events[j].Timestamp)
		})
	}
	return g
}
