package mining

import (
	"time"

	"github.com/logflow/pmdash/internal/model"
)

// DefaultSampleRows is the number of leading events included in an overview.
const DefaultSampleRows = 5

// Overview holds the headline counts of a log.
type Overview struct {
	Rows       int           `json:"rows"`
	Columns    int           `json:"columns"`
	Cases      int           `json:"cases"`
	Activities int           `json:"activities"`
	Sample     []model.Event `json:"sample"`
	TimeRange  TimeRange     `json:"time_range"`
	CaseStats  CaseStats     `json:"case_stats"`
}

// TimeRange describes the time span of the log.
type TimeRange struct {
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
}

// CaseStats describes case-level statistics.
type CaseStats struct {
	MinEventsPerCase int           `json:"min_events_per_case"`
	MaxEventsPerCase int           `json:"max_events_per_case"`
	AvgEventsPerCase float64       `json:"avg_events_per_case"`
	MinDuration      time.Duration `json:"min_duration"`
	MaxDuration      time.Duration `json:"max_duration"`
	AvgDuration      time.Duration `json:"avg_duration"`
}

// BuildOverview summarizes a log. sampleRows <= 0 means DefaultSampleRows.
func BuildOverview(log *model.EventLog, sampleRows int) Overview {
	if sampleRows <= 0 {
		sampleRows = DefaultSampleRows
	}

	ov := Overview{Sample: []model.Event{}}
	if log == nil {
		return ov
	}

	ov.Rows = len(log.Events)
	ov.Columns = len(log.Columns)
	n := min(sampleRows, len(log.Events))
	ov.Sample = append(ov.Sample, log.Events[:n]...)

	activities := make(map[string]struct{})
	for i, ev := range log.Events {
		activities[ev.Activity] = struct{}{}
		if i == 0 || ev.Timestamp.Before(ov.TimeRange.Start) {
			ov.TimeRange.Start = ev.Timestamp
		}
		if i == 0 || ev.Timestamp.After(ov.TimeRange.End) {
			ov.TimeRange.End = ev.Timestamp
		}
	}
	ov.Activities = len(activities)
	ov.TimeRange.Duration = ov.TimeRange.End.Sub(ov.TimeRange.Start)

	cases := groupCases(log)
	ov.Cases = len(cases.order)
	if ov.Cases == 0 {
		return ov
	}

	var totalDuration time.Duration
	for i, id := range cases.order {
		events := cases.events[id]
		count := len(events)
		span := events[count-1].Timestamp.Sub(events[0].Timestamp)

		if i == 0 || count < ov.CaseStats.MinEventsPerCase {
			ov.CaseStats.MinEventsPerCase = count
		}
		if count > ov.CaseStats.MaxEventsPerCase {
			ov.CaseStats.MaxEventsPerCase = count
		}
		if i == 0 || span < ov.CaseStats.MinDuration {
			ov.CaseStats.MinDuration = span
		}
		if span > ov.CaseStats.MaxDuration {
			ov.CaseStats.MaxDuration = span
		}
		totalDuration += span
	}
	ov.CaseStats.AvgEventsPerCase = float64(ov.Rows) / float64(ov.Cases)
	ov.CaseStats.AvgDuration = totalDuration / time.Duration(ov.Cases)

	return ov
}
