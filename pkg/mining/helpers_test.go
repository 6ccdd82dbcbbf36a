package mining

import (
	"fmt"
	"time"

	"github.com/logflow/pmdash/internal/model"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// ev builds an event offset from t0 by the given number of minutes.
func ev(caseID, activity string, minutes int) model.Event {
	return model.Event{
		CaseID:    caseID,
		Activity:  activity,
		Timestamp: t0.Add(time.Duration(minutes) * time.Minute),
	}
}

func logOf(events ...model.Event) *model.EventLog {
	for i := range events {
		events[i].Row = i + 1
	}
	return &model.EventLog{
		Columns: []string{"case_id", "activity", "timestamp"},
		Events:  events,
	}
}

// caseWith appends one case following seq, ten minutes per step.
func caseWith(events []model.Event, caseID string, seq ...string) []model.Event {
	for i, a := range seq {
		events = append(events, ev(caseID, a, i*10))
	}
	return events
}

// variantLog builds 3 cases of the reference path, 2 that skip Review and
// 1 that skips Approve.
func variantLog() *model.EventLog {
	var events []model.Event
	for i := 1; i <= 3; i++ {
		events = caseWith(events, fmt.Sprintf("full_%d", i), "Start", "Review", "Approve", "End")
	}
	for i := 1; i <= 2; i++ {
		events = caseWith(events, fmt.Sprintf("fast_%d", i), "Start", "Approve", "End")
	}
	events = caseWith(events, "noapprove", "Start", "Review", "End")
	return logOf(events...)
}
