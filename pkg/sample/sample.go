// Package sample generates the demonstration event log served before any
// upload.
package sample

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/logflow/pmdash/internal/model"
)

// TimestampLayout is the format used for generated timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

const (
	numCases   = 5
	minDaysAgo = 1
	maxDaysAgo = 30
	minGapMins = 5
	maxGapMins = 60
)

// Activities is the path every sample case follows.
var Activities = []string{"Start", "Review", "Approve", "End"}

// Generate builds Case_1..Case_5, each following Activities from a start
// 1-30 days before now with 5-60 minute gaps between steps.
func Generate(rng *rand.Rand, now time.Time) *model.RecordSet {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	rs := &model.RecordSet{
		Columns: append([]string(nil), model.RequiredColumns...),
		Records: make([]model.RawRecord, 0, numCases*len(Activities)),
	}

	for c := 1; c <= numCases; c++ {
		caseID := fmt.Sprintf("Case_%d", c)
		at := now.AddDate(0, 0, -between(rng, minDaysAgo, maxDaysAgo))
		for _, activity := range Activities {
			rs.Records = append(rs.Records, model.RawRecord{
				Row:       len(rs.Records) + 1,
				CaseID:    caseID,
				Activity:  activity,
				Timestamp: at.Format(TimestampLayout),
			})
			at = at.Add(time.Duration(between(rng, minGapMins, maxGapMins)) * time.Minute)
		}
	}
	return rs
}

// between returns a uniform integer in [lo, hi].
func between(rng *rand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}

// WriteCSV writes rs with a header row in column order case_id, activity,
// timestamp.
func WriteCSV(w io.Writer, rs *model.RecordSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.RequiredColumns); err != nil {
		return err
	}
	for _, r := range rs.Records {
		if err := cw.Write([]string{r.CaseID, r.Activity, r.Timestamp}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
