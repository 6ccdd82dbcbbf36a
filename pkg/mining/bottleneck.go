package mining

import (
	"sort"

	"github.com/logflow/pmdash/internal/model"
)

// BottleneckMetric is the mean time spent reaching an activity from the
// previous event of the same case.
type BottleneckMetric struct {
	Activity   string  `json:"activity"`
	AvgMinutes float64 `json:"avg_minutes"`
	// Samples is the number of gaps averaged.
	Samples int `json:"samples"`
}

type gapAccumulator struct {
	sum float64
	n   int
}

// ComputeBottlenecks returns the average gap in minutes per activity.
//
// A gap is attributed to the later event of each consecutive pair within a
// case. Activities that never have a predecessor are absent from the result.
func ComputeBottlenecks(log *model.EventLog) map[string]float64 {
	acc := accumulateGaps(log)
	out := make(map[string]float64, len(acc))
	for activity, a := range acc {
		out[activity] = a.sum / float64(a.n)
	}
	return out
}

// RankBottlenecks returns the same averages as ComputeBottlenecks, slowest
// first. Equal averages are ordered by activity name.
func RankBottlenecks(log *model.EventLog) []BottleneckMetric {
	acc := accumulateGaps(log)
	metrics := make([]BottleneckMetric, 0, len(acc))
	for activity, a := range acc {
		metrics = append(metrics, BottleneckMetric{
			Activity:   activity,
			AvgMinutes: a.sum / float64(a.n),
			Samples:    a.n,
		})
	}

	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].AvgMinutes != metrics[j].AvgMinutes {
			return metrics[i].AvgMinutes > metrics[j].AvgMinutes
		}
		return metrics[i].Activity < metrics[j].Activity
	})
	return metrics
}

func accumulateGaps(log *model.EventLog) map[string]*gapAccumulator {
	cases := groupCases(log)
	acc := make(map[string]*gapAccumulator)

	for _, id := range cases.order {
		events := cases.events[id]
		for i := 1; i < len(events); i++ {
			minutes := events[i].Timestamp.Sub(events[i-1].Timestamp).Seconds() / 60

			a, ok := acc[events[i].Activity]
			if !ok {
				a = &gapAccumulator{}
				acc[events[i].Activity] = a
			}
			a.sum += minutes
			a.n++
		}
	}
	return acc
}
