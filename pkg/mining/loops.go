package mining

import (
	"sort"

	"github.com/logflow/pmdash/internal/model"
)

// CaseLoop lists the activities that recur within one case.
type CaseLoop struct {
	CaseID     string   `json:"case_id"`
	Activities []string `json:"activities"`
}

// DetectLoops returns, for every case in which some activity occurs more than
// once, the distinct recurring activities sorted by name. Cases without
// repetition are absent.
func DetectLoops(log *model.EventLog) map[string][]string {
	loops := make(map[string][]string)
	if log == nil {
		return loops
	}

	counts := make(map[string]map[string]int)
	for _, ev := range log.Events {
		c, ok := counts[ev.CaseID]
		if !ok {
			c = make(map[string]int)
			counts[ev.CaseID] = c
		}
		c[ev.Activity]++
	}

	for caseID, c := range counts {
		var repeated []string
		for activity, n := range c {
			if n > 1 {
				repeated = append(repeated, activity)
			}
		}
		if len(repeated) > 0 {
			sort.Strings(repeated)
			loops[caseID] = repeated
		}
	}
	return loops
}

// LoopReport orders a DetectLoops result by case id.
func LoopReport(loops map[string][]string) []CaseLoop {
	report := make([]CaseLoop, 0, len(loops))
	for caseID, activities := range loops {
		report = append(report, CaseLoop{CaseID: caseID, Activities: activities})
	}
	sort.Slice(report, func(i, j int) bool {
		return report[i].CaseID < report[j].CaseID
	})
	return report
}
