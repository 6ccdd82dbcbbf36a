package mining

import (
	"github.com/logflow/pmdash/internal/model"
)

// DefaultExpected is the reference sequence used when none is configured.
var DefaultExpected = Sequence{"Start", "Review", "Approve", "End"}

// ComplianceIssue is one non-compliant case and the sequence it followed.
type ComplianceIssue struct {
	CaseID   string   `json:"case_id"`
	Sequence Sequence `json:"process_sequence"`
}

// Deviation is a distinct non-compliant sequence and the cases that share it.
type Deviation struct {
	Sequence Sequence `json:"sequence"`
	Cases    []string `json:"cases"`
}

// ComplianceResult reports cases whose sequence differs from the reference.
type ComplianceResult struct {
	Expected          Sequence          `json:"expected"`
	NonCompliantCases int               `json:"non_compliant_cases"`
	Issues            []ComplianceIssue `json:"issues"`
	Deviations        []Deviation       `json:"deviations"`
}

// CheckCompliance flags every case whose full sequence is not exactly equal
// to expected. There is no partial matching: an extra, missing or reordered
// step fails the whole case.
//
// Issues hold one (case, sequence) pair per non-compliant case, in case
// order. Deviations group those cases by sequence in first-seen order.
func CheckCompliance(log *model.EventLog, expected Sequence) ComplianceResult {
	result := ComplianceResult{
		Expected:   expected,
		Issues:     []ComplianceIssue{},
		Deviations: []Deviation{},
	}

	seqs := ExtractSequences(log)
	index := make(map[string]int)
	for _, caseID := range seqs.Order {
		seq := seqs.Get(caseID)
		if seq.Equal(expected) {
			continue
		}

		result.Issues = append(result.Issues, ComplianceIssue{CaseID: caseID, Sequence: seq})

		key := seq.Key()
		i, ok := index[key]
		if !ok {
			i = len(result.Deviations)
			index[key] = i
			result.Deviations = append(result.Deviations, Deviation{Sequence: seq})
		}
		result.Deviations[i].Cases = append(result.Deviations[i].Cases, caseID)
	}

	result.NonCompliantCases = len(result.Issues)
	return result
}
