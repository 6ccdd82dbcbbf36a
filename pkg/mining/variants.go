package mining

import (
	"sort"

	"github.com/logflow/pmdash/internal/model"
)

// DefaultTopVariants is the number of variants reported when no limit is given.
const DefaultTopVariants = 10

// Variant is a distinct activity sequence and the cases that follow it.
type Variant struct {
	Rank       int      `json:"rank"`
	Activities Sequence `json:"activities"`
	Count      int      `json:"count"`
	Percent    float64  `json:"percent"`
	Cases      []string `json:"cases,omitempty"`
}

// MineVariants ranks distinct case sequences by the number of cases sharing
// them. Ties keep the order in which each variant was first met while
// scanning cases. At most limit variants are returned; limit <= 0 means
// DefaultTopVariants.
func MineVariants(log *model.EventLog, limit int) []Variant {
	if limit <= 0 {
		limit = DefaultTopVariants
	}

	seqs := ExtractSequences(log)
	if seqs.Len() == 0 {
		return []Variant{}
	}

	index := make(map[string]int)
	var variants []Variant
	for _, caseID := range seqs.Order {
		seq := seqs.Get(caseID)
		key := seq.Key()

		i, ok := index[key]
		if !ok {
			i = len(variants)
			index[key] = i
			variants = append(variants, Variant{Activities: seq})
		}
		variants[i].Count++
		variants[i].Cases = append(variants[i].Cases, caseID)
	}

	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Count > variants[j].Count
	})

	if len(variants) > limit {
		variants = variants[:limit]
	}

	total := float64(seqs.Len())
	for i := range variants {
		variants[i].Rank = i + 1
		variants[i].Percent = float64(variants[i].Count) * 100 / total
	}
	return variants
}
