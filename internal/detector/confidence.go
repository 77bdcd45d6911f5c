package detector

import (
	"math"
	"slices"
	"sort"

	"github.com/raysh454/tagscope/internal/model"
)

// CombineConfidence folds an evidence list into one aggregate confidence
// with diminishing returns: the strongest signal contributes fully, each
// further signal contributes into the shrinking remainder. Multiple weak
// signals cannot reach certainty on their own; one strong signal dominates.
//
// The fold sorts by confidence descending and threads (combined, remaining):
// combined += c*remaining; remaining *= 1 - c*0.5. The result is capped at 1.
// An empty list yields 0.
func CombineConfidence(items []model.DetectionEvidence) float64 {
	if len(items) == 0 {
		return 0
	}
	sorted := slices.Clone(items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	combined, remaining := 0.0, 1.0
	for _, ev := range sorted {
		combined += ev.Confidence * remaining
		remaining *= 1 - ev.Confidence*0.5
	}
	return math.Min(combined, 1)
}
