package detection

import "github.com/raysh454/tagscope/internal/model"

// High/low confidence thresholds for the summary buckets.
const (
	highConfidenceThreshold = 0.75
	lowConfidenceThreshold  = 0.4
)

func buildSummary(tags []model.TagInstance) model.DetectionSummary {
	summary := model.DetectionSummary{
		TotalTags:    len(tags),
		ByCategory:   make(map[string]int),
		ByPlatform:   make(map[string]int),
		ByLoadMethod: make(map[string]int),
	}

	for _, tag := range tags {
		summary.ByCategory[string(tag.Category)]++
		summary.ByPlatform[tag.Platform]++
		summary.ByLoadMethod[string(tag.LoadMethod)]++

		if tag.Confidence >= highConfidenceThreshold {
			summary.HighConfidenceCount++
		}
		if tag.Confidence < lowConfidenceThreshold {
			summary.LowConfidenceCount++
		}
		if tag.Platform == "unknown" {
			summary.UnknownTagCount++
		}
		if tag.Category == model.CategoryTagManager {
			summary.HasTMS = true
			summary.DetectedTMS = append(summary.DetectedTMS, tag.Platform)
		}
	}
	return summary
}
