package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/raysh454/tagscope/internal/model"
)

// TagChange describes one platform whose detection changed between two runs.
type TagChange struct {
	Platform      string  `json:"platform"`
	OldPrimaryID  string  `json:"oldPrimaryId,omitempty"`
	NewPrimaryID  string  `json:"newPrimaryId,omitempty"`
	OldConfidence float64 `json:"oldConfidence,omitempty"`
	NewConfidence float64 `json:"newConfidence,omitempty"`
	OldLoadMethod string  `json:"oldLoadMethod,omitempty"`
	NewLoadMethod string  `json:"newLoadMethod,omitempty"`
}

// Drift compares the tag inventories of two runs of the same page.
type Drift struct {
	BaseRunID    string      `json:"baseRunId"`
	AgainstRunID string      `json:"againstRunId"`
	Added        []string    `json:"added,omitempty"`
	Removed      []string    `json:"removed,omitempty"`
	Changed      []TagChange `json:"changed,omitempty"`
	ScoreDelta   int         `json:"scoreDelta"`
	// Diff is a unified-style text rendering of the inventory change,
	// convenient for humans and CI logs.
	Diff string `json:"diff,omitempty"`
}

// ComputeDrift diffs the tag inventory of base against another run. Both runs
// must carry a detection result.
func ComputeDrift(base, against *model.Run) (*Drift, error) {
	if base == nil || against == nil {
		return nil, fmt.Errorf("both runs are required")
	}
	if base.Detection == nil || against.Detection == nil {
		return nil, fmt.Errorf("both runs must carry a detection result")
	}

	baseTags := tagsByPlatform(base.Detection.Tags)
	againstTags := tagsByPlatform(against.Detection.Tags)

	drift := &Drift{
		BaseRunID:    base.ID,
		AgainstRunID: against.ID,
		ScoreDelta:   against.Score - base.Score,
	}

	for platform, tag := range baseTags {
		other, ok := againstTags[platform]
		if !ok {
			drift.Removed = append(drift.Removed, platform)
			continue
		}
		if change, changed := compareTags(tag, other); changed {
			drift.Changed = append(drift.Changed, change)
		}
	}
	for platform := range againstTags {
		if _, ok := baseTags[platform]; !ok {
			drift.Added = append(drift.Added, platform)
		}
	}
	sort.Strings(drift.Added)
	sort.Strings(drift.Removed)
	sort.Slice(drift.Changed, func(i, j int) bool {
		return drift.Changed[i].Platform < drift.Changed[j].Platform
	})

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(inventoryText(base.Detection.Tags), inventoryText(against.Detection.Tags), false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	drift.Diff = renderDiff(diffs)

	return drift, nil
}

func tagsByPlatform(tags []model.TagInstance) map[string]*model.TagInstance {
	out := make(map[string]*model.TagInstance, len(tags))
	for i := range tags {
		out[tags[i].Platform] = &tags[i]
	}
	return out
}

func compareTags(prev, curr *model.TagInstance) (TagChange, bool) {
	change := TagChange{Platform: prev.Platform}
	changed := false
	if prev.Configuration.PrimaryID != curr.Configuration.PrimaryID {
		change.OldPrimaryID = prev.Configuration.PrimaryID
		change.NewPrimaryID = curr.Configuration.PrimaryID
		changed = true
	}
	if prev.Confidence != curr.Confidence {
		change.OldConfidence = prev.Confidence
		change.NewConfidence = curr.Confidence
		changed = true
	}
	if prev.LoadMethod != curr.LoadMethod {
		change.OldLoadMethod = string(prev.LoadMethod)
		change.NewLoadMethod = string(curr.LoadMethod)
		changed = true
	}
	return change, changed
}

// inventoryText renders a tag list as stable, line-oriented text so that the
// diff is readable and independent of detection order.
func inventoryText(tags []model.TagInstance) string {
	lines := make([]string, 0, len(tags))
	for _, tag := range tags {
		lines = append(lines, fmt.Sprintf("%s id=%s confidence=%.2f load=%s",
			tag.Platform, tag.Configuration.PrimaryID, tag.Confidence, tag.LoadMethod))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}

func renderDiff(diffs []diffmatchpatch.Diff) string {
	var b strings.Builder
	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" {
			continue
		}
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.Split(text, "\n") {
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}
