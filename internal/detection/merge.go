package detection

import (
	"github.com/raysh454/tagscope/internal/detector"
	"github.com/raysh454/tagscope/internal/model"
)

// Deduplicate groups instances by platform and collapses every multi-member
// group with Merge. The output never contains two instances with the same
// platform value.
func Deduplicate(instances []model.TagInstance) []model.TagInstance {
	groups := make(map[string][]model.TagInstance)
	var order []string
	for _, inst := range instances {
		if _, seen := groups[inst.Platform]; !seen {
			order = append(order, inst.Platform)
		}
		groups[inst.Platform] = append(groups[inst.Platform], inst)
	}

	out := make([]model.TagInstance, 0, len(order))
	for _, platform := range order {
		out = append(out, Merge(groups[platform]))
	}
	return out
}

// Merge collapses same-platform instances into one. Field unions everywhere;
// confidence is recomputed over the combined evidence rather than averaged,
// so corroborating detectors raise it. A single-element group is returned
// unchanged.
func Merge(group []model.TagInstance) model.TagInstance {
	if len(group) == 1 {
		return group[0]
	}

	merged := group[0]
	merged.DetectionMethods = nil
	merged.Evidence = nil
	merged.ScriptURLs = nil
	merged.Endpoints = nil
	merged.RequestIDs = nil
	merged.DataLayerEventIDs = nil
	merged.Errors = nil
	merged.IsActive = false
	merged.HasErrors = false
	merged.Configuration = model.TagConfiguration{}

	methods := make(map[model.DetectionMethod]struct{})
	seenStr := make(map[string]map[string]struct{})
	appendUnique := func(kind string, dst *[]string, v string) {
		if v == "" {
			return
		}
		set, ok := seenStr[kind]
		if !ok {
			set = make(map[string]struct{})
			seenStr[kind] = set
		}
		if _, dup := set[v]; dup {
			return
		}
		set[v] = struct{}{}
		*dst = append(*dst, v)
	}

	var ids []string
	idSeen := make(map[string]struct{})
	addIdentifier := func(id string) {
		if id == "" {
			return
		}
		if _, dup := idSeen[id]; dup {
			return
		}
		idSeen[id] = struct{}{}
		ids = append(ids, id)
	}

	props := make(map[string]any)
	first, last := int64(0), int64(0)

	for _, inst := range group {
		for _, m := range inst.DetectionMethods {
			if _, dup := methods[m]; !dup {
				methods[m] = struct{}{}
				merged.DetectionMethods = append(merged.DetectionMethods, m)
			}
		}
		merged.Evidence = append(merged.Evidence, inst.Evidence...)
		for _, u := range inst.ScriptURLs {
			appendUnique("script", &merged.ScriptURLs, u)
		}
		for _, u := range inst.Endpoints {
			appendUnique("endpoint", &merged.Endpoints, u)
		}
		for _, id := range inst.RequestIDs {
			appendUnique("request", &merged.RequestIDs, id)
		}
		for _, id := range inst.DataLayerEventIDs {
			appendUnique("event", &merged.DataLayerEventIDs, id)
		}
		for _, msg := range inst.Errors {
			appendUnique("error", &merged.Errors, msg)
		}

		addIdentifier(inst.Configuration.PrimaryID)
		for k, v := range inst.Configuration.Properties {
			if _, exists := props[k]; !exists {
				props[k] = v
			}
		}

		if inst.FirstSeenAt != 0 && (first == 0 || inst.FirstSeenAt < first) {
			first = inst.FirstSeenAt
		}
		if inst.LastSeenAt > last {
			last = inst.LastSeenAt
		}
		merged.IsActive = merged.IsActive || inst.IsActive
		merged.HasErrors = merged.HasErrors || inst.HasErrors
		merged.LoadMethod = detector.MoreSpecificLoadMethod(merged.LoadMethod, inst.LoadMethod)
	}
	// Additional ids carry lower precedence than any primary id, so collect
	// them in a second pass.
	for _, inst := range group {
		for _, id := range inst.Configuration.AdditionalIDs {
			addIdentifier(id)
		}
	}

	if len(ids) > 0 {
		merged.Configuration.PrimaryID = ids[0]
		if len(ids) > 1 {
			merged.Configuration.AdditionalIDs = ids[1:]
		}
	}
	if len(props) > 0 {
		merged.Configuration.Properties = props
	}

	merged.FirstSeenAt = first
	merged.LastSeenAt = last
	merged.Confidence = detector.CombineConfidence(merged.Evidence)
	return merged
}
