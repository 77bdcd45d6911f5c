package detector

import (
	"github.com/raysh454/tagscope/internal/evidence"
	"github.com/raysh454/tagscope/internal/model"
)

// instanceBuilder accumulates evidence and identifiers for one tag instance
// while a detector scans the index, then finalizes confidence, load method
// and timestamps.
type instanceBuilder struct {
	inst    model.TagInstance
	methods map[model.DetectionMethod]struct{}
	scripts map[string]struct{}
	ends    map[string]struct{}
	first   int64
	last    int64
}

func newInstance(platform, name string, category model.TagCategory) *instanceBuilder {
	return &instanceBuilder{
		inst: model.TagInstance{
			ID:           model.NewID(),
			Platform:     platform,
			PlatformName: name,
			Category:     category,
			LoadMethod:   model.LoadUnknown,
			IsActive:     true,
			Configuration: model.TagConfiguration{
				Properties: make(map[string]any),
			},
		},
		methods: make(map[model.DetectionMethod]struct{}),
		scripts: make(map[string]struct{}),
		ends:    make(map[string]struct{}),
	}
}

func (b *instanceBuilder) addEvidence(ev model.DetectionEvidence) {
	b.inst.Evidence = append(b.inst.Evidence, ev)
	if _, seen := b.methods[ev.Method]; !seen {
		b.methods[ev.Method] = struct{}{}
		b.inst.DetectionMethods = append(b.inst.DetectionMethods, ev.Method)
	}
}

// touch widens the first/last-seen window. Zero timestamps are ignored.
func (b *instanceBuilder) touch(ts int64) {
	if ts == 0 {
		return
	}
	if b.first == 0 || ts < b.first {
		b.first = ts
	}
	if ts > b.last {
		b.last = ts
	}
}

func (b *instanceBuilder) addScriptURL(u string) {
	if u == "" {
		return
	}
	if _, seen := b.scripts[u]; !seen {
		b.scripts[u] = struct{}{}
		b.inst.ScriptURLs = append(b.inst.ScriptURLs, u)
	}
}

func (b *instanceBuilder) addEndpoint(u string) {
	if u == "" {
		return
	}
	if _, seen := b.ends[u]; !seen {
		b.ends[u] = struct{}{}
		b.inst.Endpoints = append(b.inst.Endpoints, u)
	}
}

func (b *instanceBuilder) addRequestID(id string) {
	if id != "" {
		b.inst.RequestIDs = append(b.inst.RequestIDs, id)
	}
}

func (b *instanceBuilder) addEventID(id string) {
	if id != "" {
		b.inst.DataLayerEventIDs = append(b.inst.DataLayerEventIDs, id)
	}
}

// addID records a platform identifier: the first becomes the primary id,
// later distinct ones become additional ids.
func (b *instanceBuilder) addID(id string) {
	if id == "" {
		return
	}
	cfg := &b.inst.Configuration
	if cfg.PrimaryID == "" {
		cfg.PrimaryID = id
		return
	}
	if cfg.PrimaryID == id {
		return
	}
	for _, existing := range cfg.AdditionalIDs {
		if existing == id {
			return
		}
	}
	cfg.AdditionalIDs = append(cfg.AdditionalIDs, id)
}

func (b *instanceBuilder) setProperty(key string, value any) {
	b.inst.Configuration.Properties[key] = value
}

func (b *instanceBuilder) addError(msg string) {
	b.inst.HasErrors = true
	b.inst.Errors = append(b.inst.Errors, msg)
}

func (b *instanceBuilder) hasEvidence() bool { return len(b.inst.Evidence) > 0 }

// build finalizes the instance: confidence over the collected evidence, load
// method from the implicated scripts, and timestamps falling back to the
// observation start when no signal carried its own.
func (b *instanceBuilder) build(idx *evidence.Index) model.TagInstance {
	b.inst.Confidence = CombineConfidence(b.inst.Evidence)
	b.inst.LoadMethod = DetermineLoadMethod(idx, b.inst.ScriptURLs)

	first, last := b.first, b.last
	if first == 0 {
		if obs := idx.Observation(); obs != nil {
			first = obs.StartedAt
		}
	}
	if last < first {
		last = first
	}
	b.inst.FirstSeenAt = first
	b.inst.LastSeenAt = last

	if len(b.inst.Configuration.Properties) == 0 {
		b.inst.Configuration.Properties = nil
	}
	return b.inst
}
