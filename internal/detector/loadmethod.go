package detector

import (
	"strings"

	"github.com/raysh454/tagscope/internal/evidence"
	"github.com/raysh454/tagscope/internal/model"
)

// tmsSignatures maps a script URL fragment to the tag-management system it
// identifies, checked in order of specificity.
var tmsSignatures = []struct {
	fragment string
	method   model.LoadMethod
}{
	{"googletagmanager.com/gtm.js", model.LoadGTM},
	{"assets.adobedtm.com", model.LoadAdobeLaunch},
	{"tags.tiqcdn.com", model.LoadTealium},
	{"cdn.segment.com", model.LoadSegment},
}

// loadMethodRank orders load methods from least to most specific; the merge
// step keeps the highest-ranked method of a group.
var loadMethodRank = map[model.LoadMethod]int{
	model.LoadUnknown:     0,
	model.LoadDynamic:     1,
	model.LoadDirect:      2,
	model.LoadOtherTMS:    3,
	model.LoadSegment:     4,
	model.LoadTealium:     5,
	model.LoadAdobeLaunch: 6,
	model.LoadGTM:         7,
}

// MoreSpecificLoadMethod returns the more specific of two load methods.
func MoreSpecificLoadMethod(a, b model.LoadMethod) model.LoadMethod {
	if loadMethodRank[b] > loadMethodRank[a] {
		return b
	}
	return a
}

// DetermineLoadMethod resolves how a tag's scripts arrived on the page.
// A dynamically injected script whose page also loads a known TMS script is
// attributed to that TMS; an injected script without one is "dynamic"; a
// statically present script is "direct". With no script evidence at all the
// method is unknown.
func DetermineLoadMethod(idx *evidence.Index, scriptURLs []string) model.LoadMethod {
	if len(scriptURLs) == 0 {
		return model.LoadUnknown
	}

	found := false
	injected := false
	for _, u := range scriptURLs {
		s, ok := idx.ScriptsByURL[strings.ToLower(u)]
		if !ok {
			continue
		}
		found = true
		if s.DynamicallyInjected {
			injected = true
			break
		}
	}
	if !found {
		return model.LoadUnknown
	}
	if !injected {
		return model.LoadDirect
	}

	for _, sig := range tmsSignatures {
		if idx.AnyURLContains(sig.fragment) {
			return sig.method
		}
	}
	return model.LoadDynamic
}
