package evidence_test

import (
	"testing"

	"github.com/raysh454/tagscope/internal/evidence"
	"github.com/raysh454/tagscope/internal/testutil"
)

func TestBuildIndexesScriptsAndRequests(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.Script(obs, "https://www.GoogleTagManager.com/gtm.js?id=GTM-ABC123", false)
	testutil.InlineScript(obs, "console.log('inline')")
	testutil.Request(obs, "https://www.google-analytics.com/g/collect?v=2", 1200)
	testutil.Cookie(obs, "_ga", "GA1.1")
	testutil.DataLayerPush(obs, "dataLayer", 1100, map[string]any{"event": "gtm.js"})

	idx := evidence.Build(obs)

	if len(idx.ScriptURLs) != 1 || idx.ScriptURLs[0] != "https://www.googletagmanager.com/gtm.js?id=gtm-abc123" {
		t.Errorf("script urls not lowercased: %v", idx.ScriptURLs)
	}
	if len(idx.InlineScripts) != 1 {
		t.Errorf("got %d inline scripts, want 1", len(idx.InlineScripts))
	}
	if len(idx.RequestURLs) != 1 {
		t.Errorf("got %d request urls, want 1", len(idx.RequestURLs))
	}
	if !idx.HasCookie("_ga") {
		t.Error("cookie not indexed")
	}
	if len(idx.Events("dataLayer")) != 1 {
		t.Error("data layer event not indexed")
	}
	if len(idx.Events("otherLayer")) != 0 {
		t.Error("unexpected events for unknown container")
	}
}

func TestBuildNilObservation(t *testing.T) {
	idx := evidence.Build(nil)
	if idx.AnyURLContains("anything") {
		t.Error("empty index matched a substring")
	}
	if idx.Observation() != nil {
		t.Error("nil observation not preserved")
	}
}

func TestScriptsMatching(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.Script(obs, "https://www.googletagmanager.com/gtm.js?id=GTM-ABC123", false)
	testutil.Script(obs, "https://cdn.example/app.js", false)
	idx := evidence.Build(obs)

	matched := idx.ScriptsMatching("googletagmanager.com")
	if len(matched) != 1 {
		t.Fatalf("got %d scripts, want 1", len(matched))
	}
	if matched[0].Src != "https://www.googletagmanager.com/gtm.js?id=GTM-ABC123" {
		t.Errorf("matched %q, original casing lost", matched[0].Src)
	}
}

func TestRequestsMatchingGroupsDuplicateURLs(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.Request(obs, "https://api.example/collect", 100)
	testutil.Request(obs, "https://api.example/collect", 200)
	idx := evidence.Build(obs)

	matched := idx.RequestsMatching("/collect")
	if len(matched) != 2 {
		t.Fatalf("got %d requests, want both occurrences", len(matched))
	}
}

func TestAnyURLContains(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.Script(obs, "https://cdn.segment.com/analytics.js/v1/key/analytics.min.js", false)
	testutil.Request(obs, "https://api.segment.io/v1/t", 100)
	idx := evidence.Build(obs)

	if !idx.AnyURLContains("cdn.segment.com") {
		t.Error("script URL not found")
	}
	if !idx.AnyURLContains("api.segment.io") {
		t.Error("request URL not found")
	}
	if idx.AnyURLContains("tiqcdn.com") {
		t.Error("matched a URL that is not present")
	}
}

func TestCookiesWithPrefix(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.Cookie(obs, "_ga", "a")
	testutil.Cookie(obs, "_ga_AAA111", "b")
	testutil.Cookie(obs, "_fbp", "c")
	idx := evidence.Build(obs)

	got := idx.CookiesWithPrefix("_ga_")
	if len(got) != 1 || got[0] != "_ga_AAA111" {
		t.Errorf("prefix match %v, want [_ga_AAA111]", got)
	}
}
