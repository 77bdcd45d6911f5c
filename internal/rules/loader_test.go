package rules_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raysh454/tagscope/internal/model"
	"github.com/raysh454/tagscope/internal/rules"
	"github.com/raysh454/tagscope/internal/testutil"
)

const yamlDocument = `
rules:
  - id: ga4-present
    name: GA4 tag fires
    type: presence
    severity: error
    target:
      type: tag
      platform: ga4
  - id: collect-payload
    name: collect hits carry a measurement id
    type: payload
    severity: warning
    target:
      urlPattern: /g/collect
    source: query
    fields:
      - name: tid
        required: true
`

const bareListDocument = `
- id: no-meta
  name: Meta pixel absent
  type: presence
  severity: info
  shouldExist: false
  target:
    type: tag
    platform: meta-pixel
`

const jsonDocument = `{
  "rules": [
    {
      "id": "consent-first",
      "name": "consent precedes GA4",
      "type": "consent",
      "severity": "error",
      "platform": "ga4",
      "requireConsentBefore": true,
      "consentSignal": {"source": "cookie", "name": "cookie_consent"}
    }
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "rules.yaml", yamlDocument)
	result := rules.NewLoader(&testutil.DummyLogger{}).LoadFile(path)
	if len(result.Errors) != 0 {
		t.Fatalf("errors = %+v", result.Errors)
	}
	if len(result.Rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(result.Rules))
	}
	if result.Rules[0].ID != "ga4-present" || result.Rules[0].Type != model.RulePresence {
		t.Errorf("first rule = %+v", result.Rules[0])
	}
	if result.Rules[1].Fields[0].Name != "tid" || !result.Rules[1].Fields[0].Required {
		t.Errorf("payload fields = %+v", result.Rules[1].Fields)
	}
}

func TestLoadFileBareListFallback(t *testing.T) {
	path := writeFile(t, t.TempDir(), "rules.yml", bareListDocument)
	result := rules.NewLoader(&testutil.DummyLogger{}).LoadFile(path)
	if len(result.Errors) != 0 {
		t.Fatalf("errors = %+v", result.Errors)
	}
	if len(result.Rules) != 1 || result.Rules[0].ID != "no-meta" {
		t.Fatalf("rules = %+v", result.Rules)
	}
	if result.Rules[0].ShouldExist == nil || *result.Rules[0].ShouldExist {
		t.Errorf("shouldExist not decoded: %+v", result.Rules[0].ShouldExist)
	}
}

func TestLoadFileJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "rules.json", jsonDocument)
	result := rules.NewLoader(&testutil.DummyLogger{}).LoadFile(path)
	if len(result.Errors) != 0 {
		t.Fatalf("errors = %+v", result.Errors)
	}
	if len(result.Rules) != 1 || result.Rules[0].Type != model.RuleConsent {
		t.Fatalf("rules = %+v", result.Rules)
	}
	if result.Rules[0].ConsentSignal == nil || result.Rules[0].ConsentSignal.Name != "cookie_consent" {
		t.Errorf("consentSignal = %+v", result.Rules[0].ConsentSignal)
	}
}

func TestLoadFileInvalidRuleReportedIndividually(t *testing.T) {
	doc := `
rules:
  - id: good
    name: GA4 tag fires
    type: presence
    severity: error
    target:
      type: tag
      platform: ga4
  - id: bad
    name: broken
    type: presence
    severity: error
`
	path := writeFile(t, t.TempDir(), "rules.yaml", doc)
	result := rules.NewLoader(&testutil.DummyLogger{}).LoadFile(path)
	if len(result.Rules) != 1 || result.Rules[0].ID != "good" {
		t.Fatalf("rules = %+v", result.Rules)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %+v", result.Errors)
	}
	if !strings.HasSuffix(result.Errors[0].Source, "#1") {
		t.Errorf("error source = %q, want document index suffix", result.Errors[0].Source)
	}
}

func TestLoadFileMissing(t *testing.T) {
	result := rules.NewLoader(&testutil.DummyLogger{}).LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if len(result.Rules) != 0 || len(result.Errors) != 1 {
		t.Fatalf("result = %+v", result)
	}
}

func TestLoadFileGarbage(t *testing.T) {
	path := writeFile(t, t.TempDir(), "rules.yaml", "rules: [unclosed")
	result := rules.NewLoader(&testutil.DummyLogger{}).LoadFile(path)
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %+v", result.Errors)
	}
}

func TestLoadDirectoryAggregates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "10-base.yaml", yamlDocument)
	writeFile(t, dir, "20-extra.json", jsonDocument)
	writeFile(t, dir, "notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	result := rules.NewLoader(&testutil.DummyLogger{}).LoadDirectory(dir)
	if len(result.Errors) != 0 {
		t.Fatalf("errors = %+v", result.Errors)
	}
	if len(result.Rules) != 3 {
		t.Fatalf("got %d rules, want 3", len(result.Rules))
	}
	// Lexical file order keeps loading deterministic.
	if result.Rules[0].ID != "ga4-present" || result.Rules[2].ID != "consent-first" {
		t.Errorf("rule order: %q ... %q", result.Rules[0].ID, result.Rules[2].ID)
	}
}

func TestLoadDirectoryMissing(t *testing.T) {
	result := rules.NewLoader(&testutil.DummyLogger{}).LoadDirectory(filepath.Join(t.TempDir(), "absent"))
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %+v", result.Errors)
	}
}

func TestLoadInline(t *testing.T) {
	in := []model.Rule{
		{
			ID: "ok", Name: "GA4 tag fires", Type: model.RulePresence, Severity: model.SeverityError,
			Target: &model.RuleTarget{Type: "tag", Platform: "ga4"},
		},
		{ID: "broken", Name: "no severity", Type: model.RulePresence},
	}
	result := rules.NewLoader(&testutil.DummyLogger{}).LoadInline(in)
	if len(result.Rules) != 1 || result.Rules[0].ID != "ok" {
		t.Fatalf("rules = %+v", result.Rules)
	}
	if len(result.Errors) != 1 || result.Errors[0].Source != "inline[1]" {
		t.Fatalf("errors = %+v", result.Errors)
	}
}

func TestFilterEnvironment(t *testing.T) {
	in := []model.Rule{
		{ID: "everywhere"},
		{ID: "prod-only", Environments: []string{"prod"}},
		{ID: "stage-only", Environments: []string{"stage"}},
	}

	if got := rules.FilterEnvironment(in, ""); len(got) != 3 {
		t.Errorf("empty environment: got %d rules, want all 3", len(got))
	}
	got := rules.FilterEnvironment(in, "prod")
	if len(got) != 2 || got[0].ID != "everywhere" || got[1].ID != "prod-only" {
		t.Errorf("prod filter = %+v", got)
	}
}

func TestFilterPlatform(t *testing.T) {
	in := []model.Rule{
		{ID: "agnostic"},
		{ID: "ga4-rule", Platform: "ga4"},
		{ID: "meta-rule", Platform: "meta-pixel"},
	}

	if got := rules.FilterPlatform(in, ""); len(got) != 3 {
		t.Errorf("empty platform: got %d rules, want all 3", len(got))
	}
	got := rules.FilterPlatform(in, "ga4")
	if len(got) != 2 || got[1].ID != "ga4-rule" {
		t.Errorf("ga4 filter = %+v", got)
	}
}
