// Package rules loads declarative validation rules from YAML or JSON
// documents. Loading is best-effort: a malformed document is reported as a
// load error and excluded, never aborting the rest of the set.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raysh454/tagscope/internal/logging"
	"github.com/raysh454/tagscope/internal/model"
)

// LoadError pairs a document source with the reason it was rejected.
type LoadError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// LoadResult carries the accepted rules plus everything that was rejected.
type LoadResult struct {
	Rules  []model.Rule `json:"rules"`
	Errors []LoadError  `json:"errors,omitempty"`
}

// ruleDocument is the on-disk shape: either a bare list of rules or a
// mapping with a rules key.
type ruleDocument struct {
	Rules []model.Rule `json:"rules" yaml:"rules"`
}

// Loader reads and validates rule documents.
type Loader struct {
	logger logging.Logger
}

// NewLoader creates a rule loader.
func NewLoader(logger logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NewStdoutLogger("RuleLoader")
	}
	return &Loader{logger: logger.With(logging.Field{Key: "component", Value: "RuleLoader"})}
}

// LoadFile loads one YAML or JSON rule document. Schema-invalid rules inside
// the document are reported individually; the valid remainder still loads.
func (l *Loader) LoadFile(path string) *LoadResult {
	result := &LoadResult{}
	raw, err := os.ReadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, LoadError{Source: path, Error: fmt.Sprintf("reading file: %v", err)})
		return result
	}
	l.loadDocument(path, raw, result)
	return result
}

// LoadDirectory loads every .yaml, .yml and .json file directly inside dir.
// A missing or unreadable directory is a single load error.
func (l *Loader) LoadDirectory(dir string) *LoadResult {
	result := &LoadResult{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		result.Errors = append(result.Errors, LoadError{Source: dir, Error: fmt.Sprintf("reading directory: %v", err)})
		return result
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		sub := l.LoadFile(path)
		result.Rules = append(result.Rules, sub.Rules...)
		result.Errors = append(result.Errors, sub.Errors...)
	}
	l.logger.Info("loaded rule directory",
		logging.Field{Key: "dir", Value: dir},
		logging.Field{Key: "rules", Value: len(result.Rules)},
		logging.Field{Key: "errors", Value: len(result.Errors)})
	return result
}

// LoadInline validates in-process rule definitions the same way file rules
// are validated.
func (l *Loader) LoadInline(rules []model.Rule) *LoadResult {
	result := &LoadResult{}
	for i := range rules {
		rule := rules[i]
		if err := ValidateRule(&rule); err != nil {
			result.Errors = append(result.Errors, LoadError{
				Source: fmt.Sprintf("inline[%d]", i),
				Error:  err.Error(),
			})
			continue
		}
		result.Rules = append(result.Rules, rule)
	}
	return result
}

// loadDocument parses one document body. YAML is a superset of JSON, so a
// single decoder covers both formats.
func (l *Loader) loadDocument(source string, raw []byte, result *LoadResult) {
	var doc ruleDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil || len(doc.Rules) == 0 {
		// Fall back to a bare rule list.
		var list []model.Rule
		if listErr := yaml.Unmarshal(raw, &list); listErr != nil || len(list) == 0 {
			if err == nil {
				err = fmt.Errorf("document contains no rules")
			}
			result.Errors = append(result.Errors, LoadError{Source: source, Error: fmt.Sprintf("parsing document: %v", err)})
			return
		}
		doc.Rules = list
	}

	for i := range doc.Rules {
		rule := doc.Rules[i]
		if err := ValidateRule(&rule); err != nil {
			result.Errors = append(result.Errors, LoadError{
				Source: fmt.Sprintf("%s#%d", source, i),
				Error:  err.Error(),
			})
			continue
		}
		result.Rules = append(result.Rules, rule)
	}
}

// FilterEnvironment keeps rules that apply to the environment: rules with no
// environment list apply everywhere.
func FilterEnvironment(in []model.Rule, environment string) []model.Rule {
	if environment == "" {
		return in
	}
	var out []model.Rule
	for _, rule := range in {
		if len(rule.Environments) == 0 {
			out = append(out, rule)
			continue
		}
		for _, env := range rule.Environments {
			if env == environment {
				out = append(out, rule)
				break
			}
		}
	}
	return out
}

// FilterPlatform keeps rules scoped to the platform plus platform-agnostic
// rules.
func FilterPlatform(in []model.Rule, platform string) []model.Rule {
	if platform == "" {
		return in
	}
	var out []model.Rule
	for _, rule := range in {
		if rule.Platform == "" || rule.Platform == platform {
			out = append(out, rule)
		}
	}
	return out
}
