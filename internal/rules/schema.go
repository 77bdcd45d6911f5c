package rules

import (
	"fmt"
	"regexp"

	"github.com/raysh454/tagscope/internal/model"
)

var validSeverities = map[model.Severity]bool{
	model.SeverityError:   true,
	model.SeverityWarning: true,
	model.SeverityInfo:    true,
}

var validPresenceTargets = map[string]bool{
	"tag":       true,
	"event":     true,
	"request":   true,
	"script":    true,
	"dataLayer": true,
}

var validPayloadSources = map[string]bool{
	"query":   true,
	"body":    true,
	"headers": true,
}

var validOrderItemTypes = map[string]bool{
	"tag":    true,
	"event":  true,
	"script": true,
}

var validConsentSources = map[string]bool{
	"dataLayer":    true,
	"cookie":       true,
	"localStorage": true,
}

// ValidateRule checks that a rule carries everything its type needs to be
// evaluated. It catches schema problems at load time so handlers can assume
// well-formed input.
func ValidateRule(rule *model.Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("rule is missing an id")
	}
	if rule.Name == "" {
		return fmt.Errorf("rule %q is missing a name", rule.ID)
	}
	if !validSeverities[rule.Severity] {
		return fmt.Errorf("rule %q has invalid severity %q", rule.ID, rule.Severity)
	}

	switch rule.Type {
	case model.RulePresence:
		return validatePresence(rule)
	case model.RulePayload:
		return validatePayload(rule)
	case model.RuleOrder:
		return validateOrder(rule)
	case model.RuleConsent:
		return validateConsent(rule)
	case model.RuleDataLayer:
		return validateDataLayer(rule)
	case "":
		return fmt.Errorf("rule %q is missing a type", rule.ID)
	default:
		return fmt.Errorf("rule %q has unknown type %q", rule.ID, rule.Type)
	}
}

func validatePresence(rule *model.Rule) error {
	if rule.Target == nil {
		return fmt.Errorf("presence rule %q requires a target", rule.ID)
	}
	if !validPresenceTargets[rule.Target.Type] {
		return fmt.Errorf("presence rule %q has invalid target type %q", rule.ID, rule.Target.Type)
	}
	if rule.Target.URLPattern != "" {
		if _, err := regexp.Compile(rule.Target.URLPattern); err != nil {
			return fmt.Errorf("presence rule %q has invalid urlPattern: %w", rule.ID, err)
		}
	}
	if rule.MinCount != nil && *rule.MinCount < 0 {
		return fmt.Errorf("presence rule %q has negative minCount", rule.ID)
	}
	if rule.MinCount != nil && rule.MaxCount != nil && *rule.MaxCount < *rule.MinCount {
		return fmt.Errorf("presence rule %q has maxCount below minCount", rule.ID)
	}
	return nil
}

func validatePayload(rule *model.Rule) error {
	if rule.Target == nil || rule.Target.URLPattern == "" {
		return fmt.Errorf("payload rule %q requires target.urlPattern", rule.ID)
	}
	if _, err := regexp.Compile(rule.Target.URLPattern); err != nil {
		return fmt.Errorf("payload rule %q has invalid urlPattern: %w", rule.ID, err)
	}
	if rule.Source != "" && !validPayloadSources[rule.Source] {
		return fmt.Errorf("payload rule %q has invalid source %q", rule.ID, rule.Source)
	}
	if len(rule.Fields) == 0 {
		return fmt.Errorf("payload rule %q declares no field checks", rule.ID)
	}
	for i, check := range rule.Fields {
		if check.Name == "" {
			return fmt.Errorf("payload rule %q field %d is missing a name", rule.ID, i)
		}
		if check.Pattern != "" {
			if _, err := regexp.Compile(check.Pattern); err != nil {
				return fmt.Errorf("payload rule %q field %q has invalid pattern: %w", rule.ID, check.Name, err)
			}
		}
	}
	return nil
}

func validateOrder(rule *model.Rule) error {
	if rule.Before == nil || rule.After == nil {
		return fmt.Errorf("order rule %q requires both before and after items", rule.ID)
	}
	for _, item := range []*model.OrderItem{rule.Before, rule.After} {
		if !validOrderItemTypes[item.Type] {
			return fmt.Errorf("order rule %q has invalid item type %q", rule.ID, item.Type)
		}
		if item.Identifier == "" {
			return fmt.Errorf("order rule %q has an item without an identifier", rule.ID)
		}
	}
	if rule.MaxTimeDifference != nil && *rule.MaxTimeDifference < 0 {
		return fmt.Errorf("order rule %q has negative maxTimeDifference", rule.ID)
	}
	return nil
}

func validateConsent(rule *model.Rule) error {
	if rule.Platform == "" {
		return fmt.Errorf("consent rule %q requires a platform", rule.ID)
	}
	// The signal descriptor is optional: without one the rule only checks
	// that consent is assumed before the tag.
	if rule.ConsentSignal == nil {
		return nil
	}
	if !validConsentSources[rule.ConsentSignal.Source] {
		return fmt.Errorf("consent rule %q has invalid signal source %q", rule.ID, rule.ConsentSignal.Source)
	}
	if rule.ConsentSignal.Name == "" {
		return fmt.Errorf("consent rule %q has a signal without a name", rule.ID)
	}
	return nil
}

func validateDataLayer(rule *model.Rule) error {
	if rule.DataLayerName == "" {
		return fmt.Errorf("dataLayer rule %q requires a dataLayerName", rule.ID)
	}
	if rule.KeyNamingPattern != "" {
		if _, err := regexp.Compile(rule.KeyNamingPattern); err != nil {
			return fmt.Errorf("dataLayer rule %q has invalid keyNamingPattern: %w", rule.ID, err)
		}
	}
	for i, assertion := range rule.Assertions {
		if assertion.Path == "" {
			return fmt.Errorf("dataLayer rule %q assertion %d is missing a path", rule.ID, i)
		}
		if assertion.Matches != "" {
			if _, err := regexp.Compile(assertion.Matches); err != nil {
				return fmt.Errorf("dataLayer rule %q assertion %q has invalid matches pattern: %w", rule.ID, assertion.Path, err)
			}
		}
	}
	return nil
}
