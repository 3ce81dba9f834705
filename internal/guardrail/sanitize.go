package guardrail

import (
	_ "embed"
	"regexp"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

// ruleSet is the versioned list of recommendation-language patterns.
type ruleSet struct {
	Version  int    `yaml:"version"`
	Patterns []rule `yaml:"patterns"`
}

type rule struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`

	re *regexp.Regexp
}

var (
	rulesOnce sync.Once
	rules     ruleSet
	rulesErr  error
)

func loadRules() (ruleSet, error) {
	rulesOnce.Do(func() {
		if rulesErr = yaml.Unmarshal(rulesYAML, &rules); rulesErr != nil {
			rulesErr = eris.Wrap(rulesErr, "guardrail: parse rules.yaml")
			return
		}
		for i := range rules.Patterns {
			re, err := regexp.Compile(rules.Patterns[i].Regex)
			if err != nil {
				rulesErr = eris.Wrapf(err, "guardrail: compile rule %s", rules.Patterns[i].Name)
				return
			}
			rules.Patterns[i].re = re
		}
	})
	return rules, rulesErr
}

// RulesVersion returns the version of the embedded rule set, for logging.
func RulesVersion() int {
	rs, err := loadRules()
	if err != nil {
		return 0
	}
	return rs.Version
}

// SanitizeNotes drops the entire notes field when any recommendation
// pattern matches. Partial redaction risks leaving a mangled but still
// advisory sentence, so the whole note goes. Clean notes are returned
// byte-for-byte. If the rule set itself failed to load, notes are dropped
// unconditionally: fail closed.
func SanitizeNotes(notes string) string {
	if notes == "" {
		return ""
	}
	rs, err := loadRules()
	if err != nil {
		return ""
	}
	for _, r := range rs.Patterns {
		if r.re.MatchString(notes) {
			return ""
		}
	}
	return notes
}

// MatchedRule reports which rule, if any, a notes string trips. Used for
// logging the specific pattern without logging the note itself.
func MatchedRule(notes string) string {
	rs, err := loadRules()
	if err != nil || notes == "" {
		return ""
	}
	for _, r := range rs.Patterns {
		if r.re.MatchString(notes) {
			return r.Name
		}
	}
	return ""
}
