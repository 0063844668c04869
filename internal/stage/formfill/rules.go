// Package formfill maps extracted entities onto the fields of a PA form and
// renders the filled form.
package formfill

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/spf13/viper"

	"claimease/internal/domain"
)

// Rule assigns candidate entity keys to every field whose normalized name
// contains one of Patterns. A rule without keys recognizes the field but has
// no source for it.
type Rule struct {
	Patterns []string           `mapstructure:"patterns"`
	Keys     []domain.EntityKey `mapstructure:"keys"`
}

// RuleTable is an ordered list of rules. The first matching rule wins.
type RuleTable []Rule

// Match returns the first rule with a pattern contained in name. name must
// already be normalized with NormalizeFieldName.
func (t RuleTable) Match(name string) (Rule, bool) {
	for _, r := range t {
		for _, p := range r.Patterns {
			if p != "" && strings.Contains(name, p) {
				return r, true
			}
		}
	}
	return Rule{}, false
}

// DefaultRules is the built-in rule table.
func DefaultRules() RuleTable {
	return RuleTable{
		{Patterns: []string{"signature", "address", "street", "city", "state", "zip", "email", "gender", "sex", "weight", "height", "allerg"}},
		{Patterns: []string{"dob", "birth"}, Keys: []domain.EntityKey{domain.KeyPatientDOB}},
		{Patterns: []string{"member id", "member number", "member no", "subscriber id", "subscriber number", "policy", "insurance id", "id number"}, Keys: []domain.EntityKey{domain.KeyMemberID}},
		{Patterns: []string{"group"}, Keys: []domain.EntityKey{domain.KeyGroupNumber}},
		{Patterns: []string{"npi"}, Keys: []domain.EntityKey{domain.KeyNPI}},
		{Patterns: []string{"fax"}, Keys: []domain.EntityKey{domain.KeyFax}},
		{Patterns: []string{"phone", "tel"}, Keys: []domain.EntityKey{domain.KeyPhone}},
		{Patterns: []string{"icd", "diagnosis code", "dx code", "diag code"}, Keys: []domain.EntityKey{domain.KeyICD10, domain.KeyDiagnosis}},
		{Patterns: []string{"ndc"}, Keys: []domain.EntityKey{domain.KeyNDC}},
		{Patterns: []string{"generic", "active"}, Keys: []domain.EntityKey{domain.KeyGenericName, domain.KeyMedication}},
		{Patterns: []string{"dose", "dosage", "strength", "mg", "amount"}, Keys: []domain.EntityKey{domain.KeyDosage}},
		{Patterns: []string{"route", "administration", "delivery"}, Keys: []domain.EntityKey{domain.KeyRoute}},
		{Patterns: []string{"frequency", "schedule", "regimen", "dosing", "sig"}, Keys: []domain.EntityKey{domain.KeyFrequency}},
		{Patterns: []string{"prescriber", "provider", "physician", "doctor", "prescribing"}, Keys: []domain.EntityKey{domain.KeyPrescriber}},
		{Patterns: []string{"medication", "drug", "product", "therapy", "treatment"}, Keys: []domain.EntityKey{domain.KeyMedication, domain.KeyGenericName}},
		{Patterns: []string{"insurance", "payer", "plan", "coverage", "carrier"}, Keys: []domain.EntityKey{domain.KeyPayer}},
		{Patterns: []string{"diagnosis", "condition", "indication", "clinical"}, Keys: []domain.EntityKey{domain.KeyDiagnosis, domain.KeyICD10}},
		{Patterns: []string{"patient", "member", "beneficiary", "name"}, Keys: []domain.EntityKey{domain.KeyPatientName}},
		{Patterns: []string{"date"}, Keys: []domain.EntityKey{domain.KeyServiceDate}},
	}
}

// LoadRules reads a rule table from a YAML (or JSON/TOML) file with a
// top-level "rules" list. An empty path returns DefaultRules.
func LoadRules(path string) (RuleTable, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading rule table %s: %w", path, err)
	}
	var table RuleTable
	if err := v.UnmarshalKey("rules", &table); err != nil {
		return nil, fmt.Errorf("decoding rule table %s: %w", path, err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("rule table %s has no rules", path)
	}
	for i := range table {
		for j, p := range table[i].Patterns {
			table[i].Patterns[j] = NormalizeFieldName(p)
		}
		for _, k := range table[i].Keys {
			if domain.GroupOf(k) == "" {
				return nil, fmt.Errorf("rule table %s: rule %d: unknown entity key %q", path, i+1, k)
			}
		}
	}
	return table, nil
}

var separatorRe = regexp.MustCompile(`[\s_.\-]+`)

// NormalizeFieldName lowercases a field name, splits camelCase words and
// turns separators into single spaces.
func NormalizeFieldName(name string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(name))
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(separatorRe.ReplaceAllString(strings.ToLower(b.String()), " "))
}
