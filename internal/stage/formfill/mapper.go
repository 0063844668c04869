package formfill

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"claimease/internal/domain"
)

// DefaultGenericPattern matches field names that carry no meaning of their own.
const DefaultGenericPattern = `^(field|text|txt|textfield|t)[\s_.\-]*\d+$`

var trailingNumberRe = regexp.MustCompile(`(\d+)$`)

// Mapper assigns entity values to form fields. Map is deterministic: the same
// fields and entities always produce the same assignments.
type Mapper struct {
	rules   RuleTable
	generic *regexp.Regexp
}

// NewMapper creates a Mapper. An empty pattern uses DefaultGenericPattern.
func NewMapper(rules RuleTable, genericPattern string) (*Mapper, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	if genericPattern == "" {
		genericPattern = DefaultGenericPattern
	}
	re, err := regexp.Compile(genericPattern)
	if err != nil {
		return nil, fmt.Errorf("compiling generic field pattern: %w", err)
	}
	return &Mapper{rules: rules, generic: re}, nil
}

// IsGeneric reports whether name is a meaningless, numbered field name.
func (m *Mapper) IsGeneric(name string) bool {
	return m.generic.MatchString(strings.ToLower(strings.TrimSpace(name)))
}

type candidate struct {
	key    domain.EntityKey
	group  domain.EntityGroup
	entity domain.Entity
	value  string
}

func (c candidate) id() string {
	return string(c.key) + "\x00" + strings.ToLower(c.value)
}

// index holds the entity values per key in appearance order.
type index map[domain.EntityKey][]candidate

func buildIndex(groups domain.EntityGroups) index {
	idx := make(index)
	groups.Each(func(g domain.EntityGroup, e domain.Entity) {
		v := strings.TrimSpace(e.Value())
		if v == "" {
			return
		}
		idx[e.Key] = append(idx[e.Key], candidate{key: e.Key, group: g, entity: e, value: v})
	})
	return idx
}

// Map returns one assignment per declared field, in declaration order.
// Semantic matches are made first; generic fields left over are then filled
// positionally with the values no semantic match used.
func (m *Mapper) Map(fields []domain.FormField, groups domain.EntityGroups) []domain.FieldAssignment {
	idx := buildIndex(groups)
	out := make([]domain.FieldAssignment, len(fields))
	consumed := make(map[string]bool)
	var positional []int

	for i, f := range fields {
		out[i] = domain.FieldAssignment{FieldName: f.Name, Required: f.Required, Status: domain.FieldStatusMissing}
		rule, matched := m.rules.Match(NormalizeFieldName(f.Name))
		generic := m.IsGeneric(f.Name)

		if matched {
			if c, ok := firstValue(idx, rule.Keys); ok {
				if detail := validate(f, c.value); detail != "" {
					out[i].Reason = domain.ReasonValidationFailed
					out[i].Detail = detail
					continue
				}
				fill(&out[i], c, domain.StrategySemantic)
				consumed[c.id()] = true
				continue
			}
		}
		switch {
		case generic:
			positional = append(positional, i)
		case matched:
			out[i].Reason = domain.ReasonNotFoundInSource
		default:
			out[i].Reason = domain.ReasonNoMatchingPattern
		}
	}

	m.assignPositional(fields, positional, remaining(idx, consumed), out)
	return out
}

// assignPositional walks generic fields by numeric index and hands each the
// next unused value. A value that does not fit its field is still used up.
func (m *Mapper) assignPositional(fields []domain.FormField, slots []int, values []candidate, out []domain.FieldAssignment) {
	sort.SliceStable(slots, func(a, b int) bool {
		return fieldNumber(fields[slots[a]].Name) < fieldNumber(fields[slots[b]].Name)
	})
	next := 0
	for _, i := range slots {
		f := fields[i]
		if !f.Type.AcceptsText() {
			out[i].Reason = domain.ReasonValidationFailed
			out[i].Detail = fmt.Sprintf("field type %s cannot hold text", f.Type)
			continue
		}
		if next >= len(values) {
			out[i].Reason = domain.ReasonNotFoundInSource
			continue
		}
		c := values[next]
		next++
		if detail := validate(f, c.value); detail != "" {
			out[i].Reason = domain.ReasonValidationFailed
			out[i].Detail = detail
			continue
		}
		fill(&out[i], c, domain.StrategyPositional)
	}
}

// remaining lists unused values in catalog order, then appearance order,
// dropping repeats of the same text under different keys.
func remaining(idx index, consumed map[string]bool) []candidate {
	var out []candidate
	seen := make(map[string]bool)
	for _, key := range domain.EntityCatalog {
		for _, c := range idx[key] {
			text := strings.ToLower(c.value)
			if consumed[c.id()] || seen[text] {
				continue
			}
			seen[text] = true
			out = append(out, c)
		}
	}
	return out
}

func firstValue(idx index, keys []domain.EntityKey) (candidate, bool) {
	for _, k := range keys {
		if list := idx[k]; len(list) > 0 {
			return list[0], true
		}
	}
	return candidate{}, false
}

func fill(a *domain.FieldAssignment, c candidate, strategy domain.MatchStrategy) {
	a.Value = c.value
	a.Status = domain.FieldStatusFilled
	a.Reason = ""
	a.Detail = ""
	a.Provenance = &domain.Provenance{
		EntityKey:  c.key,
		Group:      c.group,
		Confidence: c.entity.Confidence,
		Strategy:   strategy,
	}
}

// validate returns a failure description, or "" when value fits f.
func validate(f domain.FormField, value string) string {
	if !f.Type.AcceptsText() {
		return fmt.Sprintf("field type %s cannot hold text", f.Type)
	}
	if f.MaxLength > 0 && len([]rune(value)) > f.MaxLength {
		return fmt.Sprintf("value length %d exceeds max length %d", len([]rune(value)), f.MaxLength)
	}
	return ""
}

func fieldNumber(name string) int {
	m := trailingNumberRe.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// MissingFields extracts the missing-field report from assignments.
func MissingFields(assignments []domain.FieldAssignment) []domain.MissingField {
	out := make([]domain.MissingField, 0)
	for _, a := range assignments {
		if a.Status != domain.FieldStatusMissing {
			continue
		}
		out = append(out, domain.MissingField{
			FieldName: a.FieldName,
			Reason:    a.Reason,
			Required:  a.Required,
			Detail:    a.Detail,
		})
	}
	return out
}
