// Package extract implements a rule-based entity recognizer for referral
// text: labelled fields, regular expressions and keyword dictionaries.
package extract

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"claimease/internal/domain"
	"claimease/internal/port"
)

// Confidence levels assigned by match kind.
const (
	confLabelled   = 0.9
	confDictionary = 0.85
	confPattern    = 0.8
	confWeak       = 0.7
	confSubject    = 0.5
	confNPI        = 0.95
	confICDDotted  = 0.85
	confDerived    = 0.75
)

var (
	patientLabelRe = regexp.MustCompile(`(?:(?i:\bpatient(?:'s)?(?:\s+name)?|member\s+name|beneficiary(?:\s+name)?|name\s+of\s+patient))\s*[:\-]\s*([A-Z][A-Za-z'\-]+(?:[ \t]+[A-Z][A-Za-z'\-]*\.?){0,3})`)
	dobRe          = regexp.MustCompile(`(?i:\bDOB|\bD\.O\.B\.?|date\s+of\s+birth|birth\s*date)\s*[:\-]?\s*(` + datePattern + `)`)
	memberLabelRe  = regexp.MustCompile(`(?i:\b(?:member|subscriber|policy|insurance|patient)\s*(?:id\b|number\b|no\.?|#))\s*[:#\-]?\s*([A-Z0-9][A-Z0-9\-]{4,19})\b`)
	memberIDRe     = regexp.MustCompile(`\b[A-Z]{2,3}\d{6,12}\b`)
	groupRe        = regexp.MustCompile(`(?i:\bgroup\s*(?:#|no\.?|number|id)?)\s*[:#\-]\s*([A-Z0-9][A-Z0-9\-]{2,19})\b`)
	dosageRe       = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:mg|mcg|ml|units?|iu)(?:\s*/\s*(?:ml|kg|dose|day|m2))?\b`)
	frequencyRe    = regexp.MustCompile(`(?i)\b(?:(?:once|twice|three times|four times)\s+(?:a|per|every)\s+(?:day|week|month)|every\s+(?:\d+\s+|other\s+)?(?:day|days|week|weeks|month|months|hours?)|once\s+daily|daily|weekly|biweekly|monthly|nightly|q\d+h|qd|bid|tid|qid|qhs|prn|q[124]w)\b`)
	ndcLabelRe     = regexp.MustCompile(`(?i:\bNDC)\s*(?:#|code)?\s*[:\-]?\s*(\d{4,5}-\d{3,4}-\d{1,2}|\d{11}|\d{10})\b`)
	ndcRe          = regexp.MustCompile(`\b\d{4,5}-\d{3,4}-\d{1,2}\b`)
	doctorRe       = regexp.MustCompile(`\bDr\.?[ \t]+([A-Z][A-Za-z'\-]+(?:[ \t]+[A-Z]\.)?(?:[ \t]+[A-Z][A-Za-z'\-]+){0,2})`)
	credentialRe   = regexp.MustCompile(`\b([A-Z][A-Za-z'\-]+(?:[ \t]+[A-Z]\.)?(?:[ \t]+[A-Z][A-Za-z'\-]+){1,2}),?[ \t]+(?:MD\b|M\.D\.|DO\b|D\.O\.|NP\b|PA-C\b)`)
	prescriberRe   = regexp.MustCompile(`(?i:\b(?:prescriber|prescribing\s+(?:physician|provider|doctor)|physician|provider|ordering\s+provider)(?:\s+name)?)\s*[:\-]\s*(?:Dr\.?[ \t]+)?([A-Z][A-Za-z'\-]+(?:[ \t]+[A-Z]\.)?(?:[ \t]+[A-Z][A-Za-z'\-]+){0,2})`)
	npiRe          = regexp.MustCompile(`(?i:\bNPI)\s*(?:#|number|no\.?)?\s*[:\-]?\s*(\d{10})\b`)
	faxRe          = regexp.MustCompile(`(?i:\bfax)\s*(?:#|number|no\.?)?\s*[:\-]?\s*(\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4})\b`)
	phoneRe        = regexp.MustCompile(`(?:\(\d{3}\)\s?|\b\d{3}[-.]?)\d{3}[-.]?\d{4}\b`)
	icdRe          = regexp.MustCompile(`\b[A-TV-Z]\d{2}(?:\.[0-9A-Z]{1,4})?\b`)
	diagLabelRe    = regexp.MustCompile(`(?i:\b(?:diagnosis|dx|indication|condition))\s*[:\-]\s*([^\n]{3,80})`)
	leadingICDRe   = regexp.MustCompile(`^[A-TV-Z]\d{2}(?:\.[0-9A-Z]{1,4})?[\s,;:\-]*`)
	digitsRe       = regexp.MustCompile(`\d`)
)

var (
	payerRe     = dictionaryRe(keys(payers), false)
	brandRe     = dictionaryRe(keysOf(brands), false)
	genericRe   = dictionaryRe(generics, false)
	routeRe     = dictionaryRe(keys(routes), false)
	routeAbbrRe = dictionaryRe(keys(routeAbbreviations), true)
	diagnosisRe = dictionaryRe(diagnoses, false)
)

// Recognizer extracts entities with regular expressions and dictionaries.
type Recognizer struct {
	logger *slog.Logger
}

// NewRecognizer creates a rule-based Recognizer.
func NewRecognizer(logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{logger: logger}
}

type span struct{ start, end int }

func (s span) overlaps(o span) bool { return s.start < o.end && o.start < s.end }

// collector accumulates candidate entities over one text.
type collector struct {
	text     string
	entities []domain.Entity
}

func (c *collector) add(key domain.EntityKey, start, end int, normalized string, conf float64, source string) {
	raw := strings.TrimSpace(c.text[start:end])
	if raw == "" {
		return
	}
	c.entities = append(c.entities, domain.Entity{
		Key:        key,
		Text:       raw,
		Normalized: normalized,
		Label:      strings.ToUpper(string(key)),
		Confidence: conf,
		Start:      start,
		End:        end,
		Source:     source,
	})
}

// group adds the first capture group of every match of re.
func (c *collector) group(re *regexp.Regexp, key domain.EntityKey, conf float64, source string, norm func(string) string) []span {
	var spans []span
	for _, m := range re.FindAllStringSubmatchIndex(c.text, -1) {
		if len(m) < 4 || m[2] < 0 {
			continue
		}
		value := c.text[m[2]:m[3]]
		normalized := ""
		if norm != nil {
			normalized = norm(value)
		}
		c.add(key, m[2], m[3], normalized, conf, source)
		spans = append(spans, span{m[2], m[3]})
	}
	return spans
}

// whole adds every full match of re.
func (c *collector) whole(re *regexp.Regexp, key domain.EntityKey, conf float64, source string, norm func(string) string, skip []span) []span {
	var spans []span
	for _, m := range re.FindAllStringIndex(c.text, -1) {
		sp := span{m[0], m[1]}
		if overlapsAny(sp, skip) {
			continue
		}
		normalized := ""
		if norm != nil {
			normalized = norm(c.text[m[0]:m[1]])
		}
		c.add(key, m[0], m[1], normalized, conf, source)
		spans = append(spans, sp)
	}
	return spans
}

// Extract recognizes entities in in.Text. The subject name is used as a
// fallback patient name when no labelled name is found.
func (r *Recognizer) Extract(ctx context.Context, in port.RecognitionInput) (domain.EntityGroups, error) {
	var groups domain.EntityGroups
	if err := ctx.Err(); err != nil {
		return groups, err
	}
	c := &collector{text: in.Text}

	// patient
	c.group(patientLabelRe, domain.KeyPatientName, confDictionary, "label", nil)
	dobSpans := c.group(dobRe, domain.KeyPatientDOB, confLabelled, "label", NormalizeDate)
	if !c.has(domain.KeyPatientName) {
		c.subjectHint(in.Subject)
	}

	// insurance
	memberSpans := c.group(memberLabelRe, domain.KeyMemberID, confLabelled, "label", nil)
	memberSpans = append(memberSpans, c.whole(memberIDRe, domain.KeyMemberID, confPattern, "pattern", nil, nil)...)
	c.whole(payerRe, domain.KeyPayer, confDictionary, "dictionary", canonical(payers), nil)
	c.group(groupRe, domain.KeyGroupNumber, confPattern, "label", nil)

	// medications
	for _, m := range brandRe.FindAllStringIndex(in.Text, -1) {
		entry := brands[strings.ToLower(in.Text[m[0]:m[1]])]
		c.add(domain.KeyMedication, m[0], m[1], entry[0], confDictionary, "dictionary")
		c.add(domain.KeyGenericName, m[0], m[1], entry[1], confDerived, "brand")
	}
	for _, m := range genericRe.FindAllStringIndex(in.Text, -1) {
		name := strings.ToLower(in.Text[m[0]:m[1]])
		c.add(domain.KeyGenericName, m[0], m[1], name, confDictionary, "dictionary")
		c.add(domain.KeyMedication, m[0], m[1], name, confPattern, "dictionary")
	}
	c.whole(dosageRe, domain.KeyDosage, confDictionary, "pattern", normalizeSpaces, nil)
	c.whole(routeRe, domain.KeyRoute, confPattern, "dictionary", canonical(routes), nil)
	c.whole(routeAbbrRe, domain.KeyRoute, confWeak, "dictionary", canonical(routeAbbreviations), nil)
	c.whole(frequencyRe, domain.KeyFrequency, confPattern, "pattern", strings.ToLower, nil)
	ndcSpans := c.group(ndcLabelRe, domain.KeyNDC, confLabelled, "label", nil)
	ndcSpans = append(ndcSpans, c.whole(ndcRe, domain.KeyNDC, confLabelled, "pattern", nil, ndcSpans)...)

	// providers
	c.group(prescriberRe, domain.KeyPrescriber, confDictionary, "label", nil)
	c.group(doctorRe, domain.KeyPrescriber, confDictionary, "pattern", nil)
	c.group(credentialRe, domain.KeyPrescriber, confDictionary, "pattern", nil)
	npiSpans := c.group(npiRe, domain.KeyNPI, confNPI, "label", nil)
	faxSpans := c.group(faxRe, domain.KeyFax, confLabelled, "label", NormalizePhone)
	skip := concat(npiSpans, faxSpans, ndcSpans, memberSpans, dobSpans)
	c.whole(phoneRe, domain.KeyPhone, confLabelled, "pattern", NormalizePhone, skip)

	// diagnoses
	for _, m := range icdRe.FindAllStringIndex(in.Text, -1) {
		code := in.Text[m[0]:m[1]]
		if overlapsAny(span{m[0], m[1]}, memberSpans) {
			continue
		}
		conf := confWeak
		if strings.Contains(code, ".") {
			conf = confICDDotted
		}
		c.add(domain.KeyICD10, m[0], m[1], strings.ToUpper(code), conf, "pattern")
	}
	c.whole(diagnosisRe, domain.KeyDiagnosis, confPattern, "dictionary", strings.ToLower, nil)
	for _, m := range diagLabelRe.FindAllStringSubmatchIndex(in.Text, -1) {
		value := in.Text[m[2]:m[3]]
		trimmed := strings.TrimSpace(leadingICDRe.ReplaceAllString(strings.TrimSpace(value), ""))
		if trimmed == "" || !strings.ContainsAny(strings.ToLower(trimmed), "abcdefghijklmnopqrstuvwxyz") {
			continue
		}
		c.add(domain.KeyDiagnosis, m[2], m[3], trimmed, confDerived, "label")
	}

	// dates not already claimed as a birth date
	c.whole(dateRe, domain.KeyServiceDate, confWeak, "pattern", NormalizeDate, dobSpans)

	for _, e := range dedupe(c.entities) {
		groups.Add(domain.GroupOf(e.Key), e)
	}
	groups.Normalize()
	return groups, nil
}

func (c *collector) has(key domain.EntityKey) bool {
	for _, e := range c.entities {
		if e.Key == key {
			return true
		}
	}
	return false
}

// subjectHint adds the subject name as the patient, at high confidence when
// it occurs in the text and at low confidence otherwise.
func (c *collector) subjectHint(subject string) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return
	}
	if idx := strings.Index(strings.ToLower(c.text), strings.ToLower(subject)); idx >= 0 {
		c.add(domain.KeyPatientName, idx, idx+len(subject), "", confDictionary, "subject")
		return
	}
	c.entities = append(c.entities, domain.Entity{
		Key:        domain.KeyPatientName,
		Text:       subject,
		Label:      strings.ToUpper(string(domain.KeyPatientName)),
		Confidence: confSubject,
		Source:     "subject",
	})
}

// dedupe keeps the first entity per key and value, in text order.
func dedupe(entities []domain.Entity) []domain.Entity {
	sort.SliceStable(entities, func(i, j int) bool { return entities[i].Start < entities[j].Start })
	seen := make(map[string]bool, len(entities))
	out := make([]domain.Entity, 0, len(entities))
	for _, e := range entities {
		if e.Value() == "" {
			continue
		}
		k := string(e.Key) + "\x00" + strings.ToLower(e.Value())
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// NormalizePhone formats a 10-digit number as NNN-NNN-NNNN.
func NormalizePhone(raw string) string {
	digits := strings.Join(digitsRe.FindAllString(raw, -1), "")
	if len(digits) != 10 {
		return ""
	}
	return digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
}

func normalizeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func canonical(dict map[string]string) func(string) string {
	return func(s string) string {
		if v, ok := dict[strings.ToLower(normalizeSpaces(s))]; ok {
			return v
		}
		if v, ok := dict[normalizeSpaces(s)]; ok {
			return v
		}
		return ""
	}
}

func dictionaryRe(words []string, caseSensitive bool) *regexp.Regexp {
	sorted := make([]string, len(words))
	copy(sorted, words)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	alts := make([]string, len(sorted))
	for i, w := range sorted {
		alts[i] = strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`)
	}
	flags := "(?i)"
	if caseSensitive {
		flags = ""
	}
	return regexp.MustCompile(flags + `\b(?:` + strings.Join(alts, "|") + `)\b`)
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func keysOf(m map[string][2]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func overlapsAny(s span, others []span) bool {
	for _, o := range others {
		if s.overlaps(o) {
			return true
		}
	}
	return false
}

func concat(lists ...[]span) []span {
	var out []span
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
