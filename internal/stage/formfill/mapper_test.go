package formfill_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimease/internal/domain"
	"claimease/internal/stage/formfill"
)

func entity(key domain.EntityKey, value string, conf float64, start int) domain.Entity {
	return domain.Entity{Key: key, Text: value, Label: string(key), Confidence: conf, Start: start, End: start + len(value)}
}

// referralEntities has one value for every catalogued key.
func referralEntities() domain.EntityGroups {
	var g domain.EntityGroups
	values := map[domain.EntityKey]string{
		domain.KeyPatientName: "Akshay Chaudhari",
		domain.KeyPatientDOB:  "1968-04-15",
		domain.KeyMemberID:    "XYZ123456789",
		domain.KeyPayer:       "Blue Cross Blue Shield",
		domain.KeyGroupNumber: "GRP-00123",
		domain.KeyMedication:  "Humira",
		domain.KeyGenericName: "adalimumab",
		domain.KeyDosage:      "40 mg",
		domain.KeyRoute:       "subcutaneous",
		domain.KeyFrequency:   "every 2 weeks",
		domain.KeyNDC:         "00074-4339-02",
		domain.KeyPrescriber:  "Sarah Chen",
		domain.KeyNPI:         "1234567890",
		domain.KeyPhone:       "555-123-4567",
		domain.KeyFax:         "555-987-6543",
		domain.KeyDiagnosis:   "rheumatoid arthritis",
		domain.KeyICD10:       "M05.79",
		domain.KeyServiceDate: "2024-03-01",
	}
	for i, key := range domain.EntityCatalog {
		g.Add(domain.GroupOf(key), entity(key, values[key], 0.85, i*40))
	}
	g.Normalize()
	return g
}

func textField(name string) domain.FormField {
	return domain.FormField{Name: name, Type: domain.FieldTypeText, Page: 1}
}

func newMapper(t *testing.T) *formfill.Mapper {
	t.Helper()
	m, err := formfill.NewMapper(nil, "")
	require.NoError(t, err)
	return m
}

func byName(assignments []domain.FieldAssignment) map[string]domain.FieldAssignment {
	out := make(map[string]domain.FieldAssignment, len(assignments))
	for _, a := range assignments {
		out[a.FieldName] = a
	}
	return out
}

func TestMapper_Map_TwentySevenFieldForm(t *testing.T) {
	semantic := map[string]domain.EntityKey{
		"Patient Name":            domain.KeyPatientName,
		"Date of Birth":           domain.KeyPatientDOB,
		"Member ID":               domain.KeyMemberID,
		"Insurance Carrier":       domain.KeyPayer,
		"Group Number":            domain.KeyGroupNumber,
		"Medication Name":         domain.KeyMedication,
		"Generic Name":            domain.KeyGenericName,
		"Dose":                    domain.KeyDosage,
		"Route of Administration": domain.KeyRoute,
		"Frequency":               domain.KeyFrequency,
		"NDC Number":              domain.KeyNDC,
		"Prescriber Name":         domain.KeyPrescriber,
		"Prescriber NPI":          domain.KeyNPI,
		"Prescriber Phone":        domain.KeyPhone,
		"Prescriber Fax":          domain.KeyFax,
		"Diagnosis":               domain.KeyDiagnosis,
		"ICD-10 Code":             domain.KeyICD10,
		"Service Date":            domain.KeyServiceDate,
	}
	missing := map[string]domain.MissingReason{
		"Patient Address":     domain.ReasonNotFoundInSource,
		"Patient Email":       domain.ReasonNotFoundInSource,
		"Patient Gender":      domain.ReasonNotFoundInSource,
		"Physician Signature": domain.ReasonNotFoundInSource,
		"Weight (kg)":         domain.ReasonNotFoundInSource,
		"Office Use Only":     domain.ReasonNoMatchingPattern,
		"Reviewer Comments":   domain.ReasonNoMatchingPattern,
		"Urgent Request":      domain.ReasonNoMatchingPattern,
		"Patient Initials":    domain.ReasonValidationFailed,
	}

	var fields []domain.FormField
	for _, key := range domain.EntityCatalog {
		for name, k := range semantic {
			if k == key {
				fields = append(fields, textField(name))
			}
		}
	}
	for _, name := range []string{"Patient Address", "Patient Email", "Patient Gender", "Physician Signature",
		"Weight (kg)", "Office Use Only", "Reviewer Comments", "Urgent Request"} {
		fields = append(fields, textField(name))
	}
	initials := textField("Patient Initials")
	initials.MaxLength = 3
	initials.Required = true
	fields = append(fields, initials)
	require.Len(t, fields, 27)

	entities := referralEntities()
	assignments := newMapper(t).Map(fields, entities)
	require.Len(t, assignments, 27)

	filled := 0
	got := byName(assignments)
	for name, key := range semantic {
		a := got[name]
		assert.Equal(t, domain.FieldStatusFilled, a.Status, name)
		require.NotNil(t, a.Provenance, name)
		assert.Equal(t, key, a.Provenance.EntityKey, name)
		assert.Equal(t, domain.StrategySemantic, a.Provenance.Strategy, name)
		assert.Equal(t, domain.GroupOf(key), a.Provenance.Group, name)
		filled++
	}
	assert.Equal(t, 18, filled)

	report := formfill.MissingFields(assignments)
	require.Len(t, report, 9)
	for _, m := range report {
		assert.Equal(t, missing[m.FieldName], m.Reason, m.FieldName)
		assert.True(t, domain.ValidMissingReasons[m.Reason])
	}
	assert.True(t, got["Patient Initials"].Required)
	assert.Contains(t, got["Patient Initials"].Detail, "exceeds max length 3")
}

func TestMapper_Map_EveryFieldReportedOnceInOrder(t *testing.T) {
	fields := []domain.FormField{textField("Patient Name"), textField("Comments"), textField("field_1"), textField("Patient Name")}
	assignments := newMapper(t).Map(fields, referralEntities())

	require.Len(t, assignments, len(fields))
	for i, f := range fields {
		assert.Equal(t, f.Name, assignments[i].FieldName)
	}
	assert.Equal(t, "Akshay Chaudhari", assignments[0].Value)
	assert.Equal(t, "Akshay Chaudhari", assignments[3].Value, "a semantic value may fill several fields")
}

func genericFields(n int) []domain.FormField {
	fields := make([]domain.FormField, 0, n)
	for i := 1; i <= n; i++ {
		fields = append(fields, textField(fmt.Sprintf("field_%d", i)))
	}
	return fields
}

func TestMapper_Map_GenericFieldsPositional(t *testing.T) {
	fields := genericFields(47)
	m := newMapper(t)
	entities := referralEntities()

	first := m.Map(fields, entities)
	require.Len(t, first, 47)

	for i, key := range domain.EntityCatalog {
		a := first[i]
		assert.Equal(t, domain.FieldStatusFilled, a.Status, a.FieldName)
		require.NotNil(t, a.Provenance)
		assert.Equal(t, key, a.Provenance.EntityKey, a.FieldName)
		assert.Equal(t, domain.StrategyPositional, a.Provenance.Strategy)
	}
	for _, a := range first[len(domain.EntityCatalog):] {
		assert.Equal(t, domain.FieldStatusMissing, a.Status)
		assert.Equal(t, domain.ReasonNotFoundInSource, a.Reason)
	}

	second := m.Map(fields, entities)
	assert.Equal(t, first, second)
}

func TestMapper_Map_GenericFieldsOrderedByNumber(t *testing.T) {
	fields := []domain.FormField{textField("field_10"), textField("field_2"), textField("Field 1")}
	assignments := newMapper(t).Map(fields, referralEntities())

	got := byName(assignments)
	assert.Equal(t, "Akshay Chaudhari", got["Field 1"].Value)
	assert.Equal(t, "1968-04-15", got["field_2"].Value)
	assert.Equal(t, "XYZ123456789", got["field_10"].Value)
}

func TestMapper_Map_SemanticWinsOverPositional(t *testing.T) {
	fields := []domain.FormField{textField("field_1"), textField("Patient Name"), textField("field_2"), textField("field_3")}
	var g domain.EntityGroups
	g.Add(domain.GroupPatient, entity(domain.KeyPatientName, "Akshay Chaudhari", 0.85, 0))
	g.Add(domain.GroupPatient, entity(domain.KeyPatientDOB, "1968-04-15", 0.9, 30))

	assignments := newMapper(t).Map(fields, g)

	assert.Equal(t, "Akshay Chaudhari", assignments[1].Value)
	assert.Equal(t, domain.StrategySemantic, assignments[1].Provenance.Strategy)
	assert.Equal(t, "1968-04-15", assignments[0].Value)
	assert.Equal(t, domain.StrategyPositional, assignments[0].Provenance.Strategy)
	assert.Equal(t, domain.ReasonNotFoundInSource, assignments[2].Reason)
	assert.Equal(t, domain.ReasonNotFoundInSource, assignments[3].Reason)
}

func TestMapper_Map_PositionalValidation(t *testing.T) {
	short := textField("field_1")
	short.MaxLength = 4
	box := domain.FormField{Name: "field_2", Type: domain.FieldTypeCheckbox, Page: 1}
	fields := []domain.FormField{short, box, textField("field_3")}

	assignments := newMapper(t).Map(fields, referralEntities())

	assert.Equal(t, domain.ReasonValidationFailed, assignments[0].Reason)
	assert.Equal(t, domain.ReasonValidationFailed, assignments[1].Reason)
	assert.Contains(t, assignments[1].Detail, "checkbox")
	assert.Equal(t, "1968-04-15", assignments[2].Value, "the rejected value is used up")
}

func TestMapper_Map_PositionalSkipsRepeatedText(t *testing.T) {
	var g domain.EntityGroups
	g.Add(domain.GroupMedications, entity(domain.KeyMedication, "methotrexate", 0.8, 5))
	g.Add(domain.GroupMedications, entity(domain.KeyGenericName, "methotrexate", 0.85, 5))
	g.Add(domain.GroupMedications, entity(domain.KeyDosage, "15 mg", 0.85, 18))

	assignments := newMapper(t).Map(genericFields(3), g)

	assert.Equal(t, "methotrexate", assignments[0].Value)
	assert.Equal(t, domain.KeyMedication, assignments[0].Provenance.EntityKey)
	assert.Equal(t, "15 mg", assignments[1].Value)
	assert.Equal(t, domain.FieldStatusMissing, assignments[2].Status)
}

func TestMapper_Map_NoEntities(t *testing.T) {
	var g domain.EntityGroups
	g.Normalize()
	assignments := newMapper(t).Map([]domain.FormField{textField("Patient Name"), textField("Remarks")}, g)

	assert.Equal(t, domain.ReasonNotFoundInSource, assignments[0].Reason)
	assert.Equal(t, domain.ReasonNoMatchingPattern, assignments[1].Reason)
	assert.Empty(t, assignments[0].Value)
	assert.Nil(t, assignments[0].Provenance)
}

func TestMapper_IsGeneric(t *testing.T) {
	m := newMapper(t)
	for _, name := range []string{"field_1", "Field 12", "Text5", "txt-3", "T.11", "textfield 2"} {
		assert.True(t, m.IsGeneric(name), name)
	}
	for _, name := range []string{"Patient Name", "field", "t11a", "Member ID 2"} {
		assert.False(t, m.IsGeneric(name), name)
	}
}

func TestNewMapper_InvalidPattern(t *testing.T) {
	_, err := formfill.NewMapper(nil, "([")
	assert.Error(t, err)
}

func TestMissingFields_NeverNil(t *testing.T) {
	assert.NotNil(t, formfill.MissingFields(nil))
}
