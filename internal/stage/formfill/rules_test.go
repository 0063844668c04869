package formfill_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimease/internal/domain"
	"claimease/internal/stage/formfill"
)

func TestNormalizeFieldName(t *testing.T) {
	tests := map[string]string{
		"Patient_Name":    "patient name",
		"patientDOB":      "patient dob",
		"Member-ID.No":    "member id no",
		"  ICD--10  Code": "icd 10 code",
		"NPINumber":       "npinumber",
	}
	for in, want := range tests {
		assert.Equal(t, want, formfill.NormalizeFieldName(in), in)
	}
}

func TestRuleTable_Match_FirstRuleWins(t *testing.T) {
	rules := formfill.DefaultRules()

	r, ok := rules.Match(formfill.NormalizeFieldName("Patient DOB"))
	require.True(t, ok)
	assert.Equal(t, []domain.EntityKey{domain.KeyPatientDOB}, r.Keys)

	r, ok = rules.Match(formfill.NormalizeFieldName("Prescriber Phone"))
	require.True(t, ok)
	assert.Equal(t, []domain.EntityKey{domain.KeyPhone}, r.Keys)

	r, ok = rules.Match(formfill.NormalizeFieldName("Medication Name"))
	require.True(t, ok)
	assert.Equal(t, domain.KeyMedication, r.Keys[0])

	r, ok = rules.Match(formfill.NormalizeFieldName("Patient Address"))
	require.True(t, ok)
	assert.Empty(t, r.Keys)

	_, ok = rules.Match(formfill.NormalizeFieldName("Office Use Only"))
	assert.False(t, ok)
}

func TestDefaultRules_KnownKeys(t *testing.T) {
	for i, r := range formfill.DefaultRules() {
		for _, k := range r.Keys {
			assert.NotEmpty(t, domain.GroupOf(k), "rule %d key %s", i, k)
		}
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - patterns: ["Enrollee_ID", "member id"]
    keys: [member_id]
  - patterns: ["enrollee"]
    keys: [patient_name]
`), 0o644))

	rules, err := formfill.LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, []string{"enrollee id", "member id"}, rules[0].Patterns)

	r, ok := rules.Match(formfill.NormalizeFieldName("EnrolleeId"))
	require.True(t, ok)
	assert.Equal(t, []domain.EntityKey{domain.KeyMemberID}, r.Keys)
}

func TestLoadRules_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := formfill.LoadRules(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("rules:\n  - patterns: [x]\n    keys: [shoe_size]\n"), 0o644))
	_, err = formfill.LoadRules(unknown)
	assert.ErrorContains(t, err, "shoe_size")

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("rules: []\n"), 0o644))
	_, err = formfill.LoadRules(empty)
	assert.Error(t, err)
}

func TestLoadRules_DefaultWhenUnset(t *testing.T) {
	rules, err := formfill.LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, formfill.DefaultRules(), rules)
}
