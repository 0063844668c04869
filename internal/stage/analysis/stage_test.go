package analysis_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"claimease/internal/domain"
	"claimease/internal/port"
	"claimease/internal/stage/analysis"
	"claimease/mocks"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("%PDF-1.4"), 0o644))
	}
}

func TestSubjectDir(t *testing.T) {
	dir, err := analysis.SubjectDir("data/input", "Akshay")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data/input", "Akshay"), dir)

	for _, bad := range []string{"", "  ", "..", ".", "../etc", `a\b`} {
		_, err := analysis.SubjectDir("data/input", bad)
		assert.ErrorIs(t, err, domain.ErrValidation, "subject %q", bad)
	}
}

func TestLocate(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Akshay")
	writeFiles(t, dir, "notes.txt", "PA.pdf", "referral_package.pdf", "pa_old.pdf")

	docs, err := analysis.Locate(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "PA.pdf"), docs.PAForm)
	assert.Equal(t, filepath.Join(dir, "referral_package.pdf"), docs.Referral)
}

func TestLocate_MissingDocuments(t *testing.T) {
	root := t.TempDir()

	_, err := analysis.Locate(filepath.Join(root, "nobody"))
	assert.ErrorIs(t, err, domain.ErrDocumentsNotFound)

	onlyForm := filepath.Join(root, "Akshay")
	writeFiles(t, onlyForm, "pa.pdf")
	_, err = analysis.Locate(onlyForm)
	require.ErrorIs(t, err, domain.ErrDocumentsNotFound)
	assert.Contains(t, err.Error(), "referral")

	onlyReferral := filepath.Join(root, "Maria")
	writeFiles(t, onlyReferral, "referral.pdf")
	_, err = analysis.Locate(onlyReferral)
	require.ErrorIs(t, err, domain.ErrDocumentsNotFound)
	assert.Contains(t, err.Error(), "PA form")
}

func TestTemplateID(t *testing.T) {
	assert.Equal(t, "pa_humana_2024", analysis.TemplateID("/in/Akshay/PA_Humana_2024.pdf"))
}

func TestClassifyPages(t *testing.T) {
	res := analysis.ClassifyPages([]port.PageProbe{
		{PageNumber: 1, TextLength: 1200, HasImages: false},
		{PageNumber: 2, TextLength: 40, HasImages: true},
		{PageNumber: 3, TextLength: 0, HasImages: true},
	})

	assert.Equal(t, 3, res.TotalPages)
	require.Len(t, res.Pages, 3)
	assert.False(t, res.Pages[0].IsScanned)
	assert.True(t, res.Pages[1].IsScanned)
	assert.True(t, res.Pages[1].HasText)
	assert.False(t, res.Pages[2].HasText)
	assert.Equal(t, 2, res.Summary.ScannedPages)
	assert.Equal(t, 1, res.Summary.TextPages)
	assert.Equal(t, 1240, res.Summary.TotalTextLength)
	assert.True(t, res.Summary.RequiresOCR)
}

func TestStage_Analyze(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Akshay")
	writeFiles(t, dir, "pa.pdf", "referral_package.pdf")

	forms := new(mocks.MockFormInspector)
	probe := new(mocks.MockPDFTextProbe)
	forms.On("InspectForm", mock.Anything, filepath.Join(dir, "pa.pdf")).Return(&domain.FormAnalysis{
		TotalPages:  2,
		TotalFields: 1,
		Fields:      []domain.FormField{{Name: "Patient Name", Type: domain.FieldTypeText, Page: 1}},
		FieldTypes:  []domain.FieldType{domain.FieldTypeText},
	}, nil)
	probe.On("ProbePages", mock.Anything, filepath.Join(dir, "referral_package.pdf")).Return([]port.PageProbe{
		{PageNumber: 1, TextLength: 10, HasImages: true},
	}, nil)

	s := analysis.NewStage(root, forms, probe, nil, nil)
	res, err := s.Analyze(context.Background(), "Akshay")
	require.NoError(t, err)

	assert.Equal(t, "Akshay", res.Subject)
	assert.Equal(t, "pa", res.TemplateID)
	assert.Equal(t, 1, res.Form.TotalFields)
	assert.Equal(t, 1, res.Referral.Summary.ScannedPages)
	assert.False(t, res.AnalyzedAt.IsZero())
	forms.AssertExpectations(t)
	probe.AssertExpectations(t)
}

func TestStage_Analyze_MissingReferralIsPermanent(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "Akshay"), "pa.pdf")

	s := analysis.NewStage(root, new(mocks.MockFormInspector), new(mocks.MockPDFTextProbe), nil, nil)
	_, err := s.Analyze(context.Background(), "Akshay")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDocumentsNotFound)
	assert.Equal(t, domain.ErrorKindPermanent, domain.KindOf(err))
	assert.Contains(t, err.Error(), "referral")
}

func TestStage_Analyze_UnreadableTemplateIsPermanent(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Akshay")
	writeFiles(t, dir, "pa.pdf", "referral.pdf")

	forms := new(mocks.MockFormInspector)
	forms.On("InspectForm", mock.Anything, mock.Anything).Return(nil, domain.ErrTemplateUnreadable)

	s := analysis.NewStage(root, forms, new(mocks.MockPDFTextProbe), nil, nil)
	_, err := s.Analyze(context.Background(), "Akshay")
	assert.ErrorIs(t, err, domain.ErrTemplateUnreadable)
	assert.Equal(t, domain.ErrorKindPermanent, domain.KindOf(err))
}

func TestStage_Analyze_ProbeTimeoutIsTransient(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Akshay")
	writeFiles(t, dir, "pa.pdf", "referral.pdf")

	forms := new(mocks.MockFormInspector)
	forms.On("InspectForm", mock.Anything, mock.Anything).Return(&domain.FormAnalysis{}, nil)
	probe := new(mocks.MockPDFTextProbe)
	probe.On("ProbePages", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded)

	s := analysis.NewStage(root, forms, probe, nil, nil)
	_, err := s.Analyze(context.Background(), "Akshay")
	assert.Equal(t, domain.ErrorKindTransient, domain.KindOf(err))
}

func TestStage_Analyze_UsesOverlayFieldsForFlatForm(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Akshay")
	writeFiles(t, dir, "pa_flat.pdf", "referral.pdf")

	forms := new(mocks.MockFormInspector)
	forms.On("InspectForm", mock.Anything, mock.Anything).Return(&domain.FormAnalysis{TotalPages: 1}, nil)
	probe := new(mocks.MockPDFTextProbe)
	probe.On("ProbePages", mock.Anything, mock.Anything).Return([]port.PageProbe{}, nil)
	overlays := new(mocks.MockOverlayTables)
	overlays.On("Lookup", "pa_flat").Return(&domain.OverlayTable{
		TemplateID: "pa_flat",
		Fields: []domain.OverlayField{
			{Name: "Patient Name", Page: 1, X: 100, Y: 700, Required: true},
			{Name: "DOB", Page: 1, X: 100, Y: 680, MaxLength: 10},
		},
	}, nil)

	s := analysis.NewStage(root, forms, probe, overlays, nil)
	res, err := s.Analyze(context.Background(), "Akshay")
	require.NoError(t, err)

	require.Len(t, res.Form.Fields, 2)
	assert.Equal(t, 2, res.Form.TotalFields)
	assert.True(t, res.Form.Fields[0].Required)
	assert.Equal(t, 10, res.Form.Fields[1].MaxLength)
	assert.Equal(t, []domain.FieldType{domain.FieldTypeText}, res.Form.FieldTypes)
}

func TestStage_Analyze_OverlayLookupFailure(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "Akshay"), "pa.pdf", "referral.pdf")

	forms := new(mocks.MockFormInspector)
	forms.On("InspectForm", mock.Anything, mock.Anything).Return(&domain.FormAnalysis{}, nil)
	overlays := new(mocks.MockOverlayTables)
	overlays.On("Lookup", "pa").Return(nil, errors.New("yaml: bad indentation"))

	s := analysis.NewStage(root, forms, new(mocks.MockPDFTextProbe), overlays, nil)
	_, err := s.Analyze(context.Background(), "Akshay")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindPermanent, domain.KindOf(err))
}
