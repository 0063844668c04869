package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"claimease/internal/domain"
)

// SubjectDir returns the input folder of subject under inputDir. It rejects
// names that are empty or would escape inputDir.
func SubjectDir(inputDir, subject string) (string, error) {
	name := strings.TrimSpace(subject)
	switch {
	case name == "":
		return "", domain.NewValidationError("patient_name", "must not be empty")
	case name == "." || name == "..":
		return "", domain.NewValidationError("patient_name", "must name a folder")
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return "", domain.NewValidationError("patient_name", "must not contain path separators")
	}
	return filepath.Join(inputDir, name), nil
}

// Documents are the input files found in a subject folder.
type Documents struct {
	PAForm   string
	Referral string
}

// Locate finds the PA form (first pa*.pdf) and the referral package (first
// *referral*.pdf) in dir. Names are compared case-insensitively in directory
// order.
func Locate(dir string) (Documents, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Documents{}, fmt.Errorf("%w: input folder %s does not exist", domain.ErrDocumentsNotFound, dir)
		}
		return Documents{}, fmt.Errorf("reading input folder %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs Documents
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		lower := strings.ToLower(e.Name())
		if !strings.HasSuffix(lower, ".pdf") {
			continue
		}
		switch {
		case strings.HasPrefix(lower, "pa") && docs.PAForm == "":
			docs.PAForm = filepath.Join(dir, e.Name())
		case strings.Contains(lower, "referral") && docs.Referral == "":
			docs.Referral = filepath.Join(dir, e.Name())
		}
	}

	switch {
	case docs.PAForm == "" && docs.Referral == "":
		return docs, fmt.Errorf("%w: PA form (pa*.pdf) and referral package (*referral*.pdf) not found in %s", domain.ErrDocumentsNotFound, dir)
	case docs.PAForm == "":
		return docs, fmt.Errorf("%w: PA form (pa*.pdf) not found in %s", domain.ErrDocumentsNotFound, dir)
	case docs.Referral == "":
		return docs, fmt.Errorf("%w: referral package (*referral*.pdf) not found in %s", domain.ErrDocumentsNotFound, dir)
	}
	return docs, nil
}

// TemplateID derives the overlay table id from the PA form file name.
func TemplateID(paForm string) string {
	base := filepath.Base(paForm)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}
