package ocr_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimease/internal/domain"
	"claimease/internal/ocr"
)

// stubRunner writes fake page images where pdftoppm would.
type stubRunner struct {
	pages []int
	err   error
	args  []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.args = append([]string{name}, args...)
	if s.err != nil {
		return nil, []byte("Syntax Error: Couldn't read xref table"), s.err
	}
	prefix := args[len(args)-1]
	for _, p := range s.pages {
		if err := os.WriteFile(fmt.Sprintf("%s-%02d.png", prefix, p), []byte(fmt.Sprintf("png-%d", p)), 0o644); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func TestPdftoppmRasterizer_OrdersPagesNumerically(t *testing.T) {
	runner := &stubRunner{pages: []int{10, 2, 1}}
	r := ocr.NewRasterizer("", runner)

	pages, err := r.Rasterize(context.Background(), "/in/referral.pdf", 300)
	require.NoError(t, err)

	require.Len(t, pages, 3)
	assert.Equal(t, 1, pages[0].Page)
	assert.Equal(t, 2, pages[1].Page)
	assert.Equal(t, 10, pages[2].Page)
	assert.Equal(t, "png-10", string(pages[2].Image))
	assert.Equal(t, []string{"pdftoppm", "-r", "300", "-png", "/in/referral.pdf"}, runner.args[:5])
}

func TestPdftoppmRasterizer_MissingBinaryIsPermanent(t *testing.T) {
	r := ocr.NewRasterizer("pdftoppm", &stubRunner{err: exec.ErrNotFound})

	_, err := r.Rasterize(context.Background(), "/in/referral.pdf", 300)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCapabilityMissing))
	assert.Equal(t, domain.ErrorKindPermanent, domain.KindOf(err))
}

func TestPdftoppmRasterizer_TimeoutIsTransient(t *testing.T) {
	r := ocr.NewRasterizer("pdftoppm", &stubRunner{err: context.DeadlineExceeded})

	_, err := r.Rasterize(context.Background(), "/in/referral.pdf", 300)
	assert.Equal(t, domain.ErrorKindTransient, domain.KindOf(err))
}

func TestPdftoppmRasterizer_NoPagesIsPermanent(t *testing.T) {
	r := ocr.NewRasterizer("pdftoppm", &stubRunner{})

	_, err := r.Rasterize(context.Background(), "/in/referral.pdf", 300)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindPermanent, domain.KindOf(err))
}

func TestPageNumber(t *testing.T) {
	n, ok := ocr.PageNumber("/tmp/x/page-007.png")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = ocr.PageNumber("/tmp/x/page.png")
	assert.False(t, ok)
}
