package tesseract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimease/internal/domain"
	"claimease/internal/port"
)

func TestRecognize_AbandonedPageHoldsSlot(t *testing.T) {
	release := make(chan struct{})
	calls := make(chan int, 4)
	r := &Recognizer{slots: make(chan struct{}, 1)}
	r.engine = func(img port.PageImage) ([]domain.TextBlock, error) {
		calls <- img.Page
		if img.Page == 1 {
			<-release
		}
		return []domain.TextBlock{{Page: img.Page, Text: "ok"}}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Recognize(ctx, port.PageImage{Page: 1})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindTransient, domain.KindOf(err))
	assert.Equal(t, 1, <-calls)

	// Page 1 is still inside the engine, so page 2 cannot start.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	_, err = r.Recognize(ctx2, port.PageImage{Page: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "waiting for tesseract on page 2")
	assert.Empty(t, calls)

	close(release)
	blocks, err := r.Recognize(context.Background(), port.PageImage{Page: 3})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, 3, blocks[0].Page)
	assert.Equal(t, 3, <-calls)
}

func TestRecognize_CanceledBeforeStart(t *testing.T) {
	r := &Recognizer{slots: make(chan struct{}, 1)}
	r.engine = func(port.PageImage) ([]domain.TextBlock, error) {
		t.Fatal("engine should not run")
		return nil, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Recognize(ctx, port.PageImage{Page: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
