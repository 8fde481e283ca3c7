package isolation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/markdave123-py/docingest/internal/core/extractor"
	"github.com/markdave123-py/docingest/internal/core/mocks"
	"github.com/markdave123-py/docingest/internal/models"
	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type executorFunc func(ctx context.Context, filePath, mimeType string) (*models.ProcessingResult, error)

func (f executorFunc) ExecuteDocumentProcessing(ctx context.Context, filePath, mimeType string) (*models.ProcessingResult, error) {
	return f(ctx, filePath, mimeType)
}

func newPool(t *testing.T, work executorFunc, timeout time.Duration) *PoolExecutor {
	t.Helper()
	p, err := NewPoolExecutor(work, 2, timeout, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPoolExecutor_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	work := mocks.NewMockDocumentExecutor(ctrl)
	want := &models.ProcessingResult{Title: "Report", WordCount: 3}
	work.EXPECT().
		ExecuteDocumentProcessing(gomock.Any(), "/tmp/report.pdf", "application/pdf").
		Return(want, nil)

	p, err := NewPoolExecutor(work, 2, time.Second, nil)
	require.NoError(t, err)
	defer p.Close()

	got, err := p.ExecuteDocumentProcessing(context.Background(), "/tmp/report.pdf", "application/pdf")
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestPoolExecutor_PassesErrorsThrough(t *testing.T) {
	permanent := &extractor.PermanentError{Msg: "file not found: /x"}
	p := newPool(t, func(ctx context.Context, _, _ string) (*models.ProcessingResult, error) {
		return nil, permanent
	}, time.Second)

	_, err := p.ExecuteDocumentProcessing(context.Background(), "/x", "application/pdf")
	assert.Same(t, permanent, err)
	assert.True(t, IsPermanent(err))
}

func TestPoolExecutor_Timeout(t *testing.T) {
	observed := make(chan struct{})
	p := newPool(t, func(ctx context.Context, _, _ string) (*models.ProcessingResult, error) {
		<-ctx.Done()
		close(observed)
		return nil, ctx.Err()
	}, 50*time.Millisecond)

	start := time.Now()
	_, err := p.ExecuteDocumentProcessing(context.Background(), "big.pdf", "application/pdf")
	require.Error(t, err)

	var iso *Error
	require.True(t, errors.As(err, &iso))
	assert.Equal(t, KindTimeout, iso.Kind)
	assert.False(t, IsPermanent(err))
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)

	select {
	case <-observed:
	case <-time.After(5 * time.Second):
		t.Fatal("task context was not cancelled")
	}
}

func TestPoolExecutor_StuckTaskDoesNotBlockNextCall(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	p, err := NewPoolExecutor(executorFunc(func(ctx context.Context, _, _ string) (*models.ProcessingResult, error) {
		calls.Add(1)
		<-release
		return nil, errors.New("finished late")
	}), 1, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer p.Close()
	defer close(release)

	_, err = p.ExecuteDocumentProcessing(context.Background(), "stuck.pdf", "application/pdf")
	var iso *Error
	require.True(t, errors.As(err, &iso))
	assert.Equal(t, KindTimeout, iso.Kind)
	assert.Equal(t, 1, p.Running())

	done := make(chan error, 1)
	go func() {
		_, err := p.ExecuteDocumentProcessing(context.Background(), "next.pdf", "application/pdf")
		done <- err
	}()

	select {
	case err := <-done:
		require.True(t, errors.As(err, &iso))
		assert.Equal(t, KindSpawn, iso.Kind)
		assert.ErrorIs(t, err, ants.ErrPoolOverload)
		assert.False(t, IsPermanent(err))
	case <-time.After(2 * time.Second):
		t.Fatal("second call blocked behind the stuck task")
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestPoolExecutor_ParentCancelled(t *testing.T) {
	p := newPool(t, func(ctx context.Context, _, _ string) (*models.ProcessingResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.ExecuteDocumentProcessing(ctx, "a.md", "text/markdown")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoolExecutor_RecoversPanics(t *testing.T) {
	p := newPool(t, func(ctx context.Context, _, _ string) (*models.ProcessingResult, error) {
		panic("boom")
	}, time.Second)

	_, err := p.ExecuteDocumentProcessing(context.Background(), "a.md", "text/markdown")
	var iso *Error
	require.True(t, errors.As(err, &iso))
	assert.Equal(t, KindWorker, iso.Kind)
	assert.Contains(t, err.Error(), "boom")
}

func TestPoolExecutor_RealPipeline(t *testing.T) {
	body := strings.Repeat("Lorem ipsum dolor sit amet. ", 25)
	content := "## Intro\n\n" + body + "\n\n## Details\n\n" + body + "\n"
	path := filepath.Join(t.TempDir(), "guide.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	work := NewPipeline(extractor.NewExtractor(), 1000, 200)
	p, err := NewPoolExecutor(work, 2, 10*time.Second, nil)
	require.NoError(t, err)
	defer p.Close()

	res, err := p.ExecuteDocumentProcessing(context.Background(), path, "text/markdown")
	require.NoError(t, err)

	require.Len(t, res.Outline, 2)
	assert.Equal(t, "Intro", res.Title)
	assert.Equal(t, len(strings.Fields(content)), res.WordCount)
	require.Len(t, res.Chunks, 2)
	assert.Equal(t, "Intro", res.Chunks[0].SectionTitle)
	assert.Equal(t, "Details", res.Chunks[1].SectionTitle)
}
