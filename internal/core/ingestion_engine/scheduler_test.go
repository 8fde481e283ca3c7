package ingestion_engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/core/extractor"
	"github.com/markdave123-py/docingest/internal/core/isolation"
	"github.com/markdave123-py/docingest/internal/core/mocks"
	objectclient "github.com/markdave123-py/docingest/internal/core/object-client"
	"github.com/markdave123-py/docingest/internal/models"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func newTestScheduler(store core.DocumentStore, exec core.DocumentExecutor, opts ...SchedulerOption) (*Scheduler, *sleepRecorder) {
	s := NewScheduler(store, exec, SchedulerConfig{
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
	}, opts...)
	rec := &sleepRecorder{}
	s.sleep = rec.sleep
	s.jitter = func() float64 { return 0.5 }
	return s, rec
}

func sampleResult() *models.ProcessingResult {
	return &models.ProcessingResult{
		Title:     "Report",
		Outline:   []models.OutlineSection{{ID: "sec_1", Title: "Intro", Level: 2}},
		WordCount: 3,
		Chunks: []models.DocumentChunk{
			{Content: "hello there world", SectionID: "sec_1", SectionTitle: "Intro", StartChar: 0, EndChar: 17},
		},
	}
}

func TestScheduler_FileNotFoundFailsWithoutRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)
	store := newMemStore(models.Document{ID: "d1", FilePath: "/missing.pdf", MimeType: "application/pdf"})

	exec.EXPECT().
		ExecuteDocumentProcessing(gomock.Any(), "/missing.pdf", "application/pdf").
		Return(nil, errors.New("File not found: /missing.pdf")).
		Times(1)

	s, rec := newTestScheduler(store, exec)
	found, err := s.ProcessNextPendingDocument(context.Background())
	require.True(t, found)
	require.Error(t, err)

	d := store.doc("d1")
	assert.Equal(t, models.StatusFailed, d.Status)
	assert.Contains(t, d.ProcessingError, "File not found")
	assert.Empty(t, rec.delays)
}

func TestScheduler_TransientErrorsRetriedWithGrowingBackoff(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)
	store := newMemStore(models.Document{ID: "d1", FilePath: "/a.md", MimeType: "text/markdown"})

	gomock.InOrder(
		exec.EXPECT().ExecuteDocumentProcessing(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("network timeout")),
		exec.EXPECT().ExecuteDocumentProcessing(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("network timeout")),
		exec.EXPECT().ExecuteDocumentProcessing(gomock.Any(), gomock.Any(), gomock.Any()).Return(sampleResult(), nil),
	)

	s, rec := newTestScheduler(store, exec)
	require.NoError(t, s.ProcessDocumentByID(context.Background(), "d1"))

	d := store.doc("d1")
	assert.Equal(t, models.StatusCompleted, d.Status)
	assert.Equal(t, "Report", d.Title)
	assert.Empty(t, d.ProcessingError)
	require.NotNil(t, d.ProcessedAt)

	require.Len(t, rec.delays, 2)
	assert.Greater(t, rec.delays[1], rec.delays[0])
	assert.Equal(t, 75*time.Millisecond, rec.delays[0])
	assert.Equal(t, 150*time.Millisecond, rec.delays[1])

	chunks, _ := store.GetChunksByDocument(context.Background(), "d1")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Intro", chunks[0].SectionTitle)
}

func TestScheduler_RetriesExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)
	store := newMemStore(models.Document{ID: "d1", FilePath: "/a.pdf", MimeType: "application/pdf"})

	exec.EXPECT().
		ExecuteDocumentProcessing(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection reset")).
		Times(3)

	s, rec := newTestScheduler(store, exec)
	err := s.ProcessDocumentByID(context.Background(), "d1")
	require.Error(t, err)

	d := store.doc("d1")
	assert.Equal(t, models.StatusFailed, d.Status)
	assert.Equal(t, "connection reset", d.ProcessingError)
	assert.Len(t, rec.delays, 2)
	assert.Equal(t, 1, store.failCalls)
}

func TestScheduler_TypedPermanentErrorsNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "unsupported format", err: &extractor.UnsupportedFormatError{MimeType: "image/png"}},
		{name: "permanent extractor error", err: &extractor.PermanentError{Msg: "encrypted document"}},
		{name: "worker reported permanent", err: &isolation.Error{Kind: isolation.KindWorker, Msg: "bad input", Permanent: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			exec := mocks.NewMockDocumentExecutor(ctrl)
			store := newMemStore(models.Document{ID: "d1", FilePath: "/f", MimeType: "x"})

			exec.EXPECT().ExecuteDocumentProcessing(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tt.err).Times(1)

			s, rec := newTestScheduler(store, exec)
			require.Error(t, s.ProcessDocumentByID(context.Background(), "d1"))
			assert.Equal(t, models.StatusFailed, store.doc("d1").Status)
			assert.Empty(t, rec.delays)
		})
	}
}

func TestScheduler_TimeoutIsRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)
	store := newMemStore(models.Document{ID: "d1", FilePath: "/f", MimeType: "application/pdf"})

	timeout := &isolation.Error{Kind: isolation.KindTimeout, Msg: "processing timed out after 2m0s"}
	gomock.InOrder(
		exec.EXPECT().ExecuteDocumentProcessing(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, timeout),
		exec.EXPECT().ExecuteDocumentProcessing(gomock.Any(), gomock.Any(), gomock.Any()).Return(sampleResult(), nil),
	)

	s, rec := newTestScheduler(store, exec)
	require.NoError(t, s.ProcessDocumentByID(context.Background(), "d1"))
	assert.Equal(t, models.StatusCompleted, store.doc("d1").Status)
	assert.Len(t, rec.delays, 1)
}

func TestScheduler_ClaimsOldestPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)
	now := time.Now()
	store := newMemStore(
		models.Document{ID: "newer", FilePath: "/newer", UploadedAt: now},
		models.Document{ID: "older", FilePath: "/older", UploadedAt: now.Add(-time.Minute)},
		models.Document{ID: "done", FilePath: "/done", UploadedAt: now.Add(-time.Hour), Status: models.StatusCompleted},
	)

	exec.EXPECT().ExecuteDocumentProcessing(gomock.Any(), "/older", gomock.Any()).Return(sampleResult(), nil)

	s, _ := newTestScheduler(store, exec)
	found, err := s.ProcessNextPendingDocument(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.StatusCompleted, store.doc("older").Status)
	assert.Equal(t, models.StatusPending, store.doc("newer").Status)
}

func TestScheduler_EmptyQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)
	store := newMemStore()

	s, _ := newTestScheduler(store, exec)
	found, err := s.ProcessNextPendingDocument(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, s.Tick(context.Background()))
}

func TestScheduler_TickRejectsOverlap(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)
	store := newMemStore(models.Document{ID: "d1", FilePath: "/f"})

	entered := make(chan struct{})
	release := make(chan struct{})
	exec.EXPECT().
		ExecuteDocumentProcessing(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string) (*models.ProcessingResult, error) {
			close(entered)
			<-release
			return sampleResult(), nil
		})

	s, _ := newTestScheduler(store, exec)
	done := make(chan error, 1)
	go func() { done <- s.Tick(context.Background()) }()

	<-entered
	assert.ErrorIs(t, s.Tick(context.Background()), ErrBusy)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, models.StatusCompleted, store.doc("d1").Status)
}

func TestScheduler_OnDemandRejectedWhileTickRunning(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)
	store := newMemStore(models.Document{ID: "d1", FilePath: "/f"})

	entered := make(chan struct{})
	release := make(chan struct{})
	exec.EXPECT().
		ExecuteDocumentProcessing(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string) (*models.ProcessingResult, error) {
			close(entered)
			<-release
			return sampleResult(), nil
		}).
		Times(1)

	s, _ := newTestScheduler(store, exec)
	done := make(chan error, 1)
	go func() { done <- s.Tick(context.Background()) }()

	<-entered
	assert.ErrorIs(t, s.ProcessDocumentByID(context.Background(), "d1"), ErrBusy)
	assert.ErrorIs(t, s.StartDocument(context.Background(), "d1"), ErrBusy)
	found, err := s.ProcessNextPendingDocument(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, found)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, models.StatusCompleted, store.doc("d1").Status)
	assert.Equal(t, 1, store.completeCalls)
}

func TestScheduler_RefusesDocumentAlreadyProcessing(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)
	store := newMemStore(models.Document{ID: "d1", FilePath: "/f", Status: models.StatusProcessing})

	s, _ := newTestScheduler(store, exec)
	assert.ErrorIs(t, s.ProcessDocumentByID(context.Background(), "d1"), core.ErrDocumentProcessing)
	assert.ErrorIs(t, s.StartDocument(context.Background(), "d1"), core.ErrDocumentProcessing)
	assert.Equal(t, models.StatusProcessing, store.doc("d1").Status)
	assert.Zero(t, store.failCalls)
}

func TestScheduler_StartDocumentRunsInBackground(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)
	store := newMemStore(models.Document{ID: "d1", FilePath: "/f", Status: models.StatusFailed})

	release := make(chan struct{})
	exec.EXPECT().
		ExecuteDocumentProcessing(gomock.Any(), "/f", gomock.Any()).
		DoAndReturn(func(context.Context, string, string) (*models.ProcessingResult, error) {
			<-release
			return sampleResult(), nil
		})

	s, _ := newTestScheduler(store, exec)
	require.NoError(t, s.StartDocument(context.Background(), "d1"))
	assert.Equal(t, models.StatusProcessing, store.doc("d1").Status)
	assert.ErrorIs(t, s.StartDocument(context.Background(), "d1"), ErrBusy)

	close(release)
	assert.Eventually(t, func() bool {
		return store.doc("d1").Status == models.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_StartDocumentUnknown(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)

	s, _ := newTestScheduler(newMemStore(), exec)
	assert.ErrorIs(t, s.StartDocument(context.Background(), "nope"), core.ErrNotFound)

	// the slot is released after a failed claim
	store := newMemStore(models.Document{ID: "d1", FilePath: "/f"})
	s.store = store
	exec.EXPECT().ExecuteDocumentProcessing(gomock.Any(), gomock.Any(), gomock.Any()).Return(sampleResult(), nil)
	require.NoError(t, s.ProcessDocumentByID(context.Background(), "d1"))
}

func TestScheduler_StartWaitsForOnDemandRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)
	store := newMemStore(models.Document{ID: "d1", FilePath: "/f"})

	entered := make(chan struct{})
	exec.EXPECT().
		ExecuteDocumentProcessing(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _, _ string) (*models.ProcessingResult, error) {
			close(entered)
			<-ctx.Done()
			return nil, ctx.Err()
		})

	s, _ := newTestScheduler(store, exec)
	s.cfg.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- s.Start(ctx) }()

	require.NoError(t, s.StartDocument(ctx, "d1"))
	<-entered
	cancel()

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, models.StatusFailed, store.doc("d1").Status)
	assert.ErrorIs(t, s.StartDocument(ctx, "d1"), context.Canceled)
}

type stubEmbedder struct {
	calls int
	err   error
}

func (e *stubEmbedder) EmbedDocumentChunks(context.Context, string) (int, error) {
	e.calls++
	return 1, e.err
}

func TestScheduler_EmbeddingFailureLeavesDocumentCompleted(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)
	store := newMemStore(models.Document{ID: "d1", FilePath: "/f"})
	emb := &stubEmbedder{err: errors.New("quota exceeded")}

	exec.EXPECT().ExecuteDocumentProcessing(gomock.Any(), gomock.Any(), gomock.Any()).Return(sampleResult(), nil)

	s, _ := newTestScheduler(store, exec, WithDocumentEmbedder(emb))
	require.NoError(t, s.ProcessDocumentByID(context.Background(), "d1"))
	assert.Equal(t, 1, emb.calls)
	assert.Equal(t, models.StatusCompleted, store.doc("d1").Status)
}

func TestScheduler_ProcessUnknownDocument(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)

	s, _ := newTestScheduler(newMemStore(), exec)
	err := s.ProcessDocumentByID(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

type fakeSources struct {
	released int
	err      error
}

func (f *fakeSources) Localize(_ context.Context, p string) (string, func(), error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return "/tmp/local" + p, func() { f.released++ }, nil
}

func TestScheduler_UsesSourceResolver(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)
	store := newMemStore(models.Document{ID: "d1", FilePath: "/bucket/key.pdf", MimeType: "application/pdf"})
	src := &fakeSources{}

	exec.EXPECT().
		ExecuteDocumentProcessing(gomock.Any(), "/tmp/local/bucket/key.pdf", "application/pdf").
		Return(sampleResult(), nil)

	s, _ := newTestScheduler(store, exec, WithSourceResolver(src))
	require.NoError(t, s.ProcessDocumentByID(context.Background(), "d1"))
	assert.Equal(t, 1, src.released)
}

func TestScheduler_MissingSourceObjectIsPermanent(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)
	store := newMemStore(models.Document{ID: "d1", FilePath: "s3://b/k.pdf"})
	src := &fakeSources{err: errors.New("source object not found: s3://b/k.pdf")}

	s, rec := newTestScheduler(store, exec, WithSourceResolver(src))
	require.Error(t, s.ProcessDocumentByID(context.Background(), "d1"))
	assert.Equal(t, models.StatusFailed, store.doc("d1").Status)
	assert.Empty(t, rec.delays)
}

func TestScheduler_UnconfiguredStorageIsPermanent(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)
	store := newMemStore(models.Document{ID: "d1", FilePath: "s3://docs/report.pdf"})

	s, rec := newTestScheduler(store, exec, WithSourceResolver(objectclient.NewSourceFetcher(nil, t.TempDir())))
	err := s.ProcessDocumentByID(context.Background(), "d1")
	require.ErrorIs(t, err, objectclient.ErrStorageNotConfigured)
	assert.False(t, IsRetryableError(err))
	assert.Equal(t, models.StatusFailed, store.doc("d1").Status)
	assert.Equal(t, 1, store.failCalls)
	assert.Empty(t, rec.delays)
}

func TestScheduler_FailureRecordedAfterCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockDocumentExecutor(ctrl)
	store := newMemStore(models.Document{ID: "d1", FilePath: "/f"})

	ctx, cancel := context.WithCancel(context.Background())
	exec.EXPECT().
		ExecuteDocumentProcessing(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _, _ string) (*models.ProcessingResult, error) {
			cancel()
			return nil, ctx.Err()
		})

	s, rec := newTestScheduler(store, exec)
	require.Error(t, s.ProcessDocumentByID(ctx, "d1"))
	assert.Equal(t, models.StatusFailed, store.doc("d1").Status)
	assert.Empty(t, rec.delays)
}
