package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"video-assessment-backend/internal/testutil/memstore"
	"video-assessment-backend/lib/pipeline/dispatcher"
	"video-assessment-backend/lib/transcription"
	"video-assessment-backend/models"
	dbmodels "video-assessment-backend/models/db"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	tasks    []dispatcher.Task
	capacity int
}

func (f *fakeDispatcher) Start(ctx context.Context, handler dispatcher.Handler) error {
	return nil
}

func (f *fakeDispatcher) Submit(ctx context.Context, task dispatcher.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.capacity > 0 && len(f.tasks) >= f.capacity {
		return dispatcher.ErrQueueFull
	}
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeDispatcher) Wait() {}

type fakeTranscription struct {
	mu      sync.Mutex
	calls   []string
	fail    map[string]bool
	release chan struct{}
}

func (f *fakeTranscription) ProcessTranscription(ctx context.Context, answerID, videoURL string) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, answerID)
	if f.fail[answerID] {
		return models.NewStageError(models.ErrTranscription, nil, answerID)
	}
	return nil
}

type fakePersonality struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakePersonality) ProcessPersonality(ctx context.Context, answerID, videoURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, answerID)
	return true
}

type nopFetcher struct{}

func (nopFetcher) Fetch(ctx context.Context, videoURL string) (string, func(), error) {
	return videoURL, func() {}, nil
}

type countingTranscriber struct {
	calls   int32
	release chan struct{}
}

func (c *countingTranscriber) Transcribe(ctx context.Context, filePath string) (string, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.release != nil {
		<-c.release
	}
	return "I led a team of five engineers", nil
}

type nopAssessor struct{}

func (nopAssessor) AssessAnswer(ctx context.Context, answerID string) error {
	return nil
}

// withTranscriptionStage пайплайн с настоящим этапом транскрибации поверх хранилища фикстуры
func (f *fixture) withTranscriptionStage(transcriber *countingTranscriber) Provider {
	stage := transcription.NewInstance(transcription.Config{MaxAttempts: 3},
		f.store.Answers(), nopFetcher{}, transcriber, nopAssessor{})
	return NewInstance(Config{MaxAttempts: 3}, f.store.Answers(), f.tasks, stage, f.personality)
}

func (f *fixture) drainQueue(ctx context.Context, p Provider) []error {
	f.tasks.mu.Lock()
	queued := f.tasks.tasks
	f.tasks.tasks = nil
	f.tasks.mu.Unlock()
	errs := []error{}
	for _, task := range queued {
		errs = append(errs, p.HandleTask(ctx, task))
	}
	return errs
}

type fixture struct {
	store        *memstore.Store
	tasks        *fakeDispatcher
	transcriber  *fakeTranscription
	personality  *fakePersonality
	pipeline     Provider
	submissionID string
}

func newFixture(cooldown time.Duration) *fixture {
	store := memstore.New()
	f := &fixture{
		store:        store,
		tasks:        &fakeDispatcher{},
		transcriber:  &fakeTranscription{fail: map[string]bool{}},
		personality:  &fakePersonality{},
		submissionID: store.AddSubmission(dbmodels.Submission{TestID: "t1"}),
	}
	f.pipeline = NewInstance(Config{PendingCooldown: cooldown, MaxAttempts: 3},
		store.Answers(), f.tasks, f.transcriber, f.personality)
	return f
}

func (f *fixture) addAnswer(t *testing.T, transcriptStatus, personalityStatus models.StageStatus) string {
	id, err := f.store.Answers().Create(dbmodels.Answer{
		SubmissionID:              f.submissionID,
		VideoURL:                  "https://cdn/v.mp4",
		TranscriptStatus:          transcriptStatus,
		PersonalityAnalysisStatus: personalityStatus,
	})
	require.NoError(t, err)
	return id
}

func TestProcessSubmission(t *testing.T) {
	ctx := context.Background()

	t.Run(`fan out check`, func(t *testing.T) {
		f := newFixture(0)
		a1 := f.addAnswer(t, "", "")
		a2 := f.addAnswer(t, models.StageStatusCompleted, models.StageStatusFailed)

		summary, err := f.pipeline.ProcessSubmission(ctx, f.submissionID)
		require.NoError(t, err)
		require.Equal(t, SubmitSummary{Answers: 2, Queued: 3}, summary)
		require.Equal(t, []dispatcher.Task{
			{Kind: models.StageKindTranscription, AnswerID: a1, VideoURL: "https://cdn/v.mp4"},
			{Kind: models.StageKindPersonality, AnswerID: a1, VideoURL: "https://cdn/v.mp4"},
			{Kind: models.StageKindPersonality, AnswerID: a2, VideoURL: "https://cdn/v.mp4"},
		}, f.tasks.tasks)
	})

	t.Run(`rejected tasks stay pending check`, func(t *testing.T) {
		f := newFixture(0)
		f.tasks.capacity = 1
		a1 := f.addAnswer(t, "", "")

		summary, err := f.pipeline.ProcessSubmission(ctx, f.submissionID)
		require.NoError(t, err)
		require.Equal(t, 1, summary.Queued)
		require.Equal(t, 1, summary.Rejected)
		require.Equal(t, models.StageStatusPending, f.store.Answer(a1).PersonalityAnalysisStatus)
	})

	t.Run(`caller does not wait for stages check`, func(t *testing.T) {
		f := newFixture(0)
		f.transcriber.release = make(chan struct{})
		poolCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		pool := dispatcher.NewPool(2, 10)
		p := NewInstance(Config{}, f.store.Answers(), pool, f.transcriber, f.personality)
		require.NoError(t, pool.Start(poolCtx, p.HandleTask))
		f.addAnswer(t, "", "")

		summary, err := p.ProcessSubmission(ctx, f.submissionID)
		require.NoError(t, err)
		require.Equal(t, 2, summary.Queued)
		f.transcriber.mu.Lock()
		require.Empty(t, f.transcriber.calls)
		f.transcriber.mu.Unlock()

		close(f.transcriber.release)
		require.Eventually(t, func() bool {
			f.transcriber.mu.Lock()
			defer f.transcriber.mu.Unlock()
			return len(f.transcriber.calls) == 1
		}, 2*time.Second, 10*time.Millisecond)
	})
}

func TestProcessPendingAnswers(t *testing.T) {
	ctx := context.Background()

	t.Run(`bounded batch with cooldown check`, func(t *testing.T) {
		f := newFixture(30 * time.Millisecond)
		a1 := f.addAnswer(t, models.StageStatusFailed, "")
		f.addAnswer(t, models.StageStatusCompleted, "")
		f.addAnswer(t, models.StageStatusDeadLetter, "")
		a4 := f.addAnswer(t, models.StageStatusPending, "")
		f.addAnswer(t, models.StageStatusPending, "")
		f.transcriber.fail[a4] = true

		start := time.Now()
		summary, err := f.pipeline.ProcessPendingAnswers(ctx, 2)
		require.NoError(t, err)
		require.Equal(t, PendingSummary{Processed: 2, Succeeded: 1, Failed: 1}, summary)
		require.Equal(t, []string{a1, a4}, f.transcriber.calls)
		require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run(`cancellation check`, func(t *testing.T) {
		f := newFixture(time.Second)
		f.addAnswer(t, "", "")
		f.addAnswer(t, "", "")
		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		summary, err := f.pipeline.ProcessPendingAnswers(cctx, 10)
		require.NoError(t, err)
		require.Equal(t, 1, summary.Processed)
	})

	t.Run(`personality batch check`, func(t *testing.T) {
		f := newFixture(0)
		f.addAnswer(t, "", models.StageStatusCompleted)
		a2 := f.addAnswer(t, "", models.StageStatusFailed)
		summary, err := f.pipeline.ProcessPendingPersonality(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, PendingSummary{Processed: 1, Succeeded: 1}, summary)
		require.Equal(t, []string{a2}, f.personality.calls)
	})
}

func TestStageClaim(t *testing.T) {
	ctx := context.Background()

	t.Run(`queued task after pending run check`, func(t *testing.T) {
		f := newFixture(0)
		transcriber := &countingTranscriber{}
		p := f.withTranscriptionStage(transcriber)
		a1 := f.addAnswer(t, "", models.StageStatusCompleted)

		summary, err := p.ProcessSubmission(ctx, f.submissionID)
		require.NoError(t, err)
		require.Equal(t, 1, summary.Queued)

		pending, err := p.ProcessPendingAnswers(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, PendingSummary{Processed: 1, Succeeded: 1}, pending)

		for _, err := range f.drainQueue(ctx, p) {
			require.True(t, errors.Is(err, models.ErrStageClaimed))
		}
		require.Equal(t, int32(1), atomic.LoadInt32(&transcriber.calls))
		answer := f.store.Answer(a1)
		require.Equal(t, models.StageStatusCompleted, answer.TranscriptStatus)
		require.Equal(t, 1, answer.TranscriptAttempts)
	})

	t.Run(`concurrent pending run and queued task check`, func(t *testing.T) {
		f := newFixture(0)
		transcriber := &countingTranscriber{release: make(chan struct{})}
		p := f.withTranscriptionStage(transcriber)
		a1 := f.addAnswer(t, "", models.StageStatusCompleted)

		_, err := p.ProcessSubmission(ctx, f.submissionID)
		require.NoError(t, err)

		done := make(chan PendingSummary)
		go func() {
			summary, _ := p.ProcessPendingAnswers(ctx, 10)
			done <- summary
		}()
		require.Eventually(t, func() bool {
			return atomic.LoadInt32(&transcriber.calls) == 1
		}, 2*time.Second, 5*time.Millisecond)

		errs := f.drainQueue(ctx, p)
		require.Len(t, errs, 1)
		require.True(t, errors.Is(errs[0], models.ErrStageClaimed))

		close(transcriber.release)
		require.Equal(t, PendingSummary{Processed: 1, Succeeded: 1}, <-done)
		require.Equal(t, int32(1), atomic.LoadInt32(&transcriber.calls))
		require.Equal(t, models.StageStatusCompleted, f.store.Answer(a1).TranscriptStatus)
	})

	t.Run(`pending run skips claimed answer check`, func(t *testing.T) {
		f := newFixture(0)
		transcriber := &countingTranscriber{}
		a1 := f.addAnswer(t, "", models.StageStatusCompleted)
		a2 := f.addAnswer(t, "", models.StageStatusCompleted)

		pendingStore := skipAfterListStore{AnswerStore: f.store.Answers(), claimID: a1}
		stage := transcription.NewInstance(transcription.Config{MaxAttempts: 3},
			f.store.Answers(), nopFetcher{}, transcriber, nopAssessor{})
		p := NewInstance(Config{}, pendingStore, f.tasks, stage, f.personality)

		summary, err := p.ProcessPendingAnswers(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, PendingSummary{Processed: 2, Succeeded: 1, Skipped: 1}, summary)
		require.Equal(t, int32(1), atomic.LoadInt32(&transcriber.calls))
		require.Equal(t, models.StageStatusProcessing, f.store.Answer(a1).TranscriptStatus)
		require.Equal(t, models.StageStatusCompleted, f.store.Answer(a2).TranscriptStatus)
	})
}

// skipAfterListStore после выборки ответов забирает один из них, как это сделал бы исполнитель очереди
type skipAfterListStore struct {
	memstore.AnswerStore
	claimID string
}

func (s skipAfterListStore) ListForTranscription(limit int) ([]dbmodels.Answer, error) {
	list, err := s.AnswerStore.ListForTranscription(limit)
	if err != nil {
		return nil, err
	}
	if _, err = s.AnswerStore.ClaimStage(s.claimID, models.StageKindTranscription, time.Now()); err != nil {
		return nil, err
	}
	return list, nil
}

func TestRetryAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run(`dead letter reset check`, func(t *testing.T) {
		f := newFixture(0)
		a1 := f.addAnswer(t, models.StageStatusDeadLetter, models.StageStatusCompleted)
		require.NoError(t, f.store.Answers().Update(a1, map[string]interface{}{"transcript_attempts": 3}))

		hMsg, err := f.pipeline.RetryAnswer(ctx, a1, models.StageKindTranscription)
		require.NoError(t, err)
		require.Empty(t, hMsg)
		answer := f.store.Answer(a1)
		require.Equal(t, models.StageStatusPending, answer.TranscriptStatus)
		require.Equal(t, 0, answer.TranscriptAttempts)
		require.Len(t, f.tasks.tasks, 1)
		require.Equal(t, models.StageKindTranscription, f.tasks.tasks[0].Kind)
	})

	t.Run(`completed stage check`, func(t *testing.T) {
		f := newFixture(0)
		a1 := f.addAnswer(t, models.StageStatusDeadLetter, models.StageStatusCompleted)
		for _, tc := range []struct {
			answerID string
			kind     models.StageKind
		}{
			{a1, models.StageKindPersonality},
			{a1, "unknown"},
			{"missing", models.StageKindPersonality},
		} {
			hMsg, err := f.pipeline.RetryAnswer(ctx, tc.answerID, tc.kind)
			require.NoError(t, err)
			require.NotEmpty(t, hMsg)
		}
		require.Empty(t, f.tasks.tasks)
	})
}

func TestRecoverStale(t *testing.T) {
	ctx := context.Background()

	t.Run(`stale processing check`, func(t *testing.T) {
		f := newFixture(0)
		old := time.Now().Add(-2 * time.Hour)
		fresh := time.Now()

		a1 := f.addAnswer(t, models.StageStatusProcessing, "")
		require.NoError(t, f.store.Answers().Update(a1, map[string]interface{}{
			"transcript_started_at": old,
			"transcript_attempts":   1,
		}))
		a2 := f.addAnswer(t, models.StageStatusProcessing, "")
		require.NoError(t, f.store.Answers().Update(a2, map[string]interface{}{
			"transcript_started_at": fresh,
		}))
		a3 := f.addAnswer(t, "", models.StageStatusProcessing)
		require.NoError(t, f.store.Answers().Update(a3, map[string]interface{}{
			"personality_started_at": old,
			"personality_attempts":   3,
		}))

		count, err := f.pipeline.RecoverStale(ctx, time.Hour)
		require.NoError(t, err)
		require.Equal(t, 2, count)
		require.Equal(t, models.StageStatusFailed, f.store.Answer(a1).TranscriptStatus)
		require.Equal(t, models.StageStatusProcessing, f.store.Answer(a2).TranscriptStatus)
		require.Equal(t, models.StageStatusDeadLetter, f.store.Answer(a3).PersonalityAnalysisStatus)
		require.Contains(t, f.store.Answer(a1).LastError, models.ErrTimeout.Error())
	})
}

func TestHandleTask(t *testing.T) {
	f := newFixture(0)
	err := f.pipeline.HandleTask(context.Background(), dispatcher.Task{Kind: "unknown", AnswerID: "a1"})
	require.Error(t, err)
	require.False(t, errors.Is(err, models.ErrTranscription))
}
