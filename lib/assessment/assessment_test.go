package assessment

import (
	"context"
	"testing"
	"video-assessment-backend/internal/testutil/memstore"
	"video-assessment-backend/lib/utils/helpers"
	"video-assessment-backend/models"
	scoringapimodels "video-assessment-backend/models/api/scoring"
	dbmodels "video-assessment-backend/models/db"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeScoring struct {
	prompts []string
	err     error
}

func (f *fakeScoring) Assess(ctx context.Context, text string) (scoringapimodels.AssessResult, error) {
	f.prompts = append(f.prompts, text)
	if f.err != nil {
		return scoringapimodels.AssessResult{}, f.err
	}
	return scoringapimodels.AssessResult{
		AssessResponse: scoringapimodels.AssessResponse{
			OverallScore:  helpers.FloatPtr(7.4),
			BertOverall:   helpers.FloatPtr(7.0),
			GeminiOverall: nil,
			TraitScores: []dbmodels.TraitScore{
				{Trait: "Teamwork", EnsembleScore: 7.4, Priority: 2, Confidence: 0.8},
			},
			Recommendation: "Good candidate - Recommended",
			MethodUsed:     "bert",
			TextLength:     17,
		},
		Raw: []byte(`{"overall_score":7.4}`),
	}, nil
}

type fakeAggregator struct {
	calls []string
	err   error
}

func (f *fakeAggregator) RecalculateSubmissionScores(ctx context.Context, submissionID string) error {
	f.calls = append(f.calls, submissionID)
	return f.err
}

func TestAssessAnswer(t *testing.T) {
	ctx := context.Background()

	prepare := func(t *testing.T, transcript *string) (*memstore.Store, string) {
		store := memstore.New()
		questionID := store.AddQuestion(dbmodels.Question{Text: "How do you handle conflicts?"})
		id, err := store.Answers().Create(dbmodels.Answer{
			SubmissionID: "s1",
			QuestionID:   questionID,
			VideoURL:     "https://cdn/v.mp4",
			Transcript:   transcript,
		})
		require.NoError(t, err)
		return store, id
	}

	t.Run(`success check`, func(t *testing.T) {
		store, id := prepare(t, helpers.StringPtr("I talk it through."))
		scoring := &fakeScoring{}
		aggregator := &fakeAggregator{}
		err := NewInstance(store.Answers(), store.Questions(), scoring, aggregator).AssessAnswer(ctx, id)
		require.NoError(t, err)

		require.Equal(t, []string{"Question: How do you handle conflicts?\n\nResponse: I talk it through."}, scoring.prompts)
		require.Equal(t, []string{"s1"}, aggregator.calls)

		answer := store.Answer(id)
		require.Equal(t, 7.4, *answer.OverallScore)
		require.Equal(t, 7.0, *answer.BertOverall)
		require.Nil(t, answer.GeminiOverall)
		require.Len(t, answer.TraitScores, 1)
		require.Equal(t, "Teamwork", answer.TraitScores[0].Trait)
		require.Equal(t, "bert", answer.MethodUsed)
		require.Equal(t, 17, answer.TextLength)
		require.NotNil(t, answer.AssessedAt)
		require.JSONEq(t, `{"overall_score":7.4}`, string(answer.ScoringRaw))
	})

	t.Run(`missing transcript check`, func(t *testing.T) {
		store, id := prepare(t, nil)
		scoring := &fakeScoring{}
		err := NewInstance(store.Answers(), store.Questions(), scoring, &fakeAggregator{}).AssessAnswer(ctx, id)
		require.True(t, errors.Is(err, models.ErrMissingTranscript))
		require.Empty(t, scoring.prompts)
	})

	t.Run(`scoring failure check`, func(t *testing.T) {
		store, id := prepare(t, helpers.StringPtr("text"))
		aggregator := &fakeAggregator{}
		scoring := &fakeScoring{err: models.NewStageError(models.ErrScoringService, nil, "500")}
		err := NewInstance(store.Answers(), store.Questions(), scoring, aggregator).AssessAnswer(ctx, id)
		require.True(t, errors.Is(err, models.ErrScoringService))
		require.Nil(t, store.Answer(id).AssessedAt)
		require.Empty(t, aggregator.calls)
	})

	t.Run(`aggregation failure is not an assessment failure check`, func(t *testing.T) {
		store, id := prepare(t, helpers.StringPtr("text"))
		aggregator := &fakeAggregator{err: models.NewStageError(models.ErrAggregation, nil, "db down")}
		err := NewInstance(store.Answers(), store.Questions(), &fakeScoring{}, aggregator).AssessAnswer(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, store.Answer(id).AssessedAt)
	})

	t.Run(`unknown answer check`, func(t *testing.T) {
		store, _ := prepare(t, nil)
		err := NewInstance(store.Answers(), store.Questions(), &fakeScoring{}, &fakeAggregator{}).AssessAnswer(ctx, "missing")
		require.Error(t, err)
	})
}
