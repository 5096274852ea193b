package scoreshandler

import (
	"context"
	"io"
	"testing"
	"video-assessment-backend/internal/testutil/memstore"
	"video-assessment-backend/lib/utils/helpers"
	"video-assessment-backend/models"
	dbmodels "video-assessment-backend/models/db"

	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	objects map[string][]byte
}

func (f *fakeStorage) MakeBucket(_ context.Context, _ string) error {
	return nil
}

func (f *fakeStorage) Download(_ context.Context, _, _ string, _ io.Writer) error {
	return nil
}

func (f *fakeStorage) Upload(_ context.Context, bucketName, objectName string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[bucketName+"/"+objectName] = data
	return nil
}

func TestSubmissionView(t *testing.T) {
	store := memstore.New()
	testID := store.AddTest(dbmodels.Test{Title: "Backend developer"})
	submissionID := store.AddSubmission(dbmodels.Submission{TestID: testID, CandidateID: "c1"})
	otherID := store.AddSubmission(dbmodels.Submission{TestID: testID, CandidateID: "c2"})
	_, err := store.Answers().Create(dbmodels.Answer{SubmissionID: submissionID, VideoURL: "https://cdn/1.mp4"})
	require.NoError(t, err)
	answerID, err := store.Answers().Create(dbmodels.Answer{SubmissionID: submissionID, VideoURL: "https://cdn/2.mp4"})
	require.NoError(t, err)
	require.NoError(t, store.Answers().Update(answerID, map[string]interface{}{
		"transcript_status": models.StageStatusCompleted,
		"overall_score":     helpers.FloatPtr(8.5),
		"recommendation":    models.RecommendationStrong,
	}))
	require.NoError(t, store.SubmissionScores().Upsert(dbmodels.SubmissionScores{
		SubmissionID:        submissionID,
		AvgOverallScore:     8.5,
		TotalAnswers:        2,
		AssessedAnswers:     1,
		FinalRecommendation: models.RecommendationStrong,
		PassFailStatus:      models.PassFailStatusPassed,
	}))
	storage := &fakeStorage{}
	handler := NewInstance(ArchiveConfig{Storage: storage, Bucket: "interview-videos"},
		store.Answers(), store.Submissions(), store.SubmissionScores(), store.PersonalityScores())

	t.Run(`partial result check`, func(t *testing.T) {
		view, err := handler.GetSubmissionView(submissionID)
		require.NoError(t, err)
		require.NotNil(t, view)
		require.Equal(t, "c1", view.CandidateID)
		require.NotNil(t, view.Scores)
		require.Equal(t, 1, view.Scores.AssessedAnswers)
		require.Equal(t, 2, view.Scores.TotalAnswers)
		require.Nil(t, view.Personality)
		require.Len(t, view.Answers, 2)
		require.Equal(t, answerID, view.Answers[1].AnswerID)
		require.Equal(t, 8.5, *view.Answers[1].OverallScore)
	})
	t.Run(`submission without scores check`, func(t *testing.T) {
		view, err := handler.GetSubmissionView(otherID)
		require.NoError(t, err)
		require.NotNil(t, view)
		require.Nil(t, view.Scores)
		require.Empty(t, view.Answers)
	})
	t.Run(`unknown submission check`, func(t *testing.T) {
		view, err := handler.GetSubmissionView("missing")
		require.NoError(t, err)
		require.Nil(t, view)
	})
	t.Run(`report archive check`, func(t *testing.T) {
		objectName, err := handler.ArchiveReport(context.Background(), submissionID, []byte("%PDF-1.3"))
		require.NoError(t, err)
		require.Equal(t, "reports/"+submissionID+".pdf", objectName)
		require.Equal(t, "%PDF-1.3", string(storage.objects["interview-videos/"+objectName]))

		noStorage := NewInstance(ArchiveConfig{}, store.Answers(), store.Submissions(), store.SubmissionScores(), store.PersonalityScores())
		objectName, err = noStorage.ArchiveReport(context.Background(), submissionID, []byte("%PDF-1.3"))
		require.NoError(t, err)
		require.Empty(t, objectName)
	})
	t.Run(`test list check`, func(t *testing.T) {
		list, err := handler.ListTestViews(testID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		withScores := 0
		for _, view := range list {
			if view.Scores != nil {
				withScores++
				require.Equal(t, submissionID, view.SubmissionID)
			}
		}
		require.Equal(t, 1, withScores)
	})
}
