package scoreshandler

import (
	"bytes"
	"context"
	"fmt"
	answerstore "video-assessment-backend/lib/answer/store"
	personalityscoresstore "video-assessment-backend/lib/personality-scores/store"
	submissionscoresstore "video-assessment-backend/lib/submission-scores/store"
	submissionstore "video-assessment-backend/lib/submission/store"
	scoresapimodels "video-assessment-backend/models/api/scores"
	dbmodels "video-assessment-backend/models/db"
	s3client "video-assessment-backend/s3"

	"github.com/pkg/errors"
)

type Provider interface {
	// GetSubmissionView nil, если попытка не найдена
	GetSubmissionView(submissionID string) (*scoresapimodels.SubmissionView, error)
	ListTestViews(testID string) ([]scoresapimodels.SubmissionView, error)
	// ArchiveReport сохраняет pdf отчет в хранилище, пустой objectName - хранилище не настроено
	ArchiveReport(ctx context.Context, submissionID string, body []byte) (objectName string, err error)
}

type ArchiveConfig struct {
	Storage s3client.Provider
	Bucket  string
}

var Instance Provider

func NewHandler(archive ArchiveConfig, answerStore answerstore.Provider, submissionStore submissionstore.Provider,
	scoresStore submissionscoresstore.Provider, personalityStore personalityscoresstore.Provider) {
	Instance = NewInstance(archive, answerStore, submissionStore, scoresStore, personalityStore)
}

func NewInstance(archive ArchiveConfig, answerStore answerstore.Provider, submissionStore submissionstore.Provider,
	scoresStore submissionscoresstore.Provider, personalityStore personalityscoresstore.Provider) Provider {
	return impl{
		archive:          archive,
		answerStore:      answerStore,
		submissionStore:  submissionStore,
		scoresStore:      scoresStore,
		personalityStore: personalityStore,
	}
}

type impl struct {
	archive          ArchiveConfig
	answerStore      answerstore.Provider
	submissionStore  submissionstore.Provider
	scoresStore      submissionscoresstore.Provider
	personalityStore personalityscoresstore.Provider
}

func (i impl) ArchiveReport(ctx context.Context, submissionID string, body []byte) (string, error) {
	if i.archive.Storage == nil || i.archive.Bucket == "" {
		return "", nil
	}
	objectName := fmt.Sprintf("reports/%v.pdf", submissionID)
	err := i.archive.Storage.Upload(ctx, i.archive.Bucket, objectName, bytes.NewReader(body), int64(len(body)), "application/pdf")
	if err != nil {
		return "", errors.Wrap(err, "ошибка сохранения отчета в хранилище")
	}
	return objectName, nil
}

func (i impl) GetSubmissionView(submissionID string) (*scoresapimodels.SubmissionView, error) {
	rec, err := i.submissionStore.GetByID(submissionID)
	if err != nil {
		return nil, errors.Wrap(err, "ошибка получения попытки")
	}
	if rec == nil {
		return nil, nil
	}
	scores, err := i.scoresStore.GetBySubmission(submissionID)
	if err != nil {
		return nil, errors.Wrap(err, "ошибка получения сводных оценок")
	}
	view, err := i.buildView(*rec, scores)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (i impl) ListTestViews(testID string) ([]scoresapimodels.SubmissionView, error) {
	list, err := i.submissionStore.ListByTest(testID)
	if err != nil {
		return nil, errors.Wrap(err, "ошибка получения списка попыток")
	}
	ids := make([]string, 0, len(list))
	for _, rec := range list {
		ids = append(ids, rec.ID)
	}
	scoresList, err := i.scoresStore.ListBySubmissions(ids)
	if err != nil {
		return nil, errors.Wrap(err, "ошибка получения сводных оценок")
	}
	scoresMap := make(map[string]dbmodels.SubmissionScores, len(scoresList))
	for _, rec := range scoresList {
		scoresMap[rec.SubmissionID] = rec
	}
	result := make([]scoresapimodels.SubmissionView, 0, len(list))
	for _, rec := range list {
		var scores *dbmodels.SubmissionScores
		if item, ok := scoresMap[rec.ID]; ok {
			scores = &item
		}
		view, err := i.buildView(rec, scores)
		if err != nil {
			return nil, err
		}
		result = append(result, view)
	}
	return result, nil
}

func (i impl) buildView(rec dbmodels.Submission, scores *dbmodels.SubmissionScores) (scoresapimodels.SubmissionView, error) {
	personality, err := i.personalityStore.GetBySubmission(rec.ID)
	if err != nil {
		return scoresapimodels.SubmissionView{}, errors.Wrap(err, "ошибка получения личностных оценок")
	}
	answers, err := i.answerStore.ListBySubmission(rec.ID)
	if err != nil {
		return scoresapimodels.SubmissionView{}, errors.Wrap(err, "ошибка получения ответов")
	}
	view := scoresapimodels.SubmissionView{
		SubmissionID:  rec.ID,
		TestID:        rec.TestID,
		CandidateID:   rec.CandidateID,
		SubmittedAt:   rec.SubmittedAt,
		ScoringStatus: rec.ScoringStatus,
		Scores:        scoresapimodels.NewScoresView(scores),
		Personality:   scoresapimodels.NewPersonalityView(personality),
		Answers:       make([]scoresapimodels.AnswerView, 0, len(answers)),
	}
	for _, answer := range answers {
		view.Answers = append(view.Answers, scoresapimodels.NewAnswerView(answer))
	}
	return view, nil
}
