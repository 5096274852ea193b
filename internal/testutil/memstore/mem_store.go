// Package memstore хранилища в памяти с интерфейсами gorm-хранилищ.
// Только для тестов, сервис его не импортирует.
package memstore

import (
	"sort"
	"sync"
	"time"
	"video-assessment-backend/models"
	dbmodels "video-assessment-backend/models/db"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
)

type Store struct {
	mu                sync.Mutex
	answers           map[string]dbmodels.Answer
	submissions       map[string]dbmodels.Submission
	tests             map[string]dbmodels.Test
	questions         map[string]dbmodels.Question
	submissionScores  map[string]dbmodels.SubmissionScores
	personalityScores map[string]dbmodels.PersonalityScores
	seq               int
	// UpsertCount число записей сводных оценок
	UpsertCount int
}

func New() *Store {
	return &Store{
		answers:           map[string]dbmodels.Answer{},
		submissions:       map[string]dbmodels.Submission{},
		tests:             map[string]dbmodels.Test{},
		questions:         map[string]dbmodels.Question{},
		submissionScores:  map[string]dbmodels.SubmissionScores{},
		personalityScores: map[string]dbmodels.PersonalityScores{},
	}
}

func (s *Store) nextID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

// created_at монотонно растет, чтобы порядок выборок был детерминированным
func (s *Store) nextTime() time.Time {
	s.seq++
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Second)
}

func (s *Store) AddTest(rec dbmodels.Test) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID(rec.ID)
	s.tests[rec.ID] = rec
	return rec.ID
}

func (s *Store) AddQuestion(rec dbmodels.Question) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID(rec.ID)
	s.questions[rec.ID] = rec
	return rec.ID
}

func (s *Store) AddSubmission(rec dbmodels.Submission) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID(rec.ID)
	if rec.ScoringStatus == "" {
		rec.ScoringStatus = models.ScoringStatusPending
	}
	rec.Answers = nil
	s.submissions[rec.ID] = rec
	return rec.ID
}

// Answer текущее состояние ответа
func (s *Store) Answer(id string) dbmodels.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers[id]
}

func (s *Store) Submission(id string) dbmodels.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissions[id]
}

func (s *Store) Answers() AnswerStore {
	return AnswerStore{s: s}
}

func (s *Store) Submissions() SubmissionStore {
	return SubmissionStore{s: s}
}

func (s *Store) Questions() QuestionStore {
	return QuestionStore{s: s}
}

func (s *Store) SubmissionScores() SubmissionScoresStore {
	return SubmissionScoresStore{s: s}
}

func (s *Store) PersonalityScores() PersonalityScoresStore {
	return PersonalityScoresStore{s: s}
}

type AnswerStore struct {
	s *Store
}

func (a AnswerStore) Create(rec dbmodels.Answer) (id string, err error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	rec.ID = a.s.nextID(rec.ID)
	rec.CreatedAt = a.s.nextTime()
	rec.UpdatedAt = rec.CreatedAt
	if rec.TranscriptStatus == "" {
		rec.TranscriptStatus = models.StageStatusPending
	}
	if rec.PersonalityAnalysisStatus == "" {
		rec.PersonalityAnalysisStatus = models.StageStatusPending
	}
	a.s.answers[rec.ID] = rec
	return rec.ID, nil
}

func (a AnswerStore) GetByID(id string) (*dbmodels.Answer, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	rec, ok := a.s.answers[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (a AnswerStore) Update(id string, updMap map[string]interface{}) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	rec, ok := a.s.answers[id]
	if !ok {
		return errors.New("ответ не найден")
	}
	for key, value := range updMap {
		if err := applyAnswerField(&rec, key, value); err != nil {
			return err
		}
	}
	rec.UpdatedAt = time.Now()
	a.s.answers[id] = rec
	return nil
}

func (a AnswerStore) filter(keep func(rec dbmodels.Answer) bool, limit int) []dbmodels.Answer {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	list := []dbmodels.Answer{}
	for _, rec := range a.s.answers {
		if keep(rec) {
			list = append(list, rec)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}

func (a AnswerStore) ListBySubmission(submissionID string) ([]dbmodels.Answer, error) {
	return a.filter(func(rec dbmodels.Answer) bool {
		return rec.SubmissionID == submissionID
	}, 0), nil
}

func (a AnswerStore) ListAssessed(submissionID string) ([]dbmodels.Answer, error) {
	return a.filter(func(rec dbmodels.Answer) bool {
		return rec.SubmissionID == submissionID && rec.AssessedAt != nil
	}, 0), nil
}

func (a AnswerStore) ListPersonalityCompleted(submissionID string) ([]dbmodels.Answer, error) {
	return a.filter(func(rec dbmodels.Answer) bool {
		return rec.SubmissionID == submissionID && rec.PersonalityAnalysisStatus == models.StageStatusCompleted
	}, 0), nil
}

func (a AnswerStore) CountBySubmission(submissionID string) (int64, error) {
	list, _ := a.ListBySubmission(submissionID)
	return int64(len(list)), nil
}

func (a AnswerStore) CountPersonalityCompleted(submissionID string) (int64, error) {
	list, _ := a.ListPersonalityCompleted(submissionID)
	return int64(len(list)), nil
}

func (a AnswerStore) ListForTranscription(limit int) ([]dbmodels.Answer, error) {
	return a.filter(func(rec dbmodels.Answer) bool {
		return rec.TranscriptStatus.IsRetryable()
	}, limit), nil
}

func (a AnswerStore) ListForPersonality(limit int) ([]dbmodels.Answer, error) {
	return a.filter(func(rec dbmodels.Answer) bool {
		return rec.PersonalityAnalysisStatus.IsRetryable()
	}, limit), nil
}

func (a AnswerStore) ListStaleTranscription(startedBefore time.Time) ([]dbmodels.Answer, error) {
	return a.filter(func(rec dbmodels.Answer) bool {
		return rec.TranscriptStatus == models.StageStatusProcessing &&
			(rec.TranscriptStartedAt == nil || rec.TranscriptStartedAt.Before(startedBefore))
	}, 0), nil
}

func (a AnswerStore) ListStalePersonality(startedBefore time.Time) ([]dbmodels.Answer, error) {
	return a.filter(func(rec dbmodels.Answer) bool {
		return rec.PersonalityAnalysisStatus == models.StageStatusProcessing &&
			(rec.PersonalityStartedAt == nil || rec.PersonalityStartedAt.Before(startedBefore))
	}, 0), nil
}

func (a AnswerStore) ClaimStage(id string, kind models.StageKind, startedAt time.Time) (claimed bool, err error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	rec, ok := a.s.answers[id]
	if !ok {
		return false, nil
	}
	switch kind {
	case models.StageKindTranscription:
		if !rec.TranscriptStatus.IsRetryable() {
			return false, nil
		}
		rec.TranscriptStatus = models.StageStatusProcessing
		rec.TranscriptStartedAt = &startedAt
		rec.TranscriptAttempts++
		rec.LastError = ""
	case models.StageKindPersonality:
		if !rec.PersonalityAnalysisStatus.IsRetryable() {
			return false, nil
		}
		rec.PersonalityAnalysisStatus = models.StageStatusProcessing
		rec.PersonalityStartedAt = &startedAt
		rec.PersonalityAttempts++
	default:
		return false, models.ErrUnknownStage
	}
	rec.UpdatedAt = time.Now()
	a.s.answers[id] = rec
	return true, nil
}

type SubmissionStore struct {
	s *Store
}

func (p SubmissionStore) GetByID(id string) (*dbmodels.Submission, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	rec, ok := p.s.submissions[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (p SubmissionStore) GetTest(testID string) (*dbmodels.Test, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	rec, ok := p.s.tests[testID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (p SubmissionStore) ListByTest(testID string) ([]dbmodels.Submission, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	list := []dbmodels.Submission{}
	for _, rec := range p.s.submissions {
		if rec.TestID == testID {
			list = append(list, rec)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (p SubmissionStore) SetScoringStatus(id string, status models.ScoringStatus) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	rec, ok := p.s.submissions[id]
	if !ok {
		return errors.New("попытка не найдена")
	}
	rec.ScoringStatus = status
	p.s.submissions[id] = rec
	return nil
}

type QuestionStore struct {
	s *Store
}

func (q QuestionStore) GetByID(id string) (*dbmodels.Question, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	rec, ok := q.s.questions[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

type SubmissionScoresStore struct {
	s *Store
}

func (p SubmissionScoresStore) Upsert(rec dbmodels.SubmissionScores) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if current, ok := p.s.submissionScores[rec.SubmissionID]; ok {
		rec.ID = current.ID
		rec.CreatedAt = current.CreatedAt
	} else {
		rec.ID = uuid.New().String()
		rec.CreatedAt = time.Now()
	}
	rec.UpdatedAt = time.Now()
	p.s.submissionScores[rec.SubmissionID] = rec
	p.s.UpsertCount++
	return nil
}

func (p SubmissionScoresStore) GetBySubmission(submissionID string) (*dbmodels.SubmissionScores, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	rec, ok := p.s.submissionScores[submissionID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (p SubmissionScoresStore) ListBySubmissions(submissionIDs []string) ([]dbmodels.SubmissionScores, error) {
	list := []dbmodels.SubmissionScores{}
	for _, id := range submissionIDs {
		rec, _ := p.GetBySubmission(id)
		if rec != nil {
			list = append(list, *rec)
		}
	}
	return list, nil
}

type PersonalityScoresStore struct {
	s *Store
}

func (p PersonalityScoresStore) InsertOnce(rec dbmodels.PersonalityScores) (inserted bool, err error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if _, ok := p.s.personalityScores[rec.SubmissionID]; ok {
		return false, nil
	}
	rec.ID = uuid.New().String()
	rec.CreatedAt = time.Now()
	p.s.personalityScores[rec.SubmissionID] = rec
	return true, nil
}

func (p PersonalityScoresStore) GetBySubmission(submissionID string) (*dbmodels.PersonalityScores, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	rec, ok := p.s.personalityScores[submissionID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func applyAnswerField(rec *dbmodels.Answer, key string, value interface{}) (err error) {
	switch key {
	case "transcript":
		rec.Transcript, err = toStringPtr(value)
	case "transcript_status":
		rec.TranscriptStatus, err = toStatus(value)
	case "transcript_attempts":
		rec.TranscriptAttempts, err = toInt(value)
	case "transcript_started_at":
		rec.TranscriptStartedAt, err = toTimePtr(value)
	case "personality_analysis_status":
		rec.PersonalityAnalysisStatus, err = toStatus(value)
	case "personality_attempts":
		rec.PersonalityAttempts, err = toInt(value)
	case "personality_started_at":
		rec.PersonalityStartedAt, err = toTimePtr(value)
	case "openness":
		rec.Openness, err = toFloatPtr(value)
	case "conscientiousness":
		rec.Conscientiousness, err = toFloatPtr(value)
	case "extraversion":
		rec.Extraversion, err = toFloatPtr(value)
	case "agreeableness":
		rec.Agreeableness, err = toFloatPtr(value)
	case "neuroticism":
		rec.Neuroticism, err = toFloatPtr(value)
	case "personality_analyzed_at":
		rec.PersonalityAnalyzedAt, err = toTimePtr(value)
	case "personality_raw":
		rec.PersonalityRaw, err = toJSON(value)
	case "overall_score":
		rec.OverallScore, err = toFloatPtr(value)
	case "bert_overall":
		rec.BertOverall, err = toFloatPtr(value)
	case "gemini_overall":
		rec.GeminiOverall, err = toFloatPtr(value)
	case "trait_scores":
		scores, ok := value.(dbmodels.TraitScores)
		if !ok {
			return errors.Errorf("trait_scores: неподдерживаемый тип %T", value)
		}
		rec.TraitScores = scores
	case "recommendation":
		rec.Recommendation, err = toString(value)
	case "method_used":
		rec.MethodUsed, err = toString(value)
	case "text_length":
		rec.TextLength, err = toInt(value)
	case "assessed_at":
		rec.AssessedAt, err = toTimePtr(value)
	case "scoring_raw":
		rec.ScoringRaw, err = toJSON(value)
	case "last_error":
		rec.LastError, err = toString(value)
	default:
		return errors.Errorf("неизвестное поле ответа: %v", key)
	}
	if err != nil {
		return errors.Wrap(err, key)
	}
	return nil
}

func toString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case *string:
		if v == nil {
			return "", nil
		}
		return *v, nil
	}
	return "", errors.Errorf("неподдерживаемый тип %T", value)
}

func toStringPtr(value interface{}) (*string, error) {
	if value == nil {
		return nil, nil
	}
	if v, ok := value.(*string); ok {
		return v, nil
	}
	v, err := toString(value)
	return &v, err
}

func toStatus(value interface{}) (models.StageStatus, error) {
	switch v := value.(type) {
	case models.StageStatus:
		return v, nil
	case string:
		return models.StageStatus(v), nil
	}
	return "", errors.Errorf("неподдерживаемый тип %T", value)
}

func toInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	}
	return 0, errors.Errorf("неподдерживаемый тип %T", value)
}

func toTimePtr(value interface{}) (*time.Time, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &v, nil
	case *time.Time:
		return v, nil
	}
	return nil, errors.Errorf("неподдерживаемый тип %T", value)
}

func toFloatPtr(value interface{}) (*float64, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case float64:
		return &v, nil
	case *float64:
		return v, nil
	}
	return nil, errors.Errorf("неподдерживаемый тип %T", value)
}

func toJSON(value interface{}) (datatypes.JSON, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case datatypes.JSON:
		return v, nil
	case []byte:
		return datatypes.JSON(v), nil
	}
	return nil, errors.Errorf("неподдерживаемый тип %T", value)
}
