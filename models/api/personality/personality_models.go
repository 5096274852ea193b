package personalityapimodels

import dbmodels "video-assessment-backend/models/db"

const StatusSuccess = "success"

type AnalyzeResponse struct {
	Status            string                      `json:"status"`
	Message           string                      `json:"message,omitempty"`
	PersonalityScores *dbmodels.PersonalityTraits `json:"personality_scores"`
}

// IsComplete все пять черт присутствуют в ответе
func (r AnalyzeResponse) IsComplete() bool {
	s := r.PersonalityScores
	return s != nil &&
		s.Openness != nil &&
		s.Conscientiousness != nil &&
		s.Extraversion != nil &&
		s.Agreeableness != nil &&
		s.Neuroticism != nil
}

type AnalyzeResult struct {
	Traits dbmodels.PersonalityTraits
	Raw    []byte
}
