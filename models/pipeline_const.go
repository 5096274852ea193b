package models

// Статус этапа обработки видео ответа (транскрибация, анализ личности)
type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusProcessing StageStatus = "processing"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusFailed     StageStatus = "failed"
	StageStatusDeadLetter StageStatus = "dead_letter" // исчерпаны попытки, только ручной перезапуск
)

// IsRetryable статусы, которые подхватывает задача обработки необработанных ответов
func (s StageStatus) IsRetryable() bool {
	return s == StageStatusPending || s == StageStatusFailed
}

type PassFailStatus string

const (
	PassFailStatusPassed PassFailStatus = "passed"
	PassFailStatusFailed PassFailStatus = "failed"
)

type ScoringStatus string

const (
	ScoringStatusPending   ScoringStatus = "pending"
	ScoringStatusCompleted ScoringStatus = "completed"
)

// Этап обработки ответа
type StageKind string

const (
	StageKindTranscription StageKind = "transcription"
	StageKindPersonality   StageKind = "personality"
)

// Политика усреднения оценок BERT/Gemini
type MethodAveragePolicy string

const (
	MethodAverageAssessed MethodAveragePolicy = "assessed" // делитель - все оцененные ответы, отсутствующая оценка = 0
	MethodAveragePresent  MethodAveragePolicy = "present"  // делитель - ответы, где метод вернул оценку
)

const (
	DefaultPassScore       = 6.0
	DefaultAnalysisVersion = "v1.0"
)

// FailureStatus статус этапа после неудачной попытки
func FailureStatus(attempts, maxAttempts int) StageStatus {
	if maxAttempts > 0 && attempts >= maxAttempts {
		return StageStatusDeadLetter
	}
	return StageStatusFailed
}
