package aggregation

import (
	"sort"
	"video-assessment-backend/lib/utils/helpers"
	"video-assessment-backend/models"
	dbmodels "video-assessment-backend/models/db"
)

// Calculate сводные оценки попытки по оцененным ответам.
// Результат зависит только от переданного состояния, порядок ответов задает хранилище.
func Calculate(submissionID string, assessed []dbmodels.Answer, totalAnswers int, passScore float64, policy models.MethodAveragePolicy) dbmodels.SubmissionScores {
	result := dbmodels.SubmissionScores{
		SubmissionID:    submissionID,
		TotalAnswers:    totalAnswers,
		AssessedAnswers: len(assessed),
		AvgTraitScores:  dbmodels.TraitAverages{},
	}
	if len(assessed) == 0 {
		result.FinalRecommendation = models.Recommendation(0)
		result.PassFailStatus = models.GetPassFailStatus(0, passScore)
		return result
	}

	var overallSum, bertSum, geminiSum float64
	var bertCount, geminiCount int
	for _, answer := range assessed {
		overallSum += helpers.FloatValue(answer.OverallScore)
		if answer.BertOverall != nil {
			bertSum += *answer.BertOverall
			bertCount++
		}
		if answer.GeminiOverall != nil {
			geminiSum += *answer.GeminiOverall
			geminiCount++
		}
		result.TotalTextLength += answer.TextLength
	}
	if policy == models.MethodAverageAssessed || policy == "" {
		bertCount = len(assessed)
		geminiCount = len(assessed)
	}
	result.AvgOverallScore = helpers.Round(overallSum/float64(len(assessed)), models.ScorePrecision)
	result.AvgBertScore = mean(bertSum, bertCount)
	result.AvgGeminiScore = mean(geminiSum, geminiCount)
	result.AvgTraitScores = averageTraits(assessed)
	result.FinalRecommendation = models.Recommendation(result.AvgOverallScore)
	result.PassFailStatus = models.GetPassFailStatus(result.AvgOverallScore, passScore)
	return result
}

func mean(sum float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return helpers.Round(sum/float64(count), models.ScorePrecision)
}

type traitGroup struct {
	trait         string
	priority      int
	ensembleSum   float64
	confidenceSum float64
	count         int
}

func averageTraits(assessed []dbmodels.Answer) dbmodels.TraitAverages {
	groups := []*traitGroup{}
	byName := map[string]*traitGroup{}
	for _, answer := range assessed {
		for _, score := range answer.TraitScores {
			group, ok := byName[score.Trait]
			if !ok {
				// приоритет берется из первого вхождения критерия
				group = &traitGroup{trait: score.Trait, priority: score.Priority}
				byName[score.Trait] = group
				groups = append(groups, group)
			}
			group.ensembleSum += score.EnsembleScore
			group.confidenceSum += score.Confidence
			group.count++
		}
	}

	result := make(dbmodels.TraitAverages, 0, len(groups))
	for _, group := range groups {
		result = append(result, dbmodels.TraitAverage{
			Trait:         group.trait,
			EnsembleScore: helpers.Round(group.ensembleSum/float64(group.count), 2),
			Confidence:    helpers.Round(group.confidenceSum/float64(group.count), 3),
			Priority:      group.priority,
			Occurrences:   group.count,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority < result[j].Priority
	})
	return result
}
