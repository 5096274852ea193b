package models

const (
	RecommendationExcellent = "Excellent candidate - Highly recommended"
	RecommendationStrong    = "Strong candidate - Recommended"
	RecommendationGood      = "Good candidate - Recommended"
	RecommendationAverage   = "Average candidate - Consider for specific roles"
	RecommendationWeak      = "Weak candidate - Not recommended"
)

// ScorePrecision знаков после запятой у средних оценок попытки
const ScorePrecision = 3

// Recommendation итоговая рекомендация по округленной средней оценке
func Recommendation(avgScore float64) string {
	switch {
	case avgScore >= 9.0:
		return RecommendationExcellent
	case avgScore >= 8.0:
		return RecommendationStrong
	case avgScore >= 7.0:
		return RecommendationGood
	case avgScore >= 6.0:
		return RecommendationAverage
	default:
		return RecommendationWeak
	}
}

func GetPassFailStatus(avgScore, passScore float64) PassFailStatus {
	if avgScore >= passScore {
		return PassFailStatusPassed
	}
	return PassFailStatusFailed
}
