package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecommendation(t *testing.T) {
	t.Run(`thresholds check`, func(t *testing.T) {
		require.Equal(t, RecommendationExcellent, Recommendation(10))
		require.Equal(t, RecommendationExcellent, Recommendation(9.0))
		require.Equal(t, RecommendationStrong, Recommendation(8.999))
		require.Equal(t, RecommendationStrong, Recommendation(8.0))
		require.Equal(t, RecommendationGood, Recommendation(7.999))
		require.Equal(t, RecommendationGood, Recommendation(7.0))
		require.Equal(t, RecommendationAverage, Recommendation(6.0))
		require.Equal(t, RecommendationWeak, Recommendation(5.999))
		require.Equal(t, RecommendationWeak, Recommendation(0))
	})
	t.Run(`pass fail check`, func(t *testing.T) {
		require.Equal(t, PassFailStatusPassed, GetPassFailStatus(6, 6))
		require.Equal(t, PassFailStatusPassed, GetPassFailStatus(7.5, 7.5))
		require.Equal(t, PassFailStatusFailed, GetPassFailStatus(7.499, 7.5))
	})
	t.Run(`failure status check`, func(t *testing.T) {
		require.Equal(t, StageStatusFailed, FailureStatus(1, 3))
		require.Equal(t, StageStatusFailed, FailureStatus(2, 3))
		require.Equal(t, StageStatusDeadLetter, FailureStatus(3, 3))
		require.Equal(t, StageStatusFailed, FailureStatus(10, 0))
	})
}
