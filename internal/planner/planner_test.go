package planner

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stemsi/prepgen-backend/internal/apperror"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counts(quotas []Quota) map[string]int {
	m := make(map[string]int, len(quotas))
	for _, q := range quotas {
		m[q.Label] = q.Count
	}
	return m
}

func difficultySplit(easy, medium, hard float64) []Bucket {
	return []Bucket{{"easy", easy}, {"medium", medium}, {"hard", hard}}
}

func TestPlanScenarios(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		buckets []Bucket
		want    map[string]int
	}{
		{"exact split", 10, difficultySplit(30, 50, 20), map[string]int{"easy": 3, "medium": 5, "hard": 2}},
		{"largest remainder wins", 7, difficultySplit(33, 34, 33), map[string]int{"easy": 2, "medium": 3, "hard": 2}},
		{"tie goes to first declared", 1, []Bucket{{"a", 50}, {"b", 50}}, map[string]int{"a": 1, "b": 0}},
		{"two left over", 5, difficultySplit(33.33, 33.34, 33.33), map[string]int{"easy": 2, "medium": 2, "hard": 1}},
		{"zero bucket", 4, difficultySplit(0, 100, 0), map[string]int{"easy": 0, "medium": 4, "hard": 0}},
		{"single bucket", 13, []Bucket{{"only", 100}}, map[string]int{"only": 13}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quotas, err := Plan(tt.total, tt.buckets)
			require.NoError(t, err)
			assert.Equal(t, tt.want, counts(quotas))
			assert.Equal(t, tt.total, Sum(quotas))
		})
	}
}

func TestPlanPreservesDeclarationOrder(t *testing.T) {
	quotas, err := Plan(10, difficultySplit(20, 30, 50))
	require.NoError(t, err)
	require.Len(t, quotas, 3)
	assert.Equal(t, "easy", quotas[0].Label)
	assert.Equal(t, "medium", quotas[1].Label)
	assert.Equal(t, "hard", quotas[2].Label)
}

func TestPlanRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		buckets []Bucket
	}{
		{"zero total", 0, difficultySplit(30, 50, 20)},
		{"negative total", -3, difficultySplit(30, 50, 20)},
		{"sum below 100", 10, difficultySplit(30, 50, 10)},
		{"sum above 100", 10, difficultySplit(40, 50, 20)},
		{"negative percent", 10, difficultySplit(-10, 90, 20)},
		{"no buckets", 10, nil},
		{"duplicate label", 10, []Bucket{{"easy", 50}, {"easy", 50}}},
		{"empty label", 10, []Bucket{{"", 100}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(tt.total, tt.buckets)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrConfig), "got %v", err)
		})
	}
}

func TestPlanAcceptsSumWithinTolerance(t *testing.T) {
	quotas, err := Plan(9, difficultySplit(33.333, 33.333, 33.333))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"easy": 3, "medium": 3, "hard": 3}, counts(quotas))
}

func TestPlanQuotasAlwaysSumToTotal(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))

	for i := 0; i < 2000; i++ {
		n := 1 + r.IntN(5)
		raw := make([]float64, n)
		var rawSum float64
		for j := range raw {
			raw[j] = r.Float64()
			rawSum += raw[j]
		}

		buckets := make([]Bucket, n)
		var assigned float64
		for j := range buckets {
			pct := raw[j] / rawSum * 100
			if j == n-1 {
				pct = 100 - assigned
			}
			assigned += pct
			buckets[j] = Bucket{Label: string(rune('a' + j)), Percent: pct}
		}

		total := 1 + r.IntN(500)
		quotas, err := Plan(total, buckets)
		require.NoError(t, err)
		require.Equal(t, total, Sum(quotas), "buckets %+v", buckets)
		for _, q := range quotas {
			require.GreaterOrEqual(t, q.Count, 0)
		}
	}
}

func TestPlanWeighted(t *testing.T) {
	quotas, err := PlanWeighted(12, []Bucket{{"1", 2}, {"2", 1}, {"3", 1}})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"1": 6, "2": 3, "3": 3}, counts(quotas))

	_, err = PlanWeighted(12, []Bucket{{"1", 0}, {"2", 0}})
	assert.ErrorIs(t, err, apperror.ErrConfig)
}

func TestSplitAllowsEmptyCell(t *testing.T) {
	quotas, err := Split(0, []Bucket{{"x", 1}, {"y", 3}})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"x": 0, "y": 0}, counts(quotas))

	quotas, err = Split(4, []Bucket{{"x", 1}, {"y", 3}})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"x": 1, "y": 3}, counts(quotas))
}

func TestChapterBuckets(t *testing.T) {
	t.Run("weights win", func(t *testing.T) {
		buckets := ChapterBuckets([]model.Chapter{
			{ID: 1, Weight: 60, EstimatedQuestions: 1},
			{ID: 2, Weight: 40, EstimatedQuestions: 9},
		})
		assert.Equal(t, []Bucket{{"1", 60}, {"2", 40}}, buckets)
	})

	t.Run("estimates when no weights", func(t *testing.T) {
		buckets := ChapterBuckets([]model.Chapter{
			{ID: 1, EstimatedQuestions: 5},
			{ID: 2, EstimatedQuestions: 15},
		})
		assert.Equal(t, []Bucket{{"1", 5}, {"2", 15}}, buckets)
	})

	t.Run("equal shares otherwise", func(t *testing.T) {
		buckets := ChapterBuckets([]model.Chapter{{ID: 4}, {ID: 9}})
		assert.Equal(t, []Bucket{{"4", 1}, {"9", 1}}, buckets)
	})
}
