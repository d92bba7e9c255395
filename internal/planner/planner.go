// Package planner turns a total question count and a percentage split into
// integer per-bucket quotas that always sum to the total.
package planner

import (
	"math"
	"sort"
	"strconv"

	"github.com/stemsi/prepgen-backend/internal/apperror"
	"github.com/stemsi/prepgen-backend/internal/model"
)

// PercentTolerance is how far a percentage split may drift from 100.
const PercentTolerance = 0.01

// floorEpsilon absorbs float noise such as 2.9999999999 when flooring exact shares.
const floorEpsilon = 1e-9

// Bucket is one label in a split with its target percentage (or weight).
type Bucket struct {
	Label   string
	Percent float64
}

// Quota is the integer count allotted to a bucket.
type Quota struct {
	Label string
	Count int
}

// Plan allocates total across buckets whose percentages sum to 100.
// Floors are taken first and the remainder goes to the largest fractional
// remainders, ties broken by declaration order. Output order matches input order.
func Plan(total int, buckets []Bucket) ([]Quota, error) {
	if total <= 0 {
		return nil, apperror.NewConfig("total", "must be positive, got %d", total)
	}
	sum, err := validate(buckets)
	if err != nil {
		return nil, err
	}
	if math.Abs(sum-100) > PercentTolerance {
		return nil, apperror.NewConfig("distribution", "percentages sum to %.2f, expected 100", sum)
	}
	return allocate(total, buckets, sum), nil
}

// PlanWeighted allocates total proportionally to arbitrary non-negative weights.
func PlanWeighted(total int, buckets []Bucket) ([]Quota, error) {
	if total <= 0 {
		return nil, apperror.NewConfig("total", "must be positive, got %d", total)
	}
	sum, err := validate(buckets)
	if err != nil {
		return nil, err
	}
	if sum <= 0 {
		return nil, apperror.NewConfig("distribution", "weights sum to zero")
	}
	return allocate(total, buckets, sum), nil
}

// Split is PlanWeighted that tolerates an empty cell: total == 0 yields zero quotas.
func Split(total int, buckets []Bucket) ([]Quota, error) {
	if total == 0 {
		if _, err := validate(buckets); err != nil {
			return nil, err
		}
		quotas := make([]Quota, len(buckets))
		for i, b := range buckets {
			quotas[i] = Quota{Label: b.Label}
		}
		return quotas, nil
	}
	return PlanWeighted(total, buckets)
}

// Sum returns the total of all quota counts.
func Sum(quotas []Quota) int {
	n := 0
	for _, q := range quotas {
		n += q.Count
	}
	return n
}

// ChapterBuckets builds weighted buckets for chapters keyed by chapter id.
// Weights are used when any is set, then estimated question counts, then equal shares.
func ChapterBuckets(chapters []model.Chapter) []Bucket {
	var weightSum, estimateSum float64
	for _, ch := range chapters {
		weightSum += ch.Weight
		estimateSum += float64(ch.EstimatedQuestions)
	}

	buckets := make([]Bucket, len(chapters))
	for i, ch := range chapters {
		b := Bucket{Label: ChapterLabel(ch.ID), Percent: 1}
		switch {
		case weightSum > 0:
			b.Percent = ch.Weight
		case estimateSum > 0:
			b.Percent = float64(ch.EstimatedQuestions)
		}
		buckets[i] = b
	}
	return buckets
}

// ChapterLabel is the bucket label used for a chapter id.
func ChapterLabel(id int) string {
	return strconv.Itoa(id)
}

func validate(buckets []Bucket) (float64, error) {
	if len(buckets) == 0 {
		return 0, apperror.NewConfig("distribution", "no buckets given")
	}

	seen := make(map[string]struct{}, len(buckets))
	var sum float64
	for _, b := range buckets {
		if b.Label == "" {
			return 0, apperror.NewConfig("distribution", "bucket label is empty")
		}
		if _, dup := seen[b.Label]; dup {
			return 0, apperror.NewConfig("distribution", "duplicate bucket %q", b.Label)
		}
		seen[b.Label] = struct{}{}

		if b.Percent < 0 || math.IsNaN(b.Percent) || math.IsInf(b.Percent, 0) {
			return 0, apperror.NewConfig("distribution", "bucket %q has invalid share %v", b.Label, b.Percent)
		}
		sum += b.Percent
	}
	return sum, nil
}

// allocate normalises by sum, so a split within tolerance of 100 never overshoots total.
func allocate(total int, buckets []Bucket, sum float64) []Quota {
	quotas := make([]Quota, len(buckets))
	fractions := make([]float64, len(buckets))

	assigned := 0
	for i, b := range buckets {
		exact := float64(total) * b.Percent / sum
		floor := math.Floor(exact + floorEpsilon)
		quotas[i] = Quota{Label: b.Label, Count: int(floor)}
		fractions[i] = exact - floor
		assigned += int(floor)
	}

	order := make([]int, len(buckets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return fractions[order[a]] > fractions[order[b]]+floorEpsilon
	})

	for remaining, k := total-assigned, 0; remaining > 0; remaining, k = remaining-1, k+1 {
		quotas[order[k%len(order)]].Count++
	}
	return quotas
}
