package scoring

import (
	"ats-engine/internal/types"
)

// scoreExperience 相关性(≤50) + 任期(≤30) + 时间线一致性(≤20)
func (e *Engine) scoreExperience(f *types.ExtractedFeatures, job *types.JobProfile, tl *timeline) (float64, types.ExperienceQualityDetail) {
	relevance := e.experienceRelevance(f, job, tl)
	duration := tenureScore(f, tl)
	consistency := consistencyScore(f, tl)
	d := types.ExperienceQualityDetail{
		Relevance:   round1(relevance),
		Duration:    round1(duration),
		Consistency: round1(consistency),
	}
	return round1(clamp(relevance+duration+consistency, 0, 100)), d
}

func (e *Engine) experienceRelevance(f *types.ExtractedFeatures, job *types.JobProfile, tl *timeline) float64 {
	var relevantMonths, datedMonths int
	for _, s := range tl.spans {
		datedMonths += s.months
		if job.Title != "" && e.rolesMatch(s.exp.Role, job.Title) {
			relevantMonths += s.months
		}
	}
	relevant := float64(relevantMonths) / 12
	total := totalYears(f, datedMonths)

	if job.MinYearsExp <= 0 {
		switch {
		case relevant > 0:
			return 50
		case total > 0 || len(f.StructuredExperience) > 0:
			return 35
		default:
			return 20
		}
	}
	byRelevant := 50 * clamp(relevant/job.MinYearsExp, 0, 1)
	byTotal := 30 * clamp(total/job.MinYearsExp, 0, 1)
	if byRelevant > byTotal {
		return byRelevant
	}
	return byTotal
}

// totalYears 优先使用抽取的总年限，缺失时按有日期的经历累计
func totalYears(f *types.ExtractedFeatures, datedMonths int) float64 {
	if y := ParseScore(f.TotalExperienceYears); y > 0 {
		return y
	}
	return float64(datedMonths) / 12
}

func tenureScore(f *types.ExtractedFeatures, tl *timeline) float64 {
	if len(f.StructuredExperience) == 0 {
		return 0
	}
	if len(tl.spans) == 0 {
		return 12
	}
	switch avg := tl.averageTenureMonths(); {
	case avg >= 36:
		return 30
	case avg >= 24:
		return 25
	case avg >= 12:
		return 18
	case avg >= 6:
		return 10
	default:
		return 5
	}
}

func consistencyScore(f *types.ExtractedFeatures, tl *timeline) float64 {
	if len(f.StructuredExperience) == 0 {
		return 0
	}
	if len(tl.spans) == 0 {
		return 10
	}
	score := 20.0
	for _, g := range tl.gaps {
		if g.months > longGapMonths {
			score -= 6
		} else {
			score -= 4
		}
	}
	score -= 3 * float64(tl.overlaps)
	score -= 5 * float64(tl.contradictions)
	return clamp(score, 0, 20)
}
