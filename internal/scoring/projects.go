package scoring

import (
	"regexp"
	"strings"

	"ats-engine/internal/types"
)

var (
	projectHeader = regexp.MustCompile(`(?im)^\s*(?:key\s+|personal\s+|selected\s+)?projects?\s*:?\s*$|^\s*项目经[历验]`)
	quantified    = regexp.MustCompile(`(?i)\d+(?:[.,]\d+)?\s*(?:%|percent|x\b|k\b|m\b|ms\b|users|customers|clients|requests|transactions|hours|days|people|engineers|倍|万|人)|[$€£¥]\s?\d`)
	impactVerbs   = regexp.MustCompile(`(?i)\b(?:increased|reduced|improved|grew|saved|cut|boosted|accelerated|launched|delivered|doubled|tripled|optimized|scaled)\b`)
)

// scoreProjects 是否有项目(≤30) + 细节(≤40) + 量化成果(≤30)
func scoreProjects(f *types.ExtractedFeatures) (float64, types.ProjectsImpactDetail) {
	presence := projectPresence(f)
	details := projectDetails(f)
	results := projectResults(f)
	d := types.ProjectsImpactDetail{
		Presence: round1(presence),
		Details:  round1(details),
		Results:  round1(results),
	}
	return round1(clamp(presence+details+results, 0, 100)), d
}

func projectPresence(f *types.ExtractedFeatures) float64 {
	if len(f.Projects) > 0 {
		return 30
	}
	if projectHeader.MatchString(f.RawText) {
		return 20
	}
	for _, exp := range f.StructuredExperience {
		if strings.Contains(strings.ToLower(exp.Description), "project") {
			return 10
		}
	}
	return 0
}

func projectDetails(f *types.ExtractedFeatures) float64 {
	if len(f.Projects) > 0 {
		var sum float64
		for _, p := range f.Projects {
			tech := clamp(float64(len(p.Technologies))/3, 0, 1)
			sum += 0.5*tech + 0.5*specificity(p.Description)
		}
		return 40 * sum / float64(len(f.Projects))
	}
	if len(f.StructuredExperience) == 0 {
		return 0
	}
	var sum float64
	for _, exp := range f.StructuredExperience {
		sum += specificity(exp.Description)
	}
	return 40 * 0.6 * sum / float64(len(f.StructuredExperience))
}

// specificity 描述越长越具体，30个词封顶
func specificity(desc string) float64 {
	return clamp(float64(len(strings.Fields(desc)))/30, 0, 1)
}

func projectResults(f *types.ExtractedFeatures) float64 {
	var text strings.Builder
	for _, p := range f.Projects {
		text.WriteString(p.Description)
		text.WriteByte('\n')
	}
	for _, exp := range f.StructuredExperience {
		text.WriteString(exp.Description)
		text.WriteByte('\n')
	}
	body := text.String()
	n := len(quantified.FindAllStringIndex(body, -1)) + len(impactVerbs.FindAllStringIndex(body, -1))
	switch {
	case n >= 4:
		return 30
	case n == 3:
		return 24
	case n == 2:
		return 18
	case n == 1:
		return 10
	default:
		return 0
	}
}
