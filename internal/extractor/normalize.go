package extractor

import (
	"math"
	"strings"
	"time"

	"ats-engine/internal/knowledge"
	"ats-engine/internal/types"
	"ats-engine/pkg/utils"
)

// finalize 抽取后的统一后处理：技能去重、从描述中推断技能、补全总年限、挂上原文
func finalize(f *types.ExtractedFeatures, kb *knowledge.Base, rawText string, now time.Time) *types.ExtractedFeatures {
	f.RawText = rawText
	f.Skills = utils.DedupeFold(f.Skills)
	if f.InferredSkills == nil {
		f.InferredSkills = []string{}
	}
	if f.Source == types.SourceDefault {
		return f
	}

	declared := append([]string{}, f.Skills...)
	for _, p := range f.Projects {
		declared = append(declared, p.Technologies...)
	}

	var text strings.Builder
	for _, e := range f.StructuredExperience {
		text.WriteString(e.Role)
		text.WriteByte(' ')
		text.WriteString(e.Description)
		text.WriteByte('\n')
	}
	for _, p := range f.Projects {
		text.WriteString(p.Description)
		text.WriteByte('\n')
	}

	inferred := append([]string{}, f.InferredSkills...)
	if kb != nil {
		for _, s := range kb.MentionedSkills(text.String()) {
			if !utils.ContainsFold(declared, s) {
				inferred = append(inferred, s)
			}
		}
	}
	f.InferredSkills = utils.DedupeFold(inferred)

	if f.TotalExperienceYears <= 0 || math.IsNaN(f.TotalExperienceYears) || math.IsInf(f.TotalExperienceYears, 0) {
		f.TotalExperienceYears = datedYears(f.StructuredExperience, now)
	}
	return f
}

// datedYears 按有日期的经历累计年限，重叠部分不重复计算
func datedYears(exps []types.Experience, now time.Time) float64 {
	covered := make(map[int]struct{})
	for _, e := range exps {
		start, ok := utils.ParseResumeDate(e.Start, now)
		if !ok {
			continue
		}
		end, ok := utils.ParseResumeDate(e.End, now)
		if e.IsCurrent || (!ok && utils.IsPresent(e.End)) {
			end, ok = now, true
		}
		if !ok || end.Before(start) {
			continue
		}
		for m := monthIndex(start); m < monthIndex(end); m++ {
			covered[m] = struct{}{}
		}
	}
	return math.Round(float64(len(covered))/12*10) / 10
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}
