package scoring

import (
	"strings"

	"ats-engine/internal/knowledge"
	"ats-engine/internal/types"
	"ats-engine/pkg/utils"
)

const (
	maxFocusSkills   = 10
	depthMentionsCap = 3.0
)

var matchCredit = map[knowledge.MatchKind]float64{
	knowledge.MatchExact:          1.0,
	knowledge.MatchSubstring:      0.9,
	knowledge.MatchRelated:        0.75,
	knowledge.MatchSharedCategory: 0.5,
}

// candidateSkills 候选人声明技能 + 项目技术栈 + 从描述推断的技能，去重保序
func candidateSkills(f *types.ExtractedFeatures) []string {
	all := make([]string, 0, len(f.Skills)+len(f.InferredSkills))
	all = append(all, f.Skills...)
	for _, p := range f.Projects {
		all = append(all, p.Technologies...)
	}
	all = append(all, f.InferredSkills...)
	return utils.DedupeFold(all)
}

// scoreSkills 覆盖度(≤40) + 深度(≤30) + 时效(≤30)，同时给出必备技能的直接/推断/缺失划分。
// 第四个返回值为必备技能的加权覆盖率，风险标记会用到。
func (e *Engine) scoreSkills(f *types.ExtractedFeatures, job *types.JobProfile, skills []string, tl *timeline) (float64, types.SkillsQualityDetail, types.SkillsAnalysis, float64) {
	analysis := types.SkillsAnalysis{
		DirectMatches:   []string{},
		InferredMatches: []types.InferredMatch{},
		Missing:         []string{},
	}

	required := utils.DedupeFold(job.RequiredSkills)
	var focus []string
	var reqCredit float64
	for _, req := range required {
		skill, m, ok := e.kb.BestMatch(req, skills)
		if !ok {
			analysis.Missing = append(analysis.Missing, req)
			continue
		}
		reqCredit += matchCredit[m.Kind]
		focus = append(focus, skill)
		if m.Kind == knowledge.MatchExact || m.Kind == knowledge.MatchSubstring {
			analysis.DirectMatches = append(analysis.DirectMatches, req)
			continue
		}
		analysis.InferredMatches = append(analysis.InferredMatches, types.InferredMatch{
			JobRequirement: req,
			CandidateSkill: skill,
			Reason:         m.Reason(skill, req),
		})
	}

	var coverage, ratio float64
	if len(required) == 0 {
		ratio = 1
		coverage = 10
		if len(skills) > 0 {
			coverage = 30
		}
	} else {
		ratio = reqCredit / float64(len(required))
		optional := utils.DedupeFold(job.OptionalSkills)
		if len(optional) == 0 {
			coverage = 40 * ratio
		} else {
			var optCredit float64
			for _, opt := range optional {
				if skill, m, ok := e.kb.BestMatch(opt, skills); ok {
					optCredit += matchCredit[m.Kind]
					focus = append(focus, skill)
				}
			}
			coverage = 40 * (0.9*ratio + 0.1*optCredit/float64(len(optional)))
		}
	}

	if len(required) == 0 {
		focus = skills
	}
	focus = utils.DedupeFold(focus)
	if len(focus) > maxFocusSkills {
		focus = focus[:maxFocusSkills]
	}

	depth := skillDepth(f, focus)
	recency := skillRecency(f, focus, tl)

	d := types.SkillsQualityDetail{
		Coverage: round1(coverage),
		Depth:    round1(depth),
		Recency:  round1(recency),
	}
	return round1(clamp(coverage+depth+recency, 0, 100)), d, analysis, ratio
}

// skillDepth 技能在经历和项目描述中被提及的平均次数，3次封顶
func skillDepth(f *types.ExtractedFeatures, focus []string) float64 {
	if len(focus) == 0 {
		return 0
	}
	var text strings.Builder
	for _, exp := range f.StructuredExperience {
		text.WriteString(exp.Description)
		text.WriteByte('\n')
	}
	for _, p := range f.Projects {
		text.WriteString(p.Description)
		text.WriteByte(' ')
		text.WriteString(strings.Join(p.Technologies, " "))
		text.WriteByte('\n')
	}
	body := text.String()
	total := 0
	for _, s := range focus {
		total += knowledge.CountMentions(body, s)
	}
	avg := float64(total) / float64(len(focus))
	return 30 * clamp(avg/depthMentionsCap, 0, 1)
}

// skillRecency 最近两段经历中使用记 1，更早的经历记 0.4，从未出现记 0.2
func skillRecency(f *types.ExtractedFeatures, focus []string, tl *timeline) float64 {
	if len(focus) == 0 {
		return 0
	}
	recent := tl.recentIndexes(f.StructuredExperience, 2)
	var sum float64
	for _, s := range focus {
		credit := 0.2
		for i, exp := range f.StructuredExperience {
			if knowledge.CountMentions(exp.Role+" "+exp.Description, s) == 0 {
				continue
			}
			if recent[i] {
				credit = 1
				break
			}
			credit = 0.4
		}
		sum += credit
	}
	return 30 * sum / float64(len(focus))
}
