package scoring

import (
	"strings"

	"ats-engine/internal/knowledge"
	"ats-engine/internal/types"
)

// scoreRoleFit 关键词匹配(≤50) + 职级匹配(≤50)
func (e *Engine) scoreRoleFit(f *types.ExtractedFeatures, job *types.JobProfile, tl *timeline) (float64, types.RoleFitDetail) {
	keyword := e.roleKeywordScore(f, job, tl)
	seniority := e.seniorityScore(f, job, tl)
	d := types.RoleFitDetail{KeywordMatch: round1(keyword), SeniorityMatch: round1(seniority)}
	return round1(clamp(keyword+seniority, 0, 100)), d
}

func (e *Engine) roleKeywordScore(f *types.ExtractedFeatures, job *types.JobProfile, tl *timeline) float64 {
	title := strings.TrimSpace(job.Title)
	if title == "" {
		return 0
	}
	if len(f.StructuredExperience) == 0 {
		return 15 * tokenOverlap(knowledge.Tokenize(title), f.RawText)
	}

	if r := tl.mostRecent; r != nil && e.rolesMatch(r.Role, title) {
		return 50
	}
	for _, exp := range f.StructuredExperience {
		if e.rolesMatch(exp.Role, title) {
			return 35
		}
	}

	var text strings.Builder
	for _, exp := range f.StructuredExperience {
		text.WriteString(exp.Role)
		text.WriteByte(' ')
		text.WriteString(exp.Description)
		text.WriteByte(' ')
	}
	tokens := append(knowledge.Tokenize(title), knowledge.Tokenize(job.Description)...)
	return 25 * tokenOverlap(tokens, text.String())
}

// rolesMatch 岗位名与经历名任一方向等价即可
func (e *Engine) rolesMatch(role, title string) bool {
	return e.kb.RoleEquivalent(role, title) || e.kb.RoleEquivalent(title, role)
}

func (e *Engine) seniorityScore(f *types.ExtractedFeatures, job *types.JobProfile, tl *timeline) float64 {
	jobLevel, ok := e.kb.SeniorityLevel(job.Title)
	if !ok {
		if len(f.StructuredExperience) > 0 {
			return 40
		}
		return 25
	}

	candLevel, known := -1, false
	if tl.mostRecent != nil {
		candLevel, known = e.kb.SeniorityLevel(tl.mostRecent.Role)
	}
	if !known {
		candLevel = levelFromYears(f.TotalExperienceYears)
	}

	switch diff := candLevel - jobLevel; {
	case diff == 0:
		return 50
	case diff == 1:
		return 45
	case diff >= 2:
		return 35
	case diff == -1:
		return 30
	case diff == -2:
		return 15
	default:
		return 5
	}
}

func levelFromYears(years float64) int {
	switch {
	case years < 1:
		return 0
	case years < 3:
		return 1
	case years < 5:
		return 2
	case years < 8:
		return 3
	default:
		return 4
	}
}

// tokenOverlap 返回 tokens 中出现在 text 里的比例
func tokenOverlap(tokens []string, text string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	seen := make(map[string]bool, len(tokens))
	hit, total := 0, 0
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		total++
		if strings.Contains(lower, t) {
			hit++
		}
	}
	return float64(hit) / float64(total)
}
