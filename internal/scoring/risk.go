package scoring

import (
	"fmt"
	"strings"

	"ats-engine/internal/types"
)

const (
	riskEmploymentGap     = "employment_gap"
	riskDateInconsistency = "date_inconsistency"
	riskSkillMismatch     = "skill_mismatch"
	riskTitleInflation    = "title_inflation"
	riskInsufficientExp   = "insufficient_experience"
	riskEducationGap      = "education_gap"
	riskShortTenure       = "short_tenure"
	riskLowConfidence     = "low_confidence_extraction"

	shortStintMonths   = 12
	shortStintsToFlag  = 3
	minRequiredForHigh = 3
)

// riskFlags 只做提示，不影响分数
func (e *Engine) riskFlags(f *types.ExtractedFeatures, job *types.JobProfile, tl *timeline, coverage float64) []types.RiskFlag {
	flags := []types.RiskFlag{}
	add := func(kind string, sev types.Severity, format string, args ...interface{}) {
		flags = append(flags, types.RiskFlag{Type: kind, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	for _, g := range tl.gaps {
		sev := types.SeverityLow
		if g.months > longGapMonths {
			sev = types.SeverityMedium
		}
		add(riskEmploymentGap, sev, "%d-month gap between %s and %s", g.months, fallback(g.after, "a previous role"), fallback(g.before, "the next role"))
	}

	if n := tl.contradictions + tl.overlaps; n > 0 {
		sev := types.SeverityLow
		if tl.contradictions > 0 {
			sev = types.SeverityMedium
		}
		add(riskDateInconsistency, sev, "%d experience entr(ies) with end before start or overlapping periods", n)
	}

	if required := len(job.RequiredSkills); required > 0 {
		switch {
		case coverage < 0.34 && required >= minRequiredForHigh:
			add(riskSkillMismatch, types.SeverityHigh, "Covers %.0f%% of required skills", coverage*100)
		case coverage < 0.5:
			add(riskSkillMismatch, types.SeverityMedium, "Covers %.0f%% of required skills", coverage*100)
		}
	}

	years := totalYears(f, datedMonths(tl))
	if r := tl.mostRecent; r != nil {
		if level, ok := e.kb.SeniorityLevel(r.Role); ok {
			switch {
			case level >= 4 && years < 3:
				add(riskTitleInflation, types.SeverityHigh, "%q with %.1f years of experience", r.Role, years)
			case level == 3 && years < 2:
				add(riskTitleInflation, types.SeverityMedium, "%q with %.1f years of experience", r.Role, years)
			}
		}
	}

	if minYears := job.MinYearsExp; minYears > 0 && years < minYears {
		sev := types.SeverityMedium
		if years < minYears/2 {
			sev = types.SeverityHigh
		}
		add(riskInsufficientExp, sev, "%.1f years of experience, %.1f required", years, minYears)
	}

	if need := job.EducationLevel.Rank(); need > types.EducationHighSchool.Rank() {
		have := highestEducation(f.Education)
		switch {
		case len(f.Education) == 0:
			add(riskEducationGap, types.SeverityLow, "No education listed, %s required", job.EducationLevel)
		case have.Rank() < need:
			add(riskEducationGap, types.SeverityMedium, "Highest degree %s, %s required", have, job.EducationLevel)
		}
	}

	if n := tl.shortStints(shortStintMonths); n >= shortStintsToFlag {
		add(riskShortTenure, types.SeverityLow, "%d roles lasted less than %d months", n, shortStintMonths)
	}

	if f.Source == types.SourceDefault {
		add(riskLowConfidence, types.SeverityMedium, "Features could not be extracted; scores rely on defaults")
	}
	return flags
}

func datedMonths(tl *timeline) int {
	n := 0
	for _, s := range tl.spans {
		n += s.months
	}
	return n
}

var degreeMarkers = []struct {
	level   types.EducationLevel
	markers []string
}{
	{types.EducationPhD, []string{"phd", "ph.d", "doctor", "博士"}},
	{types.EducationMaster, []string{"master", "msc", "m.sc", "mba", "m.s.", "meng", "硕士", "研究生"}},
	{types.EducationBachelor, []string{"bachelor", "bsc", "b.sc", "b.s.", "b.a.", "beng", "学士", "本科"}},
	{types.EducationAssociate, []string{"associate", "diploma", "专科", "大专"}},
	{types.EducationHighSchool, []string{"high school", "secondary", "高中"}},
}

func highestEducation(edu []types.Education) types.EducationLevel {
	best := types.EducationNone
	for _, e := range edu {
		degree := strings.ToLower(e.Degree)
		for _, dm := range degreeMarkers {
			if dm.level.Rank() <= best.Rank() {
				break
			}
			if containsAny(degree, dm.markers) {
				best = dm.level
				break
			}
		}
	}
	return best
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
