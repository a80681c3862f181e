package scoring

import (
	"context"
	"math"
	"testing"
	"time"

	"ats-engine/internal/knowledge"
	"ats-engine/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	kb, err := knowledge.Default()
	require.NoError(t, err)
	return NewEngine(kb, WithClock(func() time.Time { return fixedNow }))
}

func richFeatures() *types.ExtractedFeatures {
	return &types.ExtractedFeatures{
		Skills: []string{"Go", "Kubernetes", "PostgreSQL", "Terraform"},
		StructuredExperience: []types.Experience{
			{
				Role:        "Senior Backend Engineer",
				Company:     "Acme",
				Start:       "2020-03",
				End:         "Present",
				IsCurrent:   true,
				Description: "Built Go services on Kubernetes. Reduced p99 latency by 40% and migrated PostgreSQL clusters.",
			},
			{
				Role:        "Backend Engineer",
				Company:     "Initech",
				Start:       "2016-01",
				End:         "2020-02",
				Description: "Developed billing APIs in Go serving 2M users. Automated Terraform provisioning.",
			},
		},
		TotalExperienceYears: 8,
		Education:            []types.Education{{Degree: "BSc Computer Science", Institution: "MIT"}},
		Projects: []types.Project{
			{Name: "ratelimiter", Description: "Distributed rate limiter handling 10k requests per second", Technologies: []string{"Go", "Redis"}},
		},
		Source: types.SourceAI,
		RawText: "Summary\nBackend engineer with eight years of experience.\n\nExperience\n" +
			"- Built Go services on Kubernetes.\n- Reduced p99 latency by 40%.\n\nEducation\nBSc Computer Science\n\nSkills\nGo, Kubernetes, PostgreSQL\n",
	}
}

func TestEvaluate_ScoreAlwaysInRange(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	jobs := []*types.JobProfile{
		nil,
		{},
		{Title: "Senior Backend Engineer", RequiredSkills: []string{"Go", "Kubernetes"}, MinYearsExp: 5},
		{Title: "Chief Everything Officer", RequiredSkills: []string{"cobol", "fortran", "ada"}, MinYearsExp: 40, EducationLevel: types.EducationPhD},
	}
	features := []*types.ExtractedFeatures{
		nil,
		types.DefaultFeatures(""),
		types.DefaultFeatures("�� Ã©â€ garbage |||| \x00\x01"),
		richFeatures(),
		{
			StructuredExperience: []types.Experience{{Role: "Dev", Start: "2023", End: "2019"}},
			TotalExperienceYears: math.NaN(),
		},
	}
	weights := []types.Weights{
		nil,
		{types.DimRoleFit: 5, types.DimSkillsQuality: 5},
		{types.DimRoleFit: math.Inf(1)},
		{types.DimATSFormat: -3},
	}

	for _, j := range jobs {
		for _, f := range features {
			for _, w := range weights {
				r := e.Evaluate(ctx, f, j, w)
				require.NotNil(t, r)
				assert.False(t, math.IsNaN(r.Score) || math.IsInf(r.Score, 0), "score must be finite")
				assert.GreaterOrEqual(t, r.Score, 0.0)
				assert.LessOrEqual(t, r.Score, 100.0)
				for _, d := range types.Dimensions {
					v := r.Breakdown.Get(d)
					assert.GreaterOrEqual(t, v, 0.0, "dimension %s", d)
					assert.LessOrEqual(t, v, 100.0, "dimension %s", d)
				}
			}
		}
	}
}

func TestAggregate_UniformSubScores(t *testing.T) {
	even := types.Weights{}
	for _, d := range types.Dimensions {
		even[d] = 1.0 / 6
	}
	for _, w := range []types.Weights{DefaultWeights(), even} {
		for _, x := range []float64{0, 37, 72.5, 99.9, 100} {
			b := types.Breakdown{RoleFit: x, SkillsQuality: x, ExperienceQuality: x, ProjectsImpact: x, LanguageClarity: x, ATSFormat: x}
			assert.InDelta(t, x, Aggregate(b, w), 0.5, "x=%v", x)
		}
	}
}

func TestAggregate_DoesNotRenormalize(t *testing.T) {
	b := types.Breakdown{RoleFit: 80, SkillsQuality: 80, ExperienceQuality: 80, ProjectsImpact: 80, LanguageClarity: 80, ATSFormat: 80}
	w := types.Weights{types.DimRoleFit: 0.25, types.DimSkillsQuality: 0.25}

	assert.Equal(t, 40.0, Aggregate(b, w))
	assert.InDelta(t, 0.5, WeightsDeviation(w), 1e-9)

	w = types.Weights{types.DimRoleFit: 1, types.DimSkillsQuality: 1}
	assert.Equal(t, 100.0, Aggregate(b, w), "over-weighted sums are clamped")
}

func TestDefaultWeights_SumToOne(t *testing.T) {
	assert.InDelta(t, 1.0, DefaultWeights().Sum(), 1e-9)
}

func TestEvaluate_WeightsFallback(t *testing.T) {
	e := newTestEngine(t)
	f := richFeatures()
	job := &types.JobProfile{Title: "Backend Engineer", RequiredSkills: []string{"Go"}}

	base := e.Evaluate(context.Background(), f, job, nil)
	assert.Zero(t, base.WeightsDeviation)

	job.Weights = types.Weights{types.DimSkillsQuality: 1}
	viaJob := e.Evaluate(context.Background(), f, job, nil)
	assert.Equal(t, math.Round(viaJob.Breakdown.SkillsQuality), viaJob.Score)

	override := e.Evaluate(context.Background(), f, job, types.Weights{types.DimATSFormat: 1})
	assert.Equal(t, math.Round(override.Breakdown.ATSFormat), override.Score)
}

func TestEvaluate_WeightsDeviationNoted(t *testing.T) {
	e := newTestEngine(t)
	r := e.Evaluate(context.Background(), richFeatures(), &types.JobProfile{Title: "Engineer"},
		types.Weights{types.DimRoleFit: 0.5, types.DimSkillsQuality: 0.8})

	assert.InDelta(t, 0.3, r.WeightsDeviation, 1e-9)
	assert.Contains(t, r.Explanation, "Weights sum to 1.30 instead of 1.00; score uses them as given")
}

func TestEvaluate_TransferableSkills(t *testing.T) {
	e := newTestEngine(t)
	f := &types.ExtractedFeatures{
		Skills: []string{"Vue", "Express"},
		Source: types.SourceAI,
	}
	job := &types.JobProfile{Title: "Full Stack Developer", RequiredSkills: []string{"React", "Node"}}

	r := e.Evaluate(context.Background(), f, job, nil)

	sa := r.SkillsAnalysis
	assert.Empty(t, sa.DirectMatches)
	assert.Empty(t, sa.Missing)
	require.Len(t, sa.InferredMatches, 2)
	assert.Equal(t, "React", sa.InferredMatches[0].JobRequirement)
	assert.Equal(t, "Vue", sa.InferredMatches[0].CandidateSkill)
	assert.Equal(t, "Node", sa.InferredMatches[1].JobRequirement)
	assert.Equal(t, "Express", sa.InferredMatches[1].CandidateSkill)
	assert.NotEmpty(t, sa.InferredMatches[0].Reason)
	assert.InDelta(t, 30.0, r.DetailedBreakdown.SkillsQuality.Coverage, 0.05)
}

func TestEvaluate_MissingSkills(t *testing.T) {
	e := newTestEngine(t)
	f := &types.ExtractedFeatures{Skills: []string{"React"}, Source: types.SourceAI}
	job := &types.JobProfile{Title: "Platform Engineer", RequiredSkills: []string{"Terraform", "React", "Haskell"}}

	r := e.Evaluate(context.Background(), f, job, nil)

	assert.Equal(t, []string{"React"}, r.SkillsAnalysis.DirectMatches)
	assert.ElementsMatch(t, []string{"Terraform", "Haskell"}, r.SkillsAnalysis.Missing)
	assert.True(t, hasFlag(r.RiskFlags, riskSkillMismatch, types.SeverityHigh))
}

func TestEvaluate_RoleFit(t *testing.T) {
	e := newTestEngine(t)
	f := richFeatures()

	r := e.Evaluate(context.Background(), f, &types.JobProfile{Title: "Senior Backend Engineer"}, nil)
	assert.Equal(t, 50.0, r.DetailedBreakdown.RoleFit.KeywordMatch)
	assert.Equal(t, 50.0, r.DetailedBreakdown.RoleFit.SeniorityMatch)

	r = e.Evaluate(context.Background(), f, &types.JobProfile{Title: "Junior Engineer"}, nil)
	assert.Equal(t, 35.0, r.DetailedBreakdown.RoleFit.SeniorityMatch, "overqualified by two levels")

	r = e.Evaluate(context.Background(), f, &types.JobProfile{Title: "Director of Marketing"}, nil)
	assert.Less(t, r.DetailedBreakdown.RoleFit.KeywordMatch, 25.0)
	assert.Equal(t, 5.0, r.DetailedBreakdown.RoleFit.SeniorityMatch, "three levels below the job")
}

func TestEvaluate_RiskFlags(t *testing.T) {
	e := newTestEngine(t)
	f := &types.ExtractedFeatures{
		StructuredExperience: []types.Experience{
			{Role: "Engineering Lead", Start: "2023-01", End: "Present", IsCurrent: true},
			{Role: "Intern", Start: "2021-01", End: "2021-06"},
		},
		TotalExperienceYears: 1.5,
		Source:               types.SourceHeuristic,
	}
	job := &types.JobProfile{Title: "Engineering Lead", MinYearsExp: 6, EducationLevel: types.EducationBachelor}

	r := e.Evaluate(context.Background(), f, job, nil)

	assert.True(t, hasFlag(r.RiskFlags, riskEmploymentGap, types.SeverityMedium))
	assert.True(t, hasFlag(r.RiskFlags, riskTitleInflation, types.SeverityHigh))
	assert.True(t, hasFlag(r.RiskFlags, riskInsufficientExp, types.SeverityHigh))
	assert.True(t, hasFlag(r.RiskFlags, riskEducationGap, types.SeverityLow))
	assert.False(t, hasFlag(r.RiskFlags, riskLowConfidence, types.SeverityMedium))
}

func TestEvaluate_DefaultFeaturesFlagged(t *testing.T) {
	e := newTestEngine(t)
	r := e.Evaluate(context.Background(), types.DefaultFeatures("some text"), &types.JobProfile{Title: "Engineer"}, nil)

	assert.Equal(t, types.SourceDefault, r.FeatureSource)
	assert.True(t, hasFlag(r.RiskFlags, riskLowConfidence, types.SeverityMedium))
	assert.NotEmpty(t, r.KnowledgeVersion)
}

func TestTextDimensions_EmptyText(t *testing.T) {
	lang, _ := scoreLanguageClarity("   ")
	ats, _ := scoreATSFormat("")
	assert.Zero(t, lang)
	assert.Zero(t, ats)
}

func TestATSFormat_PenalizesBrokenEncoding(t *testing.T) {
	clean := "Experience\nBuilt services in Go for a payments company.\nEducation\nBSc\nSkills\nGo, SQL\n"
	broken := clean + "Ã©â€ ���\x01"

	_, cleanDetail := scoreATSFormat(clean)
	_, brokenDetail := scoreATSFormat(broken)
	assert.Equal(t, 30.0, cleanDetail.Sections)
	assert.Greater(t, cleanDetail.Layout, brokenDetail.Layout)
}

func hasFlag(flags []types.RiskFlag, kind string, sev types.Severity) bool {
	for _, f := range flags {
		if f.Type == kind && f.Severity == sev {
			return true
		}
	}
	return false
}
