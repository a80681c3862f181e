// Package scoring 实现候选人与岗位的多维度匹配评分。
package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"ats-engine/internal/knowledge"
	"ats-engine/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const weightsTolerance = 0.01

// DefaultWeights 岗位未配置权重时使用的默认权重
func DefaultWeights() types.Weights {
	return types.Weights{
		types.DimRoleFit:           0.20,
		types.DimSkillsQuality:     0.30,
		types.DimExperienceQuality: 0.20,
		types.DimProjectsImpact:    0.10,
		types.DimLanguageClarity:   0.10,
		types.DimATSFormat:         0.10,
	}
}

// Engine 评分引擎，无状态，可并发使用
type Engine struct {
	kb             *knowledge.Base
	defaultWeights types.Weights
	logger         zerolog.Logger
	now            func() time.Time
	tracer         trace.Tracer
}

// Option 评分引擎配置选项
type Option func(*Engine)

// WithDefaultWeights 覆盖默认权重
func WithDefaultWeights(w types.Weights) Option {
	return func(e *Engine) {
		if len(w) > 0 {
			e.defaultWeights = w
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock 设置时间来源，测试时用于固定“至今”
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine 创建评分引擎
func NewEngine(kb *knowledge.Base, opts ...Option) *Engine {
	e := &Engine{
		kb:             kb,
		defaultWeights: DefaultWeights(),
		logger:         zerolog.Nop(),
		now:            time.Now,
		tracer:         otel.Tracer("ats-engine/scoring"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Knowledge 返回引擎使用的知识库
func (e *Engine) Knowledge() *knowledge.Base {
	return e.kb
}

// Evaluate 计算六个维度子分数、加权总分、风险标记和解释。
// weights 为空时依次回退到岗位权重和默认权重；权重总和偏离1时照常加权，只在解释中提示。
func (e *Engine) Evaluate(ctx context.Context, features *types.ExtractedFeatures, job *types.JobProfile, weights types.Weights) *types.ScoreResult {
	_, span := e.tracer.Start(ctx, "scoring.Evaluate")
	defer span.End()

	if features == nil {
		features = types.DefaultFeatures("")
	}
	if job == nil {
		job = &types.JobProfile{}
	}
	w := e.resolveWeights(job, weights)

	now := e.now()
	tl := buildTimeline(features.StructuredExperience, now)
	skillSet := candidateSkills(features)

	roleFit, roleDetail := e.scoreRoleFit(features, job, tl)
	skills, skillsDetail, analysis, coverage := e.scoreSkills(features, job, skillSet, tl)
	experience, expDetail := e.scoreExperience(features, job, tl)
	projects, projDetail := scoreProjects(features)
	language, langDetail := scoreLanguageClarity(features.RawText)
	ats, atsDetail := scoreATSFormat(features.RawText)

	breakdown := types.Breakdown{
		RoleFit:           roleFit,
		SkillsQuality:     skills,
		ExperienceQuality: experience,
		ProjectsImpact:    projects,
		LanguageClarity:   language,
		ATSFormat:         ats,
	}

	result := &types.ScoreResult{
		Score:     Aggregate(breakdown, w),
		Breakdown: breakdown,
		DetailedBreakdown: types.DetailedBreakdown{
			RoleFit:           roleDetail,
			SkillsQuality:     skillsDetail,
			ExperienceQuality: expDetail,
			ProjectsImpact:    projDetail,
			LanguageClarity:   langDetail,
			ATSFormat:         atsDetail,
		},
		InferredSkills:   nonNil(features.InferredSkills),
		SkillsAnalysis:   analysis,
		ExtractedContact: features.Contact,
		WeightsDeviation: math.Round(WeightsDeviation(w)*1000) / 1000,
		KnowledgeVersion: e.kb.Version(),
		FeatureSource:    features.Source,
	}
	result.RiskFlags = e.riskFlags(features, job, tl, coverage)
	result.Explanation = e.explain(result, job, w)

	span.SetAttributes(
		attribute.Float64("score.total", result.Score),
		attribute.Int("score.risk_flags", len(result.RiskFlags)),
		attribute.String("features.source", string(features.Source)),
	)
	e.logger.Debug().
		Float64("score", result.Score).
		Int("risk_flags", len(result.RiskFlags)).
		Msg("评分完成")
	return result
}

func (e *Engine) resolveWeights(job *types.JobProfile, override types.Weights) types.Weights {
	if len(override) > 0 {
		return override
	}
	if len(job.Weights) > 0 {
		return job.Weights
	}
	return e.defaultWeights
}

// Aggregate 按给定权重求和后夹到 [0,100] 并取整，不做归一化
func Aggregate(b types.Breakdown, w types.Weights) float64 {
	var total float64
	for _, d := range types.Dimensions {
		total += clamp(b.Get(d), 0, 100) * ParseScore(w[d])
	}
	return math.Round(clamp(total, 0, 100))
}

// WeightsDeviation 返回 |Σw - 1|
func WeightsDeviation(w types.Weights) float64 {
	return math.Abs(w.Sum() - 1)
}

func (e *Engine) explain(r *types.ScoreResult, job *types.JobProfile, w types.Weights) []string {
	lines := []string{
		fmt.Sprintf("Overall match %.0f/100 for %s", r.Score, fallback(job.Title, "the position")),
	}

	d := r.DetailedBreakdown
	lines = append(lines,
		fmt.Sprintf("Role fit %.1f (keywords %.1f/50, seniority %.1f/50)", r.Breakdown.RoleFit, d.RoleFit.KeywordMatch, d.RoleFit.SeniorityMatch),
		fmt.Sprintf("Skills quality %.1f (coverage %.1f/40, depth %.1f/30, recency %.1f/30)", r.Breakdown.SkillsQuality, d.SkillsQuality.Coverage, d.SkillsQuality.Depth, d.SkillsQuality.Recency),
		fmt.Sprintf("Experience quality %.1f (relevance %.1f/50, duration %.1f/30, consistency %.1f/20)", r.Breakdown.ExperienceQuality, d.ExperienceQuality.Relevance, d.ExperienceQuality.Duration, d.ExperienceQuality.Consistency),
		fmt.Sprintf("Projects impact %.1f (presence %.1f/30, details %.1f/40, results %.1f/30)", r.Breakdown.ProjectsImpact, d.ProjectsImpact.Presence, d.ProjectsImpact.Details, d.ProjectsImpact.Results),
		fmt.Sprintf("Language clarity %.1f (grammar %.1f/40, clarity %.1f/60)", r.Breakdown.LanguageClarity, d.LanguageClarity.Grammar, d.LanguageClarity.Clarity),
		fmt.Sprintf("ATS format %.1f (sections %.1f/40, readability %.1f/30, layout %.1f/30)", r.Breakdown.ATSFormat, d.ATSFormat.Sections, d.ATSFormat.Readability, d.ATSFormat.Layout),
	)

	sa := r.SkillsAnalysis
	if total := len(sa.DirectMatches) + len(sa.InferredMatches) + len(sa.Missing); total > 0 {
		line := fmt.Sprintf("Matched %d of %d required skills (%d direct, %d inferred)",
			len(sa.DirectMatches)+len(sa.InferredMatches), total, len(sa.DirectMatches), len(sa.InferredMatches))
		if len(sa.Missing) > 0 {
			line += "; missing: " + strings.Join(sa.Missing, ", ")
		}
		lines = append(lines, line)
	}
	for _, m := range sa.InferredMatches {
		lines = append(lines, m.Reason)
	}

	if dev := WeightsDeviation(w); dev > weightsTolerance {
		lines = append(lines, fmt.Sprintf("Weights sum to %.2f instead of 1.00; score uses them as given", w.Sum()))
	}
	if r.FeatureSource == types.SourceDefault {
		lines = append(lines, "Résumé could not be parsed reliably; features default to empty values")
	}
	if n := len(r.RiskFlags); n > 0 {
		lines = append(lines, fmt.Sprintf("%d risk flag(s) raised", n))
	}
	return lines
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
