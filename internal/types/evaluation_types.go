package types

import (
	"fmt"
	"strings"
	"time"
)

// EducationLevel 岗位要求的最低学历
type EducationLevel string

const (
	EducationNone       EducationLevel = "none"
	EducationHighSchool EducationLevel = "high_school"
	EducationAssociate  EducationLevel = "associate"
	EducationBachelor   EducationLevel = "bachelor"
	EducationMaster     EducationLevel = "master"
	EducationPhD        EducationLevel = "phd"
)

var educationRank = map[EducationLevel]int{
	EducationNone:       0,
	EducationHighSchool: 1,
	EducationAssociate:  2,
	EducationBachelor:   3,
	EducationMaster:     4,
	EducationPhD:        5,
}

// Rank 返回学历的序数，未知值视为 none
func (e EducationLevel) Rank() int {
	return educationRank[EducationLevel(strings.ToLower(strings.TrimSpace(string(e))))]
}

// Valid 判断是否为已知学历枚举
func (e EducationLevel) Valid() bool {
	_, ok := educationRank[e]
	return ok || e == ""
}

// Dimension 评分维度名称
type Dimension string

const (
	DimRoleFit           Dimension = "roleFit"
	DimSkillsQuality     Dimension = "skillsQuality"
	DimExperienceQuality Dimension = "experienceQuality"
	DimProjectsImpact    Dimension = "projectsImpact"
	DimLanguageClarity   Dimension = "languageClarity"
	DimATSFormat         Dimension = "atsFormat"
)

// Dimensions 固定顺序的六个维度
var Dimensions = []Dimension{
	DimRoleFit,
	DimSkillsQuality,
	DimExperienceQuality,
	DimProjectsImpact,
	DimLanguageClarity,
	DimATSFormat,
}

// Weights 维度权重，期望总和约为1.0
type Weights map[Dimension]float64

// Sum 返回权重总和
func (w Weights) Sum() float64 {
	var total float64
	for _, d := range Dimensions {
		total += w[d]
	}
	return total
}

// ParseWeights 校验维度名和非负取值后转换为 Weights，空输入返回 nil
func ParseWeights(raw map[string]float64) (Weights, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	known := make(map[Dimension]bool, len(Dimensions))
	for _, d := range Dimensions {
		known[d] = true
	}
	w := make(Weights, len(raw))
	for k, v := range raw {
		d := Dimension(k)
		if !known[d] {
			return nil, fmt.Errorf("未知的评分维度 %q: %w", k, ErrInvalidRequest)
		}
		if v < 0 {
			return nil, fmt.Errorf("维度 %q 的权重不能为负数: %w", k, ErrInvalidRequest)
		}
		w[d] = v
	}
	return w, nil
}

// JobProfile 岗位画像，对评分引擎只读
type JobProfile struct {
	ID             string         `json:"id"`
	Title          string         `json:"title" validate:"required"`
	RequiredSkills []string       `json:"requiredSkills"`
	OptionalSkills []string       `json:"optionalSkills"`
	MinYearsExp    float64        `json:"minYearsExp" validate:"gte=0"`
	EducationLevel EducationLevel `json:"educationLevel"`
	Description    string         `json:"description"`
	Weights        Weights        `json:"weights"`
}

// Experience 一段结构化工作经历
type Experience struct {
	Role        string `json:"role"`
	Company     string `json:"company"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description"`
	IsCurrent   bool   `json:"isCurrent"`
}

// Education 教育经历
type Education struct {
	Degree         string `json:"degree"`
	Field          string `json:"field"`
	Institution    string `json:"institution"`
	GraduationYear string `json:"graduationYear"`
}

// Project 项目经历
type Project struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
}

// Contact 候选人联系方式
type Contact struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	LinkedIn string `json:"linkedin"`
}

// FeatureSource 标记特征记录的来源
type FeatureSource string

const (
	SourceAI        FeatureSource = "ai"
	SourceHeuristic FeatureSource = "heuristic"
	SourceDefault   FeatureSource = "default"
)

// ExtractedFeatures 单次评估使用的结构化简历特征，不持久化
type ExtractedFeatures struct {
	Skills               []string      `json:"skills"`
	StructuredExperience []Experience  `json:"structuredExperience"`
	TotalExperienceYears float64       `json:"totalExperienceYears"`
	Education            []Education   `json:"education"`
	Certifications       []string      `json:"certifications"`
	Courses              []string      `json:"courses"`
	Projects             []Project     `json:"projects"`
	Contact              Contact       `json:"contact"`
	Summary              string        `json:"summary"`
	GeneralFitScore      float64       `json:"generalFitScore"`
	InferredSkills       []string      `json:"inferredSkills"`
	Source               FeatureSource `json:"source"`

	// RawText 截断后的简历原文，供文本质量类维度使用
	RawText string `json:"-"`
}

// DefaultFeatures 返回解析失败时使用的最小特征记录
func DefaultFeatures(rawText string) *ExtractedFeatures {
	return &ExtractedFeatures{
		Skills:               []string{},
		StructuredExperience: []Experience{},
		Education:            []Education{},
		Certifications:       []string{},
		Courses:              []string{},
		Projects:             []Project{},
		InferredSkills:       []string{},
		Source:               SourceDefault,
		RawText:              rawText,
	}
}

// Breakdown 六个维度的子分数，均在 [0,100]
type Breakdown struct {
	RoleFit           float64 `json:"roleFit"`
	SkillsQuality     float64 `json:"skillsQuality"`
	ExperienceQuality float64 `json:"experienceQuality"`
	ProjectsImpact    float64 `json:"projectsImpact"`
	LanguageClarity   float64 `json:"languageClarity"`
	ATSFormat         float64 `json:"atsFormat"`
}

// Get 按维度取子分数
func (b Breakdown) Get(d Dimension) float64 {
	switch d {
	case DimRoleFit:
		return b.RoleFit
	case DimSkillsQuality:
		return b.SkillsQuality
	case DimExperienceQuality:
		return b.ExperienceQuality
	case DimProjectsImpact:
		return b.ProjectsImpact
	case DimLanguageClarity:
		return b.LanguageClarity
	case DimATSFormat:
		return b.ATSFormat
	}
	return 0
}

type RoleFitDetail struct {
	KeywordMatch   float64 `json:"keywordMatch"`
	SeniorityMatch float64 `json:"seniorityMatch"`
}

type SkillsQualityDetail struct {
	Coverage float64 `json:"coverage"`
	Depth    float64 `json:"depth"`
	Recency  float64 `json:"recency"`
}

type ExperienceQualityDetail struct {
	Relevance   float64 `json:"relevance"`
	Duration    float64 `json:"duration"`
	Consistency float64 `json:"consistency"`
}

type ProjectsImpactDetail struct {
	Presence float64 `json:"presence"`
	Details  float64 `json:"details"`
	Results  float64 `json:"results"`
}

type LanguageClarityDetail struct {
	Grammar float64 `json:"grammar"`
	Clarity float64 `json:"clarity"`
}

type ATSFormatDetail struct {
	Sections    float64 `json:"sections"`
	Readability float64 `json:"readability"`
	Layout      float64 `json:"layout"`
}

// DetailedBreakdown 各维度的内部组成
type DetailedBreakdown struct {
	RoleFit           RoleFitDetail           `json:"roleFit"`
	SkillsQuality     SkillsQualityDetail     `json:"skillsQuality"`
	ExperienceQuality ExperienceQualityDetail `json:"experienceQuality"`
	ProjectsImpact    ProjectsImpactDetail    `json:"projectsImpact"`
	LanguageClarity   LanguageClarityDetail   `json:"languageClarity"`
	ATSFormat         ATSFormatDetail         `json:"atsFormat"`
}

// Severity 风险等级
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RiskFlag 附加的风险提示，不参与计分
type RiskFlag struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// InferredMatch 通过可迁移技能满足的岗位要求
type InferredMatch struct {
	JobRequirement string `json:"jobRequirement"`
	CandidateSkill string `json:"candidateSkill"`
	Reason         string `json:"reason"`
}

// SkillsAnalysis 岗位必备技能的划分结果
type SkillsAnalysis struct {
	DirectMatches   []string        `json:"directMatches"`
	InferredMatches []InferredMatch `json:"inferredMatches"`
	Missing         []string        `json:"missing"`
}

// ScoreResult 评分引擎输出
type ScoreResult struct {
	Score             float64           `json:"score"`
	Breakdown         Breakdown         `json:"breakdown"`
	DetailedBreakdown DetailedBreakdown `json:"detailedBreakdown"`
	RiskFlags         []RiskFlag        `json:"riskFlags"`
	Explanation       []string          `json:"explanation"`
	InferredSkills    []string          `json:"inferredSkills"`
	SkillsAnalysis    SkillsAnalysis    `json:"skillsAnalysis"`
	ExtractedContact  Contact           `json:"extractedContact"`
	WeightsDeviation  float64           `json:"weightsDeviation"`
	KnowledgeVersion  string            `json:"knowledgeVersion"`
	FeatureSource     FeatureSource     `json:"featureSource"`
}

// 候选人状态
const (
	StatusNew         = "new"
	StatusRejected    = "rejected"
	StatusAccepted    = "accepted"
	StatusHired       = "hired"
	StatusStrongFit   = "strong_fit"
	StatusNotAFit     = "not_a_fit"
	StatusInterviewed = "interviewed"
	StatusOfferSent   = "offer_sent"
)

// FinalizedStatuses 人工决策后的终态，批量重评分不得覆盖
var FinalizedStatuses = []string{
	StatusRejected,
	StatusAccepted,
	StatusHired,
	StatusStrongFit,
	StatusNotAFit,
	StatusInterviewed,
	StatusOfferSent,
}

// NormalizeStatus 统一状态写法: 小写、去空白、空格和连字符转下划线
func NormalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// IsFinalized 判断状态是否为终态（大小写不敏感）
func IsFinalized(status string) bool {
	normalized := NormalizeStatus(status)
	for _, s := range FinalizedStatuses {
		if normalized == s {
			return true
		}
	}
	return false
}

// CandidateRecord 文档存储中的候选人记录
type CandidateRecord struct {
	ID              string     `json:"id"`
	JobID           string     `json:"jobId"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Status          string     `json:"status"`
	ResumeText      string     `json:"-"`
	ResumeObjectKey string     `json:"resumeObjectKey,omitempty"`
	Score           *float64   `json:"score,omitempty"`
	ScoredAt        *time.Time `json:"scoredAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// ScoreUpdate 一次受保护写入的内容
type ScoreUpdate struct {
	RunID  string
	JobID  string
	Result *ScoreResult
}

// State 批处理中单个候选人的状态
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateSuccess    State = "success"
	StateError      State = "error"
	StateSkipped    State = "skipped"
)

// ProgressEvent 每次状态迁移时发给调用方的进度事件
type ProgressEvent struct {
	ProcessedIndex int       `json:"processedIndex"`
	Total          int       `json:"total"`
	CandidateID    string    `json:"candidateId"`
	State          State     `json:"state"`
	Message        string    `json:"message"`
	Score          *float64  `json:"score,omitempty"`
	At             time.Time `json:"at"`
}

// BatchSummary 批处理汇总
type BatchSummary struct {
	RunID        string    `json:"runId"`
	JobID        string    `json:"jobId"`
	Total        int       `json:"total"`
	SuccessCount int       `json:"successCount"`
	FailCount    int       `json:"failCount"`
	SkippedCount int       `json:"skippedCount"`
	Cancelled    bool      `json:"cancelled"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
}
