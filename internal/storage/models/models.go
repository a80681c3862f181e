package models

import (
	"encoding/json"
	"time"

	"ats-engine/internal/types"
	"ats-engine/pkg/utils"

	"gorm.io/datatypes"
)

// Job 岗位表，由人工维护，评分引擎只读
type Job struct {
	JobID          string         `gorm:"type:char(36);primaryKey"`
	Title          string         `gorm:"type:varchar(255);not null"`
	Description    string         `gorm:"type:text"`
	RequiredSkills datatypes.JSON `gorm:"type:json"`
	OptionalSkills datatypes.JSON `gorm:"type:json"`
	MinYearsExp    float64        `gorm:"type:decimal(4,1);default:0"`
	EducationLevel string         `gorm:"type:varchar(32)"`
	WeightsJSON    datatypes.JSON `gorm:"column:weights;type:json"`
	Status         string         `gorm:"type:varchar(50);default:'ACTIVE';index:idx_jobs_status"`
	CreatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Job) TableName() string {
	return "jobs"
}

// ToProfile 转为评分引擎使用的岗位画像
func (j *Job) ToProfile() *types.JobProfile {
	p := &types.JobProfile{
		ID:             j.JobID,
		Title:          j.Title,
		Description:    j.Description,
		RequiredSkills: utils.JSONToStrings(j.RequiredSkills),
		OptionalSkills: utils.JSONToStrings(j.OptionalSkills),
		MinYearsExp:    j.MinYearsExp,
		EducationLevel: types.EducationLevel(j.EducationLevel),
	}
	if len(j.WeightsJSON) > 0 {
		var w types.Weights
		if err := json.Unmarshal(j.WeightsJSON, &w); err == nil && len(w) > 0 {
			p.Weights = w
		}
	}
	return p
}

// Candidate 候选人投递记录。状态为终态后只允许人工修改。
type Candidate struct {
	CandidateID       string         `gorm:"type:char(36);primaryKey"`
	JobID             string         `gorm:"type:char(36);not null;index:idx_candidates_job_created,priority:1"`
	Name              string         `gorm:"type:varchar(255)"`
	Email             string         `gorm:"type:varchar(255)"`
	Status            string         `gorm:"type:varchar(50);default:'new';index:idx_candidates_status"`
	ResumeText        string         `gorm:"type:mediumtext"`
	ResumeObjectKey   string         `gorm:"type:varchar(1024)"`
	Score             *float64       `gorm:"type:decimal(5,1)"`
	Breakdown         datatypes.JSON `gorm:"type:json"`
	DetailedBreakdown datatypes.JSON `gorm:"type:json"`
	RiskFlags         datatypes.JSON `gorm:"type:json"`
	Explanation       datatypes.JSON `gorm:"type:json"`
	InferredSkills    datatypes.JSON `gorm:"type:json"`
	SkillsAnalysis    datatypes.JSON `gorm:"type:json"`
	ExtractedContact  datatypes.JSON `gorm:"type:json"`
	ScoredAt          *time.Time     `gorm:"type:datetime(6)"`
	LastRunID         string         `gorm:"type:varchar(36)"`
	CreatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_candidates_job_created,priority:2"`
	UpdatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// ToRecord 转为编排器使用的候选人记录
func (c *Candidate) ToRecord() *types.CandidateRecord {
	return &types.CandidateRecord{
		ID:              c.CandidateID,
		JobID:           c.JobID,
		Name:            c.Name,
		Email:           c.Email,
		Status:          c.Status,
		ResumeText:      c.ResumeText,
		ResumeObjectKey: c.ResumeObjectKey,
		Score:           c.Score,
		ScoredAt:        c.ScoredAt,
		CreatedAt:       c.CreatedAt,
	}
}

// CandidateEvaluation 评分历史，只追加
type CandidateEvaluation struct {
	EvaluationID     string         `gorm:"type:char(36);primaryKey"`
	CandidateID      string         `gorm:"type:char(36);not null;index:idx_ce_candidate"`
	JobID            string         `gorm:"type:char(36);not null"`
	RunID            string         `gorm:"type:varchar(36);index:idx_ce_run"`
	Score            float64        `gorm:"type:decimal(5,1);not null"`
	Breakdown        datatypes.JSON `gorm:"type:json"`
	RiskFlags        datatypes.JSON `gorm:"type:json"`
	WeightsDeviation float64        `gorm:"type:decimal(6,3);default:0"`
	KnowledgeVersion string         `gorm:"type:varchar(32)"`
	FeatureSource    string         `gorm:"type:varchar(16)"`
	CreatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (CandidateEvaluation) TableName() string {
	return "candidate_evaluations"
}
