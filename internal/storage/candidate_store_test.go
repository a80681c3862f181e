package storage

import (
	"context"
	"testing"
	"time"

	"ats-engine/internal/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func sampleResult() *types.ScoreResult {
	return &types.ScoreResult{
		Score:            72.5,
		Breakdown:        types.Breakdown{RoleFit: 80, SkillsQuality: 70},
		Explanation:      []string{"Overall score 72.5/100"},
		InferredSkills:   []string{"docker"},
		KnowledgeVersion: "2024.06",
		FeatureSource:    types.SourceAI,
	}
}

func TestCandidateStore_WriteScore_Success(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewCandidateStore(db, "ats.events.exchange")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT `candidate_id`,`status` FROM `candidates` WHERE candidate_id = \\?.*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"candidate_id", "status"}).AddRow("c-1", "new"))
	mock.ExpectExec("UPDATE `candidates` SET .*WHERE .*candidate_id = \\? AND status = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `candidate_evaluations`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `outbox_messages`").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	err := store.WriteScore(context.Background(), "c-1", types.ScoreUpdate{RunID: "run-1", JobID: "job-1", Result: sampleResult()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateStore_WriteScore_FinalizedIsUntouched(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewCandidateStore(db, "ats.events.exchange")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT `candidate_id`,`status` FROM `candidates`").
		WillReturnRows(sqlmock.NewRows([]string{"candidate_id", "status"}).AddRow("c-1", "Rejected"))
	mock.ExpectRollback()

	err := store.WriteScore(context.Background(), "c-1", types.ScoreUpdate{JobID: "job-1", Result: sampleResult()})
	require.ErrorIs(t, err, types.ErrConcurrencyConflict)
	status, ok := types.ConflictStatus(err)
	assert.True(t, ok)
	assert.Equal(t, "Rejected", status)
	assert.NoError(t, mock.ExpectationsWereMet(), "no UPDATE or INSERT may be issued")
}

func TestCandidateStore_WriteScore_StatusChangedBetweenLockAndUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewCandidateStore(db, "ats.events.exchange")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT `candidate_id`,`status` FROM `candidates`").
		WillReturnRows(sqlmock.NewRows([]string{"candidate_id", "status"}).AddRow("c-1", "new"))
	mock.ExpectExec("UPDATE `candidates` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WriteScore(context.Background(), "c-1", types.ScoreUpdate{JobID: "job-1", Result: sampleResult()})
	assert.ErrorIs(t, err, types.ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateStore_WriteScore_MissingCandidate(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewCandidateStore(db, "ats.events.exchange")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT `candidate_id`,`status` FROM `candidates`").
		WillReturnRows(sqlmock.NewRows([]string{"candidate_id", "status"}))
	mock.ExpectRollback()

	err := store.WriteScore(context.Background(), "ghost", types.ScoreUpdate{Result: sampleResult()})
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateStore_WriteScore_NilResult(t *testing.T) {
	db, _ := newMockDB(t)
	err := NewCandidateStore(db, "x").WriteScore(context.Background(), "c-1", types.ScoreUpdate{})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
}

func TestCandidateStore_GetJobProfile(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewCandidateStore(db, "x")

	mock.ExpectQuery("SELECT \\* FROM `jobs` WHERE job_id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "title", "required_skills", "optional_skills", "min_years_exp", "education_level", "weights"}).
			AddRow("job-1", "Senior Frontend Engineer", `["React","Node"]`, `null`, 5.0, "bachelor", `{"roleFit":0.5,"skillsQuality":0.5}`))

	p, err := store.GetJobProfile(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "Senior Frontend Engineer", p.Title)
	assert.Equal(t, []string{"React", "Node"}, p.RequiredSkills)
	assert.Empty(t, p.OptionalSkills)
	assert.Equal(t, types.EducationBachelor, p.EducationLevel)
	assert.Equal(t, types.Weights{types.DimRoleFit: 0.5, types.DimSkillsQuality: 0.5}, p.Weights)
}

func TestCandidateStore_GetJobProfile_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT \\* FROM `jobs`").WillReturnRows(sqlmock.NewRows([]string{"job_id"}))

	_, err := NewCandidateStore(db, "x").GetJobProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCandidateStore_QueryCandidatesByDateRange(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewCandidateStore(db, "x")

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	older := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT \\* FROM `candidates` WHERE .*job_id = \\? AND created_at >= \\? AND created_at <= \\?.* ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows([]string{"candidate_id", "job_id", "status", "resume_text", "created_at"}).
			AddRow("c-2", "job-1", "new", "text two", newer).
			AddRow("c-1", "job-1", "rejected", "text one", older))

	got, err := store.QueryCandidatesByDateRange(context.Background(), "job-1", from, to, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c-2", got[0].ID)
	assert.Equal(t, "rejected", got[1].Status)
	assert.Equal(t, "text one", got[1].ResumeText)
}

func TestCandidateStore_AttachResumeText(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewCandidateStore(db, "ats.events.exchange")

	mock.ExpectExec("UPDATE `candidates` SET .*`resume_object_key`=\\?.*WHERE candidate_id = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.AttachResumeText(context.Background(), "c-1", "resume/c-1/text.txt"))

	mock.ExpectExec("UPDATE `candidates` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := store.AttachResumeText(context.Background(), "ghost", "resume/ghost/text.txt")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
