package service

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/draftforge/draftforge/internal/models"
)

// Store is the orchestrator's view of job persistence.
type Store interface {
	CreateJob(job *models.Job) error
	SaveJob(job *models.Job) error
	AddArtifact(jobID, kind string, content models.JSONMap) error
	JobExists(fileID, revisionID string) (bool, error)
	GetJob(id string) (*models.Job, error)
	ListJobs(limit int) ([]models.Job, error)
	JobsByStatus(statuses ...string) ([]models.Job, error)
	StuckJobs(updatedBefore time.Time) ([]models.Job, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) CreateJob(job *models.Job) error {
	if err := s.db.Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (s *gormStore) SaveJob(job *models.Job) error {
	if err := s.db.Save(job).Error; err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// AddArtifact writes one immutable pipeline snapshot. Artifacts are
// insert-only; there is deliberately no update path.
func (s *gormStore) AddArtifact(jobID, kind string, content models.JSONMap) error {
	artifact := &models.Artifact{
		JobID:   jobID,
		Kind:    kind,
		Content: content,
	}
	if err := s.db.Create(artifact).Error; err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}
	return nil
}

func (s *gormStore) JobExists(fileID, revisionID string) (bool, error) {
	var count int64
	err := s.db.Model(&models.Job{}).
		Where("source_file_id = ? AND source_revision_id = ?", fileID, revisionID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check job existence: %w", err)
	}
	return count > 0, nil
}

func (s *gormStore) GetJob(id string) (*models.Job, error) {
	var job models.Job
	err := s.db.Preload("Artifacts").Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("job %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *gormStore) ListJobs(limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []models.Job
	err := s.db.Order("created_at DESC").Limit(limit).Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

func (s *gormStore) JobsByStatus(statuses ...string) ([]models.Job, error) {
	var jobs []models.Job
	err := s.db.Where("status IN ?", statuses).Order("created_at").Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs by status: %w", err)
	}
	return jobs, nil
}

// StuckJobs finds jobs sitting in a non-terminal state since before
// the cutoff, candidates for forced restart.
func (s *gormStore) StuckJobs(updatedBefore time.Time) ([]models.Job, error) {
	var jobs []models.Job
	err := s.db.
		Where("status NOT IN ?", []string{models.StatusDone, models.StatusError, models.StatusNew}).
		Where("updated_at < ?", updatedBefore).
		Order("created_at").Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck jobs: %w", err)
	}
	return jobs, nil
}
