package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Job statuses. The pipeline moves a job through these in order; any
// state may transition to StatusError.
const (
	StatusNew          = "new"
	StatusClaimed      = "claimed"
	StatusImagesPicked = "images_picked"
	StatusDrafted      = "wp_drafted"
	StatusDone         = "done"
	StatusError        = "error"
)

// Job is one unit of document-to-draft conversion. Jobs are created by
// discovery, mutated only by the orchestrator, and never deleted during
// normal operation.
type Job struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	SourceFileID     string     `gorm:"not null;size:255;uniqueIndex:idx_source_revision" json:"source_file_id"`
	SourceRevisionID string     `gorm:"not null;size:255;uniqueIndex:idx_source_revision" json:"source_revision_id"`
	SourceName       string     `gorm:"size:512" json:"source_name"`
	Status           string     `gorm:"size:50;default:'new';index" json:"status"`
	ErrorCode        string     `gorm:"size:100" json:"error_code"`
	ErrorMessage     string     `gorm:"type:text" json:"error_message"`
	StartedAt        *time.Time `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at"`
	PostID           string     `gorm:"size:100" json:"post_id"`
	PostEditLink     string     `gorm:"size:1024" json:"post_edit_link"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Artifacts []Artifact `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"artifacts,omitempty"`
}

func (j *Job) BeforeCreate(*gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == StatusDone || j.Status == StatusError
}
