package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Artifact kinds, one per pipeline stage output.
const (
	ArtifactRawContent     = "raw_content"
	ArtifactImageMeta      = "image_meta"
	ArtifactHTML           = "html"
	ArtifactWidgetDecision = "widget_decision"
)

// JSONMap represents a PostgreSQL jsonb column
type JSONMap map[string]any

// Scan implements the sql.Scanner interface
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}
}

// Value implements the driver.Valuer interface
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Artifact is a write-once snapshot of intermediate pipeline output,
// kept for audit and recovery. Artifacts are never updated after
// creation and cascade-delete with their job.
type Artifact struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	JobID     string    `gorm:"not null;size:36;index" json:"job_id"`
	Kind      string    `gorm:"not null;size:50" json:"kind"`
	Content   JSONMap   `gorm:"type:jsonb" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (a *Artifact) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
